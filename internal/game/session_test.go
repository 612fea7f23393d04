package game

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
)

func TestNewValidation(t *testing.T) {
	valid := Params{
		ID:          "g",
		SessionRef:  "s",
		GameType:    GameTypeWordRecognition,
		Difficulty:  DifficultyMedium,
		SLPID:       "slp",
		ChildID:     "kid",
		MaxTurns:    6,
		TotalRounds: 3,
		Settings:    DefaultSettings(),
	}

	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *Params) {}},
		{name: "missing id", mutate: func(p *Params) { p.ID = " " }, wantErr: true},
		{name: "missing session", mutate: func(p *Params) { p.SessionRef = "" }, wantErr: true},
		{name: "missing slp", mutate: func(p *Params) { p.SLPID = "" }, wantErr: true},
		{name: "missing child", mutate: func(p *Params) { p.ChildID = "" }, wantErr: true},
		{name: "same participant", mutate: func(p *Params) { p.ChildID = "slp" }, wantErr: true},
		{name: "unknown game type", mutate: func(p *Params) { p.GameType = "chess" }, wantErr: true},
		{name: "unknown difficulty", mutate: func(p *Params) { p.Difficulty = "brutal" }, wantErr: true},
		{name: "zero turns", mutate: func(p *Params) { p.MaxTurns = 0 }, wantErr: true},
		{name: "more rounds than turns", mutate: func(p *Params) { p.TotalRounds = 7 }, wantErr: true},
		{name: "zero rounds", mutate: func(p *Params) { p.TotalRounds = 0 }, wantErr: true},
		{name: "zero time per turn", mutate: func(p *Params) { p.Settings.TimePerTurn = 0 }, wantErr: true},
		{name: "negative attempts", mutate: func(p *Params) { p.Settings.MaxAttempts = -1 }, wantErr: true},
		{name: "child starts", mutate: func(p *Params) { p.Settings.StartingRole = RoleChild }},
		{name: "bad starting role", mutate: func(p *Params) { p.Settings.StartingRole = "" }, wantErr: true},
		{name: "partial credit too high", mutate: func(p *Params) { p.Settings.PartialCredit = 1.5 }, wantErr: true},
		{name: "bad rounding", mutate: func(p *Params) { p.Settings.RoundRounding = "half" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			g, err := New(p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !IsValidation(err) {
					t.Errorf("error = %T, want *ValidationError", err)
				}
				return
			}
			if g.Status != StatusWaiting || g.State.TurnNumber != 1 || g.State.CurrentRound != 1 {
				t.Errorf("new game = %+v", g)
			}
			if g.CurrentPlayer() != "" {
				t.Errorf("current player before start = %q, want empty", g.CurrentPlayer())
			}
		})
	}
}

func TestValidateRejectsImpossibleState(t *testing.T) {
	started := mustDecide(t, newTestGame(t, 4, 2, nil), Command{Type: CommandStart})
	if err := started.Validate(); err != nil {
		t.Fatalf("started game: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(g *GameSession)
		field  string
	}{
		{name: "unknown status", mutate: func(g *GameSession) { g.Status = "lost" }, field: "status"},
		{name: "turn past max", mutate: func(g *GameSession) { g.State.TurnNumber = 5 }, field: "turnNumber"},
		{name: "round past total", mutate: func(g *GameSession) { g.State.CurrentRound = 3 }, field: "currentRound"},
		{name: "negative score", mutate: func(g *GameSession) { g.State.Score.Child = -2 }, field: "score"},
		{name: "negative time", mutate: func(g *GameSession) { g.State.TimeRemaining = -1 }, field: "timeRemaining"},
		{name: "negative attempts", mutate: func(g *GameSession) { g.State.Attempts = -1 }, field: "attempts"},
		{name: "paused without player", mutate: func(g *GameSession) { g.Status = StatusPaused; g.State.CurrentPlayer = "" }, field: "currentPlayer"},
		{name: "unversioned", mutate: func(g *GameSession) { g.Version = 0 }, field: "version"},
		{name: "foreign action", mutate: func(g *GameSession) {
			g.Actions = []Action{{Seq: 1, Kind: ActionTurnSkipped, Actor: Actor{ID: "nobody"}}}
		}, field: "actions"},
		{name: "role mismatch", mutate: func(g *GameSession) {
			g.Actions = []Action{{Seq: 1, Kind: ActionTurnSkipped, Actor: Actor{ID: "slp-1", Role: RoleChild}}}
		}, field: "actions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := started
			g.Actions = append([]Action(nil), started.Actions...)
			tt.mutate(&g)
			err := g.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestStartingRoleFromSettings(t *testing.T) {
	g := newTestGame(t, 4, 2, func(s *Settings) { s.StartingRole = RoleChild })
	g = mustDecide(t, g, Command{Type: CommandStart})
	if g.CurrentPlayer() != RoleChild {
		t.Errorf("current player = %s, want child", g.CurrentPlayer())
	}
}

func TestTurnsPerRound(t *testing.T) {
	tests := []struct {
		name     string
		rounding RoundRounding
		maxTurns int
		rounds   int
		want     int
	}{
		{name: "exact", rounding: RoundCeil, maxTurns: 4, rounds: 2, want: 2},
		{name: "ceil remainder", rounding: RoundCeil, maxTurns: 7, rounds: 3, want: 3},
		{name: "floor remainder", rounding: RoundFloor, maxTurns: 7, rounds: 3, want: 2},
		{name: "single round", rounding: RoundFloor, maxTurns: 5, rounds: 1, want: 5},
		{name: "one turn per round", rounding: RoundCeil, maxTurns: 3, rounds: 3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{RoundRounding: tt.rounding}
			if got := s.TurnsPerRound(tt.maxTurns, tt.rounds); got != tt.want {
				t.Errorf("TurnsPerRound(%d, %d) = %d, want %d", tt.maxTurns, tt.rounds, got, tt.want)
			}
		})
	}
}

func TestRoundForNeverExceedsTotal(t *testing.T) {
	// floor with 7 turns / 3 rounds gives 2 turns per round, so turn 7 would
	// land in round 4 without the cap
	s := Settings{RoundRounding: RoundFloor}
	want := []int{1, 1, 2, 2, 3, 3, 3}
	for turn := 1; turn <= 7; turn++ {
		if got := s.RoundFor(turn, 7, 3); got != want[turn-1] {
			t.Errorf("RoundFor(%d) = %d, want %d", turn, got, want[turn-1])
		}
	}
}

func TestProgress(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	if g.Progress() != 0 {
		t.Fatalf("Progress() before start = %v", g.Progress())
	}
	g = mustDecide(t, g, Command{Type: CommandStart})
	g = mustDecide(t, g, Command{Type: CommandNextTurn})
	if g.Progress() != 0.25 {
		t.Errorf("Progress() = %v, want 0.25", g.Progress())
	}
	g = mustDecide(t, g, Command{Type: CommandEnd})
	if g.Progress() != 0.25 {
		t.Errorf("Progress() after early end = %v, want 0.25", g.Progress())
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	g = mustDecide(t, g, Command{Type: CommandStart})
	g = mustDecide(t, g, Command{Type: CommandEvaluatePronunciation, Actor: slp, Word: "sun", Verdict: VerdictCorrect})
	g = mustDecide(t, g, Command{Type: CommandEnd})

	snapshot := func() []any {
		w, ok := g.Winner()
		return []any{g.CurrentPlayer(), g.Progress(), g.IsGameOver(), w, ok}
	}
	first, second := snapshot(), snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("queries differ: %v vs %v", first, second)
	}
	if w, _ := g.Winner(); w != WinnerChild {
		t.Errorf("Winner() = %s, want child", w)
	}
}

// TestRandomCommandSequencesKeepInvariants drives many random command
// sequences and checks the invariants after every step.
func TestRandomCommandSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	types := []CommandType{
		CommandStart, CommandPause, CommandResume, CommandEnd, CommandCancel,
		CommandNextTurn, CommandSkipTurn, CommandRecordPronunciation,
		CommandEvaluatePronunciation, CommandTick,
	}
	verdicts := []Verdict{VerdictCorrect, VerdictIncorrect, VerdictPartial, "bogus"}
	actors := []Actor{slp, child, {ID: "intruder"}}

	for run := 0; run < 200; run++ {
		maxTurns := 1 + rng.IntN(8)
		rounds := 1 + rng.IntN(maxTurns)
		g := newTestGame(t, maxTurns, rounds, func(s *Settings) {
			s.AutoAdvance = rng.IntN(2) == 0
			s.PartialCredit = 0.5
			s.MaxAttempts = rng.IntN(3)
			if rng.IntN(2) == 0 {
				s.RoundRounding = RoundFloor
			}
		})

		for step := 0; step < 40; step++ {
			cmd := Command{
				Type:    types[rng.IntN(len(types))],
				Actor:   actors[rng.IntN(len(actors))],
				Word:    []string{"", "sun", "ship"}[rng.IntN(3)],
				Verdict: verdicts[rng.IntN(len(verdicts))],
				Seconds: rng.IntN(20),
			}
			prevLog := g.Actions
			prevProgress := g.Progress()
			wasOver := g.IsGameOver()

			d, err := Decide(g, cmd, clock)
			if err != nil {
				continue
			}
			next := d.Session

			if wasOver {
				t.Fatalf("terminal game accepted %s", cmd.Type)
			}
			if err := next.Validate(); err != nil {
				t.Fatalf("%s produced an invalid game: %v", cmd.Type, err)
			}
			if next.State.Score.SLP < 0 || next.State.Score.Child < 0 {
				t.Fatalf("negative score %+v", next.State.Score)
			}
			if next.State.TurnNumber < 1 || next.State.TurnNumber > next.State.MaxTurns {
				t.Fatalf("turn %d out of [1,%d]", next.State.TurnNumber, next.State.MaxTurns)
			}
			if next.State.CurrentRound < 1 || next.State.CurrentRound > next.State.TotalRounds {
				t.Fatalf("round %d out of [1,%d]", next.State.CurrentRound, next.State.TotalRounds)
			}
			if next.Status == StatusActive && !next.CurrentPlayer().Valid() {
				t.Fatalf("active game without a current player")
			}
			if len(next.Actions) < len(prevLog) || !reflect.DeepEqual(next.Actions[:len(prevLog)], prevLog) {
				t.Fatalf("action log shrank or was rewritten")
			}
			if next.Progress() < prevProgress {
				t.Fatalf("progress went backwards %v -> %v", prevProgress, next.Progress())
			}
			if w, ok := next.Winner(); ok != next.IsGameOver() || (!ok && w != WinnerNone) {
				t.Fatalf("Winner() = (%s, %v) with IsGameOver() = %v", w, ok, next.IsGameOver())
			}
			g = next
		}
	}
}
