package game

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

var (
	slp   = Actor{ID: "slp-1", Role: RoleSLP}
	child = Actor{ID: "child-1", Role: RoleChild}
)

func newTestGame(t *testing.T, maxTurns, totalRounds int, tweak func(*Settings)) GameSession {
	t.Helper()
	settings := DefaultSettings()
	if tweak != nil {
		tweak(&settings)
	}
	g, err := New(Params{
		ID:          "game-1",
		SessionRef:  "therapy-1",
		GameType:    GameTypePronunciationPractice,
		Difficulty:  DifficultyEasy,
		SLPID:       slp.ID,
		ChildID:     child.ID,
		MaxTurns:    maxTurns,
		TotalRounds: totalRounds,
		Settings:    settings,
		Now:         fixedNow,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

// mustDecide applies cmd and fails the test on rejection
func mustDecide(t *testing.T, g GameSession, cmd Command) GameSession {
	t.Helper()
	d, err := Decide(g, cmd, clock)
	if err != nil {
		t.Fatalf("Decide(%s) error = %v", cmd.Type, err)
	}
	return d.Session
}

func TestHappyPathTurnsRoundsAndAutoEnd(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)

	g = mustDecide(t, g, Command{Type: CommandStart})
	if g.Status != StatusActive {
		t.Fatalf("status = %s, want active", g.Status)
	}
	if g.State.TurnNumber != 1 || g.CurrentPlayer() != RoleSLP || g.State.CurrentRound != 1 {
		t.Fatalf("after start: turn=%d player=%s round=%d", g.State.TurnNumber, g.CurrentPlayer(), g.State.CurrentRound)
	}

	want := []struct {
		turn   int
		player Role
		round  int
	}{
		{2, RoleChild, 1},
		{3, RoleSLP, 2},
		{4, RoleChild, 2},
	}
	for _, w := range want {
		g = mustDecide(t, g, Command{Type: CommandNextTurn})
		if g.State.TurnNumber != w.turn || g.CurrentPlayer() != w.player || g.State.CurrentRound != w.round {
			t.Fatalf("turn=%d player=%s round=%d, want turn=%d player=%s round=%d",
				g.State.TurnNumber, g.CurrentPlayer(), g.State.CurrentRound, w.turn, w.player, w.round)
		}
		if g.Status != StatusActive {
			t.Fatalf("status = %s at turn %d, want active", g.Status, w.turn)
		}
	}

	g = mustDecide(t, g, Command{Type: CommandNextTurn})
	if g.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", g.Status)
	}
	if g.State.TurnNumber != 4 {
		t.Errorf("turnNumber = %d, want it to stay at maxTurns", g.State.TurnNumber)
	}
	if g.Progress() != 1 {
		t.Errorf("Progress() = %v, want 1", g.Progress())
	}
	if g.CompletedAt == nil || !g.CompletedAt.Equal(fixedNow) {
		t.Errorf("CompletedAt = %v, want %v", g.CompletedAt, fixedNow)
	}

	_, err := Decide(g, Command{Type: CommandNextTurn}, clock)
	if !IsInvalidState(err) {
		t.Fatalf("nextTurn after completion error = %v, want InvalidStateError", err)
	}
}

func TestPauseResumePreservesTurnAndClock(t *testing.T) {
	g := newTestGame(t, 6, 2, func(s *Settings) { s.TimePerTurn = 45 })
	g = mustDecide(t, g, Command{Type: CommandStart})
	g = mustDecide(t, g, Command{Type: CommandNextTurn})
	g = mustDecide(t, g, Command{Type: CommandTick, Seconds: 15})
	if g.State.TurnNumber != 2 || g.State.TimeRemaining != 30 {
		t.Fatalf("setup: turn=%d timeRemaining=%d", g.State.TurnNumber, g.State.TimeRemaining)
	}

	paused := mustDecide(t, g, Command{Type: CommandPause, Actor: slp})
	if paused.Status != StatusPaused || !paused.State.IsPaused {
		t.Fatalf("pause: status=%s isPaused=%v", paused.Status, paused.State.IsPaused)
	}
	if n := len(paused.Actions); n != 1 || paused.Actions[0].Kind != ActionGamePaused {
		t.Fatalf("pause should append one game_paused action, got %+v", paused.Actions)
	}

	resumed := mustDecide(t, paused, Command{Type: CommandResume})
	if resumed.Status != StatusActive || resumed.State.IsPaused {
		t.Fatalf("resume: status=%s isPaused=%v", resumed.Status, resumed.State.IsPaused)
	}
	if resumed.State.TurnNumber != 2 {
		t.Errorf("turnNumber = %d, want 2", resumed.State.TurnNumber)
	}
	if resumed.State.TimeRemaining != 30 {
		t.Errorf("timeRemaining = %d, want 30", resumed.State.TimeRemaining)
	}
}

func TestScoringTieAfterEnd(t *testing.T) {
	g := newTestGame(t, 10, 2, nil)
	g = mustDecide(t, g, Command{Type: CommandStart})

	evals := []Command{
		{Type: CommandEvaluatePronunciation, Actor: slp, Word: "rabbit", Verdict: VerdictCorrect, Subject: RoleChild},
		{Type: CommandEvaluatePronunciation, Actor: slp, Word: "ladder", Verdict: VerdictCorrect, Subject: RoleChild},
		{Type: CommandEvaluatePronunciation, Actor: slp, Word: "sun", Verdict: VerdictCorrect, Subject: RoleSLP},
		{Type: CommandEvaluatePronunciation, Actor: slp, Word: "ship", Verdict: VerdictCorrect, Subject: RoleSLP},
	}
	for _, cmd := range evals {
		g = mustDecide(t, g, cmd)
	}
	if g.State.Score.Child != 2 || g.State.Score.SLP != 2 {
		t.Fatalf("score = %+v, want 2/2", g.State.Score)
	}

	if w, ok := g.Winner(); ok || w != WinnerNone {
		t.Fatalf("Winner() before end = (%s, %v), want (none, false)", w, ok)
	}

	g = mustDecide(t, g, Command{Type: CommandEnd})
	w, ok := g.Winner()
	if !ok || w != WinnerTie {
		t.Fatalf("Winner() = (%s, %v), want (tie, true)", w, ok)
	}
}

func TestPauseWhileWaitingIsRejected(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)

	d, err := Decide(g, Command{Type: CommandPause, Actor: slp}, clock)
	if err == nil {
		t.Fatal("expected error")
	}
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("error = %T, want *InvalidStateError", err)
	}
	if stateErr.Status != StatusWaiting || stateErr.Command != CommandPause {
		t.Errorf("error = %+v", stateErr)
	}
	if g.Status != StatusWaiting {
		t.Errorf("status = %s, want waiting", g.Status)
	}
	if !reflect.DeepEqual(d, Decision{}) {
		t.Errorf("rejected command returned a decision: %+v", d)
	}
}

func TestAutoAdvanceEvaluatesAndAdvances(t *testing.T) {
	g := newTestGame(t, 4, 2, func(s *Settings) { s.AutoAdvance = true })
	g = mustDecide(t, g, Command{Type: CommandStart})

	d, err := Decide(g, Command{Type: CommandEvaluatePronunciation, Actor: slp, Word: "rabbit", Verdict: VerdictCorrect}, clock)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if len(d.Actions) != 1 || d.Actions[0].Kind != ActionEvaluationGiven {
		t.Fatalf("appended = %+v, want one evaluation_given", d.Actions)
	}
	if d.Session.State.TurnNumber != 2 {
		t.Errorf("turnNumber = %d, want 2", d.Session.State.TurnNumber)
	}
	if d.Session.CurrentPlayer() != RoleChild {
		t.Errorf("current player = %s, want child", d.Session.CurrentPlayer())
	}
	// slp opened, so the child was being evaluated
	if d.Session.State.Score.Child != 1 {
		t.Errorf("child score = %v, want 1", d.Session.State.Score.Child)
	}
}

func TestEvaluatePronunciationScoring(t *testing.T) {
	tests := []struct {
		name          string
		verdict       Verdict
		partialCredit float64
		wantChild     float64
	}{
		{name: "correct awards a point", verdict: VerdictCorrect, wantChild: 1},
		{name: "incorrect awards nothing", verdict: VerdictIncorrect, wantChild: 0},
		{name: "partial defaults to zero", verdict: VerdictPartial, wantChild: 0},
		{name: "partial uses configured credit", verdict: VerdictPartial, partialCredit: 0.5, wantChild: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, 4, 1, func(s *Settings) { s.PartialCredit = tt.partialCredit })
			g = mustDecide(t, g, Command{Type: CommandStart})
			g = mustDecide(t, g, Command{Type: CommandEvaluatePronunciation, Actor: slp, Word: "rabbit", Verdict: tt.verdict, Notes: " lisp on r "})

			if g.State.Score.Child != tt.wantChild {
				t.Errorf("child score = %v, want %v", g.State.Score.Child, tt.wantChild)
			}
			if g.State.Score.SLP != 0 {
				t.Errorf("slp score = %v, want 0", g.State.Score.SLP)
			}
			p := g.Actions[len(g.Actions)-1].Payload
			if p == nil || p.Verdict != tt.verdict || p.Subject != RoleChild || p.Notes != "lisp on r" {
				t.Errorf("payload = %+v", p)
			}
		})
	}
}

func TestEvaluatePronunciationValidation(t *testing.T) {
	g := newTestGame(t, 4, 1, nil)
	g = mustDecide(t, g, Command{Type: CommandStart})

	tests := []struct {
		name  string
		cmd   Command
		field string
	}{
		{name: "empty word", cmd: Command{Actor: slp, Word: "  ", Verdict: VerdictCorrect}, field: "word"},
		{name: "unknown verdict", cmd: Command{Actor: slp, Word: "cat", Verdict: "great"}, field: "verdict"},
		{name: "missing actor", cmd: Command{Word: "cat", Verdict: VerdictCorrect}, field: "actor"},
		{name: "stranger actor", cmd: Command{Actor: Actor{ID: "someone"}, Word: "cat", Verdict: VerdictCorrect}, field: "actor"},
		{name: "mismatched role", cmd: Command{Actor: Actor{ID: slp.ID, Role: RoleChild}, Word: "cat", Verdict: VerdictCorrect}, field: "actor"},
		{name: "child gives verdict", cmd: Command{Actor: child, Word: "cat", Verdict: VerdictCorrect, Subject: RoleChild}, field: "actor"},
		{name: "bad subject", cmd: Command{Actor: slp, Word: "cat", Verdict: VerdictCorrect, Subject: "parent"}, field: "subject"},
		{name: "negative time", cmd: Command{Actor: slp, Word: "cat", Verdict: VerdictCorrect, TimeSpentMs: -1}, field: "timeSpentMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.Type = CommandEvaluatePronunciation
			_, err := Decide(g, tt.cmd, clock)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("field = %s, want %s", vErr.Field, tt.field)
			}
		})
	}
	if len(g.Actions) != 0 || g.State.Score != (Score{}) {
		t.Errorf("rejected commands mutated the snapshot: %+v", g)
	}
}

func TestTransitionsFromEachStatus(t *testing.T) {
	commands := []CommandType{
		CommandStart, CommandPause, CommandResume, CommandEnd, CommandCancel,
		CommandNextTurn, CommandSkipTurn, CommandRecordPronunciation,
		CommandEvaluatePronunciation, CommandTick,
	}
	allowed := map[Status]map[CommandType]bool{
		StatusWaiting: {CommandStart: true, CommandCancel: true},
		StatusActive: {
			CommandPause: true, CommandEnd: true, CommandCancel: true, CommandNextTurn: true,
			CommandSkipTurn: true, CommandRecordPronunciation: true, CommandEvaluatePronunciation: true, CommandTick: true,
		},
		StatusPaused:    {CommandResume: true, CommandEnd: true, CommandCancel: true},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for status, ok := range allowed {
		for _, ct := range commands {
			t.Run(string(status)+"/"+string(ct), func(t *testing.T) {
				g := newTestGame(t, 4, 2, nil)
				g.Status = status
				g.State.CurrentPlayer = RoleSLP
				cmd := Command{Type: ct, Actor: slp, Word: "cat", Verdict: VerdictCorrect, Seconds: 1}

				_, err := Decide(g, cmd, clock)
				if ok[ct] && err != nil {
					t.Fatalf("expected %s to be allowed from %s, got %v", ct, status, err)
				}
				if !ok[ct] && !IsInvalidState(err) {
					t.Fatalf("expected InvalidStateError for %s from %s, got %v", ct, status, err)
				}
			})
		}
	}
}

func TestCancelIsTerminal(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	g = mustDecide(t, g, Command{Type: CommandCancel})
	if g.Status != StatusCancelled || !g.IsGameOver() {
		t.Fatalf("status = %s, IsGameOver = %v", g.Status, g.IsGameOver())
	}
	if w, ok := g.Winner(); !ok || w != WinnerTie {
		t.Errorf("Winner() = (%s, %v), want (tie, true) with no points scored", w, ok)
	}
	if _, err := Decide(g, Command{Type: CommandStart}, clock); !IsInvalidState(err) {
		t.Errorf("start after cancel error = %v, want InvalidStateError", err)
	}
}

func TestSkipTurnLogsAndAdvances(t *testing.T) {
	g := newTestGame(t, 2, 1, nil)
	g = mustDecide(t, g, Command{Type: CommandStart})

	d, err := Decide(g, Command{Type: CommandSkipTurn, Actor: slp, Notes: "timeout"}, clock)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if len(d.Actions) != 1 || d.Actions[0].Kind != ActionTurnSkipped || d.Actions[0].Payload.Notes != "timeout" {
		t.Fatalf("appended = %+v", d.Actions)
	}
	if d.Session.State.TurnNumber != 2 || d.Session.CurrentPlayer() != RoleChild {
		t.Errorf("turn=%d player=%s", d.Session.State.TurnNumber, d.Session.CurrentPlayer())
	}

	// skipping the last turn ends the game
	g = mustDecide(t, d.Session, Command{Type: CommandSkipTurn, Actor: child})
	if g.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", g.Status)
	}
	if len(g.Actions) != 2 {
		t.Errorf("actions = %d, want 2", len(g.Actions))
	}
}

func TestRecordPronunciationAttempts(t *testing.T) {
	g := newTestGame(t, 4, 1, func(s *Settings) { s.MaxAttempts = 2 })
	g = mustDecide(t, g, Command{Type: CommandStart})

	g = mustDecide(t, g, Command{Type: CommandRecordPronunciation, Actor: child, Word: "rabbit", TimeSpentMs: 1200})
	g = mustDecide(t, g, Command{Type: CommandRecordPronunciation, Actor: child, Word: "Rabbit"})
	if g.State.Attempts != 2 || g.State.CurrentWord != "Rabbit" {
		t.Fatalf("attempts=%d word=%q", g.State.Attempts, g.State.CurrentWord)
	}

	_, err := Decide(g, Command{Type: CommandRecordPronunciation, Actor: child, Word: "rabbit"}, clock)
	if !IsValidation(err) {
		t.Fatalf("third attempt error = %v, want ValidationError", err)
	}

	// a new word starts a fresh attempt count
	g = mustDecide(t, g, Command{Type: CommandRecordPronunciation, Actor: child, Word: "ladder"})
	if g.State.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", g.State.Attempts)
	}

	// the next turn clears the word
	g = mustDecide(t, g, Command{Type: CommandNextTurn})
	if g.State.Attempts != 0 || g.State.CurrentWord != "" {
		t.Errorf("after next turn attempts=%d word=%q", g.State.Attempts, g.State.CurrentWord)
	}
	if got := g.Actions[0].Payload.TimeSpentMs; got != 1200 {
		t.Errorf("timeSpentMs = %d, want 1200", got)
	}
}

func TestTickFloorsAtZero(t *testing.T) {
	g := newTestGame(t, 4, 1, func(s *Settings) { s.TimePerTurn = 10 })
	g = mustDecide(t, g, Command{Type: CommandStart})

	if _, err := Decide(g, Command{Type: CommandTick}, clock); !IsValidation(err) {
		t.Fatalf("zero tick error = %v, want ValidationError", err)
	}

	g = mustDecide(t, g, Command{Type: CommandTick, Seconds: 4})
	if g.State.TimeRemaining != 6 || g.TurnExpired() {
		t.Fatalf("timeRemaining = %d, expired = %v", g.State.TimeRemaining, g.TurnExpired())
	}
	g = mustDecide(t, g, Command{Type: CommandTick, Seconds: 20})
	if g.State.TimeRemaining != 0 || !g.TurnExpired() {
		t.Fatalf("timeRemaining = %d, expired = %v", g.State.TimeRemaining, g.TurnExpired())
	}
	g = mustDecide(t, g, Command{Type: CommandNextTurn})
	if g.State.TimeRemaining != 10 {
		t.Errorf("next turn timeRemaining = %d, want 10", g.State.TimeRemaining)
	}
}

func TestDecideDoesNotMutateInput(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	g = mustDecide(t, g, Command{Type: CommandStart})
	g = mustDecide(t, g, Command{Type: CommandRecordPronunciation, Actor: child, Word: "sun"})
	g.Actions = append(make([]Action, 0, 8), g.Actions...) // spare capacity

	before := g
	beforeActions := append([]Action(nil), g.Actions...)

	a, err := Decide(g, Command{Type: CommandEvaluatePronunciation, Actor: slp, Word: "sun", Verdict: VerdictCorrect}, clock)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decide(g, Command{Type: CommandSkipTurn, Actor: slp}, clock)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(g.Actions, beforeActions) || g.State != before.State || g.Version != before.Version {
		t.Fatal("Decide mutated its input snapshot")
	}
	if a.Session.Actions[1].Kind != ActionEvaluationGiven || b.Session.Actions[1].Kind != ActionTurnSkipped {
		t.Fatal("decisions from the same snapshot overwrote each other")
	}
}

func TestVersionAndTimestamps(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	if g.Version != 0 {
		t.Fatalf("initial version = %d", g.Version)
	}
	later := fixedNow.Add(time.Minute)
	d, err := Decide(g, Command{Type: CommandStart}, func() time.Time { return later })
	if err != nil {
		t.Fatal(err)
	}
	if d.Session.Version != 1 {
		t.Errorf("version = %d, want 1", d.Session.Version)
	}
	if !d.Session.UpdatedAt.Equal(later) || d.Session.StartedAt == nil || !d.Session.StartedAt.Equal(later) {
		t.Errorf("updatedAt=%v startedAt=%v", d.Session.UpdatedAt, d.Session.StartedAt)
	}
}

func TestUnknownCommand(t *testing.T) {
	g := newTestGame(t, 4, 2, nil)
	if _, err := Decide(g, Command{Type: "dance"}, clock); !IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}
}
