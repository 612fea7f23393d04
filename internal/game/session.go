package game

import (
	"fmt"
	"strings"
	"time"
)

// Score holds the independent point counters of both roles
type Score struct {
	SLP   float64 `json:"slp"`
	Child float64 `json:"child"`
}

// For returns the score of role r
func (s Score) For(r Role) float64 {
	if r == RoleChild {
		return s.Child
	}
	return s.SLP
}

func (s *Score) add(r Role, points float64) {
	if points <= 0 {
		return
	}
	switch r {
	case RoleSLP:
		s.SLP += points
	case RoleChild:
		s.Child += points
	}
}

// GameState is the mutable current-turn snapshot
type GameState struct {
	CurrentWord    string `json:"currentWord"`
	CurrentPlayer  Role   `json:"currentPlayer,omitempty"`
	TurnNumber     int    `json:"turnNumber"`
	MaxTurns       int    `json:"maxTurns"`
	Score          Score  `json:"score"`
	CurrentRound   int    `json:"currentRound"`
	TotalRounds    int    `json:"totalRounds"`
	TimeRemaining  int    `json:"timeRemaining"`
	IsPaused       bool   `json:"isPaused"`
	Attempts       int    `json:"attempts"`
	CompletedTurns int    `json:"completedTurns"`
}

// Actor identifies who performed an action
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// ActionPayload carries the optional details of an action
type ActionPayload struct {
	Word        string  `json:"word,omitempty"`
	Verdict     Verdict `json:"verdict,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	TimeSpentMs int     `json:"timeSpentMs,omitempty"`
	Subject     Role    `json:"subject,omitempty"`
	Points      float64 `json:"points,omitempty"`
}

// Action is one immutable entry of the action log
type Action struct {
	Seq     int            `json:"seq"`
	Actor   Actor          `json:"actor"`
	Kind    ActionKind     `json:"kind"`
	At      time.Time      `json:"at"`
	Payload *ActionPayload `json:"payload,omitempty"`
}

// GameSession is the aggregate root of one game instance
type GameSession struct {
	ID          string     `json:"id"`
	SessionRef  string     `json:"sessionRef"`
	GameType    GameType   `json:"gameType"`
	Difficulty  Difficulty `json:"difficulty"`
	SLPID       string     `json:"slpId"`
	ChildID     string     `json:"childId"`
	Status      Status     `json:"status"`
	State       GameState  `json:"state"`
	Actions     []Action   `json:"actions"`
	Settings    Settings   `json:"settings"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Params are the inputs supplied once when a game is created
type Params struct {
	ID          string
	SessionRef  string
	GameType    GameType
	Difficulty  Difficulty
	SLPID       string
	ChildID     string
	MaxTurns    int
	TotalRounds int
	Settings    Settings
	Now         time.Time
}

// New validates p and returns a game in waiting status
func New(p Params) (GameSession, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.SessionRef = strings.TrimSpace(p.SessionRef)
	p.SLPID = strings.TrimSpace(p.SLPID)
	p.ChildID = strings.TrimSpace(p.ChildID)

	switch {
	case p.ID == "":
		return GameSession{}, invalid("id", "is required")
	case p.SessionRef == "":
		return GameSession{}, invalid("sessionRef", "is required")
	case p.SLPID == "":
		return GameSession{}, invalid("slpId", "is required")
	case p.ChildID == "":
		return GameSession{}, invalid("childId", "is required")
	case p.SLPID == p.ChildID:
		return GameSession{}, invalid("childId", "must differ from slpId")
	case !p.GameType.Valid():
		return GameSession{}, invalid("gameType", "unknown game type")
	case !p.Difficulty.Valid():
		return GameSession{}, invalid("difficulty", "unknown difficulty")
	case p.MaxTurns < 1:
		return GameSession{}, invalid("maxTurns", "must be at least 1")
	case p.TotalRounds < 1 || p.TotalRounds > p.MaxTurns:
		return GameSession{}, invalid("totalRounds", "must be between 1 and maxTurns")
	}
	if err := p.Settings.Validate(); err != nil {
		return GameSession{}, err
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}
	now := p.Now.UTC()

	return GameSession{
		ID:         p.ID,
		SessionRef: p.SessionRef,
		GameType:   p.GameType,
		Difficulty: p.Difficulty,
		SLPID:      p.SLPID,
		ChildID:    p.ChildID,
		Status:     StatusWaiting,
		State: GameState{
			TurnNumber:    1,
			MaxTurns:      p.MaxTurns,
			CurrentRound:  1,
			TotalRounds:   p.TotalRounds,
			TimeRemaining: p.Settings.TimePerTurn,
		},
		Actions:   []Action{},
		Settings:  p.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks a snapshot that did not come out of New or Decide, such
// as one read from an export, against the invariants those maintain.
func (g GameSession) Validate() error {
	st := g.State
	switch {
	case strings.TrimSpace(g.ID) == "":
		return invalid("id", "is required")
	case strings.TrimSpace(g.SessionRef) == "":
		return invalid("sessionRef", "is required")
	case g.SLPID == "" || g.ChildID == "" || g.SLPID == g.ChildID:
		return invalid("participants", "need distinct slp and child ids")
	case !g.GameType.Valid():
		return invalid("gameType", "unknown game type")
	case !g.Difficulty.Valid():
		return invalid("difficulty", "unknown difficulty")
	case !g.Status.Valid():
		return invalid("status", "unknown status "+string(g.Status))
	case st.MaxTurns < 1:
		return invalid("maxTurns", "must be at least 1")
	case st.TotalRounds < 1 || st.TotalRounds > st.MaxTurns:
		return invalid("totalRounds", "must be between 1 and maxTurns")
	case st.TurnNumber < 1 || st.TurnNumber > st.MaxTurns:
		return invalid("turnNumber", "must be between 1 and maxTurns")
	case st.CurrentRound < 1 || st.CurrentRound > st.TotalRounds:
		return invalid("currentRound", "must be between 1 and totalRounds")
	case st.CompletedTurns < 0 || st.CompletedTurns > st.MaxTurns:
		return invalid("completedTurns", "must be between 0 and maxTurns")
	case st.Score.SLP < 0 || st.Score.Child < 0:
		return invalid("score", "must not be negative")
	case st.TimeRemaining < 0:
		return invalid("timeRemaining", "must not be negative")
	case st.Attempts < 0:
		return invalid("attempts", "must not be negative")
	case (g.Status == StatusActive || g.Status == StatusPaused) && !st.CurrentPlayer.Valid():
		return invalid("currentPlayer", "must be slp or child while the game is running")
	case g.Status != StatusWaiting && g.Version < 1:
		return invalid("version", "must be positive once the game has started")
	case g.Version < int64(len(g.Actions)):
		return invalid("version", "is behind the action log")
	}
	if err := g.Settings.Validate(); err != nil {
		return err
	}

	for i, a := range g.Actions {
		switch {
		case a.Seq != i+1:
			return invalid("actions", fmt.Sprintf("out of sequence at position %d", i+1))
		case !a.Kind.Valid():
			return invalid("actions", fmt.Sprintf("unknown kind %q at position %d", a.Kind, i+1))
		case g.RoleOf(a.Actor.ID) == "":
			return invalid("actions", fmt.Sprintf("actor %q at position %d is not a participant", a.Actor.ID, i+1))
		case a.Actor.Role != "" && a.Actor.Role != g.RoleOf(a.Actor.ID):
			return invalid("actions", fmt.Sprintf("actor role mismatch at position %d", i+1))
		}
	}
	return nil
}

// RoleOf returns the role held by participant id, or "" if id is not a participant.
func (g GameSession) RoleOf(id string) Role {
	switch id {
	case "":
		return ""
	case g.SLPID:
		return RoleSLP
	case g.ChildID:
		return RoleChild
	}
	return ""
}

// ParticipantID returns the participant id holding role r
func (g GameSession) ParticipantID(r Role) string {
	switch r {
	case RoleSLP:
		return g.SLPID
	case RoleChild:
		return g.ChildID
	}
	return ""
}

// CurrentPlayer returns whose turn it is; "" before the game starts.
func (g GameSession) CurrentPlayer() Role {
	return g.State.CurrentPlayer
}

// Progress returns completed turns over maxTurns, in [0, 1]
func (g GameSession) Progress() float64 {
	if g.State.MaxTurns <= 0 {
		return 0
	}
	p := float64(g.State.CompletedTurns) / float64(g.State.MaxTurns)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// IsGameOver reports whether the game reached a terminal status
func (g GameSession) IsGameOver() bool {
	return g.Status.IsTerminal()
}

// Winner compares the final scores. ok is false, with WinnerNone, while
// the game is not over.
func (g GameSession) Winner() (winner Winner, ok bool) {
	if !g.IsGameOver() {
		return WinnerNone, false
	}
	switch {
	case g.State.Score.SLP > g.State.Score.Child:
		return WinnerSLP, true
	case g.State.Score.Child > g.State.Score.SLP:
		return WinnerChild, true
	}
	return WinnerTie, true
}

// TurnExpired reports whether the active turn ran out of time
func (g GameSession) TurnExpired() bool {
	return g.Status == StatusActive && g.State.TimeRemaining <= 0
}
