package game

// Role identifies which side of a session a participant plays.
type Role string

const (
	RoleSLP   Role = "slp"
	RoleChild Role = "child"
)

// Valid reports whether r is one of the two session roles.
func (r Role) Valid() bool {
	return r == RoleSLP || r == RoleChild
}

// Other returns the opposite role. It returns "" for an invalid role.
func (r Role) Other() Role {
	switch r {
	case RoleSLP:
		return RoleChild
	case RoleChild:
		return RoleSLP
	}
	return ""
}

// Status is the lifecycle status of a game session
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the five lifecycle statuses
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further mutation is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// GameType tags the kind of exercise being played
type GameType string

const (
	GameTypePronunciationPractice GameType = "pronunciation-practice"
	GameTypeWordRecognition       GameType = "word-recognition"
	GameTypeSoundMatching         GameType = "sound-matching"
	GameTypeLanguageComprehension GameType = "language-comprehension"
)

// Valid reports whether t is a known game type
func (t GameType) Valid() bool {
	switch t {
	case GameTypePronunciationPractice, GameTypeWordRecognition, GameTypeSoundMatching, GameTypeLanguageComprehension:
		return true
	}
	return false
}

// Difficulty tags how hard the word set is
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Verdict is the clinician's judgment of a pronunciation attempt
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictPartial   Verdict = "partial"
)

// Valid reports whether v is a known verdict
func (v Verdict) Valid() bool {
	return v == VerdictCorrect || v == VerdictIncorrect || v == VerdictPartial
}

// ActionKind classifies an entry of the action log
type ActionKind string

const (
	ActionWordPronounced  ActionKind = "word_pronounced"
	ActionEvaluationGiven ActionKind = "evaluation_given"
	ActionTurnSkipped     ActionKind = "turn_skipped"
	ActionGamePaused      ActionKind = "game_paused"
)

// Valid reports whether k is a known action kind
func (k ActionKind) Valid() bool {
	switch k {
	case ActionWordPronounced, ActionEvaluationGiven, ActionTurnSkipped, ActionGamePaused:
		return true
	}
	return false
}

// Winner is the outcome of a finished game. WinnerNone means the game is
// still undecided and is distinct from WinnerTie.
type Winner string

const (
	WinnerNone  Winner = "none"
	WinnerSLP   Winner = "slp"
	WinnerChild Winner = "child"
	WinnerTie   Winner = "tie"
)

// RoundRounding selects how turns per round are derived from
// maxTurns / totalRounds when the division is not exact.
type RoundRounding string

const (
	RoundCeil  RoundRounding = "ceil"
	RoundFloor RoundRounding = "floor"
)

// Valid reports whether r is a known rounding mode
func (r RoundRounding) Valid() bool {
	return r == RoundCeil || r == RoundFloor
}
