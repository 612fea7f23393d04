package game

import "math"

// Settings holds the per-game configuration. It is fixed at creation.
type Settings struct {
	TimePerTurn   int           `json:"timePerTurn" yaml:"time_per_turn"` // seconds
	MaxAttempts   int           `json:"maxAttempts" yaml:"max_attempts"`  // per word, 0 = unlimited
	HintsEnabled  bool          `json:"hintsEnabled" yaml:"hints_enabled"`
	SoundEffects  bool          `json:"soundEffects" yaml:"sound_effects"`
	AutoAdvance   bool          `json:"autoAdvance" yaml:"auto_advance"`
	StartingRole  Role          `json:"startingRole" yaml:"starting_role"`
	PartialCredit float64       `json:"partialCredit" yaml:"partial_credit"`
	RoundRounding RoundRounding `json:"roundRounding" yaml:"round_rounding"`
}

// DefaultSettings returns the settings used when nothing else is configured
func DefaultSettings() Settings {
	return Settings{
		TimePerTurn:   30,
		MaxAttempts:   3,
		HintsEnabled:  true,
		SoundEffects:  true,
		AutoAdvance:   false,
		StartingRole:  RoleSLP,
		PartialCredit: 0,
		RoundRounding: RoundCeil,
	}
}

// Validate checks the settings are usable
func (s Settings) Validate() error {
	if s.TimePerTurn < 1 {
		return invalid("timePerTurn", "must be at least 1 second")
	}
	if s.MaxAttempts < 0 {
		return invalid("maxAttempts", "must not be negative")
	}
	if !s.StartingRole.Valid() {
		return invalid("startingRole", "must be slp or child")
	}
	if math.IsNaN(s.PartialCredit) || s.PartialCredit < 0 || s.PartialCredit > 1 {
		return invalid("partialCredit", "must be between 0 and 1")
	}
	if !s.RoundRounding.Valid() {
		return invalid("roundRounding", "must be ceil or floor")
	}
	return nil
}

// Points returns the score awarded for a verdict under these settings
func (s Settings) Points(v Verdict) float64 {
	switch v {
	case VerdictCorrect:
		return 1
	case VerdictPartial:
		return s.PartialCredit
	}
	return 0
}

// TurnsPerRound derives how many consecutive turns make up a round.
// The result is never below 1.
func (s Settings) TurnsPerRound(maxTurns, totalRounds int) int {
	if totalRounds < 1 {
		return maxTurns
	}
	n := maxTurns / totalRounds
	if s.RoundRounding != RoundFloor && maxTurns%totalRounds != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// RoundFor returns the 1-based round that turn belongs to, capped at totalRounds.
func (s Settings) RoundFor(turn, maxTurns, totalRounds int) int {
	round := (turn-1)/s.TurnsPerRound(maxTurns, totalRounds) + 1
	if round > totalRounds {
		round = totalRounds
	}
	if round < 1 {
		round = 1
	}
	return round
}
