package service

import (
	"time"

	"speechplay/internal/game"
)

// VerdictCounts tallies evaluations of one participant
type VerdictCounts struct {
	Correct   int `json:"correct"`
	Partial   int `json:"partial"`
	Incorrect int `json:"incorrect"`
}

// Total returns the number of evaluations
func (c VerdictCounts) Total() int {
	return c.Correct + c.Partial + c.Incorrect
}

// GameSummary is what a finished game is reported as
type GameSummary struct {
	GameID         string        `json:"gameId"`
	Status         game.Status   `json:"status"`
	Winner         game.Winner   `json:"winner"`
	Score          game.Score    `json:"score"`
	ReplayedScore  game.Score    `json:"replayedScore"`
	CompletedTurns int           `json:"completedTurns"`
	MaxTurns       int           `json:"maxTurns"`
	SLP            VerdictCounts `json:"slp"`
	Child          VerdictCounts `json:"child"`
	Pronunciations int           `json:"pronunciations"`
	SkippedTurns   int           `json:"skippedTurns"`
	Pauses         int           `json:"pauses"`
	Duration       time.Duration `json:"duration"`
}

// Consistent reports whether replaying the action log reproduces the
// stored score
func (s GameSummary) Consistent() bool {
	return s.Score == s.ReplayedScore
}

// Summarize replays the action log of g
func Summarize(g game.GameSession) GameSummary {
	winner, _ := g.Winner()
	s := GameSummary{
		GameID:         g.ID,
		Status:         g.Status,
		Winner:         winner,
		Score:          g.State.Score,
		CompletedTurns: g.State.CompletedTurns,
		MaxTurns:       g.State.MaxTurns,
	}
	if g.StartedAt != nil && g.CompletedAt != nil {
		s.Duration = g.CompletedAt.Sub(*g.StartedAt)
	}

	for _, a := range g.Actions {
		switch a.Kind {
		case game.ActionWordPronounced:
			s.Pronunciations++
		case game.ActionTurnSkipped:
			s.SkippedTurns++
		case game.ActionGamePaused:
			s.Pauses++
		case game.ActionEvaluationGiven:
			if a.Payload == nil {
				continue
			}
			counts := &s.SLP
			if a.Payload.Subject == game.RoleChild {
				counts = &s.Child
				s.ReplayedScore.Child += a.Payload.Points
			} else {
				s.ReplayedScore.SLP += a.Payload.Points
			}
			switch a.Payload.Verdict {
			case game.VerdictCorrect:
				counts.Correct++
			case game.VerdictPartial:
				counts.Partial++
			case game.VerdictIncorrect:
				counts.Incorrect++
			}
		}
	}
	return s
}
