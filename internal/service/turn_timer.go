package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"speechplay/internal/game"
)

// TimeoutReason is recorded on turns the timer skips
const TimeoutReason = "timeout"

// TurnTimer counts down the turn clock of every active game and skips
// turns that run out of time
type TurnTimer struct {
	games    *GameService
	interval time.Duration
}

// NewTurnTimer creates a timer that fires every interval
func NewTurnTimer(games *GameService, interval time.Duration) *TurnTimer {
	return &TurnTimer{games: games, interval: interval}
}

// Run ticks until ctx is cancelled. Sub-second intervals accumulate until
// a whole second has passed.
func (t *TurnTimer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	logrus.WithField("interval", t.interval).Info("turn timer started")
	var pending time.Duration
	for {
		select {
		case <-ctx.Done():
			logrus.Info("turn timer stopped")
			return
		case <-ticker.C:
			pending += t.interval
			seconds := int(pending / time.Second)
			if seconds == 0 {
				continue
			}
			pending -= time.Duration(seconds) * time.Second
			t.Sweep(ctx, seconds)
		}
	}
}

// Sweep takes seconds off every active game and skips expired turns.
// It returns the number of turns skipped.
func (t *TurnTimer) Sweep(ctx context.Context, seconds int) int {
	active, err := t.games.ListActiveGames(ctx)
	if err != nil {
		logrus.WithError(err).Error("turn timer failed to list active games")
		return 0
	}

	skipped := 0
	for _, g := range active {
		if ctx.Err() != nil {
			return skipped
		}
		log := logrus.WithField("game_id", g.ID)

		next, expired, err := t.games.Tick(ctx, g.ID, seconds)
		if err != nil {
			// paused or finished since it was listed
			if game.IsInvalidState(err) {
				log.WithError(err).Debug("tick skipped")
				continue
			}
			log.WithError(err).Warn("tick failed")
			continue
		}
		if expired {
			skipped++
			log.WithFields(logrus.Fields{"turn": next.State.TurnNumber, "status": next.Status}).Info("turn timed out")
		}
	}
	return skipped
}
