package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"speechplay/internal/game"
	"speechplay/internal/lock"
	"speechplay/internal/metrics"
	"speechplay/internal/presets"
	"speechplay/internal/repository"
)

// GameStore is the persistence the game service needs
type GameStore interface {
	Create(ctx context.Context, g game.GameSession) error
	Get(ctx context.Context, id string) (game.GameSession, error)
	Save(ctx context.Context, g game.GameSession, appended []game.Action, expectedVersion int64) error
	ListByTherapySession(ctx context.Context, sessionRef string) ([]game.GameSession, error)
	ListActive(ctx context.Context) ([]game.GameSession, error)
}

// Notifier is told about every game that reaches completed status
type Notifier interface {
	GameCompleted(ctx context.Context, g game.GameSession) error
}

// notifyTimeout bounds a completion notice, which outlives the request
const notifyTimeout = 30 * time.Second

// SettingsInput carries caller overrides; nil fields keep the preset value
type SettingsInput struct {
	TimePerTurn   *int                `json:"timePerTurn,omitempty"`
	MaxAttempts   *int                `json:"maxAttempts,omitempty"`
	HintsEnabled  *bool               `json:"hintsEnabled,omitempty"`
	SoundEffects  *bool               `json:"soundEffects,omitempty"`
	AutoAdvance   *bool               `json:"autoAdvance,omitempty"`
	StartingRole  *game.Role          `json:"startingRole,omitempty"`
	PartialCredit *float64            `json:"partialCredit,omitempty"`
	RoundRounding *game.RoundRounding `json:"roundRounding,omitempty"`
}

// Apply returns base with every non-nil override applied
func (in *SettingsInput) Apply(base game.Settings) game.Settings {
	if in == nil {
		return base
	}
	if in.TimePerTurn != nil {
		base.TimePerTurn = *in.TimePerTurn
	}
	if in.MaxAttempts != nil {
		base.MaxAttempts = *in.MaxAttempts
	}
	if in.HintsEnabled != nil {
		base.HintsEnabled = *in.HintsEnabled
	}
	if in.SoundEffects != nil {
		base.SoundEffects = *in.SoundEffects
	}
	if in.AutoAdvance != nil {
		base.AutoAdvance = *in.AutoAdvance
	}
	if in.StartingRole != nil {
		base.StartingRole = *in.StartingRole
	}
	if in.PartialCredit != nil {
		base.PartialCredit = *in.PartialCredit
	}
	if in.RoundRounding != nil {
		base.RoundRounding = *in.RoundRounding
	}
	return base
}

// CreateGameInput describes a new game. Zero MaxTurns or TotalRounds take
// the difficulty preset.
type CreateGameInput struct {
	SessionRef  string          `json:"sessionRef"`
	GameType    game.GameType   `json:"gameType"`
	Difficulty  game.Difficulty `json:"difficulty"`
	SLPID       string          `json:"slpId"`
	ChildID     string          `json:"childId"`
	MaxTurns    int             `json:"maxTurns,omitempty"`
	TotalRounds int             `json:"totalRounds,omitempty"`
	Settings    *SettingsInput  `json:"settings,omitempty"`
}

// GameView is a snapshot together with the derived query results
type GameView struct {
	Game          game.GameSession `json:"game"`
	CurrentPlayer game.Role        `json:"currentPlayer,omitempty"`
	Progress      float64          `json:"progress"`
	IsGameOver    bool             `json:"isGameOver"`
	Winner        *game.Winner     `json:"winner,omitempty"`
}

// NewGameView derives the query results of g
func NewGameView(g game.GameSession) GameView {
	v := GameView{
		Game:          g,
		CurrentPlayer: g.CurrentPlayer(),
		Progress:      g.Progress(),
		IsGameOver:    g.IsGameOver(),
	}
	if w, ok := g.Winner(); ok {
		v.Winner = &w
	}
	return v
}

// GameServiceOptions tunes locking and conflict retries
type GameServiceOptions struct {
	// LockWait bounds how long a command waits for the game lock
	LockWait time.Duration
	// RetryMaxElapsed bounds the total time spent retrying version conflicts
	RetryMaxElapsed time.Duration
	Now             func() time.Time
	NewID           func() string
}

// GameService runs commands against persisted games, one writer per game
type GameService struct {
	store    GameStore
	locker   lock.Locker
	presets  presets.Set
	metrics  *metrics.Metrics
	notifier Notifier
	opts     GameServiceOptions
}

// NewGameService creates a new game service. notifier may be nil.
func NewGameService(store GameStore, locker lock.Locker, set presets.Set, m *metrics.Metrics, notifier Notifier, opts GameServiceOptions) *GameService {
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if set == nil {
		set = presets.Builtin()
	}
	if m == nil {
		m = metrics.New()
	}
	return &GameService{
		store:    store,
		locker:   locker,
		presets:  set,
		metrics:  m,
		notifier: notifier,
		opts:     opts,
	}
}

// CreateGame resolves settings (explicit input over difficulty preset over
// built-in defaults) and persists a new game in waiting status
func (s *GameService) CreateGame(ctx context.Context, in CreateGameInput) (game.GameSession, error) {
	preset := s.presets.For(in.Difficulty)

	maxTurns := in.MaxTurns
	if maxTurns == 0 {
		maxTurns = preset.MaxTurns
	}
	totalRounds := in.TotalRounds
	if totalRounds == 0 {
		totalRounds = preset.TotalRounds
		if totalRounds > maxTurns {
			totalRounds = maxTurns
		}
	}

	g, err := game.New(game.Params{
		ID:          s.opts.NewID(),
		SessionRef:  in.SessionRef,
		GameType:    in.GameType,
		Difficulty:  in.Difficulty,
		SLPID:       in.SLPID,
		ChildID:     in.ChildID,
		MaxTurns:    maxTurns,
		TotalRounds: totalRounds,
		Settings:    in.Settings.Apply(preset.Settings),
		Now:         s.opts.Now(),
	})
	if err != nil {
		return game.GameSession{}, err
	}

	if err := s.store.Create(ctx, g); err != nil {
		return game.GameSession{}, fmt.Errorf("failed to create game: %w", err)
	}
	s.metrics.GamesCreated.Inc()

	logrus.WithFields(logrus.Fields{
		"game_id":     g.ID,
		"session_ref": g.SessionRef,
		"game_type":   g.GameType,
		"difficulty":  g.Difficulty,
	}).Info("game created")
	return g, nil
}

// Execute applies cmd to the game while holding its lock. Version conflicts
// are retried on a fresh snapshot with exponential backoff; domain errors
// are returned as is.
func (s *GameService) Execute(ctx context.Context, gameID string, cmd game.Command) (game.GameSession, error) {
	return s.run(ctx, gameID, cmd.Type, func(g game.GameSession) (game.Decision, error) {
		return game.Decide(g, cmd, s.opts.Now)
	})
}

// Tick takes seconds off the turn clock. When the clock reaches zero the
// current player's turn is skipped in the same write, so no other command
// can slip in between. expired reports whether that happened.
func (s *GameService) Tick(ctx context.Context, gameID string, seconds int) (g game.GameSession, expired bool, err error) {
	g, err = s.run(ctx, gameID, game.CommandTick, func(g game.GameSession) (game.Decision, error) {
		expired = false
		ticked, err := game.Decide(g, game.Command{Type: game.CommandTick, Seconds: seconds}, s.opts.Now)
		if err != nil || !ticked.Session.TurnExpired() {
			return ticked, err
		}

		current := ticked.Session
		skipped, err := game.Decide(current, game.Command{
			Type:  game.CommandSkipTurn,
			Actor: game.Actor{ID: current.ParticipantID(current.CurrentPlayer())},
			Notes: TimeoutReason,
		}, s.opts.Now)
		if err != nil {
			return game.Decision{}, err
		}
		expired = true
		return game.Decision{
			Session: skipped.Session,
			Actions: append(ticked.Actions, skipped.Actions...),
		}, nil
	})
	return g, expired, err
}

// run holds the game lock while step is applied to the latest snapshot
// and saved
func (s *GameService) run(ctx context.Context, gameID string, command game.CommandType, step func(game.GameSession) (game.Decision, error)) (game.GameSession, error) {
	log := logrus.WithFields(logrus.Fields{"game_id": gameID, "command": command})

	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	release, err := s.locker.Acquire(lockCtx, gameID)
	cancel()
	if err != nil {
		s.metrics.CommandProcessed(string(command), resultLabel(err))
		return game.GameSession{}, err
	}

	var before game.GameSession
	var decision game.Decision
	attempt := func() error {
		g, err := s.store.Get(ctx, gameID)
		if err != nil {
			return backoff.Permanent(err)
		}
		d, err := step(g)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := s.store.Save(ctx, d.Session, d.Actions, g.Version); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				s.metrics.Retries.Inc()
				log.WithField("version", g.Version).Debug("version conflict, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		before, decision = g, d
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = s.opts.RetryMaxElapsed
	err = backoff.Retry(attempt, backoff.WithContext(b, ctx))
	release()
	if err != nil {
		result := resultLabel(err)
		s.metrics.CommandProcessed(string(command), result)
		if result == metrics.ResultError {
			log.WithError(err).Error("command failed")
		}
		return game.GameSession{}, err
	}

	next := decision.Session
	s.metrics.CommandProcessed(string(command), metrics.ResultOK)
	log.WithFields(logrus.Fields{"status": next.Status, "version": next.Version}).Debug("command applied")

	if !before.IsGameOver() && next.IsGameOver() {
		s.finished(ctx, next)
	}
	return next, nil
}

// finished is called with the game lock already released
func (s *GameService) finished(ctx context.Context, g game.GameSession) {
	winner, _ := g.Winner()
	s.metrics.GameFinished(string(winner))
	logrus.WithFields(logrus.Fields{
		"game_id":     g.ID,
		"status":      g.Status,
		"winner":      winner,
		"slp_score":   g.State.Score.SLP,
		"child_score": g.State.Score.Child,
	}).Info("game finished")

	if g.Status != game.StatusCompleted || s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.GameCompleted(notifyCtx, g); err != nil {
		logrus.WithError(err).WithField("game_id", g.ID).Warn("failed to send game summary")
	}
}

// GetGame loads one game with its action log
func (s *GameService) GetGame(ctx context.Context, gameID string) (game.GameSession, error) {
	return s.store.Get(ctx, gameID)
}

// View loads one game and derives its query results
func (s *GameService) View(ctx context.Context, gameID string) (GameView, error) {
	g, err := s.store.Get(ctx, gameID)
	if err != nil {
		return GameView{}, err
	}
	return NewGameView(g), nil
}

// ListGamesForSession lists the games of one therapy session
func (s *GameService) ListGamesForSession(ctx context.Context, sessionRef string) ([]game.GameSession, error) {
	games, err := s.store.ListByTherapySession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []game.GameSession{}
	}
	return games, nil
}

// ListActiveGames lists every game in active status
func (s *GameService) ListActiveGames(ctx context.Context) ([]game.GameSession, error) {
	return s.store.ListActive(ctx)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case game.IsValidation(err):
		return metrics.ResultRejected
	case game.IsInvalidState(err):
		return metrics.ResultInvalidState
	case errors.Is(err, repository.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, repository.ErrConflict):
		return metrics.ResultConflict
	case errors.Is(err, lock.ErrTimeout):
		return metrics.ResultLockTimeout
	}
	return metrics.ResultError
}
