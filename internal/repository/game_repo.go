package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"speechplay/internal/database"
	"speechplay/internal/game"
)

var (
	// ErrNotFound is returned when a game does not exist
	ErrNotFound = errors.New("game not found")
	// ErrConflict is returned when a write lost an optimistic version check
	// or an id is already taken
	ErrConflict = errors.New("game was modified concurrently")
)

// GameRepository persists game snapshots and their append-only action logs
type GameRepository struct {
	db *database.DB
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{db: db}
}

const selectGameColumns = `
	SELECT id, session_ref, game_type, difficulty, slp_id, child_id, status,
	       state, settings, version, created_at, updated_at, started_at, completed_at
	FROM games`

// Create inserts a new game snapshot together with any actions it already holds
func (r *GameRepository) Create(ctx context.Context, g game.GameSession) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		state, settings, err := encodeGame(g)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO games (id, session_ref, game_type, difficulty, slp_id, child_id, status,
			                   state, settings, version, created_at, updated_at, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			g.ID, g.SessionRef, string(g.GameType), string(g.Difficulty), g.SLPID, g.ChildID, string(g.Status),
			state, settings, g.Version, g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
			nullTime(g.StartedAt), nullTime(g.CompletedAt),
		)
		if err != nil {
			if tx.GetDialect().IsUniqueViolation(err) {
				return fmt.Errorf("%w: id %s already exists", ErrConflict, g.ID)
			}
			return fmt.Errorf("failed to insert game: %w", err)
		}

		return insertActions(ctx, tx, g.ID, g.Actions)
	})
}

// Get loads a game snapshot and its full action log ordered by sequence
func (r *GameRepository) Get(ctx context.Context, id string) (game.GameSession, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, selectGameColumns+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return game.GameSession{}, ErrNotFound
	}
	if err != nil {
		return game.GameSession{}, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	actions, err := r.actions(ctx, id)
	if err != nil {
		return game.GameSession{}, err
	}
	g.Actions = actions
	return g, nil
}

// Save writes the new snapshot if the stored version still equals
// expectedVersion, then appends the new actions. Existing action rows are
// never rewritten.
func (r *GameRepository) Save(ctx context.Context, g game.GameSession, appended []game.Action, expectedVersion int64) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		state, settings, err := encodeGame(g)
		if err != nil {
			return err
		}

		query := `
			UPDATE games
			SET status = ?, state = ?, settings = ?, version = ?, updated_at = ?,
			    started_at = ?, completed_at = ?
			WHERE id = ? AND version = ?
		`
		result, err := tx.ExecContext(ctx, query,
			string(g.Status), state, settings, g.Version, g.UpdatedAt.UTC(),
			nullTime(g.StartedAt), nullTime(g.CompletedAt),
			g.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return r.missingOrConflict(ctx, tx, g.ID)
		}

		return insertActions(ctx, tx, g.ID, appended)
	})
}

// ListByTherapySession returns the games of one therapy session, oldest first.
// Action logs are not loaded.
func (r *GameRepository) ListByTherapySession(ctx context.Context, sessionRef string) ([]game.GameSession, error) {
	return r.list(ctx, selectGameColumns+" WHERE session_ref = ? ORDER BY created_at ASC, id ASC", sessionRef)
}

// ListActive returns every game currently in active status, without action logs
func (r *GameRepository) ListActive(ctx context.Context) ([]game.GameSession, error) {
	return r.list(ctx, selectGameColumns+" WHERE status = ? ORDER BY updated_at ASC", string(game.StatusActive))
}

// ListAll returns every game with its action log
func (r *GameRepository) ListAll(ctx context.Context) ([]game.GameSession, error) {
	games, err := r.list(ctx, selectGameColumns+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	for i := range games {
		actions, err := r.actions(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Actions = actions
	}
	return games, nil
}

func (r *GameRepository) list(ctx context.Context, query string, args ...any) ([]game.GameSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []game.GameSession
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		g.Actions = []game.Action{}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *GameRepository) actions(ctx context.Context, gameID string) ([]game.Action, error) {
	query := `
		SELECT seq, actor_id, actor_role, kind, payload, created_at
		FROM game_actions
		WHERE game_id = ?
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions for game %s: %w", gameID, err)
	}
	defer rows.Close()

	actions := []game.Action{}
	for rows.Next() {
		var (
			a       game.Action
			role    string
			kind    string
			payload sql.NullString
		)
		if err := rows.Scan(&a.Seq, &a.Actor.ID, &role, &kind, &payload, &a.At); err != nil {
			return nil, err
		}
		a.Actor.Role = game.Role(role)
		a.Kind = game.ActionKind(kind)
		a.At = a.At.UTC()
		if payload.Valid && payload.String != "" {
			a.Payload = &game.ActionPayload{}
			if err := json.Unmarshal([]byte(payload.String), a.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode action %d payload: %w", a.Seq, err)
			}
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// missingOrConflict tells a deleted game apart from a stale version
func (r *GameRepository) missingOrConflict(ctx context.Context, tx database.DBTX, id string) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM games WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func insertActions(ctx context.Context, tx database.DBTX, gameID string, actions []game.Action) error {
	query := `
		INSERT INTO game_actions (game_id, seq, actor_id, actor_role, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, a := range actions {
		var payload sql.NullString
		if a.Payload != nil {
			b, err := json.Marshal(a.Payload)
			if err != nil {
				return fmt.Errorf("failed to encode action payload: %w", err)
			}
			payload = sql.NullString{String: string(b), Valid: true}
		}
		_, err := tx.ExecContext(ctx, query, gameID, a.Seq, a.Actor.ID, string(a.Actor.Role), string(a.Kind), payload, a.At.UTC())
		if err != nil {
			if tx.GetDialect().IsUniqueViolation(err) {
				return fmt.Errorf("%w: action %d already recorded", ErrConflict, a.Seq)
			}
			return fmt.Errorf("failed to insert action %d: %w", a.Seq, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (game.GameSession, error) {
	var (
		g                       game.GameSession
		gameType, difficulty    string
		status, state, settings string
		startedAt, completedAt  sql.NullTime
	)
	err := row.Scan(
		&g.ID,
		&g.SessionRef,
		&gameType,
		&difficulty,
		&g.SLPID,
		&g.ChildID,
		&status,
		&state,
		&settings,
		&g.Version,
		&g.CreatedAt,
		&g.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return game.GameSession{}, err
	}

	g.GameType = game.GameType(gameType)
	g.Difficulty = game.Difficulty(difficulty)
	g.Status = game.Status(status)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	if err := json.Unmarshal([]byte(state), &g.State); err != nil {
		return game.GameSession{}, fmt.Errorf("failed to decode state of game %s: %w", g.ID, err)
	}
	if err := json.Unmarshal([]byte(settings), &g.Settings); err != nil {
		return game.GameSession{}, fmt.Errorf("failed to decode settings of game %s: %w", g.ID, err)
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		g.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		g.CompletedAt = &t
	}
	return g, nil
}

func encodeGame(g game.GameSession) (state, settings string, err error) {
	s, err := json.Marshal(g.State)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode state: %w", err)
	}
	st, err := json.Marshal(g.Settings)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode settings: %w", err)
	}
	return string(s), string(st), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
