package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"speechplay/internal/game"
	"speechplay/internal/security"
	"speechplay/internal/service"
)

const maxBodyBytes = 64 << 10

// Games is the part of the game service the HTTP layer drives
type Games interface {
	CreateGame(ctx context.Context, in service.CreateGameInput) (game.GameSession, error)
	Execute(ctx context.Context, gameID string, cmd game.Command) (game.GameSession, error)
	GetGame(ctx context.Context, gameID string) (game.GameSession, error)
	ListGamesForSession(ctx context.Context, sessionRef string) ([]game.GameSession, error)
}

// Handler serves the game API
type Handler struct {
	games   Games
	tokens  *security.TokenIssuer
	limiter *security.RateLimiter
	metrics http.Handler
}

// NewHandler creates a new handler. limiter and metrics may be nil.
func NewHandler(games Games, tokens *security.TokenIssuer, limiter *security.RateLimiter, metrics http.Handler) *Handler {
	return &Handler{games: games, tokens: tokens, limiter: limiter, metrics: metrics}
}

// Routes sets up all routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logging)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireParticipant(h.tokens))
		if h.limiter != nil {
			r.Use(RateLimit(h.limiter))
		}

		r.Post("/games", h.CreateGame)
		r.Get("/sessions/{sessionRef}/games", h.ListSessionGames)

		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Post("/start", h.command(game.CommandStart))
			r.Post("/pause", h.command(game.CommandPause))
			r.Post("/resume", h.command(game.CommandResume))
			r.Post("/end", h.command(game.CommandEnd))
			r.Post("/cancel", h.command(game.CommandCancel))
			r.Post("/next-turn", h.command(game.CommandNextTurn))
			r.Post("/skip-turn", h.command(game.CommandSkipTurn))
			r.Post("/pronunciations", h.command(game.CommandRecordPronunciation))
			r.Post("/evaluations", h.command(game.CommandEvaluatePronunciation))
		})
	})

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateGame creates a game. The caller must be one of the two participants
// it names, in the matching role.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	caller, _ := ParticipantFromContext(r.Context())

	var in service.CreateGameInput
	if err := decodeBody(r, &in, false); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", "", err)
		return
	}
	if !(caller.Role == game.RoleSLP && caller.ID == in.SLPID) &&
		!(caller.Role == game.RoleChild && caller.ID == in.ChildID) {
		respondWithServiceError(w, ErrForbidden)
		return
	}

	g, err := h.games.CreateGame(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, service.NewGameView(g))
}

// GetGame returns one game with its derived state
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.authorizedGame(r)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, service.NewGameView(g))
}

// ListSessionGames lists the caller's games in one therapy session
func (h *Handler) ListSessionGames(w http.ResponseWriter, r *http.Request) {
	caller, _ := ParticipantFromContext(r.Context())

	games, err := h.games.ListGamesForSession(r.Context(), chi.URLParam(r, "sessionRef"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	views := make([]service.GameView, 0, len(games))
	for _, g := range games {
		if g.RoleOf(caller.ID) == caller.Role {
			views = append(views, service.NewGameView(g))
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"games": views})
}

// commandRequest is the union of the bodies the command endpoints accept
type commandRequest struct {
	Word        string       `json:"word"`
	Verdict     game.Verdict `json:"verdict"`
	Notes       string       `json:"notes"`
	Subject     game.Role    `json:"subject"`
	TimeSpentMs int          `json:"timeSpentMs"`
}

// command returns a handler that runs cmdType as the calling participant
func (h *Handler) command(cmdType game.CommandType) http.HandlerFunc {
	bodyRequired := cmdType == game.CommandRecordPronunciation || cmdType == game.CommandEvaluatePronunciation

	return func(w http.ResponseWriter, r *http.Request) {
		var req commandRequest
		if err := decodeBody(r, &req, !bodyRequired); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body", "", err)
			return
		}

		g, err := h.authorizedGame(r)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		caller, _ := ParticipantFromContext(r.Context())

		next, err := h.games.Execute(r.Context(), g.ID, game.Command{
			Type:        cmdType,
			Actor:       caller.Actor(),
			Word:        req.Word,
			Verdict:     req.Verdict,
			Notes:       req.Notes,
			Subject:     req.Subject,
			TimeSpentMs: req.TimeSpentMs,
		})
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, service.NewGameView(next))
	}
}

// authorizedGame loads the game named in the path and checks that the
// caller plays in it
func (h *Handler) authorizedGame(r *http.Request) (game.GameSession, error) {
	caller, _ := ParticipantFromContext(r.Context())

	g, err := h.games.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return game.GameSession{}, err
	}
	if g.RoleOf(caller.ID) != caller.Role {
		return game.GameSession{}, ErrForbidden
	}
	return g, nil
}

func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
