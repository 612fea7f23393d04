package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"speechplay/internal/game"
	"speechplay/internal/lock"
	"speechplay/internal/repository"
)

// ErrForbidden is returned when the caller is not a participant of the game
var ErrForbidden = errors.New("caller is not a participant of this game")

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		entry := logrus.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(logMsg)
		} else {
			entry.Debug(logMsg)
		}
	}

	respondWithJSON(w, status, errorResponse{Error: userMsg})
}

func respondWithJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

// respondWithServiceError maps service and domain errors onto HTTP statuses
func respondWithServiceError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	respondWithError(w, status, msg, "request failed", err)
}

func statusFor(err error) (int, string) {
	switch {
	case game.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case game.IsInvalidState(err):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "game not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "game was modified concurrently, try again"
	case errors.Is(err, lock.ErrTimeout):
		return http.StatusServiceUnavailable, "game is busy, try again"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
