package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"speechplay/internal/security"
)

type contextKey string

const participantContextKey contextKey = "participant"

// RequireParticipant rejects requests without a valid bearer token and
// stores the verified participant in the request context
func RequireParticipant(tokens *security.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := security.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="speechplay"`)
				respondWithError(w, http.StatusUnauthorized, "missing bearer token", "", nil)
				return
			}
			p, err := tokens.Verify(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="speechplay", error="invalid_token"`)
				respondWithError(w, http.StatusUnauthorized, "invalid token", "token rejected", err)
				return
			}
			ctx := context.WithValue(r.Context(), participantContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParticipantFromContext returns the participant stored by RequireParticipant
func ParticipantFromContext(ctx context.Context) (security.Participant, bool) {
	p, ok := ctx.Value(participantContextKey).(security.Participant)
	return p, ok
}

// RateLimit throttles callers by participant id, falling back to client IP
func RateLimit(limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := security.GetClientIP(r)
			if p, ok := ParticipantFromContext(r.Context()); ok {
				key = "participant:" + p.ID
			}
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "60")
				respondWithError(w, http.StatusTooManyRequests, "too many requests", "", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs every request with its status and duration
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("http request")
	})
}
