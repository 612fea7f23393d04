// Package metrics holds the Prometheus collectors of the game service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command results used as the result label
const (
	ResultOK           = "ok"
	ResultRejected     = "rejected"
	ResultInvalidState = "invalid_state"
	ResultNotFound     = "not_found"
	ResultConflict     = "conflict"
	ResultLockTimeout  = "lock_timeout"
	ResultError        = "error"
)

// Metrics bundles the service collectors with the registry serving them
type Metrics struct {
	Registry       *prometheus.Registry
	Commands       *prometheus.CounterVec
	GamesCompleted *prometheus.CounterVec
	GamesCreated   prometheus.Counter
	Retries        prometheus.Counter
}

// New registers the collectors on a fresh registry, along with the Go
// runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speechplay_game_commands_total",
				Help: "Game commands processed, by command and result.",
			},
			[]string{"command", "result"},
		),
		GamesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speechplay_games_completed_total",
				Help: "Games that reached a terminal status, by winner.",
			},
			[]string{"winner"},
		),
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speechplay_games_created_total",
			Help: "Games created.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speechplay_game_conflict_retries_total",
			Help: "Commands retried after losing an optimistic version check.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Commands,
		m.GamesCompleted,
		m.GamesCreated,
		m.Retries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// CommandProcessed counts one command outcome
func (m *Metrics) CommandProcessed(command, result string) {
	m.Commands.WithLabelValues(command, result).Inc()
}

// GameFinished counts one game reaching a terminal status
func (m *Metrics) GameFinished(winner string) {
	m.GamesCompleted.WithLabelValues(winner).Inc()
}
