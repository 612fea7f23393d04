package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.CommandProcessed("start", ResultOK)
	m.CommandProcessed("start", ResultOK)
	m.CommandProcessed("pause", ResultInvalidState)
	m.GameFinished("child")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("start", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("pause", ResultInvalidState)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GamesCompleted.WithLabelValues("child")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CommandProcessed("next_turn", ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `speechplay_game_commands_total{command="next_turn",result="ok"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
