package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus("test")

	p.ValidationDecided("quick", true, 200*time.Millisecond)
	p.ValidationDecided("quick", false, 100*time.Millisecond)
	p.ValidationDecided("deep", true, 2*time.Second)
	p.ExitSignalled("stop-loss")
	p.ExitSignalled("stop-loss")
	p.TrailingStopMoved("BTCUSDT")
	p.EntryBlocked("daily-loss-limit")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.validations.WithLabelValues("quick", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.validations.WithLabelValues("quick", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.validations.WithLabelValues("deep", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.exits.WithLabelValues("stop-loss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trailingMoves.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.entriesBlocked.WithLabelValues("daily-loss-limit")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.validationLatency))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus("")
	p.ExitSignalled("take-profit")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `riskcore_exit_signals_total{trigger="take-profit"} 1`)
}
