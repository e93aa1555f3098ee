package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStageMetrics(t *testing.T) {
	m := NewStageMetrics("relay")

	m.Published.Inc()
	m.Published.Inc()
	m.Dropped.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Published))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DecodeErrors))
}

func TestHandlerServesExposition(t *testing.T) {
	m := NewStageMetrics("sink")
	m.Persisted.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "imageflow_stage_persisted_total")
	assert.Contains(t, body, `stage="sink"`)
}

func TestStagesUseIndependentRegistries(t *testing.T) {
	// Two stages must not collide even with identical metric names.
	assert.NotPanics(t, func() {
		NewStageMetrics("source")
		NewStageMetrics("source")
	})
}
