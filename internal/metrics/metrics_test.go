package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()
	m.ObserveAsk(nil)
	m.ObserveAsk(nil)
	m.ObserveAsk(errors.New("x"))
	m.ObserveStage(StageRetrieve, time.Now(), nil)
	m.ObserveReferences(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `csassist_stage_duration_seconds_count{outcome="ok",stage="retrieve"} 1`)
	require.Contains(t, rec.Body.String(), "csassist_references_returned_count 1")
	require.Contains(t, rec.Body.String(), `csassist_asks_total{outcome="ok"} 2`)
	require.Contains(t, rec.Body.String(), `csassist_asks_total{outcome="error"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAsk(nil)
	m.ObserveStage(StageGenerate, time.Now(), nil)
	m.ObserveReferences(1)
}
