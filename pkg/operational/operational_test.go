package operational

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Upload(OutcomeScored)
	m.Upload(OutcomeScored)
	m.Upload(OutcomeNoNumeric)
	m.ObserveRun(5, 1, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues(OutcomeScored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(OutcomeNoNumeric)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsScored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalies))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scoringDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Upload(OutcomeFailed)
		m.ObserveRun(1, 0, time.Second)
	})
}

func TestHealthHandler(t *testing.T) {
	var modelErr error
	h := NewHealthHandler(func() error { return modelErr })

	tests := []struct {
		name     string
		path     string
		modelErr error
		want     int
	}{
		{name: "live", path: "/live", want: http.StatusOK},
		{name: "ready", path: "/ready", want: http.StatusOK},
		{name: "not ready", path: "/ready", modelErr: errors.New("model not loaded"), want: http.StatusServiceUnavailable},
		{name: "live while not ready", path: "/live", modelErr: errors.New("model not loaded"), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modelErr = tt.modelErr
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
