package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygus/internal/oracle"
	"sygus/internal/search"
)

var _ search.Recorder = (*Recorder)(nil)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()
	r.Iteration()
	r.Iteration()
	r.Expanded(5)
	r.Verified(oracle.Invalid, 3*time.Millisecond)
	r.Verified(oracle.Valid, time.Millisecond)
	r.Finished("valid", time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(r.iterations), 1e-9)
	assert.InDelta(t, 5, testutil.ToFloat64(r.expansions), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.verifications.WithLabelValues(oracle.Invalid.String())), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.verifications.WithLabelValues(oracle.Valid.String())), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("valid")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.oracleLatency))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.Finished("exhausted", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `sygus_runs_total{outcome="exhausted"} 1`), body)
	assert.Contains(t, body, "sygus_run_duration_seconds_count 1")
}
