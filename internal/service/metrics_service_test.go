package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "cache_hit_ratio 0.5")
	assert.Contains(t, body, "cache_hits_total 2")
}

func TestMetricsServiceExports(t *testing.T) {
	m := NewMetricsService()
	m.ObserveExport("xlsx", 2048, 20*time.Millisecond, nil)
	m.ObserveExport("xlsx", 0, time.Millisecond, errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, `attendance_exports_total{format="xlsx",outcome="success"} 1`)
	assert.Contains(t, body, `attendance_exports_total{format="xlsx",outcome="error"} 1`)
	assert.Contains(t, body, `attendance_export_bytes_count{format="xlsx"} 1`)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/attendance/stats", http.StatusOK, 10*time.Millisecond)
	m.RecordAttendanceMarked("FN")
	m.RecordUnrecognizedStatuses(3)

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/attendance/stats",status="200"} 1`)
	assert.Contains(t, body, `attendance_sessions_marked_total{session="FN"} 1`)
	assert.Contains(t, body, "attendance_unrecognized_statuses_total 3")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveExport("csv", 1, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
