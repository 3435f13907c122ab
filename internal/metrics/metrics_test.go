package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectorsOnAPrivateRegistry(t *testing.T) {
	m := New()
	m.EventsRecordedTotal.WithLabelValues("acquire").Inc()
	m.UnbalancedReleasesTotal.Inc()
	m.InternerHandles.WithLabelValues("locks").Set(3)
	m.DumpDurationSeconds.Observe(0.05)
	m.SessionDisabled.Set(0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "lockprof_events_recorded_total")
	require.Contains(t, body, "lockprof_unbalanced_releases_total")
	require.Contains(t, body, "lockprof_interner_handles")
	require.Contains(t, body, "lockprof_dump_duration_seconds")
	require.Contains(t, body, "lockprof_session_disabled")
}

func TestTwoMetricsInstancesDoNotCollide(t *testing.T) {
	m1 := New()
	m2 := New()
	m1.EventsRecordedTotal.WithLabelValues("acquire").Inc()
	m2.EventsRecordedTotal.WithLabelValues("acquire").Inc()
	m2.EventsRecordedTotal.WithLabelValues("acquire").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m2.Handler().ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), "lockprof_events_recorded_total")
}
