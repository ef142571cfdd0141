package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitNoop(t *testing.T) {
	m := Init(false)
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFailedAttempt("login")
	m.RecordFailedAttempt("login")
	m.RecordFailedAttempt("security_question")
	m.RecordLockout(2, 30*time.Minute)
	m.RecordLockoutCleared("admin")
	m.RecordLockedRejection()
	m.RecordRateLimited("reset")
	m.RecordResetStep("verify", "failure")
	m.RecordLogin("success", 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FailedAttemptsTotal.WithLabelValues("login")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FailedAttemptsTotal.WithLabelValues("security_question")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LockoutsTotal.WithLabelValues("2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LockoutsClearedTotal.WithLabelValues("admin")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LockedRejectionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("reset")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResetStepsTotal.WithLabelValues("verify", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoginTotal.WithLabelValues("success")))
}

func TestHTTPMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(m))
	r.Get("/admin/lockouts/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/lockouts/a@x.com", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/admin/lockouts/{email}", "404"),
	))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestHTTPMiddleware_NoopPassesThrough(t *testing.T) {
	called := false
	h := HTTPMiddleware(NewNoopMetrics())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
}
