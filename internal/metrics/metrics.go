package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	FailedAttemptsTotal   *prometheus.CounterVec
	LockoutsTotal         *prometheus.CounterVec
	LockoutDuration       prometheus.Histogram
	LockoutsClearedTotal  *prometheus.CounterVec
	LockedRejectionsTotal prometheus.Counter
	RateLimitedTotal      *prometheus.CounterVec
	ResetStepsTotal       *prometheus.CounterVec
	LoginTotal            *prometheus.CounterVec
	LoginDuration         prometheus.Histogram

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns Prometheus-backed metrics on the default registry when enabled,
// NoopMetrics otherwise. Registration happens once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FailedAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_failed_attempts_total",
				Help: "Total number of failed authentication attempts recorded in the ledger",
			},
			[]string{"source"}, // login, security_question
		),
		LockoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_lockouts_total",
				Help: "Total number of lockouts created, by escalation level",
			},
			[]string{"level"},
		),
		LockoutDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_lockout_duration_minutes",
				Help:    "Length of lockouts created",
				Buckets: []float64{15, 30, 60, 120, 240},
			},
		),
		LockoutsClearedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_lockouts_cleared_total",
				Help: "Total number of lockouts cleared",
			},
			[]string{"reason"}, // login_success, admin, expired
		),
		LockedRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_locked_rejections_total",
				Help: "Total number of requests refused because the identity was locked",
			},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_rate_limited_total",
				Help: "Total number of calls refused by the rate limiter",
			},
			[]string{"scope"},
		),
		ResetStepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_password_reset_steps_total",
				Help: "Total number of password reset steps, by step and result",
			},
			[]string{"step", "result"},
		),
		LoginTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_login_total",
				Help: "Total number of login attempts, by result",
			},
			[]string{"result"},
		),
		LoginDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_login_duration_seconds",
				Help:    "Login request processing time",
				Buckets: prometheus.DefBuckets,
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}
}

func (m *Metrics) RecordFailedAttempt(source string) {
	m.FailedAttemptsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordLockout(lockoutCount int, duration time.Duration) {
	m.LockoutsTotal.WithLabelValues(strconv.Itoa(lockoutCount)).Inc()
	m.LockoutDuration.Observe(duration.Minutes())
}

func (m *Metrics) RecordLockoutCleared(reason string) {
	m.LockoutsClearedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordLockedRejection() {
	m.LockedRejectionsTotal.Inc()
}

func (m *Metrics) RecordRateLimited(scope string) {
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordResetStep(step, result string) {
	m.ResetStepsTotal.WithLabelValues(step, result).Inc()
}

func (m *Metrics) RecordLogin(result string, duration time.Duration) {
	m.LoginTotal.WithLabelValues(result).Inc()
	m.LoginDuration.Observe(duration.Seconds())
}
