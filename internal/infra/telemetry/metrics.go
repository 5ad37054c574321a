package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters the auth and enrollment flows report into.
type Metrics struct {
	LoginSuccess         prometheus.Counter
	LoginFailure         prometheus.Counter
	LoginLockout         prometheus.Counter
	RefreshRotations     prometheus.Counter
	RefreshReplays       prometheus.Counter
	EnrollmentDrafts     prometheus.Counter
	EnrollmentSubmitted  prometheus.Counter
	SecurityEventFailure prometheus.Counter
}

// NewMetrics builds and registers the counter set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "login_success_total",
			Help:      "Successful logins.",
		}),
		LoginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "login_failure_total",
			Help:      "Failed login attempts.",
		}),
		LoginLockout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "login_lockout_total",
			Help:      "Login attempts rejected by the lockout limiter.",
		}),
		RefreshRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "refresh_rotation_total",
			Help:      "Successful refresh token rotations.",
		}),
		RefreshReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "refresh_replay_total",
			Help:      "Detected refresh token replays.",
		}),
		EnrollmentDrafts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "enrollment_draft_total",
			Help:      "Enrollment drafts created or replaced.",
		}),
		EnrollmentSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "enrollment_submitted_total",
			Help:      "Enrollments submitted.",
		}),
		SecurityEventFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "security_event_persist_failure_total",
			Help:      "Security event writes that failed and were swallowed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoginSuccess,
			m.LoginFailure,
			m.LoginLockout,
			m.RefreshRotations,
			m.RefreshReplays,
			m.EnrollmentDrafts,
			m.EnrollmentSubmitted,
			m.SecurityEventFailure,
		)
	}

	return m
}

// NewNopMetrics returns unregistered counters for tests and optional wiring.
func NewNopMetrics() *Metrics {
	return NewMetrics(nil)
}
