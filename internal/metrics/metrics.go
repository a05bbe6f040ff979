// Package metrics defines and registers the custom Prometheus metrics of the
// session client and the reference session API. It is the single source of
// truth for metric names, labels and help strings.
//
// Metrics are registered with the default registry at package init through
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tlobni"

// ── Client transport ──────────────────────────────────────────────────────────

// ClientRequestsTotal counts API calls made by the session client.
// Labels:
//   - method: HTTP method
//   - path: request path relative to the API base (e.g. "/user")
//   - status: response code, or "error" when no response was received
var ClientRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total number of session API requests issued by the client.",
	},
	[]string{"method", "path", "status"},
)

// ClientRequestDuration measures round trip time of client API calls.
var ClientRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Duration of session API requests issued by the client.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

// ── Client session lifecycle ──────────────────────────────────────────────────

// SessionTransitionsTotal counts resolved identity states.
// Label:
//   - state: "authenticated", "anonymous"
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "session_transitions_total",
		Help:      "Total number of identity resolutions, by resulting state.",
	},
	[]string{"state"},
)

// LogoutRemoteFailuresTotal counts logouts whose server call failed while the
// local session was still cleared.
var LogoutRemoteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "logout_remote_failures_total",
		Help:      "Total number of logouts where the remote call failed.",
	},
)

// ── Session API ───────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts on the session API.
// Label:
//   - result: "success", "invalid_credentials", "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts accounts created, by role.
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "registrations_total",
		Help:      "Total number of accounts registered, by role.",
	},
	[]string{"role"},
)

// SessionsRevokedTotal counts sessions ended through logout.
var SessionsRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions revoked by logout.",
	},
)

// ResetNotificationsQueueDepth tracks pending reset notifications per worker.
// Label:
//   - worker_id: numeric worker index
var ResetNotificationsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "reset_notifications_queue_depth",
		Help:      "Current number of password reset notifications pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// ResetNotificationsDroppedTotal counts reset notifications discarded because
// the dispatcher had already stopped.
var ResetNotificationsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "reset_notifications_dropped_total",
		Help:      "Total number of password reset notifications dropped after shutdown.",
	},
)
