package handler

import (
	"fmt"
	"net/http"

	"github.com/penshort/userauth/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "userauth_http_requests_total %d\n", snap.HTTPRequests)
	writeMetric(w, "userauth_users_registered_total %d\n", snap.UsersRegistered)

	writeMetric(w, "userauth_registration_conflicts_total{path=%q} %d\n", metrics.ConflictPrecheck, snap.RegistrationConflictsPre)
	writeMetric(w, "userauth_registration_conflicts_total{path=%q} %d\n", metrics.ConflictConstraint, snap.RegistrationConflictsUnique)

	writeMetric(w, "userauth_logins_failed_total %d\n", snap.LoginsFailed)
	writeMetric(w, "userauth_tokens_issued_total %d\n", snap.TokensIssued)

	writeMetric(w, "userauth_tokens_rejected_total{reason=%q} %d\n", metrics.RejectMalformed, snap.TokensRejectedMalformed)
	writeMetric(w, "userauth_tokens_rejected_total{reason=%q} %d\n", metrics.RejectInvalidSignature, snap.TokensRejectedSignature)
	writeMetric(w, "userauth_tokens_rejected_total{reason=%q} %d\n", metrics.RejectExpired, snap.TokensRejectedExpired)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
