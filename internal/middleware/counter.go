package middleware

import (
	"net/http"

	"github.com/penshort/userauth/internal/metrics"
)

// CountRequests increments the request counter once per request.
func CountRequests(recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder.IncHTTPRequest()
			next.ServeHTTP(w, r)
		})
	}
}
