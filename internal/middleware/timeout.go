package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"teaching-workload/pkg/apierror"
)

// Timeout bounds each request. The timeout body is the usual error envelope,
// rendered per request so it carries the right path.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			envelope := apierror.New(apierror.CodeRequestTimeout, "request timed out", "", http.StatusServiceUnavailable).
				Envelope(r.URL.RequestURI())
			body, _ := json.Marshal(envelope)

			w.Header().Set("Content-Type", "application/json")
			http.TimeoutHandler(next, timeout, string(body)).ServeHTTP(w, r)
		})
	}
}
