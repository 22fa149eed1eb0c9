package httpapi

import (
	"net/http"

	"github.com/google/uuid"
)

// CorrelationID tags each request with an X-Correlation-ID header, minting
// one when the caller did not supply it. The ID is echoed on the response so
// operator tooling can tie API calls to the matching log lines.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
			r.Header.Set("X-Correlation-ID", correlationID)
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		next.ServeHTTP(w, r)
	})
}
