package observability

import (
	"net/http"
	"time"
)

// NewAmbientMux builds the small HTTP server both binaries expose alongside
// their primary transport: /health and /metrics, nothing else. Grounded on
// the teacher's test_server/main.go ServeMux + http.Server shape (explicit
// timeouts, no default mux).
func NewAmbientMux(metrics *Metrics, health *HealthHandler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health)

	return &http.Server{
		Addr:         ":9090",
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
