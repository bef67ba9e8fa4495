package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseTrace captures what the handler chain wrote so the request log can
// carry the final status and payload size.
type responseTrace struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseTrace) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseTrace) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Logger emits one structured line per request. Analysis submissions and polls
// dominate traffic, so the line stays small: outcome and cost, no payloads.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trace := &responseTrace{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(trace, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", trace.status,
			"bytes", trace.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
