package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/adebayof/monievault-backend/internal/logger"
)

// BearerAuth validates the Authorization header against the configured
// API token. Requests without a valid token never reach a handler.
func BearerAuth(validToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing authorization header"})
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(validToken)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one structured line per request and threads the
// logger into the request context
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := logger.L.With("method", r.Method, "path", r.URL.Path)
		r = r.WithContext(logger.ToContext(r.Context(), l))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		l.Info("request handled", "status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
