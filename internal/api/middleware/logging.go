package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const requestInfoKey = contextKey("request_info")

// requestInfo is filled in by inner middleware so the outer logger can see
// who made the request.
type requestInfo struct {
	nodeKey string
}

func setRequestNodeKey(ctx context.Context, nodeKey string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.nodeKey = nodeKey
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging logs each request once it completes. Successful reads log at
// debug.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{}
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			// Nodes poll the round endpoint every few seconds.
			log := logger.Info
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				log = logger.Warn
			case r.Method == http.MethodGet && rw.statusCode < http.StatusBadRequest:
				log = logger.Debug
			}
			log("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", rw.statusCode),
				zap.Int64("bytes", rw.written),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.String("node_key", info.nodeKey),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}
