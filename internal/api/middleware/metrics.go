package middleware

import (
	"net/http"
	"sync/atomic"
)

// RequestStats is a point-in-time copy of the coordinator's request counters.
type RequestStats struct {
	Requests     int64 `json:"request_count"`
	ClientErrors int64 `json:"client_error_count"`
	ServerErrors int64 `json:"server_error_count"`
	RateLimited  int64 `json:"rate_limited_count"`
	InFlight     int64 `json:"in_flight"`
}

type MetricsCollector struct {
	requests     atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	rateLimited  atomic.Int64
	inFlight     atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)
		mc.inFlight.Add(1)
		defer mc.inFlight.Add(-1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode == http.StatusTooManyRequests:
			mc.rateLimited.Add(1)
			mc.clientErrors.Add(1)
		case rw.statusCode >= http.StatusInternalServerError:
			mc.serverErrors.Add(1)
		case rw.statusCode >= http.StatusBadRequest:
			mc.clientErrors.Add(1)
		}
	})
}

func (mc *MetricsCollector) Snapshot() RequestStats {
	return RequestStats{
		Requests:     mc.requests.Load(),
		ClientErrors: mc.clientErrors.Load(),
		ServerErrors: mc.serverErrors.Load(),
		RateLimited:  mc.rateLimited.Load(),
		InFlight:     mc.inFlight.Load(),
	}
}
