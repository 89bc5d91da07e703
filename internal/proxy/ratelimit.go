package proxy

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/Nash0810/weightsel/internal/logging"
	"github.com/Nash0810/weightsel/internal/metrics"
)

// RateLimit rejects requests with 429 once limiter runs out of tokens
func RateLimit(next http.Handler, limiter *rate.Limiter, collector *metrics.Collector, logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			if collector != nil {
				collector.RateLimited.Inc()
			}
			logger.Debug("rate_limited", "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
