package daemon

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
)

// newRateLimiter builds the per-client limiter for write routes. A
// non-positive rate disables limiting.
func newRateLimiter(perMinute int) ratelimit.RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return ratelimit.New(&ratelimit.Config{
		Rate:     perMinute,
		Burst:    perMinute * 3,
		Interval: time.Minute,
	})
}

// rateLimitMiddleware rejects requests once a client exhausts its bucket.
func rateLimitMiddleware(limiter ratelimit.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(r.Context(), key) {
				logger.Warn("rate limit exceeded",
					"client", key,
					"path", r.URL.Path,
					"request_id", GetCorrelationID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many requests, please try again later","status":429}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers proxy headers, then the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
