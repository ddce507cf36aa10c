// Package middleware provides HTTP middleware components for the application.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds middleware configuration.
type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	RateLimit      rate.Limit
	RateLimitBurst int

	RequestTimeout time.Duration

	// TimeoutExemptPaths lists routes that legitimately outlive
	// RequestTimeout, such as a synchronous bulk campaign.
	TimeoutExemptPaths []string
}

// Chain creates a middleware chain with all configured middleware.
// WebSocket upgrade requests bypass the timeout wrapper: it races the
// handler against a deadline in a goroutine, which breaks connection
// hijacking. Exempt paths bypass it for the same reason long-running
// handlers would otherwise be cancelled mid-flight.
func Chain(config *Config) func(http.Handler) http.Handler {
	rateLimiter := NewRateLimiter(config.RateLimit, config.RateLimitBurst)
	timeout := Timeout(config.RequestTimeout)

	return func(handler http.Handler) http.Handler {
		// Apply middleware in order (outer to inner)
		h := handler

		h = skipTimeout(timeout, config.TimeoutExemptPaths)(h)

		h = rateLimiter.Middleware()(h)

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)

		h = RequestID(h)

		h = Logger(config.Logger)(h)

		return h
	}
}

func skipTimeout(mw func(http.Handler) http.Handler, exemptPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isWebSocketUpgrade(r) || isExemptPath(r.URL.Path, exemptPaths) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

func isExemptPath(path string, exemptPaths []string) bool {
	for _, p := range exemptPaths {
		if path == p {
			return true
		}
	}
	return false
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
