package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/nexahq/nexa-backend/internal/config"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

// RateLimiter enforces per-route request allowances keyed by client IP.
type RateLimiter struct {
	limits   config.RateLimits
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	log      *logger.Logger
}

// NewRateLimiter creates a rate limiter from the configured allowances.
func NewRateLimiter(limits config.RateLimits, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		limits:   limits,
		limiters: make(map[string]*rate.Limiter),
		log:      log,
	}
}

// Limit returns middleware enforcing the named route's allowance. Routes
// without an override fall back to the default rule.
func (rl *RateLimiter) Limit(route string) mux.MiddlewareFunc {
	rule, ok := rl.limits.Routes[route]
	if !ok {
		rule = rl.limits.Default
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + "|" + clientIP(r)

			if !rl.limiter(key, rule).Allow() {
				rl.log.WithContext(r.Context()).WithFields(map[string]interface{}{
					"route":  route,
					"client": clientIP(r),
					"path":   r.URL.Path,
				}).Warn("rate limit exceeded")

				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rule.Per.Seconds())))
				writeError(w, http.StatusTooManyRequests,
					fmt.Sprintf("rate limit exceeded: %d requests per %s", rule.Requests, rule.Per))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiter(key string, rule config.RateRule) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(rule.Requests)/rule.Per.Seconds()), rule.Requests)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Cleanup drops accumulated limiters once the map grows past a bound.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup runs Cleanup on an interval until stop is closed.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// clientIP resolves the caller address, preferring the first X-Forwarded-For
// hop set by the fronting proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
