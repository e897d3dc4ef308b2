// Package ratelimit provides a token-bucket rate limiter backed by
// golang.org/x/time/rate for use as a global HTTP request gate.
package ratelimit

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed. A nil Limiter allows everything.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size. It returns nil, meaning unlimited, when rps <= 0.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.lim.Allow()
}

// Middleware rejects requests with 429 once l is exhausted.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
