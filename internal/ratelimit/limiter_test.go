package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowUnderLimit(t *testing.T) {
	l := NewLimiter(1, 5)
	for i := range 5 {
		assert.True(t, l.Allow(), "request %d", i)
	}
}

func TestLimiter_BlocksWhenBurstExhausted(t *testing.T) {
	// very low rps so tokens don't refill during the test
	l := NewLimiter(0.001, 2)
	l.Allow()
	l.Allow()
	assert.False(t, l.Allow())
}

func TestLimiter_DisabledWhenRateNotPositive(t *testing.T) {
	l := NewLimiter(0, 10)
	assert.Nil(t, l)
	for range 100 {
		assert.True(t, l.Allow())
	}
}

func TestMiddleware(t *testing.T) {
	h := Middleware(NewLimiter(0.001, 1), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests"}`, rec.Body.String())
}
