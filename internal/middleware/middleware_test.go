package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if ok, remaining := rl.Allow("1.2.3.4"); !ok || remaining != 1 {
		t.Fatalf("first request: %v %d", ok, remaining)
	}
	if ok, remaining := rl.Allow("1.2.3.4"); !ok || remaining != 0 {
		t.Fatalf("second request: %v %d", ok, remaining)
	}
	if ok, _ := rl.Allow("1.2.3.4"); ok {
		t.Fatalf("third request should be limited")
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatalf("other clients are not limited")
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatalf("request after the window should pass")
	}

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	if len(rl.requests) != 0 {
		t.Fatalf("cleanup kept %d clients", len(rl.requests))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(), RateLimit(1, time.Minute))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("first request: %d, request id %q", w.Code, w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", w.Code)
	}
	if w.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("request id not propagated: %q", w.Header().Get(RequestIDHeader))
	}
}
