package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	l := NewLimiter(Config{Requests: 2, Window: time.Minute})
	defer l.Stop()
	now := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third request should be refused")
	}
	if !l.Allow("b") {
		t.Fatalf("other clients are independent")
	}

	now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatalf("new window should reset the count")
	}
	if l.Rejected() != 1 {
		t.Fatalf("rejected = %d", l.Rejected())
	}

	now = now.Add(2 * time.Minute)
	l.cleanup()
	if l.ActiveClients() != 0 {
		t.Fatalf("stale clients should be dropped")
	}
}

func TestMiddlewareOnlyLimitsListedMethods(t *testing.T) {
	l := NewLimiter(Config{Requests: 1, Window: time.Minute})
	defer l.Stop()
	ip := func(*http.Request) string { return "1.2.3.4" }
	h := l.Middleware(ip, http.MethodPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET should not be limited, got %d", rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/uploads", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first POST should pass, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/uploads", nil))
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second POST should be limited, got %d", rr.Code)
	}
}
