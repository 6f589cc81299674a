package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)
	defer limiter.Stop()

	if limiter.rate != 10 {
		t.Errorf("Expected rate 10, got %v", limiter.rate)
	}
	if limiter.burst != 20 {
		t.Errorf("Expected burst 20, got %d", limiter.burst)
	}
	if limiter.Len() != 0 {
		t.Errorf("Expected no tracked IPs, got %d", limiter.Len())
	}
}

func TestIPRateLimiter_SameKeySameLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)
	defer limiter.Stop()

	a := limiter.GetLimiter("10.0.0.1")
	if a != limiter.GetLimiter("10.0.0.1") {
		t.Error("Expected one limiter per IP")
	}
	if a == limiter.GetLimiter("10.0.0.2") {
		t.Error("Expected separate limiters for separate IPs")
	}
	if limiter.Len() != 2 {
		t.Errorf("Expected 2 tracked IPs, got %d", limiter.Len())
	}
}

func TestIPRateLimiter_BurstThenDeny(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	defer limiter.Stop()

	ip := "10.0.0.1"
	if !limiter.Allow(ip) || !limiter.Allow(ip) {
		t.Fatal("Expected burst of two to be allowed")
	}
	if limiter.Allow(ip) {
		t.Error("Expected third request to be denied")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("Expected another IP to be unaffected")
	}
}

func TestIPRateLimiter_Refill(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(10), 1)
	defer limiter.Stop()

	ip := "10.0.0.1"
	if !limiter.Allow(ip) {
		t.Fatal("First request should be allowed")
	}
	if limiter.Allow(ip) {
		t.Error("Immediate second request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(ip) {
		t.Error("Request after refill should be allowed")
	}
}

func TestIPRateLimiter_EvictIdle(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	defer limiter.Stop()

	limiter.GetLimiter("old")
	limiter.GetLimiter("fresh")

	limiter.mu.Lock()
	limiter.visitors["old"].lastSeen = time.Now().Add(-10 * time.Minute)
	limiter.mu.Unlock()

	limiter.evictIdle(time.Now())

	if limiter.Len() != 1 {
		t.Fatalf("Expected 1 tracked IP after eviction, got %d", limiter.Len())
	}
	limiter.mu.Lock()
	_, freshKept := limiter.visitors["fresh"]
	limiter.mu.Unlock()
	if !freshKept {
		t.Error("Expected recently seen IP to be kept")
	}
}

func TestIPRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	limiter.Stop()
	limiter.Stop()
}

func TestIPRateLimiter_Concurrency(t *testing.T) {
	limiter := NewIPRateLimiter(100, 100)
	defer limiter.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Allow("10.0.0.1")
		}()
	}
	wg.Wait()

	if limiter.Len() != 1 {
		t.Errorf("Expected 1 tracked IP, got %d", limiter.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/submit", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("First request should be OK, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be limited, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimitFunc_SamePortlessKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	defer limiter.Stop()

	handler := RateLimitFunc(limiter, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRequest("GET", "/ws", nil)
	first.RemoteAddr = "10.0.0.2:1111"
	w := httptest.NewRecorder()
	handler(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("First request should be OK, got %d", w.Code)
	}

	// A new source port is the same client
	second := httptest.NewRequest("GET", "/ws", nil)
	second.RemoteAddr = "10.0.0.2:2222"
	w = httptest.NewRecorder()
	handler(w, second)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected limit across source ports, got %d", w.Code)
	}
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		remote    string
		want      string
	}{
		{"forwarded single", "1.2.3.4", "", "10.0.0.1:1", "1.2.3.4"},
		{"forwarded chain", "1.2.3.4, 10.0.0.9", "", "10.0.0.1:1", "1.2.3.4"},
		{"real ip", "", " 5.6.7.8 ", "10.0.0.1:1", "5.6.7.8"},
		{"remote addr", "", "", "10.0.0.1:12345", "10.0.0.1"},
		{"remote without port", "", "", "10.0.0.1", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remote

			if got := getIP(req); got != tt.want {
				t.Errorf("getIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewLimiters(t *testing.T) {
	l := NewLimiters(10, 5, 0.5)
	defer l.Stop()

	if l.API.burst != 20 {
		t.Errorf("Expected API burst 20, got %d", l.API.burst)
	}
	if l.WebSocket.burst != 10 {
		t.Errorf("Expected WebSocket burst 10, got %d", l.WebSocket.burst)
	}
	if l.Submit.burst != 1 {
		t.Errorf("Expected Submit burst floor of 1, got %d", l.Submit.burst)
	}
}
