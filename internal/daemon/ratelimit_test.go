package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/pathway/internal/config"
)

func TestRateLimit_WriteRoutes(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.RateLimitPerMinute = 1
	s := NewServer(ServerConfig{Config: cfg, Logger: quietLogger()})
	defer s.Shutdown(context.Background())
	h := s.Handler()

	if w := do(t, h, http.MethodPost, "/v1/programs", map[string]string{}); w.Code == http.StatusTooManyRequests {
		t.Fatalf("first request status = %d, want it admitted", w.Code)
	}

	limited := false
	for i := 0; i < 10; i++ {
		w := do(t, h, http.MethodPost, "/v1/programs", map[string]string{})
		if w.Code == http.StatusTooManyRequests {
			limited = true
			if w.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
			break
		}
	}
	if !limited {
		t.Fatal("write route never rate limited")
	}

	for i := 0; i < 10; i++ {
		if w := do(t, h, http.MethodGet, "/v1/status", nil); w.Code != http.StatusOK {
			t.Fatalf("GET /v1/status = %d, want 200", w.Code)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	if l := newRateLimiter(0); l != nil {
		t.Error("newRateLimiter(0) returned a limiter")
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := rateLimitMiddleware(nil, quietLogger())(next)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "127.0.0.1:5000", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "127.0.0.1:5000", "10.0.0.9"},
		{"remote addr", nil, "192.168.1.4:5000", "192.168.1.4"},
		{"remote without port", nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
