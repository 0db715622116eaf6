package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/chatbot/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		cfg            config.AdminConfig
		reqUsername    string
		reqPassword    string
		reqToken       string
		expectedStatus int
	}{
		{
			name:           "no auth configured - allows request",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid basic auth",
			cfg:            config.AdminConfig{Username: "admin", Password: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "secret123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid basic auth password",
			cfg:            config.AdminConfig{Username: "admin", Password: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "wrong",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token auth",
			cfg:            config.AdminConfig{Token: "test-token-12345"},
			reqToken:       "test-token-12345",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token auth",
			cfg:            config.AdminConfig{Token: "test-token-12345"},
			reqToken:       "wrong-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing credentials",
			cfg:            config.AdminConfig{Token: "test-token-12345"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "token wins over bad basic auth",
			cfg:            config.AdminConfig{Username: "admin", Password: "secret123", Token: "test-token-12345"},
			reqToken:       "test-token-12345",
			reqUsername:    "wrong",
			reqPassword:    "wrong",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := adminAuth(okHandler(), tt.cfg)
			req := httptest.NewRequest(http.MethodGet, "/admin/test", nil)
			if tt.reqUsername != "" || tt.reqPassword != "" {
				req.SetBasicAuth(tt.reqUsername, tt.reqPassword)
			}
			if tt.reqToken != "" {
				req.Header.Set("X-Admin-Token", tt.reqToken)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401 response")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(context.Background(), config.RateLimitConfig{
		Enabled: true, RequestsPerIP: 3, Window: 300 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("request 4 should be denied")
	}
	if !limiter.allow("192.168.1.2") {
		t.Error("other IPs have their own bucket")
	}

	// One request is refilled every window/3.
	time.Sleep(150 * time.Millisecond)
	if !limiter.allow("192.168.1.1") {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := newIPRateLimiter(context.Background(), config.RateLimitConfig{
		Enabled: false, RequestsPerIP: 1, Window: time.Second,
	})
	for i := 0; i < 100; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Fatalf("request %d denied with rate limiting disabled", i+1)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := newIPRateLimiter(context.Background(), config.RateLimitConfig{
		Enabled: true, RequestsPerIP: 1, Window: time.Second,
	})
	limiter.allow("10.0.0.1")
	limiter.cleanup(time.Now().Add(3 * time.Second))
	limiter.mu.Lock()
	n := len(limiter.visitors)
	limiter.mu.Unlock()
	if n != 0 {
		t.Errorf("visitors = %d after cleanup, want 0", n)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newIPRateLimiter(context.Background(), config.RateLimitConfig{
		Enabled: true, RequestsPerIP: 2, Window: time.Minute,
	})
	handler := rateLimitMiddleware(okHandler(), limiter)

	send := func(remote, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("192.168.1.1:12345", ""); rr.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	rr := send("192.168.1.1:54321", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("request 3: expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want 30", rr.Header().Get("Retry-After"))
	}

	// The forwarded client IP is limited, not the proxy.
	for i := 0; i < 2; i++ {
		if rr := send("10.0.0.1:1", "203.0.113.1, 10.0.0.2"); rr.Code != http.StatusOK {
			t.Errorf("forwarded request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	if rr := send("10.0.0.9:1", "203.0.113.1"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("forwarded request 3: expected 429, got %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, forwarded, want string
	}{
		{"192.168.1.1:12345", "", "192.168.1.1"},
		{"192.168.1.1", "", "192.168.1.1"},
		{"[2001:db8::1]:12345", "", "2001:db8::1"},
		{"[2001:db8::1]", "", "2001:db8::1"},
		{"10.0.0.1:1", "203.0.113.1, 10.0.0.2", "203.0.113.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.forwarded, got, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	handler := withCORS(okHandler(), []string{"https://dash.example.com", "*.example.org"})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://dash.example.com", true},
		{"https://a.example.org", true},
		{"https://example.org", true},
		{"https://evil.com", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		got := rr.Header().Get("Access-Control-Allow-Origin")
		if tt.allowed && got != tt.origin {
			t.Errorf("origin %q: Allow-Origin = %q", tt.origin, got)
		}
		if !tt.allowed && got != "" {
			t.Errorf("origin %q should not be allowed, got %q", tt.origin, got)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/admin/stats", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
}
