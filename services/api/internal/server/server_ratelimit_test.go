package server

import (
	"net/http"
	"testing"
)

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.LoginRateLimitPerMinute = 1 })

	body := map[string]string{"username": "ninguem", "password": "pass"}
	resp1 := ts.do(t, http.MethodPost, "/api/auth/login", "", body, nil)
	if resp1.StatusCode != http.StatusUnauthorized {
		t.Fatalf("first request expected 401, got %d", resp1.StatusCode)
	}

	var errBody errorResponse
	resp2 := ts.do(t, http.MethodPost, "/api/auth/login", "", body, &errBody)
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") != "60" || errBody.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected 429 response: %v %+v", resp2.Header, errBody)
	}
}

func TestRegisterRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.RegisterRateLimitPerMinute = 1 })

	ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{}, nil)
	resp := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second register expected 429, got %d", resp.StatusCode)
	}
}

func TestServerWithoutRedisDoesNotLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.Redis = nil
		cfg.LoginRateLimitPerMinute = 1
	})
	body := map[string]string{"username": "ninguem", "password": "pass"}
	for i := 0; i < 3; i++ {
		if resp := ts.do(t, http.MethodPost, "/api/auth/login", "", body, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request %d expected 401, got %d", i, resp.StatusCode)
		}
	}
}

func TestNewServerRequiresApp(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without app")
	}
}
