package util

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted *TrustedProxies
		want    string
	}{
		{"untrusted peer ignores headers", "198.51.100.10:1234", "203.0.113.5", "203.0.113.6", nil, "198.51.100.10"},
		{"trusted peer uses forwarded client", "10.0.0.20:1234", "203.0.113.5", "", proxies, "203.0.113.5"},
		{"chain skips trusted hops", "10.0.0.20:1234", "203.0.113.5, 10.0.0.10", "", proxies, "203.0.113.5"},
		{"single trusted address", "192.168.1.10:80", "203.0.113.9", "", proxies, "203.0.113.9"},
		{"garbage forwarded falls back to real ip", "10.0.0.20:1234", "nonsense", "203.0.113.7", proxies, "203.0.113.7"},
		{"all hops trusted returns leftmost", "10.0.0.20:1234", "10.0.0.5, 10.0.0.10", "", proxies, "10.0.0.5"},
		{"ipv6 peer", "[2001:db8::1]:443", "", "", proxies, "2001:db8::1"},
		{"unparseable remote is returned as is", "pipe", "", "", proxies, "pipe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	set, err := NewTrustedProxies([]string{" 10.0.0.0/8 ", "::ffff:192.168.1.1"})
	if err != nil {
		t.Fatalf("valid entries: %v", err)
	}
	if !set.Contains(netip.MustParseAddr("192.168.1.1")) {
		t.Fatalf("mapped address should match its ipv4 form")
	}
	if set, err := NewTrustedProxies([]string{"", "  "}); err != nil || set != nil {
		t.Fatalf("blank entries should trust nobody, got %v, %v", set, err)
	}
	if _, err := NewTrustedProxies([]string{"bad-cidr"}); err == nil {
		t.Fatalf("expected parse error for invalid entry")
	}
}
