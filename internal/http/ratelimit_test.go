package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("third request in the window should be refused")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients are counted separately")
	}

	now = now.Add(rateLimitWindow + time.Second)
	if !rl.allow("1.2.3.4") {
		t.Fatal("a new window should reset the counter")
	}

	now = now.Add(rateLimitStaleAge + time.Minute)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if rl.activeClients() != 0 {
		t.Fatalf("active clients = %d", rl.activeClients())
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted proxy header ignored", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:1234", "198.51.100.1, 10.0.0.2", "198.51.100.1"},
		{"trusted proxy bad header", "10.0.0.2:1234", "garbage", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRequest(tt.remoteAddr, tt.xff)
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newRequest(remoteAddr, xff string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = remoteAddr
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	return r
}
