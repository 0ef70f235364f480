package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitCapsRequests(t *testing.T) {
	handler := RateLimit(2, time.Minute)(okHandler())

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := hit("203.0.113.9:1111"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i+1, rec.Code)
		}
	}
	rec := hit("203.0.113.9:1111")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("429 must carry Retry-After")
	}
	if rec := hit("198.51.100.7:2222"); rec.Code != http.StatusOK {
		t.Fatalf("other client limited too: %d", rec.Code)
	}
}

func TestClientIPKeying(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"forwarded header wins", "192.0.2.50", "198.51.100.10:4321", "192.0.2.50"},
		{"first parseable entry", "bogus, 192.0.2.50 ,198.51.100.2", "198.51.100.10:4321", "192.0.2.50"},
		{"garbage header falls back", "not-an-ip", "198.51.100.10:4321", "198.51.100.10"},
		{"remote host strips port", "", "198.51.100.10:4321", "198.51.100.10"},
		{"ipv6 remote", "", net.JoinHostPort("2001:db8::7", "443"), "2001:db8::7"},
		{"portless remote kept as-is", "", "198.51.100.10", "198.51.100.10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}
