package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/collabimport/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// =============================================================================
// APIKeyAuth Tests
// =============================================================================

func TestAPIKeyAuth(t *testing.T) {
	enabled := config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "beta"}}

	tests := []struct {
		name string
		cfg  config.SecurityConfig
		key  string
		want int
	}{
		{"disabled passes without key", config.SecurityConfig{}, "", http.StatusOK},
		{"missing key", enabled, "", http.StatusUnauthorized},
		{"wrong key", enabled, "gamma", http.StatusForbidden},
		{"first key", enabled, "alpha", http.StatusOK},
		{"second key", enabled, "beta", http.StatusOK},
		{"prefix of key", enabled, "alph", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.cfg)(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// =============================================================================
// TrustedRealIP Tests
// =============================================================================

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "no trusted proxies strips port",
			remote: "203.0.113.7:5555",
			headers: map[string]string{
				"X-Real-IP": "1.2.3.4",
			},
			want: "203.0.113.7",
		},
		{
			name:    "trusted proxy X-Real-IP",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "trusted proxy X-Forwarded-For chain",
			trusted: []string{"127.0.0.1"},
			remote:  "127.0.0.1:4000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.1"},
			want:    "198.51.100.9",
		},
		{
			name:    "trusted proxy invalid header keeps remote",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "not-an-ip"},
			want:    "10.1.2.3",
		},
		{
			name:    "untrusted source ignores headers",
			trusted: []string{"10.0.0.0/8"},
			remote:  "192.0.2.1:4000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9"},
			want:    "192.0.2.1",
		},
		{
			name:    "ipv6 remote",
			trusted: []string{"invalid-entry"},
			remote:  "[2001:db8::1]:443",
			want:    "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"192.0.2.1:80", "192.0.2.1", true},
		{"192.0.2.1", "192.0.2.1", true},
		{"[::1]:8080", "::1", true},
		{"::ffff:192.0.2.1", "192.0.2.1", true},
		{"pipe", "", false},
	}

	for _, tt := range tests {
		a, ok := ParseAddr(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseAddr(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && a.String() != tt.want {
			t.Errorf("ParseAddr(%q) = %q, want %q", tt.in, a.String(), tt.want)
		}
	}
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request in the window should be rejected")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own budget")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Error("budget should reset after the window")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(3 * time.Minute)
	rl.Allow("fresh")
	rl.cleanup()

	if _, ok := rl.visitors["old"]; ok {
		t.Error("idle visitor should be removed")
	}
	if _, ok := rl.visitors["fresh"]; !ok {
		t.Error("active visitor should be kept")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Handler(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/imports", nil)
		req.RemoteAddr = "192.0.2.1"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_CapturesStatusAndFlush(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("ok"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		} else {
			t.Error("wrapped writer should implement http.Flusher")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if !rec.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
}
