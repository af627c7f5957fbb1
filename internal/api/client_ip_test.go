package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanward/internal/types"
)

func TestProxyList_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		trusted   []string
		remote    string
		forwarded string
		want      string
	}{
		{"no proxies configured", nil, "192.0.2.1:1234", "203.0.113.7", "192.0.2.1"},
		{"untrusted peer", []string{"10.0.0.0/8"}, "192.0.2.1:1234", "203.0.113.7", "192.0.2.1"},
		{"trusted peer without header", []string{"192.0.2.1"}, "192.0.2.1:1234", "", "192.0.2.1"},
		{"trusted peer", []string{"192.0.2.1"}, "192.0.2.1:1234", "203.0.113.7", "203.0.113.7"},
		{"nearest untrusted hop wins", []string{"192.0.2.1"}, "192.0.2.1:1234", "203.0.113.7, 198.51.100.9", "198.51.100.9"},
		{"trusted chain is skipped", []string{"192.0.2.0/24", "10.0.0.0/8"}, "192.0.2.1:1234", "203.0.113.7, 10.1.2.3", "203.0.113.7"},
		{"garbage hop stops the walk", []string{"192.0.2.1", "10.0.0.0/8"}, "192.0.2.1:1234", "203.0.113.7, not-an-ip, 10.1.2.3", "10.1.2.3"},
		{"ipv6 peer", []string{"2001:db8::/32"}, "[2001:db8::1]:443", "203.0.113.7", "203.0.113.7"},
		{"invalid entries are ignored", []string{"bogus", "192.0.2.1"}, "192.0.2.1:1234", "203.0.113.7", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, NewProxyList(tt.trusted).Resolve(req))
		})
	}
}

func TestClientIP_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.1", clientIP(req))
}

func TestRateLimit_ForwardedForDoesNotResetBucket(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerMinute = 1
	cfg.Burst = 1
	server := NewServer(cfg, testDependencies())

	send := func(forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/wards", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, send("198.51.100.1").Code)
	w := send("198.51.100.2")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, types.CodeRateLimited, decodeError(t, w).Code)
}
