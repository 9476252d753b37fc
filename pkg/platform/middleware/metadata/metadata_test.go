package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"verigate/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{name: "first forwarded address wins", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:1234", expected: "203.0.113.7"},
		{name: "real ip header", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "10.0.0.2:1234", expected: "198.51.100.4"},
		{name: "ipv4 remote addr strips port", remote: "192.0.2.1:5555", expected: "192.0.2.1"},
		{name: "ipv6 remote addr strips brackets", remote: "[::1]:5555", expected: "::1"},
		{name: "garbage forwarded entries are skipped", headers: map[string]string{"X-Forwarded-For": "<script>, 203.0.113.9"}, remote: "10.0.0.2:1234", expected: "203.0.113.9"},
		{name: "unparseable headers fall back to the peer", headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "nope"}, remote: "192.0.2.1:5555", expected: "192.0.2.1"},
		{name: "ipv4 mapped addresses are unmapped", remote: "[::ffff:192.0.2.8]:80", expected: "192.0.2.8"},
		{name: "nothing usable", remote: "pipe", expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIPFromRequest(req))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generates id when missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})
}
