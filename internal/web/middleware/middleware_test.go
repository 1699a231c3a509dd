package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted strips port", nil, "203.0.113.7:5123", map[string]string{"X-Real-IP": "10.0.0.1"}, "203.0.113.7"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"trusted forwarded first hop", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.1.2.3"}, "198.51.100.4"},
		{"bare ip proxy", []string{"192.0.2.10"}, "192.0.2.10:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3"},
		{"invalid cidr skipped", []string{"nonsense"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.1.2.3"},
		{"bad real ip does not fall back to forwarded", []string{"10.0.0.0/8"}, "10.1.2.3:80",
			map[string]string{"X-Real-IP": "nope", "X-Forwarded-For": "198.51.100.4"}, "10.1.2.3"},
		{"ipv6 peer", nil, "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"unparseable peer kept", nil, "pipe", nil, "pipe"},
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
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProxyNets(t *testing.T) {
	nets := parseProxyNets([]string{" 10.0.0.0/8 ", "", "192.0.2.10", "2001:db8::1", "nonsense"})
	require.Len(t, nets, 3)

	assert.True(t, within(net.ParseIP("10.200.0.1"), nets))
	assert.True(t, within(net.ParseIP("192.0.2.10"), nets))
	assert.False(t, within(net.ParseIP("192.0.2.11"), nets))
	assert.True(t, within(net.ParseIP("2001:db8::1"), nets))
	assert.False(t, within(net.ParseIP("2001:db8::2"), nets))
}

func TestBareIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", bareIP("203.0.113.7:5123").String())
	assert.Equal(t, "203.0.113.7", bareIP("203.0.113.7").String())
	assert.Equal(t, "2001:db8::1", bareIP("[2001:db8::1]:80").String())
	assert.Nil(t, bareIP("not-an-address"))
}

func TestOperator(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"caisse:k-2"}}

	tests := []struct {
		name     string
		key      string
		operator string
		want     string
	}{
		{"header wins", "k-2", "marie", "marie"},
		{"key label", "k-2", "", "caisse"},
		{"truncated", "k-2", strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, ip string
			h := APIKeyAuth(cfg)(Operator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = core.OperatorFromContext(r.Context())
				ip = core.GetIPAddressFromContext(r.Context())
			})))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1"
			req.Header.Set("X-API-Key", tt.key)
			if tt.operator != "" {
				req.Header.Set("X-Operator", tt.operator)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "192.0.2.1", ip)
		})
	}
}

func TestOperator_DefaultsToSystem(t *testing.T) {
	var got string
	h := APIKeyAuth(&config.SecurityConfig{})(Operator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = core.OperatorFromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, core.SystemOperator, got)
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{RequireAPIKey: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"invalid API key","message":"invalid API key","code":"AUTH_INVALID_KEY"}`, rec.Body.String())
}
