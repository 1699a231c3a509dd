package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

type contextKey string

const keyLabelKey contextKey = "api_key_label"

// KeyLabel returns the label of the API key that authenticated the request.
func KeyLabel(ctx context.Context) string {
	v, _ := ctx.Value(keyLabelKey).(string)
	return v
}

// APIKeyAuth returns middleware that validates the X-API-Key header against
// the configured label:key pairs and records the key's label on the context.
// If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := cfg.Keys()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			label, ok := matchAPIKey(apiKey, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			ctx := context.WithValue(r.Context(), keyLabelKey, label)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchAPIKey compares key against every configured key in constant time
// and returns the label of the match.
func matchAPIKey(key string, keys map[string]string) (string, bool) {
	var label string
	valid := 0
	for k, l := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			valid = 1
			label = l
		}
	}
	return label, valid == 1
}

// Operator records who runs the request: the X-Operator header when set,
// else the API key label, else core.SystemOperator. It ends up as the
// imported_by of import logs.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := strings.TrimSpace(r.Header.Get("X-Operator"))
		if len(op) > 100 {
			op = op[:100]
		}
		if op == "" {
			op = KeyLabel(r.Context())
		}
		ctx := r.Context()
		if op != "" {
			ctx = core.ContextWithOperator(ctx, op)
		}
		ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","message":"` + message + `","code":"` + code + `"}`))
}
