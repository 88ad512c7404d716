package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

// MinAPIKeyLength is the shortest key accepted when authentication is on.
const MinAPIKeyLength = 16

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// AuthMiddleware requires a matching X-API-Key header when auth is enabled.
// The health endpoint is always public.
func AuthMiddleware(cfg AuthConfig, log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			log.Warn("unauthorized request", "path", r.URL.Path, "reason", "missing API key")
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "Missing X-API-Key header")
			return
		}
		if !constantTimeCompare(apiKey, cfg.APIKey) {
			log.Warn("unauthorized request", "path", r.URL.Path, "reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicEndpoint(path string) bool {
	return path == "/health"
}

// ValidateAuthConfig rejects an enabled configuration with a short key.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return errors.NewValidation("api_key", "API key is required when authentication is enabled")
	}
	if len(cfg.APIKey) < MinAPIKeyLength {
		return errors.NewValidation("api_key",
			fmt.Sprintf("API key must be at least %d characters (got %d)", MinAPIKeyLength, len(cfg.APIKey)))
	}
	return nil
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
