package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// TokenAuth guards the local API with a bearer token whose bcrypt hash is
// configured on the daemon.
type TokenAuth struct {
	hash   []byte
	logger zerolog.Logger

	mu       sync.RWMutex
	verified string // last token that matched hash
}

// NewTokenAuth creates a token checker. An empty hash disables it.
func NewTokenAuth(hash string, logger zerolog.Logger) *TokenAuth {
	return &TokenAuth{
		hash:   []byte(hash),
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Enabled reports whether a token hash is configured.
func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

// RequireToken rejects requests without a valid Authorization bearer token.
func (a *TokenAuth) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !a.check(token) {
			a.logger.Warn().
				Str("type", "security").
				Str("event", "invalid_token").
				Str("ip", RealIP(r)).
				Str("endpoint", r.URL.Path).
				Msg("rejected API token")
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// check compares token with the hash. bcrypt is slow, so the last accepted
// token is remembered and compared in constant time.
func (a *TokenAuth) check(token string) bool {
	a.mu.RLock()
	cached := a.verified
	a.mu.RUnlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(token)) == 1 {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return false
	}
	a.mu.Lock()
	a.verified = token
	a.mu.Unlock()
	return true
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// bearerToken reads the Authorization header, or the access_token query
// parameter for clients such as EventSource that cannot set headers.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		token := r.URL.Query().Get("access_token")
		return token, token != ""
	}
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

// jsonError sends a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
