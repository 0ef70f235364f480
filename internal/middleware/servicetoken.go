package middleware

import (
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"strings"
)

// RequireBearer guards a route subtree with static bearer credentials.
// A request passes when its Authorization header carries any of the
// configured non-empty tokens; the comparison is constant-time. With no
// token configured at all the subtree is disabled rather than open.
func RequireBearer(tokens ...string) func(http.Handler) http.Handler {
	configured := nonEmptyTokens(tokens)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(configured) == 0 {
				writeAuthError(w, http.StatusServiceUnavailable, "service credential not configured")
				return
			}
			if !bearerMatches(r, configured) {
				writeAuthError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalBearer behaves like RequireBearer, except that an empty token
// set leaves the subtree open. Used for the read surface, which is only
// locked down when a client token is configured.
func OptionalBearer(tokens ...string) func(http.Handler) http.Handler {
	configured := nonEmptyTokens(tokens)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(configured) > 0 && !bearerMatches(r, configured) {
				writeAuthError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func nonEmptyTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func bearerMatches(r *http.Request, tokens []string) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	presented := strings.TrimSpace(parts[1])
	for _, token := range tokens {
		if hmac.Equal([]byte(presented), []byte(token)) {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
