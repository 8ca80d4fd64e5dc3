package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the
// values this package stores in a request context.
type contextKey string

const clientIDKey contextKey = "clientID"

// RequireBearer is a middleware that enforces a valid access token.
//
// It reads "Authorization: Bearer <jwt>", validates the token and stores the
// client ID in the request context. A missing or invalid token ends the
// request with 401 and a WWW-Authenticate challenge, as RFC 6750 asks.
func RequireBearer(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, `Bearer realm="users"`)
				return
			}

			clientID, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, `Bearer realm="users", error="invalid_token"`)
				return
			}

			ctx := context.WithValue(r.Context(), clientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext returns the client the request was authenticated as.
// It reports false on routes that are not behind RequireBearer.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey).(string)
	return id, ok && id != ""
}

// bearerToken extracts the token from the Authorization header. The scheme
// name is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid bearer token required"}`))
}
