package auth

import (
	"context"
	"net/http"
	"strings"

	resp "github.com/jwkoh/maeul-market/internal/lib/api/response"
)

type ctxKey int

const userIDKey ctxKey = 0

// Middleware authenticates the request with a bearer token. Browsers cannot
// set headers on a websocket dial, so a `token` query parameter is accepted
// as a fallback.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				resp.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
				return
			}

			userID, err := tokens.Parse(raw)
			if err != nil {
				resp.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id, zero when the request never went
// through Middleware.
func UserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
