package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	req := require.New(t)

	m := NewTokenManager("test-secret", time.Hour)
	token, err := m.Issue(42, "minsu")
	req.NoError(err)

	var gotUserID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(m)(next)

	t.Run("bearer header", func(t *testing.T) {
		gotUserID = 0
		r := httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.EqualValues(t, 42, gotUserID)
	})

	t.Run("query param fallback", func(t *testing.T) {
		gotUserID = 0
		r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.EqualValues(t, 42, gotUserID)
	})

	t.Run("missing token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
