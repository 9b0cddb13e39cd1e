package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgarciatw/graphQL-Library/pkg/logging"
	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)

	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "secret"))
}

func TestTokenIssuer(t *testing.T) {
	t.Parallel()

	user := &model.User{ID: "u1", Username: "frodo", FavoriteGenre: "fantasy"}

	t.Run("empty secret rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewTokenIssuer("", time.Hour)
		assert.Error(t, err)
	})

	t.Run("issue and verify roundtrip", func(t *testing.T) {
		t.Parallel()
		ti, err := NewTokenIssuer("test-secret", time.Hour)
		require.NoError(t, err)

		raw, err := ti.Issue(user)
		require.NoError(t, err)

		claims, err := ti.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "frodo", claims.Username)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		t.Parallel()
		ti, err := NewTokenIssuer("secret-a", time.Hour)
		require.NoError(t, err)
		other, err := NewTokenIssuer("secret-b", time.Hour)
		require.NoError(t, err)

		raw, err := ti.Issue(user)
		require.NoError(t, err)

		_, err = other.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		t.Parallel()
		ti, err := NewTokenIssuer("test-secret", time.Hour)
		require.NoError(t, err)
		ti.ttl = -time.Minute

		raw, err := ti.Issue(user)
		require.NoError(t, err)

		_, err = ti.Verify(raw)
		assert.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()
		ti, err := NewTokenIssuer("test-secret", time.Hour)
		require.NoError(t, err)

		_, err = ti.Verify("not.a.token")
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	newFixture := func(t *testing.T) (*Middleware, *TokenIssuer, *model.User) {
		t.Helper()
		store := storage.NewMemoryStore()
		user := &model.User{ID: "u1", Username: "frodo", FavoriteGenre: "fantasy"}
		require.NoError(t, store.InsertUser(context.Background(), user))

		ti, err := NewTokenIssuer("test-secret", time.Hour)
		require.NoError(t, err)

		return NewMiddleware(store, ti, logging.Nop()), ti, user
	}

	// capture records the user the middleware attached, if any.
	capture := func(got **model.User, ok *bool) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*got, *ok = CurrentUser(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("valid token attaches user", func(t *testing.T) {
		t.Parallel()
		mw, ti, user := newFixture(t)

		raw, err := ti.Issue(user)
		require.NoError(t, err)

		var got *model.User
		var ok bool
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		mw.Wrap(capture(&got, &ok)).ServeHTTP(rec, req)

		require.True(t, ok)
		assert.Equal(t, "frodo", got.Username)
		assert.Equal(t, int64(0), mw.Rejected())
	})

	t.Run("missing header is anonymous", func(t *testing.T) {
		t.Parallel()
		mw, _, _ := newFixture(t)

		var got *model.User
		var ok bool
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		rec := httptest.NewRecorder()
		mw.Wrap(capture(&got, &ok)).ServeHTTP(rec, req)

		assert.False(t, ok)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(0), mw.Rejected())
	})

	t.Run("invalid token is anonymous and counted", func(t *testing.T) {
		t.Parallel()
		mw, _, _ := newFixture(t)

		var got *model.User
		var ok bool
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		mw.Wrap(capture(&got, &ok)).ServeHTTP(rec, req)

		assert.False(t, ok)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(1), mw.Rejected())
	})

	t.Run("token for deleted user is anonymous", func(t *testing.T) {
		t.Parallel()
		store := storage.NewMemoryStore()
		ti, err := NewTokenIssuer("test-secret", time.Hour)
		require.NoError(t, err)
		mw := NewMiddleware(store, ti, logging.Nop())

		raw, err := ti.Issue(&model.User{ID: "ghost", Username: "ghost"})
		require.NoError(t, err)

		var got *model.User
		var ok bool
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.Header.Set("Authorization", "bearer "+raw)
		rec := httptest.NewRecorder()
		mw.Wrap(capture(&got, &ok)).ServeHTTP(rec, req)

		assert.False(t, ok)
		assert.Equal(t, int64(1), mw.Rejected())
	})
}
