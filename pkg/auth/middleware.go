package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
)

const bearerPrefix = "bearer "

// Middleware derives the current user from the Authorization header of each
// request. A missing header, malformed value, invalid signature, or unknown
// user never fails the request: it is logged, counted, and the request
// continues anonymously.
type Middleware struct {
	users    storage.UserStore
	issuer   *TokenIssuer
	log      *slog.Logger
	rejected atomic.Int64
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(users storage.UserStore, issuer *TokenIssuer, log *slog.Logger) *Middleware {
	return &Middleware{users: users, issuer: issuer, log: log}
}

// Wrap returns a handler that attaches the current user to the request
// context before calling next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.issuer.Verify(raw)
		if err != nil {
			m.reject(r, "invalid bearer token", err)
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.FindUserByID(r.Context(), claims.Subject)
		if err != nil {
			m.reject(r, "token references unknown user", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Rejected returns the number of requests whose credentials were rejected
// and downgraded to anonymous.
func (m *Middleware) Rejected() int64 {
	return m.rejected.Load()
}

func (m *Middleware) reject(r *http.Request, msg string, err error) {
	m.rejected.Add(1)
	m.log.Warn(msg, "remote", r.RemoteAddr, "error", err)
}

// bearerToken extracts the token from an Authorization header value.
// The scheme comparison is case-insensitive.
func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
