package auth

import (
	"context"

	"github.com/hectorgarciatw/graphQL-Library/pkg/model"
)

type contextKey int

const userKey contextKey = iota

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the user attached to the request context, if any.
func CurrentUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
