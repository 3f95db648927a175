package authn

import "context"

type contextKey int

const userContextKey contextKey = iota

// WithUser attaches username to ctx.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userContextKey, username)
}

// UserFromContext returns the username attached by WithUser, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(userContextKey).(string)
	return username, ok
}
