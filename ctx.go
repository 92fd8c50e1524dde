package aegisx

import "context"

var userCtxKey = &contextKey{"user"}
var correlationCtxKey = &contextKey{"correlation-id"}

type contextKey struct {
	name string
}

// WithUserContext sets the User in the given context
func WithUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the user from the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithCorrelationID sets the request correlation id in the given
// context; the transport reuses it instead of minting a new one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(correlationCtxKey).(string)
	return raw, ok
}

// Can is a convenience permission check against the context user.
func Can(ctx context.Context, permission string) bool {
	user, ok := UserFromContext(ctx)
	if !ok {
		return false
	}
	return user.HasPermission(permission)
}
