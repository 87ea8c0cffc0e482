package interceptors

import "context"

type contextKey struct{ name string }

var (
	userIDKey  = contextKey{"user_id"}
	tokenIDKey = contextKey{"token_id"}
)

// WithIdentity returns a context carrying the authenticated actor and the id of the token that
// authenticated it. Services read the actor via GetUserID.
func WithIdentity(ctx context.Context, userID, tokenID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, tokenIDKey, tokenID)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

// GetTokenID returns the token id (jti) from context and true if set; otherwise "", false.
func GetTokenID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	return v, ok && v != ""
}
