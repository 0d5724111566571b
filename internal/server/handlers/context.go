package handlers

import "context"

// ContextKey is the type of request context keys set by middleware
type ContextKey string

// UserIDKey holds the authenticated user ID
const UserIDKey ContextKey = "user_id"

// WithUserID returns ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext returns the authenticated user ID from ctx
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
