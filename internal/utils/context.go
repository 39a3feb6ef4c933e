package utils

import (
	"context"
)

type contextKey string

const ContextUserIDKey contextKey = "userID"

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}

// OptionalUserID returns the authenticated subject, or nil for anonymous requests.
func OptionalUserID(ctx context.Context) *string {
	if id, ok := GetUserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}
