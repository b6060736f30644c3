package services

import (
	"context"

	"relay-chat/pkg/logger"
)

// WithUserContext stores the authenticated user id. The logger key is reused so
// logger.WithContext picks it up.
func WithUserContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, logger.UserIdKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(logger.UserIdKey).(string)
	return userID, ok && userID != ""
}
