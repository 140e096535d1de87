package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

// UserIDKey ключ для хранения user_id в контексте
const UserIDKey contextKey = "user_id"

// WithUserID кладет user_id в контекст запроса
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
