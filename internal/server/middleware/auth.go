package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/stocksync/internal/server/handlers"
	"github.com/iudanet/stocksync/internal/server/jwt"
	"github.com/iudanet/stocksync/pkg/api"
)

// TokenValidator проверяет access token
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				handlers.SendError(w, logger, http.StatusUnauthorized, api.CodeUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.Warn("Invalid Authorization header format")
				handlers.SendError(w, logger, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.Validate(parts[1])
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				handlers.SendError(w, logger, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token")
				return
			}

			logger.Debug("User authenticated", "user_id", claims.UserID)

			next.ServeHTTP(w, r.WithContext(handlers.WithUserID(r.Context(), claims.UserID)))
		})
	}
}
