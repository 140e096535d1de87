package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/iudanet/stocksync/internal/server/handlers"
	"github.com/iudanet/stocksync/pkg/api"
)

// RecoveryMiddleware создает middleware для восстановления после паники
// Перехватывает panic, логирует стек вызовов и возвращает 500 с кодом internal
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				// Обрыв соединения сервер обрабатывает сам
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("Panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"stack", string(debug.Stack()),
				)

				// Не раскрываем детали клиенту
				handlers.SendError(w, logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Chain оборачивает h в middleware, первый в списке выполняется первым
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
