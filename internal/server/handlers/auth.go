package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/stocksync/internal/server/storage"
	"github.com/iudanet/stocksync/internal/validation"
	"github.com/iudanet/stocksync/pkg/api"
)

// TokenIssuer выпускает access token
type TokenIssuer interface {
	Issue(userID string) (string, int64, error)
}

// AuthHandler выдает токены доступа. Сервер не хранит паролей:
// это dev issuer, которому доверяют все клиенты стенда.
type AuthHandler struct {
	logger *slog.Logger
	users  storage.UserStorage
	tokens TokenIssuer
	now    func() time.Time
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, users storage.UserStorage, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		users:  users,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueToken обрабатывает POST /api/v1/auth/token
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode token request", slog.Any("error", err))
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateUserID(req.UserID); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	if _, err := h.users.TouchUser(ctx, req.UserID, h.now()); err != nil {
		h.logger.ErrorContext(ctx, "failed to record user", slog.Any("error", err))
		SendError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	token, expiresIn, err := h.tokens.Issue(req.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		SendError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	h.logger.InfoContext(ctx, "access token issued", slog.String("user_id", req.UserID))

	SendJSON(w, h.logger, api.TokenResponse{
		AccessToken: token,
		UserID:      req.UserID,
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}
