package api

// TokenRequest представляет запрос на выпуск токена доступа (dev issuer)
type TokenRequest struct {
	UserID string `json:"user_id"` // идентификатор пользователя
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	UserID      string `json:"user_id"`      // идентификатор пользователя из токена
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// Коды ошибок, по которым клиент классифицирует отказ
const (
	CodeVersionMismatch = "version_mismatch" // версия на сервере изменилась, повторить после проверки конфликта
	CodeAlreadyExists   = "already_exists"   // сущность с таким ID уже есть
	CodeNotFound        = "not_found"        // сущности нет
	CodeValidation      = "validation_failed"
	CodeUnauthorized    = "unauthorized"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
	CodeRateLimited     = "rate_limited"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Code    string `json:"code,omitempty"`    // машинно-читаемый код
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
