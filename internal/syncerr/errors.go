// Package syncerr classifies failures of the sync engine.
//
// Transient network errors are retried internally with backoff, permanent
// rejections and conflicts are surfaced as operation states, storage errors
// abort the originating call immediately.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind тип ошибки синхронизации
type Kind string

// Виды ошибок
const (
	KindTransientNetwork   Kind = "transient_network"
	KindPermanentRejection Kind = "permanent_rejection"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindConflictBlocked    Kind = "conflict_blocked"
	KindSessionExpired     Kind = "session_expired"
)

// Sentinel значения для errors.Is
var (
	ErrTransientNetwork   = &Error{Kind: KindTransientNetwork}
	ErrPermanentRejection = &Error{Kind: KindPermanentRejection}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrConflictBlocked    = &Error{Kind: KindConflictBlocked}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
)

// Error ошибка синхронизации с классификацией
type Error struct {
	Err        error
	Kind       Kind
	Op         string // Op операция, во время которой произошла ошибка (например, "transmit", "commit")
	Code       string // Code машинно-читаемый код ответа сервера, если есть
	StatusCode int    // StatusCode HTTP код ответа сервера, если есть
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по Kind, что позволяет использовать sentinel значения
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable возвращает true для ошибок, которые имеет смысл повторить
func (e *Error) Retryable() bool {
	return e.Kind == KindTransientNetwork
}

// Transient создает ошибку сети, подлежащую повтору
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransientNetwork, Op: op, Err: err}
}

// Permanent создает ошибку отказа сервера, не подлежащую повтору
func Permanent(op string, status int, err error) *Error {
	return &Error{Kind: KindPermanentRejection, Op: op, StatusCode: status, Err: err}
}

// Storage создает ошибку недоступности локального хранилища
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// Blocked создает ошибку-состояние блокировки конфликтом
func Blocked(op string, err error) *Error {
	return &Error{Kind: KindConflictBlocked, Op: op, Err: err}
}

// Expired создает ошибку истекшей сессии
func Expired(op string, err error) *Error {
	return &Error{Kind: KindSessionExpired, Op: op, StatusCode: 401, Err: err}
}

// KindOf возвращает Kind ошибки или пустую строку для неклассифицированных ошибок
func KindOf(err error) Kind {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return ""
}

// CodeOf возвращает код ответа сервера из ошибки
func CodeOf(err error) string {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Code
	}
	return ""
}

// StatusOf возвращает HTTP код ответа сервера из ошибки или 0
func StatusOf(err error) int {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.StatusCode
	}
	return 0
}

// IsRetryable проверяет, что ошибка временная
func IsRetryable(err error) bool {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Retryable()
	}
	return false
}
