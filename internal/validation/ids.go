package validation

import (
	"fmt"
	"regexp"
)

// IDPattern определяет допустимый формат идентификаторов сущностей и областей
// Латинские буквы, цифры, дефис и нижнее подчеркивание, UUID тоже подходит
// Длина: 1-64 символа
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// MaxIDLen максимальная длина идентификатора
	MaxIDLen = 64
)

// ValidateEntityID проверяет идентификатор сущности
func ValidateEntityID(id string) error {
	return validateID("entity id", id)
}

// ValidateScopeID проверяет идентификатор области
func ValidateScopeID(id string) error {
	return validateID("scope id", id)
}

// ValidateUserID проверяет идентификатор пользователя
func ValidateUserID(id string) error {
	return validateID("user id", id)
}

func validateID(what, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}

	if len(id) > MaxIDLen {
		return fmt.Errorf("%s must not exceed %d characters", what, MaxIDLen)
	}

	if !IDPattern.MatchString(id) {
		return fmt.Errorf("%s can only contain letters (a-z, A-Z), numbers (0-9), hyphens (-) and underscores (_)", what)
	}

	return nil
}
