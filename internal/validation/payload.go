package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/stocksync/internal/models"
)

// payloadValidate общий экземпляр валидатора, имена полей в ошибках берутся из json тегов
var payloadValidate *validator.Validate

// knownFields допустимые имена полей по типу сущности
var knownFields map[string]map[string]bool

func init() {
	payloadValidate = validator.New(validator.WithRequiredStructEnabled())
	payloadValidate.RegisterTagNameFunc(jsonFieldName)

	knownFields = map[string]map[string]bool{
		models.EntityTypeInventoryItem: fieldNames(reflect.TypeOf(models.InventoryItem{})),
		models.EntityTypeTransaction:   fieldNames(reflect.TypeOf(models.Transaction{})),
	}
}

// ValidateEntity проверяет полный снимок сущности
func ValidateEntity(entityType string, fields models.Fields) error {
	if err := checkFieldNames(entityType, fields); err != nil {
		return err
	}

	entity, err := models.DecodeEntity(entityType, fields)
	if err != nil {
		return err
	}

	if err := payloadValidate.Struct(entity); err != nil {
		return describe(err)
	}
	return nil
}

// ValidatePatch проверяет patch для update: имена полей должны быть известны,
// а результат наложения patch на текущее состояние current - корректной сущностью
func ValidatePatch(entityType string, current, patch models.Fields) error {
	if len(patch) == 0 {
		return fmt.Errorf("patch cannot be empty")
	}
	if err := checkFieldNames(entityType, patch); err != nil {
		return err
	}
	return ValidateEntity(entityType, current.Merge(patch))
}

func checkFieldNames(entityType string, fields models.Fields) error {
	known, ok := knownFields[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type: %q", entityType)
	}

	var unknown []string
	for _, name := range fields.Keys() {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown fields for %s: %s", entityType, strings.Join(unknown, ", "))
	}
	return nil
}

// describe превращает ошибки валидатора в читаемое сообщение вида "qty: gte 0"
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg += " " + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid payload: %s", strings.Join(msgs, "; "))
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func fieldNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := jsonFieldName(t.Field(i)); name != "" {
			names[name] = true
		}
	}
	return names
}
