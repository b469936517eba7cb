package validation

import (
	"strings"

	"delivery-system/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// registerRules регистрирует теги, которые мы используем в struct tags
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("notblank", isNotBlank); err != nil {
		return err
	}
	if err := v.RegisterValidation("iso8601", isISO8601); err != nil {
		return err
	}
	return nil
}

// isNotBlank - строка не пустая после обрезки пробелов
func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// isISO8601 - дата-время в одном из принимаемых форматов
func isISO8601(fl validator.FieldLevel) bool {
	_, err := utils.ParseISO8601(fl.Field().String())
	return err == nil
}
