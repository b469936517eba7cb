package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator - обертка для использования в Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate реализует интерфейс echo.Validator
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Engine отдает настроенный валидатор для проверки отдельных значений.
func (cv *CustomValidator) Engine() *validator.Validate {
	return cv.validator
}

// New создает валидатор для Echo.
func New() *CustomValidator {
	return &CustomValidator{validator: NewEngine()}
}

// NewEngine создает и настраивает валидатор.
// Имена полей в ошибках берутся из json-тегов.
func NewEngine() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	registerNullTypes(v)

	// Сервер не должен стартовать без правил
	if err := registerRules(v); err != nil {
		panic("ошибка регистрации валидаторов: " + err.Error())
	}
	return v
}
