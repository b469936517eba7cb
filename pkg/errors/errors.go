package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
	ErrConflict   = fmt.Errorf("конфликт данных")

	// Справочники
	ErrCatalogInUse = fmt.Errorf("%w: запись справочника используется в доставках", ErrConflict)

	// Файлы
	ErrInvalidFile = fmt.Errorf("недопустимый файл")
)

// HttpError несет код ответа, сообщение для клиента и исходную ошибку для логов.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, context map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: context}
}

// ValidationError - набор ошибок по полям: имя поля -> сообщение.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// FieldError - короткий путь для ошибки одного поля.
func FieldError(field, message string) *ValidationError {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

// Add запоминает только первую ошибку по полю.
func (v *ValidationError) Add(field, message string) {
	if _, exists := v.Fields[field]; exists {
		return
	}
	v.Fields[field] = message
}

func (v *ValidationError) HasErrors() bool { return len(v.Fields) > 0 }

// FieldNames возвращает отсортированный список полей с ошибками.
func (v *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, name := range v.FieldNames() {
		parts = append(parts, fmt.Sprintf("%s: %s", name, v.Fields[name]))
	}
	return "ошибка валидации: " + strings.Join(parts, "; ")
}

// AsValidation достает *ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
