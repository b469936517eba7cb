package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"

	"delivery-system/config"
	apperrors "delivery-system/pkg/errors"
)

// ValidateFile проверяет размер и MIME-тип файла.
// contextName - ключ из config.UploadContexts.
func ValidateFile(fileHeader *multipart.FileHeader, file io.ReadSeeker, contextName string) error {
	rules, ok := config.UploadContexts[contextName]
	if !ok {
		return fmt.Errorf("внутренняя ошибка: неизвестный контекст загрузки '%s'", contextName)
	}

	if rules.MaxSizeMB > 0 {
		maxSizeBytes := int64(rules.MaxSizeMB) * 1024 * 1024
		if fileHeader.Size > maxSizeBytes {
			return fmt.Errorf("%w: размер файла (%.2f MB) превышает лимит в %d MB", apperrors.ErrInvalidFile, float64(fileHeader.Size)/1024/1024, rules.MaxSizeMB)
		}
	}

	// Тип определяем по первым 512 байтам
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("ошибка чтения файла")
	}

	// Курсор обязательно вернуть в начало
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("ошибка обработки файла")
	}

	mimeType := http.DetectContentType(buffer[:n])

	if !slices.Contains(rules.AllowedMimeTypes, mimeType) {
		return fmt.Errorf("%w: недопустимый формат файла: %s", apperrors.ErrInvalidFile, mimeType)
	}

	return nil
}

// Rules возвращает правила контекста загрузки.
func Rules(contextName string) (config.UploadConfig, bool) {
	rules, ok := config.UploadContexts[contextName]
	return rules, ok
}
