package filestorage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FileStorageInterface interface {
	Save(file io.Reader, originalFileName string, prefix string) (filePath string, err error)
	Delete(filePath string) error
	Exists(filePath string) bool
}

var ErrOutsideStorage = errors.New("путь вне хранилища файлов")

type LocalFileStorage struct {
	basePath string
	now      func() time.Time
}

func NewLocalFileStorage(basePath string) (*LocalFileStorage, error) {
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию: %w", err)
		}
	}
	return &LocalFileStorage{basePath: basePath, now: time.Now}, nil
}

const maxExtLength = 10

// safeExt оставляет короткое расширение из латиницы и цифр, иначе файл сохраняется без него.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Save пишет файл в <basePath>/<prefix>/YYYY/MM/DD и возвращает путь относительно basePath.
func (s *LocalFileStorage) Save(file io.Reader, originalFileName string, prefix string) (string, error) {
	now := s.now()
	ext := safeExt(originalFileName)
	uniqueFileName := fmt.Sprintf("%s-%s%s", now.Format("2006-01-02"), uuid.New().String(), ext)

	datePath := now.Format("2006/01/02")
	fullDirPath := filepath.Join(s.basePath, prefix, datePath)

	if err := os.MkdirAll(fullDirPath, 0o755); err != nil {
		return "", err
	}

	fullPath := filepath.Join(fullDirPath, uniqueFileName)
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return "", err
	}
	if err = dst.Close(); err != nil {
		os.Remove(fullPath)
		return "", err
	}

	return filepath.ToSlash(filepath.Join(prefix, datePath, uniqueFileName)), nil
}

// Delete удаляет файл. Отсутствующий файл не считается ошибкой.
func (s *LocalFileStorage) Delete(filePath string) error {
	fullPath, err := s.resolve(filePath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(fullPath)
}

func (s *LocalFileStorage) Exists(filePath string) bool {
	fullPath, err := s.resolve(filePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// resolve переводит относительный путь в путь на диске, не выходя за basePath.
func (s *LocalFileStorage) resolve(filePath string) (string, error) {
	relativePath := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(filePath, "/")))
	if relativePath == "." || strings.HasPrefix(relativePath, "..") || filepath.IsAbs(relativePath) {
		return "", ErrOutsideStorage
	}
	return filepath.Join(s.basePath, relativePath), nil
}
