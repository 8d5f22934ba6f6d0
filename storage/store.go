// Package storage хранит PNG-графики прогнозов в локальном каталоге или в S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/LilVoxy/expiry_forecast/ETL/config"
)

var (
	ErrImageNotFound = errors.New("изображение не найдено")
	ErrInvalidKey    = errors.New("недопустимый ключ изображения")
)

// Драйверы хранилища
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ImageStore - хранилище графиков
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get возвращает содержимое и тип содержимого или ErrImageNotFound
	Get(ctx context.Context, key string) ([]byte, string, error)
	Driver() string
}

// NewKey создает уникальный ключ графика
func NewKey() string {
	return uuid.NewString() + ".png"
}

// ValidateKey проверяет, что ключ не выходит за пределы хранилища
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open создает хранилище по конфигурации
func Open(ctx context.Context, cfg config.ImageConfig) (ImageStore, error) {
	switch cfg.Driver {
	case DriverLocal, "":
		return NewLocalStore(cfg.Dir)
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища изображений %q", cfg.Driver)
	}
}
