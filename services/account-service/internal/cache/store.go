package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss запись отсутствует в хранилище
var ErrMiss = errors.New("cache miss")

// Store key-value хранилище для кеша
type Store interface {
	// Get возвращает ErrMiss, если ключа нет
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение, ttl <= 0 означает без истечения
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет ключ, отсутствие ключа не является ошибкой
	Delete(ctx context.Context, key string) error
}
