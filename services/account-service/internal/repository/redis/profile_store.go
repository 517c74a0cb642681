package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"AccountPlatform/services/account-service/internal/cache"
)

// ProfileStore реализация хранилища кеша профилей для Redis
type ProfileStore struct {
	client *redis.Client
}

// NewProfileStore создает новый экземпляр ProfileStore
func NewProfileStore(client *redis.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

// Get возвращает сериализованный профиль по ключу
func (s *ProfileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, nil
}

// Set сохраняет профиль, ttl <= 0 означает запись без истечения
func (s *ProfileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}

// Delete удаляет профиль
func (s *ProfileStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
	}
	return nil
}

var _ cache.Store = (*ProfileStore)(nil)
