package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "AccountPlatform/pkg/errors"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/pkg/metrics"
	"AccountPlatform/services/account-service/internal/domain"
)

const stripeCount = 64

// Loader загружает активный аккаунт из основного хранилища
type Loader func(ctx context.Context, id int64) (*domain.Account, error)

// Observer принимает результаты обращений к кешу
type Observer interface {
	ObserveCache(result string)
}

// stripe хранит порядковый номер последней инвалидации для группы идентификаторов
type stripe struct {
	mu              sync.Mutex
	lastInvalidated uint64
}

// ProfileCache кеш публичных профилей с ленивым заполнением.
// Заполнение, начавшееся до инвалидации, не сохраняет устаревшее значение.
type ProfileCache struct {
	store    Store
	prefix   string
	ttl      time.Duration
	logger   logger.Logger
	observer Observer

	sequence atomic.Uint64
	stripes  [stripeCount]stripe
}

// NewProfileCache создает новый ProfileCache
func NewProfileCache(store Store, prefix string, ttl time.Duration, log logger.Logger, observer Observer) *ProfileCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProfileCache{
		store:    store,
		prefix:   prefix,
		ttl:      ttl,
		logger:   log,
		observer: observer,
	}
}

// Key возвращает ключ записи профиля
func (c *ProfileCache) Key(id int64) string {
	return fmt.Sprintf("%s:%d", c.prefix, id)
}

func (c *ProfileCache) stripeFor(id int64) *stripe {
	index := id % stripeCount
	if index < 0 {
		index = -index
	}
	return &c.stripes[index]
}

func (c *ProfileCache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCache(result)
	}
}

// GetOrPopulate возвращает профиль из кеша, при промахе загружает его через loader и сохраняет.
// Отсутствующий или неактивный аккаунт не кешируется.
func (c *ProfileCache) GetOrPopulate(ctx context.Context, id int64, load Loader) (domain.PublicProfile, error) {
	key := c.Key(id)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var profile domain.PublicProfile
		decodeErr := json.Unmarshal(data, &profile)
		if decodeErr == nil {
			c.observe(metrics.CacheHit)
			return profile, nil
		}
		c.logger.Warn("Corrupted cache entry, reloading",
			logger.CtxField(ctx),
			logger.String("key", key),
			logger.Error(decodeErr),
		)
		c.observe(metrics.CacheMiss)
	case errors.Is(err, ErrMiss):
		c.observe(metrics.CacheMiss)
	default:
		// Недоступный кеш не должен ломать чтение профиля
		c.observe(metrics.CacheError)
		c.logger.Warn("Cache get failed, falling back to store",
			logger.CtxField(ctx),
			logger.String("key", key),
			logger.Error(err),
		)
	}

	startedAt := c.sequence.Load()

	account, err := load(ctx, id)
	if err != nil {
		return domain.PublicProfile{}, err
	}
	if account == nil || !account.IsActive {
		return domain.PublicProfile{}, apperrors.New(apperrors.ErrAccountNotFound, domain.MsgAccountNotFound)
	}

	profile := account.Profile()
	c.populate(ctx, id, startedAt, profile)
	return profile, nil
}

// populate сохраняет профиль, если с начала загрузки не было инвалидации
func (c *ProfileCache) populate(ctx context.Context, id int64, startedAt uint64, profile domain.PublicProfile) {
	data, err := json.Marshal(profile)
	if err != nil {
		c.logger.Error("Failed to encode profile", logger.CtxField(ctx), logger.Error(err))
		return
	}

	s := c.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastInvalidated > startedAt {
		c.logger.Debug("Skipping cache population after concurrent invalidation",
			logger.CtxField(ctx),
			logger.Int64("account_id", id),
		)
		return
	}

	if err := c.store.Set(ctx, c.Key(id), data, c.ttl); err != nil {
		c.logger.Warn("Cache set failed",
			logger.CtxField(ctx),
			logger.Int64("account_id", id),
			logger.Error(err),
		)
	}
}

// Invalidate удаляет профиль из кеша. Вызывается после фиксации записи в основном хранилище.
func (c *ProfileCache) Invalidate(ctx context.Context, id int64) error {
	s := c.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastInvalidated = c.sequence.Add(1)

	if err := c.store.Delete(ctx, c.Key(id)); err != nil {
		return fmt.Errorf("failed to invalidate profile %d: %w", id, err)
	}
	return nil
}
