package repository

import (
	"context"
	"errors"

	"AccountPlatform/services/account-service/internal/domain"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail нарушено ограничение уникальности email
	ErrDuplicateEmail = errors.New("duplicate email")
)

// AccountRepository интерфейс для работы с аккаунтами
type AccountRepository interface {
	// Create хеширует пароль и сохраняет неактивный аккаунт
	Create(ctx context.Context, account domain.NewAccount) (*domain.Account, error)
	FindActiveByID(ctx context.Context, id int64) (*domain.Account, error)
	FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByEmail ищет аккаунт независимо от статуса активации
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByActivationKey(ctx context.Context, key string) (*domain.Account, error)
	Activate(ctx context.Context, id int64) (*domain.Account, error)
	// Update применяет только заданные поля патча к активному аккаунту
	Update(ctx context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error)
}

// ActivationKeyRepository интерфейс для работы с ключами активации
type ActivationKeyRepository interface {
	// IssueOrReplace выпускает новый ключ, перезаписывая существующий ключ аккаунта
	IssueOrReplace(ctx context.Context, accountID int64) (string, error)
	// Redeem возвращает идентификатор аккаунта, к которому привязан ключ. Ключ не удаляется.
	Redeem(ctx context.Context, key string) (int64, error)
}
