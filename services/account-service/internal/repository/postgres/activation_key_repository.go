package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"AccountPlatform/services/account-service/internal/repository"
)

// ActivationKeyRepository реализация реестра ключей активации для PostgreSQL
type ActivationKeyRepository struct {
	pool   *pgxpool.Pool
	newKey func() string
}

// NewActivationKeyRepository создает новый экземпляр ActivationKeyRepository
func NewActivationKeyRepository(pool *pgxpool.Pool) repository.ActivationKeyRepository {
	return &ActivationKeyRepository{pool: pool, newKey: uuid.NewString}
}

// IssueOrReplace выпускает случайный ключ. У аккаунта остается только один ключ.
func (r *ActivationKeyRepository) IssueOrReplace(ctx context.Context, accountID int64) (string, error) {
	query := `INSERT INTO activation_key (user_id, key)
		VALUES ($1, $2::uuid)
		ON CONFLICT (user_id) DO UPDATE SET key = EXCLUDED.key
		RETURNING key::text`

	var key string
	if err := r.pool.QueryRow(ctx, query, accountID, r.newKey()).Scan(&key); err != nil {
		if hasCode(err, foreignKeyViolation) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to issue activation key: %w", err)
	}
	return key, nil
}

// Redeem возвращает идентификатор аккаунта по ключу
func (r *ActivationKeyRepository) Redeem(ctx context.Context, key string) (int64, error) {
	query := `SELECT user_id FROM activation_key WHERE key = $1::uuid`

	var accountID int64
	if err := r.pool.QueryRow(ctx, query, key).Scan(&accountID); err != nil {
		if isNoRows(err) || hasCode(err, invalidTextRepr) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("failed to redeem activation key: %w", err)
	}
	return accountID, nil
}
