package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"AccountPlatform/services/account-service/internal/domain"
	"AccountPlatform/services/account-service/internal/pkg/password"
	"AccountPlatform/services/account-service/internal/repository"
)

const accountColumns = `id, email, first_name, second_name, password, role, is_active, created_ts, updated_ts`

// AccountRepository реализация репозитория аккаунтов для PostgreSQL
type AccountRepository struct {
	pool   *pgxpool.Pool
	hasher password.Hasher
}

// NewAccountRepository создает новый экземпляр AccountRepository
func NewAccountRepository(pool *pgxpool.Pool, hasher password.Hasher) repository.AccountRepository {
	return &AccountRepository{pool: pool, hasher: hasher}
}

// Create сохраняет новый неактивный аккаунт
func (r *AccountRepository) Create(ctx context.Context, account domain.NewAccount) (*domain.Account, error) {
	hash, err := r.hasher.Hash(account.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `INSERT INTO "user" (email, first_name, second_name, password)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns

	created, err := scanAccount(r.pool.QueryRow(ctx, query,
		account.Email,
		account.FirstName,
		account.SecondName,
		hash,
	))
	if err != nil {
		if hasCode(err, uniqueViolation) {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

// FindActiveByID возвращает активный аккаунт по ID
func (r *AccountRepository) FindActiveByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM "user" WHERE id = $1 AND is_active`
	return r.findOne(ctx, "id", query, id)
}

// FindActiveByEmail возвращает активный аккаунт по email
func (r *AccountRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM "user" WHERE email = $1 AND is_active`
	return r.findOne(ctx, "email", query, email)
}

// FindByEmail возвращает аккаунт по email независимо от статуса
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM "user" WHERE email = $1`
	return r.findOne(ctx, "email", query, email)
}

// FindByActivationKey возвращает аккаунт, к которому привязан ключ активации
func (r *AccountRepository) FindByActivationKey(ctx context.Context, key string) (*domain.Account, error) {
	query := `SELECT u.id, u.email, u.first_name, u.second_name, u.password, u.role, u.is_active, u.created_ts, u.updated_ts
		FROM activation_key k
		JOIN "user" u ON u.id = k.user_id
		WHERE k.key = $1::uuid`

	account, err := r.findOne(ctx, "activation key", query, key)
	if err != nil && hasCode(err, invalidTextRepr) {
		return nil, repository.ErrNotFound
	}
	return account, err
}

// Activate переводит аккаунт в активное состояние. Повторный вызов не меняет статус.
func (r *AccountRepository) Activate(ctx context.Context, id int64) (*domain.Account, error) {
	query := `UPDATE "user" SET is_active = TRUE, updated_ts = now()
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}
	return account, nil
}

// Update обновляет имя и фамилию активного аккаунта. Email, пароль и роль не меняются.
func (r *AccountRepository) Update(ctx context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error) {
	query := `UPDATE "user" SET
		first_name = COALESCE($2, first_name),
		second_name = COALESCE($3, second_name),
		updated_ts = now()
	WHERE id = $1 AND is_active
	RETURNING ` + accountColumns

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id, patch.FirstName, patch.SecondName))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) findOne(ctx context.Context, by, query string, arg interface{}) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by %s: %w", by, err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var role string
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.SecondName,
		&account.PasswordHash,
		&role,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Role = domain.Role(role)
	return &account, nil
}
