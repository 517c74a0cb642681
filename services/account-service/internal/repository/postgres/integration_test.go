//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"AccountPlatform/pkg/database"
	"AccountPlatform/services/account-service/internal/domain"
	"AccountPlatform/services/account-service/internal/pkg/password"
	"AccountPlatform/services/account-service/internal/repository"
	"AccountPlatform/services/account-service/internal/repository/postgres"
)

var (
	containerOnce sync.Once
	container     *tcpostgres.PostgresContainer
	sharedPool    *pgxpool.Pool
	containerErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedPool != nil {
		sharedPool.Close()
	}
	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
	os.Exit(code)
}

// setupTestDB поднимает контейнер PostgreSQL один раз на пакет и очищает таблицы перед тестом
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	containerOnce.Do(func() {
		container, containerErr = tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("accounts"),
			tcpostgres.WithUsername("accounts"),
			tcpostgres.WithPassword("accounts"),
			tcpostgres.BasicWaitStrategies(),
		)
		if containerErr != nil {
			return
		}

		var dsn string
		dsn, containerErr = container.ConnectionString(ctx, "sslmode=disable")
		if containerErr != nil {
			return
		}

		config := database.NewConfig()
		config.MaxRetries = 5
		config.RetryInterval = 500 * time.Millisecond

		var db *database.Postgres
		db, containerErr = database.ConnectDSN(ctx, dsn, config)
		if containerErr != nil {
			return
		}
		sharedPool = db.Pool
		containerErr = postgres.Migrate(ctx, sharedPool)
	})
	require.NoError(t, containerErr)

	_, err := sharedPool.Exec(ctx, `TRUNCATE activation_key, "user" RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return sharedPool
}

func newRepositories(pool *pgxpool.Pool) (repository.AccountRepository, repository.ActivationKeyRepository) {
	return postgres.NewAccountRepository(pool, password.NewSHA256Hasher()), postgres.NewActivationKeyRepository(pool)
}

func createAccount(t *testing.T, accounts repository.AccountRepository, email string) *domain.Account {
	t.Helper()
	account, err := accounts.Create(context.Background(), domain.NewAccount{
		Email:      email,
		FirstName:  "A",
		SecondName: "B",
		Password:   "p",
	})
	require.NoError(t, err)
	return account
}

func TestMigrate_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	require.NoError(t, postgres.Migrate(context.Background(), pool))
}

func TestAccountRepository_Create(t *testing.T) {
	pool := setupTestDB(t)
	accounts, _ := newRepositories(pool)

	account := createAccount(t, accounts, "a@x.com")

	assert.NotZero(t, account.ID)
	assert.Equal(t, "a@x.com", account.Email)
	assert.Equal(t, domain.RoleRegular, account.Role)
	assert.False(t, account.IsActive)
	assert.False(t, account.CreatedAt.IsZero())

	// Хранится хеш пароля, а не сам пароль
	expected, _ := password.NewSHA256Hasher().Hash("p")
	assert.Equal(t, expected, account.PasswordHash)
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	pool := setupTestDB(t)
	accounts, _ := newRepositories(pool)

	createAccount(t, accounts, "a@x.com")

	_, err := accounts.Create(context.Background(), domain.NewAccount{Email: "a@x.com", FirstName: "C", SecondName: "D", Password: "q"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	// Email чувствителен к регистру
	createAccount(t, accounts, "A@x.com")
}

func TestAccountRepository_FindRespectsActiveFlag(t *testing.T) {
	pool := setupTestDB(t)
	accounts, _ := newRepositories(pool)
	ctx := context.Background()

	account := createAccount(t, accounts, "a@x.com")

	_, err := accounts.FindActiveByID(ctx, account.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = accounts.FindActiveByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	found, err := accounts.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = accounts.Activate(ctx, account.ID)
	require.NoError(t, err)

	found, err = accounts.FindActiveByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, found.IsActive)

	found, err = accounts.FindActiveByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = accounts.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAccountRepository_ActivateIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	accounts, _ := newRepositories(pool)
	ctx := context.Background()

	account := createAccount(t, accounts, "a@x.com")

	first, err := accounts.Activate(ctx, account.ID)
	require.NoError(t, err)
	second, err := accounts.Activate(ctx, account.ID)
	require.NoError(t, err)

	assert.True(t, first.IsActive)
	assert.True(t, second.IsActive)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	_, err = accounts.Activate(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAccountRepository_Update(t *testing.T) {
	pool := setupTestDB(t)
	accounts, _ := newRepositories(pool)
	ctx := context.Background()

	account := createAccount(t, accounts, "a@x.com")

	// Неактивный аккаунт не обновляется
	name := "New"
	_, err := accounts.Update(ctx, account.ID, domain.AccountPatch{FirstName: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	activated, err := accounts.Activate(ctx, account.ID)
	require.NoError(t, err)

	updated, err := accounts.Update(ctx, account.ID, domain.AccountPatch{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.FirstName)
	assert.Equal(t, "B", updated.SecondName)
	assert.Equal(t, "a@x.com", updated.Email)
	assert.Equal(t, activated.PasswordHash, updated.PasswordHash)
	assert.Equal(t, domain.RoleRegular, updated.Role)
	assert.False(t, updated.UpdatedAt.Before(activated.UpdatedAt))

	// Пустой патч ничего не меняет, но обновляет отметку времени
	unchanged, err := accounts.Update(ctx, account.ID, domain.AccountPatch{})
	require.NoError(t, err)
	assert.Equal(t, "New", unchanged.FirstName)
	assert.Equal(t, "B", unchanged.SecondName)
}

func TestActivationKeyRepository_IssueAndRedeem(t *testing.T) {
	pool := setupTestDB(t)
	accounts, keys := newRepositories(pool)
	ctx := context.Background()

	account := createAccount(t, accounts, "a@x.com")

	key, err := keys.IssueOrReplace(ctx, account.ID)
	require.NoError(t, err)
	_, err = uuid.Parse(key)
	require.NoError(t, err)

	accountID, err := keys.Redeem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, account.ID, accountID)

	// Ключ не удаляется после использования
	accountID, err = keys.Redeem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, account.ID, accountID)

	found, err := accounts.FindByActivationKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
}

func TestActivationKeyRepository_ReplaceOverwritesKey(t *testing.T) {
	pool := setupTestDB(t)
	accounts, keys := newRepositories(pool)
	ctx := context.Background()

	account := createAccount(t, accounts, "a@x.com")

	first, err := keys.IssueOrReplace(ctx, account.ID)
	require.NoError(t, err)
	second, err := keys.IssueOrReplace(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = keys.Redeem(ctx, first)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM activation_key WHERE user_id = $1`, account.ID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestActivationKeyRepository_BindsExactlyOneAccount(t *testing.T) {
	pool := setupTestDB(t)
	accounts, keys := newRepositories(pool)
	ctx := context.Background()

	first := createAccount(t, accounts, "a@x.com")
	second := createAccount(t, accounts, "b@x.com")

	firstKey, err := keys.IssueOrReplace(ctx, first.ID)
	require.NoError(t, err)
	secondKey, err := keys.IssueOrReplace(ctx, second.ID)
	require.NoError(t, err)

	accountID, err := keys.Redeem(ctx, secondKey)
	require.NoError(t, err)
	assert.Equal(t, second.ID, accountID)

	accountID, err = keys.Redeem(ctx, firstKey)
	require.NoError(t, err)
	assert.Equal(t, first.ID, accountID)
}

func TestActivationKeyRepository_UnknownKey(t *testing.T) {
	pool := setupTestDB(t)
	accounts, keys := newRepositories(pool)
	ctx := context.Background()

	_, err := keys.Redeem(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = keys.Redeem(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = accounts.FindByActivationKey(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = keys.IssueOrReplace(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
