package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "AccountPlatform/pkg/errors"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/services/account-service/internal/cache"
	"AccountPlatform/services/account-service/internal/domain"
	"AccountPlatform/services/account-service/internal/pkg/jwt"
	"AccountPlatform/services/account-service/internal/pkg/password"
	"AccountPlatform/services/account-service/internal/repository"
	"AccountPlatform/services/account-service/internal/service"
)

const testSecret = "test-secret"

// MockAccountRepository мок для AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account domain.NewAccount) (*domain.Account, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindActiveByID(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByActivationKey(ctx context.Context, key string) (*domain.Account, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Activate(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

// MockActivationKeyRepository мок для ActivationKeyRepository
type MockActivationKeyRepository struct {
	mock.Mock
}

func (m *MockActivationKeyRepository) IssueOrReplace(ctx context.Context, accountID int64) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}

func (m *MockActivationKeyRepository) Redeem(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier мок для Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Enqueue(ctx context.Context, notification domain.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

// MockProfileCache мок для ProfileCache
type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) GetOrPopulate(ctx context.Context, id int64, load cache.Loader) (domain.PublicProfile, error) {
	args := m.Called(ctx, id, load)
	return args.Get(0).(domain.PublicProfile), args.Error(1)
}

func (m *MockProfileCache) Invalidate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type testDeps struct {
	accounts *MockAccountRepository
	keys     *MockActivationKeyRepository
	notifier *MockNotifier
	profiles *MockProfileCache
	tokens   *jwt.Manager
	svc      *service.Service
}

func newTestService() *testDeps {
	deps := &testDeps{
		accounts: new(MockAccountRepository),
		keys:     new(MockActivationKeyRepository),
		notifier: new(MockNotifier),
		profiles: new(MockProfileCache),
		tokens:   jwt.NewManager(testSecret, jwt.DefaultTokenTTL),
	}
	deps.svc = service.NewAccountService(service.Config{
		Accounts:   deps.accounts,
		Keys:       deps.keys,
		Tokens:     deps.tokens,
		Hasher:     password.NewSHA256Hasher(),
		Profiles:   deps.profiles,
		Notifier:   deps.notifier,
		PublicHost: "http://localhost:8080/",
		Logger:     logger.NewNop(),
	})
	return deps
}

func activeAccount(id int64, email, plain string) *domain.Account {
	hash, _ := password.NewSHA256Hasher().Hash(plain)
	return &domain.Account{
		ID:           id,
		Email:        email,
		FirstName:    "A",
		SecondName:   "B",
		PasswordHash: hash,
		Role:         domain.RoleRegular,
		IsActive:     true,
	}
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func TestSignUp_Success(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()
	input := domain.NewAccount{Email: "a@x.com", FirstName: "A", SecondName: "B", Password: "p"}

	created := &domain.Account{ID: 1, Email: "a@x.com", FirstName: "A", SecondName: "B", Role: domain.RoleRegular}
	deps.accounts.On("FindByEmail", ctx, "a@x.com").Return(nil, repository.ErrNotFound)
	deps.accounts.On("Create", ctx, input).Return(created, nil)
	deps.keys.On("IssueOrReplace", ctx, int64(1)).Return("key-1", nil)
	deps.notifier.On("Enqueue", ctx, domain.Notification{
		Email:   "a@x.com",
		Message: "Follow the link to activate your profile: http://localhost:8080/users/activate/key-1",
	}).Return(nil)

	message, err := deps.svc.SignUp(ctx, input)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(message, "Activate your profile"))
	assert.Contains(t, message, "key-1")

	deps.accounts.AssertExpectations(t)
	deps.keys.AssertExpectations(t)
	deps.notifier.AssertExpectations(t)
}

func TestSignUp_EmailTakenByPendingAccount(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	pending := &domain.Account{ID: 1, Email: "a@x.com", IsActive: false}
	deps.accounts.On("FindByEmail", ctx, "a@x.com").Return(pending, nil)

	_, err := deps.svc.SignUp(ctx, domain.NewAccount{Email: "a@x.com", Password: "p"})
	assertCode(t, err, apperrors.ErrEmailTaken)
	assert.Equal(t, "User with email a@x.com already exists.", err.Error())

	deps.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSignUp_DuplicateOnInsert(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()
	input := domain.NewAccount{Email: "a@x.com", Password: "p"}

	deps.accounts.On("FindByEmail", ctx, "a@x.com").Return(nil, repository.ErrNotFound)
	deps.accounts.On("Create", ctx, input).Return(nil, repository.ErrDuplicateEmail)

	_, err := deps.svc.SignUp(ctx, input)
	assertCode(t, err, apperrors.ErrEmailTaken)
	deps.keys.AssertNotCalled(t, "IssueOrReplace", mock.Anything, mock.Anything)
}

func TestSignUp_EnqueueFailureIsNotCompensated(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()
	input := domain.NewAccount{Email: "a@x.com", Password: "p"}

	deps.accounts.On("FindByEmail", ctx, "a@x.com").Return(nil, repository.ErrNotFound)
	deps.accounts.On("Create", ctx, input).Return(&domain.Account{ID: 3, Email: "a@x.com"}, nil)
	deps.keys.On("IssueOrReplace", ctx, int64(3)).Return("key-3", nil)
	deps.notifier.On("Enqueue", ctx, mock.Anything).Return(errors.New("channel closed"))

	_, err := deps.svc.SignUp(ctx, input)
	assertCode(t, err, apperrors.ErrInternal)

	// Репозиторий не получает вызовов на удаление или откат
	deps.accounts.AssertExpectations(t)
	assert.Len(t, deps.accounts.Calls, 2)
}

func TestSignUp_StoreFailure(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	deps.accounts.On("FindByEmail", ctx, "a@x.com").Return(nil, errors.New("connection refused"))

	_, err := deps.svc.SignUp(ctx, domain.NewAccount{Email: "a@x.com"})
	assertCode(t, err, apperrors.ErrInternal)
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("pending or unknown account", func(t *testing.T) {
		deps := newTestService()
		deps.accounts.On("FindActiveByEmail", ctx, "a@x.com").Return(nil, repository.ErrNotFound)

		_, err := deps.svc.SignIn(ctx, "a@x.com", "p")
		assertCode(t, err, apperrors.ErrAccountNotFound)
		assert.Equal(t, "User not found.", err.Error())
	})

	t.Run("wrong password", func(t *testing.T) {
		deps := newTestService()
		deps.accounts.On("FindActiveByEmail", ctx, "a@x.com").Return(activeAccount(1, "a@x.com", "p"), nil)

		_, err := deps.svc.SignIn(ctx, "a@x.com", "wrong")
		assertCode(t, err, apperrors.ErrBadCredentials)
		assert.Equal(t, "Incorrect password.", err.Error())
	})

	t.Run("success", func(t *testing.T) {
		deps := newTestService()
		deps.accounts.On("FindActiveByEmail", ctx, "a@x.com").Return(activeAccount(7, "a@x.com", "p"), nil)

		result, err := deps.svc.SignIn(ctx, "a@x.com", "p")
		require.NoError(t, err)
		assert.Equal(t, int64(7), result.User.ID)
		assert.Equal(t, domain.RoleRegular, result.User.Role)

		identity, err := deps.tokens.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, domain.Identity{AccountID: 7, Role: domain.RoleRegular}, identity)
	})
}

func TestActivateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown key", func(t *testing.T) {
		deps := newTestService()
		deps.keys.On("Redeem", ctx, "missing").Return(int64(0), repository.ErrNotFound)

		_, err := deps.svc.ActivateAccount(ctx, "missing")
		assertCode(t, err, apperrors.ErrAccountNotFound)
		deps.accounts.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
	})

	t.Run("invalidates after activation", func(t *testing.T) {
		deps := newTestService()
		var order []string

		deps.keys.On("Redeem", ctx, "key-1").Return(int64(5), nil)
		deps.accounts.On("Activate", ctx, int64(5)).
			Run(func(mock.Arguments) { order = append(order, "activate") }).
			Return(activeAccount(5, "a@x.com", "p"), nil)
		deps.profiles.On("Invalidate", ctx, int64(5)).
			Run(func(mock.Arguments) { order = append(order, "invalidate") }).
			Return(nil)

		message, err := deps.svc.ActivateAccount(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "User's profile is active.", message)
		assert.Equal(t, []string{"activate", "invalidate"}, order)
	})
}

func TestGetProfile_ForbiddenRegardlessOfExistence(t *testing.T) {
	deps := newTestService()
	caller := domain.Identity{AccountID: 1, Role: domain.RoleRegular}

	for _, target := range []int64{2, 999999} {
		_, err := deps.svc.GetProfile(context.Background(), target, caller)
		assertCode(t, err, apperrors.ErrForbidden)
		assert.Equal(t, "No permissions.", err.Error())
	}

	deps.profiles.AssertNotCalled(t, "GetOrPopulate", mock.Anything, mock.Anything, mock.Anything)
	deps.accounts.AssertNotCalled(t, "FindActiveByID", mock.Anything, mock.Anything)
}

func TestGetProfile_OwnerAndAdmin(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()
	profile := activeAccount(2, "a@x.com", "p").Profile()

	deps.profiles.On("GetOrPopulate", ctx, int64(2), mock.Anything).Return(profile, nil)

	got, err := deps.svc.GetProfile(ctx, 2, domain.Identity{AccountID: 2, Role: domain.RoleRegular})
	require.NoError(t, err)
	assert.Equal(t, profile, got)

	got, err = deps.svc.GetProfile(ctx, 2, domain.Identity{AccountID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, profile, got)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	caller := domain.Identity{AccountID: 2, Role: domain.RoleRegular}
	name := "C"
	patch := domain.AccountPatch{FirstName: &name}

	t.Run("forbidden", func(t *testing.T) {
		deps := newTestService()
		_, err := deps.svc.UpdateProfile(ctx, 3, caller, patch)
		assertCode(t, err, apperrors.ErrForbidden)
		deps.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not active", func(t *testing.T) {
		deps := newTestService()
		deps.accounts.On("Update", ctx, int64(2), patch).Return(nil, repository.ErrNotFound)

		_, err := deps.svc.UpdateProfile(ctx, 2, caller, patch)
		assertCode(t, err, apperrors.ErrAccountNotFound)
		deps.profiles.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("write then invalidate", func(t *testing.T) {
		deps := newTestService()
		var order []string

		updated := activeAccount(2, "a@x.com", "p")
		updated.FirstName = "C"
		deps.accounts.On("Update", ctx, int64(2), patch).
			Run(func(mock.Arguments) { order = append(order, "update") }).
			Return(updated, nil)
		deps.profiles.On("Invalidate", ctx, int64(2)).
			Run(func(mock.Arguments) { order = append(order, "invalidate") }).
			Return(nil)

		profile, err := deps.svc.UpdateProfile(ctx, 2, caller, patch)
		require.NoError(t, err)
		assert.Equal(t, "C", profile.FirstName)
		assert.Equal(t, []string{"update", "invalidate"}, order)
		deps.profiles.AssertNotCalled(t, "GetOrPopulate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalidate failure", func(t *testing.T) {
		deps := newTestService()
		deps.accounts.On("Update", ctx, int64(2), patch).Return(activeAccount(2, "a@x.com", "p"), nil)
		deps.profiles.On("Invalidate", ctx, int64(2)).Return(errors.New("redis down"))

		_, err := deps.svc.UpdateProfile(ctx, 2, caller, patch)
		assertCode(t, err, apperrors.ErrInternal)
	})
}

func TestAuthenticate(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	token, err := deps.tokens.Issue(4, domain.RoleAdmin)
	require.NoError(t, err)

	identity, err := deps.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{AccountID: 4, Role: domain.RoleAdmin}, identity)

	_, err = deps.svc.Authenticate(ctx, "not-a-token")
	assertCode(t, err, apperrors.ErrMalformedToken)
	assert.Equal(t, "Invalid token.", err.Error())

	issuedAt := time.Now().Add(-5 * 24 * time.Hour)
	old := jwt.NewManager(testSecret, jwt.DefaultTokenTTL, jwt.WithClock(func() time.Time { return issuedAt }))
	expired, err := old.Issue(4, domain.RoleAdmin)
	require.NoError(t, err)

	_, err = deps.svc.Authenticate(ctx, expired)
	assertCode(t, err, apperrors.ErrExpiredToken)
	assert.Equal(t, "Token has expired.", err.Error())
}
