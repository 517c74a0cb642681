package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "AccountPlatform/pkg/errors"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/services/account-service/internal/cache"
	"AccountPlatform/services/account-service/internal/domain"
	"AccountPlatform/services/account-service/internal/pkg/jwt"
	"AccountPlatform/services/account-service/internal/pkg/password"
	"AccountPlatform/services/account-service/internal/repository"
)

// Notifier ставит уведомление в очередь
type Notifier interface {
	Enqueue(ctx context.Context, notification domain.Notification) error
}

// ProfileCache кеш публичных профилей
type ProfileCache interface {
	GetOrPopulate(ctx context.Context, id int64, load cache.Loader) (domain.PublicProfile, error)
	Invalidate(ctx context.Context, id int64) error
}

// AccountService интерфейс сервиса аккаунтов
type AccountService interface {
	SignUp(ctx context.Context, account domain.NewAccount) (string, error)
	SignIn(ctx context.Context, email, password string) (*domain.SignInResult, error)
	ActivateAccount(ctx context.Context, key string) (string, error)
	GetProfile(ctx context.Context, id int64, caller domain.Identity) (domain.PublicProfile, error)
	UpdateProfile(ctx context.Context, id int64, caller domain.Identity, patch domain.AccountPatch) (domain.PublicProfile, error)
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// Service реализация AccountService.
// Единственное место, где несколько хранилищ вызываются в одной операции.
type Service struct {
	accounts   repository.AccountRepository
	keys       repository.ActivationKeyRepository
	tokens     jwt.TokenManager
	hasher     password.Hasher
	profiles   ProfileCache
	notifier   Notifier
	publicHost string
	logger     logger.Logger
}

// Config зависимости сервиса
type Config struct {
	Accounts   repository.AccountRepository
	Keys       repository.ActivationKeyRepository
	Tokens     jwt.TokenManager
	Hasher     password.Hasher
	Profiles   ProfileCache
	Notifier   Notifier
	PublicHost string
	Logger     logger.Logger
}

// NewAccountService создает новый экземпляр AccountService
func NewAccountService(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		accounts:   cfg.Accounts,
		keys:       cfg.Keys,
		tokens:     cfg.Tokens,
		hasher:     cfg.Hasher,
		profiles:   cfg.Profiles,
		notifier:   cfg.Notifier,
		publicHost: strings.TrimRight(cfg.PublicHost, "/"),
		logger:     log,
	}
}

// ActivationLink возвращает ссылку активации для ключа
func (s *Service) ActivationLink(key string) string {
	return fmt.Sprintf("%s/users/activate/%s", s.publicHost, key)
}

// SignUp создает неактивный аккаунт, выпускает ключ активации и ставит письмо в очередь
func (s *Service) SignUp(ctx context.Context, account domain.NewAccount) (string, error) {
	// Повторная регистрация блокируется и для неактивированных аккаунтов
	_, err := s.accounts.FindByEmail(ctx, account.Email)
	switch {
	case err == nil:
		return "", emailTaken(account.Email)
	case !errors.Is(err, repository.ErrNotFound):
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "failed to check email")
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		// Параллельная регистрация с тем же email упирается в уникальный индекс
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", emailTaken(account.Email)
		}
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "failed to create account")
	}

	key, err := s.keys.IssueOrReplace(ctx, created.ID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "failed to issue activation key")
	}

	notification := domain.Notification{
		Email:   created.Email,
		Message: fmt.Sprintf(domain.MsgActivationEmail, s.ActivationLink(key)),
	}
	if err := s.notifier.Enqueue(ctx, notification); err != nil {
		// Аккаунт не откатывается
		s.logger.Error("Account created but activation notification was not enqueued",
			logger.CtxField(ctx),
			logger.Int64("account_id", created.ID),
			logger.Error(err),
		)
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "failed to enqueue activation notification")
	}

	s.logger.Info("Account signed up",
		logger.CtxField(ctx),
		logger.Int64("account_id", created.ID),
	)
	return fmt.Sprintf(domain.MsgActivationPending, key), nil
}

// SignIn проверяет пароль активного аккаунта и выпускает токен
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.SignInResult, error) {
	account, err := s.accounts.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, s.notFound(err, "failed to find account")
	}

	if !s.hasher.Check(password, account.PasswordHash) {
		return nil, apperrors.New(apperrors.ErrBadCredentials, domain.MsgBadCredentials)
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal, "failed to issue token")
	}

	return &domain.SignInResult{
		Token: token,
		User:  account.Profile(),
	}, nil
}

// ActivateAccount активирует аккаунт, к которому привязан ключ. Повторная активация успешна.
func (s *Service) ActivateAccount(ctx context.Context, key string) (string, error) {
	accountID, err := s.keys.Redeem(ctx, key)
	if err != nil {
		return "", s.notFound(err, "failed to redeem activation key")
	}

	if _, err := s.accounts.Activate(ctx, accountID); err != nil {
		return "", s.notFound(err, "failed to activate account")
	}

	// Инвалидация строго после записи
	if err := s.profiles.Invalidate(ctx, accountID); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "failed to invalidate profile cache")
	}

	s.logger.Info("Account activated",
		logger.CtxField(ctx),
		logger.Int64("account_id", accountID),
	)
	return domain.MsgProfileActivated, nil
}

// GetProfile возвращает профиль владельцу или администратору
func (s *Service) GetProfile(ctx context.Context, id int64, caller domain.Identity) (domain.PublicProfile, error) {
	if !caller.CanAccess(id) {
		return domain.PublicProfile{}, forbidden()
	}

	return s.profiles.GetOrPopulate(ctx, id, s.loadActive)
}

// UpdateProfile применяет патч, затем инвалидирует кеш и возвращает результат записи
func (s *Service) UpdateProfile(ctx context.Context, id int64, caller domain.Identity, patch domain.AccountPatch) (domain.PublicProfile, error) {
	if !caller.CanAccess(id) {
		return domain.PublicProfile{}, forbidden()
	}

	account, err := s.accounts.Update(ctx, id, patch)
	if err != nil {
		return domain.PublicProfile{}, s.notFound(err, "failed to update account")
	}

	if err := s.profiles.Invalidate(ctx, id); err != nil {
		return domain.PublicProfile{}, apperrors.Wrap(err, apperrors.ErrInternal, "failed to invalidate profile cache")
	}

	return account.Profile(), nil
}

// Authenticate проверяет bearer токен и возвращает идентичность вызывающего
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	identity, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return domain.Identity{}, apperrors.New(apperrors.ErrExpiredToken, domain.MsgExpiredToken)
		}
		s.logger.Debug("Rejected bearer token", logger.CtxField(ctx), logger.Error(err))
		return domain.Identity{}, apperrors.New(apperrors.ErrMalformedToken, domain.MsgMalformedToken)
	}
	return identity, nil
}

// loadActive загрузчик для кеша профилей
func (s *Service) loadActive(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.FindActiveByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, "failed to load account")
	}
	return account, nil
}

// notFound приводит ErrNotFound к AccountNotFound, остальное к внутренней ошибке
func (s *Service) notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.New(apperrors.ErrAccountNotFound, domain.MsgAccountNotFound)
	}
	return apperrors.Wrap(err, apperrors.ErrInternal, message)
}

func emailTaken(email string) error {
	return apperrors.New(apperrors.ErrEmailTaken, fmt.Sprintf(domain.MsgEmailTaken, email))
}

func forbidden() error {
	return apperrors.New(apperrors.ErrForbidden, domain.MsgForbidden)
}
