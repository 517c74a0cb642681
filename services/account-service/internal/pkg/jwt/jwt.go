package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"AccountPlatform/services/account-service/internal/domain"
)

// DefaultTokenTTL время жизни сессионного токена
const DefaultTokenTTL = 4 * 24 * time.Hour

var (
	// ErrMalformedToken подпись или структура токена некорректны
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken срок действия токена истек
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims структура для хранения пользовательских данных в JWT токене
type TokenClaims struct {
	AccountID int64       `json:"id"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager интерфейс для работы с сессионными токенами
type TokenManager interface {
	Issue(accountID int64, role domain.Role) (string, error)
	Verify(token string) (domain.Identity, error)
}

// Manager реализация TokenManager на HS256
type Manager struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// Option настройка Manager
type Option func(*Manager)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager создает новый экземпляр JWT менеджера
func NewManager(secretKey string, tokenTTL time.Duration, opts ...Option) *Manager {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	m := &Manager{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue выпускает токен с идентификатором и ролью, exp = now + ttl
func (m *Manager) Issue(accountID int64, role domain.Role) (string, error) {
	now := m.now().UTC()
	claims := &TokenClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена
func (m *Manager) Verify(token string) (domain.Identity, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if !parsed.Valid || !claims.Role.Valid() {
		return domain.Identity{}, ErrMalformedToken
	}

	return domain.Identity{AccountID: claims.AccountID, Role: claims.Role}, nil
}
