package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Алгоритмы хеширования
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmBcrypt = "bcrypt"
)

// Hasher интерфейс для работы с паролями
type Hasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// New возвращает Hasher по имени алгоритма
func New(algorithm string, bcryptCost int) (Hasher, error) {
	switch algorithm {
	case AlgorithmSHA256, "":
		return NewSHA256Hasher(), nil
	case AlgorithmBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	default:
		return nil, fmt.Errorf("unknown password algorithm: %s", algorithm)
	}
}

// SHA256Hasher детерминированный хеш без соли, hex-представление sha256
type SHA256Hasher struct{}

// NewSHA256Hasher создает новый SHA256Hasher
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Hash хеширует пароль
func (h *SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Check сравнивает хеши за постоянное время
func (h *SHA256Hasher) Check(password, hash string) bool {
	computed, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// BcryptHasher реализация Hasher с использованием bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher создает новый BcryptHasher
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash хеширует пароль с использованием bcrypt
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Check проверяет, соответствует ли пароль хешу
func (h *BcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
