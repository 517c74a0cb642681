package domain

import (
	"time"
)

// Role роль пользователя
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRegular
}

// Account представляет пользователя системы.
// Создается неактивным, активируется ровно один раз по ключу активации.
// Email уникален среди всех аккаунтов независимо от статуса.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	SecondName   string    `json:"second_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile возвращает публичное представление аккаунта
func (a *Account) Profile() PublicProfile {
	return PublicProfile{
		ID:         a.ID,
		Email:      a.Email,
		FirstName:  a.FirstName,
		Role:       a.Role,
		SecondName: a.SecondName,
	}
}

// PublicProfile публичные поля аккаунта, хеш пароля сюда не попадает
type PublicProfile struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	Role       Role   `json:"role"`
	SecondName string `json:"second_name"`
}

// NewAccount данные для создания аккаунта
type NewAccount struct {
	Email      string
	FirstName  string
	SecondName string
	Password   string
}

// AccountPatch частичное обновление профиля, nil означает "не менять"
type AccountPatch struct {
	FirstName  *string `json:"first_name"`
	SecondName *string `json:"second_name"`
}

// Empty сообщает, что патч ничего не меняет
func (p AccountPatch) Empty() bool {
	return p.FirstName == nil && p.SecondName == nil
}

// ActivationKey одноразовый ключ активации, по одному на аккаунт
type ActivationKey struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"user_id"`
	Key       string `json:"key"`
}

// Identity идентичность вызывающего, извлеченная из токена
type Identity struct {
	AccountID int64 `json:"id"`
	Role      Role  `json:"role"`
}

// CanAccess проверяет право доступа к аккаунту: владелец или администратор
func (i Identity) CanAccess(accountID int64) bool {
	return i.AccountID == accountID || i.Role == RoleAdmin
}

// Notification сообщение для очереди уведомлений
type Notification struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SignInResult результат успешного входа
type SignInResult struct {
	Token string        `json:"token"`
	User  PublicProfile `json:"user"`
}
