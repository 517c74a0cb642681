package http

import (
	ozzo "github.com/go-ozzo/ozzo-validation"

	"AccountPlatform/pkg/validation"
	"AccountPlatform/services/account-service/internal/domain"
)

// signUpRequest тело POST /users/sign-up
type signUpRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	Password   string `json:"password"`
	SecondName string `json:"second_name"`
}

// Validate проверяет поля запроса
func (r signUpRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Email, validation.Email()...),
		ozzo.Field(&r.FirstName, validation.RequiredString()...),
		ozzo.Field(&r.Password, validation.RequiredString()...),
		ozzo.Field(&r.SecondName, validation.RequiredString()...),
	)
}

func (r signUpRequest) toDomain() domain.NewAccount {
	return domain.NewAccount{
		Email:      r.Email,
		FirstName:  r.FirstName,
		SecondName: r.SecondName,
		Password:   r.Password,
	}
}

// signInRequest тело POST /users/sign-in
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate проверяет поля запроса
func (r signInRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Email, validation.Email()...),
		ozzo.Field(&r.Password, validation.RequiredString()...),
	)
}

// updateRequest тело PATCH /users/{id}
type updateRequest struct {
	FirstName  *string `json:"first_name"`
	SecondName *string `json:"second_name"`
}

// Validate проверяет поля запроса
func (r updateRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.FirstName, validation.OptionalString()...),
		ozzo.Field(&r.SecondName, validation.OptionalString()...),
	)
}

func (r updateRequest) toDomain() domain.AccountPatch {
	return domain.AccountPatch{
		FirstName:  r.FirstName,
		SecondName: r.SecondName,
	}
}

// messageResponse ответ с сообщением
type messageResponse struct {
	Message string `json:"message"`
}
