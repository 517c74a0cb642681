package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

const internalMessage = "Internal server error."

// Error представляет кастомную ошибку с дополнительной информацией
type Error struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Cause   error             `json:"-"`
}

// ErrorCode представляет код ошибки
type ErrorCode string

// Определение кодов ошибок
const (
	ErrValidation      ErrorCode = "VALIDATION_ERROR"
	ErrEmailTaken      ErrorCode = "EMAIL_TAKEN"
	ErrAccountNotFound ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrBadCredentials  ErrorCode = "BAD_CREDENTIALS"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrMalformedToken  ErrorCode = "MALFORMED_TOKEN"
	ErrExpiredToken    ErrorCode = "EXPIRED_TOKEN"
	ErrInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error возвращает сообщение об ошибке
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap возвращает причину ошибки
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду
func (e *Error) Is(target error) bool {
	if targetError, ok := target.(*Error); ok {
		return e.Code == targetError.Code
	}
	return false
}

// New создает новую кастомную ошибку
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает существующую ошибку в кастомную
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithDetails возвращает копию ошибки с деталями
func (e *Error) WithDetails(details string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = details
	return &clone
}

// WithFields возвращает копию ошибки с ошибками по полям запроса
func (e *Error) WithFields(fields map[string]string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Fields = fields
	return &clone
}

// HTTPStatus возвращает соответствующий HTTP статус для ошибки
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}

	switch e.Code {
	case ErrEmailTaken, ErrBadCredentials:
		return http.StatusBadRequest
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrUnauthorized, ErrMalformedToken, ErrExpiredToken:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrAccountNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError приводит произвольную ошибку к кастомной.
// Неизвестные ошибки становятся внутренними, их текст наружу не отдается.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, internalMessage)
}

// HasCode проверяет, что в цепочке есть ошибка с указанным кодом
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// response тело ответа с ошибкой
type response struct {
	Detail string            `json:"detail"`
	Code   ErrorCode         `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteJSON отправляет JSON ответ с ошибкой
func WriteJSON(w http.ResponseWriter, err error) {
	e := FromError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())

	// Для внутренних ошибок причина не раскрывается клиенту
	detail := e.Message
	if e.Code == ErrInternal {
		detail = internalMessage
	}
	_ = json.NewEncoder(w).Encode(response{
		Detail: detail,
		Code:   e.Code,
		Fields: e.Fields,
	})
}
