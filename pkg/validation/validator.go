package validation

import (
	stderrors "errors"
	"regexp"
	"sort"

	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"AccountPlatform/pkg/errors"
)

// MaxStringLength ограничение длины строковых полей аккаунта
const MaxStringLength = 512

// emailPattern минимальная проверка формата email без обращения к DNS
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// InvalidRequestMessage сообщение об ошибке валидации запроса
const InvalidRequestMessage = "Invalid request."

// Validatable интерфейс запроса, который умеет проверять себя
type Validatable interface {
	Validate() error
}

// Email правила для адреса электронной почты
func Email() []ozzo.Rule {
	return []ozzo.Rule{
		ozzo.Required,
		ozzo.Length(1, MaxStringLength),
		ozzo.Match(emailPattern).Error("must be a valid email address"),
	}
}

// RequiredString правила для обязательной строки
func RequiredString() []ozzo.Rule {
	return []ozzo.Rule{ozzo.Required, ozzo.Length(1, MaxStringLength)}
}

// OptionalString правила для необязательной строки. Пустое значение недопустимо, если поле передано.
func OptionalString() []ozzo.Rule {
	return []ozzo.Rule{ozzo.NilOrNotEmpty, ozzo.Length(1, MaxStringLength)}
}

// UUID правило для строкового UUID
var UUID = ozzo.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return stderrors.New("must be a valid UUID")
	}
	return nil
})

// Validate запускает валидацию и приводит результат к ошибке VALIDATION_ERROR с ошибками по полям
func Validate(v Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	return FromOzzo(err)
}

// FromOzzo приводит ошибку ozzo-validation к кастомной ошибке
func FromOzzo(err error) error {
	if err == nil {
		return nil
	}

	var internal ozzo.InternalError
	if stderrors.As(err, &internal) {
		return errors.Wrap(err, errors.ErrInternal, "Internal server error.")
	}

	var fieldErrors ozzo.Errors
	if stderrors.As(err, &fieldErrors) {
		fields := make(map[string]string, len(fieldErrors))
		for name, fieldErr := range fieldErrors {
			if fieldErr != nil {
				fields[name] = fieldErr.Error()
			}
		}
		return errors.New(errors.ErrValidation, InvalidRequestMessage).
			WithDetails(firstField(fields)).
			WithFields(fields)
	}

	return errors.New(errors.ErrValidation, InvalidRequestMessage).WithDetails(err.Error())
}

// Field возвращает ошибку валидации для одного поля
func Field(name, message string) error {
	return errors.New(errors.ErrValidation, InvalidRequestMessage).
		WithDetails(name + ": " + message).
		WithFields(map[string]string{name: message})
}

// firstField возвращает описание первой по алфавиту ошибки, чтобы детали были стабильными
func firstField(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0] + ": " + fields[names[0]]
}
