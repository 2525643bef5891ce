package service

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	msgUserExists    = "user already exists"
	maxPasswordBytes = 72 // límite de entrada de bcrypt
)

var basicEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type registrationForm struct {
	Name     string `validate:"required,min=3"`
	Email    string `validate:"required,basic_email"`
	Password string `validate:"required,min=6,max_bytes"`
}

var fieldMessages = map[string]string{
	"Name.required":      "name is required",
	"Name.min":           "name must be at least 3 characters",
	"Email.required":     "email is required",
	"Email.basic_email":  "email is not valid",
	"Password.required":  "password is required",
	"Password.min":       "password must be at least 6 characters",
	"Password.max_bytes": "password must be at most 72 bytes",
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return basicEmailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("max_bytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// registrationViolations devuelve todos los mensajes, en orden de campo.
func registrationViolations(v *validator.Validate, form registrationForm) []string {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{"invalid input"}
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		messages = append(messages, msg)
	}
	return messages
}
