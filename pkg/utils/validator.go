package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var errWeakPassword = errors.New("password must contain at least one number and one letter")

// FieldError is one failed rule, reported under the json name of the field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return ValidatePasswordStrength(fl.Field().String()) == nil
	})

	return v
}

// ValidatePasswordStrength requires at least one digit and one letter.
func ValidatePasswordStrength(password string) error {
	var hasDigit, hasLetter bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}

	if !hasDigit || !hasLetter {
		return errWeakPassword
	}
	return nil
}

// ValidateStruct returns the failed rules in struct field order, or nil.
func ValidateStruct(data any) []FieldError {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Field: "request", Message: "invalid request"}}
	}

	errs := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		errs = append(errs, FieldError{
			Field:   fe.Field(),
			Message: getErrorMessage(fe),
		})
	}

	return errs
}

// converts validator errors to human-readable messages
func getErrorMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "eqfield":
		return "passwords do not match"
	case "strongpassword":
		return errWeakPassword.Error()
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}

// FormatValidationErrors joins the messages into a single line.
func FormatValidationErrors(errs []FieldError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
