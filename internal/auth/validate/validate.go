// Package validate runs request validation and turns validator errors into
// the full list of human-readable field messages. Validation never
// short-circuits: a client sees every problem in one round trip.
package validate

import (
	"errors"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordMessage describes the password strength rule.
const PasswordMessage = "Password must be at least 8 characters and contain at least 1 uppercase, 1 lowercase and 1 number"

// New returns a validator with the custom password rule registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("userpassword", func(fl validator.FieldLevel) bool {
		return PasswordStrength(fl.Field().String())
	})
	return v
}

// PasswordStrength reports whether pw satisfies the strength rule: at least
// 8 characters with at least one uppercase letter, one lowercase letter, and
// one digit.
func PasswordStrength(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// Struct validates s and returns all violation messages, or nil when valid.
func Struct(v *validator.Validate, s any) []string {
	if err := v.Struct(s); err != nil {
		return Messages(err)
	}
	return nil
}

// Messages translates a validator error into one message per violated field.
func Messages(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "email":
			messages = append(messages, "Invalid email format")
		case "min":
			messages = append(messages, field+" must be at least "+fe.Param()+" characters")
		case "max":
			messages = append(messages, field+" must be at most "+fe.Param()+" characters")
		case "len":
			messages = append(messages, field+" must be exactly "+fe.Param()+" characters")
		case "numeric":
			messages = append(messages, field+" must contain only numbers")
		case "userpassword":
			messages = append(messages, PasswordMessage)
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return messages
}
