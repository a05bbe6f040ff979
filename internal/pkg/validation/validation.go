// Package validation wraps go-playground/validator with the error wording
// used by both the session client and the session API.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tlobni/session-core/internal/core/domain"
)

// Validator checks struct tags and reports failures as domain.ErrInvalidInput.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	return &Validator{v: v}
}

// Struct validates i. The returned error matches domain.ErrInvalidInput and
// reads like "email must be a valid email; password is required".
func (v *Validator) Struct(i any) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldError(fe))
	}
	return &Error{msg: strings.Join(msgs, "; ")}
}

// Error carries the human-readable list of failed fields.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Is(target error) bool { return target == domain.ErrInvalidInput }

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
