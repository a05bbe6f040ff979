package validation

import (
	"errors"
	"testing"

	"github.com/tlobni/session-core/internal/core/domain"
)

type sample struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
}

func TestValidator_Messages(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		in   sample
		want string
	}{
		{"valid", sample{"a@b.co", "123456", "A"}, ""},
		{"missing name", sample{"a@b.co", "123456", ""}, "fullName is required"},
		{"bad email and short password", sample{"nope", "123", "A"}, "email must be a valid email; password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("got %v, want %q", err, tt.want)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput")
			}
		})
	}
}
