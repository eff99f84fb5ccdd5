// AngelaMos | 2026
// validation_test.go

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passwordFixture struct {
	Password string `validate:"required,min=8,max=128,password"`
}

type slugFixture struct {
	Slug string `validate:"required,slug"`
}

func TestPasswordValidation(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"letters and digits", "password1", false},
		{"mixed case with digits", "Tr0ubadour99", false},
		{"letters only", "passwordpass", true},
		{"digits only", "1234567890", true},
		{"too short", "pass1", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(passwordFixture{Password: tt.password})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlugValidation(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"simple", "editor-pro", false},
		{"digits", "plugin-2", false},
		{"single word", "bundle", false},
		{"uppercase", "Editor-Pro", true},
		{"leading hyphen", "-editor", true},
		{"trailing hyphen", "editor-", true},
		{"double hyphen", "editor--pro", true},
		{"spaces", "editor pro", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(slugFixture{Slug: tt.slug})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatValidationError(t *testing.T) {
	v := NewValidator()

	t.Run("password rule", func(t *testing.T) {
		err := v.Struct(passwordFixture{Password: "passwordpass"})
		require.Error(t, err)

		msg := FormatValidationError(err)
		assert.Contains(t, msg, "at least one letter and one number")
	})

	t.Run("slug rule", func(t *testing.T) {
		err := v.Struct(slugFixture{Slug: "Editor-Pro"})
		require.Error(t, err)

		msg := FormatValidationError(err)
		assert.Contains(t, msg, "lowercase slug")
	})

	t.Run("min length", func(t *testing.T) {
		err := v.Struct(passwordFixture{Password: "a1"})
		require.Error(t, err)

		msg := FormatValidationError(err)
		assert.Contains(t, msg, "at least 8 characters")
	})

	t.Run("non-validation error", func(t *testing.T) {
		assert.Equal(t, "invalid request", FormatValidationError(assert.AnError))
	})
}
