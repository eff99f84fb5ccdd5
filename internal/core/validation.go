// AngelaMos | 2026
// validation.go

package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	//nolint:errcheck // registration only fails on empty tag
	_ = v.RegisterValidation("password", validatePassword)
	//nolint:errcheck // registration only fails on empty tag
	_ = v.RegisterValidation("slug", validateSlug)

	return v
}

// validatePassword enforces the storefront password rule: at least one
// letter and at least one digit. Length bounds come from min/max tags.
func validatePassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	return hasLetter && hasDigit
}

// validateSlug accepts lowercase URL slugs: letters, digits and single
// hyphens, never leading or trailing.
func validateSlug(fl validator.FieldLevel) bool {
	slug := fl.Field().String()
	if slug == "" {
		return false
	}

	prevHyphen := false
	for i, c := range slug {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if i == 0 || i == len(slug)-1 || prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}

	return true
}

func FormatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "invalid request"
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, formatFieldError(fieldErr))
	}

	return strings.Join(messages, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf(
			"%s must be at least %s characters long",
			field,
			fe.Param(),
		)
	case "max":
		return fmt.Sprintf(
			"%s must be at most %s characters long",
			field,
			fe.Param(),
		)
	case "password":
		return fmt.Sprintf(
			"%s must contain at least one letter and one number",
			field,
		)
	case "slug":
		return fmt.Sprintf(
			"%s must be a lowercase slug (letters, digits, hyphens)",
			field,
		)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf(
			"%s must be greater than or equal to %s",
			field,
			fe.Param(),
		)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
