package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// DecodeJSON decodes a JSON request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors anywhere in err's chain to a
// readable format
func FormatValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			out = append(out, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return out
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "The " + e.Field() + " field is required."
	case "price":
		return "The " + e.Field() + " must be a number from 0 to 99999999.99 with at most 2 decimal places."
	case "oneof":
		return "The selected " + e.Field() + " is invalid."
	case "max":
		return "The " + e.Field() + " may not be greater than " + e.Param() + " characters."
	default:
		return "The " + e.Field() + " is invalid."
	}
}
