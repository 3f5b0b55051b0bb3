package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"storefront/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		}
		return name
	})

	v.RegisterValidation("price", validatePrice)
	v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
		return domain.OrderStatus(fl.Field().String()).Valid()
	})
	return v
}

// validatePrice accepts a non-negative amount with at most two decimals
func validatePrice(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Equal(d.Round(2))
}

// ValidateRequest validates a struct carrying validate tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes a single JSON document from the request body
// and validates it. Bodies over MaxBodyBytes are rejected.
func DecodeAndValidate(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	if dec.More() {
		return errors.New("malformed body: trailing data")
	}
	if dec.InputOffset() > MaxBodyBytes {
		return errors.New("malformed body: too large")
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to per-field messages.
// Any other error yields nil.
func FormatValidationErrors(err error) []ValidationError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	errs := make([]ValidationError, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, ValidationError{Field: e.Field(), Message: messageFor(e)})
	}
	return errs
}

var messages = map[string]string{
	"required":    "This field is required",
	"email":       "Invalid email format",
	"uuid":        "Invalid identifier",
	"numeric":     "Must be a number",
	"number":      "Must be a whole number",
	"price":       "Must be a non-negative amount with at most two decimals",
	"orderstatus": "Unknown order status",
	"gte":         "Value must be greater than or equal to %s",
	"lte":         "Value must be less than or equal to %s",
	"gt":          "Value must be greater than %s",
	"lt":          "Value must be less than %s",
	"oneof":       "Value must be one of: %s",
	"len":         "Must have exactly %s elements",
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "min", "max":
		if e.Kind() == reflect.String {
			if e.Tag() == "min" {
				return fmt.Sprintf("Must be at least %s characters", e.Param())
			}
			return fmt.Sprintf("Must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("Value must be %s %s", map[string]string{"min": "at least", "max": "at most"}[e.Tag()], e.Param())
	}

	msg, ok := messages[e.Tag()]
	if !ok {
		return "Invalid value"
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, e.Param())
	}
	return msg
}
