package migration

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/contentstack/cli-sub008/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldViolation describes one failed validation rule
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidatePayload checks a typed payload against its validate tags. The
// returned error matches ErrInvalidPayload and lists every violation.
func ValidatePayload(payload any) ([]FieldViolation, error) {
	err := payloadValidator.Struct(payload)
	if err == nil {
		return nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, fmt.Errorf("validate payload: %w", err)
	}

	violations := make([]FieldViolation, 0, len(validationErrors))
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		v := FieldViolation{Field: fe.Namespace(), Message: violationMessage(fe)}
		if i := strings.Index(v.Field, "."); i >= 0 {
			v.Field = v.Field[i+1:]
		}
		violations = append(violations, v)
		parts = append(parts, v.Field+": "+v.Message)
	}
	return violations, shared.NewDomainError(ErrInvalidPayload.Code, strings.Join(parts, "; "))
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		if fe.Kind() == reflect.String {
			return "Must be at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "min":
		return "Must be at least " + fe.Param()
	case "url":
		return "Invalid URL format"
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
