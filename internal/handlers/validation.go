package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/go-playground/validator/v10"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

var vatPattern = regexp.MustCompile(`^\d{10,}$`)

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("vat", func(fl validator.FieldLevel) bool {
		return vatPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("resource", func(fl validator.FieldLevel) bool {
		_, err := models.ParseResource(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		_, err := models.ParseAction(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateRequest validates a request struct and reports every failing field
// under subject.
func ValidateRequest(subject string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &models.ValidationError{Message: subject + " validation failed"}
	}

	fields := make([]models.FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, models.FieldError{
			Field:   fieldPath(fe),
			Message: formatValidationError(fe),
		})
	}
	return &models.ValidationError{Message: subject + " validation failed", Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "vat":
		return "must be at least 10 digits long"
	case "resource":
		return "unknown resource"
	case "action":
		return "unknown action"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// decodeAndValidate reads a JSON body into dst and validates it.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, subject string, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewInvalidArgumentError(subject, "Request body is required")
		}
		return models.NewInvalidArgumentError(subject, "Invalid request body")
	}
	return ValidateRequest(subject, dst)
}

// normalizeEmail trims and lowercases an address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
