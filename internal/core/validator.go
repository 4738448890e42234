package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"recipescheduler/internal/types"
)

// Validator wraps go-playground/validator with the API's custom tags:
//
//   - rfc3339:  an RFC 3339 timestamp string
//   - notblank: a string with at least one non-space character
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError is one field-level failure reported to the client.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether there are no blocking errors.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "rfc3339", validateRFC3339)
	mustRegister(v, "notblank", validateNotBlank)

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func validateRFC3339(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // "required" decides whether empty is allowed
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateStruct validates s and returns a *types.AppError whose code is
// taken from the first failing field. Every failure is listed under the
// "validation_errors" detail.
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings validates s and collects every failure.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation failed unexpectedly", "error", err)
		result.Errors = append(result.Errors, ValidationError{
			Code:    string(types.ErrCodeValidationFailed),
			Message: "request could not be validated",
		})
		return result
	}

	for _, fe := range verrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fieldErrorCode(fe),
			Message: fieldMessage(fe),
		})
	}
	return result
}

// fieldErrorCode prefers a code tied to the request field so that, for
// example, an over-long push token is not reported as an invalid title.
func fieldErrorCode(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return string(types.ErrCodeValidationMissingField)
	}
	switch fe.Field() {
	case "title":
		return string(types.ErrCodeValidationInvalidTitle)
	case "eventTime":
		return string(types.ErrCodeValidationInvalidTime)
	case "token":
		return string(types.ErrCodeValidationInvalidToken)
	}
	return tagToErrorCode(fe.Tag())
}

func tagToErrorCode(tag string) string {
	switch tag {
	case "required":
		return string(types.ErrCodeValidationMissingField)
	case "rfc3339":
		return string(types.ErrCodeValidationInvalidTime)
	case "notblank", "min", "max":
		return string(types.ErrCodeValidationInvalidTitle)
	default:
		return string(types.ErrCodeValidationFailed)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "rfc3339":
		return fmt.Sprintf("%s must be an RFC 3339 timestamp", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
