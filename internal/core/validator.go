package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"licensegate/internal/types"
)

// identifierPattern accepts tenant, user and operation identifiers: printable
// ASCII without whitespace, at most 256 bytes.
var identifierPattern = regexp.MustCompile(`^[\x21-\x7E]{1,256}$`)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field failures.
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the identifier tag and JSON
// field names in error output.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator with the custom tags registered.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil when s is valid. Otherwise it returns an
// *types.AppError whose code is that of the first failure and whose details
// carry every failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	res, err := v.ValidateStructWithWarnings(s)
	if err != nil {
		return err
	}
	if res.IsValid() {
		return nil
	}
	first := res.Errors[0]
	return types.NewAppErrorWithDetails(types.ErrorCode(first.Code), first.Message, nil,
		map[string]any{"validation_errors": res.Errors})
}

// ValidateStructWithWarnings returns every field failure without converting
// them into an error. The error return is reserved for misuse, such as
// passing a non-struct.
func (v *Validator) ValidateStructWithWarnings(s any) (ValidationResult, error) {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return ValidationResult{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			"request validation failed", err)
	}

	res := ValidationResult{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		res.Errors = append(res.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    string(tagToErrorCode(fe.Tag())),
			Message: fieldMessage(fe),
		})
	}
	return res, nil
}

// tagToErrorCode maps a validator tag to the API error code.
func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "identifier":
		return types.ErrCodeValidationInvalidID
	default:
		return types.ErrCodeValidationInvalidValue
	}
}

// fieldMessage renders a human-readable message for fe.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "identifier":
		return fmt.Sprintf("%s must be 1-256 printable characters without spaces", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
