package core

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"airvault/internal/types"
)

// monthKeyPattern matches budget month keys, e.g. "2026-09".
var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// msisdnPattern matches the request-level shape of a Nigerian mobile number:
// a leading zero followed by ten digits. Prefix-to-network resolution is the
// network package's job; this tag only rejects obviously broken input early.
var msisdnPattern = regexp.MustCompile(`^0\d{10}$`)

// Validator wraps go-playground/validator with the domain tags used by
// request structs.
//
// Registered custom tags:
//   - month_key: "YYYY-MM" budget month identifier
//   - msisdn:    11-digit local-format phone number
//
// The built-in "timezone" tag covers IANA zone names.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator and registers the custom tags. Tag
// registration only fails on programmer error (blank tag name), so failures
// panic at startup rather than returning an error.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report field names as clients see them in request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "month_key", func(fl validator.FieldLevel) bool {
		return monthKeyPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "msisdn", func(fl validator.FieldLevel) bool {
		return msisdnPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("registering validation tag " + tag + ": " + err.Error())
	}
}

// ValidateStruct checks s against its struct tags and returns a 400-class
// AppError describing every failing field, or nil when the struct is valid.
// Missing required fields map to ErrCodeMissingField, msisdn failures to
// ErrCodeInvalidPhoneFormat, and any other rule failure to
// ErrCodeInvalidBody. A missing field outranks a malformed one.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInvalidBody, "invalid request", err)
	}

	details := make(map[string]any, len(verrs))
	code := types.ErrCodeInvalidBody
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			code = types.ErrCodeMissingField
			details[fe.Field()] = "required"
			continue
		case "msisdn":
			if code != types.ErrCodeMissingField {
				code = types.ErrCodeInvalidPhoneFormat
			}
		}
		details[fe.Field()] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(code, "request validation failed", err, details)
}
