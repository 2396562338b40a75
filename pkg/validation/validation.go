// Package validation checks command structs before they reach a service.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is returned when a command fails validation.
type Errors struct {
	Errors []FieldError `json:"errors"`
}

func (e *Errors) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// New builds a single-field validation error.
func New(field, code, message string) error {
	return &Errors{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}

// As extracts validation errors from err.
func As(err error) (*Errors, bool) {
	var vErr *Errors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr, true
	}
	return nil, false
}

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		// decimals are validated through their float value; only the sign matters here
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
			return fl.Field().Kind() == reflect.Float64 && fl.Field().Float() >= 0
		})
		_ = v.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
			return fl.Field().Kind() == reflect.Float64 && fl.Field().Float() > 0
		})
		instance = v
	})
	return instance
}

// Struct validates s using its `validate` tags. Decimal fields use the
// custom tags dgte0 (non-negative) and dgt0 (positive).
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Errors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fieldPath(fe),
			Code:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "dgte0":
		return "must not be negative"
	case "dgt0":
		return "must be positive"
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "gtfield", "gtefield":
		return fmt.Sprintf("must be after %s", fe.Param())
	default:
		return "is invalid"
	}
}
