// Package validator wraps go-playground/validator with the small surface the
// API layer needs: tag-driven struct validation plus the cross-field
// "exactly one content field" rule messages require.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates request bodies.
type Validator struct {
	cli *validator.Validate
}

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field   string
	Message interface{}
}

// New initializes and returns a new Validator.
func New() *Validator {
	return &Validator{
		cli: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *Validator) formatError(err error) []ValidationError {
	errors := make([]ValidationError, 0)
	for _, err := range err.(validator.ValidationErrors) {
		errors = append(errors, ValidationError{
			Field:   err.StructField(),
			Message: err.Error(),
		})
	}
	return errors
}

// ValidateStruct validates s against its `validate` tags and returns any
// validation errors.
func (v *Validator) ValidateStruct(s interface{}) []ValidationError {
	if err := v.cli.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// ExactlyOne checks that exactly one of the named values is non-empty. The
// map key is the field name reported on failure.
func (v *Validator) ExactlyOne(fields map[string]string) []ValidationError {
	names := make([]string, 0, len(fields))
	set := 0
	for name, value := range fields {
		names = append(names, name)
		if value != "" {
			set++
		}
	}
	if set == 1 {
		return nil
	}
	sort.Strings(names)
	return []ValidationError{{
		Field:   names[0],
		Message: fmt.Sprintf("exactly one of %s must be set", strings.Join(names, ", ")),
	}}
}
