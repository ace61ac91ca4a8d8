// Package validator validates API request bodies.
package validator

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Validator validates structs using their validate tags.
type Validator struct {
	cli *validator.Validate
}

// ValidationError describes a field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func formatError(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: fe.Error(),
		})
	}
	return out
}

// ValidateStruct validates s and returns one error per invalid field.
func (v *Validator) ValidateStruct(s any) []ValidationError {
	if err := v.cli.Struct(s); err != nil {
		return formatError(err)
	}
	return nil
}

// Validate checks value against tag.
func (v *Validator) Validate(value any, tag string) []ValidationError {
	if err := v.cli.Var(value, tag); err != nil {
		return formatError(err)
	}
	return nil
}

// New returns a Validator that reports JSON field names.
func New() *Validator {
	cli := validator.New(validator.WithRequiredStructEnabled())
	cli.RegisterTagNameFunc(jsonName)
	return &Validator{
		cli: cli,
	}
}
