// Package validation validates decoded request bodies with
// go-playground/validator and reports failures as domain errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "paginasamarelas/internal/errors"
	"paginasamarelas/pkg/domain"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags:
//
//	username   letters, digits and _ . - only
//	bookstatus a reading status or one of its Portuguese aliases
//	notblank   non-empty after trimming
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			default:
				return false
			}
		}
		return true
	})
	_ = v.RegisterValidation("bookstatus", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseBookStatus(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
	}
	return domainerrors.ValidationWithDetails("Dados inválidos", fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "é obrigatório"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("deve ter pelo menos %s caracteres", e.Param())
		}
		return "deve ser maior ou igual a " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("deve ter no máximo %s caracteres", e.Param())
		}
		return "deve ser menor ou igual a " + e.Param()
	case "gte":
		return "deve ser maior ou igual a " + e.Param()
	case "lte":
		return "deve ser menor ou igual a " + e.Param()
	case "eqfield":
		if e.Param() == "Password" {
			return "Senhas não coincidem"
		}
		return "deve ser igual a " + e.Param()
	case "oneof":
		return "deve ser um de: " + e.Param()
	case "url":
		return "deve ser uma URL válida"
	case "username":
		return "use apenas letras, números, _ . -"
	case "bookstatus":
		return "deve ser to-read, reading ou read"
	default:
		return "é inválido"
	}
}
