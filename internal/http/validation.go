package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/meal-access/internal/application"
)

const dateParam = "2006-01-02"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct validation and reports failures keyed by JSON field name.
func validateRequest(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		vErr.FieldErrors[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return vErr
}

func validationMessage(fieldErr validator.FieldError) string {
	field := strings.ReplaceAll(fieldErr.Field(), "_", " ")
	switch fieldErr.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "email":
		return field + " is invalid"
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	case "excludesall":
		return field + " contains forbidden characters"
	}
	return fieldErr.Error()
}

// parseDate parses an optional YYYY-MM-DD value. Empty yields nil.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(dateParam, value)
	if err != nil {
		return nil, &application.ValidationError{FieldErrors: map[string]string{field: field + " must be a YYYY-MM-DD date"}}
	}
	return &d, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateParam)
	return &s
}
