package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(FieldName)

	return v
}

// FieldName names a struct field by its json tag, or by its lower-cased Go
// name when it has none.
func FieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return strings.ToLower(f.Name)
	}
	return name
}

// FromFieldErrors converts validator failures into a ValidationError keyed
// by field name. Errors of any other kind are returned unchanged.
func FromFieldErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	verr := &ValidationError{}
	for _, fe := range errs {
		verr.add(fe.Field(), fieldMessage(fe))
	}

	return verr.orNil()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// validateStruct merges the struct's tag failures into verr.
func validateStruct(verr *ValidationError, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fields *ValidationError
	if !errors.As(FromFieldErrors(err), &fields) {
		return err
	}
	for field, msg := range fields.Fields {
		verr.add(field, msg)
	}

	return nil
}
