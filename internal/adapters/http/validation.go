package httpadapter

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pension/internal/api"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateRequest(obj any) []api.FieldError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []api.FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]api.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, api.FieldError{Field: fe.Field(), Message: errorMsg(fe)})
	}
	return fields
}

func errorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "datetime":
		return "Must be a date formatted YYYY-MM-DD"
	default:
		return "Invalid value"
	}
}
