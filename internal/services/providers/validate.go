package providers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when a definition fails validation
var ErrValidation = errors.New("validation failed")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct validates s with its `validate` tags
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		if e.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: failed %s=%s", e.Field(), e.Tag(), e.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: failed %s", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, "; "))
}
