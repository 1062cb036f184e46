package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct tags and returns a VALIDATION_FAILED error with one
// detail entry per failing field.
func Validate(payload any) error {
	err := validatorInstance().Struct(payload)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(errs))
	for _, e := range errs {
		details[e.Field()] = describe(e)
	}
	return apperrors.NewValidationError("invalid payload", details)
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "must be YYYY-MM-DD"
	case "oneof":
		return "must be one of: " + e.Param()
	case "email":
		return "must be an e-mail address"
	default:
		return "invalid"
	}
}
