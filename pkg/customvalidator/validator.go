package customvalidator

import (
	"github.com/go-playground/validator/v10"

	"lab-request-system/pkg/constants"
)

// RegisterCustomValidations wires the enum rules used by the DTO tags into
// the shared validator instance.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("priority", isValidPriority); err != nil {
		return err
	}
	if err := v.RegisterValidation("request_status", isValidRequestStatus); err != nil {
		return err
	}
	if err := v.RegisterValidation("user_role", isValidUserRole); err != nil {
		return err
	}
	return nil
}

func isValidPriority(fl validator.FieldLevel) bool {
	return constants.IsValidPriority(fl.Field().String())
}

func isValidRequestStatus(fl validator.FieldLevel) bool {
	return constants.IsValidStatus(fl.Field().String())
}

func isValidUserRole(fl validator.FieldLevel) bool {
	return constants.IsValidRole(fl.Field().String())
}
