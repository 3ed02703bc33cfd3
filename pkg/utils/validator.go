package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Custom validations
	_ = v.RegisterValidation("price_id", validatePriceID)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// Stripe fiyat kimliklerini kontrol et
func validatePriceID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return strings.HasPrefix(id, "price_") && len(id) > len("price_") && !strings.ContainsAny(id, " /")
}
