package validator

import (
	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"github.com/go-playground/validator/v10"
)

var knownPaymentMethods = map[models.PaymentMethod]struct{}{
	models.PaymentMethodTransfer:    {},
	models.PaymentMethodCreditCard:  {},
	models.PaymentMethodDebitCard:   {},
	models.PaymentMethodWallet:      {},
	models.PaymentMethodCash:        {},
	models.PaymentMethodMercadoPago: {},
}

// registerCustomRules wires the domain-specific validation tags.
func registerCustomRules(v *validator.Validate) error {
	return v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, ok := knownPaymentMethods[models.PaymentMethod(fl.Field().String())]
		return ok
	})
}
