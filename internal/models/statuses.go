package models

type EnrollmentState string
type TransactionState string
type PaymentMethod string

const (
	EnrollmentStatePending   EnrollmentState = "pending"
	EnrollmentStateActive    EnrollmentState = "active"
	EnrollmentStateCancelled EnrollmentState = "cancelled"
	EnrollmentStateCompleted EnrollmentState = "completed"

	TransactionStatePending   TransactionState = "pending"
	TransactionStateCompleted TransactionState = "completed"
	TransactionStateRejected  TransactionState = "rejected"
	TransactionStateCancelled TransactionState = "cancelled"
	TransactionStateRefunded  TransactionState = "refunded"

	PaymentMethodTransfer    PaymentMethod = "transfer"
	PaymentMethodCreditCard  PaymentMethod = "credit_card"
	PaymentMethodDebitCard   PaymentMethod = "debit_card"
	PaymentMethodWallet      PaymentMethod = "wallet"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
)

// enrollmentTransitions lists the legal enrollment edges. Everything not
// listed fails closed. Reactivation (cancelled -> active) additionally
// requires a capacity re-check by the service.
var enrollmentTransitions = map[EnrollmentState][]EnrollmentState{
	EnrollmentStatePending:   {EnrollmentStateActive, EnrollmentStateCancelled},
	EnrollmentStateActive:    {EnrollmentStateCancelled, EnrollmentStateCompleted},
	EnrollmentStateCancelled: {EnrollmentStateActive},
	EnrollmentStateCompleted: {},
}

// transactionTransitions lists the legal transaction/payment edges. Settled
// states are immutable except for completed -> refunded.
var transactionTransitions = map[TransactionState][]TransactionState{
	TransactionStatePending:   {TransactionStateCompleted, TransactionStateRejected, TransactionStateCancelled},
	TransactionStateCompleted: {TransactionStateRefunded},
	TransactionStateRejected:  {},
	TransactionStateCancelled: {},
	TransactionStateRefunded:  {},
}

// CanTransitionTo reports whether the enrollment edge is legal.
func (s EnrollmentState) CanTransitionTo(to EnrollmentState) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the transaction edge is legal.
func (s TransactionState) CanTransitionTo(to TransactionState) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsSettled reports whether the state is one of the terminal settlement
// states (no further movement except the refund edge).
func (s TransactionState) IsSettled() bool {
	return s == TransactionStateCompleted ||
		s == TransactionStateRejected ||
		s == TransactionStateCancelled ||
		s == TransactionStateRefunded
}

// IsActive reports whether the enrollment still occupies a class slot.
func (s EnrollmentState) IsActive() bool {
	return s == EnrollmentStateActive || s == EnrollmentStatePending
}
