package apperrors

import (
	"net/http"
)

/*
Factories and predefined variables for the business-logic errors of the
enrollment and payment domains.
*/

// ErrNotFound converts a repository miss (e.g. gorm.ErrRecordNotFound)
// into a 404.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrConflict is the generic 409 factory.
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// --- Enrollments ---

// ErrAtCapacity - the class has no free slots left.
var ErrAtCapacity = New(
	CodeLimitExceeded,
	"enrollment",
	"Class is at full capacity",
	http.StatusConflict,
)

// ErrDuplicateActiveEnrollment - the client already holds a non-cancelled
// enrollment for this class.
var ErrDuplicateActiveEnrollment = New(
	CodeAlreadyExists,
	"enrollment",
	"Client already has an active enrollment for this class",
	http.StatusConflict,
)

// ErrIllegalTransition - the requested enrollment state change is not on the
// allowed edge set.
func ErrIllegalTransition(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusConflict)
}

// ErrCancellationReasonRequired - cancellations must carry a reason.
var ErrCancellationReasonRequired = New(
	CodeValidationFailed,
	"enrollment",
	"Cancellation reason is required",
	http.StatusBadRequest,
)

// ErrClassInactive - enrollment attempted on a deactivated class offering.
var ErrClassInactive = New(
	CodeInvalidOperation,
	"enrollment",
	"Class offering is not active",
	http.StatusConflict,
)

// --- Transactions & payments ---

// ErrImmutableState - edit attempted on a settled transaction or payment
// outside the refund edge.
func ErrImmutableState(message string) *AppError {
	return New(CodeInvalidStatus, "transaction", message, http.StatusConflict)
}

// ErrNegativeAmount - transaction amounts start at zero.
var ErrNegativeAmount = New(
	CodeValidationFailed,
	"transaction",
	"Amount must not be negative",
	http.StatusBadRequest,
)

// ErrPaymentExceedsTransaction - the sum of completed payments would exceed
// the transaction amount.
var ErrPaymentExceedsTransaction = New(
	CodeLimitExceeded,
	"payment",
	"Completed payments would exceed the transaction amount",
	http.StatusConflict,
)

// --- Gateway ---

// ErrExternalGateway wraps a network or HTTP error from the payment gateway.
// Retry is the caller's responsibility.
func ErrExternalGateway(err error) *AppError {
	return Wrap(err, CodeExternalServiceError, "gateway", "Payment gateway request failed", http.StatusBadGateway)
}

// ErrDuplicateEvent - a gateway notification was delivered more than once.
// Benign: callers absorb it and acknowledge the delivery.
var ErrDuplicateEvent = New(
	CodeAlreadyExists,
	"gateway",
	"Event already processed",
	http.StatusOK,
)
