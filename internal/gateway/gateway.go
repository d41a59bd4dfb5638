package gateway

import (
	"context"
)

// ChargeRequest describes a checkout to open at the gateway.
type ChargeRequest struct {
	ExternalReference string // our transaction reference, echoed back in notifications
	Amount            float64
	Concept           string
	PayerDNI          string
}

// Charge is the gateway's answer to a created checkout.
type Charge struct {
	ChargeID    string // gateway-side preference/charge id
	RedirectURL string // where the client completes the payment
}

// PaymentStatus is the gateway's view of one payment.
type PaymentStatus struct {
	PaymentID         string
	Status            string // raw gateway vocabulary (approved, rejected, ...)
	StatusDetail      string
	ExternalReference string
	Amount            float64
}

// Refund is the gateway's answer to a refund request.
type Refund struct {
	RefundID string
	Status   string
}

// Client is the payment gateway boundary. All calls run with a bounded
// timeout; retrying a failed call is the caller's decision. Refunds are
// idempotent per idempotencyKey, so a retry cannot refund twice.
type Client interface {
	// CreateCharge opens a checkout and returns the redirect URL
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)

	// GetStatus fetches the current status of a gateway payment
	GetStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)

	// SearchByReference finds the latest gateway payment carrying our
	// external reference (pull-path fallback when no webhook arrived)
	SearchByReference(ctx context.Context, externalReference string) (*PaymentStatus, error)

	// RefundPayment refunds a settled payment; amount 0 means full refund
	RefundPayment(ctx context.Context, paymentID string, amount float64, idempotencyKey string) (*Refund, error)
}
