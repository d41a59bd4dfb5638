package models

import (
	"time"
)

// Transaction is a monetary charge raised against a client. Its state only
// moves along the edges in transactionTransitions; settled transactions are
// immutable except for the refund edge.
type Transaction struct {
	BaseModel
	ClientDNI         string           `gorm:"not null;index" json:"client_dni"`
	Amount            float64          `gorm:"not null;check:amount >= 0" json:"amount"`
	Method            PaymentMethod    `gorm:"not null;index" json:"method"`
	State             TransactionState `gorm:"not null;default:'pending';index" json:"state"`
	ExternalReference string           `gorm:"uniqueIndex;not null" json:"external_reference"`
	Concept           string           `json:"concept,omitempty"`
	Discount          float64          `gorm:"default:0" json:"discount,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	SettledAt         *time.Time       `json:"settled_at,omitempty"`

	// NeedsReview marks a transaction whose money-side reconciliation could
	// not complete synchronously (failed refund, orphan event follow-up).
	NeedsReview bool `gorm:"default:false;index" json:"needs_review"`

	// Relations
	Payments []Payment `gorm:"foreignKey:TransactionID" json:"payments,omitempty"`
}

// Payment is one gateway settlement attempt for a transaction. A transaction
// may accumulate several attempts; at most one reaches completed.
type Payment struct {
	BaseModel
	TransactionID     string           `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ClientDNI         string           `gorm:"not null;index" json:"client_dni"`
	State             TransactionState `gorm:"not null;default:'pending';index" json:"state"`
	Amount            float64          `gorm:"not null;check:amount >= 0" json:"amount"`
	ExternalReference string           `gorm:"uniqueIndex" json:"external_reference"`
	Notes             string           `json:"notes,omitempty"`
}

// Request/response DTOs

type TransactionCreateRequest struct {
	ClientDNI    string        `json:"client_dni" validate:"required,min=1"`
	Amount       float64       `json:"amount" validate:"gte=0"`
	Method       PaymentMethod `json:"method" validate:"required,payment_method"`
	Concept      string        `json:"concept" validate:"max=255"`
	Notes        string        `json:"notes" validate:"max=1000"`
	EnrollmentID string        `json:"enrollment_id" validate:"omitempty,uuid"`
}

type TransactionCreateResponse struct {
	Transaction *Transaction `json:"transaction"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

type TransactionStatsResponse struct {
	Total           int64   `json:"total"`
	Pending         int64   `json:"pending"`
	Completed       int64   `json:"completed"`
	Rejected        int64   `json:"rejected"`
	AmountTotal     float64 `json:"amount_total"`
	AmountPending   float64 `json:"amount_pending"`
	AmountCompleted float64 `json:"amount_completed"`
}
