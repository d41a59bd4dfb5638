package models

import (
	"time"
)

// Enrollment is a client's claim on a slot in a class offering.
//
// At most one non-cancelled enrollment may exist per (client, class) pair;
// the partial unique index enforces it at the store level so concurrent
// requests cannot race past the service check.
type Enrollment struct {
	BaseModel
	ClientDNI          string          `gorm:"not null;index:idx_enrollment_client_class" json:"client_dni"`
	ClassID            string          `gorm:"type:uuid;not null;index:idx_enrollment_client_class" json:"class_id"`
	State              EnrollmentState `gorm:"not null;default:'active';index" json:"state"`
	Paid               bool            `gorm:"default:false" json:"paid"`
	TransactionID      *string         `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`

	// Relations
	Class       *ClassOffering `gorm:"foreignKey:ClassID" json:"class,omitempty"`
	Transaction *Transaction   `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// Request/response DTOs

type EnrollmentCreateRequest struct {
	ClientDNI string `json:"client_dni" binding:"required" validate:"required,min=1"`
	ClassID   string `json:"class_id" binding:"required" validate:"required,uuid"`
}

type EnrollmentCancelRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

type EnrollmentStatsResponse struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Pending   int64 `json:"pending"`
	Cancelled int64 `json:"cancelled"`
	Completed int64 `json:"completed"`
}
