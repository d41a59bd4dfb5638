package models

import (
	"time"

	"gorm.io/datatypes"
)

// GatewayEvent stores every inbound gateway notification before any side
// effect runs. EventID doubles as the idempotency key: the unique index makes
// a redelivered notification collide instead of being applied twice.
type GatewayEvent struct {
	BaseModel
	EventID    string         `gorm:"uniqueIndex;not null" json:"event_id"`
	Type       string         `gorm:"not null;index" json:"type"`
	ResourceID string         `gorm:"index" json:"resource_id"` // gateway-side payment id (data.id)
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Processed  bool           `gorm:"default:false;index" json:"processed"`
	Orphan     bool           `gorm:"default:false" json:"orphan"` // no local transaction matched the reference
	ReceivedAt time.Time      `gorm:"default:now()" json:"received_at"`
	AppliedAt  *time.Time     `json:"applied_at,omitempty"`
}

// WebhookNotification is the inbound shape MercadoPago posts to the webhook
// endpoint.
type WebhookNotification struct {
	EventID string `json:"id" validate:"required,min=1"`
	Type    string `json:"type" validate:"required"`
	Data    struct {
		ID string `json:"id" validate:"required,min=1"`
	} `json:"data"`
}
