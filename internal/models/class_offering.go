package models

import (
	"gorm.io/datatypes"
)

// ClassOffering is owned by the scheduling/admin side of the platform. The
// enrollment core only reads its capacity and active flag.
type ClassOffering struct {
	BaseModel
	Name            string         `gorm:"not null;index" json:"name"`
	Description     string         `json:"description,omitempty"`
	Instructor      string         `json:"instructor,omitempty"`
	Capacity        int            `gorm:"not null;default:20;check:capacity >= 1" json:"capacity"`
	Price           float64        `gorm:"default:0" json:"price"`
	DurationMinutes int            `gorm:"default:60" json:"duration_minutes"`
	Difficulty      string         `gorm:"default:'medium'" json:"difficulty"`
	Weekdays        datatypes.JSON `gorm:"type:jsonb" json:"weekdays"` // ["monday", "wednesday", ...]
	Hour            string         `json:"hour,omitempty"`             // "HH:MM"
	IsActive        bool           `gorm:"default:true" json:"is_active"`
}

// RequiresPayment reports whether an enrollment in this class starts pending
// until a transaction settles.
func (c *ClassOffering) RequiresPayment() bool {
	return c.Price > 0
}
