package models

// Client is the gym member referenced by enrollments and transactions.
// Profile management lives outside this core; only the reference fields the
// enrollment and payment flows need are modelled here. Clients are keyed by
// national ID (DNI) in addition to the surrogate key.
type Client struct {
	BaseModel
	DNI      string `gorm:"uniqueIndex;not null" json:"dni"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"index" json:"email"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

type ClientCreateRequest struct {
	DNI   string `json:"dni" validate:"required,min=1,max=20"`
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
}
