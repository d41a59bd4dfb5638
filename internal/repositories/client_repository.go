package repositories

import (
	"errors"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrClientNotFound is returned when no client carries the DNI
	ErrClientNotFound = errors.New("client not found")

	// ErrDuplicateDNI is returned when registration collides with an
	// existing DNI
	ErrDuplicateDNI = errors.New("client dni already registered")
)

// ClientRepository owns the gym member registry. Clients are looked up by
// DNI everywhere; the surrogate key exists only for gorm.
type ClientRepository interface {
	// Create registers a client; returns ErrDuplicateDNI on collision
	Create(db *gorm.DB, client *models.Client) error

	// FindByDNI returns the client or ErrClientNotFound
	FindByDNI(db *gorm.DB, dni string) (*models.Client, error)

	// ListActive returns all active clients, ordered by name
	ListActive(db *gorm.DB) ([]models.Client, error)
}

type clientRepository struct{}

func NewClientRepository() ClientRepository {
	return &clientRepository{}
}

func (r *clientRepository) Create(db *gorm.DB, client *models.Client) error {
	if err := db.Create(client).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrDuplicateDNI
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateDNI
		}
		return err
	}
	return nil
}

func (r *clientRepository) FindByDNI(db *gorm.DB, dni string) (*models.Client, error) {
	var client models.Client
	if err := db.Where("dni = ?", dni).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) ListActive(db *gorm.DB) ([]models.Client, error) {
	var clients []models.Client
	err := db.Where("is_active = ?", true).Order("name").Find(&clients).Error
	return clients, err
}
