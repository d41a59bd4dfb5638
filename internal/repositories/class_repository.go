package repositories

import (
	"errors"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrClassNotFound is returned when the class offering does not exist
	ErrClassNotFound = errors.New("class offering not found")
)

// ClassRepository reads class offerings. The offerings themselves are owned
// by the scheduling/admin side; the enrollment core only consults them.
type ClassRepository interface {
	// Create inserts a class offering (admin/seed usage)
	Create(db *gorm.DB, class *models.ClassOffering) error

	// FindByID returns the offering or ErrClassNotFound
	FindByID(db *gorm.DB, id string) (*models.ClassOffering, error)

	// ListActive returns all offerings still open for enrollment
	ListActive(db *gorm.DB) ([]models.ClassOffering, error)
}

type classRepository struct{}

func NewClassRepository() ClassRepository {
	return &classRepository{}
}

func (r *classRepository) Create(db *gorm.DB, class *models.ClassOffering) error {
	return db.Create(class).Error
}

func (r *classRepository) FindByID(db *gorm.DB, id string) (*models.ClassOffering, error) {
	var class models.ClassOffering
	if err := db.Where("id = ?", id).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return &class, nil
}

func (r *classRepository) ListActive(db *gorm.DB) ([]models.ClassOffering, error) {
	var classes []models.ClassOffering
	err := db.Where("is_active = ?", true).Order("name").Find(&classes).Error
	return classes, err
}
