package repositories

import (
	"errors"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrPaymentNotFound is returned when the payment attempt does not exist
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrStalePaymentState mirrors ErrStaleTransactionState for payment rows
	ErrStalePaymentState = errors.New("payment state changed concurrently")
)

// PaymentRepository owns per-attempt settlement rows. A transaction may hold
// several attempts but the completed sum never exceeds its amount; the
// service checks that through SumCompleted before advancing.
type PaymentRepository interface {
	// Create inserts a pending payment attempt
	Create(db *gorm.DB, payment *models.Payment) error

	// FindByID returns the payment or ErrPaymentNotFound
	FindByID(db *gorm.DB, id string) (*models.Payment, error)

	// FindByExternalReference resolves the gateway reference
	FindByExternalReference(db *gorm.DB, reference string) (*models.Payment, error)

	// ListByTransaction returns all attempts for a transaction, oldest first
	ListByTransaction(db *gorm.DB, transactionID string) ([]models.Payment, error)

	// AdvanceState conditionally moves the attempt fromState -> toState
	AdvanceState(db *gorm.DB, id string, fromState, toState models.TransactionState) error

	// SumCompleted returns the total amount of completed attempts for the
	// transaction
	SumCompleted(db *gorm.DB, transactionID string) (float64, error)

	// HasCompleted reports whether any attempt already settled
	HasCompleted(db *gorm.DB, transactionID string) (bool, error)
}

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

func (r *paymentRepository) Create(db *gorm.DB, payment *models.Payment) error {
	return db.Create(payment).Error
}

func (r *paymentRepository) FindByID(db *gorm.DB, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByExternalReference(db *gorm.DB, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Where("external_reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByTransaction(db *gorm.DB, transactionID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := db.Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) AdvanceState(db *gorm.DB, id string, fromState, toState models.TransactionState) error {
	result := db.Model(&models.Payment{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(map[string]interface{}{
			"state":      toState,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStalePaymentState
	}
	return nil
}

func (r *paymentRepository) SumCompleted(db *gorm.DB, transactionID string) (float64, error) {
	var sum float64
	err := db.Model(&models.Payment{}).
		Select("coalesce(sum(amount), 0)").
		Where("transaction_id = ? AND state = ?", transactionID, models.TransactionStateCompleted).
		Scan(&sum).Error
	return sum, err
}

func (r *paymentRepository) HasCompleted(db *gorm.DB, transactionID string) (bool, error) {
	var n int64
	err := db.Model(&models.Payment{}).
		Where("transaction_id = ? AND state = ?", transactionID, models.TransactionStateCompleted).
		Count(&n).Error
	return n > 0, err
}
