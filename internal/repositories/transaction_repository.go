package repositories

import (
	"errors"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrTransactionNotFound is returned when the transaction does not exist
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStaleTransactionState is returned when a conditional state update
	// matched no row, i.e. another writer moved the transaction first
	ErrStaleTransactionState = errors.New("transaction state changed concurrently")
)

// TransactionRepository owns transaction rows. State moves only through
// AdvanceState, a conditional write that carries the expected current state.
type TransactionRepository interface {
	// Create inserts a pending transaction
	Create(db *gorm.DB, transaction *models.Transaction) error

	// FindByID returns the transaction or ErrTransactionNotFound
	FindByID(db *gorm.DB, id string) (*models.Transaction, error)

	// FindByExternalReference resolves the gateway-assigned reference
	FindByExternalReference(db *gorm.DB, reference string) (*models.Transaction, error)

	// AdvanceState moves the transaction fromState -> toState only when the
	// row still holds fromState; settledAt is stamped when non-nil.
	AdvanceState(db *gorm.DB, id string, fromState, toState models.TransactionState, settledAt *time.Time) error

	// FlagForReview marks the transaction for manual follow-up
	FlagForReview(db *gorm.DB, id string, note string) error

	// ListPendingOlderThan returns pending transactions created before the
	// cutoff, oldest first (the verify poller feeds on this)
	ListPendingOlderThan(db *gorm.DB, cutoff time.Time, limit int) ([]models.Transaction, error)

	// ListByClient returns the client's newest transactions, at most limit
	ListByClient(db *gorm.DB, clientDNI string, limit int) ([]models.Transaction, error)

	// Stats aggregates transaction counts and amounts per state
	Stats(db *gorm.DB) (*models.TransactionStatsResponse, error)
}

type transactionRepository struct{}

func NewTransactionRepository() TransactionRepository {
	return &transactionRepository{}
}

func (r *transactionRepository) Create(db *gorm.DB, transaction *models.Transaction) error {
	return db.Create(transaction).Error
}

func (r *transactionRepository) FindByID(db *gorm.DB, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepository) FindByExternalReference(db *gorm.DB, reference string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Where("external_reference = ?", reference).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepository) AdvanceState(db *gorm.DB, id string, fromState, toState models.TransactionState, settledAt *time.Time) error {
	updates := map[string]interface{}{
		"state":      toState,
		"updated_at": time.Now(),
	}
	if settledAt != nil {
		updates["settled_at"] = *settledAt
	}

	result := db.Model(&models.Transaction{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransactionState
	}
	return nil
}

func (r *transactionRepository) FlagForReview(db *gorm.DB, id string, note string) error {
	updates := map[string]interface{}{
		"needs_review": true,
		"updated_at":   time.Now(),
	}
	if note != "" {
		updates["notes"] = gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || '; ' || ? END", note, note)
	}
	return db.Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *transactionRepository) ListPendingOlderThan(db *gorm.DB, cutoff time.Time, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := db.Where("state = ? AND created_at < ?", models.TransactionStatePending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepository) ListByClient(db *gorm.DB, clientDNI string, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := db.Where("client_dni = ?", clientDNI).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepository) Stats(db *gorm.DB) (*models.TransactionStatsResponse, error) {
	type row struct {
		State  models.TransactionState
		N      int64
		Amount float64
	}
	var rows []row
	err := db.Model(&models.Transaction{}).
		Select("state, count(*) as n, coalesce(sum(amount), 0) as amount").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.TransactionStatsResponse{}
	for _, rec := range rows {
		stats.Total += rec.N
		stats.AmountTotal += rec.Amount
		switch rec.State {
		case models.TransactionStatePending:
			stats.Pending = rec.N
			stats.AmountPending = rec.Amount
		case models.TransactionStateCompleted:
			stats.Completed = rec.N
			stats.AmountCompleted = rec.Amount
		case models.TransactionStateRejected:
			stats.Rejected = rec.N
		}
	}
	return stats, nil
}
