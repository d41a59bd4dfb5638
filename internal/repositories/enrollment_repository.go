package repositories

import (
	"errors"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrEnrollmentNotFound is returned when the enrollment does not exist
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrSlotsExhausted is returned when the class already holds as many
	// active+pending enrollments as its capacity allows
	ErrSlotsExhausted = errors.New("class capacity exhausted")

	// ErrDuplicateEnrollment is returned when the client already holds a
	// non-cancelled enrollment for the class
	ErrDuplicateEnrollment = errors.New("duplicate active enrollment")

	// ErrClassClosed is returned when the offering is not accepting enrollments
	ErrClassClosed = errors.New("class offering not active")

	// ErrStaleEnrollmentState is returned when a conditional state update
	// matched no row, i.e. another writer moved the enrollment first
	ErrStaleEnrollmentState = errors.New("enrollment state changed concurrently")
)

// EnrollmentRepository owns enrollment rows and the class capacity ledger.
//
// Capacity is enforced inside CreateReserving/ReactivateReserving: the class
// row is locked, occupancy counted and the insert/update performed in one
// database transaction, so N concurrent requests for the last slot yield
// exactly one success.
type EnrollmentRepository interface {
	// CreateReserving atomically checks capacity and inserts the enrollment.
	// Returns ErrClassNotFound, ErrClassClosed, ErrDuplicateEnrollment or
	// ErrSlotsExhausted on the respective violations.
	CreateReserving(db *gorm.DB, enrollment *models.Enrollment) error

	// ReactivateReserving atomically re-checks capacity and moves a
	// cancelled enrollment back to active. The state stays untouched when
	// the class is full.
	ReactivateReserving(db *gorm.DB, id string) (*models.Enrollment, error)

	// FindByID returns the enrollment or ErrEnrollmentNotFound
	FindByID(db *gorm.DB, id string) (*models.Enrollment, error)

	// FindByTransactionID returns every enrollment referencing the transaction
	FindByTransactionID(db *gorm.DB, transactionID string) ([]models.Enrollment, error)

	// UpdateState performs a conditional state move: the row is touched only
	// when it still is in fromState. Returns ErrStaleEnrollmentState when
	// another writer got there first.
	UpdateState(db *gorm.DB, id string, fromState, toState models.EnrollmentState, updates map[string]interface{}) error

	// MarkPaid flips the paid flag on enrollments linked to the transaction.
	// It never touches the state column.
	MarkPaid(db *gorm.DB, transactionID string) error

	// SetTransaction links a transaction to the enrollment
	SetTransaction(db *gorm.DB, id, transactionID string) error

	// CountOccupied returns the active+pending count for a class
	CountOccupied(db *gorm.DB, classID string) (int64, error)

	// ListByClient returns the client's enrollments, newest first
	ListByClient(db *gorm.DB, clientDNI string) ([]models.Enrollment, error)

	// Stats aggregates enrollment counts per state for a class
	Stats(db *gorm.DB, classID string) (*models.EnrollmentStatsResponse, error)

	// HardDelete physically removes an enrollment row. Administrative
	// escape hatch only; cancellation is the canonical path.
	HardDelete(db *gorm.DB, id string) error
}

type enrollmentRepository struct{}

func NewEnrollmentRepository() EnrollmentRepository {
	return &enrollmentRepository{}
}

func (r *enrollmentRepository) CreateReserving(db *gorm.DB, enrollment *models.Enrollment) error {
	return db.Transaction(func(tx *gorm.DB) error {
		class, err := lockClass(tx, enrollment.ClassID)
		if err != nil {
			return err
		}
		if !class.IsActive {
			return ErrClassClosed
		}

		var duplicates int64
		if err := tx.Model(&models.Enrollment{}).
			Where("client_dni = ? AND class_id = ? AND state IN ?",
				enrollment.ClientDNI, enrollment.ClassID, occupyingStates()).
			Count(&duplicates).Error; err != nil {
			return err
		}
		if duplicates > 0 {
			return ErrDuplicateEnrollment
		}

		occupied, err := countOccupied(tx, enrollment.ClassID)
		if err != nil {
			return err
		}
		if occupied >= int64(class.Capacity) {
			return ErrSlotsExhausted
		}

		return tx.Create(enrollment).Error
	})
}

func (r *enrollmentRepository) ReactivateReserving(db *gorm.DB, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEnrollmentNotFound
			}
			return err
		}

		class, err := lockClass(tx, enrollment.ClassID)
		if err != nil {
			return err
		}
		if !class.IsActive {
			return ErrClassClosed
		}

		occupied, err := countOccupied(tx, enrollment.ClassID)
		if err != nil {
			return err
		}
		if occupied >= int64(class.Capacity) {
			return ErrSlotsExhausted
		}

		result := tx.Model(&models.Enrollment{}).
			Where("id = ? AND state = ?", id, models.EnrollmentStateCancelled).
			Updates(map[string]interface{}{
				"state":               models.EnrollmentStateActive,
				"cancelled_at":        nil,
				"cancellation_reason": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleEnrollmentState
		}

		enrollment.State = models.EnrollmentStateActive
		enrollment.CancelledAt = nil
		enrollment.CancellationReason = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) FindByID(db *gorm.DB, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := db.Where("id = ?", id).First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepository) FindByTransactionID(db *gorm.DB, transactionID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := db.Where("transaction_id = ?", transactionID).Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepository) UpdateState(db *gorm.DB, id string, fromState, toState models.EnrollmentState, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = toState

	result := db.Model(&models.Enrollment{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleEnrollmentState
	}
	return nil
}

func (r *enrollmentRepository) MarkPaid(db *gorm.DB, transactionID string) error {
	return db.Model(&models.Enrollment{}).
		Where("transaction_id = ? AND paid = ?", transactionID, false).
		Updates(map[string]interface{}{"paid": true, "updated_at": time.Now()}).Error
}

func (r *enrollmentRepository) SetTransaction(db *gorm.DB, id, transactionID string) error {
	return db.Model(&models.Enrollment{}).
		Where("id = ?", id).
		Update("transaction_id", transactionID).Error
}

func (r *enrollmentRepository) CountOccupied(db *gorm.DB, classID string) (int64, error) {
	return countOccupied(db, classID)
}

func (r *enrollmentRepository) ListByClient(db *gorm.DB, clientDNI string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := db.Where("client_dni = ?", clientDNI).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepository) Stats(db *gorm.DB, classID string) (*models.EnrollmentStatsResponse, error) {
	type row struct {
		State models.EnrollmentState
		N     int64
	}
	var rows []row
	err := db.Model(&models.Enrollment{}).
		Select("state, count(*) as n").
		Where("class_id = ?", classID).
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.EnrollmentStatsResponse{}
	for _, rec := range rows {
		stats.Total += rec.N
		switch rec.State {
		case models.EnrollmentStateActive:
			stats.Active = rec.N
		case models.EnrollmentStatePending:
			stats.Pending = rec.N
		case models.EnrollmentStateCancelled:
			stats.Cancelled = rec.N
		case models.EnrollmentStateCompleted:
			stats.Completed = rec.N
		}
	}
	return stats, nil
}

func (r *enrollmentRepository) HardDelete(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.Enrollment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// lockClass takes a FOR UPDATE lock on the class row so concurrent capacity
// checks serialize on it.
func lockClass(tx *gorm.DB, classID string) (*models.ClassOffering, error) {
	var class models.ClassOffering
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", classID).
		First(&class).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	return &class, nil
}

func countOccupied(tx *gorm.DB, classID string) (int64, error) {
	var occupied int64
	err := tx.Model(&models.Enrollment{}).
		Where("class_id = ? AND state IN ?", classID, occupyingStates()).
		Count(&occupied).Error
	return occupied, err
}

func occupyingStates() []models.EnrollmentState {
	return []models.EnrollmentState{models.EnrollmentStateActive, models.EnrollmentStatePending}
}
