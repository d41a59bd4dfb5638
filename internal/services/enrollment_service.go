package services

import (
	"strings"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"gorm.io/gorm"
)

// EnrollmentService drives the enrollment lifecycle: pending/active claims on
// a class slot, cancellation, reactivation and completion. Capacity is
// enforced by the repository inside one database transaction, so concurrent
// requests for the last slot cannot both win.
type EnrollmentService interface {
	// Create admits a client into a class. Paid classes start pending until
	// their transaction settles; free classes start active.
	Create(db *gorm.DB, req *models.EnrollmentCreateRequest) (*models.Enrollment, error)

	// Cancel moves a pending/active enrollment to cancelled, releasing its
	// slot. The reason is mandatory.
	Cancel(db *gorm.DB, id, reason string) (*models.Enrollment, error)

	// Reactivate moves a cancelled enrollment back to active, subject to a
	// fresh capacity check. State stays untouched when the class is full.
	Reactivate(db *gorm.DB, id string) (*models.Enrollment, error)

	// Complete moves an active enrollment to its terminal completed state
	Complete(db *gorm.DB, id string) (*models.Enrollment, error)

	// MarkPaid flips the paid flag on every enrollment referencing the
	// transaction. Called by the reconciliation side on settlement; does
	// not change the lifecycle state.
	MarkPaid(db *gorm.DB, transactionID string) error

	// AttachTransaction links a transaction to the enrollment
	AttachTransaction(db *gorm.DB, id, transactionID string) error

	Get(db *gorm.DB, id string) (*models.Enrollment, error)
	ListByClient(db *gorm.DB, clientDNI string) ([]models.Enrollment, error)
	Stats(db *gorm.DB, classID string) (*models.EnrollmentStatsResponse, error)

	// HardDelete physically removes the row. Administrative capability;
	// not part of the regular lifecycle.
	HardDelete(db *gorm.DB, id string) error
}

type enrollmentService struct {
	enrollmentRepo repositories.EnrollmentRepository
	classRepo      repositories.ClassRepository
}

func NewEnrollmentService(
	enrollmentRepo repositories.EnrollmentRepository,
	classRepo repositories.ClassRepository,
) EnrollmentService {
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		classRepo:      classRepo,
	}
}

func (s *enrollmentService) Create(db *gorm.DB, req *models.EnrollmentCreateRequest) (*models.Enrollment, error) {
	class, err := s.classRepo.FindByID(db, req.ClassID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrClassNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}

	state := models.EnrollmentStateActive
	if class.RequiresPayment() {
		state = models.EnrollmentStatePending
	}

	enrollment := &models.Enrollment{
		ClientDNI: req.ClientDNI,
		ClassID:   req.ClassID,
		State:     state,
	}

	if err := s.enrollmentRepo.CreateReserving(db, enrollment); err != nil {
		return nil, mapReservationError(err)
	}

	logger.Info("enrollment created",
		"enrollment_id", enrollment.ID,
		"client_dni", enrollment.ClientDNI,
		"class_id", enrollment.ClassID,
		"state", enrollment.State,
	)
	return enrollment, nil
}

func (s *enrollmentService) Cancel(db *gorm.DB, id, reason string) (*models.Enrollment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.ErrCancellationReasonRequired
	}

	enrollment, err := s.Get(db, id)
	if err != nil {
		return nil, err
	}

	if !enrollment.State.CanTransitionTo(models.EnrollmentStateCancelled) {
		return nil, apperrors.ErrIllegalTransition("enrollment",
			"Cannot cancel an enrollment in state '"+string(enrollment.State)+"'")
	}

	now := time.Now()
	err = s.enrollmentRepo.UpdateState(db, id, enrollment.State, models.EnrollmentStateCancelled,
		map[string]interface{}{
			"cancelled_at":        now,
			"cancellation_reason": reason,
		})
	if err != nil {
		if apperrors.Is(err, repositories.ErrStaleEnrollmentState) {
			return nil, apperrors.ErrIllegalTransition("enrollment",
				"Enrollment state changed concurrently, cancellation not applied")
		}
		return nil, err
	}

	enrollment.State = models.EnrollmentStateCancelled
	enrollment.CancelledAt = &now
	enrollment.CancellationReason = &reason

	logger.Info("enrollment cancelled", "enrollment_id", id, "reason", reason)
	return enrollment, nil
}

func (s *enrollmentService) Reactivate(db *gorm.DB, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(db, id)
	if err != nil {
		return nil, err
	}

	if !enrollment.State.CanTransitionTo(models.EnrollmentStateActive) {
		return nil, apperrors.ErrIllegalTransition("enrollment",
			"Cannot reactivate an enrollment in state '"+string(enrollment.State)+"'")
	}

	reactivated, err := s.enrollmentRepo.ReactivateReserving(db, id)
	if err != nil {
		return nil, mapReservationError(err)
	}

	logger.Info("enrollment reactivated", "enrollment_id", id)
	return reactivated, nil
}

func (s *enrollmentService) Complete(db *gorm.DB, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(db, id)
	if err != nil {
		return nil, err
	}

	if !enrollment.State.CanTransitionTo(models.EnrollmentStateCompleted) {
		return nil, apperrors.ErrIllegalTransition("enrollment",
			"Cannot complete an enrollment in state '"+string(enrollment.State)+"'")
	}

	err = s.enrollmentRepo.UpdateState(db, id, enrollment.State, models.EnrollmentStateCompleted, nil)
	if err != nil {
		if apperrors.Is(err, repositories.ErrStaleEnrollmentState) {
			return nil, apperrors.ErrIllegalTransition("enrollment",
				"Enrollment state changed concurrently, completion not applied")
		}
		return nil, err
	}

	enrollment.State = models.EnrollmentStateCompleted
	return enrollment, nil
}

func (s *enrollmentService) MarkPaid(db *gorm.DB, transactionID string) error {
	return s.enrollmentRepo.MarkPaid(db, transactionID)
}

func (s *enrollmentService) AttachTransaction(db *gorm.DB, id, transactionID string) error {
	if _, err := s.Get(db, id); err != nil {
		return err
	}
	return s.enrollmentRepo.SetTransaction(db, id, transactionID)
}

func (s *enrollmentService) Get(db *gorm.DB, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.FindByID(db, id)
	if err != nil {
		if apperrors.Is(err, repositories.ErrEnrollmentNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *enrollmentService) ListByClient(db *gorm.DB, clientDNI string) ([]models.Enrollment, error) {
	return s.enrollmentRepo.ListByClient(db, clientDNI)
}

func (s *enrollmentService) Stats(db *gorm.DB, classID string) (*models.EnrollmentStatsResponse, error) {
	if _, err := s.classRepo.FindByID(db, classID); err != nil {
		if apperrors.Is(err, repositories.ErrClassNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}
	return s.enrollmentRepo.Stats(db, classID)
}

func (s *enrollmentService) HardDelete(db *gorm.DB, id string) error {
	err := s.enrollmentRepo.HardDelete(db, id)
	if err != nil && apperrors.Is(err, repositories.ErrEnrollmentNotFound) {
		return apperrors.ErrNotFound(err)
	}
	return err
}

// mapReservationError converts capacity-ledger sentinels into AppErrors.
func mapReservationError(err error) error {
	switch {
	case apperrors.Is(err, repositories.ErrClassNotFound):
		return apperrors.ErrNotFound(err)
	case apperrors.Is(err, repositories.ErrClassClosed):
		return apperrors.ErrClassInactive
	case apperrors.Is(err, repositories.ErrDuplicateEnrollment):
		return apperrors.ErrDuplicateActiveEnrollment
	case apperrors.Is(err, repositories.ErrSlotsExhausted):
		return apperrors.ErrAtCapacity
	case apperrors.Is(err, repositories.ErrEnrollmentNotFound):
		return apperrors.ErrNotFound(err)
	case apperrors.Is(err, repositories.ErrStaleEnrollmentState):
		return apperrors.ErrIllegalTransition("enrollment", "Enrollment state changed concurrently")
	default:
		return err
	}
}
