package services

import (
	"context"

	"github.com/Lorient94/GimnasioAdmin/internal/gateway"
	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"gorm.io/gorm"
)

// CancellationResult reports what the coordinator managed to do. The
// enrollment side is always final once returned; the refund side may have
// been left for manual follow-up.
type CancellationResult struct {
	Enrollment       *models.Enrollment `json:"enrollment"`
	RefundAttempted  bool               `json:"refund_attempted"`
	Refunded         bool               `json:"refunded"`
	FlaggedForReview bool               `json:"flagged_for_review"`
	RefundError      string             `json:"refund_error,omitempty"`
}

// CancellationService coordinates enrollment cancellation with transaction
// refunds.
//
// Partial-failure policy: the cancellation commits first and is never rolled
// back. When the refund call fails the transaction stays completed and is
// flagged for manual follow-up; the client-facing cancellation still
// succeeds. Refunds are keyed by transaction id at the gateway boundary, so
// retrying cannot refund twice.
type CancellationService interface {
	CancelAndMaybeRefund(ctx context.Context, db *gorm.DB, enrollmentID, reason string) (*CancellationResult, error)
}

type cancellationService struct {
	enrollmentService EnrollmentService
	transactionRepo   repositories.TransactionRepository
	paymentRepo       repositories.PaymentRepository
	gatewayClient     gateway.Client
}

func NewCancellationService(
	enrollmentService EnrollmentService,
	transactionRepo repositories.TransactionRepository,
	paymentRepo repositories.PaymentRepository,
	gatewayClient gateway.Client,
) CancellationService {
	return &cancellationService{
		enrollmentService: enrollmentService,
		transactionRepo:   transactionRepo,
		paymentRepo:       paymentRepo,
		gatewayClient:     gatewayClient,
	}
}

func (s *cancellationService) CancelAndMaybeRefund(ctx context.Context, db *gorm.DB, enrollmentID, reason string) (*CancellationResult, error) {
	// Step 1: cancel. Irreversible from here on; the slot is released even
	// when the money side cannot complete.
	enrollment, err := s.enrollmentService.Cancel(db, enrollmentID, reason)
	if err != nil {
		return nil, err
	}

	result := &CancellationResult{Enrollment: enrollment}

	if enrollment.TransactionID == nil {
		return result, nil
	}

	transaction, err := s.transactionRepo.FindByID(db, *enrollment.TransactionID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTransactionNotFound) {
			// Dangling reference; nothing to refund.
			logger.Warn("cancelled enrollment references missing transaction",
				"enrollment_id", enrollmentID, "transaction_id", *enrollment.TransactionID)
			return result, nil
		}
		return nil, err
	}

	if transaction.State != models.TransactionStateCompleted {
		return result, nil
	}

	// Step 2: refund the settled charge.
	result.RefundAttempted = true

	paymentID := s.settledPaymentID(db, transaction.ID)

	refund, refundErr := s.gatewayClient.RefundPayment(ctx, paymentID, 0, transaction.ID)
	if refundErr != nil {
		// Explicit partial-failure policy: no rollback of step 1. Flag the
		// transaction and report the cancellation as done.
		if flagErr := s.transactionRepo.FlagForReview(db, transaction.ID,
			"refund failed during cancellation: "+refundErr.Error()); flagErr != nil {
			logger.CtxWithError(ctx, "failed to flag transaction for review", flagErr,
				"transaction_id", transaction.ID)
		}
		result.FlaggedForReview = true
		result.RefundError = refundErr.Error()
		logger.CtxWithError(ctx, "refund failed, transaction flagged for manual follow-up", refundErr,
			"enrollment_id", enrollmentID,
			"transaction_id", transaction.ID,
		)
		return result, nil
	}

	// Step 3: record the settled refund locally.
	err = s.transactionRepo.AdvanceState(db, transaction.ID,
		models.TransactionStateCompleted, models.TransactionStateRefunded, nil)
	if err != nil && !apperrors.Is(err, repositories.ErrStaleTransactionState) {
		return nil, err
	}

	result.Refunded = true
	logger.CtxInfo(ctx, "enrollment cancelled and transaction refunded",
		"enrollment_id", enrollmentID,
		"transaction_id", transaction.ID,
		"refund_id", refund.RefundID,
	)
	return result, nil
}

// settledPaymentID returns the gateway payment id of the completed attempt,
// falling back to the transaction's external reference when no attempt row
// exists (cash-side settlements never created one).
func (s *cancellationService) settledPaymentID(db *gorm.DB, transactionID string) string {
	payments, err := s.paymentRepo.ListByTransaction(db, transactionID)
	if err == nil {
		for _, p := range payments {
			if p.State == models.TransactionStateCompleted && p.ExternalReference != "" {
				return p.ExternalReference
			}
		}
	}
	transaction, err := s.transactionRepo.FindByID(db, transactionID)
	if err != nil {
		return transactionID
	}
	return transaction.ExternalReference
}
