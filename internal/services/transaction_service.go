package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/gateway"
	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionService drives the charge lifecycle. Settled transactions are
// immutable apart from the completed -> refunded edge; every advance is a
// conditional write against the expected current state.
type TransactionService interface {
	// Create inserts a pending transaction, opens a gateway checkout when
	// the method requires one, and optionally links it to an enrollment.
	Create(ctx context.Context, db *gorm.DB, req *models.TransactionCreateRequest) (*models.TransactionCreateResponse, error)

	// Advance moves the transaction along a legal edge. Illegal requests
	// fail with an immutable-state error. Advancing to completed stamps the
	// settlement time and flips the paid flag on linked enrollments.
	Advance(db *gorm.DB, id string, newState models.TransactionState) (*models.Transaction, error)

	// RecordAttempt adds a payment attempt row for the transaction
	RecordAttempt(db *gorm.DB, transactionID, externalReference string, amount float64) (*models.Payment, error)

	// CompleteAttempt settles one payment attempt, enforcing the invariant
	// that at most one attempt completes and the completed sum stays within
	// the transaction amount.
	CompleteAttempt(db *gorm.DB, paymentID string) error

	Get(db *gorm.DB, id string) (*models.Transaction, error)
	GetByExternalReference(db *gorm.DB, reference string) (*models.Transaction, error)
	ListByClient(db *gorm.DB, clientDNI string, limit int) ([]models.Transaction, error)
	ListAttempts(db *gorm.DB, transactionID string) ([]models.Payment, error)
	Stats(db *gorm.DB) (*models.TransactionStatsResponse, error)
}

type transactionService struct {
	transactionRepo repositories.TransactionRepository
	paymentRepo     repositories.PaymentRepository
	enrollmentRepo  repositories.EnrollmentRepository
	gatewayClient   gateway.Client
}

func NewTransactionService(
	transactionRepo repositories.TransactionRepository,
	paymentRepo repositories.PaymentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	gatewayClient gateway.Client,
) TransactionService {
	return &transactionService{
		transactionRepo: transactionRepo,
		paymentRepo:     paymentRepo,
		enrollmentRepo:  enrollmentRepo,
		gatewayClient:   gatewayClient,
	}
}

func (s *transactionService) Create(ctx context.Context, db *gorm.DB, req *models.TransactionCreateRequest) (*models.TransactionCreateResponse, error) {
	if req.Amount < 0 {
		return nil, apperrors.ErrNegativeAmount
	}

	transaction := &models.Transaction{
		ClientDNI:         req.ClientDNI,
		Amount:            req.Amount,
		Method:            req.Method,
		State:             models.TransactionStatePending,
		ExternalReference: newExternalReference(),
		Concept:           req.Concept,
		Notes:             req.Notes,
	}

	if err := s.transactionRepo.Create(db, transaction); err != nil {
		return nil, err
	}

	if req.EnrollmentID != "" {
		if err := s.enrollmentRepo.SetTransaction(db, req.EnrollmentID, transaction.ID); err != nil {
			return nil, err
		}
	}

	response := &models.TransactionCreateResponse{Transaction: transaction}

	if req.Method == models.PaymentMethodMercadoPago {
		charge, err := s.gatewayClient.CreateCharge(ctx, gateway.ChargeRequest{
			ExternalReference: transaction.ExternalReference,
			Amount:            transaction.Amount,
			Concept:           transaction.Concept,
			PayerDNI:          transaction.ClientDNI,
		})
		if err != nil {
			// Compensate: the checkout never opened, so the charge is dead.
			if cancelErr := s.transactionRepo.AdvanceState(db, transaction.ID,
				models.TransactionStatePending, models.TransactionStateCancelled, nil); cancelErr != nil {
				logger.CtxWithError(ctx, "failed to cancel transaction after gateway error", cancelErr,
					"transaction_id", transaction.ID)
			}
			return nil, apperrors.ErrExternalGateway(err)
		}
		response.RedirectURL = charge.RedirectURL
	}

	logger.CtxInfo(ctx, "transaction created",
		"transaction_id", transaction.ID,
		"client_dni", transaction.ClientDNI,
		"amount", transaction.Amount,
		"method", transaction.Method,
	)
	return response, nil
}

func (s *transactionService) Advance(db *gorm.DB, id string, newState models.TransactionState) (*models.Transaction, error) {
	transaction, err := s.Get(db, id)
	if err != nil {
		return nil, err
	}

	if !transaction.State.CanTransitionTo(newState) {
		return nil, apperrors.ErrImmutableState(fmt.Sprintf(
			"Transaction in state '%s' cannot move to '%s'", transaction.State, newState))
	}

	var settledAt *time.Time
	if newState == models.TransactionStateCompleted {
		now := time.Now()
		settledAt = &now
	}

	err = s.transactionRepo.AdvanceState(db, id, transaction.State, newState, settledAt)
	if err != nil {
		if apperrors.Is(err, repositories.ErrStaleTransactionState) {
			return nil, apperrors.ErrImmutableState("Transaction state changed concurrently")
		}
		return nil, err
	}

	transaction.State = newState
	transaction.SettledAt = settledAt

	if newState == models.TransactionStateCompleted {
		if err := s.enrollmentRepo.MarkPaid(db, id); err != nil {
			return nil, err
		}
	}

	logger.Info("transaction advanced", "transaction_id", id, "state", newState)
	return transaction, nil
}

func (s *transactionService) RecordAttempt(db *gorm.DB, transactionID, externalReference string, amount float64) (*models.Payment, error) {
	transaction, err := s.Get(db, transactionID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		TransactionID:     transaction.ID,
		ClientDNI:         transaction.ClientDNI,
		State:             models.TransactionStatePending,
		Amount:            amount,
		ExternalReference: externalReference,
	}
	if err := s.paymentRepo.Create(db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *transactionService) CompleteAttempt(db *gorm.DB, paymentID string) error {
	payment, err := s.paymentRepo.FindByID(db, paymentID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrPaymentNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return err
	}

	if !payment.State.CanTransitionTo(models.TransactionStateCompleted) {
		return apperrors.ErrImmutableState(fmt.Sprintf(
			"Payment in state '%s' cannot complete", payment.State))
	}

	transaction, err := s.Get(db, payment.TransactionID)
	if err != nil {
		return err
	}

	settled, err := s.paymentRepo.HasCompleted(db, transaction.ID)
	if err != nil {
		return err
	}
	if settled {
		return apperrors.ErrImmutableState("Transaction already has a completed payment attempt")
	}

	completedSum, err := s.paymentRepo.SumCompleted(db, transaction.ID)
	if err != nil {
		return err
	}
	if completedSum+payment.Amount > transaction.Amount {
		return apperrors.ErrPaymentExceedsTransaction
	}

	err = s.paymentRepo.AdvanceState(db, paymentID, payment.State, models.TransactionStateCompleted)
	if err != nil {
		if apperrors.Is(err, repositories.ErrStalePaymentState) {
			return apperrors.ErrImmutableState("Payment state changed concurrently")
		}
		return err
	}
	return nil
}

func (s *transactionService) Get(db *gorm.DB, id string) (*models.Transaction, error) {
	transaction, err := s.transactionRepo.FindByID(db, id)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}
	return transaction, nil
}

func (s *transactionService) GetByExternalReference(db *gorm.DB, reference string) (*models.Transaction, error) {
	transaction, err := s.transactionRepo.FindByExternalReference(db, reference)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}
	return transaction, nil
}

func (s *transactionService) ListByClient(db *gorm.DB, clientDNI string, limit int) ([]models.Transaction, error) {
	return s.transactionRepo.ListByClient(db, clientDNI, limit)
}

func (s *transactionService) ListAttempts(db *gorm.DB, transactionID string) ([]models.Payment, error) {
	return s.paymentRepo.ListByTransaction(db, transactionID)
}

func (s *transactionService) Stats(db *gorm.DB) (*models.TransactionStatsResponse, error) {
	return s.transactionRepo.Stats(db)
}

// newExternalReference follows the original reference format used by the
// gateway integration: TRX-MP-<8 uppercase hex>.
func newExternalReference() string {
	return "TRX-MP-" + strings.ToUpper(uuid.NewString()[:8])
}
