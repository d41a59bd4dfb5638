package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/gateway"
	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// gatewayStatusMap translates the gateway's status vocabulary into local
// transaction states. Unknown statuses fall back to pending, matching the
// gateway's own documentation of non-final statuses.
var gatewayStatusMap = map[string]models.TransactionState{
	"pending":      models.TransactionStatePending,
	"in_process":   models.TransactionStatePending,
	"authorized":   models.TransactionStatePending,
	"in_mediation": models.TransactionStatePending,
	"approved":     models.TransactionStateCompleted,
	"rejected":     models.TransactionStateRejected,
	"cancelled":    models.TransactionStateCancelled,
	"refunded":     models.TransactionStateRefunded,
	"charged_back": models.TransactionStateRefunded,
}

// MapGatewayStatus resolves a raw gateway status into a local state.
func MapGatewayStatus(status string) models.TransactionState {
	if state, ok := gatewayStatusMap[status]; ok {
		return state
	}
	return models.TransactionStatePending
}

// ReconciliationService aligns local transaction/payment state with the
// gateway's authoritative status stream.
//
// Ingest persists the notification and nothing else, so the webhook endpoint
// can acknowledge within its deadline; ProcessPending applies stored events
// asynchronously. Verify is the pull-path fallback and funnels through the
// same applyStatus routine, so push and pull cannot diverge.
//
// Two guards make the whole pipeline safe under at-least-once, out-of-order
// delivery: the unique event_id (duplicate deliveries collide in the store)
// and the monotonicity rule (a mapped status is applied only when it is a
// legal forward edge; anything else is silently ignored).
type ReconciliationService interface {
	// Ingest persists the gateway notification. A redelivered event fails
	// with apperrors.ErrDuplicateEvent, which callers acknowledge instead
	// of surfacing.
	Ingest(db *gorm.DB, notification *models.WebhookNotification) error

	// ProcessPending applies every unprocessed event, oldest first, and
	// returns how many were applied. Events whose gateway lookup failed
	// transiently stay unprocessed for the next pass; ids the gateway
	// answers 404 for are parked as orphans so they cannot starve the
	// queue.
	ProcessPending(ctx context.Context, db *gorm.DB, batchSize int) (int, error)

	// Apply resolves and applies one stored event
	Apply(ctx context.Context, db *gorm.DB, event *models.GatewayEvent) error

	// Verify pulls the gateway directly for a transaction that has not
	// heard from the webhook stream, applying whatever status it finds.
	Verify(ctx context.Context, db *gorm.DB, transactionID string) (*models.Transaction, error)
}

type reconciliationService struct {
	eventRepo       repositories.GatewayEventRepository
	transactionRepo repositories.TransactionRepository
	paymentRepo     repositories.PaymentRepository
	enrollmentRepo  repositories.EnrollmentRepository
	gatewayClient   gateway.Client
}

func NewReconciliationService(
	eventRepo repositories.GatewayEventRepository,
	transactionRepo repositories.TransactionRepository,
	paymentRepo repositories.PaymentRepository,
	enrollmentRepo repositories.EnrollmentRepository,
	gatewayClient gateway.Client,
) ReconciliationService {
	return &reconciliationService{
		eventRepo:       eventRepo,
		transactionRepo: transactionRepo,
		paymentRepo:     paymentRepo,
		enrollmentRepo:  enrollmentRepo,
		gatewayClient:   gatewayClient,
	}
}

func (s *reconciliationService) Ingest(db *gorm.DB, notification *models.WebhookNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return apperrors.NewBadRequestError("Malformed webhook payload")
	}

	event := &models.GatewayEvent{
		EventID:    notification.EventID,
		Type:       notification.Type,
		ResourceID: notification.Data.ID,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: time.Now(),
	}

	if err := s.eventRepo.Insert(db, event); err != nil {
		if apperrors.Is(err, repositories.ErrEventAlreadyStored) {
			// At-least-once delivery: already have it, acknowledge quietly.
			logger.Debug("duplicate gateway event absorbed", "event_id", notification.EventID)
			return apperrors.ErrDuplicateEvent
		}
		return apperrors.DatabaseError(err, "Failed to store gateway event")
	}

	logger.Info("gateway event stored", "event_id", event.EventID, "type", event.Type)
	return nil
}

func (s *reconciliationService) ProcessPending(ctx context.Context, db *gorm.DB, batchSize int) (int, error) {
	events, err := s.eventRepo.ListUnprocessed(db, batchSize)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range events {
		eventCtx := logger.WithEventID(ctx, events[i].EventID)
		if err := s.Apply(eventCtx, db, &events[i]); err != nil {
			// Gateway trouble: leave the event for the next pass, keep going.
			logger.CtxWithError(eventCtx, "event apply deferred", err)
			continue
		}
		applied++
	}
	return applied, nil
}

func (s *reconciliationService) Apply(ctx context.Context, db *gorm.DB, event *models.GatewayEvent) error {
	if event.Processed {
		return nil
	}

	if event.Type != "payment" {
		// Not a payment notification; nothing to reconcile.
		logger.Debug("skipping non-payment event", "event_id", event.EventID, "type", event.Type)
		return s.eventRepo.MarkProcessed(db, event.ID, false)
	}

	status, err := s.gatewayClient.GetStatus(ctx, event.ResourceID)
	if err != nil {
		if apperrors.Is(err, gateway.ErrPaymentNotFound) {
			// The gateway has no payment under this id (test and expired
			// notifications answer 404). Retrying never heals that, and
			// unprocessed events are drained oldest first, so park it as
			// an orphan instead of letting it pin the head of the queue.
			logger.Warn("gateway has no payment for event, parking as orphan",
				"event_id", event.EventID,
				"resource_id", event.ResourceID,
			)
			return s.eventRepo.MarkProcessed(db, event.ID, true)
		}
		// Transient gateway trouble: the event stays unprocessed and the
		// worker retries on its schedule.
		return apperrors.ErrExternalGateway(err)
	}

	transaction, err := s.transactionRepo.FindByExternalReference(db, status.ExternalReference)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTransactionNotFound) {
			// Unknown reference: flag as orphan for manual reconciliation
			// instead of failing the pipeline.
			logger.Warn("orphan gateway event",
				"event_id", event.EventID,
				"external_reference", status.ExternalReference,
			)
			return s.eventRepo.MarkProcessed(db, event.ID, true)
		}
		return err
	}

	if err := s.applyStatus(db, transaction, status); err != nil {
		return err
	}

	return s.eventRepo.MarkProcessed(db, event.ID, false)
}

func (s *reconciliationService) Verify(ctx context.Context, db *gorm.DB, transactionID string) (*models.Transaction, error) {
	transaction, err := s.transactionRepo.FindByID(db, transactionID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, err
	}

	status, err := s.gatewayClient.SearchByReference(ctx, transaction.ExternalReference)
	if err != nil {
		if apperrors.Is(err, gateway.ErrPaymentNotFound) {
			// No gateway payment yet; nothing to apply.
			return transaction, nil
		}
		return nil, apperrors.ErrExternalGateway(err)
	}

	if err := s.applyStatus(db, transaction, status); err != nil {
		return nil, err
	}

	return s.transactionRepo.FindByID(db, transactionID)
}

// applyStatus maps the gateway status and applies it monotonically. Shared
// by the push (Apply) and pull (Verify) paths.
func (s *reconciliationService) applyStatus(db *gorm.DB, transaction *models.Transaction, status *gateway.PaymentStatus) error {
	target := MapGatewayStatus(status.Status)

	// Conditional read-verify-write: another notification for the same
	// reference may land concurrently, so on a stale write the row is
	// re-read and the legality re-evaluated.
	for attempt := 0; attempt < 3; attempt++ {
		if target == transaction.State {
			// Equal move: nothing to change, but keep attempt bookkeeping.
			return s.recordAttempt(db, transaction, status, target)
		}

		if !transaction.State.CanTransitionTo(target) {
			// Regression or illegal edge (e.g. stale "pending" after
			// "approved"): the monotonicity guard drops it.
			logger.Info("ignoring non-forward gateway status",
				"transaction_id", transaction.ID,
				"current", transaction.State,
				"gateway_status", status.Status,
			)
			return nil
		}

		var settledAt *time.Time
		if target == models.TransactionStateCompleted {
			now := time.Now()
			settledAt = &now
		}

		err := s.transactionRepo.AdvanceState(db, transaction.ID, transaction.State, target, settledAt)
		if err == nil {
			transaction.State = target
			transaction.SettledAt = settledAt

			if err := s.recordAttempt(db, transaction, status, target); err != nil {
				return err
			}

			if target == models.TransactionStateCompleted {
				if err := s.enrollmentRepo.MarkPaid(db, transaction.ID); err != nil {
					return err
				}
			}

			logger.Info("transaction reconciled",
				"transaction_id", transaction.ID,
				"state", target,
				"gateway_status", status.Status,
			)
			return nil
		}
		if !apperrors.Is(err, repositories.ErrStaleTransactionState) {
			return err
		}

		fresh, err := s.transactionRepo.FindByID(db, transaction.ID)
		if err != nil {
			return err
		}
		*transaction = *fresh
	}

	// A writer kept beating us; the next delivery or verify pass settles it.
	logger.Warn("gave up applying gateway status after contention",
		"transaction_id", transaction.ID, "gateway_status", status.Status)
	return nil
}

// recordAttempt keeps the per-attempt payment rows in line with the gateway
// view. At most one attempt may be completed per transaction.
func (s *reconciliationService) recordAttempt(db *gorm.DB, transaction *models.Transaction, status *gateway.PaymentStatus, target models.TransactionState) error {
	payment, err := s.paymentRepo.FindByExternalReference(db, status.PaymentID)
	if err != nil {
		if !apperrors.Is(err, repositories.ErrPaymentNotFound) {
			return err
		}
		amount := status.Amount
		if amount == 0 {
			amount = transaction.Amount
		}
		payment = &models.Payment{
			TransactionID:     transaction.ID,
			ClientDNI:         transaction.ClientDNI,
			State:             models.TransactionStatePending,
			Amount:            amount,
			ExternalReference: status.PaymentID,
		}
		if err := s.paymentRepo.Create(db, payment); err != nil {
			return err
		}
	}

	if payment.State == target || !payment.State.CanTransitionTo(target) {
		return nil
	}

	if target == models.TransactionStateCompleted {
		settled, err := s.paymentRepo.HasCompleted(db, transaction.ID)
		if err != nil {
			return err
		}
		if settled {
			return nil
		}

		completedSum, err := s.paymentRepo.SumCompleted(db, transaction.ID)
		if err != nil {
			return err
		}
		if completedSum+payment.Amount > transaction.Amount {
			logger.Warn("payment attempt exceeds transaction amount, flagging",
				"transaction_id", transaction.ID, "payment_id", payment.ID)
			return s.transactionRepo.FlagForReview(db, transaction.ID,
				"completed payments exceed transaction amount")
		}
	}

	err = s.paymentRepo.AdvanceState(db, payment.ID, payment.State, target)
	if err != nil && !apperrors.Is(err, repositories.ErrStalePaymentState) {
		return err
	}
	return nil
}
