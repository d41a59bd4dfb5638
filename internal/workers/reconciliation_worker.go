package workers

import (
	"context"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/config"
	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/internal/services"

	"gorm.io/gorm"
)

// ReconciliationWorker runs the two background reconciliation loops: applying
// stored gateway events to transactions, and actively verifying transactions
// that have been pending for too long without a webhook.
type ReconciliationWorker struct {
	db              *gorm.DB
	reconciliation  services.ReconciliationService
	transactionRepo repositories.TransactionRepository
	cfg             config.ReconciliationConfig
}

func NewReconciliationWorker(
	db *gorm.DB,
	reconciliation services.ReconciliationService,
	transactionRepo repositories.TransactionRepository,
	cfg config.ReconciliationConfig,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		db:              db,
		reconciliation:  reconciliation,
		transactionRepo: transactionRepo,
		cfg:             cfg,
	}
}

func (w *ReconciliationWorker) Start(ctx context.Context) {
	go w.applyEvents(ctx)
	go w.verifyStale(ctx)
}

// applyEvents drains unprocessed gateway events on a fixed interval. Events
// that fail to apply stay unprocessed and are retried on the next tick.
func (w *ReconciliationWorker) applyEvents(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.ApplyIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("reconciliation", "apply loop stopped", nil)
			return
		case <-ticker.C:
			applied, err := w.reconciliation.ProcessPending(ctx, w.db, w.cfg.BatchSize)
			if err != nil {
				logger.WorkerLog("reconciliation", "apply events", err)
				continue
			}
			if applied > 0 {
				logger.Info("Applied gateway events", "count", applied)
			}
		}
	}
}

// verifyStale polls the gateway for transactions stuck in pending beyond the
// configured age. This covers webhooks that never arrived.
func (w *ReconciliationWorker) verifyStale(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.cfg.VerifyIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.WorkerLog("reconciliation", "verify loop stopped", nil)
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(w.cfg.VerifyAfterMinutes) * time.Minute)
			stale, err := w.transactionRepo.ListPendingOlderThan(w.db, cutoff, w.cfg.BatchSize)
			if err != nil {
				logger.WorkerLog("reconciliation", "list stale pending", err)
				continue
			}
			for _, txn := range stale {
				if _, err := w.reconciliation.Verify(ctx, w.db, txn.ID); err != nil {
					logger.WorkerLog("reconciliation", "verify transaction "+txn.ID, err)
				}
			}
			if len(stale) > 0 {
				logger.Info("Verified stale pending transactions", "count", len(stale))
			}
		}
	}
}
