package job

import (
	"context"
	"time"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/service"
	"go.uber.org/zap"
)

// Compensator is the part of the account service the retrier needs.
type Compensator interface {
	Compensate(ctx context.Context, consumptionID, reason string) (*models.CreditTransaction, error)
}

// CompensationRetrier gives back credits whose compensation failed while the
// paid action was failing. Compensate is idempotent per consumption, so a
// retry after a lost acknowledgement returns the first compensation.
type CompensationRetrier struct {
	pendingRepo repository.PendingCompensationRepository
	accounts    Compensator
	cfg         RelayConfig
	log         *zap.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewCompensationRetrier(pendingRepo repository.PendingCompensationRepository, accounts Compensator, cfg RelayConfig, log *zap.Logger) *CompensationRetrier {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &CompensationRetrier{
		pendingRepo: pendingRepo,
		accounts:    accounts,
		cfg:         cfg,
		log:         log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (r *CompensationRetrier) Start(ctx context.Context) {
	defer close(r.doneCh)
	r.log.Info("Compensation retrier started", zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			r.log.Info("Compensation retrier stopped")
			return
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

func (r *CompensationRetrier) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// ProcessPending retries one batch and reports how many compensations were
// written.
func (r *CompensationRetrier) ProcessPending(ctx context.Context) int {
	pending, err := r.pendingRepo.GetPending(ctx, r.cfg.BatchSize)
	if err != nil {
		r.log.Error("error get pending compensations", zap.Error(err))
		return 0
	}

	done := 0
	for _, p := range pending {
		if r.retry(ctx, p) {
			done++
		}
	}
	return done
}

func (r *CompensationRetrier) retry(ctx context.Context, p *models.PendingCompensation) bool {
	txn, err := r.accounts.Compensate(ctx, p.ConsumptionID, p.Reason)
	if err == nil {
		if err := r.pendingRepo.MarkDone(ctx, p.ID); err != nil {
			r.log.Error("error mark compensation done", zap.Uint("id", p.ID), zap.Error(err))
			return false
		}
		r.log.Info("Queued compensation applied",
			zap.String("consumption_id", p.ConsumptionID),
			zap.String("transaction_id", txn.ID),
			zap.String("user_id", p.UserID),
		)
		return true
	}

	if permanent(err) {
		if markErr := r.pendingRepo.MarkAsFailed(ctx, p.ID, err.Error()); markErr != nil {
			r.log.Error("error mark compensation failed", zap.Uint("id", p.ID), zap.Error(markErr))
		}
		r.log.Error("Compensation can not be applied",
			zap.String("consumption_id", p.ConsumptionID),
			zap.String("user_id", p.UserID),
			zap.Error(err),
		)
		return false
	}

	r.log.Warn("Compensation retry failed",
		zap.String("consumption_id", p.ConsumptionID),
		zap.Int("attempts", p.Attempts+1),
		zap.Error(err),
	)
	if recErr := r.pendingRepo.RecordAttempt(ctx, p.ID, err.Error()); recErr != nil {
		r.log.Error("error record compensation attempt", zap.Uint("id", p.ID), zap.Error(recErr))
	}
	return false
}

// permanent reports errors a later retry can not fix.
func permanent(err error) bool {
	for _, code := range []string{
		constants.ErrCodeTransactionNotFound,
		constants.ErrCodeInvalidAmount,
		constants.ErrCodeAccountNotFound,
		constants.ErrCodeAccountRetired,
	} {
		if service.IsCode(err, code) {
			return true
		}
	}
	return false
}
