package job

import (
	"context"
	"time"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/pkg/mq"
	"go.uber.org/zap"
)

type RelayConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetryCount int
}

// OutboxRelay publishes committed ledger changes to the broker. A message is
// marked SENT only after the broker acknowledged it, so delivery is at least
// once; consumers dedupe on transaction_id.
type OutboxRelay struct {
	outboxRepo repository.OutboxRepository
	producer   mq.Producer
	cfg        RelayConfig
	log        *zap.Logger
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewOutboxRelay(outboxRepo repository.OutboxRepository, producer mq.Producer, cfg RelayConfig, log *zap.Logger) *OutboxRelay {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = 5
	}
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		producer:   producer,
		cfg:        cfg,
		log:        log,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	defer close(r.doneCh)
	r.log.Info("Outbox relay started", zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopping", zap.Error(ctx.Err()))
			return
		case <-r.stopCh:
			r.log.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

// Stop ends the loop and waits for the batch in flight.
func (r *OutboxRelay) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// ProcessPending sends one batch and reports how many messages went out.
// Once a message fails, later messages with the same key wait for the next
// pass so a key's changes reach the broker in commit order.
func (r *OutboxRelay) ProcessPending(ctx context.Context) int {
	messages, err := r.outboxRepo.GetPendingMessages(ctx, r.cfg.BatchSize)
	if err != nil {
		r.log.Error("error get pending outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	blocked := make(map[string]bool)
	for _, msg := range messages {
		if blocked[msg.MessageKey] {
			continue
		}
		if r.send(ctx, msg) {
			sent++
		} else {
			blocked[msg.MessageKey] = true
		}
	}
	return sent
}

func (r *OutboxRelay) send(ctx context.Context, msg *models.OutboxMessage) bool {
	err := r.producer.Send(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := r.outboxRepo.UpdateStatus(ctx, msg.ID, models.OutboxStatusSent); updateErr != nil {
			r.log.Error("error mark outbox message sent", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		r.log.Debug("Outbox message sent",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
		)
		return true
	}

	r.log.Warn("Outbox message send failed", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if err := r.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		r.log.Error("error increment outbox retry count", zap.Int64("id", msg.ID), zap.Error(err))
	}

	if msg.RetryCount+1 >= r.cfg.MaxRetryCount {
		if err := r.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			r.log.Error("error mark outbox message failed", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			r.log.Error("Outbox message gave up after max retries",
				zap.Int64("id", msg.ID),
				zap.String("key", msg.MessageKey),
			)
		}
	}
	return false
}
