package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/sefazor/storycredits/internal/app"
	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/job"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/pkg/mq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	fx.New(
		app.EventLogger,
		app.Core,
		fx.Provide(
			NewProducer,
			NewRelay,
			NewCompensationRetrier,
		),
		fx.Invoke(runRelay),
	).Run()
}

func NewProducer(cfg *config.Config) (mq.Producer, error) {
	return mq.NewKafkaProducer(cfg.Kafka.Brokers)
}

func NewRelay(cfg *config.Config, outboxRepo repository.OutboxRepository, producer mq.Producer, logger *zap.Logger) *job.OutboxRelay {
	return job.NewOutboxRelay(outboxRepo, producer, job.RelayConfig{
		Interval:      cfg.Outbox.Interval,
		BatchSize:     cfg.Outbox.BatchSize,
		MaxRetryCount: cfg.Outbox.MaxRetryCount,
	}, logger)
}

// NewCompensationRetrier shares the outbox batch size.
func NewCompensationRetrier(cfg *config.Config, pendingRepo repository.PendingCompensationRepository, accounts service.AccountService, logger *zap.Logger) *job.CompensationRetrier {
	return job.NewCompensationRetrier(pendingRepo, accounts, job.RelayConfig{
		Interval:  cfg.Outbox.CompensationInterval,
		BatchSize: cfg.Outbox.BatchSize,
	}, logger)
}

func runRelay(relay *job.OutboxRelay, retrier *job.CompensationRetrier, producer mq.Producer, cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go relay.Start(context.Background())
			go retrier.Start(context.Background())
			logger.Info("Outbox relay running",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			retrier.Stop()
			relay.Stop()
			return producer.Close()
		},
	})
}
