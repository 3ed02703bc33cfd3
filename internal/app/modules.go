// Package app holds the fx wiring shared by the api, relay and creditsctl
// binaries.
package app

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/controller"
	"github.com/sefazor/storycredits/internal/handler"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/router"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/internal/webhook"
	"github.com/sefazor/storycredits/pkg/database"
	"github.com/sefazor/storycredits/pkg/email"
	"github.com/sefazor/storycredits/pkg/generation"
	"github.com/sefazor/storycredits/pkg/payment"
	"github.com/sefazor/storycredits/pkg/storage"
	"github.com/sefazor/storycredits/pkg/utils"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventLogger routes fx's own lifecycle logs through zap.
var EventLogger = fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log}
})

// Core is the ledger: config, database, repositories and the services that
// move credits.
var Core = fx.Options(
	fx.Provide(
		NewLogger,
		config.LoadConfig,
		NewDatabase,
		NewLedgerOptions,

		repository.NewTransactionManager,
		repository.NewAccountRepository,
		repository.NewCreditTransactionRepository,
		repository.NewOutboxRepository,
		repository.NewCustomerLinkRepository,
		repository.NewDeadLetterRepository,
		repository.NewPendingCompensationRepository,

		service.NewCustomerResolver,
		service.NewLedgerService,
		service.NewAccountService,
		NewDeadLetterService,
	),
)

// Payments adds the provider side: price table, Stripe client, webhook
// verification and the payment controller.
var Payments = fx.Options(
	fx.Provide(
		NewPriceTable,
		NewStripeService,
		NewVerifier,
		NewNormalizer,
		NewBillingService,
		NewPaymentController,
	),
)

// HTTP adds story generation, the remaining controllers and the Fiber app.
var HTTP = fx.Options(
	fx.Provide(
		NewGenerator,
		NewSpendService,
		NewStoryService,

		controller.NewCreditController,
		controller.NewAdminController,

		utils.NewValidator,
		handler.NewPaymentHandler,
		handler.NewCreditHandler,
		handler.NewAdminHandler,
		NewHandlers,

		router.NewApp,
	),
	fx.Invoke(StartServer),
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func NewDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return database.NewDatabase(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
}

func NewLedgerOptions(cfg *config.Config) service.LedgerOptions {
	return service.LedgerOptions{
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Ledger.MaxAttempts,
			BaseDelay:   cfg.Ledger.BaseDelay,
			MaxDelay:    cfg.Ledger.MaxDelay,
		},
		Topic: cfg.Kafka.Topic,
	}
}

// NewDeadLetterService wires the optional R2 archive and Resend alerts. A
// disabled side channel is passed as a nil interface.
func NewDeadLetterService(cfg *config.Config, repo repository.DeadLetterRepository, log *zap.Logger) (service.DeadLetterService, error) {
	var archive service.PayloadArchive
	if cfg.R2.Enabled() {
		store, err := storage.NewCloudflareStorage(context.Background(), cfg.R2, cfg.ProviderTimeout)
		if err != nil {
			return nil, err
		}
		archive = store
	} else {
		log.Info("R2 not configured, dead letter payloads stay in the database only")
	}

	var notifier service.DeadLetterNotifier
	if cfg.Email.APIKey != "" && len(cfg.Email.AlertTo) > 0 {
		notifier = email.NewEmailService(cfg.Email, log)
	}

	return service.NewDeadLetterService(repo, archive, notifier, log), nil
}

func NewPriceTable(cfg *config.Config) (*config.PriceTable, error) {
	return config.LoadPriceTable(cfg.PriceTablePath)
}

func NewStripeService(cfg *config.Config) *payment.StripeService {
	return payment.NewStripeService(cfg.Stripe.SecretKey, cfg.ProviderTimeout)
}

func NewVerifier(cfg *config.Config) *webhook.Verifier {
	return webhook.NewVerifier(cfg.Stripe.WebhookTolerance)
}

func NewNormalizer(prices *config.PriceTable, stripeService *payment.StripeService) *webhook.Normalizer {
	return webhook.NewNormalizer(prices, stripeService)
}

func NewBillingService(
	cfg *config.Config,
	stripeService *payment.StripeService,
	prices *config.PriceTable,
	accounts service.AccountService,
	links repository.CustomerLinkRepository,
	log *zap.Logger,
) service.BillingService {
	return service.NewBillingService(stripeService, prices, accounts, links, service.BillingOptions{
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	}, log)
}

func NewPaymentController(
	cfg *config.Config,
	verifier *webhook.Verifier,
	normalizer *webhook.Normalizer,
	ledger service.LedgerService,
	deadLetters service.DeadLetterService,
	billing service.BillingService,
	log *zap.Logger,
) *controller.PaymentController {
	return controller.NewPaymentController(verifier, normalizer, ledger, deadLetters, billing, cfg.Stripe.WebhookSecret, log)
}

func NewGenerator(cfg *config.Config) generation.Generator {
	return generation.NewClient(generation.Config{
		BaseURL: cfg.Generation.URL,
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
		Timeout: cfg.Generation.Timeout,
	})
}

func NewSpendService(cfg *config.Config, accounts service.AccountService, pending repository.PendingCompensationRepository, log *zap.Logger) service.SpendService {
	return service.NewSpendService(accounts, pending, cfg.Generation.Timeout, log)
}

func NewStoryService(cfg *config.Config, spend service.SpendService, generator generation.Generator, log *zap.Logger) service.StoryService {
	return service.NewStoryService(spend, generator, cfg.Generation.StoryCost, log)
}

func NewHandlers(paymentHandler *handler.PaymentHandler, creditHandler *handler.CreditHandler, adminHandler *handler.AdminHandler) router.Handlers {
	return router.Handlers{Payment: paymentHandler, Credit: creditHandler, Admin: adminHandler}
}

func StartServer(app *fiber.App, cfg *config.Config, h router.Handlers, log *zap.Logger, lc fx.Lifecycle) {
	router.Setup(app, cfg, h, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Listen(":" + cfg.Port); err != nil {
					log.Error("Server stopped", zap.Error(err))
				}
			}()
			log.Info("Server listening", zap.String("port", cfg.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
