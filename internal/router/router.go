package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis"
	"github.com/sefazor/storycredits/internal/config"
	apperrors "github.com/sefazor/storycredits/internal/errors"
	"github.com/sefazor/storycredits/internal/handler"
	"github.com/sefazor/storycredits/internal/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Payment *handler.PaymentHandler
	Credit  *handler.CreditHandler
	Admin   *handler.AdminHandler
}

func NewApp(log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "storycredits",
		ErrorHandler: apperrors.ErrorHandler(log),
		BodyLimit:    1 << 20,
	})
}

// limiterStorage shares rate limit counters between replicas when Redis is
// configured; otherwise the limiter keeps them in memory.
func limiterStorage(cfg config.RedisConfig) fiber.Storage {
	if cfg.Host == "" {
		return nil
	}
	return redis.New(redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.Database,
		Reset:    false,
	})
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers, log *zap.Logger) {
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Generation-Key",
		AllowMethods:     "GET, POST",
		AllowCredentials: true,
	}))
	app.Use(logger.New())

	api := app.Group("/api")

	// Provider webhooks are not rate limited: a throttled delivery is a
	// redelivery later.
	api.All("/payments/webhook", middleware.AllowMethods(fiber.MethodPost), h.Payment.HandleStripeWebhook)

	api.Get("/payments/packages", h.Payment.GetCreditPackages)

	// Admin routes are registered ahead of the limiter and are not rate
	// limited.
	admin := api.Group("/admin", middleware.AdminMiddleware(cfg.AdminKeyHash, log))
	admin.Get("/dead-letters", h.Admin.ListDeadLetters)
	admin.Get("/dead-letters/:id", h.Admin.GetDeadLetter)
	admin.Post("/dead-letters/:id/resolve", h.Admin.ResolveDeadLetter)
	admin.Post("/dead-letters/:id/replay", h.Admin.ReplayDeadLetter)
	admin.Post("/adjustments", h.Admin.Adjust)
	admin.Get("/accounts/:userId/audit", h.Admin.Audit)
	admin.Post("/accounts/:userId/retire", h.Admin.RetireAccount)
	admin.Post("/customer-links", h.Admin.LinkCustomer)

	limited := api.Group("", limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage(cfg.Redis),
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	auth := middleware.AuthMiddleware(cfg.JWTSecret, log)

	limited.All("/billing/portal", middleware.AllowMethods(fiber.MethodPost), auth, h.Payment.CreatePortalSession)

	payments := limited.Group("/payments", auth)
	payments.Post("/checkout", h.Payment.CreateCheckoutSession)

	credits := limited.Group("/credits", auth)
	credits.Get("/balance", h.Credit.GetBalance)
	credits.Get("/transactions", h.Credit.GetTransactions)

	stories := limited.Group("/stories", auth)
	stories.Post("/generate", h.Credit.GenerateStory)
}
