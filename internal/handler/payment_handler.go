package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/controller"
	"github.com/sefazor/storycredits/internal/middleware"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/webhook"
	"github.com/sefazor/storycredits/pkg/utils"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type PaymentHandler struct {
	paymentController *controller.PaymentController
	validator         *utils.Validator
	log               *zap.Logger
}

func NewPaymentHandler(paymentController *controller.PaymentController, validator *utils.Validator, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentController: paymentController,
		validator:         validator,
		log:               log,
	}
}

// HandleStripeWebhook answers 200 for anything the provider must not send
// again, 400 for deliveries that will never verify or parse, and 500 when
// the event has to be redelivered.
func (h *PaymentHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer once the handler returns
	payload := append([]byte(nil), c.Body()...)

	res, err := h.paymentController.HandleWebhook(c.UserContext(), payload, c.Get(webhook.SignatureHeader))
	if err != nil {
		switch {
		case webhook.IsSignatureError(err):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"received": false,
				"error":    "Webhook signature verification failed",
			})
		case errors.Is(err, webhook.ErrMalformedEnvelope):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"received": false,
				"error":    "Unparsable webhook payload",
			})
		default:
			h.log.Error("Webhook processing failed, asking for redelivery", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"received": false,
				"error":    "Webhook processing failed",
			})
		}
	}

	body := fiber.Map{
		"received": true,
		"event_id": res.EventID,
		"outcome":  res.Outcome,
	}
	if res.TransactionID != "" {
		body["transaction_id"] = res.TransactionID
	}
	if res.DeadLetterID != 0 {
		body["dead_letter_id"] = res.DeadLetterID
	}
	return c.JSON(body)
}

func (h *PaymentHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	var req models.CreateCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	session, err := h.paymentController.CreateCheckoutSession(c.UserContext(), userID, req, c.Get(IdempotencyKeyHeader))
	if err != nil {
		return err
	}

	return c.JSON(models.SuccessResponse(session, "Checkout session created"))
}

func (h *PaymentHandler) GetCreditPackages(c *fiber.Ctx) error {
	return c.JSON(models.SuccessResponse(h.paymentController.GetCreditPackages(), ""))
}

// CreatePortalSession returns the bare {url} body the storefront expects.
func (h *PaymentHandler) CreatePortalSession(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	var req models.PortalSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("customerId and a valid returnUrl are required"))
	}

	session, err := h.paymentController.CreatePortalSession(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(session)
}
