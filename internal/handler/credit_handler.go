package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/controller"
	"github.com/sefazor/storycredits/internal/middleware"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/pkg/generation"
	"github.com/sefazor/storycredits/pkg/utils"
)

// GenerationKeyHeader lets a user bring their own provider key for a single
// request. The server key is used otherwise.
const GenerationKeyHeader = "X-Generation-Key"

type CreditHandler struct {
	creditController *controller.CreditController
	validator        *utils.Validator
}

func NewCreditHandler(creditController *controller.CreditController, validator *utils.Validator) *CreditHandler {
	return &CreditHandler{
		creditController: creditController,
		validator:        validator,
	}
}

func (h *CreditHandler) GetBalance(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	balance, err := h.creditController.GetBalance(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(balance, ""))
}

func (h *CreditHandler) GetTransactions(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	txns, err := h.creditController.GetTransactions(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(txns, ""))
}

func (h *CreditHandler) GenerateStory(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	var req generation.StoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	result, err := h.creditController.GenerateStory(c.UserContext(), userID, req, c.Get(GenerationKeyHeader))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(result, "Story generated"))
}
