package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/controller"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/pkg/utils"
)

type AdminHandler struct {
	adminController *controller.AdminController
	validator       *utils.Validator
}

func NewAdminHandler(adminController *controller.AdminController, validator *utils.Validator) *AdminHandler {
	return &AdminHandler{
		adminController: adminController,
		validator:       validator,
	}
}

func (h *AdminHandler) ListDeadLetters(c *fiber.Ctx) error {
	status := models.DeadLetterStatus(c.Query("status", string(models.DeadLetterStatusOpen)))
	switch status {
	case models.DeadLetterStatusOpen, models.DeadLetterStatusResolved, models.DeadLetterStatusReplayed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid status"))
	}

	letters, err := h.adminController.ListDeadLetters(c.UserContext(), status, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(letters, ""))
}

func (h *AdminHandler) GetDeadLetter(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid dead letter ID"))
	}

	letter, err := h.adminController.GetDeadLetter(c.UserContext(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(letter, ""))
}

func (h *AdminHandler) ResolveDeadLetter(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid dead letter ID"))
	}

	var req models.ResolveDeadLetterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	letter, err := h.adminController.ResolveDeadLetter(c.UserContext(), uint(id), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(letter, "Dead letter resolved"))
}

func (h *AdminHandler) ReplayDeadLetter(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid dead letter ID"))
	}

	result, err := h.adminController.ReplayDeadLetter(c.UserContext(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(result, ""))
}

func (h *AdminHandler) Adjust(c *fiber.Ctx) error {
	var req models.AdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	txn, err := h.adminController.Adjust(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(txn, "Adjustment recorded"))
}

func (h *AdminHandler) Audit(c *fiber.Ctx) error {
	report, err := h.adminController.Audit(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(report, ""))
}

func (h *AdminHandler) RetireAccount(c *fiber.Ctx) error {
	if err := h.adminController.RetireAccount(c.UserContext(), c.Params("userId")); err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(nil, "Account retired"))
}

func (h *AdminHandler) LinkCustomer(c *fiber.Ctx) error {
	var req models.CustomerLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	}

	link, err := h.adminController.LinkCustomer(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(models.SuccessResponse(link, "Customer linked"))
}
