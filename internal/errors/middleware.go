package errors

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/service"
	"go.uber.org/zap"
)

var statusMap = map[string]int{
	constants.ErrCodeInsufficientBalance: fiber.StatusPaymentRequired,
	constants.ErrCodeUnavailable:         fiber.StatusInternalServerError,
	constants.ErrCodeUnknownCustomer:     fiber.StatusUnprocessableEntity,
	constants.ErrCodeUnmatchedRefund:     fiber.StatusUnprocessableEntity,
	constants.ErrCodePartialRefund:       fiber.StatusUnprocessableEntity,
	constants.ErrCodeAccountNotFound:     fiber.StatusNotFound,
	constants.ErrCodeAccountRetired:      fiber.StatusForbidden,
	constants.ErrCodeInvalidAmount:       fiber.StatusBadRequest,
	constants.ErrCodeTransactionNotFound: fiber.StatusNotFound,
	constants.ErrCodeDeadLetterNotFound:  fiber.StatusNotFound,
	constants.ErrCodeDeadLetterClosed:    fiber.StatusConflict,
	constants.ErrCodeUnknownPrice:        fiber.StatusBadRequest,
	constants.ErrCodeCustomerMismatch:    fiber.StatusForbidden,
	constants.ErrCodeProviderFailed:      fiber.StatusInternalServerError,
	constants.ErrCodeProviderTimeout:     fiber.StatusInternalServerError,
	constants.ErrCodeOperationFailed:     fiber.StatusInternalServerError,
	constants.ErrCodeValidationFailed:    fiber.StatusBadRequest,
}

// StatusFor returns the HTTP status used for a service error code.
func StatusFor(code string) int {
	if status, ok := statusMap[code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var serviceErr service.Error
		if errors.As(err, &serviceErr) {
			return handleServiceError(c, log, serviceErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(models.ErrorResponse(fiberErr.Message))
		}

		log.Error("Unhandled request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse("Could not process the request"))
	}
}

func handleServiceError(c *fiber.Ctx, log *zap.Logger, err service.Error) error {
	status := StatusFor(err.Code)
	if status >= fiber.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("code", err.Code),
			zap.Error(err),
		)
	}

	msg := constants.GetErrorMessage(err.Code)
	if err.Code == constants.ErrCodeValidationFailed && err.Cause != nil {
		msg = err.Cause.Error()
	}
	return c.Status(status).JSON(models.CodedErrorResponse(err.Code, msg))
}
