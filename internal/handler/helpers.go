package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/utils"
)

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(c, base)
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// bindBody parses and validates the request body. When it reports false the
// error response has already been written.
func bindBody(c *fiber.Ctx, validate *validator.Validate, target interface{}) (bool, error) {
	if err := c.BodyParser(target); err != nil {
		return false, utils.Fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}
	if err := validate.Struct(target); err != nil {
		return false, utils.Fail(c, fiber.StatusBadRequest, "validation failed", utils.ValidationDetails(err))
	}
	return true, nil
}

// respondError maps service errors onto the response envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", utils.ValidationDetails(err))
	case errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidCapacity),
		errors.Is(err, service.ErrUnknownEvent),
		errors.Is(err, service.ErrUnknownControl),
		errors.Is(err, service.ErrEmptyMessage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotAuthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrControlNotAllowed):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrBatchNotFound), errors.Is(err, service.ErrInviteCodeNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOperationPending),
		errors.Is(err, service.ErrBatchFull),
		errors.Is(err, service.ErrNotInSession),
		errors.Is(err, service.ErrDeviceReset):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg("request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func currentIdentity(c *fiber.Ctx) (models.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return models.Identity{}, service.ErrNotAuthenticated
	}
	return identity, nil
}
