package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/utils"
)

// BatchHandler serves invite sharing and enrolment.
type BatchHandler struct {
	batches    service.BatchService
	dashboards service.DashboardService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewBatchHandler creates a batch handler instance.
func NewBatchHandler(batches service.BatchService, dashboards service.DashboardService, validator *validator.Validate, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		batches:    batches,
		dashboards: dashboards,
		validator:  validator,
		logger:     logger.With().Str("component", "batch_handler").Logger(),
	}
}

// Register binds batch routes under a /devices/:device group. Every route runs
// behind guard.
func (h *BatchHandler) Register(router fiber.Router, guard ...fiber.Handler) {
	router.Post("/batches/join", chain(guard, middleware.RequireRole(models.RoleStudent), h.join)...)
	router.Get("/batches/:id/share", chain(guard, middleware.RequireRole(models.RoleTeacher), h.share)...)
	router.Post("/batches/:id/copy", chain(guard, middleware.RequireRole(models.RoleTeacher), h.copy)...)
}

func (h *BatchHandler) share(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	share, err := h.batches.Share(requestContext(c), identity, c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "batch invite", share)
}

func (h *BatchHandler) copy(c *fiber.Ctx) error {
	var req dto.CopyRequest
	if ok, err := bindBody(c, h.validator, &req); !ok {
		return err
	}

	identity, err := currentIdentity(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	notice, err := h.batches.Copy(requestContext(c), middleware.GetDeviceID(c), identity, c.Params("id"), req.Target)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, notice.Title, notice)
}

func (h *BatchHandler) join(c *fiber.Ctx) error {
	var req dto.JoinBatchRequest
	if ok, err := bindBody(c, h.validator, &req); !ok {
		return err
	}

	identity, err := currentIdentity(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.dashboards.JoinBatch(requestContext(c), identity, req.InviteCode)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.Created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "joined batch", result)
	}
	return utils.SendSuccess(c, "already enrolled", result)
}

func chain(guard []fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guard)+len(handlers))
	out = append(out, guard...)
	return append(out, handlers...)
}
