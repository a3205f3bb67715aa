package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/utils"
)

// DashboardHandler renders the teacher and student dashboards.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler creates a dashboard handler instance.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register binds dashboard routes under a /devices/:device group.
func (h *DashboardHandler) Register(router fiber.Router, guard ...fiber.Handler) {
	router.Get("/dashboard/teacher", chain(guard, middleware.RequireRole(models.RoleTeacher), h.teacher)...)
	router.Get("/dashboard/student", chain(guard, middleware.RequireRole(models.RoleStudent), h.student)...)
}

func (h *DashboardHandler) teacher(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.service.Teacher(requestContext(c), identity)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "teacher dashboard", resp)
}

func (h *DashboardHandler) student(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.service.Student(requestContext(c), identity, c.Query("q"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, resp, "student dashboard", fiber.Map{"materials": len(resp.Materials)})
}
