package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/navigator"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/utils"
)

// LiveSessionHandler serves the live session screen of a device.
type LiveSessionHandler struct {
	navigation service.NavigationService
	sessions   service.LiveSessionService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewLiveSessionHandler creates a live session handler instance.
func NewLiveSessionHandler(navigation service.NavigationService, sessions service.LiveSessionService, validator *validator.Validate, logger zerolog.Logger) *LiveSessionHandler {
	return &LiveSessionHandler{
		navigation: navigation,
		sessions:   sessions,
		validator:  validator,
		logger:     logger.With().Str("component", "live_session_handler").Logger(),
	}
}

// Register binds live session routes under a /devices/:device group.
func (h *LiveSessionHandler) Register(router fiber.Router, guard ...fiber.Handler) {
	router.Get("/session", chain(guard, h.view)...)
	router.Post("/session/controls/:control", chain(guard, h.toggle)...)
	router.Get("/session/messages", chain(guard, h.history)...)
	router.Post("/session/messages", chain(guard, middleware.RateLimit("session_chat", 20, time.Minute), h.send)...)
}

// activeSession resolves the session the device navigator is currently in.
func (h *LiveSessionHandler) activeSession(c *fiber.Ctx) (string, error) {
	state := h.navigation.State(requestContext(c), middleware.GetDeviceID(c))
	if state.View != string(navigator.ViewLiveSession) || state.ActiveID == "" {
		return "", service.ErrNotInSession
	}
	return state.ActiveID, nil
}

func (h *LiveSessionHandler) view(c *fiber.Ctx) error {
	sessionID, err := h.activeSession(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.sessions.View(requestContext(c), sessionID, middleware.GetDeviceID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "live session", resp)
}

func (h *LiveSessionHandler) toggle(c *fiber.Ctx) error {
	sessionID, err := h.activeSession(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	controls, err := h.sessions.Toggle(requestContext(c), sessionID, middleware.GetDeviceID(c), c.Params("control"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "control toggled", controls)
}

func (h *LiveSessionHandler) history(c *fiber.Ctx) error {
	sessionID, err := h.activeSession(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.sessions.History(requestContext(c), sessionID, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, messages, "chat history", fiber.Map{"count": len(messages)})
}

func (h *LiveSessionHandler) send(c *fiber.Ctx) error {
	var req dto.SessionChatSendRequest
	if ok, err := bindBody(c, h.validator, &req); !ok {
		return err
	}

	sessionID, err := h.activeSession(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message, err := h.sessions.SendMessage(requestContext(c), sessionID, middleware.GetDeviceID(c), req.Message)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}
