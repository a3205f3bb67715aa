package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/utils"
)

const streamPingInterval = 30 * time.Second

// NavigationHandler exposes the device navigation shell.
type NavigationHandler struct {
	service   service.NavigationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewNavigationHandler creates a navigation handler instance.
func NewNavigationHandler(service service.NavigationService, validator *validator.Validate, logger zerolog.Logger) *NavigationHandler {
	return &NavigationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "navigation_handler").Logger(),
	}
}

// Register binds navigation routes under a /devices/:device group.
func (h *NavigationHandler) Register(router fiber.Router) {
	router.Get("/state", h.state)
	router.Delete("/", h.reset)
	router.Post("/auth/login", h.login)
	router.Post("/events", h.dispatch)
	router.Post("/batches", h.submitBatch)

	router.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/stream", websocket.New(h.stream))
}

func (h *NavigationHandler) state(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "navigator state", h.service.State(requestContext(c), middleware.GetDeviceID(c)))
}

func (h *NavigationHandler) reset(c *fiber.Ctx) error {
	if err := h.service.Reset(requestContext(c), middleware.GetDeviceID(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NavigationHandler) login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if ok, err := bindBody(c, h.validator, &req); !ok {
		return err
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Login(requestContext(c), middleware.GetDeviceID(c), role)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, navigationMessage(result.Applied), result)
}

func (h *NavigationHandler) dispatch(c *fiber.Ctx) error {
	var req dto.NavigationEventRequest
	if ok, err := bindBody(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Dispatch(requestContext(c), middleware.GetDeviceID(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, navigationMessage(result.Applied), result)
}

func (h *NavigationHandler) submitBatch(c *fiber.Ctx) error {
	var form dto.BatchCreateRequest
	if err := c.BodyParser(&form); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", nil)
	}

	result, err := h.service.SubmitBatch(requestContext(c), middleware.GetDeviceID(c), form)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if result.Applied {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "batch created", result)
	}
	return utils.SendSuccess(c, navigationMessage(false), result)
}

// stream pushes a state snapshot after every change until either side closes.
func (h *NavigationHandler) stream(conn *websocket.Conn) {
	deviceID, _ := conn.Locals("device_id").(string)
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().Str("device_id", deviceID).Logger()

	snapshots, cancel := h.service.Subscribe(ctx, deviceID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	logger.Info().Msg("state stream connected")
	defer logger.Info().Msg("state stream disconnected")

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "device reset"))
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func navigationMessage(applied bool) string {
	if applied {
		return "transition applied"
	}
	return "event ignored"
}
