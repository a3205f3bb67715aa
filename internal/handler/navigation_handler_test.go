package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/handler"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/storage"
)

type mockNavigationService struct {
	state       dto.NavigatorStateResponse
	loginResp   dto.LoginResponse
	loginErr    error
	lastRole    models.Role
	dispatchErr error
	lastEvent   dto.NavigationEventRequest
	submitResp  dto.BatchSubmitResponse
	submitErr   error
	resetDevice string
}

func (m *mockNavigationService) State(_ context.Context, deviceID string) dto.NavigatorStateResponse {
	state := m.state
	state.DeviceID = deviceID
	return state
}

func (m *mockNavigationService) Login(_ context.Context, _ string, role models.Role) (dto.LoginResponse, error) {
	m.lastRole = role
	return m.loginResp, m.loginErr
}

func (m *mockNavigationService) Dispatch(_ context.Context, _ string, req dto.NavigationEventRequest) (dto.NavigationResult, error) {
	m.lastEvent = req
	if m.dispatchErr != nil {
		return dto.NavigationResult{}, m.dispatchErr
	}
	return dto.NavigationResult{Applied: true, State: m.state}, nil
}

func (m *mockNavigationService) SubmitBatch(context.Context, string, dto.BatchCreateRequest) (dto.BatchSubmitResponse, error) {
	return m.submitResp, m.submitErr
}

func (m *mockNavigationService) Identity(string) (models.Identity, error) {
	if m.state.Identity == nil {
		return models.Identity{}, service.ErrNotAuthenticated
	}
	return *m.state.Identity, nil
}

func (m *mockNavigationService) Subscribe(context.Context, string) (<-chan dto.NavigatorStateResponse, func()) {
	ch := make(chan dto.NavigatorStateResponse, 1)
	ch <- m.state
	return ch, func() {}
}

func (m *mockNavigationService) Reset(_ context.Context, deviceID string) error {
	m.resetDevice = deviceID
	return nil
}

func newNavigationApp(svc service.NavigationService) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	devices := app.Group("/api/v1/devices/:device", middleware.DeviceScope())
	handler.NewNavigationHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard)).Register(devices)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

func decodeBody[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var out envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNavigationHandler_State(t *testing.T) {
	svc := &mockNavigationService{state: dto.NavigatorStateResponse{View: "auth"}}
	resp := doJSON(t, newNavigationApp(svc), http.MethodGet, "/api/v1/devices/tablet-1/state", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody[dto.NavigatorStateResponse](t, resp)
	require.True(t, body.Success)
	require.Equal(t, "tablet-1", body.Data.DeviceID)
	require.Equal(t, "auth", body.Data.View)
}

func TestNavigationHandler_LoginSuccess(t *testing.T) {
	identity := models.Identity{ID: "abc123xyz", Name: "Sarah Johnson", Role: models.RoleTeacher}
	svc := &mockNavigationService{loginResp: dto.LoginResponse{
		NavigationResult: dto.NavigationResult{Applied: true, State: dto.NavigatorStateResponse{View: "teacher-dashboard", Identity: &identity}},
		Token:            "signed",
	}}

	resp := doJSON(t, newNavigationApp(svc), http.MethodPost, "/api/v1/devices/tablet-1/auth/login", map[string]string{"role": "teacher"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, models.RoleTeacher, svc.lastRole)

	body := decodeBody[dto.LoginResponse](t, resp)
	require.Equal(t, "transition applied", body.Message)
	require.Equal(t, "signed", body.Data.Token)
	require.Equal(t, "teacher-dashboard", body.Data.State.View)
}

func TestNavigationHandler_LoginValidation(t *testing.T) {
	svc := &mockNavigationService{}
	resp := doJSON(t, newNavigationApp(svc), http.MethodPost, "/api/v1/devices/tablet-1/auth/login", map[string]string{"role": "admin"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody[json.RawMessage](t, resp)
	require.False(t, body.Success)
	require.Equal(t, "oneof=teacher student", body.Details["role"])
}

func TestNavigationHandler_LoginPending(t *testing.T) {
	svc := &mockNavigationService{loginErr: service.ErrOperationPending}
	resp := doJSON(t, newNavigationApp(svc), http.MethodPost, "/api/v1/devices/tablet-1/auth/login", map[string]string{"role": "student"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestNavigationHandler_LoginInterruptedByReset(t *testing.T) {
	svc := &mockNavigationService{loginErr: service.ErrDeviceReset}
	resp := doJSON(t, newNavigationApp(svc), http.MethodPost, "/api/v1/devices/tablet-1/auth/login", map[string]string{"role": "teacher"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, service.ErrDeviceReset.Error(), decodeBody[json.RawMessage](t, resp).Message)
}

func TestNavigationHandler_DispatchEvents(t *testing.T) {
	svc := &mockNavigationService{state: dto.NavigatorStateResponse{View: "live-session", ActiveID: "batch0001"}}
	app := newNavigationApp(svc)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/events", map[string]string{"type": "startLiveSession", "batch_id": "batch0001"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "batch0001", svc.lastEvent.BatchID)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/events", map[string]string{"type": "batchCreated"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	svc.dispatchErr = errors.New("registry offline")
	resp = doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/events", map[string]string{"type": "back"})
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestNavigationHandler_SubmitBatch(t *testing.T) {
	created := dto.BatchResponse{ID: "batch0001", Name: "Physics", InviteCode: "K7P2QX"}
	svc := &mockNavigationService{submitResp: dto.BatchSubmitResponse{
		NavigationResult: dto.NavigationResult{Applied: true},
		Batch:            &created,
	}}
	app := newNavigationApp(svc)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/batches", map[string]string{"name": "Physics", "subject": "Physics", "grade": "11"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decodeBody[dto.BatchSubmitResponse](t, resp)
	require.Equal(t, "K7P2QX", body.Data.Batch.InviteCode)

	svc.submitResp = dto.BatchSubmitResponse{}
	resp = doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/batches", map[string]string{"name": "Physics", "subject": "Physics", "grade": "11"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "event ignored", decodeBody[json.RawMessage](t, resp).Message)

	svc.submitErr = service.ErrInvalidCapacity
	resp = doJSON(t, app, http.MethodPost, "/api/v1/devices/tablet-1/batches", map[string]string{"name": "Physics", "capacity": "0"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNavigationHandler_ResetAndDeviceValidation(t *testing.T) {
	svc := &mockNavigationService{}
	app := newNavigationApp(svc)

	resp := doJSON(t, app, http.MethodDelete, "/api/v1/devices/tablet-1", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, "tablet-1", svc.resetDevice)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/devices/"+strings.Repeat("x", 65)+"/state", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNavigationHandler_StreamRequiresUpgrade(t *testing.T) {
	resp := doJSON(t, newNavigationApp(&mockNavigationService{}), http.MethodGet, "/api/v1/devices/tablet-1/stream", nil)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

type noopAuth struct{}

func (noopAuth) Authenticate(_ context.Context, role models.Role) (service.AuthResult, error) {
	return service.AuthResult{Identity: models.Identity{ID: "abc123xyz", Name: "Alex Smith", Role: role}, Token: "token"}, nil
}

func TestNavigationHandler_StreamPushesSnapshots(t *testing.T) {
	nav := service.NewNavigationService(service.NavigationDeps{
		Storage:    storage.NewMemory(),
		PersistKey: "root",
		Auth:       noopAuth{},
	}, zerolog.Nop())

	baseURL, shutdown := startFiberServer(t, newNavigationApp(nav))
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/devices/tablet-1/stream"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var first dto.NavigatorStateResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "auth", first.View)

	_, err = nav.Login(context.Background(), "tablet-1", models.RoleStudent)
	require.NoError(t, err)

	for {
		var snapshot dto.NavigatorStateResponse
		require.NoError(t, conn.ReadJSON(&snapshot))
		if snapshot.View == "student-dashboard" {
			require.Equal(t, "abc123xyz", snapshot.Identity.ID)
			break
		}
	}

	require.NoError(t, nav.Reset(context.Background(), "tablet-1"))
	for {
		var snapshot dto.NavigatorStateResponse
		if err := conn.ReadJSON(&snapshot); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
			break
		}
	}
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
