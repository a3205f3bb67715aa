package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educlass-api/internal/config"
	"github.com/noah-isme/educlass-api/internal/database"
	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/handler"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/repository"
	"github.com/noah-isme/educlass-api/internal/router"
	"github.com/noah-isme/educlass-api/internal/service"
	"github.com/noah-isme/educlass-api/internal/storage"
)

const testSecret = "integration-secret"

type apiResponse[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path string, body interface{}) *http.Response {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) apiResponse[T] {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse[T]
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func setupClassroomApp(t *testing.T) (*fiber.App, storage.KeyValue) {
	t.Helper()

	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	kv := storage.NewMemory()

	batchRepo := repository.NewBatchRepository(db)
	chatRepo := repository.NewSessionChatRepository(db)

	authService := service.NewAuthService(testSecret, time.Hour, 0, logger)
	batchService := service.NewBatchService(batchRepo, validate, service.NewStorageClipboard(kv), 0, logger)
	liveService := service.NewLiveSessionService(batchRepo, chatRepo, logger)
	dashboardService := service.NewDashboardService(batchRepo, liveService, nil, 0, logger)
	navigationService := service.NewNavigationService(service.NavigationDeps{
		Storage:    kv,
		PersistKey: "root",
		Registry:   batchRepo,
		Auth:       authService,
		Batches:    batchService,
		Dashboards: dashboardService,
		Live:       liveService,
	}, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: testSecret}, router.Dependencies{
		NavigationHandler:  handler.NewNavigationHandler(navigationService, validate, logger),
		BatchHandler:       handler.NewBatchHandler(batchService, dashboardService, validate, logger),
		DashboardHandler:   handler.NewDashboardHandler(dashboardService, logger),
		LiveSessionHandler: handler.NewLiveSessionHandler(navigationService, liveService, validate, logger),
		Identities:         navigationService,
	})

	return app, kv
}

func login(t *testing.T, c *client, device, role string) dto.LoginResponse {
	t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/devices/"+device+"/auth/login", map[string]string{"role": role})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[dto.LoginResponse](t, resp)
	require.True(t, body.Data.Applied)
	require.NotEmpty(t, body.Data.Token)
	c.token = body.Data.Token
	return body.Data
}

func dispatch(t *testing.T, c *client, device string, event map[string]string) dto.NavigationResult {
	t.Helper()
	resp := c.do(http.MethodPost, "/api/v1/devices/"+device+"/events", event)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decode[dto.NavigationResult](t, resp).Data
}

func TestClassroomEndToEndFlow(t *testing.T) {
	app, kv := setupClassroomApp(t)
	teacher := &client{t: t, app: app}
	student := &client{t: t, app: app}

	// Teacher signs in and lands on an empty dashboard.
	teacherLogin := login(t, teacher, "teacher-tab", "teacher")
	require.Equal(t, "teacher-dashboard", teacherLogin.State.View)
	require.True(t, teacherLogin.State.Auth.IsAuthenticated)

	resp := teacher.do(http.MethodGet, "/api/v1/devices/teacher-tab/dashboard/teacher", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	dashboard := decode[dto.TeacherDashboardResponse](t, resp).Data
	require.Equal(t, "Welcome back, Sarah Johnson", dashboard.Greeting)
	require.Empty(t, dashboard.Batches)

	// Batch form: validation first, then a successful submit.
	require.Equal(t, "batch-creation", dispatch(t, teacher, "teacher-tab", map[string]string{"type": "createBatch"}).State.View)

	resp = teacher.do(http.MethodPost, "/api/v1/devices/teacher-tab/batches", map[string]string{"name": "Physics 11"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decode[json.RawMessage](t, resp).Details, "subject")

	resp = teacher.do(http.MethodPost, "/api/v1/devices/teacher-tab/batches", map[string]string{
		"name": "Physics 11", "subject": "Physics", "grade": "11", "capacity": "2",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	submitted := decode[dto.BatchSubmitResponse](t, resp).Data
	require.Equal(t, "teacher-dashboard", submitted.State.View)
	require.NotNil(t, submitted.Batch)
	require.Len(t, submitted.Batch.InviteCode, 6)
	require.Equal(t, "\"Physics 11\" is ready for students to join.", submitted.Toast.Description)
	batchID := submitted.Batch.ID
	code := submitted.Batch.InviteCode

	// Share redisplays the same code and copy lands on the device clipboard.
	resp = teacher.do(http.MethodGet, "/api/v1/devices/teacher-tab/batches/"+batchID+"/share", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	share := decode[dto.BatchShareResponse](t, resp).Data
	require.Equal(t, code, share.InviteCode)
	require.True(t, strings.HasPrefix(share.ShareLink, "https://wa.me/?text="))

	resp = teacher.do(http.MethodPost, "/api/v1/devices/teacher-tab/batches/"+batchID+"/copy", map[string]string{"target": "code"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Copied!", decode[dto.Notice](t, resp).Data.Title)

	clipboard, err := storage.WithPrefix(kv, "teacher-tab").Get(t.Context(), "clipboard")
	require.NoError(t, err)
	require.Equal(t, code, clipboard)

	// Student joins with a lowercase code; a repeat join is idempotent.
	login(t, student, "student-tab", "student")
	resp = student.do(http.MethodPost, "/api/v1/devices/student-tab/batches/join", map[string]string{"invite_code": " " + strings.ToLower(code) + " "})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = student.do(http.MethodPost, "/api/v1/devices/student-tab/batches/join", map[string]string{"invite_code": code})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = student.do(http.MethodGet, "/api/v1/devices/student-tab/dashboard/student", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	studentDashboard := decode[dto.StudentDashboardResponse](t, resp).Data
	require.Equal(t, "Welcome, Alex Smith", studentDashboard.Greeting)
	require.Len(t, studentDashboard.Batches, 1)
	require.False(t, studentDashboard.Batches[0].IsLive)

	// Teacher goes live; the student sees it and joins.
	live := dispatch(t, teacher, "teacher-tab", map[string]string{"type": "startLiveSession", "batch_id": batchID})
	require.Equal(t, "live-session", live.State.View)

	resp = student.do(http.MethodGet, "/api/v1/devices/student-tab/dashboard/student", nil)
	require.True(t, decode[dto.StudentDashboardResponse](t, resp).Data.Batches[0].IsLive)

	joined := dispatch(t, student, "student-tab", map[string]string{"type": "joinLiveSession", "session_id": batchID})
	require.Equal(t, batchID, joined.State.ActiveID)

	resp = student.do(http.MethodGet, "/api/v1/devices/student-tab/session", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	session := decode[dto.LiveSessionResponse](t, resp).Data
	require.Equal(t, "Physics 11", session.Title)
	require.Len(t, session.Participants, 2)
	require.Equal(t, "teacher", string(session.Participants[0].Role))

	resp = student.do(http.MethodPost, "/api/v1/devices/student-tab/session/controls/screen", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = student.do(http.MethodPost, "/api/v1/devices/student-tab/session/messages", map[string]string{"message": "Good morning!"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = teacher.do(http.MethodGet, "/api/v1/devices/teacher-tab/session/messages", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	history := decode[[]dto.SessionChatMessageResponse](t, resp).Data
	require.Len(t, history, 1)
	require.Equal(t, "Alex Smith", history[0].Sender)
	require.False(t, history[0].IsTeacher)

	// Leaving returns each device to its dashboard.
	require.Equal(t, "student-dashboard", dispatch(t, student, "student-tab", map[string]string{"type": "leave"}).State.View)
	require.Equal(t, "teacher-dashboard", dispatch(t, teacher, "teacher-tab", map[string]string{"type": "leave"}).State.View)

	resp = teacher.do(http.MethodGet, "/api/v1/devices/teacher-tab/dashboard/teacher", nil)
	dashboard = decode[dto.TeacherDashboardResponse](t, resp).Data
	require.Equal(t, 1, dashboard.Stats.TotalBatches)
	require.Equal(t, 1, dashboard.Stats.TotalStudents)
	require.Equal(t, 0, dashboard.Stats.LiveSessions)
}

func TestTokensAreBoundToTheirDevice(t *testing.T) {
	app, _ := setupClassroomApp(t)
	teacher := &client{t: t, app: app}
	student := &client{t: t, app: app}

	login(t, teacher, "teacher-tab", "teacher")
	login(t, student, "student-tab", "student")

	anonymous := &client{t: t, app: app}
	resp := anonymous.do(http.MethodGet, "/api/v1/devices/teacher-tab/dashboard/teacher", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = teacher.do(http.MethodGet, "/api/v1/devices/student-tab/dashboard/student", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = student.do(http.MethodGet, "/api/v1/devices/student-tab/dashboard/teacher", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = student.do(http.MethodDelete, "/api/v1/devices/student-tab", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = student.do(http.MethodGet, "/api/v1/devices/student-tab/dashboard/student", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	state := anonymous.do(http.MethodGet, "/api/v1/devices/student-tab/state", nil)
	require.Equal(t, "auth", decode[dto.NavigatorStateResponse](t, state).Data.View)
}

func TestJoinRejectsFullAndUnknownBatches(t *testing.T) {
	app, _ := setupClassroomApp(t)
	teacher := &client{t: t, app: app}

	login(t, teacher, "teacher-tab", "teacher")
	dispatch(t, teacher, "teacher-tab", map[string]string{"type": "createBatch"})
	resp := teacher.do(http.MethodPost, "/api/v1/devices/teacher-tab/batches", map[string]string{
		"name": "Tiny", "subject": "Art", "grade": "9", "capacity": "1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	code := decode[dto.BatchSubmitResponse](t, resp).Data.Batch.InviteCode

	first := &client{t: t, app: app}
	login(t, first, "student-a", "student")
	resp = first.do(http.MethodPost, "/api/v1/devices/student-a/batches/join", map[string]string{"invite_code": code})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	second := &client{t: t, app: app}
	login(t, second, "student-b", "student")
	resp = second.do(http.MethodPost, "/api/v1/devices/student-b/batches/join", map[string]string{"invite_code": code})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = second.do(http.MethodPost, "/api/v1/devices/student-b/batches/join", map[string]string{"invite_code": "NOPE00"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
