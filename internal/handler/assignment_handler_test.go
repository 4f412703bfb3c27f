package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/config"
	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/handler"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/repository"
	"github.com/classpulse/classpulse-api/internal/router"
	"github.com/classpulse/classpulse-api/internal/service"
)

type testUploader struct{}

func (t *testUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://example.com/" + name, nil
}

func stubAuth(c *fiber.Ctx) error {
	c.Locals("user_id", uint(1))
	c.Locals("user_role", "teacher")
	return c.Next()
}

func setupCourseworkApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	return setupCourseworkAppWithGuard(t, nil)
}

func setupCourseworkAppWithGuard(t *testing.T, teacherOnly fiber.Handler) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:coursework_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Assignment{}, &models.Submission{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	uploader := &testUploader{}

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	assignmentService := service.NewAssignmentService(assignmentRepo, validate, uploader, nil, nil, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, validate, uploader, nil, logger)

	app := fiber.New()

	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, validate, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, validate, logger),
		JWTMiddleware:     stubAuth,
		TeacherOnly:       teacherOnly,
	})

	return app, db
}

func createAssignmentRequest(t *testing.T, due time.Time) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("class_id", "1"))
	require.NoError(t, writer.WriteField("title", "Data Structures"))
	require.NoError(t, writer.WriteField("description", "Implement heaps and binary search trees."))
	require.NoError(t, writer.WriteField("due_date", due.Format(time.RFC3339)))
	require.NoError(t, writer.WriteField("total_points", "100"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/coursework/assignments", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAssignmentHandlerCreateAndList(t *testing.T) {
	app, _ := setupCourseworkApp(t)

	resp, err := app.Test(createAssignmentRequest(t, time.Now().Add(48*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var createResp struct {
		Success bool                   `json:"success"`
		Data    dto.AssignmentResponse `json:"data"`
		Message string                 `json:"message"`
	}
	decodeResponse(t, resp, &createResp)
	require.True(t, createResp.Success)
	require.Equal(t, "assignment created", createResp.Message)
	require.NotZero(t, createResp.Data.ID)
	require.Equal(t, models.AssignmentStatusDraft, createResp.Data.Status)

	listResp, err := app.Test(httptest.NewRequest("GET", "/api/v1/coursework/assignments?class_id=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)

	var listBody struct {
		Success bool `json:"success"`
		Data    struct {
			Items      []dto.AssignmentResponse `json:"items"`
			Pagination dto.PaginationMeta       `json:"pagination"`
		} `json:"data"`
	}
	decodeResponse(t, listResp, &listBody)
	require.True(t, listBody.Success)
	require.Len(t, listBody.Data.Items, 1)
	require.EqualValues(t, 1, listBody.Data.Pagination.TotalItems)
}

func TestAssignmentHandlerStatusTransitions(t *testing.T) {
	app, _ := setupCourseworkApp(t)

	resp, err := app.Test(createAssignmentRequest(t, time.Now().Add(48*time.Hour)))
	require.NoError(t, err)
	var created struct {
		Data dto.AssignmentResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	statusURL := fmt.Sprintf("/api/v1/coursework/assignments/%d/status", created.Data.ID)

	req := httptest.NewRequest("PATCH", statusURL, strings.NewReader(`{"status":"active"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var activated struct {
		Data dto.AssignmentResponse `json:"data"`
	}
	decodeResponse(t, resp, &activated)
	require.Equal(t, models.AssignmentStatusActive, activated.Data.Status)

	// Completed work cannot go back to draft.
	req = httptest.NewRequest("PATCH", statusURL, strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	req = httptest.NewRequest("PATCH", statusURL, strings.NewReader(`{"status":"draft"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestAssignmentMutationsUseProvidedGuard(t *testing.T) {
	deny := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusForbidden).SendString("forbidden")
	}
	app, _ := setupCourseworkAppWithGuard(t, deny)

	resp, err := app.Test(createAssignmentRequest(t, time.Now().Add(48*time.Hour)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	// Reads stay open to every authenticated user.
	listResp, err := app.Test(httptest.NewRequest("GET", "/api/v1/coursework/assignments?class_id=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)
	require.NoError(t, listResp.Body.Close())
}

func TestAssignmentHandlerGetNotFound(t *testing.T) {
	app, _ := setupCourseworkApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/coursework/assignments/999", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}
