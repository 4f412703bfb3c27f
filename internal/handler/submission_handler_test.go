package handler_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/models"
)

func seedActiveAssignment(t *testing.T, db *gorm.DB, mutate func(*models.Assignment)) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		ClassID:     1,
		Title:       "Essay",
		Description: "Write five hundred words on the assigned topic.",
		Type:        models.AssignmentTypeHomework,
		Status:      models.AssignmentStatusActive,
		DueDate:     time.Now().Add(72 * time.Hour),
		TotalPoints: 100,
	}
	if mutate != nil {
		mutate(&assignment)
	}
	require.NoError(t, db.Create(&assignment).Error)
	require.NoError(t, db.FirstOrCreate(&models.Student{ID: 1, Name: "Dina", Email: "dina@example.com"}).Error)

	return assignment
}

func submitRequest(t *testing.T, assignmentID uint, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", fmt.Sprintf("%d", assignmentID)))
	require.NoError(t, writer.WriteField("student_id", "1"))
	require.NoError(t, writer.WriteField("content", content))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/coursework/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmissionHandlerSubmit(t *testing.T) {
	app, db := setupCourseworkApp(t)
	assignment := seedActiveAssignment(t, db, nil)

	resp, err := app.Test(submitRequest(t, assignment.ID, "My first attempt."))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var created struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, 1, created.Data.Attempt)
	require.False(t, created.Data.Late)
}

func TestSubmissionHandlerResubmitSupersedes(t *testing.T) {
	app, db := setupCourseworkApp(t)
	assignment := seedActiveAssignment(t, db, nil)

	resp, err := app.Test(submitRequest(t, assignment.ID, "First draft."))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = app.Test(submitRequest(t, assignment.ID, "Second draft."))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var second struct {
		Data dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &second)
	require.Equal(t, 2, second.Data.Attempt)

	listResp, err := app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/v1/coursework/submissions?assignment_id=%d&student_id=1", assignment.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)

	var listed struct {
		Data []dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, listResp, &listed)
	require.Len(t, listed.Data, 1)
	require.Equal(t, 2, listed.Data[0].Attempt)
}

func TestSubmissionHandlerClosedAssignment(t *testing.T) {
	app, db := setupCourseworkApp(t)
	assignment := seedActiveAssignment(t, db, func(a *models.Assignment) {
		a.Status = models.AssignmentStatusDraft
	})

	resp, err := app.Test(submitRequest(t, assignment.ID, "Too early."))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestSubmissionHandlerLateRejected(t *testing.T) {
	app, db := setupCourseworkApp(t)
	assignment := seedActiveAssignment(t, db, func(a *models.Assignment) {
		a.DueDate = time.Now().Add(-time.Hour)
		a.LateAllowed = false
	})

	resp, err := app.Test(submitRequest(t, assignment.ID, "Sorry, late."))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}

func TestSubmissionHandlerEmptyBodyRejected(t *testing.T) {
	app, db := setupCourseworkApp(t)
	assignment := seedActiveAssignment(t, db, nil)

	resp, err := app.Test(submitRequest(t, assignment.ID, "   "))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
}
