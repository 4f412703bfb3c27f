package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/repository"
)

func setupSubmissionService(t *testing.T) (*gorm.DB, SubmissionService) {
	t.Helper()

	dsn := fmt.Sprintf("file:submission_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Assignment{}, &models.Submission{}))

	subRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())

	svc := NewSubmissionService(subRepo, assignmentRepo, validate, nil, nil, testLogger())
	if concrete, ok := svc.(*submissionService); ok {
		concrete.now = func() time.Time { return time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC) }
	}

	return db, svc
}

func seedOpenAssignment(t *testing.T, db *gorm.DB, mutate func(*models.Assignment)) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		ClassID:     1,
		Title:       "Lab Report",
		Description: "Write up the experiment results.",
		Type:        models.AssignmentTypeHomework,
		Status:      models.AssignmentStatusActive,
		DueDate:     time.Date(2024, time.January, 12, 23, 59, 0, 0, time.UTC),
		TotalPoints: 100,
	}
	if mutate != nil {
		mutate(&assignment)
	}
	require.NoError(t, db.Create(&assignment).Error)

	var students int64
	require.NoError(t, db.Model(&models.Student{}).Count(&students).Error)
	if students == 0 {
		require.NoError(t, db.Create(&models.Student{Name: "Dina", Email: "dina@example.com"}).Error)
	}

	return assignment
}

func TestSubmissionServiceSubmit(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, nil)

	created, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "My answers are attached below.",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, created.Attempt)
	require.False(t, created.Late)
	require.False(t, created.Superseded)
}

func TestSubmissionServiceResubmitSupersedes(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, nil)

	first, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "First draft.",
	}, nil)
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "Revised draft.",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, second.Attempt)
	require.False(t, second.Superseded)

	var stored models.Submission
	require.NoError(t, db.First(&stored, first.ID).Error)
	require.True(t, stored.Superseded)
}

func TestSubmissionServiceLateNotAllowed(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, func(a *models.Assignment) {
		a.DueDate = time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
		a.LateAllowed = false
	})

	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "Sorry this is late.",
	}, nil)
	require.ErrorIs(t, err, ErrLateNotAllowed)
}

func TestSubmissionServiceLateAllowedMarksLate(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, func(a *models.Assignment) {
		a.DueDate = time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)
		a.LateAllowed = true
	})

	created, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "Better late than never.",
	}, nil)
	require.NoError(t, err)
	require.True(t, created.Late)
}

func TestSubmissionServiceClosedAssignment(t *testing.T) {
	db, svc := setupSubmissionService(t)

	draft := seedOpenAssignment(t, db, func(a *models.Assignment) {
		a.Status = models.AssignmentStatusDraft
	})
	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: draft.ID,
		StudentID:    1,
		Content:      "Too early.",
	}, nil)
	require.ErrorIs(t, err, ErrAssignmentClosed)

	future := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	unpublished := seedOpenAssignment(t, db, func(a *models.Assignment) {
		a.PublishAt = &future
	})
	_, err = svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: unpublished.ID,
		StudentID:    1,
		Content:      "Not visible yet.",
	}, nil)
	require.ErrorIs(t, err, ErrAssignmentClosed)
}

func TestSubmissionServiceRequiresContentOrFile(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, nil)

	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "   ",
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires content or a file")
}

func TestSubmissionServiceSanitizesContent(t *testing.T) {
	db, svc := setupSubmissionService(t)
	assignment := seedOpenAssignment(t, db, nil)

	created, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: assignment.ID,
		StudentID:    1,
		Content:      "<script>alert('x')</script>clean text",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "clean text", created.Content)
}

func TestSubmissionServiceUnknownAssignment(t *testing.T) {
	_, svc := setupSubmissionService(t)

	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{
		AssignmentID: 4242,
		StudentID:    1,
		Content:      "Where does this go?",
	}, nil)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}
