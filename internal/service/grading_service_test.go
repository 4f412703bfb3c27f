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

type stubInvalidator struct {
	calls [][2]uint
}

func (s *stubInvalidator) Invalidate(_ context.Context, classID, studentID uint) {
	s.calls = append(s.calls, [2]uint{classID, studentID})
}

type gradingFixture struct {
	db          *gorm.DB
	svc         GradingService
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	activity    *stubActivityRecorder
	invalidator *stubInvalidator
}

func setupGradingService(t *testing.T) gradingFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:grading_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Assignment{}, &models.Submission{}, &models.Grade{}, &models.GradeAuditEntry{}))

	grades := repository.NewGradeRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())
	activity := &stubActivityRecorder{}
	invalidator := &stubInvalidator{}

	svc := NewGradingService(grades, assignments, submissions, validate, activity, nil, invalidator, testLogger())
	if concrete, ok := svc.(*gradingService); ok {
		concrete.now = func() time.Time { return time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC) }
	}

	return gradingFixture{
		db:          db,
		svc:         svc,
		grades:      grades,
		submissions: submissions,
		activity:    activity,
		invalidator: invalidator,
	}
}

func seedGradableAssignment(t *testing.T, db *gorm.DB, mutate func(*models.Assignment)) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		ClassID:     3,
		CategoryID:  9,
		Title:       "Unit Test Quiz",
		Description: "Ten questions on unit conversions.",
		Type:        models.AssignmentTypeQuiz,
		Status:      models.AssignmentStatusActive,
		DueDate:     time.Date(2024, time.January, 5, 23, 59, 0, 0, time.UTC),
		TotalPoints: 50,
	}
	if mutate != nil {
		mutate(&assignment)
	}
	require.NoError(t, db.Create(&assignment).Error)

	return assignment
}

func TestGradingServiceAssignCreatesGrade(t *testing.T) {
	f := setupGradingService(t)
	assignment := seedGradableAssignment(t, f.db, nil)
	actor := ActivityActor{ID: 20, Role: "teacher"}

	graded, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 42,
		Feedback:     "  Solid work  ",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, models.GradeStatusGraded, graded.Status)
	require.Equal(t, 42.0, graded.PointsEarned)
	require.Equal(t, assignment.TotalPoints, graded.PointsPossible)
	require.Equal(t, assignment.CategoryID, graded.CategoryID)
	require.Equal(t, "Solid work", graded.Feedback)
	require.InDelta(t, 84.0, graded.Percent, 0.001)
	require.NotNil(t, graded.GradedBy)
	require.Equal(t, actor.ID, *graded.GradedBy)

	require.Len(t, f.invalidator.calls, 1)
	require.Equal(t, [2]uint{assignment.ClassID, 4}, f.invalidator.calls[0])

	require.Len(t, f.activity.entries, 1)
	require.Equal(t, "grade.assigned", f.activity.entries[0].Action)
}

func TestGradingServiceRejectsScoreAboveMax(t *testing.T) {
	f := setupGradingService(t)
	assignment := seedGradableAssignment(t, f.db, nil)

	_, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 51,
	}, ActivityActor{ID: 20, Role: "teacher"})
	require.ErrorIs(t, err, ErrScoreExceedsMax)

	var count int64
	require.NoError(t, f.db.Model(&models.Grade{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGradingServiceRegradeWritesAudit(t *testing.T) {
	f := setupGradingService(t)
	assignment := seedGradableAssignment(t, f.db, nil)
	actor := ActivityActor{ID: 20, Role: "teacher"}

	first, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 30,
		Feedback:     "Needs revision",
	}, actor)
	require.NoError(t, err)

	second, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 45,
		Feedback:     "Much better",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 45.0, second.PointsEarned)

	trail, err := f.svc.Audit(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	require.Equal(t, 30.0, trail[0].PrevPointsEarned)
	require.Equal(t, "Needs revision", trail[0].PrevFeedback)
	require.Equal(t, models.GradeStatusGraded, trail[0].PrevStatus)
	require.Equal(t, actor.ID, trail[0].ChangedBy)

	require.Len(t, f.invalidator.calls, 2)
}

func TestGradingServiceLatePenalty(t *testing.T) {
	f := setupGradingService(t)
	assignment := seedGradableAssignment(t, f.db, func(a *models.Assignment) {
		a.LateAllowed = true
		a.LatePenaltyPerDay = 10
	})

	// Submitted a day and a half past the deadline: two chargeable days.
	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    4,
		Content:      "late work",
		SubmittedAt:  time.Date(2024, time.January, 7, 12, 0, 0, 0, time.UTC),
		Late:         true,
	}
	require.NoError(t, f.submissions.CreateAttempt(context.Background(), &submission))

	graded, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 50,
	}, ActivityActor{ID: 20, Role: "teacher"})
	require.NoError(t, err)
	require.InDelta(t, 40.0, graded.PointsEarned, 0.001)
	require.NotNil(t, graded.SubmissionID)
	require.Equal(t, submission.ID, *graded.SubmissionID)
}

func TestGradingServiceReturnStatus(t *testing.T) {
	f := setupGradingService(t)
	assignment := seedGradableAssignment(t, f.db, nil)

	graded, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: assignment.ID,
		StudentID:    4,
		PointsEarned: 48,
		Return:       true,
	}, ActivityActor{ID: 20, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, models.GradeStatusReturned, graded.Status)
}

func TestGradingServiceUnknownAssignment(t *testing.T) {
	f := setupGradingService(t)

	_, err := f.svc.Assign(context.Background(), dto.GradeAssignRequest{
		AssignmentID: 77,
		StudentID:    4,
		PointsEarned: 10,
	}, ActivityActor{ID: 20, Role: "teacher"})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestGradingServiceAuditUnknownGrade(t *testing.T) {
	f := setupGradingService(t)

	_, err := f.svc.Audit(context.Background(), 123)
	require.ErrorIs(t, err, ErrGradeNotFound)
}
