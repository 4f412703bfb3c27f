package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/gradebook"
	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/repository"
	"github.com/classpulse/classpulse-api/internal/stream"
)

// ErrGradeNotFound indicates the requested grade does not exist.
var ErrGradeNotFound = errors.New("grade not found")

// ErrScoreExceedsMax indicates a score above the assignment's total points.
// Extra credit goes in its own field, not past the ceiling here.
var ErrScoreExceedsMax = errors.New("score exceeds assignment total points")

// GradebookInvalidator drops cached computed grades after a write.
type GradebookInvalidator interface {
	Invalidate(ctx context.Context, classID, studentID uint)
}

// GradingService encapsulates teacher grading workflows.
type GradingService interface {
	Assign(ctx context.Context, payload dto.GradeAssignRequest, actor ActivityActor) (dto.GradeResponse, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]dto.GradeResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.GradeResponse, error)
	Audit(ctx context.Context, gradeID uint) ([]dto.GradeAuditResponse, error)
}

type gradingService struct {
	grades      repository.GradeRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	bus         *stream.Bus
	gradebook   GradebookInvalidator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(grades repository.GradeRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, validate *validator.Validate, activity ActivityRecorder, bus *stream.Bus, invalidator GradebookInvalidator, logger zerolog.Logger) GradingService {
	return &gradingService{
		grades:      grades,
		assignments: assignments,
		submissions: submissions,
		validator:   validate,
		activity:    activity,
		bus:         bus,
		gradebook:   invalidator,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// Assign records or revises the grade for one student's work on one
// assignment. Regrading an existing grade writes an audit entry holding the
// prior values before the update lands.
func (s *gradingService) Assign(ctx context.Context, payload dto.GradeAssignRequest, actor ActivityActor) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/classpulse/classpulse-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.assign")
	span.SetAttributes(
		attribute.Int64("grading.assignment_id", int64(payload.AssignmentID)),
		attribute.Int64("grading.student_id", int64(payload.StudentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.GradeResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.GradeResponse{}, err
	}

	if payload.PointsEarned > assignment.TotalPoints+1e-9 {
		err := ErrScoreExceedsMax
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.GradeResponse{}, err
	}

	pointsEarned := payload.PointsEarned
	if penalty := s.latePenalty(ctx, assignment, payload.StudentID); penalty > 0 {
		pointsEarned = math.Max(0, pointsEarned*(1-penalty/100))
		span.SetAttributes(attribute.Float64("grading.late_penalty_percent", penalty))
	}

	status := models.GradeStatusGraded
	if payload.Return {
		status = models.GradeStatusReturned
	}

	gradedAt := s.now()
	gradedBy := actor.ID
	feedback := strings.TrimSpace(payload.Feedback)

	grade, err := s.grades.GetByAssignmentAndStudent(ctx, payload.AssignmentID, payload.StudentID)
	switch {
	case err == nil:
		audit := models.GradeAuditEntry{
			GradeID:          grade.ID,
			PrevPointsEarned: grade.PointsEarned,
			PrevExtraCredit:  grade.ExtraCredit,
			PrevFeedback:     grade.Feedback,
			PrevStatus:       grade.Status,
			ChangedBy:        actor.ID,
		}
		if err := s.grades.CreateAudit(ctx, &audit); err != nil {
			s.logger.Warn().Err(err).Uint("grade_id", grade.ID).Msg("failed to persist grade audit entry")
			span.RecordError(err)
		}

		grade.PointsEarned = pointsEarned
		grade.ExtraCredit = payload.ExtraCredit
		grade.Weight = payload.Weight
		grade.Feedback = feedback
		grade.Status = status
		grade.GradedAt = &gradedAt
		grade.GradedBy = &gradedBy

		if err := s.grades.Update(ctx, &grade); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "grade_update_failed")
			return dto.GradeResponse{}, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		grade = models.Grade{
			AssignmentID:   payload.AssignmentID,
			StudentID:      payload.StudentID,
			CategoryID:     assignment.CategoryID,
			PointsEarned:   pointsEarned,
			PointsPossible: assignment.TotalPoints,
			ExtraCredit:    payload.ExtraCredit,
			Weight:         payload.Weight,
			Feedback:       feedback,
			Status:         status,
			GradedAt:       &gradedAt,
			GradedBy:       &gradedBy,
		}
		if current, err := s.submissions.GetCurrent(ctx, payload.AssignmentID, payload.StudentID); err == nil {
			submissionID := current.ID
			grade.SubmissionID = &submissionID
		}

		if err := s.grades.Create(ctx, &grade); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "grade_create_failed")
			return dto.GradeResponse{}, err
		}
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_lookup_failed")
		return dto.GradeResponse{}, err
	}

	if s.gradebook != nil {
		s.gradebook.Invalidate(ctx, assignment.ClassID, payload.StudentID)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, stream.Change{
			Entity:    stream.EntityGrades,
			ClassID:   assignment.ClassID,
			StudentID: payload.StudentID,
		})
	}

	if s.activity != nil {
		gradeID := grade.ID
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grade.assigned",
			EntityType: "grade",
			EntityID:   &gradeID,
			Metadata: map[string]interface{}{
				"assignment_id": payload.AssignmentID,
				"student_id":    payload.StudentID,
				"points_earned": grade.PointsEarned,
			},
		})
	}

	span.SetAttributes(
		attribute.Float64("grading.points_earned", grade.PointsEarned),
		attribute.String("grading.status", grade.Status),
	)

	percent, err := gradebook.Percentage(grade.PointsEarned, grade.PointsPossible, grade.ExtraCredit)
	if err != nil {
		percent = 0
	}

	return dto.NewGradeResponse(grade, percent), nil
}

// latePenalty returns the percentage to deduct for the student's current
// submission, zero when no penalty applies.
func (s *gradingService) latePenalty(ctx context.Context, assignment models.Assignment, studentID uint) float64 {
	if !assignment.LateAllowed || assignment.LatePenaltyPerDay <= 0 {
		return 0
	}

	submission, err := s.submissions.GetCurrent(ctx, assignment.ID, studentID)
	if err != nil || !submission.Late {
		return 0
	}

	daysLate := math.Ceil(submission.SubmittedAt.Sub(assignment.DueDate).Hours() / 24)
	if daysLate < 1 {
		daysLate = 1
	}

	return math.Min(100, assignment.LatePenaltyPerDay*daysLate)
}

func (s *gradingService) ListByAssignment(ctx context.Context, assignmentID uint) ([]dto.GradeResponse, error) {
	grades, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return s.toResponses(grades), nil
}

func (s *gradingService) ListByStudent(ctx context.Context, studentID uint) ([]dto.GradeResponse, error) {
	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return s.toResponses(grades), nil
}

func (s *gradingService) Audit(ctx context.Context, gradeID uint) ([]dto.GradeAuditResponse, error) {
	if _, err := s.grades.GetByID(ctx, gradeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}
		return nil, err
	}

	entries, err := s.grades.ListAudit(ctx, gradeID)
	if err != nil {
		return nil, err
	}

	return dto.NewGradeAuditResponseSlice(entries), nil
}

func (s *gradingService) toResponses(grades []models.Grade) []dto.GradeResponse {
	responses := make([]dto.GradeResponse, 0, len(grades))
	for _, grade := range grades {
		percent, err := gradebook.Percentage(grade.PointsEarned, grade.PointsPossible, grade.ExtraCredit)
		if err != nil {
			percent = 0
		}
		responses = append(responses, dto.NewGradeResponse(grade, percent))
	}

	return responses
}
