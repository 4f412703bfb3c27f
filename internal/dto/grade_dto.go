package dto

import (
	"time"

	"github.com/classpulse/classpulse-api/internal/models"
)

// GradeAssignRequest records or revises the score for one student's work on
// one assignment.
type GradeAssignRequest struct {
	AssignmentID uint     `json:"assignment_id" validate:"required,gt=0"`
	StudentID    uint     `json:"student_id" validate:"required,gt=0"`
	PointsEarned float64  `json:"points_earned" validate:"gte=0"`
	ExtraCredit  float64  `json:"extra_credit" validate:"omitempty,gte=0"`
	Weight       *float64 `json:"weight" validate:"omitempty,gt=0"`
	Feedback     string   `json:"feedback"`
	Return       bool     `json:"return"`
}

// GradeResponse serializes a grade for API clients.
type GradeResponse struct {
	ID             uint       `json:"id"`
	SubmissionID   *uint      `json:"submission_id"`
	AssignmentID   uint       `json:"assignment_id"`
	StudentID      uint       `json:"student_id"`
	CategoryID     uint       `json:"category_id"`
	PointsEarned   float64    `json:"points_earned"`
	PointsPossible float64    `json:"points_possible"`
	ExtraCredit    float64    `json:"extra_credit"`
	Weight         *float64   `json:"weight"`
	Percent        float64    `json:"percent"`
	Feedback       string     `json:"feedback"`
	Status         string     `json:"status"`
	GradedAt       *time.Time `json:"graded_at"`
	GradedBy       *uint      `json:"graded_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewGradeResponse converts a model into a DTO. percent is computed by the
// caller so invalid point totals surface as errors there, not as zeroes here.
func NewGradeResponse(model models.Grade, percent float64) GradeResponse {
	return GradeResponse{
		ID:             model.ID,
		SubmissionID:   model.SubmissionID,
		AssignmentID:   model.AssignmentID,
		StudentID:      model.StudentID,
		CategoryID:     model.CategoryID,
		PointsEarned:   model.PointsEarned,
		PointsPossible: model.PointsPossible,
		ExtraCredit:    model.ExtraCredit,
		Weight:         model.Weight,
		Percent:        percent,
		Feedback:       model.Feedback,
		Status:         model.Status,
		GradedAt:       model.GradedAt,
		GradedBy:       model.GradedBy,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// GradeAuditResponse serializes one audit trail entry.
type GradeAuditResponse struct {
	ID               uint      `json:"id"`
	GradeID          uint      `json:"grade_id"`
	PrevPointsEarned float64   `json:"prev_points_earned"`
	PrevExtraCredit  float64   `json:"prev_extra_credit"`
	PrevFeedback     string    `json:"prev_feedback"`
	PrevStatus       string    `json:"prev_status"`
	ChangedBy        uint      `json:"changed_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewGradeAuditResponseSlice converts audit models into DTOs.
func NewGradeAuditResponseSlice(entries []models.GradeAuditEntry) []GradeAuditResponse {
	responses := make([]GradeAuditResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, GradeAuditResponse{
			ID:               entry.ID,
			GradeID:          entry.GradeID,
			PrevPointsEarned: entry.PrevPointsEarned,
			PrevExtraCredit:  entry.PrevExtraCredit,
			PrevFeedback:     entry.PrevFeedback,
			PrevStatus:       entry.PrevStatus,
			ChangedBy:        entry.ChangedBy,
			CreatedAt:        entry.CreatedAt,
		})
	}

	return responses
}
