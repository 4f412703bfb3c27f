package dto

import (
	"time"

	"github.com/classpulse/classpulse-api/internal/models"
)

// SubmissionCreateRequest describes the payload for turning in work. A new
// request for an already-submitted assignment creates a superseding attempt.
type SubmissionCreateRequest struct {
	AssignmentID uint   `form:"assignment_id" json:"assignment_id" validate:"required,gt=0"`
	StudentID    uint   `form:"student_id" json:"student_id" validate:"required,gt=0"`
	Content      string `form:"content" json:"content" validate:"omitempty,min=1"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID      *uint `query:"assignment_id"`
	StudentID         *uint `query:"student_id"`
	IncludeSuperseded bool  `query:"include_superseded"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint           `json:"id"`
	AssignmentID uint           `json:"assignment_id"`
	StudentID    uint           `json:"student_id"`
	Content      string         `json:"content"`
	FileURL      string         `json:"file_url"`
	Attempt      int            `json:"attempt"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Late         bool           `json:"late"`
	Superseded   bool           `json:"superseded"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Assignment   AssignmentLite `json:"assignment"`
	Student      StudentLite    `json:"student"`
}

// AssignmentLite summarizes an assignment in nested responses.
type AssignmentLite struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	DueDate     time.Time `json:"due_date"`
	TotalPoints float64   `json:"total_points"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Content:      model.Content,
		FileURL:      model.FileURL,
		Attempt:      model.Attempt,
		SubmittedAt:  model.SubmittedAt,
		Late:         model.Late,
		Superseded:   model.Superseded,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:          model.Assignment.ID,
			Title:       model.Assignment.Title,
			DueDate:     model.Assignment.DueDate,
			TotalPoints: model.Assignment.TotalPoints,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
