package dto

import (
	"time"

	"github.com/classpulse/classpulse-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	ClassID           uint    `form:"class_id" json:"class_id" validate:"required,gt=0"`
	CategoryID        uint    `form:"category_id" json:"category_id" validate:"omitempty,gt=0"`
	Title             string  `form:"title" json:"title" validate:"required,min=3"`
	Description       string  `form:"description" json:"description" validate:"required,min=10"`
	Type              string  `form:"type" json:"type" validate:"omitempty,oneof=homework quiz project exam discussion"`
	DueDate           string  `form:"due_date" json:"due_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	PublishAt         *string `form:"publish_at" json:"publish_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TotalPoints       float64 `form:"total_points" json:"total_points" validate:"required,gt=0"`
	LateAllowed       bool    `form:"late_allowed" json:"late_allowed"`
	LatePenaltyPerDay float64 `form:"late_penalty_per_day" json:"late_penalty_per_day" validate:"omitempty,gte=0,lte=100"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	CategoryID        *uint    `form:"category_id" json:"category_id" validate:"omitempty,gt=0"`
	Title             *string  `form:"title" json:"title" validate:"omitempty,min=3"`
	Description       *string  `form:"description" json:"description" validate:"omitempty,min=10"`
	Type              *string  `form:"type" json:"type" validate:"omitempty,oneof=homework quiz project exam discussion"`
	DueDate           *string  `form:"due_date" json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PublishAt         *string  `form:"publish_at" json:"publish_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TotalPoints       *float64 `form:"total_points" json:"total_points" validate:"omitempty,gt=0"`
	LateAllowed       *bool    `form:"late_allowed" json:"late_allowed"`
	LatePenaltyPerDay *float64 `form:"late_penalty_per_day" json:"late_penalty_per_day" validate:"omitempty,gte=0,lte=100"`
}

// AssignmentStatusRequest moves an assignment through its lifecycle.
type AssignmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active completed archived"`
}

// AssignmentListQuery describes query string filters for listing assignments.
type AssignmentListQuery struct {
	ClassID  uint   `query:"class_id"`
	Status   string `query:"status" validate:"omitempty,oneof=draft active completed archived"`
	Search   string `query:"search"`
	Sort     string `query:"sort"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID                uint       `json:"id"`
	ClassID           uint       `json:"class_id"`
	CategoryID        uint       `json:"category_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	DueDate           time.Time  `json:"due_date"`
	PublishAt         *time.Time `json:"publish_at"`
	TotalPoints       float64    `json:"total_points"`
	LateAllowed       bool       `json:"late_allowed"`
	LatePenaltyPerDay float64    `json:"late_penalty_per_day"`
	FileURL           string     `json:"file_url"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                model.ID,
		ClassID:           model.ClassID,
		CategoryID:        model.CategoryID,
		Title:             model.Title,
		Description:       model.Description,
		Type:              model.Type,
		Status:            model.Status,
		DueDate:           model.DueDate,
		PublishAt:         model.PublishAt,
		TotalPoints:       model.TotalPoints,
		LateAllowed:       model.LateAllowed,
		LatePenaltyPerDay: model.LatePenaltyPerDay,
		FileURL:           model.FileURL,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
