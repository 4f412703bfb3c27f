package dto

import (
	"time"

	"github.com/classpulse/classpulse-api/internal/models"
)

// CategoryCreateRequest configures one grading category for a class.
type CategoryCreateRequest struct {
	ClassID        uint    `json:"class_id" validate:"required,gt=0"`
	Name           string  `json:"name" validate:"required,min=2"`
	Weight         float64 `json:"weight" validate:"gte=0,lte=1"`
	DropLowest     int     `json:"drop_lowest" validate:"omitempty,gte=0"`
	Method         string  `json:"method" validate:"omitempty,oneof=simple_average total_points weighted_average"`
	IncludeInFinal *bool   `json:"include_in_final"`
}

// CategoryUpdateRequest revises a grading category.
type CategoryUpdateRequest struct {
	Name           *string  `json:"name" validate:"omitempty,min=2"`
	Weight         *float64 `json:"weight" validate:"omitempty,gte=0,lte=1"`
	DropLowest     *int     `json:"drop_lowest" validate:"omitempty,gte=0"`
	Method         *string  `json:"method" validate:"omitempty,oneof=simple_average total_points weighted_average"`
	IncludeInFinal *bool    `json:"include_in_final"`
}

// CategoryResponse serializes one grading category.
type CategoryResponse struct {
	ID             uint      `json:"id"`
	ClassID        uint      `json:"class_id"`
	Name           string    `json:"name"`
	Weight         float64   `json:"weight"`
	DropLowest     int       `json:"drop_lowest"`
	Method         string    `json:"method"`
	IncludeInFinal bool      `json:"include_in_final"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCategoryResponse converts a model into a DTO.
func NewCategoryResponse(model models.GradeCategory) CategoryResponse {
	return CategoryResponse{
		ID:             model.ID,
		ClassID:        model.ClassID,
		Name:           model.Name,
		Weight:         model.Weight,
		DropLowest:     model.DropLowest,
		Method:         model.Method,
		IncludeInFinal: model.IncludeInFinal,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewCategoryResponseSlice converts category models into DTOs.
func NewCategoryResponseSlice(categories []models.GradeCategory) []CategoryResponse {
	responses := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		responses = append(responses, NewCategoryResponse(category))
	}

	return responses
}

// GradeRangePayload is one row of a grade scale in requests and responses.
type GradeRangePayload struct {
	Letter     string  `json:"letter" validate:"required,min=1,max=4"`
	MinPercent float64 `json:"min_percent" validate:"gte=0"`
	GradePoint float64 `json:"grade_point" validate:"gte=0"`
}

// ScaleSaveRequest replaces a class's letter grade scale.
type ScaleSaveRequest struct {
	ClassID uint                `json:"class_id" validate:"required,gt=0"`
	Name    string              `json:"name" validate:"required,min=2"`
	Ranges  []GradeRangePayload `json:"ranges" validate:"required,min=1,dive"`
}

// ScaleResponse serializes a grade scale with its decoded ranges.
type ScaleResponse struct {
	ID        uint                `json:"id"`
	ClassID   uint                `json:"class_id"`
	Name      string              `json:"name"`
	Ranges    []GradeRangePayload `json:"ranges"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewScaleResponse converts a model and its decoded ranges into a DTO.
func NewScaleResponse(model models.GradeScale, ranges []models.GradeRange) ScaleResponse {
	payload := make([]GradeRangePayload, 0, len(ranges))
	for _, r := range ranges {
		payload = append(payload, GradeRangePayload{
			Letter:     r.Letter,
			MinPercent: r.MinPercent,
			GradePoint: r.GradePoint,
		})
	}

	return ScaleResponse{
		ID:        model.ID,
		ClassID:   model.ClassID,
		Name:      model.Name,
		Ranges:    payload,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// CategoryBreakdownResponse is one category's contribution to a final grade.
type CategoryBreakdownResponse struct {
	CategoryID uint    `json:"category_id"`
	Name       string  `json:"name"`
	Average    float64 `json:"average"`
	Weight     float64 `json:"weight"`
	GradeCount int     `json:"grade_count"`
}

// ClassGradeResponse is the computed standing of one student in one class.
type ClassGradeResponse struct {
	ClassID      uint                        `json:"class_id"`
	StudentID    uint                        `json:"student_id"`
	FinalPercent float64                     `json:"final_percent"`
	Letter       string                      `json:"letter"`
	GradePoint   float64                     `json:"grade_point"`
	Categories   []CategoryBreakdownResponse `json:"categories"`
	ComputedAt   time.Time                   `json:"computed_at"`
}

// GPACourseResponse is one class line in a GPA report.
type GPACourseResponse struct {
	ClassID     uint    `json:"class_id"`
	ClassName   string  `json:"class_name"`
	Letter      string  `json:"letter"`
	GradePoint  float64 `json:"grade_point"`
	CreditHours float64 `json:"credit_hours"`
}

// GPAResponse is the credit-weighted grade point average across classes.
type GPAResponse struct {
	StudentID uint                `json:"student_id"`
	GPA       float64             `json:"gpa"`
	Courses   []GPACourseResponse `json:"courses"`
}
