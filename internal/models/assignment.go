package models

import "time"

// Assignment type classifications.
const (
	AssignmentTypeHomework   = "homework"
	AssignmentTypeQuiz       = "quiz"
	AssignmentTypeProject    = "project"
	AssignmentTypeExam       = "exam"
	AssignmentTypeDiscussion = "discussion"
)

// Assignment lifecycle states.
const (
	AssignmentStatusDraft     = "draft"
	AssignmentStatusActive    = "active"
	AssignmentStatusCompleted = "completed"
	AssignmentStatusArchived  = "archived"
)

// Assignment represents a graded piece of coursework in a class.
type Assignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ClassID     uint       `gorm:"not null;index" json:"class_id"`
	CategoryID  uint       `gorm:"index" json:"category_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Type        string     `gorm:"size:32;not null;default:homework" json:"type"`
	Status      string     `gorm:"size:32;not null;default:draft" json:"status"`
	DueDate     time.Time  `gorm:"not null" json:"due_date"`
	PublishAt   *time.Time `json:"publish_at"`
	TotalPoints float64    `gorm:"not null" json:"total_points"`
	LateAllowed bool       `gorm:"not null;default:false" json:"late_allowed"`
	// Percentage deducted for each day a submission is late, when LateAllowed.
	LatePenaltyPerDay float64   `gorm:"not null;default:0" json:"late_penalty_per_day"`
	FileURL           string    `gorm:"size:512" json:"file_url"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// Published reports whether the assignment is visible at the reference time.
// A nil publish time means the assignment is visible as soon as it leaves draft.
func (a Assignment) Published(reference time.Time) bool {
	return a.PublishAt == nil || !a.PublishAt.After(reference)
}

// Visible reports whether students should see the assignment: published and
// either active or completed. Drafts and archived assignments are hidden.
func (a Assignment) Visible(reference time.Time) bool {
	if !a.Published(reference) {
		return false
	}
	return a.Status == AssignmentStatusActive || a.Status == AssignmentStatusCompleted
}
