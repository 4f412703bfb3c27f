package models

import "time"

// Submission represents one student attempt against an assignment. Only the
// newest attempt for a (assignment, student) pair is current; older ones are
// kept with Superseded set.
type Submission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;index" json:"assignment_id"`
	StudentID    uint      `gorm:"not null;index" json:"student_id"`
	Content      string    `gorm:"type:text" json:"content"`
	FileURL      string    `gorm:"size:512" json:"file_url"`
	Attempt      int       `gorm:"not null;default:1" json:"attempt"`
	SubmittedAt  time.Time `gorm:"not null" json:"submitted_at"`
	Late         bool      `gorm:"not null;default:false" json:"late"`
	Superseded   bool      `gorm:"not null;default:false;index" json:"superseded"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Assignment Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student    Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
