package models

import "time"

// Class represents a course section taught by a single teacher.
type Class struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	TeacherID   uint      `gorm:"not null;index" json:"teacher_id"`
	CreditHours float64   `gorm:"not null;default:0" json:"credit_hours"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index:idx_enrollment_pair,unique" json:"student_id"`
	ClassID   uint      `gorm:"not null;index:idx_enrollment_pair,unique" json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}
