package models

import "time"

// Category calculation methods.
const (
	CategoryMethodSimpleAverage   = "simple_average"
	CategoryMethodTotalPoints     = "total_points"
	CategoryMethodWeightedAverage = "weighted_average"
)

// GradeCategory is a weighted grouping of assignments ("Homework", "Exams")
// used when computing a class final grade. Weights are raw values in [0, 1]
// and need not sum to 1; normalization happens at aggregation time.
type GradeCategory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ClassID        uint      `gorm:"not null;index" json:"class_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Weight         float64   `gorm:"not null" json:"weight"`
	DropLowest     int       `gorm:"not null;default:0" json:"drop_lowest"`
	Method         string    `gorm:"size:32;not null;default:simple_average" json:"method"`
	IncludeInFinal bool      `gorm:"not null;default:true" json:"include_in_final"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
