package models

import "time"

// Student is a learner who submits work and accumulates grades. Class
// membership lives on Enrollment; the live feed resolves it through the
// student directory, never by joining here.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
