package models

import "time"

// Grade lifecycle states.
const (
	GradeStatusUngraded = "ungraded"
	GradeStatusGraded   = "graded"
	GradeStatusReturned = "returned"
)

// Grade records the score a teacher assigned for one student's work on one
// assignment. PointsPossible and CategoryID are denormalized from the
// assignment at grading time so grade computation never needs a join.
// SubmissionID may be nil: grading without a submission is unusual but legal.
type Grade struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	SubmissionID   *uint    `gorm:"index" json:"submission_id"`
	AssignmentID   uint     `gorm:"not null;index" json:"assignment_id"`
	StudentID      uint     `gorm:"not null;index" json:"student_id"`
	CategoryID     uint     `gorm:"index" json:"category_id"`
	PointsEarned   float64  `gorm:"not null" json:"points_earned"`
	PointsPossible float64  `gorm:"not null" json:"points_possible"`
	ExtraCredit    float64  `gorm:"not null;default:0" json:"extra_credit"`
	// Weight applies only under the weighted-average category method.
	Weight    *float64   `json:"weight"`
	Feedback  string     `gorm:"type:text" json:"feedback"`
	Status    string     `gorm:"size:32;not null;default:ungraded" json:"status"`
	GradedAt  *time.Time `json:"graded_at"`
	GradedBy  *uint      `json:"graded_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsGraded reports whether the grade carries a final score.
func (g Grade) IsGraded() bool {
	return g.Status == GradeStatusGraded || g.Status == GradeStatusReturned
}

// GradeAuditEntry preserves the prior value of a grade each time it is
// regraded, so a dispute can be traced back through every mutation.
type GradeAuditEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	GradeID          uint      `gorm:"not null;index" json:"grade_id"`
	PrevPointsEarned float64   `gorm:"not null" json:"prev_points_earned"`
	PrevExtraCredit  float64   `gorm:"not null" json:"prev_extra_credit"`
	PrevFeedback     string    `gorm:"type:text" json:"prev_feedback"`
	PrevStatus       string    `gorm:"size:32" json:"prev_status"`
	ChangedBy        uint      `gorm:"not null" json:"changed_by"`
	CreatedAt        time.Time `json:"created_at"`
}
