// Package liveview merges the assignment, submission and grade change feeds
// for one student into a single consistent stream of combined snapshots, and
// derives display status from them.
package liveview

import (
	"context"
	"errors"

	"github.com/classpulse/classpulse-api/internal/models"
)

// ErrSourceUnavailable wraps a failure of one of the underlying entity
// feeds. It terminates the combined stream; retrying is the feed's concern,
// not this layer's.
var ErrSourceUnavailable = errors.New("entity source unavailable")

// AssignmentSource streams the full current assignment list for a set of
// classes. Every emission replaces the previous one; the channel carries
// state snapshots, not deltas. The channel closes when ctx is cancelled or
// the source fails.
type AssignmentSource interface {
	Watch(ctx context.Context, classIDs []uint) (<-chan []models.Assignment, error)
}

// SubmissionSource streams the full current submission list for a student.
type SubmissionSource interface {
	Watch(ctx context.Context, studentID uint) (<-chan []models.Submission, error)
}

// GradeSource streams the full current grade list for a student.
type GradeSource interface {
	Watch(ctx context.Context, studentID uint) (<-chan []models.Grade, error)
}

// StudentDirectory answers which classes a student is enrolled in. Consulted
// once when a subscription is established, never watched.
type StudentDirectory interface {
	EnrolledClassIDs(ctx context.Context, studentID uint) ([]uint, error)
}

// Snapshot pairs one visible assignment with the student's current
// submission and grade, when they exist. Orphaned marks the degenerate but
// legal case of a grade recorded without any submission.
type Snapshot struct {
	Assignment models.Assignment  `json:"assignment"`
	Submission *models.Submission `json:"submission,omitempty"`
	Grade      *models.Grade      `json:"grade,omitempty"`
	Orphaned   bool               `json:"orphaned,omitempty"`
}

// Event is one emission on a combined subscription. Err, when set, is
// terminal: the channel closes right after it is delivered.
type Event struct {
	Snapshots []Snapshot `json:"snapshots"`
	Err       error      `json:"-"`
}
