package dto

import (
	"time"

	"github.com/classpulse/classpulse-api/internal/liveview"
)

// FeedSnapshotResponse is one assignment row in the live feed, carrying the
// student's submission and grade when they exist.
type FeedSnapshotResponse struct {
	Assignment AssignmentResponse  `json:"assignment"`
	Submission *SubmissionResponse `json:"submission"`
	Grade      *GradeResponse      `json:"grade"`
	Status     string              `json:"status"`
	DueSoon    bool                `json:"due_soon"`
	Orphaned   bool                `json:"orphaned,omitempty"`
}

// FeedEventResponse is one websocket frame: either a full snapshot list or a
// terminal error.
type FeedEventResponse struct {
	Snapshots []FeedSnapshotResponse `json:"snapshots,omitempty"`
	Error     string                 `json:"error,omitempty"`
	SentAt    time.Time              `json:"sent_at"`
}

// FeedPartitionResponse groups a snapshot list into the four dashboard
// buckets.
type FeedPartitionResponse struct {
	Pending       []FeedSnapshotResponse `json:"pending"`
	Overdue       []FeedSnapshotResponse `json:"overdue"`
	AwaitingGrade []FeedSnapshotResponse `json:"awaiting_grade"`
	Graded        []FeedSnapshotResponse `json:"graded"`
}

// NewFeedSnapshotResponse converts a combined snapshot into a DTO. Percent on
// the nested grade is best effort; an unscorable grade reports zero.
func NewFeedSnapshotResponse(s liveview.Snapshot, now time.Time) FeedSnapshotResponse {
	response := FeedSnapshotResponse{
		Assignment: NewAssignmentResponse(s.Assignment),
		Status:     string(liveview.SnapshotStatus(s, now)),
		DueSoon:    liveview.IsDueSoon(s, now),
		Orphaned:   s.Orphaned,
	}

	if s.Submission != nil {
		submission := NewSubmissionResponse(*s.Submission)
		response.Submission = &submission
	}

	if s.Grade != nil {
		percent := 0.0
		if s.Grade.PointsPossible > 0 {
			percent = (s.Grade.PointsEarned + s.Grade.ExtraCredit) / s.Grade.PointsPossible * 100
		}
		grade := NewGradeResponse(*s.Grade, percent)
		response.Grade = &grade
	}

	return response
}

// NewFeedSnapshotResponseSlice converts snapshots into DTOs.
func NewFeedSnapshotResponseSlice(snapshots []liveview.Snapshot, now time.Time) []FeedSnapshotResponse {
	responses := make([]FeedSnapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		responses = append(responses, NewFeedSnapshotResponse(s, now))
	}

	return responses
}

// NewFeedPartitionResponse buckets snapshots for the dashboard view.
func NewFeedPartitionResponse(snapshots []liveview.Snapshot, now time.Time) FeedPartitionResponse {
	partition := liveview.PartitionSnapshots(snapshots, now)
	return FeedPartitionResponse{
		Pending:       NewFeedSnapshotResponseSlice(partition.Pending, now),
		Overdue:       NewFeedSnapshotResponseSlice(partition.Overdue, now),
		AwaitingGrade: NewFeedSnapshotResponseSlice(partition.AwaitingGrade, now),
		Graded:        NewFeedSnapshotResponseSlice(partition.Graded, now),
	}
}
