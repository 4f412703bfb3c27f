package liveview

import (
	"sort"
	"strings"
	"time"

	"github.com/classpulse/classpulse-api/internal/models"
)

// Status is the display state of one snapshot.
type Status string

// Snapshot display states, from highest to lowest precedence.
const (
	StatusGraded    Status = "graded"
	StatusSubmitted Status = "submitted"
	StatusOverdue   Status = "overdue"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
)

// DueSoonWindow is how far ahead of a due date an unsubmitted assignment
// counts as due soon.
const DueSoonWindow = 24 * time.Hour

// SnapshotStatus derives the display status for a snapshot at the reference
// time. The precedence is a strict total order, so exactly one status ever
// applies: graded beats submitted beats overdue beats draft beats pending.
func SnapshotStatus(s Snapshot, now time.Time) Status {
	switch {
	case s.Grade != nil && s.Grade.IsGraded():
		return StatusGraded
	case s.Submission != nil:
		return StatusSubmitted
	case s.Assignment.IsPastDue(now):
		return StatusOverdue
	case s.Assignment.Status == models.AssignmentStatusDraft:
		return StatusDraft
	default:
		return StatusPending
	}
}

// IsDueSoon reports whether the assignment is due within DueSoonWindow and
// the student has not yet submitted.
func IsDueSoon(s Snapshot, now time.Time) bool {
	if s.Submission != nil {
		return false
	}
	due := s.Assignment.DueDate
	return due.After(now) && !due.After(now.Add(DueSoonWindow))
}

// Partition splits snapshots into four disjoint buckets whose union is the
// input list. Draft assignments land in Pending; the combinator filters them
// out upstream anyway.
type Partition struct {
	Pending       []Snapshot `json:"pending"`
	Overdue       []Snapshot `json:"overdue"`
	AwaitingGrade []Snapshot `json:"awaiting_grade"`
	Graded        []Snapshot `json:"graded"`
}

// PartitionSnapshots buckets the list by status at the reference time.
func PartitionSnapshots(snapshots []Snapshot, now time.Time) Partition {
	p := Partition{
		Pending:       []Snapshot{},
		Overdue:       []Snapshot{},
		AwaitingGrade: []Snapshot{},
		Graded:        []Snapshot{},
	}

	for _, s := range snapshots {
		switch SnapshotStatus(s, now) {
		case StatusGraded:
			p.Graded = append(p.Graded, s)
		case StatusSubmitted:
			p.AwaitingGrade = append(p.AwaitingGrade, s)
		case StatusOverdue:
			p.Overdue = append(p.Overdue, s)
		default:
			p.Pending = append(p.Pending, s)
		}
	}

	return p
}

// SortOrder selects how SortSnapshots orders its output.
type SortOrder string

// Supported sort orders.
const (
	SortByDueDate    SortOrder = "due_date"
	SortByTitle      SortOrder = "title"
	SortByPointsDesc SortOrder = "points"
	SortByStatus     SortOrder = "status"
)

// NormalizeSortOrder maps free-form caller input onto a supported order,
// defaulting to due date.
func NormalizeSortOrder(raw string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByTitle:
		return SortByTitle
	case SortByPointsDesc:
		return SortByPointsDesc
	case SortByStatus:
		return SortByStatus
	default:
		return SortByDueDate
	}
}

// SortSnapshots returns a sorted copy of the list. The input is never
// mutated; the combinator's cached ordering stays untouched no matter how a
// query wants its output arranged.
func SortSnapshots(snapshots []Snapshot, order SortOrder, now time.Time) []Snapshot {
	sorted := make([]Snapshot, len(snapshots))
	copy(sorted, snapshots)

	switch order {
	case SortByTitle:
		sort.SliceStable(sorted, func(i, j int) bool {
			return strings.ToLower(sorted[i].Assignment.Title) < strings.ToLower(sorted[j].Assignment.Title)
		})
	case SortByPointsDesc:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Assignment.TotalPoints > sorted[j].Assignment.TotalPoints
		})
	case SortByStatus:
		sort.SliceStable(sorted, func(i, j int) bool {
			return SnapshotStatus(sorted[i], now) < SnapshotStatus(sorted[j], now)
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i].Assignment, sorted[j].Assignment
			if !a.DueDate.Equal(b.DueDate) {
				return a.DueDate.Before(b.DueDate)
			}
			return a.ID < b.ID
		})
	}

	return sorted
}
