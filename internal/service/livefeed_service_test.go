package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-api/internal/liveview"
	"github.com/classpulse/classpulse-api/internal/models"
)

type fakeFeedSources struct {
	classIDs    []uint
	dirErr      error
	assignments chan []models.Assignment
	submissions chan []models.Submission
	grades      chan []models.Grade
}

func newFakeFeedSources(classIDs ...uint) *fakeFeedSources {
	return &fakeFeedSources{
		classIDs:    classIDs,
		assignments: make(chan []models.Assignment, 4),
		submissions: make(chan []models.Submission, 4),
		grades:      make(chan []models.Grade, 4),
	}
}

func (f *fakeFeedSources) EnrolledClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	if f.dirErr != nil {
		return nil, f.dirErr
	}
	return f.classIDs, nil
}

func (f *fakeFeedSources) Watch(ctx context.Context, classIDs []uint) (<-chan []models.Assignment, error) {
	return f.assignments, nil
}

type fakeSubmissionSource struct{ *fakeFeedSources }

func (f fakeSubmissionSource) Watch(ctx context.Context, studentID uint) (<-chan []models.Submission, error) {
	return f.submissions, nil
}

type fakeGradeSource struct{ *fakeFeedSources }

func (f fakeGradeSource) Watch(ctx context.Context, studentID uint) (<-chan []models.Grade, error) {
	return f.grades, nil
}

func newLiveFeedService(feeds *fakeFeedSources) LiveFeedService {
	return NewLiveFeedService(feeds, fakeSubmissionSource{feeds}, fakeGradeSource{feeds}, feeds, testLogger())
}

func TestLiveFeedServiceView(t *testing.T) {
	feeds := newFakeFeedSources(1)
	svc := newLiveFeedService(feeds)

	due := time.Now().Add(48 * time.Hour)
	feeds.assignments <- []models.Assignment{{
		ID:      1,
		ClassID: 1,
		Title:   "Essay",
		Status:  models.AssignmentStatusActive,
		DueDate: due,
	}}
	feeds.submissions <- []models.Submission{}
	feeds.grades <- []models.Grade{}

	view, err := svc.View(context.Background(), 7, "due_date")
	require.NoError(t, err)
	require.Len(t, view.Pending, 1)
	require.Empty(t, view.Overdue)
	require.Empty(t, view.AwaitingGrade)
	require.Empty(t, view.Graded)
	require.Equal(t, string(liveview.StatusPending), view.Pending[0].Status)
}

func TestLiveFeedServiceViewPartitionsGraded(t *testing.T) {
	feeds := newFakeFeedSources(1)
	svc := newLiveFeedService(feeds)

	due := time.Now().Add(48 * time.Hour)
	feeds.submissions <- []models.Submission{{ID: 10, AssignmentID: 1, StudentID: 7}}
	feeds.grades <- []models.Grade{{
		ID:             20,
		AssignmentID:   1,
		StudentID:      7,
		PointsEarned:   45,
		PointsPossible: 50,
		Status:         models.GradeStatusGraded,
	}}

	// Assignments arrive last so the first emitted event already carries the
	// submission and grade pairings.
	go func() {
		time.Sleep(100 * time.Millisecond)
		feeds.assignments <- []models.Assignment{{
			ID:      1,
			ClassID: 1,
			Title:   "Quiz",
			Status:  models.AssignmentStatusActive,
			DueDate: due,
		}}
	}()

	view, err := svc.View(context.Background(), 7, "")
	require.NoError(t, err)
	require.Len(t, view.Graded, 1)
	require.NotNil(t, view.Graded[0].Grade)
	require.InDelta(t, 90.0, view.Graded[0].Grade.Percent, 0.001)
}

func TestLiveFeedServiceViewDirectoryFailure(t *testing.T) {
	feeds := newFakeFeedSources(1)
	feeds.dirErr = errors.New("directory offline")
	svc := newLiveFeedService(feeds)

	_, err := svc.View(context.Background(), 7, "")
	require.Error(t, err)
}

func TestLiveFeedServiceViewTimeout(t *testing.T) {
	feeds := newFakeFeedSources(1)
	svc := newLiveFeedService(feeds)
	if concrete, ok := svc.(*liveFeedService); ok {
		concrete.viewTimeout = 50 * time.Millisecond
	}

	// No source ever emits, so the view deadline fires.
	_, err := svc.View(context.Background(), 7, "")
	require.ErrorIs(t, err, ErrFeedTimeout)
}
