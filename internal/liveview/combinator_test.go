package liveview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-api/internal/models"
)

type fakeFeeds struct {
	classIDs    []uint
	dirErr      error
	assignments chan []models.Assignment
	submissions chan []models.Submission
	grades      chan []models.Grade
}

func newFakeFeeds(classIDs ...uint) *fakeFeeds {
	return &fakeFeeds{
		classIDs:    classIDs,
		assignments: make(chan []models.Assignment, 8),
		submissions: make(chan []models.Submission, 8),
		grades:      make(chan []models.Grade, 8),
	}
}

func (f *fakeFeeds) EnrolledClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	if f.dirErr != nil {
		return nil, f.dirErr
	}
	return f.classIDs, nil
}

func (f *fakeFeeds) Watch(ctx context.Context, classIDs []uint) (<-chan []models.Assignment, error) {
	return f.assignments, nil
}

type submissionFeed struct{ *fakeFeeds }

func (f submissionFeed) Watch(ctx context.Context, studentID uint) (<-chan []models.Submission, error) {
	return f.submissions, nil
}

type gradeFeed struct{ *fakeFeeds }

func (f gradeFeed) Watch(ctx context.Context, studentID uint) (<-chan []models.Grade, error) {
	return f.grades, nil
}

func newTestCombinator(feeds *fakeFeeds) *Combinator {
	c := NewCombinator(feeds, submissionFeed{feeds}, gradeFeed{feeds}, feeds, zerolog.Nop())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	return c
}

func activeAssignment(id uint, due time.Time) models.Assignment {
	return models.Assignment{
		ID:      id,
		ClassID: 1,
		Title:   "Assignment",
		Status:  models.AssignmentStatusActive,
		DueDate: due,
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "event channel closed unexpectedly")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func waitForSnapshots(t *testing.T, events <-chan Event, match func([]Snapshot) bool) []Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			require.True(t, ok, "event channel closed before expected state arrived")
			require.NoError(t, event.Err)
			if match(event.Snapshots) {
				return event.Snapshots
			}
		case <-deadline:
			t.Fatal("timed out waiting for expected snapshot state")
			return nil
		}
	}
}

func TestCombinatorPairsEntitiesByAssignment(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	due := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{
		activeAssignment(1, due),
		activeAssignment(2, due.Add(24*time.Hour)),
	}
	feeds.submissions <- []models.Submission{{ID: 50, AssignmentID: 1, StudentID: 7}}
	feeds.grades <- []models.Grade{{ID: 90, AssignmentID: 1, StudentID: 7, Status: models.GradeStatusGraded}}

	snapshots := waitForSnapshots(t, events, func(s []Snapshot) bool {
		return len(s) == 2 && s[0].Submission != nil && s[0].Grade != nil
	})

	require.Equal(t, uint(1), snapshots[0].Assignment.ID)
	require.Equal(t, uint(50), snapshots[0].Submission.ID)
	require.Equal(t, uint(90), snapshots[0].Grade.ID)
	require.False(t, snapshots[0].Orphaned)
	require.Nil(t, snapshots[1].Submission)
	require.Nil(t, snapshots[1].Grade)
}

func TestCombinatorHoldsEmissionsUntilAssignmentsPrime(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	// Submissions and grades arrive first; nothing may be emitted yet.
	feeds.submissions <- []models.Submission{{ID: 1, AssignmentID: 1, StudentID: 7}}
	feeds.grades <- []models.Grade{{ID: 2, AssignmentID: 1, StudentID: 7, Status: models.GradeStatusGraded}}

	select {
	case event := <-events:
		t.Fatalf("unexpected emission before assignments primed: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{activeAssignment(1, due)}

	snapshots := waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 1 })
	require.NotNil(t, snapshots[0].Submission)
	require.NotNil(t, snapshots[0].Grade)
}

func TestCombinatorEmitsEmptyListForZeroEnrollment(t *testing.T) {
	feeds := newFakeFeeds()
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	event := nextEvent(t, events)
	require.NoError(t, event.Err)
	require.Empty(t, event.Snapshots)
}

func TestCombinatorOrdersByDueDateThenID(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	early := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{
		activeAssignment(9, late),
		activeAssignment(4, early),
		activeAssignment(3, early),
	}

	snapshots := waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 3 })
	require.Equal(t, uint(3), snapshots[0].Assignment.ID)
	require.Equal(t, uint(4), snapshots[1].Assignment.ID)
	require.Equal(t, uint(9), snapshots[2].Assignment.ID)
}

func TestCombinatorFiltersInvisibleAssignments(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	due := now.Add(240 * time.Hour)

	draft := activeAssignment(1, due)
	draft.Status = models.AssignmentStatusDraft
	archived := activeAssignment(2, due)
	archived.Status = models.AssignmentStatusArchived
	unpublished := activeAssignment(3, due)
	unpublished.PublishAt = &future
	visible := activeAssignment(4, due)
	completed := activeAssignment(5, due)
	completed.Status = models.AssignmentStatusCompleted

	feeds.assignments <- []models.Assignment{draft, archived, unpublished, visible, completed}

	snapshots := waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 2 })
	require.Equal(t, uint(4), snapshots[0].Assignment.ID)
	require.Equal(t, uint(5), snapshots[1].Assignment.ID)
}

func TestCombinatorFlagsGradeWithoutSubmission(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{activeAssignment(1, due)}
	feeds.grades <- []models.Grade{{ID: 5, AssignmentID: 1, StudentID: 7, Status: models.GradeStatusGraded}}

	snapshots := waitForSnapshots(t, events, func(s []Snapshot) bool {
		return len(s) == 1 && s[0].Grade != nil
	})
	require.Nil(t, snapshots[0].Submission)
	require.True(t, snapshots[0].Orphaned)
}

func TestCombinatorOutputIsDeterministicForSameCaches(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	list := []models.Assignment{activeAssignment(2, due), activeAssignment(1, due)}

	feeds.assignments <- list
	first := waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 2 })

	// Re-delivering identical cache state must reproduce the same ordering.
	feeds.assignments <- list
	second := waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 2 })

	require.Equal(t, first, second)
}

func TestCombinatorStopsAfterUnsubscribe(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{activeAssignment(1, due)}
	waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 1 })

	unsubscribe()

	// A source emitting after cancellation must not reach the consumer.
	feeds.assignments <- []models.Assignment{activeAssignment(2, due)}

	select {
	case event, ok := <-events:
		require.False(t, ok, "expected closed channel, got event: %+v", event)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("event channel was not closed after unsubscribe")
	}
}

func TestCombinatorPropagatesSourceFailure(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	events, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{activeAssignment(1, due)}
	waitForSnapshots(t, events, func(s []Snapshot) bool { return len(s) == 1 })

	// A closed feed channel signals source failure; the stream must end with
	// a terminal error rather than degrade to partial data.
	close(feeds.grades)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("channel closed without a terminal error event")
			}
			if event.Err != nil {
				require.ErrorIs(t, event.Err, ErrSourceUnavailable)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal error")
		}
	}
}

func TestCombinatorResubscribeCancelsPrevious(t *testing.T) {
	feeds := newFakeFeeds(1)
	c := newTestCombinator(feeds)

	first, _, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)

	second, unsubscribe, err := c.Subscribe(context.Background(), 7)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case _, ok := <-first:
		require.False(t, ok, "first subscription should be closed after resubscribe")
	case <-time.After(time.Second):
		t.Fatal("first subscription was not torn down")
	}

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	feeds.assignments <- []models.Assignment{activeAssignment(1, due)}
	waitForSnapshots(t, second, func(s []Snapshot) bool { return len(s) == 1 })
}

func TestCombinatorDirectoryFailure(t *testing.T) {
	feeds := newFakeFeeds(1)
	feeds.dirErr = errors.New("directory offline")
	c := newTestCombinator(feeds)

	_, _, err := c.Subscribe(context.Background(), 7)
	require.Error(t, err)
}
