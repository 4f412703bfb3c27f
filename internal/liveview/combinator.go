package liveview

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/observability"
)

// Combinator subscribes to the three entity feeds for one student and
// recombines them into ordered snapshot lists. A single goroutine owns the
// three caches; the feed goroutines only push into its update channel, so no
// two recombinations ever interleave their cache reads.
type Combinator struct {
	assignments AssignmentSource
	submissions SubmissionSource
	grades      GradeSource
	directory   StudentDirectory
	logger      zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	current *subscription
}

// NewCombinator wires a combinator over the given feeds.
func NewCombinator(assignments AssignmentSource, submissions SubmissionSource, grades GradeSource, directory StudentDirectory, logger zerolog.Logger) *Combinator {
	return &Combinator{
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		directory:   directory,
		logger:      logger.With().Str("component", "liveview_combinator").Logger(),
		now:         time.Now,
	}
}

type sourceKind int

const (
	kindAssignments sourceKind = iota
	kindSubmissions
	kindGrades
)

func (k sourceKind) String() string {
	switch k {
	case kindAssignments:
		return "assignments"
	case kindSubmissions:
		return "submissions"
	default:
		return "grades"
	}
}

type sourceUpdate struct {
	kind        sourceKind
	assignments []models.Assignment
	submissions []models.Submission
	grades      []models.Grade
	err         error
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe opens a live view for the student. It resolves enrollment once,
// starts the three feed watches concurrently, and returns a channel of
// events plus an unsubscribe function. A prior subscription on this
// combinator is fully cancelled before the new one starts, so two event
// loops never feed the same consumer.
//
// The event channel has capacity one and sends conflate: when the consumer
// lags, a stale list is replaced by the newer one. Consumers therefore always
// observe the latest consistent state and the loop never blocks.
func (c *Combinator) Subscribe(ctx context.Context, studentID uint) (<-chan Event, func(), error) {
	c.mu.Lock()
	if prev := c.current; prev != nil {
		prev.cancel()
		<-prev.done
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	c.current = sub
	c.mu.Unlock()

	classIDs, err := c.directory.EnrolledClassIDs(subCtx, studentID)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, nil, fmt.Errorf("failed to resolve enrollment for student %d: %w", studentID, err)
	}

	out := make(chan Event, 1)

	// A student with no classes has a legitimately empty view. Emit it once
	// so the consumer is not left waiting for a first value that never comes.
	if len(classIDs) == 0 {
		c.logger.Debug().Uint("student_id", studentID).Msg("student has no enrolled classes")
		out <- Event{Snapshots: []Snapshot{}}
		go func() {
			defer close(sub.done)
			defer close(out)
			<-subCtx.Done()
		}()
		return out, c.unsubscribeFunc(sub), nil
	}

	assignmentCh, err := c.assignments.Watch(subCtx, classIDs)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, nil, fmt.Errorf("%w: assignments: %v", ErrSourceUnavailable, err)
	}
	submissionCh, err := c.submissions.Watch(subCtx, studentID)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, nil, fmt.Errorf("%w: submissions: %v", ErrSourceUnavailable, err)
	}
	gradeCh, err := c.grades.Watch(subCtx, studentID)
	if err != nil {
		cancel()
		close(sub.done)
		return nil, nil, fmt.Errorf("%w: grades: %v", ErrSourceUnavailable, err)
	}

	updates := make(chan sourceUpdate, 3)

	go forward(subCtx, updates, assignmentCh, func(v []models.Assignment) sourceUpdate {
		return sourceUpdate{kind: kindAssignments, assignments: v}
	})
	go forward(subCtx, updates, submissionCh, func(v []models.Submission) sourceUpdate {
		return sourceUpdate{kind: kindSubmissions, submissions: v}
	})
	go forward(subCtx, updates, gradeCh, func(v []models.Grade) sourceUpdate {
		return sourceUpdate{kind: kindGrades, grades: v}
	})

	go c.run(subCtx, sub, studentID, updates, out)

	return out, c.unsubscribeFunc(sub), nil
}

// unsubscribeFunc cancels the subscription and waits for the event loop to
// wind down. Teardown of the feed watches is initiated synchronously via
// context cancellation; the watches themselves may finish asynchronously.
func (c *Combinator) unsubscribeFunc(sub *subscription) func() {
	return func() {
		sub.cancel()
		<-sub.done

		c.mu.Lock()
		if c.current == sub {
			c.current = nil
		}
		c.mu.Unlock()
	}
}

// forward drains one feed channel into the shared update channel. A closed
// feed channel without a prior context cancellation means the source died.
func forward[T any](ctx context.Context, updates chan<- sourceUpdate, ch <-chan []T, wrap func([]T) sourceUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case value, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					select {
					case updates <- sourceUpdate{err: ErrSourceUnavailable}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case updates <- wrap(value):
			case <-ctx.Done():
				return
			}
		}
	}
}

// run is the single-owner event loop. It alone reads and writes the three
// caches, replacing each wholesale on every inbound update and recombining
// afterwards. Nothing is emitted until the assignment cache is primed: a
// partial view must not masquerade as an empty one.
func (c *Combinator) run(ctx context.Context, sub *subscription, studentID uint, updates <-chan sourceUpdate, out chan Event) {
	defer close(sub.done)
	defer close(out)

	observability.LiveViewSubscriptionsActive().Inc()
	defer observability.LiveViewSubscriptionsActive().Dec()

	var (
		latestAssignments []models.Assignment
		assignmentsPrimed bool
		submissionsByID   map[uint]models.Submission
		gradesByID        map[uint]models.Grade
	)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if ctx.Err() != nil {
				return
			}

			if update.err != nil {
				c.logger.Warn().Err(update.err).Uint("student_id", studentID).Msg("live view source failed, terminating stream")
				c.deliver(ctx, out, Event{Err: update.err})
				return
			}

			switch update.kind {
			case kindAssignments:
				latestAssignments = update.assignments
				assignmentsPrimed = true
			case kindSubmissions:
				submissionsByID = indexSubmissions(update.submissions)
			case kindGrades:
				gradesByID = indexGrades(update.grades)
			}

			if !assignmentsPrimed {
				continue
			}

			snapshots := c.combine(latestAssignments, submissionsByID, gradesByID)
			observability.LiveViewRecombinations().Inc()
			c.deliver(ctx, out, Event{Snapshots: snapshots})
		}
	}
}

// deliver performs a conflating, non-blocking send: with the buffer full the
// stale event is dropped in favor of the newer one.
func (c *Combinator) deliver(ctx context.Context, out chan Event, event Event) {
	if ctx.Err() != nil {
		return
	}

	select {
	case out <- event:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- event:
		default:
		}
	}

	if event.Err == nil {
		observability.LiveViewSnapshotsEmitted().Add(float64(len(event.Snapshots)))
	}
}

// combine builds one snapshot per visible assignment, pairing it with the
// student's current submission and grade by assignment id, then orders the
// result by due date ascending with assignment id as the tie-break. The sort
// is recomputed from scratch on every emission.
func (c *Combinator) combine(assignments []models.Assignment, submissions map[uint]models.Submission, grades map[uint]models.Grade) []Snapshot {
	now := c.now()
	snapshots := make([]Snapshot, 0, len(assignments))

	for _, assignment := range assignments {
		if !assignment.Visible(now) {
			continue
		}

		snapshot := Snapshot{Assignment: assignment}
		if submission, ok := submissions[assignment.ID]; ok {
			s := submission
			snapshot.Submission = &s
		}
		if grade, ok := grades[assignment.ID]; ok {
			g := grade
			snapshot.Grade = &g
			snapshot.Orphaned = snapshot.Submission == nil
		}

		snapshots = append(snapshots, snapshot)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		a, b := snapshots[i].Assignment, snapshots[j].Assignment
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})

	return snapshots
}

func indexSubmissions(submissions []models.Submission) map[uint]models.Submission {
	byID := make(map[uint]models.Submission, len(submissions))
	for _, submission := range submissions {
		if submission.Superseded {
			continue
		}
		byID[submission.AssignmentID] = submission
	}
	return byID
}

func indexGrades(grades []models.Grade) map[uint]models.Grade {
	byID := make(map[uint]models.Grade, len(grades))
	for _, grade := range grades {
		byID[grade.AssignmentID] = grade
	}
	return byID
}
