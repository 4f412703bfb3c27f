package stream

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/models"
	"github.com/classpulse/classpulse-api/internal/repository"
)

// AssignmentFeed watches the assignments of a set of classes. The watch
// channel carries the full current list: an initial snapshot immediately,
// then a fresh query result after every relevant change on the bus.
type AssignmentFeed struct {
	repo   repository.AssignmentRepository
	bus    *Bus
	logger zerolog.Logger
}

// NewAssignmentFeed wires an assignment feed over the repository and bus.
func NewAssignmentFeed(repo repository.AssignmentRepository, bus *Bus, logger zerolog.Logger) *AssignmentFeed {
	return &AssignmentFeed{
		repo:   repo,
		bus:    bus,
		logger: logger.With().Str("component", "assignment_feed").Logger(),
	}
}

// Watch starts the feed. The channel closes when the context ends or a
// re-query fails; a close without cancellation signals source failure to the
// consumer.
func (f *AssignmentFeed) Watch(ctx context.Context, classIDs []uint) (<-chan []models.Assignment, error) {
	classSet := make(map[uint]struct{}, len(classIDs))
	for _, id := range classIDs {
		classSet[id] = struct{}{}
	}

	relevant := func(change Change) bool {
		if change.Entity != EntityAssignments {
			return false
		}
		if change.ClassID == 0 {
			return true
		}
		_, ok := classSet[change.ClassID]
		return ok
	}

	query := func(ctx context.Context) ([]models.Assignment, error) {
		return f.repo.ListByClasses(ctx, classIDs)
	}

	return watch(ctx, f.bus, f.logger, relevant, query)
}

// SubmissionFeed watches one student's current submissions.
type SubmissionFeed struct {
	repo   repository.SubmissionRepository
	bus    *Bus
	logger zerolog.Logger
}

// NewSubmissionFeed wires a submission feed over the repository and bus.
func NewSubmissionFeed(repo repository.SubmissionRepository, bus *Bus, logger zerolog.Logger) *SubmissionFeed {
	return &SubmissionFeed{
		repo:   repo,
		bus:    bus,
		logger: logger.With().Str("component", "submission_feed").Logger(),
	}
}

// Watch starts the feed for the student.
func (f *SubmissionFeed) Watch(ctx context.Context, studentID uint) (<-chan []models.Submission, error) {
	relevant := func(change Change) bool {
		if change.Entity != EntitySubmissions {
			return false
		}
		return change.StudentID == 0 || change.StudentID == studentID
	}

	query := func(ctx context.Context) ([]models.Submission, error) {
		return f.repo.ListCurrentByStudent(ctx, studentID)
	}

	return watch(ctx, f.bus, f.logger, relevant, query)
}

// GradeFeed watches one student's grades.
type GradeFeed struct {
	repo   repository.GradeRepository
	bus    *Bus
	logger zerolog.Logger
}

// NewGradeFeed wires a grade feed over the repository and bus.
func NewGradeFeed(repo repository.GradeRepository, bus *Bus, logger zerolog.Logger) *GradeFeed {
	return &GradeFeed{
		repo:   repo,
		bus:    bus,
		logger: logger.With().Str("component", "grade_feed").Logger(),
	}
}

// Watch starts the feed for the student.
func (f *GradeFeed) Watch(ctx context.Context, studentID uint) (<-chan []models.Grade, error) {
	relevant := func(change Change) bool {
		if change.Entity != EntityGrades {
			return false
		}
		return change.StudentID == 0 || change.StudentID == studentID
	}

	query := func(ctx context.Context) ([]models.Grade, error) {
		return f.repo.ListByStudent(ctx, studentID)
	}

	return watch(ctx, f.bus, f.logger, relevant, query)
}

// watch runs the shared feed loop: emit the initial list, then re-query and
// emit on every relevant bus change. The list is always re-read from the
// store so feeds never apply deltas out of order.
func watch[T any](ctx context.Context, bus *Bus, logger zerolog.Logger, relevant func(Change) bool, query func(context.Context) ([]T, error)) (<-chan []T, error) {
	// Subscribe before the initial read. A change committed while the query
	// runs lands in the subscriber buffer and triggers a refresh; querying
	// first would lose it and leave the feed stale until the next change.
	changes, unsubscribe := bus.Subscribe()

	initial, err := query(ctx)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan []T, 1)

	go func() {
		defer close(out)
		defer unsubscribe()

		select {
		case out <- initial:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				if !relevant(change) {
					continue
				}

				rows, err := query(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn().Err(err).Str("entity", string(change.Entity)).Msg("feed re-query failed, closing watch")
					}
					return
				}

				select {
				case out <- rows:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
