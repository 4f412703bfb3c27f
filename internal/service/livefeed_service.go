package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/dto"
	"github.com/classpulse/classpulse-api/internal/liveview"
	"github.com/classpulse/classpulse-api/internal/observability"
)

const feedKeepaliveInterval = 30 * time.Second

// ErrFeedTimeout indicates no snapshot arrived within the view deadline.
var ErrFeedTimeout = errors.New("timed out waiting for live view snapshot")

// FeedConnectionOptions wraps metadata extracted during the HTTP upgrade.
type FeedConnectionOptions struct {
	StudentID     uint
	SortOrder     string
	CorrelationID string
	Context       context.Context
}

// LiveFeedService streams combined assignment views over websockets and
// serves one-shot snapshots for plain HTTP consumers.
type LiveFeedService interface {
	ServeConnection(conn *websocket.Conn, opts FeedConnectionOptions)
	View(ctx context.Context, studentID uint, sort string) (dto.FeedPartitionResponse, error)
}

type liveFeedService struct {
	assignments liveview.AssignmentSource
	submissions liveview.SubmissionSource
	grades      liveview.GradeSource
	directory   liveview.StudentDirectory
	logger      zerolog.Logger
	now         func() time.Time
	viewTimeout time.Duration
}

// NewLiveFeedService wires the feed service over the entity sources.
func NewLiveFeedService(assignments liveview.AssignmentSource, submissions liveview.SubmissionSource, grades liveview.GradeSource, directory liveview.StudentDirectory, logger zerolog.Logger) LiveFeedService {
	return &liveFeedService{
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		directory:   directory,
		logger:      logger.With().Str("component", "livefeed_service").Logger(),
		now:         time.Now,
		viewTimeout: 5 * time.Second,
	}
}

// newCombinator builds a fresh combinator. Each connection owns one; the
// combinator's single-subscription semantics make sharing across consumers a
// correctness hazard, not an optimization.
func (s *liveFeedService) newCombinator() *liveview.Combinator {
	return liveview.NewCombinator(s.assignments, s.submissions, s.grades, s.directory, s.logger)
}

// ServeConnection runs one websocket session. It subscribes the student's
// live view, forwards each combined event as a JSON frame, and tears the
// subscription down when the client goes away. Blocks until the session ends.
func (s *liveFeedService) ServeConnection(conn *websocket.Conn, opts FeedConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	events, unsubscribe, err := s.newCombinator().Subscribe(ctx, opts.StudentID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", opts.StudentID).Msg("live feed subscription failed")
		_ = conn.WriteJSON(dto.FeedEventResponse{Error: err.Error(), SentAt: s.now().UTC()})
		_ = conn.Close()
		return
	}
	defer unsubscribe()

	observability.FeedConnectionsTotal().Inc()
	s.logger.Debug().Uint("student_id", opts.StudentID).Str("correlation_id", opts.CorrelationID).Msg("live feed client connected")

	order := liveview.NormalizeSortOrder(opts.SortOrder)

	var once sync.Once
	closeConn := func() {
		once.Do(func() {
			cancel()
			_ = conn.Close()
		})
	}

	// Reader exists to observe the close handshake; inbound frames carry no
	// protocol.
	go func() {
		defer closeConn()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer closeConn()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			frame := s.buildFrame(event, order)
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Debug().Err(err).Msg("live feed write loop terminated")
				return
			}

			if event.Err != nil {
				return
			}
		case <-time.After(feedKeepaliveInterval):
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("live feed ping failed")
				return
			}
		}
	}
}

func (s *liveFeedService) buildFrame(event liveview.Event, order liveview.SortOrder) dto.FeedEventResponse {
	now := s.now().UTC()

	if event.Err != nil {
		return dto.FeedEventResponse{Error: event.Err.Error(), SentAt: now}
	}

	sorted := liveview.SortSnapshots(event.Snapshots, order, now)
	return dto.FeedEventResponse{
		Snapshots: dto.NewFeedSnapshotResponseSlice(sorted, now),
		SentAt:    now,
	}
}

// View produces a one-shot partitioned snapshot of the student's current
// standing by opening a short-lived subscription and taking its first event.
func (s *liveFeedService) View(ctx context.Context, studentID uint, sort string) (dto.FeedPartitionResponse, error) {
	viewCtx, cancel := context.WithTimeout(ctx, s.viewTimeout)
	defer cancel()

	events, unsubscribe, err := s.newCombinator().Subscribe(viewCtx, studentID)
	if err != nil {
		return dto.FeedPartitionResponse{}, err
	}
	defer unsubscribe()

	select {
	case event, ok := <-events:
		if !ok {
			return dto.FeedPartitionResponse{}, ErrFeedTimeout
		}
		if event.Err != nil {
			return dto.FeedPartitionResponse{}, event.Err
		}

		now := s.now().UTC()
		order := liveview.NormalizeSortOrder(sort)
		sorted := liveview.SortSnapshots(event.Snapshots, order, now)
		return dto.NewFeedPartitionResponse(sorted, now), nil
	case <-viewCtx.Done():
		return dto.FeedPartitionResponse{}, ErrFeedTimeout
	}
}
