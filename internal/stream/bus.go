// Package stream carries entity change notifications between API nodes. A
// write anywhere in the cluster reaches every node's live views through the
// bus; within one node the dispatch is in-process and broker-free.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const subscriberBufferSize = 16

// Entity identifies which table a change touched.
type Entity string

// Entities carried on the bus.
const (
	EntityAssignments Entity = "assignments"
	EntitySubmissions Entity = "submissions"
	EntityGrades      Entity = "grades"
)

// Change is one entity mutation. ClassID and StudentID are routing hints;
// zero means the change is not scoped to that dimension and every watcher of
// the entity should refresh.
type Change struct {
	Source     string    `json:"source"`
	Entity     Entity    `json:"entity"`
	ClassID    uint      `json:"class_id,omitempty"`
	StudentID  uint      `json:"student_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Bus publishes changes to redis pub/sub and NATS and fans inbound changes
// out to local subscribers. Either broker may be nil; with both nil the bus
// still dispatches locally.
type Bus struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string

	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

// NewBus wires a change bus over the given brokers. channelBase namespaces
// the redis channel and NATS subject, matching the rest of the deployment.
func NewBus(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *Bus {
	streamChannel := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":changes"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".changes"
	}

	return &Bus{
		redis:       redisClient,
		redisStream: streamChannel,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "change_bus").Logger(),
		nodeID:      uuid.NewString(),
		subs:        make(map[chan Change]struct{}),
	}
}

// Start launches the broker consumers. Safe to skip when no broker is
// configured.
func (b *Bus) Start(ctx context.Context) {
	if b.redis != nil && b.redisStream != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Publish stamps the change and delivers it locally, then to the brokers.
// Broker failures are logged, not returned: the local dispatch already
// happened and the write that triggered the change has committed.
func (b *Bus) Publish(ctx context.Context, change Change) {
	change.Source = b.nodeID
	if change.OccurredAt.IsZero() {
		change.OccurredAt = time.Now().UTC()
	}

	b.dispatch(change)

	payload, err := json.Marshal(change)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal change event")
		return
	}

	if b.redis != nil && b.redisStream != "" {
		if err := b.redis.Publish(ctx, b.redisStream, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Str("entity", string(change.Entity)).Msg("failed to publish change to redis")
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Str("entity", string(change.Entity)).Msg("failed to publish change to nats")
		}
	}
}

// Subscribe registers a local listener. The returned cancel must be called
// exactly once; afterwards the channel is closed.
func (b *Bus) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBufferSize)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

func (b *Bus) dispatch(change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.logger.Warn().Str("entity", string(change.Entity)).Msg("dropping change for slow subscriber")
		}
	}
}

func (b *Bus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("change redis subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *Bus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, "classpulse-changes", func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats change subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain change nats subscription")
		}
	}()
}

func (b *Bus) handleEvent(data []byte) {
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		b.logger.Warn().Err(err).Msg("invalid change event")
		return
	}

	if change.Source == b.nodeID {
		return
	}

	b.dispatch(change)
}
