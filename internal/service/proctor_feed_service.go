package service

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

	"github.com/codecourt/codecourt-api/internal/observability"
)

const feedBufferSize = 16

// ProctorEventType labels what happened in a proctoring session.
type ProctorEventType string

const (
	// ProctorEventSessionStarted is emitted when a student opens a session.
	ProctorEventSessionStarted ProctorEventType = "session_started"
	// ProctorEventViolation is emitted for each recorded violation.
	ProctorEventViolation ProctorEventType = "violation"
	// ProctorEventSessionLocked is emitted when a session gets locked.
	ProctorEventSessionLocked ProctorEventType = "session_locked"
	// ProctorEventSessionUnlocked is emitted when an admin unlocks a session.
	ProctorEventSessionUnlocked ProctorEventType = "session_unlocked"
	// ProctorEventSessionEnded is emitted when a session ends normally.
	ProctorEventSessionEnded ProctorEventType = "session_ended"
	// ProctorEventSubmissionGraded is emitted when grading reaches a verdict.
	ProctorEventSubmissionGraded ProctorEventType = "submission_graded"
)

// ProctorEvent is one entry on an assignment's live monitoring feed.
type ProctorEvent struct {
	Type           ProctorEventType `json:"type"`
	StudentID      uint             `json:"student_id"`
	AssignmentID   uint             `json:"assignment_id"`
	ViolationType  string           `json:"violation_type,omitempty"`
	Severity       string           `json:"severity,omitempty"`
	ViolationCount int              `json:"violation_count,omitempty"`
	SubmissionID   uint             `json:"submission_id,omitempty"`
	Status         string           `json:"status,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// ProctorFeedPublisher is the write side of the live feed.
type ProctorFeedPublisher interface {
	Publish(ctx context.Context, event ProctorEvent) error
}

// ProctorFeedService fans proctoring events out to SSE subscribers. Events
// are mirrored through redis and NATS so every API node sees every event.
type ProctorFeedService interface {
	ProctorFeedPublisher
	Subscribe(assignmentID uint) (<-chan ProctorEvent, func())
	Start(ctx context.Context)
}

type proctorFeedService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *proctorFeedBroker
	nodeID      string
}

type proctorFeedEnvelope struct {
	Source string       `json:"source"`
	Event  ProctorEvent `json:"event"`
	SentAt time.Time    `json:"sent_at"`
}

type proctorFeedBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan ProctorEvent]struct{}
}

// NewProctorFeedService constructs the live feed service. Both redis and NATS
// are optional; with neither the feed still works within a single node.
func NewProctorFeedService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ProctorFeedService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":proctor"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".proctor"
	}

	return &proctorFeedService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "proctor_feed_service").Logger(),
		broker: &proctorFeedBroker{
			subscribers: make(map[uint]map[chan ProctorEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *proctorFeedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *proctorFeedService) Publish(ctx context.Context, event ProctorEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	observability.ProctorEventsTotal().WithLabelValues(string(event.Type)).Inc()
	if event.Type == ProctorEventSessionLocked {
		observability.SessionsLockedTotal().Inc()
	}

	s.broker.broadcast(event.AssignmentID, event)

	envelope := proctorFeedEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *proctorFeedService) Subscribe(assignmentID uint) (<-chan ProctorEvent, func()) {
	channel := make(chan ProctorEvent, feedBufferSize)

	s.broker.subscribe(assignmentID, channel)
	observability.SSEClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(assignmentID, channel)
		observability.SSEClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *proctorFeedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("proctor feed redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *proctorFeedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "codecourt-proctor", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats proctor subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain proctor nats subscription")
		}
	}()
}

func (s *proctorFeedService) handleEnvelope(payload []byte) {
	var envelope proctorFeedEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid proctor feed payload")
		return
	}

	// Locally published events were already delivered by Publish.
	if envelope.Source == s.nodeID {
		return
	}

	s.broker.broadcast(envelope.Event.AssignmentID, envelope.Event)
}

func (b *proctorFeedBroker) subscribe(assignmentID uint, ch chan ProctorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[assignmentID]; !exists {
		b.subscribers[assignmentID] = make(map[chan ProctorEvent]struct{})
	}
	b.subscribers[assignmentID][ch] = struct{}{}
}

func (b *proctorFeedBroker) unsubscribe(assignmentID uint, ch chan ProctorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[assignmentID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, assignmentID)
		}
	}
}

func (b *proctorFeedBroker) broadcast(assignmentID uint, event ProctorEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[assignmentID]
	for ch := range subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
