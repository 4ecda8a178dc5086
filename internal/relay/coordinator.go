package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/metrics"
	"orderhub/internal/repository/deadletter_repo"
)

// DeliveryState tracks one in-flight event through the coordinator.
// PENDING -> PROCESSING -> {ACKED | RETRY_SCHEDULED -> PROCESSING | DEAD_LETTERED}
type DeliveryState string

const (
	StatePending        DeliveryState = "PENDING"
	StateProcessing     DeliveryState = "PROCESSING"
	StateRetryScheduled DeliveryState = "RETRY_SCHEDULED"
	StateAcked          DeliveryState = "ACKED"
	StateDeadLettered   DeliveryState = "DEAD_LETTERED"
)

// EventHandler applies one consumer's effect. A nil return means the effect
// is durably applied; ErrDuplicateDelivery means a previous delivery already
// applied it; a PermanentError is never retried; any other error is treated
// as transient.
type EventHandler func(ctx context.Context, event *domain.OrderCreatedEvent) error

type Delivery struct {
	EventID       string
	ConsumerGroup string
	State         DeliveryState
	Attempts      int
	LastError     string
}

// Coordinator drives an event through its handler with a bounded retry
// budget. Budget exhaustion or a permanent failure routes the event to the
// dead-letter sink; only then does the coordinator report success so the
// partition offset can advance. A crash mid-delivery leaves the offset
// uncommitted and the event is redelivered.
type Coordinator struct {
	group       string
	handler     EventHandler
	deadLetters deadletter_repo.DeadLetterRepository
	retryBudget int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewCoordinator(
	group string,
	handler EventHandler,
	deadLetters deadletter_repo.DeadLetterRepository,
	retryBudget int,
	backoffBase time.Duration,
	backoffCap time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Coordinator {
	if retryBudget <= 0 {
		retryBudget = 5
	}
	return &Coordinator{
		group:       group,
		handler:     handler,
		deadLetters: deadLetters,
		retryBudget: retryBudget,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      logger,
		metrics:     m,
	}
}

// HandleMessage adapts the coordinator to the Kafka consumer loop. A nil
// return commits the offset. Messages whose payload cannot be decoded are
// dead-lettered immediately; redelivering them could never succeed.
func (c *Coordinator) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := domain.UnmarshalOrderCreatedEvent(msg.Value)
	if err != nil || event.EventID == "" {
		if err == nil {
			err = errors.New("event is missing event_id")
		}
		c.logger.Error("Undecodable event payload, routing to dead-letter sink",
			zap.String("key", string(msg.Key)),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return c.deadLetter(ctx, string(msg.Key), msg.Value, 1, err)
	}
	return c.Deliver(ctx, event, msg.Value)
}

// Deliver runs the retry loop for one event. The returned error is nil
// exactly when the event reached a terminal state (ACKED or DEAD_LETTERED)
// and the offset may be committed.
func (c *Coordinator) Deliver(ctx context.Context, event *domain.OrderCreatedEvent, raw []byte) error {
	delivery := &Delivery{
		EventID:       event.EventID,
		ConsumerGroup: c.group,
		State:         StatePending,
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffBase
	bo.MaxInterval = c.backoffCap
	bo.MaxElapsedTime = 0

	for delivery.Attempts < c.retryBudget {
		delivery.Attempts++
		delivery.State = StateProcessing

		start := time.Now()
		err := c.handler(ctx, event)
		if c.metrics != nil {
			c.metrics.HandlerLatency.WithLabelValues(c.group).Observe(time.Since(start).Seconds())
		}

		switch {
		case err == nil:
			delivery.State = StateAcked
			if c.metrics != nil {
				c.metrics.EventsProcessed.WithLabelValues(c.group).Inc()
			}
			c.logger.Info("Event processed",
				zap.String("event_id", event.EventID),
				zap.String("order_id", event.OrderID),
				zap.Int("attempts", delivery.Attempts))
			return nil

		case errors.Is(err, ErrDuplicateDelivery):
			delivery.State = StateAcked
			if c.metrics != nil {
				c.metrics.EventsDuplicate.WithLabelValues(c.group).Inc()
			}
			c.logger.Info("Duplicate delivery acknowledged as no-op",
				zap.String("event_id", event.EventID),
				zap.String("order_id", event.OrderID))
			return nil

		case IsPermanent(err):
			delivery.LastError = err.Error()
			c.logger.Error("Permanent handler failure, not retrying",
				zap.String("event_id", event.EventID),
				zap.Int("attempts", delivery.Attempts),
				zap.Error(err))
			return c.deadLetter(ctx, event.EventID, raw, delivery.Attempts, err)

		case ctx.Err() != nil:
			// Shutdown mid-delivery: leave the offset uncommitted so the
			// event is redelivered rather than silently lost.
			return ctx.Err()

		default:
			delivery.LastError = err.Error()
			if c.metrics != nil {
				c.metrics.EventsRetried.WithLabelValues(c.group).Inc()
			}
			if delivery.Attempts >= c.retryBudget {
				c.logger.Error("Retry budget exhausted",
					zap.String("event_id", event.EventID),
					zap.Int("attempts", delivery.Attempts),
					zap.Error(err))
				return c.deadLetter(ctx, event.EventID, raw, delivery.Attempts, err)
			}

			delivery.State = StateRetryScheduled
			wait := bo.NextBackOff()
			c.logger.Warn("Transient handler failure, retry scheduled",
				zap.String("event_id", event.EventID),
				zap.Int("attempt", delivery.Attempts),
				zap.Duration("backoff", wait),
				zap.Error(err))

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Unreachable: the loop always returns from a terminal branch.
	return fmt.Errorf("delivery of event %s ended in state %s", event.EventID, delivery.State)
}

func (c *Coordinator) deadLetter(ctx context.Context, eventID string, payload []byte, attempts int, cause error) error {
	letter := &domain.DeadLetter{
		EventID:       eventID,
		ConsumerGroup: c.group,
		LastError:     cause.Error(),
		Attempts:      attempts,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
	if err := c.deadLetters.Append(ctx, letter); err != nil {
		// The sink write failed, so the event's terminal record does not
		// exist yet. Keeping the offset uncommitted forces redelivery
		// instead of losing the event.
		return fmt.Errorf("failed to dead-letter event %s: %w", eventID, err)
	}
	if c.metrics != nil {
		c.metrics.EventsDeadLetter.WithLabelValues(c.group).Inc()
	}
	return nil
}
