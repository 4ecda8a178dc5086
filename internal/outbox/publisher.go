package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	kafkainfra "orderhub/internal/infrastructure/kafka"
	"orderhub/internal/metrics"
	"orderhub/internal/repository/outbox_repo"
)

// Publisher drains pending outbox entries to the broker. It is the only
// component allowed to emit an event more than once: a crash after a broker
// ack but before the entry is marked sent causes a re-publish on restart,
// which consumers absorb through their processed-event records.
//
// A single publisher goroutine drains entries in creation order and stops a
// batch at the first broker failure, so events for one order are always
// appended in creation order.
type Publisher struct {
	outboxRepo   outbox_repo.OutboxRepository
	producer     kafkainfra.Producer
	pollInterval time.Duration
	batchSize    int
	backoffBase  time.Duration
	backoffCap   time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewPublisher(
	outboxRepo outbox_repo.OutboxRepository,
	producer kafkainfra.Producer,
	pollInterval time.Duration,
	batchSize int,
	backoffBase time.Duration,
	backoffCap time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Publisher {
	return &Publisher{
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		backoffBase:  backoffBase,
		backoffCap:   backoffCap,
		logger:       logger,
		metrics:      m,
	}
}

// Start runs the polling loop until the context is cancelled. Consecutive
// broker failures stretch the poll interval exponentially (base 500ms, cap
// 30s by configuration); any successful drain resets it. Retries are
// unbounded: a pending entry stays pending until the broker accepts it.
func (p *Publisher) Start(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.backoffBase
	bo.MaxInterval = p.backoffCap
	bo.MaxElapsedTime = 0
	bo.Reset()

	p.logger.Info("Outbox publisher started", zap.Duration("poll_interval", p.pollInterval))

	wait := p.pollInterval
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped.")
			return
		case <-time.After(wait):
			if err := p.DrainOnce(ctx); err != nil {
				wait = bo.NextBackOff()
				p.logger.Warn("Outbox drain failed, backing off",
					zap.Duration("backoff", wait),
					zap.Error(err))
			} else {
				bo.Reset()
				wait = p.pollInterval
			}
		}
	}
}

// DrainOnce publishes one batch of pending entries. It returns an error only
// for broker or store failures that should trigger backoff; an empty outbox
// is a normal result.
func (p *Publisher) DrainOnce(ctx context.Context) error {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.OutboxDrainLatency)
		defer timer.ObserveDuration()
	}

	entries, err := p.outboxRepo.FetchPendingEntries(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	p.logger.Info("Draining pending outbox entries", zap.Int("count", len(entries)))

	for _, entry := range entries {
		if err := p.producer.Produce(ctx, entry.Topic, entry.Key, entry.Payload); err != nil {
			if p.metrics != nil {
				p.metrics.OutboxPublishFailures.Inc()
			}
			// Stop the batch: publishing later entries first would break
			// per-order ordering on the partition.
			return fmt.Errorf("failed to publish outbox entry %s: %w", entry.EventID, err)
		}
		if p.metrics != nil {
			p.metrics.OutboxEntriesPublished.Inc()
		}

		if err := p.outboxRepo.MarkEntrySentAndConfirmOrder(ctx, entry.EventID, entry.OrderID); err != nil {
			// The broker accepted the event but neither the SENT mark nor the
			// confirmation committed; the entry stays pending, so the next
			// drain re-publishes it and records both together. Consumers
			// absorb the duplicate.
			p.logger.Error("Failed to record publish, entry will be re-published",
				zap.String("event_id", entry.EventID),
				zap.String("order_id", entry.OrderID),
				zap.Error(err))
			return fmt.Errorf("failed to record publish of outbox entry %s: %w", entry.EventID, err)
		}

		p.logger.Debug("Outbox entry published and order confirmed",
			zap.String("event_id", entry.EventID),
			zap.String("order_id", entry.OrderID))
	}
	return nil
}
