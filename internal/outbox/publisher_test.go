package outbox

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderhub/internal/domain"
)

// fakeOutboxRepo mirrors the transactional repository: the SENT mark and the
// order confirmation either both happen or neither does.
type fakeOutboxRepo struct {
	entries      []*domain.OutboxEntry
	orderStatus  map[string]domain.OrderStatus
	confirmFails int
}

func newFakeOutboxRepo(entries ...*domain.OutboxEntry) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		entries:     entries,
		orderStatus: make(map[string]domain.OrderStatus),
	}
}

func (r *fakeOutboxRepo) FetchPendingEntries(_ context.Context, limit int) ([]*domain.OutboxEntry, error) {
	var pending []*domain.OutboxEntry
	for _, entry := range r.entries {
		if entry.Status == domain.OutboxStatusPending {
			pending = append(pending, entry)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (r *fakeOutboxRepo) MarkEntrySentAndConfirmOrder(_ context.Context, eventID, orderID string) error {
	if r.confirmFails > 0 {
		r.confirmFails--
		return errors.New("tx rolled back")
	}
	for _, entry := range r.entries {
		if entry.EventID == eventID {
			now := time.Now()
			entry.Status = domain.OutboxStatusSent
			entry.SentAt = &now
			r.orderStatus[orderID] = domain.OrderStatusConfirmed
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeProducer struct {
	published []string // event keys in publish order
	failUntil int      // produce calls that fail before succeeding
	calls     int
}

func (p *fakeProducer) Produce(_ context.Context, _ string, key string, _ []byte) error {
	p.calls++
	if p.calls <= p.failUntil {
		return errors.New("broker unreachable")
	}
	p.published = append(p.published, key)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func pendingEntry(eventID, orderID string, createdAt time.Time) *domain.OutboxEntry {
	return &domain.OutboxEntry{
		EventID:   eventID,
		OrderID:   orderID,
		Topic:     domain.OrderTopic,
		Key:       orderID,
		Payload:   []byte(`{}`),
		Status:    domain.OutboxStatusPending,
		CreatedAt: createdAt,
	}
}

func newTestPublisher(outboxRepo *fakeOutboxRepo, producer *fakeProducer) *Publisher {
	return NewPublisher(outboxRepo, producer,
		time.Millisecond, 100, time.Millisecond, 10*time.Millisecond, zap.NewNop(), nil)
}

func TestDrainOnce_PublishesMarksSentAndConfirms(t *testing.T) {
	now := time.Now()
	outboxRepo := newFakeOutboxRepo(
		pendingEntry("evt-1", "ORD1", now),
		pendingEntry("evt-2", "ORD2", now.Add(time.Millisecond)),
	)
	producer := &fakeProducer{}

	publisher := newTestPublisher(outboxRepo, producer)
	require.NoError(t, publisher.DrainOnce(context.Background()))

	assert.Equal(t, []string{"ORD1", "ORD2"}, producer.published)
	for _, entry := range outboxRepo.entries {
		assert.Equal(t, domain.OutboxStatusSent, entry.Status)
		assert.NotNil(t, entry.SentAt)
	}
	assert.Equal(t, domain.OrderStatusConfirmed, outboxRepo.orderStatus["ORD1"])
	assert.Equal(t, domain.OrderStatusConfirmed, outboxRepo.orderStatus["ORD2"])
}

func TestDrainOnce_BrokerFailureLeavesEntriesPending(t *testing.T) {
	outboxRepo := newFakeOutboxRepo(pendingEntry("evt-1", "ORD1", time.Now()))
	producer := &fakeProducer{failUntil: 1}

	publisher := newTestPublisher(outboxRepo, producer)
	assert.Error(t, publisher.DrainOnce(context.Background()))
	assert.Equal(t, domain.OutboxStatusPending, outboxRepo.entries[0].Status)
	assert.Empty(t, outboxRepo.orderStatus)

	// The next drain finds the same entry and publishes it.
	require.NoError(t, publisher.DrainOnce(context.Background()))
	assert.Equal(t, []string{"ORD1"}, producer.published)
	assert.Equal(t, domain.OutboxStatusSent, outboxRepo.entries[0].Status)
	assert.Equal(t, domain.OrderStatusConfirmed, outboxRepo.orderStatus["ORD1"])
}

func TestDrainOnce_ConfirmFailureKeepsEntryPending(t *testing.T) {
	outboxRepo := newFakeOutboxRepo(pendingEntry("evt-1", "ORD1", time.Now()))
	outboxRepo.confirmFails = 1
	producer := &fakeProducer{}

	publisher := newTestPublisher(outboxRepo, producer)

	// The broker accepts the event but recording the publish fails; nothing
	// partial may stick: the entry stays pending and the order unconfirmed.
	assert.Error(t, publisher.DrainOnce(context.Background()))
	assert.Equal(t, domain.OutboxStatusPending, outboxRepo.entries[0].Status)
	assert.Empty(t, outboxRepo.orderStatus)

	// The next drain re-publishes the entry (consumers dedup it) and this
	// time records the SENT mark and the confirmation together, so the order
	// always reaches CONFIRMED once its event is out.
	require.NoError(t, publisher.DrainOnce(context.Background()))
	assert.Equal(t, []string{"ORD1", "ORD1"}, producer.published)
	assert.Equal(t, domain.OutboxStatusSent, outboxRepo.entries[0].Status)
	assert.Equal(t, domain.OrderStatusConfirmed, outboxRepo.orderStatus["ORD1"])
}

func TestDrainOnce_StopsBatchOnFirstFailure(t *testing.T) {
	now := time.Now()
	outboxRepo := newFakeOutboxRepo(
		pendingEntry("evt-1", "ORD1", now),
		pendingEntry("evt-2", "ORD1", now.Add(time.Millisecond)),
	)
	producer := &fakeProducer{failUntil: 1}

	publisher := newTestPublisher(outboxRepo, producer)
	assert.Error(t, publisher.DrainOnce(context.Background()))

	// Neither event was published, so the second drain replays both in
	// creation order and per-order ordering is preserved.
	require.NoError(t, publisher.DrainOnce(context.Background()))
	assert.Equal(t, []string{"ORD1", "ORD1"}, producer.published)
	assert.Equal(t, domain.OutboxStatusSent, outboxRepo.entries[0].Status)
	assert.Equal(t, domain.OutboxStatusSent, outboxRepo.entries[1].Status)
}

func TestDrainOnce_RecoversAfterRestart(t *testing.T) {
	// An entry committed before a crash is still pending on restart; a fresh
	// publisher finds and publishes it exactly once.
	outboxRepo := newFakeOutboxRepo(pendingEntry("evt-1", "ORD1", time.Now()))
	producer := &fakeProducer{}

	publisher := newTestPublisher(outboxRepo, producer)
	require.NoError(t, publisher.DrainOnce(context.Background()))
	require.NoError(t, publisher.DrainOnce(context.Background()))

	assert.Equal(t, []string{"ORD1"}, producer.published)
}

func TestDrainOnce_EmptyOutboxIsNoop(t *testing.T) {
	outboxRepo := newFakeOutboxRepo()
	producer := &fakeProducer{}

	publisher := newTestPublisher(outboxRepo, producer)
	assert.NoError(t, publisher.DrainOnce(context.Background()))
	assert.Empty(t, producer.published)
}
