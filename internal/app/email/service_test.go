package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/relay"
	"orderhub/internal/repository/inbox_repo"
)

type fakeSender struct {
	sent    []string // recipient per send
	failure error
}

func (s *fakeSender) Send(to, _, _ string) error {
	if s.failure != nil {
		return s.failure
	}
	s.sent = append(s.sent, to)
	return nil
}

type fakeProcessedRepo struct {
	records  map[string]bool
	markFail error
}

func newFakeProcessedRepo() *fakeProcessedRepo {
	return &fakeProcessedRepo{records: make(map[string]bool)}
}

func (r *fakeProcessedRepo) IsProcessed(_ context.Context, consumerGroup, eventID string) (bool, error) {
	return r.records[consumerGroup+"/"+eventID], nil
}

func (r *fakeProcessedRepo) MarkProcessed(_ context.Context, consumerGroup, eventID string) error {
	if r.markFail != nil {
		return r.markFail
	}
	key := consumerGroup + "/" + eventID
	if r.records[key] {
		return inbox_repo.ErrAlreadyProcessed
	}
	r.records[key] = true
	return nil
}

func (r *fakeProcessedRepo) PruneOlderThan(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

func confirmationEvent(eventID, to string) *domain.OrderCreatedEvent {
	return &domain.OrderCreatedEvent{
		EventID:  eventID,
		OrderID:  "ORD123",
		Product:  "Laptop",
		Quantity: 2,
		Email:    to,
	}
}

func TestHandleOrderCreated_SendsOneConfirmation(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())

	require.NoError(t, service.HandleOrderCreated(context.Background(), confirmationEvent("evt-1", "a@b.com")))
	assert.Equal(t, []string{"a@b.com"}, sender.sent)
}

func TestHandleOrderCreated_DuplicateDeliverySendsNothing(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())

	event := confirmationEvent("evt-1", "a@b.com")
	require.NoError(t, service.HandleOrderCreated(context.Background(), event))

	err := service.HandleOrderCreated(context.Background(), event)
	assert.ErrorIs(t, err, relay.ErrDuplicateDelivery)
	// At most one confirmation email per event.
	assert.Equal(t, []string{"a@b.com"}, sender.sent)
}

func TestHandleOrderCreated_InvalidAddressIsPermanent(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())

	err := service.HandleOrderCreated(context.Background(), confirmationEvent("evt-1", "not an address"))
	require.Error(t, err)
	assert.True(t, relay.IsPermanent(err))
	// A malformed address never reaches the SMTP gateway.
	assert.Empty(t, sender.sent)
}

func TestHandleOrderCreated_TransportFailureIsTransient(t *testing.T) {
	sender := &fakeSender{failure: errors.New("smtp connection refused")}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())

	err := service.HandleOrderCreated(context.Background(), confirmationEvent("evt-1", "a@b.com"))
	require.Error(t, err)
	assert.False(t, relay.IsPermanent(err))
}

func TestHandleOrderCreated_ConcurrentRecordWinnerIsDuplicate(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())

	// Another delivery records the event between the check and the send.
	processed.markFail = inbox_repo.ErrAlreadyProcessed

	err := service.HandleOrderCreated(context.Background(), confirmationEvent("evt-1", "a@b.com"))
	assert.ErrorIs(t, err, relay.ErrDuplicateDelivery)
}

// Through the coordinator: a permanently bad address is dead-lettered on the
// first attempt without ever reaching the SMTP gateway.
func TestEmailConsumer_InvalidAddressDeadLettersImmediately(t *testing.T) {
	sender := &fakeSender{}
	processed := newFakeProcessedRepo()
	service := NewService(sender, processed, domain.EmailConsumerGroup, zap.NewNop())
	sink := &fakeDeadLetterRepo{}

	coordinator := relay.NewCoordinator(domain.EmailConsumerGroup, service.HandleOrderCreated,
		sink, 5, time.Millisecond, 5*time.Millisecond, zap.NewNop(), nil)

	event := confirmationEvent("evt-1", "nope")
	raw, err := event.Marshal()
	require.NoError(t, err)

	require.NoError(t, coordinator.Deliver(context.Background(), event, raw))
	require.Len(t, sink.letters, 1)
	assert.Equal(t, "email-service", sink.letters[0].ConsumerGroup)
	assert.Equal(t, 1, sink.letters[0].Attempts)
	assert.Empty(t, sender.sent)
}

type fakeDeadLetterRepo struct {
	letters []*domain.DeadLetter
}

func (r *fakeDeadLetterRepo) Append(_ context.Context, letter *domain.DeadLetter) error {
	r.letters = append(r.letters, letter)
	return nil
}

func (r *fakeDeadLetterRepo) List(_ context.Context, _ string, _ int) ([]*domain.DeadLetter, error) {
	return r.letters, nil
}
