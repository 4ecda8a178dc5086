package stock

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
	"orderhub/internal/repository/stock_repo"
)

// fakeInventoryRepo mirrors the transactional repository: the decrement and
// the processed-event record either both happen or neither does.
type fakeInventoryRepo struct {
	quantities map[string]int
	processed  map[string]bool
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		quantities: make(map[string]int),
		processed:  make(map[string]bool),
	}
}

func (r *fakeInventoryRepo) ApplyDecrement(_ context.Context, consumerGroup, eventID, product string, quantity int) error {
	key := consumerGroup + "/" + eventID
	if r.processed[key] {
		return stock_repo.ErrAlreadyApplied
	}
	current, ok := r.quantities[product]
	if !ok {
		return stock_repo.ErrProductNotFound
	}
	if current < quantity {
		return stock_repo.ErrInsufficientStock
	}
	r.quantities[product] = current - quantity
	r.processed[key] = true
	return nil
}

func (r *fakeInventoryRepo) GetQuantity(_ context.Context, product string) (int, error) {
	quantity, ok := r.quantities[product]
	if !ok {
		return 0, stock_repo.ErrProductNotFound
	}
	return quantity, nil
}

func (r *fakeInventoryRepo) UpsertProduct(_ context.Context, product string, quantity int) error {
	r.quantities[product] = quantity
	return nil
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

func laptopEvent(eventID string, quantity int) *domain.OrderCreatedEvent {
	return &domain.OrderCreatedEvent{
		EventID:  eventID,
		OrderID:  "ORD123",
		Product:  "Laptop",
		Quantity: quantity,
		Email:    "a@b.com",
	}
}

func TestHandleOrderCreated_DecrementsOnce(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.quantities["Laptop"] = 10
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())

	require.NoError(t, service.HandleOrderCreated(context.Background(), laptopEvent("evt-1", 2)))
	assert.Equal(t, 8, repo.quantities["Laptop"])
}

func TestHandleOrderCreated_DuplicateDeliveryIsNoop(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.quantities["Laptop"] = 10
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())

	event := laptopEvent("evt-1", 2)
	require.NoError(t, service.HandleOrderCreated(context.Background(), event))

	err := service.HandleOrderCreated(context.Background(), event)
	assert.ErrorIs(t, err, relay.ErrDuplicateDelivery)
	// The decrement is applied exactly once.
	assert.Equal(t, 8, repo.quantities["Laptop"])
}

func TestHandleOrderCreated_InsufficientStockIsTransient(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.quantities["Laptop"] = 1
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())

	err := service.HandleOrderCreated(context.Background(), laptopEvent("evt-1", 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, stock_repo.ErrInsufficientStock)
	assert.False(t, relay.IsPermanent(err))
	assert.Equal(t, 1, repo.quantities["Laptop"])
}

func TestHandleOrderCreated_UnknownProductIsPermanent(t *testing.T) {
	repo := newFakeInventoryRepo()
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())

	err := service.HandleOrderCreated(context.Background(), laptopEvent("evt-1", 1))
	require.Error(t, err)
	assert.True(t, relay.IsPermanent(err))
}

func TestHandleOrderCreated_NonPositiveQuantityIsPermanent(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.quantities["Laptop"] = 10
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())

	for _, quantity := range []int{0, -5} {
		err := service.HandleOrderCreated(context.Background(), laptopEvent("evt-1", quantity))
		require.Error(t, err)
		assert.True(t, relay.IsPermanent(err))
	}
	// A non-positive decrement never reaches the inventory, so it can never
	// inflate it.
	assert.Equal(t, 10, repo.quantities["Laptop"])
	assert.Empty(t, repo.processed)
}

func TestHandleOrderCreated_StorageErrorIsTransient(t *testing.T) {
	service := NewService(failingInventoryRepo{}, domain.StockConsumerGroup, zap.NewNop())

	err := service.HandleOrderCreated(context.Background(), laptopEvent("evt-1", 1))
	require.Error(t, err)
	assert.False(t, relay.IsPermanent(err))
}

type failingInventoryRepo struct{}

func (failingInventoryRepo) ApplyDecrement(context.Context, string, string, string, int) error {
	return errors.New("db down")
}

func (failingInventoryRepo) GetQuantity(context.Context, string) (int, error) {
	return 0, errors.New("db down")
}

func (failingInventoryRepo) UpsertProduct(context.Context, string, int) error {
	return errors.New("db down")
}

// End to end through the coordinator: an out-of-stock product keeps failing
// transiently until the retry budget runs out, then lands in the dead-letter
// sink with this consumer group attached.
func TestStockConsumer_OutOfStockDeadLettersAfterBudget(t *testing.T) {
	repo := newFakeInventoryRepo()
	repo.quantities["Laptop"] = 0
	service := NewService(repo, domain.StockConsumerGroup, zap.NewNop())
	sink := &fakeDeadLetterRepo{}

	coordinator := relay.NewCoordinator(domain.StockConsumerGroup, service.HandleOrderCreated,
		sink, 5, time.Millisecond, 5*time.Millisecond, zap.NewNop(), nil)

	event := laptopEvent("evt-1", 2)
	raw, err := event.Marshal()
	require.NoError(t, err)

	require.NoError(t, coordinator.Deliver(context.Background(), event, raw))
	require.Len(t, sink.letters, 1)
	assert.Equal(t, "evt-1", sink.letters[0].EventID)
	assert.Equal(t, "stock-service", sink.letters[0].ConsumerGroup)
	assert.Equal(t, 5, sink.letters[0].Attempts)
	assert.Equal(t, 0, repo.quantities["Laptop"])
}

func TestSetQuantity_RejectsNegative(t *testing.T) {
	service := NewService(newFakeInventoryRepo(), domain.StockConsumerGroup, zap.NewNop())
	assert.ErrorIs(t, service.SetQuantity(context.Background(), "Laptop", -1), ErrNegativeQuantity)
	assert.NoError(t, service.SetQuantity(context.Background(), "Laptop", 5))
}
