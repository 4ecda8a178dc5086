package stock

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/relay"
	"orderhub/internal/repository/stock_repo"
)

var ErrNegativeQuantity = errors.New("quantity cannot be negative")

// Service applies the stock-service effect: decrement the ordered product's
// inventory exactly once per event.
type Service struct {
	inventory stock_repo.InventoryRepository
	group     string
	logger    *zap.Logger
}

func NewService(inventory stock_repo.InventoryRepository, group string, logger *zap.Logger) *Service {
	return &Service{
		inventory: inventory,
		group:     group,
		logger:    logger,
	}
}

// HandleOrderCreated is the relay handler for the stock consumer group. The
// decrement and the processed-event record commit in one transaction, so a
// crash between effect and record is impossible. Insufficient stock is a
// transient condition: an over-subscribed order is retried until the budget
// runs out and then dead-lettered, never silently dropped.
func (s *Service) HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent) error {
	if event.Quantity <= 0 {
		// A non-positive decrement would inflate inventory; no redelivery
		// can make it valid.
		return relay.Permanent(fmt.Errorf("invalid quantity %d for order %s", event.Quantity, event.OrderID))
	}

	err := s.inventory.ApplyDecrement(ctx, s.group, event.EventID, event.Product, event.Quantity)
	switch {
	case err == nil:
		s.logger.Info("Inventory decremented",
			zap.String("order_id", event.OrderID),
			zap.String("product", event.Product),
			zap.Int("quantity", event.Quantity))
		return nil

	case errors.Is(err, stock_repo.ErrAlreadyApplied):
		return relay.ErrDuplicateDelivery

	case errors.Is(err, stock_repo.ErrInsufficientStock):
		s.logger.Warn("Insufficient stock for order",
			zap.String("order_id", event.OrderID),
			zap.String("product", event.Product),
			zap.Int("quantity", event.Quantity))
		return fmt.Errorf("insufficient stock for product %s (need %d): %w",
			event.Product, event.Quantity, err)

	case errors.Is(err, stock_repo.ErrProductNotFound):
		// An unknown product can never be decremented; retrying is pointless.
		return relay.Permanent(fmt.Errorf("product %s not in inventory: %w", event.Product, err))

	default:
		return fmt.Errorf("failed to apply stock decrement for order %s: %w", event.OrderID, err)
	}
}

func (s *Service) GetQuantity(ctx context.Context, product string) (int, error) {
	return s.inventory.GetQuantity(ctx, product)
}

func (s *Service) SetQuantity(ctx context.Context, product string, quantity int) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	return s.inventory.UpsertProduct(ctx, product, quantity)
}
