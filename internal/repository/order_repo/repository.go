package order_repo

import (
	"context"

	"orderhub/internal/domain"
)

type OrderRepository interface {
	// CreateOrderAndOutboxEntry persists the order row and its outbox entry
	// in a single local transaction. Either both commit or neither does.
	CreateOrderAndOutboxEntry(ctx context.Context, order *domain.Order, entry *domain.OutboxEntry) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
}
