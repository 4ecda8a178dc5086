package stock_repo

import (
	"context"
	"errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock for product")
	ErrProductNotFound   = errors.New("product not found in inventory")
	ErrAlreadyApplied    = errors.New("decrement already applied for this event")
)

type InventoryRepository interface {
	// ApplyDecrement decrements the product's quantity and records the event
	// as processed for the consumer group in one transaction, so a crash can
	// never leave the decrement applied but unrecorded (or vice versa).
	// Returns ErrAlreadyApplied when the event was recorded by an earlier
	// delivery, ErrInsufficientStock when the decrement would go negative.
	ApplyDecrement(ctx context.Context, consumerGroup, eventID, product string, quantity int) error
	GetQuantity(ctx context.Context, product string) (int, error)
	UpsertProduct(ctx context.Context, product string, quantity int) error
}
