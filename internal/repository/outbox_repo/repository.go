package outbox_repo

import (
	"context"

	"orderhub/internal/domain"
)

type OutboxRepository interface {
	// FetchPendingEntries returns unpublished entries in creation order, so a
	// single publisher preserves per-order publish ordering.
	FetchPendingEntries(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	// MarkEntrySentAndConfirmOrder records a broker-acked publish: the entry
	// moves to SENT and its order to CONFIRMED in one transaction. Either the
	// publish is fully recorded or the entry stays pending and is drained
	// again.
	MarkEntrySentAndConfirmOrder(ctx context.Context, eventID, orderID string) error
}
