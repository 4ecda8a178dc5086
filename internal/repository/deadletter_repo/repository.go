package deadletter_repo

import (
	"context"

	"orderhub/internal/domain"
)

// DeadLetterRepository is an append-only sink for events that exhausted
// their retry budget or failed permanently.
type DeadLetterRepository interface {
	Append(ctx context.Context, letter *domain.DeadLetter) error
	List(ctx context.Context, consumerGroup string, limit int) ([]*domain.DeadLetter, error)
}
