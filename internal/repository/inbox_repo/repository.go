package inbox_repo

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyProcessed = errors.New("event already processed by this consumer group")

// ProcessedEventRepository is each consumer group's record of durably applied
// events, keyed by (consumer_group, event_id). It is what makes redelivery
// safe: a recorded event is acknowledged without re-applying its effect.
type ProcessedEventRepository interface {
	IsProcessed(ctx context.Context, consumerGroup, eventID string) (bool, error)
	// MarkProcessed returns ErrAlreadyProcessed if another delivery of the
	// same event won the race.
	MarkProcessed(ctx context.Context, consumerGroup, eventID string) error
	// PruneOlderThan removes records past the broker's maximum redelivery
	// window; the set otherwise grows monotonically.
	PruneOlderThan(ctx context.Context, consumerGroup string, age time.Duration) (int64, error)
}
