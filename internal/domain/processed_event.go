package domain

import "time"

// ProcessedEvent records that a consumer group has durably applied the effect
// of an event. The (ConsumerGroup, EventID) pair is unique; redeliveries that
// hit an existing record are acknowledged without re-applying the effect.
// Rows grow monotonically and may be pruned once older than the broker's
// maximum redelivery window.
type ProcessedEvent struct {
	ConsumerGroup string
	EventID       string
	ProcessedAt   time.Time
}
