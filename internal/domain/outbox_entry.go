package domain

import "time"

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
)

// OutboxEntry is a to-be-published event co-located with its order in the
// producer's store. Exactly one entry is written in the same transaction as
// its order row; it is marked SENT only after the broker has durably accepted
// the message.
type OutboxEntry struct {
	EventID   string
	OrderID   string
	Topic     string
	Key       string
	Payload   []byte
	Status    OutboxStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
