package domain

import "time"

// DeadLetter is the terminal record of an event that exhausted its retry
// budget or failed permanently in a consumer group. Dead letters are surfaced
// for operator inspection and never silently discarded.
type DeadLetter struct {
	EventID       string
	ConsumerGroup string
	LastError     string
	Attempts      int
	Payload       []byte
	CreatedAt     time.Time
}
