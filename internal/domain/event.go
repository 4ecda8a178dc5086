package domain

import "encoding/json"

const (
	// OrderTopic carries every OrderCreatedEvent. Messages are keyed by order
	// id, so all events for one order land on the same partition and are
	// observed in publish order by each consumer group.
	OrderTopic = "order_topic"

	StockConsumerGroup = "stock-service"
	EmailConsumerGroup = "email-service"
)

// OrderCreatedEvent is the wire shape shared by the producer and every
// consumer group. EventID is the idempotency key: a consumer that has already
// recorded it must treat redelivery as a no-op.
type OrderCreatedEvent struct {
	EventID  string `json:"event_id"`
	OrderID  string `json:"order_id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email"`
}

func (e OrderCreatedEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalOrderCreatedEvent(data []byte) (*OrderCreatedEvent, error) {
	var e OrderCreatedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
