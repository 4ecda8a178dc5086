package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOrder_Valid(t *testing.T) {
	order, err := NewOrder("ORD123", "Laptop", 2, "a@b.com")
	assert.NoError(t, err)
	assert.Equal(t, "ORD123", order.ID)
	assert.Equal(t, "Laptop", order.Product)
	assert.Equal(t, 2, order.Quantity)
	assert.Equal(t, "a@b.com", order.Email)
	assert.Equal(t, OrderStatusPending, order.Status)
}

func TestNewOrder_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		product  string
		quantity int
		email    string
	}{
		{"empty id", "", "Laptop", 1, "a@b.com"},
		{"empty product", "ORD1", "  ", 1, "a@b.com"},
		{"zero quantity", "ORD1", "Laptop", 0, "a@b.com"},
		{"negative quantity", "ORD1", "Laptop", -3, "a@b.com"},
		{"malformed email", "ORD1", "Laptop", 1, "not-an-address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder(tc.id, tc.product, tc.quantity, tc.email)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestOrder_StatusTransitions(t *testing.T) {
	order, _ := NewOrder("ORD1", "Laptop", 1, "a@b.com")

	assert.NoError(t, order.MarkAsConfirmed())
	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.Error(t, order.MarkAsFailed())

	failed, _ := NewOrder("ORD2", "Laptop", 1, "a@b.com")
	assert.NoError(t, failed.MarkAsFailed())
	assert.Equal(t, OrderStatusFailed, failed.Status)
	assert.Error(t, failed.MarkAsConfirmed())
}

func TestOrderCreatedEvent_Roundtrip(t *testing.T) {
	event := OrderCreatedEvent{
		EventID:  "evt-1",
		OrderID:  "ORD123",
		Product:  "Laptop",
		Quantity: 2,
		Email:    "a@b.com",
	}
	data, err := event.Marshal()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"event_id":"evt-1","order_id":"ORD123","product":"Laptop","quantity":2,"email":"a@b.com"}`, string(data))

	decoded, err := UnmarshalOrderCreatedEvent(data)
	assert.NoError(t, err)
	assert.Equal(t, &event, decoded)
}
