package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

var (
	ErrInvalidOrder = errors.New("invalid order data")
)

type Order struct {
	ID        string
	Product   string
	Quantity  int
	Email     string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(id, product string, quantity int, email string) (*Order, error) {
	if id == "" || strings.TrimSpace(product) == "" {
		return nil, ErrInvalidOrder
	}
	if quantity <= 0 {
		return nil, ErrInvalidOrder
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidOrder
	}
	now := time.Now()
	return &Order{
		ID:        id,
		Product:   product,
		Quantity:  quantity,
		Email:     email,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkAsConfirmed is called once the order's event has been durably accepted
// by the broker. Confirmation is driven only by the producer's own publishing
// progress, never by consumer outcomes.
func (o *Order) MarkAsConfirmed() error {
	if o.Status == OrderStatusFailed {
		return errors.New("cannot confirm a failed order")
	}
	o.Status = OrderStatusConfirmed
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) MarkAsFailed() error {
	if o.Status == OrderStatusConfirmed {
		return errors.New("cannot fail a confirmed order")
	}
	o.Status = OrderStatusFailed
	o.UpdatedAt = time.Now()
	return nil
}
