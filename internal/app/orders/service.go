package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/repository/order_repo"
	"orderhub/internal/util"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = domain.ErrInvalidOrder
)

type OrderService interface {
	SubmitOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
	GetAllOrders(ctx context.Context) ([]*OrderResponse, error)
}

type orderService struct {
	orderRepo order_repo.OrderRepository
	logger    *zap.Logger
}

func NewOrderService(orderRepo order_repo.OrderRepository, logger *zap.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// SubmitOrder validates the request and commits the order row together with
// its outbox entry in one local transaction. No event can exist for an order
// that failed validation or persistence, and no committed order can miss its
// eventual publish attempt.
func (s *orderService) SubmitOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = util.GenerateUUID()
	}

	order, err := domain.NewOrder(orderID, req.Product, req.Quantity, req.Email)
	if err != nil {
		s.logger.Warn("Rejected invalid order request",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, ErrInvalidOrder
	}

	event := domain.OrderCreatedEvent{
		EventID:  util.GenerateUUID(),
		OrderID:  order.ID,
		Product:  order.Product,
		Quantity: order.Quantity,
		Email:    order.Email,
	}
	payload, err := event.Marshal()
	if err != nil {
		s.logger.Error("Failed to marshal order created event", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	entry := &domain.OutboxEntry{
		EventID:   event.EventID,
		OrderID:   order.ID,
		Topic:     domain.OrderTopic,
		Key:       order.ID,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.orderRepo.CreateOrderAndOutboxEntry(ctx, order, entry); err != nil {
		s.logger.Error("Failed to save order and outbox entry",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, errors.New("failed to accept order")
	}

	s.logger.Info("Order accepted and event queued in outbox",
		zap.String("order_id", order.ID),
		zap.String("event_id", event.EventID))

	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Order not found", zap.String("order_id", orderID))
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders from repository", zap.Error(err))
		return nil, errors.New("internal server error")
	}
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses, nil
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:  order.ID,
		Product:  order.Product,
		Quantity: order.Quantity,
		Email:    order.Email,
		Status:   string(order.Status),
	}
}
