package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/relay"
	"orderhub/internal/repository/inbox_repo"
)

// Service applies the email-service effect: at most one confirmation email
// per event. The send itself is not transactional with the store, so the
// processed-event record is written only after a successful send; a crash
// between the two causes a redelivery and a duplicate check, never a lost
// confirmation.
type Service struct {
	sender    Sender
	processed inbox_repo.ProcessedEventRepository
	group     string
	logger    *zap.Logger
}

func NewService(sender Sender, processed inbox_repo.ProcessedEventRepository, group string, logger *zap.Logger) *Service {
	return &Service{
		sender:    sender,
		processed: processed,
		group:     group,
		logger:    logger,
	}
}

// HandleOrderCreated is the relay handler for the email consumer group. A
// malformed address is a permanent failure, not a transient one: it is
// dead-lettered immediately instead of being retried.
func (s *Service) HandleOrderCreated(ctx context.Context, event *domain.OrderCreatedEvent) error {
	done, err := s.processed.IsProcessed(ctx, s.group, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed record for event %s: %w", event.EventID, err)
	}
	if done {
		return relay.ErrDuplicateDelivery
	}

	if _, err := mail.ParseAddress(event.Email); err != nil {
		return relay.Permanent(fmt.Errorf("invalid recipient address %q: %w", event.Email, err))
	}

	subject := fmt.Sprintf("Order %s confirmed", event.OrderID)
	body := fmt.Sprintf("Your order for %d x %s has been received and confirmed.",
		event.Quantity, event.Product)

	if err := s.sender.Send(event.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send confirmation for order %s: %w", event.OrderID, err)
	}

	if err := s.processed.MarkProcessed(ctx, s.group, event.EventID); err != nil {
		if errors.Is(err, inbox_repo.ErrAlreadyProcessed) {
			// A concurrent delivery recorded it first; the confirmation for
			// this event was sent either way.
			return relay.ErrDuplicateDelivery
		}
		// The email went out but the record write failed. Surfacing the
		// error forces redelivery, and the processed check above does not
		// protect the retry. This is the at-least-once trade-off: a rare
		// duplicate email is preferred over a silently lost one.
		return fmt.Errorf("failed to record processed event %s after send: %w", event.EventID, err)
	}

	s.logger.Info("Confirmation email sent",
		zap.String("order_id", event.OrderID),
		zap.String("event_id", event.EventID),
		zap.String("to", event.Email))
	return nil
}
