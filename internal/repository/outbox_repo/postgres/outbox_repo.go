package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/repository/outbox_repo"
)

type pgOutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOutboxRepository(db *sql.DB, l *zap.Logger) outbox_repo.OutboxRepository {
	return &pgOutboxRepository{db: db, logger: l}
}

func (r *pgOutboxRepository) FetchPendingEntries(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	var entries []*domain.OutboxEntry
	query := `SELECT event_id, order_id, topic, key, payload, status, created_at, sent_at
		FROM outbox_entries WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending outbox entries", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch pending outbox entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry := &domain.OutboxEntry{}
		var sentAt sql.NullTime
		if err := rows.Scan(&entry.EventID, &entry.OrderID, &entry.Topic, &entry.Key, &entry.Payload, &entry.Status, &entry.CreatedAt, &sentAt); err != nil {
			r.logger.Error("Failed to scan outbox entry row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan outbox entry row: %w", err)
		}
		if sentAt.Valid {
			entry.SentAt = &sentAt.Time
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Rows error while fetching pending outbox entries", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

func (r *pgOutboxRepository) MarkEntrySentAndConfirmOrder(ctx context.Context, eventID, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for publish recording", zap.String("event_id", eventID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit publish recording transaction", zap.String("event_id", eventID), zap.Error(err))
			}
		}
	}()

	entryQuery := `UPDATE outbox_entries SET status = $1, sent_at = $2 WHERE event_id = $3 AND status = $4`
	res, err := tx.ExecContext(ctx, entryQuery, domain.OutboxStatusSent, time.Now(), eventID, domain.OutboxStatusPending)
	if err != nil {
		return fmt.Errorf("tx failed to mark outbox entry %s as sent: %w", eventID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		// An earlier drain already recorded this publish, order included.
		r.logger.Warn("Outbox entry already marked as sent", zap.String("event_id", eventID))
		return err
	}

	orderQuery := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err = tx.ExecContext(ctx, orderQuery, orderID, domain.OrderStatusConfirmed); err != nil {
		return fmt.Errorf("tx failed to confirm order %s: %w", orderID, err)
	}

	r.logger.Debug("Outbox entry marked as sent and order confirmed",
		zap.String("event_id", eventID),
		zap.String("order_id", orderID))
	return err
}
