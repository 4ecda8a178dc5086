package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderhub/internal/repository/inbox_repo"
)

type pgProcessedEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProcessedEventRepository(db *sql.DB, l *zap.Logger) inbox_repo.ProcessedEventRepository {
	return &pgProcessedEventRepository{db: db, logger: l}
}

func (r *pgProcessedEventRepository) IsProcessed(ctx context.Context, consumerGroup, eventID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM processed_events WHERE consumer_group = $1 AND event_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, consumerGroup, eventID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check processed event", zap.String("event_id", eventID), zap.Error(err))
		return false, fmt.Errorf("failed to check processed event %s: %w", eventID, err)
	}
	return exists, nil
}

func (r *pgProcessedEventRepository) MarkProcessed(ctx context.Context, consumerGroup, eventID string) error {
	query := `INSERT INTO processed_events (consumer_group, event_id, processed_at)
		VALUES ($1, $2, $3) ON CONFLICT (consumer_group, event_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, consumerGroup, eventID, time.Now())
	if err != nil {
		r.logger.Error("Failed to mark event as processed", zap.String("event_id", eventID), zap.Error(err))
		return fmt.Errorf("failed to mark event %s as processed: %w", eventID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result: %w", err)
	}
	if rowsAffected == 0 {
		return inbox_repo.ErrAlreadyProcessed
	}
	r.logger.Debug("Event marked as processed",
		zap.String("consumer_group", consumerGroup),
		zap.String("event_id", eventID))
	return nil
}

func (r *pgProcessedEventRepository) PruneOlderThan(ctx context.Context, consumerGroup string, age time.Duration) (int64, error) {
	query := `DELETE FROM processed_events WHERE consumer_group = $1 AND processed_at < $2`
	res, err := r.db.ExecContext(ctx, query, consumerGroup, time.Now().Add(-age))
	if err != nil {
		r.logger.Error("Failed to prune processed events", zap.String("consumer_group", consumerGroup), zap.Error(err))
		return 0, fmt.Errorf("failed to prune processed events: %w", err)
	}
	return res.RowsAffected()
}
