package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"orderhub/internal/domain"
	"orderhub/internal/repository/deadletter_repo"
)

type pgDeadLetterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewDeadLetterRepository(db *sql.DB, l *zap.Logger) deadletter_repo.DeadLetterRepository {
	return &pgDeadLetterRepository{db: db, logger: l}
}

func (r *pgDeadLetterRepository) Append(ctx context.Context, letter *domain.DeadLetter) error {
	query := `INSERT INTO dead_letters (event_id, consumer_group, last_error, attempts, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (consumer_group, event_id) DO UPDATE
		SET last_error = EXCLUDED.last_error, attempts = EXCLUDED.attempts`
	_, err := r.db.ExecContext(ctx, query,
		letter.EventID, letter.ConsumerGroup, letter.LastError, letter.Attempts, letter.Payload, letter.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append dead letter",
			zap.String("event_id", letter.EventID),
			zap.String("consumer_group", letter.ConsumerGroup),
			zap.Error(err))
		return fmt.Errorf("failed to append dead letter for event %s: %w", letter.EventID, err)
	}
	r.logger.Warn("Event dead-lettered",
		zap.String("event_id", letter.EventID),
		zap.String("consumer_group", letter.ConsumerGroup),
		zap.Int("attempts", letter.Attempts),
		zap.String("last_error", letter.LastError))
	return nil
}

func (r *pgDeadLetterRepository) List(ctx context.Context, consumerGroup string, limit int) ([]*domain.DeadLetter, error) {
	var letters []*domain.DeadLetter
	query := `SELECT event_id, consumer_group, last_error, attempts, payload, created_at
		FROM dead_letters WHERE consumer_group = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, consumerGroup, limit)
	if err != nil {
		r.logger.Error("Failed to list dead letters", zap.String("consumer_group", consumerGroup), zap.Error(err))
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		letter := &domain.DeadLetter{}
		if err := rows.Scan(&letter.EventID, &letter.ConsumerGroup, &letter.LastError, &letter.Attempts, &letter.Payload, &letter.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
		}
		letters = append(letters, letter)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return letters, nil
}
