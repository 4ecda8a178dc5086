package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderhub/internal/repository/stock_repo"
)

type pgInventoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewInventoryRepository(db *sql.DB, l *zap.Logger) stock_repo.InventoryRepository {
	return &pgInventoryRepository{db: db, logger: l}
}

func (r *pgInventoryRepository) ApplyDecrement(ctx context.Context, consumerGroup, eventID, product string, quantity int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for stock decrement", zap.String("event_id", eventID), zap.Error(err))
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
				r.logger.Error("Failed to commit stock decrement transaction", zap.String("event_id", eventID), zap.Error(err))
			}
		}
	}()

	// The processed-event insert is the idempotency gate: if another delivery
	// of the same event already committed, the conflict clause leaves zero
	// rows and the decrement is skipped.
	inboxQuery := `INSERT INTO processed_events (consumer_group, event_id, processed_at)
		VALUES ($1, $2, $3) ON CONFLICT (consumer_group, event_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, inboxQuery, consumerGroup, eventID, time.Now())
	if err != nil {
		return fmt.Errorf("tx failed to record processed event: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check processed event insert result: %w", err)
	}
	if rowsAffected == 0 {
		err = stock_repo.ErrAlreadyApplied
		return err
	}

	updateQuery := `UPDATE inventory SET quantity = quantity - $2, updated_at = NOW()
		WHERE product = $1 AND quantity >= $2`
	res, err = tx.ExecContext(ctx, updateQuery, product, quantity)
	if err != nil {
		return fmt.Errorf("tx failed to decrement inventory: %w", err)
	}
	rowsAffected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check inventory update result: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if checkErr := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM inventory WHERE product = $1)`, product).Scan(&exists); checkErr != nil {
			err = fmt.Errorf("failed to check product existence: %w", checkErr)
			return err
		}
		if !exists {
			err = stock_repo.ErrProductNotFound
			return err
		}
		err = stock_repo.ErrInsufficientStock
		return err
	}

	r.logger.Debug("Inventory decremented and event recorded",
		zap.String("product", product),
		zap.Int("quantity", quantity),
		zap.String("event_id", eventID))
	return err
}

func (r *pgInventoryRepository) GetQuantity(ctx context.Context, product string) (int, error) {
	var quantity int
	query := `SELECT quantity FROM inventory WHERE product = $1`
	err := r.db.QueryRowContext(ctx, query, product).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, stock_repo.ErrProductNotFound
		}
		r.logger.Error("Failed to get inventory quantity", zap.String("product", product), zap.Error(err))
		return 0, fmt.Errorf("failed to get quantity for product %s: %w", product, err)
	}
	return quantity, nil
}

func (r *pgInventoryRepository) UpsertProduct(ctx context.Context, product string, quantity int) error {
	query := `INSERT INTO inventory (product, quantity, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (product) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, product, quantity); err != nil {
		r.logger.Error("Failed to upsert inventory product", zap.String("product", product), zap.Error(err))
		return fmt.Errorf("failed to upsert product %s: %w", product, err)
	}
	return nil
}
