package db

import (
	"context"
	"fmt"
)

// Bootstrap initializes the database with default engine settings if it's
// empty. This is called after migrations and handles first-run setup.
func (db *DB) Bootstrap(ctx context.Context) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check bootstrap status: %w", err)
	}
	if !needs {
		return nil
	}

	d := DefaultSettings
	_, err = db.ExecContext(ctx, `
		INSERT INTO engine_settings (id, ring_capacity, queue_capacity, store_capacity, condition_epsilon)
		VALUES (1, ?, ?, ?, ?)
	`, d.RingCapacity, d.QueueCapacity, d.StoreCapacity, d.ConditionEpsilon)
	if err != nil {
		return fmt.Errorf("failed to create default engine settings: %w", err)
	}
	return nil
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM engine_settings`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
