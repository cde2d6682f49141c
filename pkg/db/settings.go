package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoSettings indicates the engine_settings row hasn't been created yet
// (normally impossible past Bootstrap, but surfaced rather than assumed).
var ErrNoSettings = errors.New("no engine settings found")

// Settings holds the rules engine's runtime tunables: spec.md fixes these
// as constants (ring=64, queue=16, store capacity=32, epsilon=1e-6); this
// port keeps them configurable per §9's open question and persists them
// the way the teacher persists Profile/APIServer rows. RingCapacity is
// persisted and logged at startup but does not size the event bus, whose
// ring is the compile-time eventbus.Ring.
type Settings struct {
	RingCapacity     int
	QueueCapacity    int
	StoreCapacity    int
	ConditionEpsilon float64
}

// DefaultSettings are the values spec.md names as fixed constants.
var DefaultSettings = Settings{
	RingCapacity:     64,
	QueueCapacity:    16,
	StoreCapacity:    32,
	ConditionEpsilon: 1e-6,
}

// SettingsStore provides CRUD access to the single engine_settings row.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// Settings returns a SettingsStore for this database.
func (db *DB) Settings() SettingsStore {
	return &settingsStore{db: db}
}

type settingsStore struct {
	db *DB
}

func (s *settingsStore) Get(ctx context.Context) (*Settings, error) {
	st := &Settings{}
	err := s.db.QueryRowContext(ctx, `
		SELECT ring_capacity, queue_capacity, store_capacity, condition_epsilon
		FROM engine_settings WHERE id = 1
	`).Scan(&st.RingCapacity, &st.QueueCapacity, &st.StoreCapacity, &st.ConditionEpsilon)
	if err == sql.ErrNoRows {
		return nil, ErrNoSettings
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *settingsStore) Update(ctx context.Context, st *Settings) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE engine_settings
		SET ring_capacity = ?, queue_capacity = ?, store_capacity = ?, condition_epsilon = ?,
		    updated_at = datetime('now')
		WHERE id = 1
	`, st.RingCapacity, st.QueueCapacity, st.StoreCapacity, st.ConditionEpsilon)
	if err != nil {
		return fmt.Errorf("failed to update engine settings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoSettings
	}
	return nil
}
