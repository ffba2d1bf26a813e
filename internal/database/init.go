package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/yourusername/baseline-edge/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists the tables EnsureSchema creates
var Tables = []string{"matches", "replay_runs", "predictions", "bets", "rating_snapshots"}

// Initialize creates a database connection pool and makes sure the replay schema exists
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates any missing tables and indexes
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	for _, table := range Tables {
		var exists bool
		err := db.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to verify table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table %s missing after schema apply", table)
		}
	}
	return nil
}
