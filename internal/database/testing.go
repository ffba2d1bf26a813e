package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the variable holding the integration test database URL
const TestDSNEnv = "BASELINE_EDGE_TEST_DSN"

// SetupTestDB connects to the integration database, applies the schema and
// registers cleanup. The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("integration test - set %s to run", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDBFromDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to prepare test schema: %v", err)
	}

	t.Cleanup(db.Close)
	return db
}

// TruncateAll empties every replay table
func TruncateAll(t *testing.T, db *DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.Exec(ctx, "TRUNCATE bets, predictions, rating_snapshots, replay_runs, matches")
	if err != nil {
		t.Fatalf("failed to truncate test tables: %v", err)
	}
}
