// Package testutil provides database fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/onnwee/chatbot/db"
)

// SetupTestDB opens the Postgres database named by TEST_PG_DSN, migrates it
// and empties the bot tables. It skips the test if TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(db.Postgres, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	if err := db.Migrate(ctx, database, db.Postgres); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	if _, err := database.ExecContext(ctx, `TRUNCATE admins, custom_commands, command_usage`); err != nil {
		database.Close()
		t.Fatalf("failed to truncate tables: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// SetupSQLite creates a migrated SQLite database in a per-test temp directory.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Connect(db.SQLite, filepath.Join(t.TempDir(), "chatbot.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(context.Background(), database, db.SQLite); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
