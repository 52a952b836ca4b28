package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// NewTestDB creates an in-memory SQLite database for testing
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// a second pool connection would see a fresh empty in-memory database
	db.SetMaxOpenConns(1)

	// Mirrors the migration files
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		tier       TEXT NOT NULL DEFAULT 'trial',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS usage_sessions (
		id               TEXT PRIMARY KEY,
		organization_id  TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		mode             TEXT NOT NULL,
		started_at       TEXT NOT NULL,
		ended_at         TEXT,
		duration_seconds INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_usage_sessions_org_started
		ON usage_sessions (organization_id, started_at);

	CREATE TABLE IF NOT EXISTS usage_daily (
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		day             TEXT NOT NULL,
		mode            TEXT NOT NULL,
		minutes         DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (organization_id, day, mode)
	);

	CREATE TABLE IF NOT EXISTS usage_limits (
		organization_id       TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		mode                  TEXT NOT NULL,
		monthly_limit_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (organization_id, mode)
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id                 TEXT PRIMARY KEY,
		organization_id    TEXT NOT NULL,
		type               TEXT NOT NULL,
		severity           TEXT NOT NULL,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		metadata           TEXT NOT NULL DEFAULT '{}',
		created_at         TEXT NOT NULL,
		resolved           BOOLEAN NOT NULL DEFAULT FALSE,
		resolved_at        TEXT,
		resolved_by        TEXT NOT NULL DEFAULT '',
		notifications_sent TEXT NOT NULL DEFAULT '[]'
	);

	CREATE UNIQUE INDEX IF NOT EXISTS alerts_open_dedup
		ON alerts (organization_id, type, title) WHERE resolved = FALSE;

	CREATE TABLE IF NOT EXISTS notification_policies (
		severity             TEXT PRIMARY KEY,
		channels             TEXT NOT NULL DEFAULT '[]',
		cadence              TEXT NOT NULL,
		batch_window_seconds INTEGER NOT NULL DEFAULT 0,
		updated_at           TEXT NOT NULL
	);
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}
