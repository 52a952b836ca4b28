package postgres

import (
	"testing"

	"github.com/minutehq/usagewatch/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	raw := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(raw) })
	return NewWithDB(raw, "sqlite")
}

func insertOrg(t *testing.T, db *DB, id, name, tier, createdAt string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO organizations (id, name, tier, created_at) VALUES (?, ?, ?, ?)`,
		id, name, tier, createdAt,
	)
	if err != nil {
		t.Fatalf("insert organization: %v", err)
	}
}

func TestDB_Rebind(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{
			name:   "sqlite passes through",
			driver: "sqlite",
			query:  "SELECT * FROM alerts WHERE id = ? AND resolved = ?",
			want:   "SELECT * FROM alerts WHERE id = ? AND resolved = ?",
		},
		{
			name:   "postgres numbers placeholders",
			driver: "postgres",
			query:  "SELECT * FROM alerts WHERE id = ? AND resolved = ?",
			want:   "SELECT * FROM alerts WHERE id = $1 AND resolved = $2",
		},
		{
			name:   "postgres without placeholders",
			driver: "postgres",
			query:  "SELECT COUNT(*) FROM alerts",
			want:   "SELECT COUNT(*) FROM alerts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &DB{driver: tt.driver}
			if got := db.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDB_Driver(t *testing.T) {
	db := testDB(t)
	if db.Driver() != "sqlite" {
		t.Errorf("Driver() = %q, want sqlite", db.Driver())
	}
}
