package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/org"
)

func TestOrgRepository_GetByID(t *testing.T) {
	db := testDB(t)
	repo := NewOrgRepository(db)
	ctx := context.Background()

	created := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	insertOrg(t, db, "org-1", "Acme Transcripts", "pro", created.Format(time.RFC3339))

	got, err := repo.GetByID(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Acme Transcripts" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Tier != org.TierPro {
		t.Errorf("Tier = %s, want pro", got.Tier)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	if _, err := repo.GetByID(ctx, "missing"); err == nil {
		t.Error("GetByID(missing) error = nil, want not found")
	}
}

func TestOrgRepository_List(t *testing.T) {
	db := testDB(t)
	repo := NewOrgRepository(db)
	ctx := context.Background()

	created := time.Now().UTC().Format(time.RFC3339)
	insertOrg(t, db, "org-b", "B", "trial", created)
	insertOrg(t, db, "org-a", "A", "enterprise", created)
	insertOrg(t, db, "org-c", "C", "starter", created)

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d, want 3", len(got))
	}
	if got[0].ID != "org-a" || got[1].ID != "org-b" || got[2].ID != "org-c" {
		t.Errorf("order = [%s %s %s], want id ascending", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestOrgRepository_GetTier(t *testing.T) {
	db := testDB(t)
	repo := NewOrgRepository(db)
	ctx := context.Background()

	insertOrg(t, db, "org-1", "Acme", "business", time.Now().UTC().Format(time.RFC3339))

	tier, err := repo.GetTier(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetTier() error = %v", err)
	}
	if tier != org.TierBusiness {
		t.Errorf("GetTier() = %s, want business", tier)
	}

	if _, err := repo.GetTier(ctx, "missing"); err == nil {
		t.Error("GetTier(missing) error = nil, want not found")
	}
}
