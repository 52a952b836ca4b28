package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

func newAlert(id, orgID string, severity anomaly.Severity, title string, createdAt time.Time) *alert.Alert {
	return &alert.Alert{
		ID:                id,
		OrganizationID:    orgID,
		Type:              anomaly.TypeSpike,
		Severity:          severity,
		Title:             title,
		Description:       "test alert",
		CreatedAt:         createdAt,
		NotificationsSent: []string{},
	}
}

func TestAlertRepository_CreateAndGet(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()
	createdAt := time.Date(2025, time.June, 6, 10, 30, 0, 0, time.UTC)

	a := newAlert("a-1", "org-1", anomaly.SeverityHigh, "Usage spike: fast mode", createdAt)
	a.Metadata = map[string]interface{}{
		"current_value": 60.0,
		"mode":          "fast",
	}

	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.OrganizationID != "org-1" || got.Type != anomaly.TypeSpike || got.Severity != anomaly.SeverityHigh {
		t.Errorf("got %+v", got)
	}
	if got.Title != a.Title || got.Description != a.Description {
		t.Errorf("Title/Description = %q/%q", got.Title, got.Description)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, createdAt)
	}
	if got.Resolved || got.ResolvedAt != nil || got.ResolvedBy != "" {
		t.Errorf("new alert has resolution fields set: %+v", got)
	}
	if got.Metadata["current_value"] != 60.0 {
		t.Errorf("Metadata current_value = %v, want 60", got.Metadata["current_value"])
	}
	if got.Metadata["mode"] != "fast" {
		t.Errorf("Metadata mode = %v, want fast", got.Metadata["mode"])
	}
	if got.NotificationsSent == nil || len(got.NotificationsSent) != 0 {
		t.Errorf("NotificationsSent = %v, want empty slice", got.NotificationsSent)
	}
}

func TestAlertRepository_GetByID_NotFound(t *testing.T) {
	repo := NewAlertRepository(testDB(t))

	if _, err := repo.GetByID(context.Background(), "missing"); err == nil {
		t.Fatal("GetByID() error = nil, want not found")
	}
}

func TestAlertRepository_OpenAlertDedup(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()
	createdAt := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)

	first := newAlert("a-1", "org-1", anomaly.SeverityHigh, "Usage spike: fast mode", createdAt)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// same tenant, type and title while the first is open
	dup := newAlert("a-2", "org-1", anomaly.SeverityHigh, "Usage spike: fast mode", createdAt.Add(time.Minute))
	if err := repo.Create(ctx, dup); !errors.Is(err, alert.ErrDuplicateOpenAlert) {
		t.Fatalf("Create(dup) error = %v, want ErrDuplicateOpenAlert", err)
	}

	// another tenant is free to open the same condition
	other := newAlert("a-3", "org-2", anomaly.SeverityHigh, "Usage spike: fast mode", createdAt)
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create(other org) error = %v", err)
	}

	open, err := repo.FindOpen(ctx, "org-1", anomaly.TypeSpike, "Usage spike: fast mode")
	if err != nil {
		t.Fatalf("FindOpen() error = %v", err)
	}
	if open == nil || open.ID != "a-1" {
		t.Fatalf("FindOpen() = %+v, want a-1", open)
	}

	none, err := repo.FindOpen(ctx, "org-1", anomaly.TypeSpike, "some other title")
	if err != nil {
		t.Fatalf("FindOpen(miss) error = %v", err)
	}
	if none != nil {
		t.Errorf("FindOpen(miss) = %+v, want nil", none)
	}

	// resolution frees the slot for a fresh alert
	if err := repo.Resolve(ctx, "a-1", "ops", time.Now().UTC()); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	reopened := newAlert("a-4", "org-1", anomaly.SeverityHigh, "Usage spike: fast mode", createdAt.Add(time.Hour))
	if err := repo.Create(ctx, reopened); err != nil {
		t.Fatalf("Create(after resolve) error = %v", err)
	}

	open, err = repo.FindOpen(ctx, "org-1", anomaly.TypeSpike, "Usage spike: fast mode")
	if err != nil {
		t.Fatalf("FindOpen(after resolve) error = %v", err)
	}
	if open == nil || open.ID != "a-4" {
		t.Fatalf("FindOpen(after resolve) = %+v, want a-4", open)
	}
}

func TestAlertRepository_ListActive(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)

	seed := []*alert.Alert{
		newAlert("a-1", "org-1", anomaly.SeverityHigh, "t1", base),
		newAlert("a-2", "org-1", anomaly.SeverityMedium, "t2", base.Add(time.Hour)),
		newAlert("a-3", "org-2", anomaly.SeverityHigh, "t3", base.Add(2*time.Hour)),
	}
	resolvedSeed := newAlert("a-0", "org-1", anomaly.SeverityLow, "t0", base.Add(3*time.Hour))
	resolvedSeed.Resolved = true
	seed = append(seed, resolvedSeed)

	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create(%s) error = %v", a.ID, err)
		}
	}

	got, err := repo.ListActive(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListActive(org-1) returned %d, want 2", len(got))
	}
	if got[0].ID != "a-2" || got[1].ID != "a-1" {
		t.Errorf("order = [%s %s], want newest first [a-2 a-1]", got[0].ID, got[1].ID)
	}

	all, err := repo.ListActive(ctx, "")
	if err != nil {
		t.Fatalf("ListActive(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListActive(all) returned %d, want 3", len(all))
	}
}

func TestAlertRepository_List(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)

	severities := []anomaly.Severity{
		anomaly.SeverityHigh, anomaly.SeverityHigh, anomaly.SeverityMedium,
		anomaly.SeverityHigh, anomaly.SeverityCritical,
	}
	for i, sev := range severities {
		a := newAlert(
			string(rune('a'+i)), "org-1", sev,
			"title-"+string(rune('a'+i)),
			base.Add(time.Duration(i)*time.Minute),
		)
		if i == 1 {
			a.Resolved = true
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	highs, total, err := repo.List(ctx, alert.Filter{Severity: anomaly.SeverityHigh}, 10, 0)
	if err != nil {
		t.Fatalf("List(high) error = %v", err)
	}
	if total != 3 || len(highs) != 3 {
		t.Fatalf("List(high) = %d rows, total %d, want 3/3", len(highs), total)
	}
	// newest first: d, b, a
	if highs[0].ID != "d" || highs[1].ID != "b" || highs[2].ID != "a" {
		t.Errorf("order = [%s %s %s], want [d b a]", highs[0].ID, highs[1].ID, highs[2].ID)
	}

	open := false
	_, total, err = repo.List(ctx, alert.Filter{Resolved: &open}, 10, 0)
	if err != nil {
		t.Fatalf("List(unresolved) error = %v", err)
	}
	if total != 4 {
		t.Errorf("unresolved total = %d, want 4", total)
	}

	page, total, err := repo.List(ctx, alert.Filter{OrganizationID: "org-1"}, 2, 2)
	if err != nil {
		t.Fatalf("List(page) error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Errorf("page = %v, want [c b]", []string{page[0].ID, page[1].ID})
	}
}

func TestAlertRepository_Resolve(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()

	a := newAlert("a-1", "org-1", anomaly.SeverityHigh, "t", time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resolvedAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)
	if err := repo.Resolve(ctx, "a-1", "ops@example.com", resolvedAt); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Resolved {
		t.Error("alert not resolved")
	}
	if got.ResolvedBy != "ops@example.com" {
		t.Errorf("ResolvedBy = %q", got.ResolvedBy)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
		t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, resolvedAt)
	}

	if err := repo.Resolve(ctx, "missing", "ops", resolvedAt); err == nil {
		t.Error("Resolve(missing) error = nil, want not found")
	}
}

func TestAlertRepository_AppendNotificationsSent(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()

	a := newAlert("a-1", "org-1", anomaly.SeverityCritical, "t", time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.AppendNotificationsSent(ctx, "a-1", []string{"email", "chat-webhook"}); err != nil {
		t.Fatalf("AppendNotificationsSent() error = %v", err)
	}
	// repeats are dropped, new channels appended
	if err := repo.AppendNotificationsSent(ctx, "a-1", []string{"email", "generic-webhook"}); err != nil {
		t.Fatalf("second AppendNotificationsSent() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	want := []string{"email", "chat-webhook", "generic-webhook"}
	if len(got.NotificationsSent) != len(want) {
		t.Fatalf("NotificationsSent = %v, want %v", got.NotificationsSent, want)
	}
	for i := range want {
		if got.NotificationsSent[i] != want[i] {
			t.Errorf("NotificationsSent[%d] = %q, want %q", i, got.NotificationsSent[i], want[i])
		}
	}

	if err := repo.AppendNotificationsSent(ctx, "missing", []string{"email"}); err == nil {
		t.Error("AppendNotificationsSent(missing) error = nil, want not found")
	}
}

// Concurrent appends for the same alert must not lose a channel; the
// read-modify-write locks the row so the record stays append-only.
func TestAlertRepository_AppendNotificationsSent_Concurrent(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()

	a := newAlert("a-1", "org-1", anomaly.SeverityCritical, "t", time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	channels := []string{"email", "chat-webhook", "generic-webhook"}
	var wg sync.WaitGroup
	errs := make([]error, len(channels))
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch string) {
			defer wg.Done()
			errs[i] = repo.AppendNotificationsSent(ctx, "a-1", []string{ch})
		}(i, ch)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("AppendNotificationsSent(%s) error = %v", channels[i], err)
		}
	}

	got, err := repo.GetByID(ctx, "a-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.NotificationsSent) != len(channels) {
		t.Fatalf("NotificationsSent = %v, want all of %v", got.NotificationsSent, channels)
	}
	seen := make(map[string]bool, len(got.NotificationsSent))
	for _, ch := range got.NotificationsSent {
		seen[ch] = true
	}
	for _, ch := range channels {
		if !seen[ch] {
			t.Errorf("NotificationsSent = %v, channel %s lost", got.NotificationsSent, ch)
		}
	}
}

func TestAlertRepository_CountActiveBySeverity(t *testing.T) {
	repo := NewAlertRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)

	seed := []*alert.Alert{
		newAlert("a-1", "org-1", anomaly.SeverityHigh, "t1", base),
		newAlert("a-2", "org-2", anomaly.SeverityHigh, "t2", base),
		newAlert("a-3", "org-3", anomaly.SeverityCritical, "t3", base),
	}
	resolved := newAlert("a-4", "org-4", anomaly.SeverityHigh, "t4", base)
	resolved.Resolved = true
	seed = append(seed, resolved)

	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	counts, err := repo.CountActiveBySeverity(ctx)
	if err != nil {
		t.Fatalf("CountActiveBySeverity() error = %v", err)
	}
	if counts[anomaly.SeverityHigh] != 2 {
		t.Errorf("high = %d, want 2", counts[anomaly.SeverityHigh])
	}
	if counts[anomaly.SeverityCritical] != 1 {
		t.Errorf("critical = %d, want 1", counts[anomaly.SeverityCritical])
	}
	if counts[anomaly.SeverityMedium] != 0 {
		t.Errorf("medium = %d, want 0", counts[anomaly.SeverityMedium])
	}
}
