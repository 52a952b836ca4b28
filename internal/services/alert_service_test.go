package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/testutil"
)

func spikeParams(orgID string) alert.CreateParams {
	return alert.CreateParams{
		OrganizationID: orgID,
		Type:           anomaly.TypeSpike,
		Severity:       anomaly.SeverityHigh,
		Title:          alert.TitleFor(anomaly.TypeSpike, usage.ModeFast),
		Description:    "fast mode used 60.0 minutes in the last hour",
		Metadata:       map[string]interface{}{"current_value": 60.0},
	}
}

func TestAlertService_CreateAlert(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))

	a, err := svc.CreateAlert(context.Background(), spikeParams("org-1"))
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if a == nil {
		t.Fatal("CreateAlert() returned nil alert")
	}
	if a.ID == "" {
		t.Error("alert ID is empty")
	}
	if a.Resolved {
		t.Error("new alert is resolved")
	}
	if a.NotificationsSent == nil || len(a.NotificationsSent) != 0 {
		t.Errorf("NotificationsSent = %v, want empty slice", a.NotificationsSent)
	}
	if a.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", a.CreatedAt.Location())
	}
	if len(repo.Alerts) != 1 {
		t.Errorf("repository holds %d alerts, want 1", len(repo.Alerts))
	}
}

func TestAlertService_CreateAlert_SuppressesDuplicate(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	first, err := svc.CreateAlert(ctx, spikeParams("org-1"))
	if err != nil || first == nil {
		t.Fatalf("first CreateAlert() = (%v, %v), want alert", first, err)
	}

	dup, err := svc.CreateAlert(ctx, spikeParams("org-1"))
	if err != nil {
		t.Fatalf("duplicate CreateAlert() error = %v", err)
	}
	if dup != nil {
		t.Errorf("duplicate CreateAlert() = %+v, want nil", dup)
	}
	if len(repo.Alerts) != 1 {
		t.Errorf("repository holds %d alerts, want 1", len(repo.Alerts))
	}

	// a different tenant with the same condition is not a duplicate
	other, err := svc.CreateAlert(ctx, spikeParams("org-2"))
	if err != nil || other == nil {
		t.Fatalf("other org CreateAlert() = (%v, %v), want alert", other, err)
	}

	// same tenant, different condition is not a duplicate either
	params := spikeParams("org-1")
	params.Type = anomaly.TypeConcurrentExcess
	params.Title = alert.TitleFor(anomaly.TypeConcurrentExcess, "")
	excess, err := svc.CreateAlert(ctx, params)
	if err != nil || excess == nil {
		t.Fatalf("other type CreateAlert() = (%v, %v), want alert", excess, err)
	}
}

func TestAlertService_CreateAlert_ConstraintRace(t *testing.T) {
	// FindOpen seeing nothing does not guarantee insert succeeds under
	// concurrent cycles; the constraint violation maps to suppression too
	repo := testutil.NewMockAlertRepository()
	repo.CreateError = alert.ErrDuplicateOpenAlert
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))

	a, err := svc.CreateAlert(context.Background(), spikeParams("org-1"))
	if err != nil {
		t.Fatalf("CreateAlert() error = %v, want suppression", err)
	}
	if a != nil {
		t.Errorf("CreateAlert() = %+v, want nil", a)
	}
}

func TestAlertService_CreateAlert_RepositoryError(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	repo.CreateError = errors.New("connection reset")
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))

	_, err := svc.CreateAlert(context.Background(), spikeParams("org-1"))
	if err == nil {
		t.Fatal("CreateAlert() error = nil, want error")
	}
}

func TestAlertService_ResolveAlert(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	a, err := svc.CreateAlert(ctx, spikeParams("org-1"))
	if err != nil || a == nil {
		t.Fatalf("CreateAlert() = (%v, %v)", a, err)
	}

	if err := svc.ResolveAlert(ctx, a.ID, "ops@example.com"); err != nil {
		t.Fatalf("ResolveAlert() error = %v", err)
	}

	resolved, err := svc.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if !resolved.Resolved {
		t.Error("alert not marked resolved")
	}
	if resolved.ResolvedBy != "ops@example.com" {
		t.Errorf("ResolvedBy = %q, want ops@example.com", resolved.ResolvedBy)
	}
	if resolved.ResolvedAt == nil {
		t.Error("ResolvedAt is nil")
	}

	// resolving again is a no-op
	if err := svc.ResolveAlert(ctx, a.ID, "someone-else"); err != nil {
		t.Fatalf("second ResolveAlert() error = %v", err)
	}
	again, _ := svc.GetAlert(ctx, a.ID)
	if again.ResolvedBy != "ops@example.com" {
		t.Errorf("ResolvedBy changed to %q on repeat resolve", again.ResolvedBy)
	}

	// the condition may now re-alert
	reopened, err := svc.CreateAlert(ctx, spikeParams("org-1"))
	if err != nil {
		t.Fatalf("CreateAlert() after resolve error = %v", err)
	}
	if reopened == nil {
		t.Fatal("CreateAlert() after resolve suppressed, want new alert")
	}
	if reopened.ID == a.ID {
		t.Error("re-alert reused the resolved alert's ID")
	}
}

func TestAlertService_ResolveAlert_NotFound(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))

	if err := svc.ResolveAlert(context.Background(), "missing", "ops"); err == nil {
		t.Fatal("ResolveAlert() error = nil, want error")
	}
}

func TestAlertService_MarkNotified(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	a, err := svc.CreateAlert(ctx, spikeParams("org-1"))
	if err != nil || a == nil {
		t.Fatalf("CreateAlert() = (%v, %v)", a, err)
	}

	// empty channel list never touches the repository
	repo.UpdateError = errors.New("should not be called")
	if err := svc.MarkNotified(ctx, a.ID, nil); err != nil {
		t.Fatalf("MarkNotified(nil) error = %v", err)
	}
	repo.UpdateError = nil

	if err := svc.MarkNotified(ctx, a.ID, []string{"email", "chat-webhook"}); err != nil {
		t.Fatalf("MarkNotified() error = %v", err)
	}
	if err := svc.MarkNotified(ctx, a.ID, []string{"email", "generic-webhook"}); err != nil {
		t.Fatalf("MarkNotified() error = %v", err)
	}

	got, _ := svc.GetAlert(ctx, a.ID)
	want := []string{"email", "chat-webhook", "generic-webhook"}
	if len(got.NotificationsSent) != len(want) {
		t.Fatalf("NotificationsSent = %v, want %v", got.NotificationsSent, want)
	}
	for i := range want {
		if got.NotificationsSent[i] != want[i] {
			t.Errorf("NotificationsSent[%d] = %q, want %q", i, got.NotificationsSent[i], want[i])
		}
	}
}

func TestAlertService_GetActiveAlerts(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	base := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)
	seed := []*alert.Alert{
		{ID: "a-old", OrganizationID: "org-1", Type: anomaly.TypeSpike, Severity: anomaly.SeverityHigh, Title: "t1", CreatedAt: base},
		{ID: "a-new", OrganizationID: "org-1", Type: anomaly.TypeModeAbuse, Severity: anomaly.SeverityMedium, Title: "t2", CreatedAt: base.Add(time.Hour)},
		{ID: "a-done", OrganizationID: "org-1", Type: anomaly.TypeRapidDepletion, Severity: anomaly.SeverityCritical, Title: "t3", CreatedAt: base.Add(2 * time.Hour), Resolved: true},
		{ID: "a-other", OrganizationID: "org-2", Type: anomaly.TypeSpike, Severity: anomaly.SeverityHigh, Title: "t4", CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("seed Create() error = %v", err)
		}
	}

	got, err := svc.GetActiveAlerts(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetActiveAlerts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetActiveAlerts() returned %d alerts, want 2", len(got))
	}
	if got[0].ID != "a-new" || got[1].ID != "a-old" {
		t.Errorf("order = [%s %s], want newest first [a-new a-old]", got[0].ID, got[1].ID)
	}

	all, err := svc.GetActiveAlerts(ctx, "")
	if err != nil {
		t.Fatalf("GetActiveAlerts(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetActiveAlerts(all) returned %d alerts, want 3", len(all))
	}
}

func TestAlertService_ListAlerts_Pagination(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	base := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := &alert.Alert{
			ID:             string(rune('a' + i)),
			OrganizationID: "org-1",
			Type:           anomaly.TypeSpike,
			Severity:       anomaly.SeverityHigh,
			Title:          string(rune('a' + i)),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("seed Create() error = %v", err)
		}
	}

	page, total, err := svc.ListAlerts(ctx, alert.Filter{OrganizationID: "org-1"}, 2, 2)
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// newest first: e d | c b | a
	if page[0].ID != "c" || page[1].ID != "b" {
		t.Errorf("page = [%s %s], want [c b]", page[0].ID, page[1].ID)
	}
}

func TestAlertService_CountActiveBySeverity(t *testing.T) {
	repo := testutil.NewMockAlertRepository()
	svc := NewAlertService(repo, logger.New(logger.Config{Level: "error", Format: "json"}))
	ctx := context.Background()

	seed := []*alert.Alert{
		{ID: "1", OrganizationID: "org-1", Type: anomaly.TypeSpike, Severity: anomaly.SeverityHigh, Title: "t1"},
		{ID: "2", OrganizationID: "org-2", Type: anomaly.TypeSpike, Severity: anomaly.SeverityHigh, Title: "t2"},
		{ID: "3", OrganizationID: "org-3", Type: anomaly.TypeModeAbuse, Severity: anomaly.SeverityMedium, Title: "t3"},
		{ID: "4", OrganizationID: "org-4", Type: anomaly.TypeSpike, Severity: anomaly.SeverityCritical, Title: "t4", Resolved: true},
	}
	for _, a := range seed {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("seed Create() error = %v", err)
		}
	}

	counts, err := svc.CountActiveBySeverity(ctx)
	if err != nil {
		t.Fatalf("CountActiveBySeverity() error = %v", err)
	}
	if counts[anomaly.SeverityHigh] != 2 {
		t.Errorf("high = %d, want 2", counts[anomaly.SeverityHigh])
	}
	if counts[anomaly.SeverityMedium] != 1 {
		t.Errorf("medium = %d, want 1", counts[anomaly.SeverityMedium])
	}
	if counts[anomaly.SeverityCritical] != 0 {
		t.Errorf("critical = %d, want 0", counts[anomaly.SeverityCritical])
	}
}
