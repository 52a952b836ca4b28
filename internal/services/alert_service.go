package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/metrics"
)

// AlertService implements alert.Service
type AlertService struct {
	repo   alert.Repository
	logger *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(repo alert.Repository, log *logger.Logger) alert.Service {
	return &AlertService{
		repo:   repo,
		logger: log,
	}
}

// CreateAlert opens a new alert unless an unresolved one already exists for
// the same (organization, type, title). The existence check here is an
// optimization; the storage uniqueness constraint is the correctness
// mechanism under concurrent cycles, and its violation maps to the same
// (nil, nil) suppression outcome.
func (s *AlertService) CreateAlert(ctx context.Context, params alert.CreateParams) (*alert.Alert, error) {
	existing, err := s.repo.FindOpen(ctx, params.OrganizationID, params.Type, params.Title)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to check for open alert")
		return nil, err
	}
	if existing != nil {
		metrics.RecordAlertSuppressed()
		s.logger.WithFields(map[string]interface{}{
			"organization_id": params.OrganizationID,
			"type":            params.Type,
			"title":           params.Title,
			"existing_id":     existing.ID,
		}).Debug("Open alert exists, suppressing duplicate")
		return nil, nil
	}

	a := &alert.Alert{
		ID:                uuid.New().String(),
		OrganizationID:    params.OrganizationID,
		Type:              params.Type,
		Severity:          params.Severity,
		Title:             params.Title,
		Description:       params.Description,
		Metadata:          params.Metadata,
		CreatedAt:         time.Now().UTC(),
		Resolved:          false,
		NotificationsSent: []string{},
	}

	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, alert.ErrDuplicateOpenAlert) {
			metrics.RecordAlertSuppressed()
			return nil, nil
		}
		s.logger.ErrorWithErr(err, "Failed to create alert")
		return nil, err
	}

	metrics.RecordAlertCreated(string(a.Type), string(a.Severity))
	s.logger.WithFields(map[string]interface{}{
		"alert_id":        a.ID,
		"organization_id": a.OrganizationID,
		"severity":        a.Severity,
		"type":            a.Type,
		"title":           a.Title,
	}).Info("Alert created")

	return a, nil
}

// GetAlert retrieves an alert by ID
func (s *AlertService) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActiveAlerts retrieves unresolved alerts newest-first
func (s *AlertService) GetActiveAlerts(ctx context.Context, organizationID string) ([]*alert.Alert, error) {
	return s.repo.ListActive(ctx, organizationID)
}

// ListAlerts retrieves alerts with filters and pagination
func (s *AlertService) ListAlerts(ctx context.Context, filter alert.Filter, limit, offset int) ([]*alert.Alert, int64, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// ResolveAlert marks an alert resolved. Resolving an already resolved alert
// is a no-op.
func (s *AlertService) ResolveAlert(ctx context.Context, id string, resolvedBy string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Resolved {
		return nil
	}

	if err := s.repo.Resolve(ctx, id, resolvedBy, time.Now().UTC()); err != nil {
		s.logger.ErrorWithErr(err, "Failed to resolve alert")
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"alert_id":        id,
		"organization_id": a.OrganizationID,
		"resolved_by":     resolvedBy,
	}).Info("Alert resolved")

	return nil
}

// MarkNotified appends channel names to the alert's delivery record
func (s *AlertService) MarkNotified(ctx context.Context, id string, channels []string) error {
	if len(channels) == 0 {
		return nil
	}

	if err := s.repo.AppendNotificationsSent(ctx, id, channels); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"alert_id": id,
			"channels": channels,
		}).ErrorWithErr(err, "Failed to record notifications")
		return err
	}
	return nil
}

// CountActiveBySeverity counts unresolved alerts per severity
func (s *AlertService) CountActiveBySeverity(ctx context.Context) (map[anomaly.Severity]int, error) {
	counts, err := s.repo.CountActiveBySeverity(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to count active alerts")
		return nil, err
	}
	return counts, nil
}
