package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/baseline"
	"github.com/minutehq/usagewatch/internal/domain/detection"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/metrics"
)

const defaultWorkerPool = 8

// EngineService drives the detection pipeline per tenant: snapshot,
// baseline, detect, alert, notify, all under a bounded worker pool. Tenants
// are isolated from each other; one tenant's failure never stops the cycle.
type EngineService struct {
	orgs         org.Repository
	usageRepo    usage.Repository
	baseliner    baseline.Service
	detector     anomaly.Detector
	alerts       alert.Service
	notifier     notification.Service
	lookbackDays int
	poolSize     int64
	logger       *logger.Logger
}

// NewEngineService creates a new detection engine
func NewEngineService(
	orgs org.Repository,
	usageRepo usage.Repository,
	baseliner baseline.Service,
	detector anomaly.Detector,
	alerts alert.Service,
	notifier notification.Service,
	lookbackDays int,
	poolSize int,
	log *logger.Logger,
) detection.Service {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	if poolSize <= 0 {
		poolSize = defaultWorkerPool
	}
	return &EngineService{
		orgs:         orgs,
		usageRepo:    usageRepo,
		baseliner:    baseliner,
		detector:     detector,
		alerts:       alerts,
		notifier:     notifier,
		lookbackDays: lookbackDays,
		poolSize:     int64(poolSize),
		logger:       log,
	}
}

// RunDetectionCycle runs detection and alerting for the given tenants, or
// for all eligible tenants when none are given. Created alerts come back in
// tenant input order.
func (s *EngineService) RunDetectionCycle(ctx context.Context, organizationIDs []string) ([]*alert.Alert, error) {
	start := time.Now()

	tenants, err := s.resolveTenants(ctx, organizationIDs)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		s.logger.Debug("No tenants eligible for detection")
		return nil, nil
	}

	sem := semaphore.NewWeighted(s.poolSize)
	results := make([][]*alert.Alert, len(tenants))
	var wg sync.WaitGroup

	for i, tenant := range tenants {
		if err := sem.Acquire(ctx, 1); err != nil {
			s.logger.ErrorWithErr(err, "Detection cycle interrupted")
			break
		}
		wg.Add(1)
		go func(i int, tenant *org.Organization) {
			defer wg.Done()
			defer sem.Release(1)

			created, err := s.processTenant(ctx, tenant)
			if err != nil {
				metrics.RecordDetectionCycle("error")
				s.logger.WithFields(map[string]interface{}{
					"organization_id": tenant.ID,
				}).ErrorWithErr(err, "Tenant detection failed, skipping")
				return
			}
			metrics.RecordDetectionCycle("success")
			results[i] = created
		}(i, tenant)
	}
	wg.Wait()

	var created []*alert.Alert
	for _, r := range results {
		created = append(created, r...)
	}

	s.refreshActiveGauge(ctx)
	metrics.RecordDetectionBatchDuration(time.Since(start))

	s.logger.WithFields(map[string]interface{}{
		"tenants":     len(tenants),
		"alerts":      len(created),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Detection cycle complete")

	return created, nil
}

// resolveTenants loads the tenant set for a cycle. Explicit IDs that fail to
// load are logged and skipped rather than failing the whole cycle.
func (s *EngineService) resolveTenants(ctx context.Context, organizationIDs []string) ([]*org.Organization, error) {
	if len(organizationIDs) == 0 {
		tenants, err := s.orgs.List(ctx)
		if err != nil {
			s.logger.ErrorWithErr(err, "Failed to list organizations")
			return nil, err
		}
		return tenants, nil
	}

	tenants := make([]*org.Organization, 0, len(organizationIDs))
	for _, id := range organizationIDs {
		tenant, err := s.orgs.GetByID(ctx, id)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"organization_id": id,
			}).ErrorWithErr(err, "Failed to load organization, skipping")
			continue
		}
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

// processTenant runs the full pipeline for one tenant and returns the alerts
// it created
func (s *EngineService) processTenant(ctx context.Context, tenant *org.Organization) ([]*alert.Alert, error) {
	snap, err := s.buildSnapshot(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	pattern, err := s.baseliner.ComputePattern(ctx, tenant.ID, s.lookbackDays)
	if err != nil {
		return nil, err
	}

	anomalies := s.detector.Detect(ctx, snap, pattern, tenant.Tier)

	var created []*alert.Alert
	for _, an := range anomalies {
		metrics.RecordAnomaly(string(an.Type), string(an.Severity))

		if an.Severity.Rank() < anomaly.SeverityMedium.Rank() {
			s.logger.WithFields(map[string]interface{}{
				"organization_id": tenant.ID,
				"type":            an.Type,
				"severity":        an.Severity,
			}).Debug("Anomaly below alerting threshold")
			continue
		}

		a, err := s.alerts.CreateAlert(ctx, alert.CreateParams{
			OrganizationID: an.OrganizationID,
			Type:           an.Type,
			Severity:       an.Severity,
			Title:          alert.TitleFor(an.Type, an.Mode),
			Description:    an.Details.Description,
			Metadata:       anomalyMetadata(an),
		})
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"organization_id": tenant.ID,
				"type":            an.Type,
			}).ErrorWithErr(err, "Failed to create alert")
			continue
		}
		if a == nil {
			// suppressed duplicate
			continue
		}

		if err := s.notifier.Dispatch(ctx, a); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"alert_id": a.ID,
			}).ErrorWithErr(err, "Failed to dispatch alert notifications")
		}
		created = append(created, a)
	}
	return created, nil
}

// buildSnapshot assembles the tenant's current usage view. TakenAt anchors
// all detector time math.
func (s *EngineService) buildSnapshot(ctx context.Context, organizationID string) (*usage.Snapshot, error) {
	lastHour, err := s.usageRepo.GetLastHourUsage(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("last hour usage: %w", err)
	}
	monthToDate, err := s.usageRepo.GetCurrentMonthUsage(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("current month usage: %w", err)
	}
	sessions, err := s.usageRepo.GetRecentActivity(ctx, organizationID, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	concurrent, err := s.usageRepo.CountActiveSessions(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("active sessions: %w", err)
	}

	return &usage.Snapshot{
		OrganizationID:     organizationID,
		TakenAt:            time.Now().UTC(),
		LastHour:           lastHour,
		MonthToDate:        monthToDate,
		RecentSessions:     sessions,
		ConcurrentSessions: concurrent,
	}, nil
}

func (s *EngineService) refreshActiveGauge(ctx context.Context) {
	counts, err := s.alerts.CountActiveBySeverity(ctx)
	if err != nil {
		return
	}
	for _, sev := range anomaly.Severities() {
		metrics.SetActiveAlerts(string(sev), float64(counts[sev]))
	}
}

func anomalyMetadata(an anomaly.UsageAnomaly) map[string]interface{} {
	m := map[string]interface{}{
		"current_value":  an.Details.CurrentValue,
		"expected_value": an.Details.ExpectedValue,
		"deviation_pct":  an.Details.DeviationPct,
		"time_window":    an.Details.TimeWindow,
	}
	if an.Mode != "" {
		m["mode"] = string(an.Mode)
	}
	return m
}
