package services

import (
	"context"
	"sort"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/baseline"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// defaultLookbackDays is used when the caller passes a non-positive window
const defaultLookbackDays = 90

// BaselineService implements baseline.Service
type BaselineService struct {
	usageRepo usage.Repository
	logger    *logger.Logger
}

// NewBaselineService creates a new baseline service
func NewBaselineService(usageRepo usage.Repository, log *logger.Logger) baseline.Service {
	return &BaselineService{
		usageRepo: usageRepo,
		logger:    log,
	}
}

// ComputePattern derives the rolling usage baseline for a tenant. The weekly
// average divides the lookback total by ceil(N/7) full-or-partial weeks; the
// monthly total covers the trailing 30 days. A tenant with no history yields
// a zero pattern, never an error.
func (s *BaselineService) ComputePattern(ctx context.Context, organizationID string, lookbackDays int) (*baseline.UsagePattern, error) {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -lookbackDays)

	rows, err := s.usageRepo.GetHistoricalUsage(ctx, organizationID, since)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": organizationID,
		}).ErrorWithErr(err, "Failed to load historical usage")
		return nil, err
	}

	hourly, err := s.usageRepo.GetHourlyProfile(ctx, organizationID, since)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": organizationID,
		}).ErrorWithErr(err, "Failed to load hourly profile")
		return nil, err
	}

	pattern := &baseline.UsagePattern{
		OrganizationID: organizationID,
		HourlyUsage:    hourly,
		ModeTotals:     make(map[usage.Mode]float64),
		ComputedAt:     now,
	}

	if len(rows) == 0 {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": organizationID,
			"lookback_days":   lookbackDays,
		}).Debug("No usage history, returning zero baseline")
		return pattern, nil
	}

	monthCutoff := now.AddDate(0, 0, -30)
	byDay := make(map[time.Time]float64)

	var total float64
	for _, row := range rows {
		total += row.Minutes
		pattern.ModeTotals[row.Mode] += row.Minutes

		day := row.Day.UTC().Truncate(24 * time.Hour)
		byDay[day] += row.Minutes

		if row.Day.After(monthCutoff) {
			pattern.MonthlyTotal += row.Minutes
		}
	}

	weeks := (lookbackDays + 6) / 7
	pattern.WeeklyAverage = total / float64(weeks)

	pattern.DailyUsage = make([]baseline.DayUsage, 0, len(byDay))
	for day, minutes := range byDay {
		pattern.DailyUsage = append(pattern.DailyUsage, baseline.DayUsage{Day: day, Minutes: minutes})
	}
	sort.Slice(pattern.DailyUsage, func(i, j int) bool {
		return pattern.DailyUsage[i].Day.Before(pattern.DailyUsage[j].Day)
	})

	return pattern, nil
}
