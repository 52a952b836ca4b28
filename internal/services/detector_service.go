package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/baseline"
	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

// Detection thresholds
const (
	spikeFireFactor   = 5.0   // last hour above this multiple of hourly baseline
	spikeHighFactor   = 10.0  // raises spike severity to high
	spikeMinMinutes   = 10.0  // noise floor for tiny baselines
	depletionFactor   = 2.0   // usage rate above this multiple of month progress
	depletionMinRate  = 0.5   // minimum quota share consumed before firing
	depletionCritRate = 0.8   // raises depletion severity to critical
	abuseMinSessions  = 6     // precision sessions in 24h before short-session check
	abuseShortMeanSec = 300.0 // mean precision session duration considered short
	abuseRatioFactor  = 0.5   // precision-to-balanced minute ratio threshold
	abuseMinPrecision = 100.0 // minimum precision minutes before ratio check
	excessFireFactor  = 2     // concurrent sessions above this multiple of tier allowance
	excessCritFactor  = 5     // raises excess severity to critical
)

// DetectorService implements anomaly.Detector
type DetectorService struct {
	logger *logger.Logger
}

// NewDetectorService creates a new detector service
func NewDetectorService(log *logger.Logger) anomaly.Detector {
	return &DetectorService{logger: log}
}

// Detect runs the four heuristics concurrently and merges their results in
// stable order: spike, rapid depletion, mode abuse, concurrent excess, each
// ordered by mode. Heuristics never suppress one another.
func (s *DetectorService) Detect(ctx context.Context, snap *usage.Snapshot, pattern *baseline.UsagePattern, tier org.Tier) []anomaly.UsageAnomaly {
	checks := []func(*usage.Snapshot, *baseline.UsagePattern, org.Tier) []anomaly.UsageAnomaly{
		s.detectSpike,
		s.detectRapidDepletion,
		s.detectModeAbuse,
		s.detectConcurrentExcess,
	}

	results := make([][]anomaly.UsageAnomaly, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check func(*usage.Snapshot, *baseline.UsagePattern, org.Tier) []anomaly.UsageAnomaly) {
			defer wg.Done()
			results[i] = check(snap, pattern, tier)
		}(i, check)
	}
	wg.Wait()

	var merged []anomaly.UsageAnomaly
	for _, r := range results {
		merged = append(merged, r...)
	}

	if len(merged) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"organization_id": snap.OrganizationID,
			"anomalies":       len(merged),
		}).Debug("Anomalies detected")
	}
	return merged
}

// detectSpike fires per mode when the last hour exceeds five times the
// hourly baseline and the noise floor. A zero baseline means insufficient
// data and produces nothing.
func (s *DetectorService) detectSpike(snap *usage.Snapshot, pattern *baseline.UsagePattern, _ org.Tier) []anomaly.UsageAnomaly {
	if pattern.WeeklyAverage <= 0 {
		return nil
	}

	avgHourly := pattern.WeeklyAverage / (7 * 24)

	var out []anomaly.UsageAnomaly
	for _, mode := range usage.Modes() {
		lastHour := snap.LastHour[mode]
		if lastHour <= avgHourly*spikeFireFactor || lastHour <= spikeMinMinutes {
			continue
		}

		severity := anomaly.SeverityMedium
		if lastHour > avgHourly*spikeHighFactor {
			severity = anomaly.SeverityHigh
		}

		out = append(out, anomaly.UsageAnomaly{
			OrganizationID: snap.OrganizationID,
			Type:           anomaly.TypeSpike,
			Severity:       severity,
			Mode:           mode,
			Details: anomaly.Details{
				CurrentValue:  lastHour,
				ExpectedValue: avgHourly,
				DeviationPct:  pctDeviation(lastHour, avgHourly),
				TimeWindow:    "1h",
				Description: fmt.Sprintf("%s mode consumed %.1f minutes in the last hour against an hourly baseline of %.2f",
					mode, lastHour, avgHourly),
			},
			DetectedAt: snap.TakenAt,
		})
	}
	return out
}

// detectRapidDepletion fires per limited mode when the consumed quota share
// runs more than twice ahead of month progress and past the minimum rate.
// Both comparisons are strict.
func (s *DetectorService) detectRapidDepletion(snap *usage.Snapshot, _ *baseline.UsagePattern, _ org.Tier) []anomaly.UsageAnomaly {
	day := snap.TakenAt.Day()
	daysInMonth := daysIn(snap.TakenAt)
	monthProgress := float64(day) / float64(daysInMonth)

	var out []anomaly.UsageAnomaly
	for _, mode := range usage.Modes() {
		mu, ok := snap.MonthToDate[mode]
		if !ok || mu.Limit <= 0 {
			continue
		}

		usageRate := mu.Used / mu.Limit
		if usageRate <= monthProgress*depletionFactor || usageRate <= depletionMinRate {
			continue
		}

		severity := anomaly.SeverityHigh
		if usageRate > depletionCritRate {
			severity = anomaly.SeverityCritical
		}

		out = append(out, anomaly.UsageAnomaly{
			OrganizationID: snap.OrganizationID,
			Type:           anomaly.TypeRapidDepletion,
			Severity:       severity,
			Mode:           mode,
			Details: anomaly.Details{
				CurrentValue:  usageRate,
				ExpectedValue: monthProgress,
				DeviationPct:  pctDeviation(usageRate, monthProgress),
				TimeWindow:    "month-to-date",
				Description: fmt.Sprintf("%s mode has consumed %.0f%% of its monthly quota %.0f%% of the way through the month",
					mode, usageRate*100, monthProgress*100),
			},
			DetectedAt: snap.TakenAt,
		})
	}
	return out
}

// detectModeAbuse runs two independent sub-checks on precision mode: many
// short sessions in the last 24 hours, and a month-to-date minute ratio that
// leans on precision over balanced. Either or both may fire.
func (s *DetectorService) detectModeAbuse(snap *usage.Snapshot, _ *baseline.UsagePattern, _ org.Tier) []anomaly.UsageAnomaly {
	var out []anomaly.UsageAnomaly

	var sessions, totalSec int
	for _, sess := range snap.RecentSessions {
		if sess.Mode != usage.ModePrecision {
			continue
		}
		sessions++
		totalSec += sess.DurationSeconds
	}

	if sessions >= abuseMinSessions {
		mean := float64(totalSec) / float64(sessions)
		if mean < abuseShortMeanSec {
			out = append(out, anomaly.UsageAnomaly{
				OrganizationID: snap.OrganizationID,
				Type:           anomaly.TypeModeAbuse,
				Severity:       anomaly.SeverityMedium,
				Mode:           usage.ModePrecision,
				Details: anomaly.Details{
					CurrentValue:  mean,
					ExpectedValue: abuseShortMeanSec,
					DeviationPct:  pctDeviation(mean, abuseShortMeanSec),
					TimeWindow:    "24h",
					Description: fmt.Sprintf("%d precision sessions in the last 24h with a mean duration of %.0fs",
						sessions, mean),
				},
				DetectedAt: snap.TakenAt,
			})
		}
	}

	precisionMin := snap.MonthToDate[usage.ModePrecision].Used
	balancedMin := snap.MonthToDate[usage.ModeBalanced].Used
	ratioCeiling := balancedMin * abuseRatioFactor

	if precisionMin > ratioCeiling && precisionMin > abuseMinPrecision {
		out = append(out, anomaly.UsageAnomaly{
			OrganizationID: snap.OrganizationID,
			Type:           anomaly.TypeModeAbuse,
			Severity:       anomaly.SeverityLow,
			Mode:           usage.ModePrecision,
			Details: anomaly.Details{
				CurrentValue:  precisionMin,
				ExpectedValue: ratioCeiling,
				DeviationPct:  pctDeviation(precisionMin, ratioCeiling),
				TimeWindow:    "month-to-date",
				Description: fmt.Sprintf("precision mode at %.0f minutes month-to-date against %.0f balanced minutes",
					precisionMin, balancedMin),
			},
			DetectedAt: snap.TakenAt,
		})
	}

	return out
}

// detectConcurrentExcess fires when current concurrent sessions run more
// than twice the tier allowance.
func (s *DetectorService) detectConcurrentExcess(snap *usage.Snapshot, _ *baseline.UsagePattern, tier org.Tier) []anomaly.UsageAnomaly {
	expected := tier.ExpectedConcurrency()
	concurrent := snap.ConcurrentSessions
	if concurrent <= expected*excessFireFactor {
		return nil
	}

	severity := anomaly.SeverityHigh
	if concurrent > expected*excessCritFactor {
		severity = anomaly.SeverityCritical
	}

	return []anomaly.UsageAnomaly{{
		OrganizationID: snap.OrganizationID,
		Type:           anomaly.TypeConcurrentExcess,
		Severity:       severity,
		Details: anomaly.Details{
			CurrentValue:  float64(concurrent),
			ExpectedValue: float64(expected),
			DeviationPct:  pctDeviation(float64(concurrent), float64(expected)),
			TimeWindow:    "current",
			Description: fmt.Sprintf("%d concurrent sessions on the %s tier, which allows %d",
				concurrent, tier, expected),
		},
		DetectedAt: snap.TakenAt,
	}}
}

// pctDeviation returns the signed percentage deviation of current from
// expected. A zero expectation maps to +100% rather than dividing by zero.
func pctDeviation(current, expected float64) float64 {
	if expected == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - expected) / expected * 100
}

// daysIn returns the number of days in t's month
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
