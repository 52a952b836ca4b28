package services

import (
	"context"
	"testing"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/baseline"
	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
)

func newDetector() anomaly.Detector {
	return NewDetectorService(logger.New(logger.Config{Level: "error", Format: "json"}))
}

// quietSnapshot returns a snapshot that triggers nothing on its own
func quietSnapshot(takenAt time.Time) *usage.Snapshot {
	return &usage.Snapshot{
		OrganizationID: "org-1",
		TakenAt:        takenAt,
		LastHour:       map[usage.Mode]float64{},
		MonthToDate:    map[usage.Mode]usage.MonthUsage{},
	}
}

func TestDetectorService_Spike(t *testing.T) {
	detector := newDetector()
	takenAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		weekly       float64
		lastHour     float64
		wantCount    int
		wantSeverity anomaly.Severity
	}{
		{
			name:         "sixty minutes against a seventy minute week is high",
			weekly:       70,
			lastHour:     60,
			wantCount:    1,
			wantSeverity: anomaly.SeverityHigh,
		},
		{
			name:         "between five and ten times baseline is medium",
			weekly:       400, // hourly baseline ~2.38
			lastHour:     15,
			wantCount:    1,
			wantSeverity: anomaly.SeverityMedium,
		},
		{
			name:      "zero baseline means insufficient data",
			weekly:    0,
			lastHour:  500,
			wantCount: 0,
		},
		{
			name:      "under the ten minute noise floor",
			weekly:    1, // hourly baseline ~0.006
			lastHour:  9,
			wantCount: 0,
		},
		{
			name:      "exactly the noise floor does not fire",
			weekly:    1,
			lastHour:  10,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := quietSnapshot(takenAt)
			snap.LastHour[usage.ModeFast] = tt.lastHour
			pattern := &baseline.UsagePattern{OrganizationID: "org-1", WeeklyAverage: tt.weekly}

			got := detector.Detect(context.Background(), snap, pattern, org.TierPro)

			if len(got) != tt.wantCount {
				t.Fatalf("Detect() returned %d anomalies, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Type != anomaly.TypeSpike {
				t.Errorf("Type = %s, want %s", got[0].Type, anomaly.TypeSpike)
			}
			if got[0].Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got[0].Severity, tt.wantSeverity)
			}
			if got[0].Mode != usage.ModeFast {
				t.Errorf("Mode = %s, want %s", got[0].Mode, usage.ModeFast)
			}
		})
	}
}

func TestDetectorService_RapidDepletion(t *testing.T) {
	detector := newDetector()
	// June 6th of a 30 day month: month progress exactly 0.2
	takenAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		used         float64
		limit        float64
		wantCount    int
		wantSeverity anomaly.Severity
	}{
		{
			name:      "exactly half the quota does not fire",
			used:      500,
			limit:     1000,
			wantCount: 0,
		},
		{
			name:         "just past half fires high",
			used:         510,
			limit:        1000,
			wantCount:    1,
			wantSeverity: anomaly.SeverityHigh,
		},
		{
			name:         "past eighty percent fires critical",
			used:         850,
			limit:        1000,
			wantCount:    1,
			wantSeverity: anomaly.SeverityCritical,
		},
		{
			name:      "zero limit is skipped",
			used:      900,
			limit:     0,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := quietSnapshot(takenAt)
			snap.MonthToDate[usage.ModeBalanced] = usage.MonthUsage{Used: tt.used, Limit: tt.limit}
			pattern := &baseline.UsagePattern{OrganizationID: "org-1"}

			got := detector.Detect(context.Background(), snap, pattern, org.TierPro)

			if len(got) != tt.wantCount {
				t.Fatalf("Detect() returned %d anomalies, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Type != anomaly.TypeRapidDepletion {
				t.Errorf("Type = %s, want %s", got[0].Type, anomaly.TypeRapidDepletion)
			}
			if got[0].Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got[0].Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectorService_RapidDepletion_LateMonth(t *testing.T) {
	detector := newDetector()
	// June 21st: month progress 0.7, so even 90% consumed is within pace
	takenAt := time.Date(2025, time.June, 21, 12, 0, 0, 0, time.UTC)

	snap := quietSnapshot(takenAt)
	snap.MonthToDate[usage.ModeBalanced] = usage.MonthUsage{Used: 900, Limit: 1000}

	got := detector.Detect(context.Background(), snap, &baseline.UsagePattern{}, org.TierPro)
	if len(got) != 0 {
		t.Fatalf("Detect() returned %d anomalies, want 0 late in the month", len(got))
	}
}

func TestDetectorService_ModeAbuse(t *testing.T) {
	detector := newDetector()
	takenAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)

	shortSessions := func(n, durationSec int) []usage.Session {
		sessions := make([]usage.Session, 0, n)
		for i := 0; i < n; i++ {
			sessions = append(sessions, usage.Session{
				Mode:            usage.ModePrecision,
				DurationSeconds: durationSec,
				StartedAt:       takenAt.Add(-time.Duration(i) * time.Hour),
			})
		}
		return sessions
	}

	tests := []struct {
		name           string
		sessions       []usage.Session
		precisionUsed  float64
		balancedUsed   float64
		wantCount      int
		wantSeverities []anomaly.Severity
	}{
		{
			name:           "six short sessions fire medium",
			sessions:       shortSessions(6, 299),
			wantCount:      1,
			wantSeverities: []anomaly.Severity{anomaly.SeverityMedium},
		},
		{
			name:      "six sessions at the mean boundary do not fire",
			sessions:  shortSessions(6, 300),
			wantCount: 0,
		},
		{
			name:      "five short sessions are not enough",
			sessions:  shortSessions(5, 60),
			wantCount: 0,
		},
		{
			name:           "precision leaning on balanced fires low",
			precisionUsed:  101,
			balancedUsed:   200,
			wantCount:      1,
			wantSeverities: []anomaly.Severity{anomaly.SeverityLow},
		},
		{
			name:          "ratio check needs a hundred precision minutes",
			precisionUsed: 90,
			balancedUsed:  10,
			wantCount:     0,
		},
		{
			name:           "both sub-checks fire independently",
			sessions:       shortSessions(8, 120),
			precisionUsed:  150,
			balancedUsed:   100,
			wantCount:      2,
			wantSeverities: []anomaly.Severity{anomaly.SeverityMedium, anomaly.SeverityLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := quietSnapshot(takenAt)
			snap.RecentSessions = tt.sessions
			if tt.precisionUsed > 0 || tt.balancedUsed > 0 {
				snap.MonthToDate[usage.ModePrecision] = usage.MonthUsage{Used: tt.precisionUsed}
				snap.MonthToDate[usage.ModeBalanced] = usage.MonthUsage{Used: tt.balancedUsed}
			}

			got := detector.Detect(context.Background(), snap, &baseline.UsagePattern{}, org.TierPro)

			if len(got) != tt.wantCount {
				t.Fatalf("Detect() returned %d anomalies, want %d", len(got), tt.wantCount)
			}
			for i, want := range tt.wantSeverities {
				if got[i].Type != anomaly.TypeModeAbuse {
					t.Errorf("anomaly %d Type = %s, want %s", i, got[i].Type, anomaly.TypeModeAbuse)
				}
				if got[i].Severity != want {
					t.Errorf("anomaly %d Severity = %s, want %s", i, got[i].Severity, want)
				}
			}
		})
	}
}

func TestDetectorService_ConcurrentExcess(t *testing.T) {
	detector := newDetector()
	takenAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		tier         org.Tier
		concurrent   int
		wantCount    int
		wantSeverity anomaly.Severity
	}{
		{
			name:       "pro at twice the allowance does not fire",
			tier:       org.TierPro,
			concurrent: 10,
			wantCount:  0,
		},
		{
			name:         "pro just past twice the allowance fires high",
			tier:         org.TierPro,
			concurrent:   11,
			wantCount:    1,
			wantSeverity: anomaly.SeverityHigh,
		},
		{
			name:         "pro past five times the allowance fires critical",
			tier:         org.TierPro,
			concurrent:   26,
			wantCount:    1,
			wantSeverity: anomaly.SeverityCritical,
		},
		{
			name:         "unknown tier gets the trial allowance",
			tier:         org.Tier("bogus"),
			concurrent:   3,
			wantCount:    1,
			wantSeverity: anomaly.SeverityHigh,
		},
		{
			name:       "enterprise headroom",
			tier:       org.TierEnterprise,
			concurrent: 40,
			wantCount:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := quietSnapshot(takenAt)
			snap.ConcurrentSessions = tt.concurrent

			got := detector.Detect(context.Background(), snap, &baseline.UsagePattern{}, tt.tier)

			if len(got) != tt.wantCount {
				t.Fatalf("Detect() returned %d anomalies, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got[0].Type != anomaly.TypeConcurrentExcess {
				t.Errorf("Type = %s, want %s", got[0].Type, anomaly.TypeConcurrentExcess)
			}
			if got[0].Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got[0].Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectorService_MergedOrderIsStable(t *testing.T) {
	detector := newDetector()
	takenAt := time.Date(2025, time.June, 6, 12, 0, 0, 0, time.UTC)

	snap := quietSnapshot(takenAt)
	snap.LastHour[usage.ModeFast] = 60
	snap.MonthToDate[usage.ModeBalanced] = usage.MonthUsage{Used: 600, Limit: 1000}
	snap.ConcurrentSessions = 11
	pattern := &baseline.UsagePattern{OrganizationID: "org-1", WeeklyAverage: 70}

	want := []anomaly.Type{
		anomaly.TypeSpike,
		anomaly.TypeRapidDepletion,
		anomaly.TypeConcurrentExcess,
	}

	for run := 0; run < 10; run++ {
		got := detector.Detect(context.Background(), snap, pattern, org.TierPro)
		if len(got) != len(want) {
			t.Fatalf("Detect() returned %d anomalies, want %d", len(got), len(want))
		}
		for i, wt := range want {
			if got[i].Type != wt {
				t.Fatalf("run %d: anomaly %d is %s, want %s", run, i, got[i].Type, wt)
			}
		}
	}
}
