package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
)

const dayFormat = "2006-01-02"

type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) usage.Repository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) GetHistoricalUsage(ctx context.Context, organizationID string, since time.Time) ([]usage.DayModeUsage, error) {
	defer track("list", "usage_daily", time.Now())

	query := `
		SELECT day, mode, minutes FROM usage_daily
		WHERE organization_id = ? AND day >= ?
		ORDER BY day ASC, mode ASC
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), organizationID, since.UTC().Format(dayFormat))
	if err != nil {
		return nil, errors.DatabaseError("Failed to query historical usage", err)
	}
	defer rows.Close()

	var result []usage.DayModeUsage
	for rows.Next() {
		var (
			day     string
			mode    string
			minutes float64
		)
		if err := rows.Scan(&day, &mode, &minutes); err != nil {
			return nil, errors.DatabaseError("Failed to scan daily usage", err)
		}
		d, err := time.Parse(dayFormat, day)
		if err != nil {
			continue
		}
		result = append(result, usage.DayModeUsage{Day: d, Mode: usage.Mode(mode), Minutes: minutes})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read daily usage", err)
	}
	return result, nil
}

// GetHourlyProfile averages session minutes into hour-of-day buckets.
// started_at is fixed-width RFC3339 UTC, so the hour digits sit at offset
// 12 on both drivers.
func (r *UsageRepository) GetHourlyProfile(ctx context.Context, organizationID string, since time.Time) ([24]float64, error) {
	defer track("aggregate", "usage_sessions", time.Now())

	var profile [24]float64

	query := `
		SELECT substr(started_at, 12, 2) AS hour, SUM(duration_seconds) / 60.0
		FROM usage_sessions
		WHERE organization_id = ? AND started_at >= ?
		GROUP BY hour
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), organizationID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return profile, errors.DatabaseError("Failed to query hourly profile", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour string
		var minutes float64
		if err := rows.Scan(&hour, &minutes); err != nil {
			return profile, errors.DatabaseError("Failed to scan hourly profile", err)
		}
		h, err := strconv.Atoi(hour)
		if err != nil || h < 0 || h > 23 {
			continue
		}
		profile[h] = minutes
	}
	if err := rows.Err(); err != nil {
		return profile, errors.DatabaseError("Failed to read hourly profile", err)
	}

	days := int(time.Since(since).Hours() / 24)
	if days < 1 {
		days = 1
	}
	for h := range profile {
		profile[h] /= float64(days)
	}
	return profile, nil
}

func (r *UsageRepository) GetCurrentMonthUsage(ctx context.Context, organizationID string) (map[usage.Mode]usage.MonthUsage, error) {
	defer track("aggregate", "usage_daily", time.Now())

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	query := `
		SELECT l.mode, COALESCE(SUM(d.minutes), 0), l.monthly_limit_minutes
		FROM usage_limits l
		LEFT JOIN usage_daily d
			ON d.organization_id = l.organization_id AND d.mode = l.mode AND d.day >= ?
		WHERE l.organization_id = ?
		GROUP BY l.mode, l.monthly_limit_minutes
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), monthStart.Format(dayFormat), organizationID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to query month usage", err)
	}
	defer rows.Close()

	result := make(map[usage.Mode]usage.MonthUsage)
	for rows.Next() {
		var mode string
		var used, limit float64
		if err := rows.Scan(&mode, &used, &limit); err != nil {
			return nil, errors.DatabaseError("Failed to scan month usage", err)
		}
		result[usage.Mode(mode)] = usage.MonthUsage{Used: used, Limit: limit}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read month usage", err)
	}
	return result, nil
}

func (r *UsageRepository) GetRecentActivity(ctx context.Context, organizationID string, window time.Duration) ([]usage.Session, error) {
	defer track("list", "usage_sessions", time.Now())

	cutoff := time.Now().UTC().Add(-window)

	query := `
		SELECT mode, duration_seconds, started_at FROM usage_sessions
		WHERE organization_id = ? AND started_at >= ?
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), organizationID, cutoff.Format(time.RFC3339))
	if err != nil {
		return nil, errors.DatabaseError("Failed to query recent activity", err)
	}
	defer rows.Close()

	var sessions []usage.Session
	for rows.Next() {
		var (
			mode      string
			duration  int
			startedAt string
		)
		if err := rows.Scan(&mode, &duration, &startedAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan session", err)
		}
		started, err := time.Parse(time.RFC3339, startedAt)
		if err != nil {
			continue
		}
		sessions = append(sessions, usage.Session{
			Mode:            usage.Mode(mode),
			DurationSeconds: duration,
			StartedAt:       started,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read sessions", err)
	}
	return sessions, nil
}

func (r *UsageRepository) GetLastHourUsage(ctx context.Context, organizationID string) (map[usage.Mode]float64, error) {
	defer track("aggregate", "usage_sessions", time.Now())

	cutoff := time.Now().UTC().Add(-time.Hour)

	query := `
		SELECT mode, SUM(duration_seconds) / 60.0
		FROM usage_sessions
		WHERE organization_id = ? AND started_at >= ?
		GROUP BY mode
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), organizationID, cutoff.Format(time.RFC3339))
	if err != nil {
		return nil, errors.DatabaseError("Failed to query last hour usage", err)
	}
	defer rows.Close()

	result := make(map[usage.Mode]float64)
	for rows.Next() {
		var mode string
		var minutes float64
		if err := rows.Scan(&mode, &minutes); err != nil {
			return nil, errors.DatabaseError("Failed to scan last hour usage", err)
		}
		result[usage.Mode(mode)] = minutes
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read last hour usage", err)
	}
	return result, nil
}

func (r *UsageRepository) CountActiveSessions(ctx context.Context, organizationID string) (int, error) {
	defer track("count", "usage_sessions", time.Now())

	query := `SELECT COUNT(*) FROM usage_sessions WHERE organization_id = ? AND ended_at IS NULL`

	var count int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), organizationID).Scan(&count); err != nil {
		return 0, errors.DatabaseError("Failed to count active sessions", err)
	}
	return count, nil
}
