package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
)

type PolicyRepository struct {
	db *DB
}

func NewPolicyRepository(db *DB) notification.Repository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) GetPolicies(ctx context.Context) ([]*notification.Policy, error) {
	defer track("list", "notification_policies", time.Now())

	query := `SELECT severity, channels, cadence, batch_window_seconds, updated_at FROM notification_policies`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list notification policies", err)
	}
	defer rows.Close()

	var policies []*notification.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan notification policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read notification policies", err)
	}

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Severity.Rank() < policies[j].Severity.Rank()
	})
	return policies, nil
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, severity anomaly.Severity) (*notification.Policy, error) {
	defer track("get", "notification_policies", time.Now())

	query := `SELECT severity, channels, cadence, batch_window_seconds, updated_at
		FROM notification_policies WHERE severity = ?`

	p, err := scanPolicy(r.db.QueryRowContext(ctx, r.db.Rebind(query), string(severity)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get notification policy", err)
	}
	return p, nil
}

func (r *PolicyRepository) UpsertPolicy(ctx context.Context, policy *notification.Policy) error {
	defer track("upsert", "notification_policies", time.Now())

	channels, err := json.Marshal(policy.Channels)
	if err != nil {
		return errors.DatabaseError("Failed to encode policy channels", err)
	}

	query := `
		INSERT INTO notification_policies (severity, channels, cadence, batch_window_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (severity) DO UPDATE SET
			channels = excluded.channels,
			cadence = excluded.cadence,
			batch_window_seconds = excluded.batch_window_seconds,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		string(policy.Severity), string(channels), string(policy.Cadence),
		int64(policy.BatchWindow/time.Second), policy.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.DatabaseError("Failed to upsert notification policy", err)
	}
	return nil
}

func scanPolicy(row rowScanner) (*notification.Policy, error) {
	var (
		severity   string
		channels   string
		cadence    string
		windowSecs int64
		updatedAt  string
	)
	if err := row.Scan(&severity, &channels, &cadence, &windowSecs, &updatedAt); err != nil {
		return nil, err
	}

	p := &notification.Policy{
		Severity:    anomaly.Severity(severity),
		Cadence:     notification.Cadence(cadence),
		BatchWindow: time.Duration(windowSecs) * time.Second,
	}
	if channels != "" {
		json.Unmarshal([]byte(channels), &p.Channels)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}
