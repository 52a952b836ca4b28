package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
)

const alertColumns = "id, organization_id, type, severity, title, description, metadata, created_at, resolved, resolved_at, resolved_by, notifications_sent"

type AlertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) alert.Repository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	defer track("create", "alerts", time.Now())

	metadata := []byte("{}")
	if a.Metadata != nil {
		var err error
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return errors.DatabaseError("Failed to encode alert metadata", err)
		}
	}
	notified := []byte("[]")
	if a.NotificationsSent != nil {
		var err error
		notified, err = json.Marshal(a.NotificationsSent)
		if err != nil {
			return errors.DatabaseError("Failed to encode notification channels", err)
		}
	}

	query := `
		INSERT INTO alerts (id, organization_id, type, severity, title, description, metadata, created_at, resolved, resolved_by, notifications_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		a.ID, a.OrganizationID, string(a.Type), string(a.Severity), a.Title, a.Description,
		string(metadata), a.CreatedAt.UTC().Format(time.RFC3339), a.Resolved, a.ResolvedBy, string(notified),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return alert.ErrDuplicateOpenAlert
		}
		return errors.DatabaseError("Failed to create alert", err)
	}

	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	defer track("get", "alerts", time.Now())

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	a, err := scanAlert(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Alert")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get alert", err)
	}
	return a, nil
}

func (r *AlertRepository) FindOpen(ctx context.Context, organizationID string, alertType anomaly.Type, title string) (*alert.Alert, error) {
	defer track("get", "alerts", time.Now())

	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE organization_id = ? AND type = ? AND title = ? AND resolved = FALSE`

	a, err := scanAlert(r.db.QueryRowContext(ctx, r.db.Rebind(query), organizationID, string(alertType), title))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to find open alert", err)
	}
	return a, nil
}

func (r *AlertRepository) ListActive(ctx context.Context, organizationID string) ([]*alert.Alert, error) {
	defer track("list", "alerts", time.Now())

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE resolved = FALSE`
	var args []interface{}
	if organizationID != "" {
		query += ` AND organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list active alerts", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (r *AlertRepository) List(ctx context.Context, filter alert.Filter, limit, offset int) ([]*alert.Alert, int64, error) {
	defer track("list", "alerts", time.Now())

	var conditions []string
	var args []interface{}
	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Resolved != nil {
		conditions = append(conditions, "resolved = ?")
		args = append(args, *filter.Resolved)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM alerts" + where
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("Failed to count alerts", err)
	}

	query := "SELECT " + alertColumns + " FROM alerts" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list alerts", err)
	}
	defer rows.Close()

	alerts, err := collectAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *AlertRepository) Resolve(ctx context.Context, id string, resolvedBy string, resolvedAt time.Time) error {
	defer track("update", "alerts", time.Now())

	query := `UPDATE alerts SET resolved = TRUE, resolved_at = ?, resolved_by = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		resolvedAt.UTC().Format(time.RFC3339), resolvedBy, id,
	)
	if err != nil {
		return errors.DatabaseError("Failed to resolve alert", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.NotFound("Alert")
	}
	return nil
}

func (r *AlertRepository) AppendNotificationsSent(ctx context.Context, id string, channels []string) error {
	defer track("update", "alerts", time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	// Lock the row on postgres so concurrent appends cannot lose a channel;
	// sqlite serializes writers on its own.
	query := "SELECT notifications_sent FROM alerts WHERE id = ?"
	if r.db.Driver() == "postgres" {
		query += " FOR UPDATE"
	}

	var notified string
	err = tx.QueryRowContext(ctx, r.db.Rebind(query), id).Scan(&notified)
	if err == sql.ErrNoRows {
		return errors.NotFound("Alert")
	}
	if err != nil {
		return errors.DatabaseError("Failed to read notification channels", err)
	}

	var existing []string
	if notified != "" {
		json.Unmarshal([]byte(notified), &existing)
	}
	for _, ch := range channels {
		present := false
		for _, e := range existing {
			if e == ch {
				present = true
				break
			}
		}
		if !present {
			existing = append(existing, ch)
		}
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return errors.DatabaseError("Failed to encode notification channels", err)
	}

	if _, err := tx.ExecContext(ctx, r.db.Rebind("UPDATE alerts SET notifications_sent = ? WHERE id = ?"), string(merged), id); err != nil {
		return errors.DatabaseError("Failed to update notification channels", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit notification channels", err)
	}
	return nil
}

func (r *AlertRepository) CountActiveBySeverity(ctx context.Context) (map[anomaly.Severity]int, error) {
	defer track("count", "alerts", time.Now())

	query := `SELECT severity, COUNT(*) FROM alerts WHERE resolved = FALSE GROUP BY severity`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.DatabaseError("Failed to count active alerts", err)
	}
	defer rows.Close()

	counts := make(map[anomaly.Severity]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, errors.DatabaseError("Failed to scan alert counts", err)
		}
		counts[anomaly.Severity(severity)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read alert counts", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var (
		a          alert.Alert
		alertType  string
		severity   string
		metadata   string
		createdAt  string
		resolvedAt sql.NullString
		notified   string
	)
	err := row.Scan(
		&a.ID, &a.OrganizationID, &alertType, &severity, &a.Title, &a.Description,
		&metadata, &createdAt, &a.Resolved, &resolvedAt, &a.ResolvedBy, &notified,
	)
	if err != nil {
		return nil, err
	}

	a.Type = anomaly.Type(alertType)
	a.Severity = anomaly.Severity(severity)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if resolvedAt.Valid && resolvedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, resolvedAt.String); err == nil {
			a.ResolvedAt = &t
		}
	}
	if metadata != "" && metadata != "null" {
		json.Unmarshal([]byte(metadata), &a.Metadata)
	}
	if notified != "" {
		json.Unmarshal([]byte(notified), &a.NotificationsSent)
	}
	if a.NotificationsSent == nil {
		a.NotificationsSent = []string{}
	}
	return &a, nil
}

func collectAlerts(rows *sql.Rows) ([]*alert.Alert, error) {
	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan alert", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read alerts", err)
	}
	return alerts, nil
}
