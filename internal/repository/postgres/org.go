package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
)

type OrgRepository struct {
	db *DB
}

func NewOrgRepository(db *DB) org.Repository {
	return &OrgRepository{db: db}
}

func (r *OrgRepository) GetByID(ctx context.Context, id string) (*org.Organization, error) {
	defer track("get", "organizations", time.Now())

	query := `SELECT id, name, tier, created_at FROM organizations WHERE id = ?`

	o, err := scanOrg(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Organization")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get organization", err)
	}
	return o, nil
}

func (r *OrgRepository) List(ctx context.Context) ([]*org.Organization, error) {
	defer track("list", "organizations", time.Now())

	query := `SELECT id, name, tier, created_at FROM organizations ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list organizations", err)
	}
	defer rows.Close()

	var orgs []*org.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan organization", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to read organizations", err)
	}
	return orgs, nil
}

func (r *OrgRepository) GetTier(ctx context.Context, id string) (org.Tier, error) {
	defer track("get", "organizations", time.Now())

	query := `SELECT tier FROM organizations WHERE id = ?`

	var tier string
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), id).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", errors.NotFound("Organization")
	}
	if err != nil {
		return "", errors.DatabaseError("Failed to get organization tier", err)
	}
	return org.Tier(tier), nil
}

func scanOrg(row rowScanner) (*org.Organization, error) {
	var (
		o         org.Organization
		tier      string
		createdAt string
	)
	if err := row.Scan(&o.ID, &o.Name, &tier, &createdAt); err != nil {
		return nil, err
	}
	o.Tier = org.Tier(tier)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &o, nil
}
