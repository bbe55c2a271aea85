package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/draftline/draftline/internal/contract"
)

// Instances is the SQLite-backed instance storage. It implements
// contract.Storage with an optimistic compare-and-swap on the revision
// column.
type Instances struct {
	db *sql.DB
}

// InsertInstance implements contract.Storage.
func (s *Instances) InsertInstance(ctx context.Context, in *contract.Instance) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("insert instance: marshal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances (id, tenant_id, status, revision, payload)
		VALUES (?, ?, ?, ?, ?)
	`, in.ID, in.TenantID, string(in.Status), in.Revision, string(data))
	if err != nil {
		return fmt.Errorf("insert instance %s: %w", in.ID, err)
	}
	return nil
}

// GetInstance implements contract.Storage. The revision column is
// authoritative; the payload copy is overwritten with it on load.
func (s *Instances) GetInstance(ctx context.Context, id string) (*contract.Instance, error) {
	var revision int64
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, payload FROM instances WHERE id = ?`, id,
	).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instance %s: %w", id, contract.ErrInstanceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}

	var in contract.Instance
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return nil, fmt.Errorf("get instance %s: unmarshal: %w", id, err)
	}
	in.Revision = revision
	return &in, nil
}

// UpdateInstance implements contract.Storage. The WHERE clause carries
// the CAS: zero rows affected means either a missing row or a lost
// race, and a follow-up existence probe tells the two apart.
func (s *Instances) UpdateInstance(ctx context.Context, in *contract.Instance, expected int64) error {
	clone := in.Clone()
	clone.Revision = expected + 1
	data, err := json.Marshal(clone)
	if err != nil {
		return fmt.Errorf("update instance: marshal: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE instances
		SET tenant_id = ?, status = ?, revision = ?, payload = ?
		WHERE id = ? AND revision = ?
	`, clone.TenantID, string(clone.Status), clone.Revision, string(data), clone.ID, expected)
	if err != nil {
		return fmt.Errorf("update instance %s: %w", in.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update instance %s: rows affected: %w", in.ID, err)
	}
	if affected > 0 {
		return nil
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instances WHERE id = ?`, in.ID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("update instance %s: existence probe: %w", in.ID, err)
	}
	if count == 0 {
		return fmt.Errorf("instance %s: %w", in.ID, contract.ErrInstanceNotFound)
	}
	return fmt.Errorf("instance %s at revision %d: %w", in.ID, expected, contract.ErrRevisionMismatch)
}

// ListInstances returns the ids of a tenant's instances, optionally
// filtered by status. Used by the CLI listing.
func (s *Instances) ListInstances(ctx context.Context, tenantID string, status contract.Status) ([]string, error) {
	query := `SELECT id FROM instances WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list instances: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list instances: iterate: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
