package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/draftline/draftline/internal/catalog"
)

// Catalog is the SQLite-backed catalog. It implements catalog.Reader
// and catalog.Writer over the catalog_versions table.
//
// Rows are append-only: AddClause and AddTemplate insert, SetStatus
// moves the status column along the legal chain, and nothing else ever
// changes a stored payload.
type Catalog struct {
	db *sql.DB
}

// AddClause implements catalog.Writer. A zero Number is assigned the
// block's next number inside the insert transaction.
func (c *Catalog) AddClause(ctx context.Context, cv *catalog.ClauseVersion) error {
	clone := *cv
	if clone.Status == "" {
		clone.Status = catalog.StatusDraft
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}

	err := c.addVersion(ctx, clone.VersionID, clone.BlockID, catalog.KindClause, &clone.Number, clone.Status, &clone)
	if err != nil {
		return err
	}
	cv.Number = clone.Number
	return nil
}

// AddTemplate implements catalog.Writer.
func (c *Catalog) AddTemplate(ctx context.Context, tv *catalog.TemplateVersion) error {
	clone := *tv
	if clone.Status == "" {
		clone.Status = catalog.StatusDraft
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}

	err := c.addVersion(ctx, clone.VersionID, clone.BlockID, catalog.KindTemplate, &clone.Number, clone.Status, &clone)
	if err != nil {
		return err
	}
	tv.Number = clone.Number
	return nil
}

// addVersion runs the shared append transaction: validate ids, check
// the block's kind, assign or verify the version number, insert.
func (c *Catalog) addVersion(ctx context.Context, id catalog.VersionID, block catalog.BlockID, kind catalog.BlockKind, number *int, status catalog.Status, payload any) error {
	if id == "" {
		return fmt.Errorf("catalog: version id required")
	}
	if block == "" {
		return fmt.Errorf("catalog: block id required")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add version: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_versions WHERE version_id = ?`, string(id),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("add version: check id: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("catalog: version %q already exists", id)
	}

	// The block's existing rows fix its kind and its highest number.
	var existingKind sql.NullString
	var max sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(kind), MAX(number) FROM catalog_versions WHERE block_id = ?`, string(block),
	).Scan(&existingKind, &max)
	if err != nil {
		return fmt.Errorf("add version: check block: %w", err)
	}
	if existingKind.Valid && existingKind.String != string(kind) {
		return fmt.Errorf("catalog: block %q is a %s, not a %s", block, existingKind.String, kind)
	}
	highest := int(max.Int64)
	if *number == 0 {
		*number = highest + 1
	} else if *number <= highest {
		return fmt.Errorf("catalog: version number %d for block %q not monotonic (have %d)", *number, block, highest)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("add version: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_versions (version_id, block_id, kind, number, status, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(id), string(block), string(kind), *number, string(status), string(data))
	if err != nil {
		return fmt.Errorf("add version: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add version: commit: %w", err)
	}
	return nil
}

// SetStatus implements catalog.Writer. The payload is rewritten in the
// same transaction so the stored JSON always agrees with the status
// column.
func (c *Catalog) SetStatus(ctx context.Context, id catalog.VersionID, to catalog.Status) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set status: begin tx: %w", err)
	}
	defer tx.Rollback()

	var kind, payload string
	err = tx.QueryRowContext(ctx,
		`SELECT kind, payload FROM catalog_versions WHERE version_id = ?`, string(id),
	).Scan(&kind, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %q: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("set status: load: %w", err)
	}

	var next string
	switch catalog.BlockKind(kind) {
	case catalog.KindClause:
		var cv catalog.ClauseVersion
		if err := json.Unmarshal([]byte(payload), &cv); err != nil {
			return fmt.Errorf("set status: unmarshal clause %q: %w", id, err)
		}
		if !catalog.CanTransition(cv.Status, to) {
			return fmt.Errorf("catalog: illegal status transition %s -> %s for version %q", cv.Status, to, id)
		}
		cv.Status = to
		if to == catalog.StatusPublished {
			t := time.Now().UTC()
			cv.PublishedAt = &t
		}
		data, err := json.Marshal(&cv)
		if err != nil {
			return fmt.Errorf("set status: marshal clause %q: %w", id, err)
		}
		next = string(data)
	default:
		var tv catalog.TemplateVersion
		if err := json.Unmarshal([]byte(payload), &tv); err != nil {
			return fmt.Errorf("set status: unmarshal template %q: %w", id, err)
		}
		if !catalog.CanTransition(tv.Status, to) {
			return fmt.Errorf("catalog: illegal status transition %s -> %s for version %q", tv.Status, to, id)
		}
		tv.Status = to
		if to == catalog.StatusPublished {
			t := time.Now().UTC()
			tv.PublishedAt = &t
		}
		data, err := json.Marshal(&tv)
		if err != nil {
			return fmt.Errorf("set status: marshal template %q: %w", id, err)
		}
		next = string(data)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE catalog_versions SET status = ?, payload = ? WHERE version_id = ?`,
		string(to), next, string(id))
	if err != nil {
		return fmt.Errorf("set status: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set status: commit: %w", err)
	}
	return nil
}

// CurrentPublishedVersion implements catalog.Reader: the published
// version with the highest number wins.
func (c *Catalog) CurrentPublishedVersion(ctx context.Context, block catalog.BlockID) (catalog.VersionID, error) {
	var id string
	err := c.db.QueryRowContext(ctx, `
		SELECT version_id FROM catalog_versions
		WHERE block_id = ? AND status = ?
		ORDER BY number DESC
		LIMIT 1
	`, string(block), string(catalog.StatusPublished)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no published version for block %q: %w", block, catalog.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("current published version: %w", err)
	}
	return catalog.VersionID(id), nil
}

// ClauseVersion implements catalog.Reader.
func (c *Catalog) ClauseVersion(ctx context.Context, id catalog.VersionID) (*catalog.ClauseVersion, error) {
	payload, err := c.loadPayload(ctx, id, catalog.KindClause)
	if err != nil {
		return nil, fmt.Errorf("clause version %q: %w", id, err)
	}
	var cv catalog.ClauseVersion
	if err := json.Unmarshal([]byte(payload), &cv); err != nil {
		return nil, fmt.Errorf("clause version %q: unmarshal: %w", id, err)
	}
	return &cv, nil
}

// TemplateVersion implements catalog.Reader.
func (c *Catalog) TemplateVersion(ctx context.Context, id catalog.VersionID) (*catalog.TemplateVersion, error) {
	payload, err := c.loadPayload(ctx, id, catalog.KindTemplate)
	if err != nil {
		return nil, fmt.Errorf("template version %q: %w", id, err)
	}
	var tv catalog.TemplateVersion
	if err := json.Unmarshal([]byte(payload), &tv); err != nil {
		return nil, fmt.Errorf("template version %q: unmarshal: %w", id, err)
	}
	return &tv, nil
}

// VersionStatus implements catalog.Reader.
func (c *Catalog) VersionStatus(ctx context.Context, id catalog.VersionID) (catalog.Status, error) {
	var status string
	err := c.db.QueryRowContext(ctx,
		`SELECT status FROM catalog_versions WHERE version_id = ?`, string(id),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("version %q: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("version status: %w", err)
	}
	return catalog.Status(status), nil
}

// Versions lists every version of a block in number order. Used by the
// CLI catalog listing.
func (c *Catalog) Versions(ctx context.Context, block catalog.BlockID) ([]catalog.VersionRef, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT version_id, kind, number, status FROM catalog_versions
		WHERE block_id = ?
		ORDER BY number ASC
	`, string(block))
	if err != nil {
		return nil, fmt.Errorf("versions: %w", err)
	}
	defer rows.Close()

	var refs []catalog.VersionRef
	for rows.Next() {
		var ref catalog.VersionRef
		var id, kind, status string
		if err := rows.Scan(&id, &kind, &ref.Number, &status); err != nil {
			return nil, fmt.Errorf("versions: scan: %w", err)
		}
		ref.VersionID = catalog.VersionID(id)
		ref.Block = block
		ref.Kind = catalog.BlockKind(kind)
		ref.Status = catalog.Status(status)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("versions: iterate: %w", err)
	}
	if refs == nil {
		refs = []catalog.VersionRef{}
	}
	return refs, nil
}

// loadPayload fetches a version row of the expected kind. A row of the
// wrong kind reads as not found, matching the in-memory catalog.
func (c *Catalog) loadPayload(ctx context.Context, id catalog.VersionID, kind catalog.BlockKind) (string, error) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM catalog_versions WHERE version_id = ? AND kind = ?`,
		string(id), string(kind),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", catalog.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return payload, nil
}
