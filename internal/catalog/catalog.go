package catalog

import (
	"context"
	"errors"
)

// ErrNotFound indicates a missing block, version, or published head.
// Wrapped errors carry the id; match with errors.Is.
var ErrNotFound = errors.New("catalog: not found")

// Reader is the read-only capability boundary over the catalog.
// Safe for concurrent use: published versions are immutable, so reads
// need no coordination with other readers.
type Reader interface {
	// CurrentPublishedVersion resolves a logical block to the published
	// version with the highest version number. Returns ErrNotFound when
	// the block has no published version (never created, never
	// published, or fully deprecated).
	CurrentPublishedVersion(ctx context.Context, block BlockID) (VersionID, error)

	// ClauseVersion returns the immutable content of a clause version.
	ClauseVersion(ctx context.Context, id VersionID) (*ClauseVersion, error)

	// TemplateVersion returns the immutable content of a template version.
	TemplateVersion(ctx context.Context, id VersionID) (*TemplateVersion, error)

	// VersionStatus returns the lifecycle status of any version.
	VersionStatus(ctx context.Context, id VersionID) (Status, error)
}

// Writer is the editorial surface: appending versions and walking the
// status chain. Content is immutable once added; there is no update.
type Writer interface {
	// AddClause appends a clause version. A zero Number is assigned the
	// block's next number.
	AddClause(ctx context.Context, cv *ClauseVersion) error

	// AddTemplate appends a template version. A zero Number is assigned
	// the block's next number.
	AddTemplate(ctx context.Context, tv *TemplateVersion) error

	// SetStatus moves a version along the editorial chain. Illegal
	// transitions are rejected.
	SetStatus(ctx context.Context, id VersionID, to Status) error
}
