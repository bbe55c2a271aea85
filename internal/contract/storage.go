package contract

import (
	"context"
	"errors"
)

// Storage sentinel errors. Implementations return these (wrapped is
// fine); the service maps them onto the lifecycle error taxonomy.
var (
	// ErrInstanceNotFound indicates no instance row with that id.
	ErrInstanceNotFound = errors.New("contract: instance not found")

	// ErrRevisionMismatch indicates the optimistic revision check
	// failed: another writer got there first.
	ErrRevisionMismatch = errors.New("contract: revision mismatch")
)

// Storage persists instances, one row each, with an optimistic
// revision counter serializing writers per instance.
type Storage interface {
	// InsertInstance stores a new instance at revision 1.
	InsertInstance(ctx context.Context, in *Instance) error

	// GetInstance loads an instance by id.
	GetInstance(ctx context.Context, id string) (*Instance, error)

	// UpdateInstance persists the instance if and only if the stored
	// revision still equals expected, incrementing it atomically.
	// Returns ErrRevisionMismatch when a concurrent writer won.
	UpdateInstance(ctx context.Context, in *Instance, expected int64) error
}
