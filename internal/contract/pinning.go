package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftline/draftline/internal/catalog"
)

// Resolver produces pin sets: it walks a template version's structure
// and resolves the currently published version id for every
// fixed-included clause block.
type Resolver struct {
	catalog catalog.Reader
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(reader catalog.Reader) *Resolver {
	return &Resolver{catalog: reader}
}

// Resolve computes the initial pin set for a template version. Every
// fixed-included block must have a published version; a block without
// one blocks the operation with NO_PUBLISHED_VERSION.
func (r *Resolver) Resolve(ctx context.Context, tv *catalog.TemplateVersion) ([]Pin, error) {
	blocks := tv.FixedBlocks()
	pins := make([]Pin, 0, len(blocks))
	for _, block := range blocks {
		version, err := r.catalog.CurrentPublishedVersion(ctx, block)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				e := newError(ErrCodeNoPublishedVersion, "",
					"clause block %q has no published version", block)
				e.Err = err
				return nil, e
			}
			return nil, fmt.Errorf("resolve pin for %q: %w", block, err)
		}
		pins = append(pins, Pin{Block: block, Version: version})
	}
	return pins, nil
}

// ResolveSlot pins a clause block chosen for a slot. The block must be
// in the slot's candidate set and must have a published version.
func (r *Resolver) ResolveSlot(ctx context.Context, slot catalog.Slot, block catalog.BlockID) (Pin, error) {
	if !slot.Allows(block) {
		return Pin{}, newError(ErrCodeInvalidState, "",
			"block %q is not a candidate for slot %q", block, slot.ID)
	}
	version, err := r.catalog.CurrentPublishedVersion(ctx, block)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			e := newError(ErrCodeNoPublishedVersion, "",
				"clause block %q has no published version", block)
			e.Err = err
			return Pin{}, e
		}
		return Pin{}, fmt.Errorf("resolve slot %q: %w", slot.ID, err)
	}
	return Pin{Block: block, Version: version}, nil
}
