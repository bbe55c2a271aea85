package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// record is one arena entry. Exactly one of clause/template is set.
type record struct {
	kind     BlockKind
	clause   *ClauseVersion
	template *TemplateVersion
}

func (r *record) blockID() BlockID {
	if r.kind == KindClause {
		return r.clause.BlockID
	}
	return r.template.BlockID
}

func (r *record) number() int {
	if r.kind == KindClause {
		return r.clause.Number
	}
	return r.template.Number
}

func (r *record) status() Status {
	if r.kind == KindClause {
		return r.clause.Status
	}
	return r.template.Status
}

// Memory is an append-only in-memory catalog arena implementing Reader
// and Writer. Used by tests, the scenario harness, and as the staging
// target for compiled CUE definitions.
type Memory struct {
	mu      sync.RWMutex
	records map[VersionID]*record
	byBlock map[BlockID][]VersionID // append order == number order
	now     func() time.Time
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[VersionID]*record),
		byBlock: make(map[BlockID][]VersionID),
		now:     time.Now,
	}
}

// NewMemoryAt creates an in-memory catalog with a fixed clock.
// Deterministic timestamps for golden-file tests.
func NewMemoryAt(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

// AddClause implements Writer.
func (m *Memory) AddClause(_ context.Context, cv *ClauseVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAdd(cv.VersionID, cv.BlockID, &cv.Number, KindClause); err != nil {
		return err
	}
	clone := *cv
	if clone.Status == "" {
		clone.Status = StatusDraft
	}
	clone.CreatedAt = m.now()
	m.records[clone.VersionID] = &record{kind: KindClause, clause: &clone}
	m.byBlock[clone.BlockID] = append(m.byBlock[clone.BlockID], clone.VersionID)
	cv.Number = clone.Number
	return nil
}

// AddTemplate implements Writer.
func (m *Memory) AddTemplate(_ context.Context, tv *TemplateVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkAdd(tv.VersionID, tv.BlockID, &tv.Number, KindTemplate); err != nil {
		return err
	}
	clone := *tv
	if clone.Status == "" {
		clone.Status = StatusDraft
	}
	clone.CreatedAt = m.now()
	m.records[clone.VersionID] = &record{kind: KindTemplate, template: &clone}
	m.byBlock[clone.BlockID] = append(m.byBlock[clone.BlockID], clone.VersionID)
	tv.Number = clone.Number
	return nil
}

// checkAdd validates a new version and assigns the next number if unset.
// Caller holds the write lock.
func (m *Memory) checkAdd(id VersionID, block BlockID, number *int, kind BlockKind) error {
	if id == "" {
		return fmt.Errorf("catalog: version id required")
	}
	if block == "" {
		return fmt.Errorf("catalog: block id required")
	}
	if _, exists := m.records[id]; exists {
		return fmt.Errorf("catalog: version %q already exists", id)
	}
	max := 0
	for _, vid := range m.byBlock[block] {
		rec := m.records[vid]
		if rec.kind != kind {
			return fmt.Errorf("catalog: block %q is a %s, not a %s", block, rec.kind, kind)
		}
		if rec.number() > max {
			max = rec.number()
		}
	}
	if *number == 0 {
		*number = max + 1
	} else if *number <= max {
		return fmt.Errorf("catalog: version number %d for block %q not monotonic (have %d)", *number, block, max)
	}
	return nil
}

// SetStatus implements Writer.
func (m *Memory) SetStatus(_ context.Context, id VersionID, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("version %q: %w", id, ErrNotFound)
	}
	from := rec.status()
	if !CanTransition(from, to) {
		return fmt.Errorf("catalog: illegal status transition %s -> %s for version %q", from, to, id)
	}
	var publishedAt *time.Time
	if to == StatusPublished {
		t := m.now()
		publishedAt = &t
	}
	if rec.kind == KindClause {
		rec.clause.Status = to
		if publishedAt != nil {
			rec.clause.PublishedAt = publishedAt
		}
	} else {
		rec.template.Status = to
		if publishedAt != nil {
			rec.template.PublishedAt = publishedAt
		}
	}
	return nil
}

// CurrentPublishedVersion implements Reader.
func (m *Memory) CurrentPublishedVersion(_ context.Context, block BlockID) (VersionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *record
	for _, vid := range m.byBlock[block] {
		rec := m.records[vid]
		if rec.status() != StatusPublished {
			continue
		}
		if best == nil || rec.number() > best.number() {
			best = rec
		}
	}
	if best == nil {
		return "", fmt.Errorf("no published version for block %q: %w", block, ErrNotFound)
	}
	if best.kind == KindClause {
		return best.clause.VersionID, nil
	}
	return best.template.VersionID, nil
}

// ClauseVersion implements Reader. The returned struct is a copy;
// callers cannot mutate arena content.
func (m *Memory) ClauseVersion(_ context.Context, id VersionID) (*ClauseVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || rec.kind != KindClause {
		return nil, fmt.Errorf("clause version %q: %w", id, ErrNotFound)
	}
	clone := *rec.clause
	return &clone, nil
}

// TemplateVersion implements Reader.
func (m *Memory) TemplateVersion(_ context.Context, id VersionID) (*TemplateVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || rec.kind != KindTemplate {
		return nil, fmt.Errorf("template version %q: %w", id, ErrNotFound)
	}
	clone := *rec.template
	return &clone, nil
}

// Versions lists every version of a block in number order.
func (m *Memory) Versions(_ context.Context, block BlockID) ([]VersionRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]VersionRef, 0, len(m.byBlock[block]))
	for _, vid := range m.byBlock[block] {
		rec := m.records[vid]
		refs = append(refs, VersionRef{
			VersionID: vid,
			Block:     block,
			Kind:      rec.kind,
			Number:    rec.number(),
			Status:    rec.status(),
		})
	}
	return refs, nil
}

// VersionStatus implements Reader.
func (m *Memory) VersionStatus(_ context.Context, id VersionID) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return "", fmt.Errorf("version %q: %w", id, ErrNotFound)
	}
	return rec.status(), nil
}
