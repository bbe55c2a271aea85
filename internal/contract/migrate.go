package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/rules"
)

// PinChange records one pin difference produced by an upgrade.
type PinChange struct {
	Block      catalog.BlockID   `json:"block"`
	OldVersion catalog.VersionID `json:"old_version,omitempty"`
	NewVersion catalog.VersionID `json:"new_version,omitempty"`
}

// SlotChange records a slot whose selection was dropped or cleared.
type SlotChange struct {
	Slot   catalog.SlotID    `json:"slot"`
	Block  catalog.BlockID   `json:"block"`
	Pinned catalog.VersionID `json:"pinned"`
	Reason string            `json:"reason"`
}

// ArchivedAnswer is an answer whose question disappeared: moved out of
// the live answer map into the report, never silently lost.
type ArchivedAnswer struct {
	Question catalog.QuestionID `json:"question"`
	Value    catalog.Value      `json:"-"`
}

// MigrationReport enumerates everything an upgrade changed. Advisory
// output for the caller, the UI, and the audit collaborator; it is not
// persisted as part of the instance.
type MigrationReport struct {
	FromVersion catalog.VersionID `json:"from_version"`
	ToVersion   catalog.VersionID `json:"to_version"`

	AddedPins   []PinChange `json:"added_pins,omitempty"`
	RemovedPins []PinChange `json:"removed_pins,omitempty"`
	UpdatedPins []PinChange `json:"updated_pins,omitempty"`

	// RemovedSlots lists selections dropped because the slot no longer
	// exists; ClearedSelections lists selections cleared because the
	// chosen clause is no longer a valid (published) candidate.
	RemovedSlots      []SlotChange `json:"removed_slots,omitempty"`
	ClearedSelections []SlotChange `json:"cleared_selections,omitempty"`

	// NewSlots lists required slots introduced by the new structure
	// that need input before completion.
	NewSlots []catalog.SlotID `json:"new_slots,omitempty"`

	KeptAnswers     []catalog.QuestionID `json:"kept_answers,omitempty"`
	ArchivedAnswers []ArchivedAnswer     `json:"archived_answers,omitempty"`

	// RetypedQuestions kept their id but changed type; the old answer
	// is discarded and the question needs re-entry.
	RetypedQuestions []catalog.QuestionID `json:"retyped_questions,omitempty"`

	// NewRequiredQuestions are required questions introduced by the new
	// flow that are still unanswered.
	NewRequiredQuestions []catalog.QuestionID `json:"new_required_questions,omitempty"`

	// NewConflicts are conflicts present after migration that were not
	// present before.
	NewConflicts []rules.Conflict `json:"new_conflicts,omitempty"`

	ValidationState rules.ValidationState `json:"validation_state"`
}

// Migrator re-targets draft instances at newer template versions.
type Migrator struct {
	catalog  catalog.Reader
	resolver *Resolver
	rules    *rules.Engine
}

// NewMigrator creates a migrator.
func NewMigrator(reader catalog.Reader, resolver *Resolver, engine *rules.Engine) *Migrator {
	return &Migrator{catalog: reader, resolver: resolver, rules: engine}
}

// Upgrade computes the migrated instance and its report. The input
// instance is not mutated; the caller persists the returned copy.
// An empty target means the template block's current published version.
//
// The lifecycle-state guard lives in the service; Upgrade assumes a
// draft.
func (m *Migrator) Upgrade(ctx context.Context, in *Instance, target catalog.VersionID) (*Instance, *MigrationReport, error) {
	target, err := m.resolveTarget(ctx, in, target)
	if err != nil {
		return nil, nil, err
	}

	oldTV, err := m.catalog.TemplateVersion(ctx, in.TemplateVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("upgrade: load old structure: %w", err)
	}
	newTV, err := m.catalog.TemplateVersion(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("upgrade: load new structure: %w", err)
	}

	before, err := m.rules.Evaluate(ctx, in.Selection())
	if err != nil {
		return nil, nil, fmt.Errorf("upgrade: %w", err)
	}

	report := &MigrationReport{FromVersion: in.TemplateVersion, ToVersion: target}
	next := in.Clone()
	next.TemplateVersion = target

	if err := m.migrateSlots(ctx, next, oldTV, newTV, report); err != nil {
		return nil, nil, err
	}
	if err := m.migratePins(ctx, next, newTV, report); err != nil {
		return nil, nil, err
	}
	m.migrateAnswers(next, oldTV, newTV, report)

	after, err := m.rules.Evaluate(ctx, next.Selection())
	if err != nil {
		return nil, nil, fmt.Errorf("upgrade: %w", err)
	}
	next.ValidationState = after.State()
	report.ValidationState = after.State()
	report.NewConflicts = diffConflicts(before.Conflicts, after.Conflicts)

	return next, report, nil
}

// resolveTarget validates an explicit target or resolves the default.
func (m *Migrator) resolveTarget(ctx context.Context, in *Instance, target catalog.VersionID) (catalog.VersionID, error) {
	if target == "" {
		head, err := m.catalog.CurrentPublishedVersion(ctx, in.TemplateBlock)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				e := newError(ErrCodeNoPublishedVersion, in.ID,
					"template %q has no published version to upgrade to", in.TemplateBlock)
				e.Err = err
				return "", e
			}
			return "", fmt.Errorf("upgrade: %w", err)
		}
		return head, nil
	}

	status, err := m.catalog.VersionStatus(ctx, target)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			e := newError(ErrCodeNotFound, in.ID, "target version %q not found", target)
			e.Err = err
			return "", e
		}
		return "", fmt.Errorf("upgrade: %w", err)
	}
	if status != catalog.StatusPublished {
		return "", newError(ErrCodeTargetNotPublished, in.ID,
			"target version %q is %s, not published", target, status)
	}
	return target, nil
}

// migrateSlots applies the slot diff between the two structures.
func (m *Migrator) migrateSlots(ctx context.Context, next *Instance, oldTV, newTV *catalog.TemplateVersion, report *MigrationReport) error {
	migrated := make(map[catalog.SlotID]Pin)

	for _, slot := range newTV.Slots() {
		pin, hadSelection := next.SelectedSlots[slot.ID]
		_, existedBefore := oldTV.Slot(slot.ID)

		if !existedBefore {
			if slot.Required {
				report.NewSlots = append(report.NewSlots, slot.ID)
			}
			continue
		}
		if !hadSelection {
			continue
		}
		if !slot.Allows(pin.Block) {
			report.ClearedSelections = append(report.ClearedSelections, SlotChange{
				Slot: slot.ID, Block: pin.Block, Pinned: pin.Version,
				Reason: "clause is no longer a candidate for this slot",
			})
			continue
		}
		status, err := m.catalog.VersionStatus(ctx, pin.Version)
		if err != nil {
			return fmt.Errorf("upgrade: slot %q: %w", slot.ID, err)
		}
		if status != catalog.StatusPublished {
			// Deprecated selections block silent carry-over; the
			// caller must pick an explicit alternative.
			report.ClearedSelections = append(report.ClearedSelections, SlotChange{
				Slot: slot.ID, Block: pin.Block, Pinned: pin.Version,
				Reason: fmt.Sprintf("pinned version is %s and needs reselection", status),
			})
			continue
		}
		migrated[slot.ID] = pin
	}

	// Selections whose slot disappeared entirely.
	for _, slotID := range sortedSlotIDs(next.SelectedSlots) {
		pin := next.SelectedSlots[slotID]
		if _, stillExists := newTV.Slot(slotID); !stillExists {
			report.RemovedSlots = append(report.RemovedSlots, SlotChange{
				Slot: slotID, Block: pin.Block, Pinned: pin.Version,
				Reason: "slot removed from template structure",
			})
		}
	}

	next.SelectedSlots = migrated
	return nil
}

// migratePins re-resolves the fixed-inclusion pin set against the new
// structure. Unchanged heads keep their exact pin.
func (m *Migrator) migratePins(ctx context.Context, next *Instance, newTV *catalog.TemplateVersion, report *MigrationReport) error {
	oldPins := make(map[catalog.BlockID]catalog.VersionID, len(next.Pins))
	for _, p := range next.Pins {
		oldPins[p.Block] = p.Version
	}

	blocks := newTV.FixedBlocks()
	pins := make([]Pin, 0, len(blocks))
	kept := make(map[catalog.BlockID]bool, len(blocks))
	for _, block := range blocks {
		current, err := m.catalog.CurrentPublishedVersion(ctx, block)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				e := newError(ErrCodeNoPublishedVersion, next.ID,
					"fixed clause %q has no published version", block)
				e.Err = err
				return e
			}
			return fmt.Errorf("upgrade: pin %q: %w", block, err)
		}
		pins = append(pins, Pin{Block: block, Version: current})
		kept[block] = true

		old, had := oldPins[block]
		switch {
		case !had:
			report.AddedPins = append(report.AddedPins, PinChange{Block: block, NewVersion: current})
		case old != current:
			report.UpdatedPins = append(report.UpdatedPins, PinChange{Block: block, OldVersion: old, NewVersion: current})
		}
	}
	for _, p := range next.Pins {
		if !kept[p.Block] {
			report.RemovedPins = append(report.RemovedPins, PinChange{Block: p.Block, OldVersion: p.Version})
		}
	}

	next.Pins = pins
	return nil
}

// migrateAnswers keeps answers whose question survived with an
// identical id and type; everything else lands in the report.
func (m *Migrator) migrateAnswers(next *Instance, oldTV, newTV *catalog.TemplateVersion, report *MigrationReport) {
	migrated := make(catalog.AnswerMap, len(next.Answers))

	for _, oldQ := range oldTV.Questions {
		answer, answered := next.Answers[oldQ.ID]
		if !answered {
			continue
		}
		newQ, stillExists := newTV.Question(oldQ.ID)
		switch {
		case !stillExists:
			report.ArchivedAnswers = append(report.ArchivedAnswers, ArchivedAnswer{Question: oldQ.ID, Value: answer})
		case newQ.Type != oldQ.Type:
			report.RetypedQuestions = append(report.RetypedQuestions, oldQ.ID)
		default:
			migrated[oldQ.ID] = answer
			report.KeptAnswers = append(report.KeptAnswers, oldQ.ID)
		}
	}

	for _, q := range newTV.Questions {
		if !q.Required {
			continue
		}
		if _, existedBefore := oldTV.Question(q.ID); existedBefore {
			continue
		}
		report.NewRequiredQuestions = append(report.NewRequiredQuestions, q.ID)
	}

	next.Answers = migrated
}

// diffConflicts returns conflicts in after that are absent from before.
func diffConflicts(before, after []rules.Conflict) []rules.Conflict {
	var fresh []rules.Conflict
	for _, c := range after {
		found := false
		for _, b := range before {
			if b == c {
				found = true
				break
			}
		}
		if !found {
			fresh = append(fresh, c)
		}
	}
	return fresh
}
