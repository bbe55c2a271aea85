package contract

import (
	"sort"
	"time"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/rules"
)

// Status is the lifecycle state of a contract instance.
type Status string

const (
	// StatusDraft instances accept updates and upgrades.
	StatusDraft Status = "draft"

	// StatusCompleted instances are frozen: pins, answers, and slot
	// selections never change again.
	StatusCompleted Status = "completed"

	// StatusArchived instances are read-only soft-deleted records.
	// Archival never un-freezes pins.
	StatusArchived Status = "archived"
)

// Pin is an immutable reference from an instance to a specific clause
// version, fixed at the moment of pinning. The logical block id rides
// along so migrations can re-resolve without loading every version.
type Pin struct {
	Block   catalog.BlockID   `json:"block"`
	Version catalog.VersionID `json:"version"`
}

// Instance is the mutable aggregate under construction.
type Instance struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	TemplateBlock   catalog.BlockID   `json:"template_block"`
	TemplateVersion catalog.VersionID `json:"template_version"`

	// Pins are the fixed-inclusion clause pins in structural order.
	Pins []Pin `json:"pins"`

	// SelectedSlots maps filled slots to their pinned clause version.
	SelectedSlots map[catalog.SlotID]Pin `json:"selected_slots"`

	Answers catalog.AnswerMap  `json:"answers"`
	Context catalog.ContextMap `json:"context,omitempty"`

	ValidationState rules.ValidationState `json:"validation_state"`
	Status          Status                `json:"status"`

	// Revision is the optimistic concurrency counter, incremented by
	// every successful write.
	Revision int64 `json:"revision"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Selection assembles the rule-engine input from the instance's active
// clause pins (fixed plus slot-selected), answers, and context.
func (in *Instance) Selection() rules.Selection {
	clauses := make(map[catalog.BlockID]catalog.VersionID, len(in.Pins)+len(in.SelectedSlots))
	for _, p := range in.Pins {
		clauses[p.Block] = p.Version
	}
	for _, p := range in.SelectedSlots {
		clauses[p.Block] = p.Version
	}
	return rules.Selection{
		Clauses: clauses,
		Answers: in.Answers,
		Context: in.Context,
	}
}

// ClauseVersionIDs returns every active pinned clause version id:
// fixed pins in structural order, then slot pins in slot-id order.
func (in *Instance) ClauseVersionIDs() []catalog.VersionID {
	ids := make([]catalog.VersionID, 0, len(in.Pins)+len(in.SelectedSlots))
	for _, p := range in.Pins {
		ids = append(ids, p.Version)
	}
	for _, slot := range sortedSlotIDs(in.SelectedSlots) {
		ids = append(ids, in.SelectedSlots[slot].Version)
	}
	return ids
}

// Clone returns a deep copy. Service operations mutate copies and
// persist them with a revision CAS, never the caller's struct.
func (in *Instance) Clone() *Instance {
	out := *in
	out.Pins = append([]Pin(nil), in.Pins...)
	out.SelectedSlots = make(map[catalog.SlotID]Pin, len(in.SelectedSlots))
	for k, v := range in.SelectedSlots {
		out.SelectedSlots[k] = v
	}
	out.Answers = in.Answers.Clone()
	out.Context = make(catalog.ContextMap, len(in.Context))
	for k, v := range in.Context {
		out.Context[k] = v
	}
	if in.CompletedAt != nil {
		t := *in.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// VersionInfo summarizes an instance's template pin against the
// catalog head: whether a newer published template version exists.
type VersionInfo struct {
	InstanceID       string                `json:"instance_id"`
	PinnedVersion    catalog.VersionID     `json:"pinned_version"`
	PinnedNumber     int                   `json:"pinned_number"`
	CurrentVersion   catalog.VersionID     `json:"current_version,omitempty"`
	CurrentNumber    int                   `json:"current_number,omitempty"`
	UpgradeAvailable bool                  `json:"upgrade_available"`
	ValidationState  rules.ValidationState `json:"validation_state"`
	Status           Status                `json:"status"`
}

// Export is the read-only view handed to the export collaborator for a
// completed instance. Stable for the instance's remaining lifetime.
type Export struct {
	InstanceID      string                 `json:"instance_id"`
	TemplateVersion catalog.VersionID      `json:"template_version"`
	ClauseVersions  []catalog.VersionID    `json:"clause_versions"`
	Answers         catalog.AnswerMap      `json:"answers"`
	SelectedSlots   map[catalog.SlotID]Pin `json:"selected_slots"`
	Digest          string                 `json:"digest"`
}

// sortedSlotIDs returns the map's keys in ascending order for
// deterministic iteration.
func sortedSlotIDs(m map[catalog.SlotID]Pin) []catalog.SlotID {
	ids := make([]catalog.SlotID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
