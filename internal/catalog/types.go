package catalog

import "time"

// BlockID identifies a logical building block (clause or template).
// Stable across versions.
type BlockID string

// VersionID identifies one immutable version of a block.
type VersionID string

// SlotID identifies a structural position within a template version.
type SlotID string

// QuestionID identifies an interview question within a template version.
type QuestionID string

// BlockKind distinguishes clause blocks from template blocks.
type BlockKind string

const (
	KindClause   BlockKind = "clause"
	KindTemplate BlockKind = "template"
)

// Status is the editorial lifecycle state of a version.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusReview     Status = "review"
	StatusApproved   Status = "approved"
	StatusPublished  Status = "published"
	StatusDeprecated Status = "deprecated"
)

// statusTransitions enumerates the legal editorial transitions.
// Review may be sent back to draft; everything else moves forward only.
var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusReview},
	StatusReview:    {StatusDraft, StatusApproved},
	StatusApproved:  {StatusPublished},
	StatusPublished: {StatusDeprecated},
}

// CanTransition reports whether a version may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VersionRef is a lightweight listing entry for one version of a
// block: identity and lifecycle, no payload.
type VersionRef struct {
	VersionID VersionID `json:"version_id"`
	Block     BlockID   `json:"block"`
	Kind      BlockKind `json:"kind"`
	Number    int       `json:"number"`
	Status    Status    `json:"status"`
}

// ClauseVersion is one immutable version of a clause block.
type ClauseVersion struct {
	VersionID VersionID `json:"version_id"`
	BlockID   BlockID   `json:"block_id"`
	Number    int       `json:"number"`
	Status    Status    `json:"status"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Rules     []Rule    `json:"rules,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TemplateVersion is one immutable version of a template block.
// A template's structure is a flat ordered list of sections, each
// carrying fixed clause inclusions and fillable slots, plus the
// interview questions the template asks.
type TemplateVersion struct {
	VersionID VersionID  `json:"version_id"`
	BlockID   BlockID    `json:"block_id"`
	Number    int        `json:"number"`
	Status    Status     `json:"status"`
	Title     string     `json:"title"`
	Sections  []Section  `json:"sections"`
	Questions []Question `json:"questions,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Section groups fixed clause inclusions and slots under a heading.
type Section struct {
	Title string    `json:"title"`
	Fixed []BlockID `json:"fixed,omitempty"`
	Slots []Slot    `json:"slots,omitempty"`
}

// Slot is a position that must be filled by exactly one clause version
// drawn from a bounded candidate set of clause blocks.
type Slot struct {
	ID         SlotID    `json:"id"`
	Label      string    `json:"label"`
	Required   bool      `json:"required"`
	Candidates []BlockID `json:"candidates"`
}

// Allows reports whether the slot's candidate set contains the block.
func (s Slot) Allows(block BlockID) bool {
	for _, c := range s.Candidates {
		if c == block {
			return true
		}
	}
	return false
}

// Question is one interview question declared by a template version.
type Question struct {
	ID       QuestionID `json:"id"`
	Label    string     `json:"label"`
	Type     ValueType  `json:"type"`
	Required bool       `json:"required"`
}

// Slots returns all slots of the template in structural order.
func (t *TemplateVersion) Slots() []Slot {
	var slots []Slot
	for _, sec := range t.Sections {
		slots = append(slots, sec.Slots...)
	}
	return slots
}

// Slot returns the slot with the given id, if present.
func (t *TemplateVersion) Slot(id SlotID) (Slot, bool) {
	for _, sec := range t.Sections {
		for _, s := range sec.Slots {
			if s.ID == id {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// FixedBlocks returns the fixed-included clause blocks in structural
// order, deduplicated (a block included by two sections pins once).
func (t *TemplateVersion) FixedBlocks() []BlockID {
	seen := make(map[BlockID]bool)
	var fixed []BlockID
	for _, sec := range t.Sections {
		for _, b := range sec.Fixed {
			if !seen[b] {
				seen[b] = true
				fixed = append(fixed, b)
			}
		}
	}
	return fixed
}

// Question returns the question with the given id, if present.
func (t *TemplateVersion) Question(id QuestionID) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
