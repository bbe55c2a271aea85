package rules

import "github.com/draftline/draftline/internal/catalog"

// ValidationState summarizes a conflict report.
type ValidationState string

const (
	// StateValid means no rule was violated.
	StateValid ValidationState = "valid"

	// StateWarnings means only soft rules were violated.
	StateWarnings ValidationState = "has_warnings"

	// StateConflicts means at least one hard rule was violated.
	// Completion is blocked in this state.
	StateConflicts ValidationState = "has_conflicts"
)

// Conflict is one violated rule.
type Conflict struct {
	Kind     catalog.RuleKind `json:"kind"`
	Severity catalog.Severity `json:"severity"`

	// Source is the clause block whose rule fired; SourceVersion is the
	// pinned version carrying the declaration.
	Source        catalog.BlockID   `json:"source"`
	SourceVersion catalog.VersionID `json:"source_version"`

	// Target is set for requires/forbids/incompatible_with conflicts.
	Target catalog.BlockID `json:"target,omitempty"`

	// Question is set for requires_answer conflicts.
	Question catalog.QuestionID `json:"question,omitempty"`

	// ContextKey is set for scoped_to conflicts.
	ContextKey string `json:"context_key,omitempty"`

	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Report is the result of evaluating a selection.
type Report struct {
	Conflicts []Conflict `json:"conflicts"`
}

// State derives the aggregate validation state: has_conflicts if any
// hard conflict exists, has_warnings if only soft ones do, else valid.
func (r Report) State() ValidationState {
	state := StateValid
	for _, c := range r.Conflicts {
		if c.Severity == catalog.SeverityHard {
			return StateConflicts
		}
		state = StateWarnings
	}
	return state
}

// Hard returns only the blocking conflicts.
func (r Report) Hard() []Conflict {
	var hard []Conflict
	for _, c := range r.Conflicts {
		if c.Severity == catalog.SeverityHard {
			hard = append(hard, c)
		}
	}
	return hard
}
