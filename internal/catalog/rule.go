package catalog

import (
	"encoding/json"
	"fmt"
)

// RuleKind categorizes the consistency rules a clause version may declare.
type RuleKind string

const (
	// RuleRequires demands that the target clause block is also selected.
	RuleRequires RuleKind = "requires"

	// RuleForbids demands that the target clause block is NOT selected.
	RuleForbids RuleKind = "forbids"

	// RuleIncompatibleWith is a symmetric forbid. Each unordered pair is
	// reported at most once regardless of which side declares it.
	RuleIncompatibleWith RuleKind = "incompatible_with"

	// RuleScopedTo restricts the clause to an evaluation context
	// (tenant, jurisdiction) matching the predicate. Soft by default.
	RuleScopedTo RuleKind = "scoped_to"

	// RuleRequiresAnswer demands that a question is answered and that
	// the answer satisfies the predicate.
	RuleRequiresAnswer RuleKind = "requires_answer"
)

// Severity determines whether a violated rule blocks completion.
type Severity string

const (
	// SeverityHard blocks completion.
	SeverityHard Severity = "hard"

	// SeveritySoft warns without blocking.
	SeveritySoft Severity = "soft"
)

// PredicateOp names a predicate comparison.
type PredicateOp string

const (
	OpEquals    PredicateOp = "eq"
	OpNotEquals PredicateOp = "ne"
	OpIn        PredicateOp = "in"
	OpExists    PredicateOp = "exists"
	OpAtLeast   PredicateOp = "gte"
	OpAtMost    PredicateOp = "lte"
)

// Predicate is a single comparison over an answer or context value.
// Declared on rules, evaluated by the rule engine. Predicates live
// inside version payload JSON, so the typed values use the same tagged
// encoding as answers.
type Predicate struct {
	Op     PredicateOp
	Value  Value
	Values []Value // for OpIn
}

type predicateJSON struct {
	Op     PredicateOp       `json:"op"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Values []json.RawMessage `json:"values,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Predicate) MarshalJSON() ([]byte, error) {
	wire := predicateJSON{Op: p.Op}
	if p.Value != nil {
		raw, err := MarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("predicate: %w", err)
		}
		wire.Value = raw
	}
	for _, v := range p.Values {
		raw, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("predicate: %w", err)
		}
		wire.Values = append(wire.Values, raw)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var wire predicateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := Predicate{Op: wire.Op}
	if len(wire.Value) > 0 {
		v, err := UnmarshalValue(wire.Value)
		if err != nil {
			return fmt.Errorf("predicate: %w", err)
		}
		out.Value = v
	}
	for _, raw := range wire.Values {
		v, err := UnmarshalValue(raw)
		if err != nil {
			return fmt.Errorf("predicate: %w", err)
		}
		out.Values = append(out.Values, v)
	}
	*p = out
	return nil
}

// Rule is one consistency rule declared on a clause version.
//
// Target is set for requires/forbids/incompatible_with. Question and
// Predicate are set for requires_answer. ContextKey and Predicate are
// set for scoped_to.
type Rule struct {
	Kind       RuleKind   `json:"kind"`
	Severity   Severity   `json:"severity"`
	Target     BlockID    `json:"target,omitempty"`
	Question   QuestionID `json:"question,omitempty"`
	ContextKey string     `json:"context_key,omitempty"`
	Predicate  *Predicate `json:"predicate,omitempty"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion,omitempty"`
}
