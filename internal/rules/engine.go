package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/draftline/draftline/internal/catalog"
)

// Selection bundles everything the rule engine evaluates: the clause
// versions currently active on an instance (via slots or fixed
// inclusion), the interview answers, and the evaluation context
// (tenant, jurisdiction).
type Selection struct {
	Clauses map[catalog.BlockID]catalog.VersionID
	Answers catalog.AnswerMap
	Context catalog.ContextMap
}

// Engine evaluates declared rule sets against selections. Stateless;
// the only collaborator is the read-only catalog.
type Engine struct {
	catalog catalog.Reader
}

// NewEngine creates a rule engine over the given catalog.
func NewEngine(reader catalog.Reader) *Engine {
	return &Engine{catalog: reader}
}

// Evaluate gathers the declared rules of every active clause version
// and checks each against the selection. Pure: no side effects, and
// identical selections produce identical reports including ordering.
func (e *Engine) Evaluate(ctx context.Context, sel Selection) (Report, error) {
	blocks := make([]catalog.BlockID, 0, len(sel.Clauses))
	for b := range sel.Clauses {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	report := Report{Conflicts: []Conflict{}}
	// Each unordered incompatible pair reports once, no matter which
	// side declares the rule.
	seenPairs := make(map[string]bool)

	for _, block := range blocks {
		version := sel.Clauses[block]
		cv, err := e.catalog.ClauseVersion(ctx, version)
		if err != nil {
			return Report{}, fmt.Errorf("evaluate %s: %w", block, err)
		}
		for _, rule := range cv.Rules {
			conflict, violated := e.check(rule, cv, sel, seenPairs)
			if violated {
				report.Conflicts = append(report.Conflicts, conflict)
			}
		}
	}
	return report, nil
}

// check evaluates one rule. Returns the conflict to report and whether
// the rule was violated.
func (e *Engine) check(rule catalog.Rule, cv *catalog.ClauseVersion, sel Selection, seenPairs map[string]bool) (Conflict, bool) {
	base := Conflict{
		Kind:          rule.Kind,
		Severity:      severity(rule),
		Source:        cv.BlockID,
		SourceVersion: cv.VersionID,
		Target:        rule.Target,
		Question:      rule.Question,
		ContextKey:    rule.ContextKey,
		Message:       rule.Message,
		Suggestion:    rule.Suggestion,
	}

	switch rule.Kind {
	case catalog.RuleRequires:
		_, present := sel.Clauses[rule.Target]
		return base, !present

	case catalog.RuleForbids:
		_, present := sel.Clauses[rule.Target]
		return base, present

	case catalog.RuleIncompatibleWith:
		_, present := sel.Clauses[rule.Target]
		if !present {
			return base, false
		}
		lo, hi := cv.BlockID, rule.Target
		if hi < lo {
			lo, hi = hi, lo
		}
		key := string(lo) + "\x00" + string(hi)
		if seenPairs[key] {
			return base, false
		}
		seenPairs[key] = true
		// Canonical pair order keeps the report independent of which
		// side declared the rule.
		base.Source = lo
		base.Target = hi
		base.SourceVersion = sel.Clauses[lo]
		return base, true

	case catalog.RuleScopedTo:
		v, present := sel.Context[rule.ContextKey]
		return base, !evalPredicate(rule.Predicate, v, present)

	case catalog.RuleRequiresAnswer:
		v, present := sel.Answers[rule.Question]
		return base, !evalPredicate(rule.Predicate, v, present)

	default:
		// Unknown kinds never reach the catalog; the compiler rejects them.
		return base, false
	}
}

// severity applies the declared severity, defaulting scoped_to to soft
// and everything else to hard.
func severity(rule catalog.Rule) catalog.Severity {
	if rule.Severity != "" {
		return rule.Severity
	}
	if rule.Kind == catalog.RuleScopedTo {
		return catalog.SeveritySoft
	}
	return catalog.SeverityHard
}
