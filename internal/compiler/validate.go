package compiler

import (
	"fmt"
	"strings"

	"github.com/draftline/draftline/internal/catalog"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported catalog type for validation

	// ClauseVersion errors (E101-E109)
	ErrClauseBodyEmpty   = "E101" // clause body is required
	ErrInvalidRuleKind   = "E102" // unknown rule kind
	ErrRuleTargetMissing = "E103" // rule kind requires a target block
	ErrRuleQuestion      = "E104" // requires_answer needs a question
	ErrInvalidSeverity   = "E105" // severity must be hard or soft
	ErrInvalidPredicate  = "E106" // predicate op/operand mismatch
	ErrRuleContextKey    = "E107" // scoped_to needs a context key

	// TemplateVersion errors (E110-E119)
	ErrTemplateNoSections = "E110" // template must declare sections
	ErrSlotNoCandidates   = "E111" // slot candidate set is empty
	ErrDuplicateSlot      = "E112" // duplicate slot id
	ErrDuplicateQuestion  = "E113" // duplicate question id
	ErrEmptyTemplate      = "E114" // no fixed inclusions and no slots
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled catalog definition against schema
// rules. Returns all errors found (does not fail-fast). Supports
// ClauseVersion and TemplateVersion.
func Validate(v any) []ValidationError {
	switch def := v.(type) {
	case *catalog.ClauseVersion:
		return validateClause(def)
	case catalog.ClauseVersion:
		return validateClause(&def)
	case *catalog.TemplateVersion:
		return validateTemplate(def)
	case catalog.TemplateVersion:
		return validateTemplate(&def)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported catalog type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// validateClause validates a clause version and its rule declarations.
func validateClause(cv *catalog.ClauseVersion) []ValidationError {
	var errs []ValidationError

	// E101: body is required
	if strings.TrimSpace(cv.Body) == "" {
		errs = append(errs, ValidationError{
			Field:   "body",
			Message: "clause body is required and must be non-empty",
			Code:    ErrClauseBodyEmpty,
		})
	}

	for i, rule := range cv.Rules {
		errs = append(errs, validateRule(rule, fmt.Sprintf("rules[%d]", i))...)
	}

	return errs
}

// validateRule checks one rule declaration for internal consistency.
func validateRule(rule catalog.Rule, path string) []ValidationError {
	var errs []ValidationError

	switch rule.Kind {
	case catalog.RuleRequires, catalog.RuleForbids, catalog.RuleIncompatibleWith:
		// E103: relational kinds name a target block
		if rule.Target == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".target",
				Message: fmt.Sprintf("%s rule requires a target block", rule.Kind),
				Code:    ErrRuleTargetMissing,
			})
		}
	case catalog.RuleRequiresAnswer:
		// E104: answer rules name a question
		if rule.Question == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".question",
				Message: "requires_answer rule requires a question id",
				Code:    ErrRuleQuestion,
			})
		}
	case catalog.RuleScopedTo:
		// E107: scope rules name a context key
		if rule.ContextKey == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".context_key",
				Message: "scoped_to rule requires a context key",
				Code:    ErrRuleContextKey,
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   path + ".kind",
			Message: fmt.Sprintf("unknown rule kind %q", rule.Kind),
			Code:    ErrInvalidRuleKind,
		})
	}

	// E105: severity, when declared, must be hard or soft
	if rule.Severity != "" && rule.Severity != catalog.SeverityHard && rule.Severity != catalog.SeveritySoft {
		errs = append(errs, ValidationError{
			Field:   path + ".severity",
			Message: fmt.Sprintf("invalid severity %q, must be \"hard\" or \"soft\"", rule.Severity),
			Code:    ErrInvalidSeverity,
		})
	}

	if rule.Predicate != nil {
		errs = append(errs, validatePredicate(rule.Predicate, path+".predicate")...)
	}

	return errs
}

// validatePredicate checks operator/operand agreement.
func validatePredicate(p *catalog.Predicate, path string) []ValidationError {
	var errs []ValidationError

	switch p.Op {
	case catalog.OpExists:
		// presence check carries no operand
	case catalog.OpEquals, catalog.OpNotEquals, catalog.OpAtLeast, catalog.OpAtMost:
		if p.Value == nil {
			errs = append(errs, ValidationError{
				Field:   path + ".value",
				Message: fmt.Sprintf("%s predicate requires a comparison value", p.Op),
				Code:    ErrInvalidPredicate,
			})
		}
	case catalog.OpIn:
		if len(p.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".values",
				Message: "in predicate requires a non-empty value list",
				Code:    ErrInvalidPredicate,
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   path + ".op",
			Message: fmt.Sprintf("unknown predicate op %q", p.Op),
			Code:    ErrInvalidPredicate,
		})
	}

	return errs
}

// validateTemplate validates a template version's structure.
func validateTemplate(tv *catalog.TemplateVersion) []ValidationError {
	var errs []ValidationError

	// E110: sections are required
	if len(tv.Sections) == 0 {
		errs = append(errs, ValidationError{
			Field:   "sections",
			Message: "template must declare at least one section",
			Code:    ErrTemplateNoSections,
		})
	}

	slotIDs := make(map[catalog.SlotID]bool)
	questionIDs := make(map[catalog.QuestionID]bool)
	hasContent := false

	for i, section := range tv.Sections {
		if len(section.Fixed) > 0 {
			hasContent = true
		}
		for j, slot := range section.Slots {
			hasContent = true
			path := fmt.Sprintf("sections[%d].slots[%d]", i, j)

			// E112: slot ids are unique across sections
			if slotIDs[slot.ID] {
				errs = append(errs, ValidationError{
					Field:   path + ".id",
					Message: fmt.Sprintf("duplicate slot id %q", slot.ID),
					Code:    ErrDuplicateSlot,
				})
			}
			slotIDs[slot.ID] = true

			// E111: a slot with nothing to choose from can never be filled
			if len(slot.Candidates) == 0 {
				errs = append(errs, ValidationError{
					Field:   path + ".candidates",
					Message: fmt.Sprintf("slot %q has an empty candidate set", slot.ID),
					Code:    ErrSlotNoCandidates,
				})
			}
		}
	}

	// E114: a template with no inclusions and no slots assembles nothing
	if len(tv.Sections) > 0 && !hasContent {
		errs = append(errs, ValidationError{
			Field:   "sections",
			Message: "template has no fixed inclusions and no slots",
			Code:    ErrEmptyTemplate,
		})
	}

	for i, q := range tv.Questions {
		// E113: question ids are unique
		if questionIDs[q.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions[%d].id", i),
				Message: fmt.Sprintf("duplicate question id %q", q.ID),
				Code:    ErrDuplicateQuestion,
			})
		}
		questionIDs[q.ID] = true
	}

	return errs
}
