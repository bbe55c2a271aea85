package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/draftline/draftline/internal/catalog"
)

// CompileClause parses a CUE value into a draft ClauseVersion.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the clause struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`clause: confidentiality: { ... }`)
//	cv, err := CompileClause(v.LookupPath(cue.ParsePath("clause.confidentiality")))
//
// The block id comes from the struct label; the version id is declared
// in the struct and must be explicit.
func CompileClause(v cue.Value) (*catalog.ClauseVersion, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cv := &catalog.ClauseVersion{
		BlockID: catalog.BlockID(pathLabel(v)),
		Status:  catalog.StatusDraft,
	}

	version, err := requiredString(v, "version")
	if err != nil {
		return nil, err
	}
	cv.VersionID = catalog.VersionID(version)

	cv.Title, err = optionalString(v, "title")
	if err != nil {
		return nil, err
	}

	cv.Body, err = requiredString(v, "body")
	if err != nil {
		return nil, err
	}

	cv.Rules, err = parseRules(v)
	if err != nil {
		return nil, err
	}

	return cv, nil
}

// CompileTemplate parses a CUE value into a draft TemplateVersion.
// The block id comes from the struct label.
func CompileTemplate(v cue.Value) (*catalog.TemplateVersion, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tv := &catalog.TemplateVersion{
		BlockID: catalog.BlockID(pathLabel(v)),
		Status:  catalog.StatusDraft,
	}

	version, err := requiredString(v, "version")
	if err != nil {
		return nil, err
	}
	tv.VersionID = catalog.VersionID(version)

	tv.Title, err = optionalString(v, "title")
	if err != nil {
		return nil, err
	}

	sectionsVal := v.LookupPath(cue.ParsePath("sections"))
	if !sectionsVal.Exists() {
		return nil, &CompileError{
			Field:   "sections",
			Message: "sections are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := sectionsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		section, err := parseSection(iter.Value())
		if err != nil {
			return nil, err
		}
		tv.Sections = append(tv.Sections, section)
	}

	questionsVal := v.LookupPath(cue.ParsePath("questions"))
	if questionsVal.Exists() {
		qIter, err := questionsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for qIter.Next() {
			question, err := parseQuestion(qIter.Value())
			if err != nil {
				return nil, err
			}
			tv.Questions = append(tv.Questions, question)
		}
	}

	return tv, nil
}

// parseSection parses one template section: heading, fixed clause
// inclusions, slots.
func parseSection(v cue.Value) (catalog.Section, error) {
	var section catalog.Section

	title, err := optionalString(v, "title")
	if err != nil {
		return section, err
	}
	section.Title = title

	fixedVal := v.LookupPath(cue.ParsePath("fixed"))
	if fixedVal.Exists() {
		iter, err := fixedVal.List()
		if err != nil {
			return section, formatCUEError(err)
		}
		for iter.Next() {
			block, err := iter.Value().String()
			if err != nil {
				return section, formatCUEError(err)
			}
			section.Fixed = append(section.Fixed, catalog.BlockID(block))
		}
	}

	slotsVal := v.LookupPath(cue.ParsePath("slots"))
	if slotsVal.Exists() {
		iter, err := slotsVal.List()
		if err != nil {
			return section, formatCUEError(err)
		}
		for iter.Next() {
			slot, err := parseSlot(iter.Value())
			if err != nil {
				return section, err
			}
			section.Slots = append(section.Slots, slot)
		}
	}

	return section, nil
}

// parseSlot parses one fillable slot.
func parseSlot(v cue.Value) (catalog.Slot, error) {
	var slot catalog.Slot

	id, err := requiredString(v, "id")
	if err != nil {
		return slot, err
	}
	slot.ID = catalog.SlotID(id)

	slot.Label, err = optionalString(v, "label")
	if err != nil {
		return slot, err
	}

	slot.Required, err = optionalBool(v, "required")
	if err != nil {
		return slot, err
	}

	candidatesVal := v.LookupPath(cue.ParsePath("candidates"))
	if !candidatesVal.Exists() {
		return slot, &CompileError{
			Field:   fmt.Sprintf("slots.%s.candidates", id),
			Message: "slot candidates are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := candidatesVal.List()
	if err != nil {
		return slot, formatCUEError(err)
	}
	for iter.Next() {
		block, err := iter.Value().String()
		if err != nil {
			return slot, formatCUEError(err)
		}
		slot.Candidates = append(slot.Candidates, catalog.BlockID(block))
	}

	return slot, nil
}

// parseQuestion parses one interview question.
func parseQuestion(v cue.Value) (catalog.Question, error) {
	var question catalog.Question

	id, err := requiredString(v, "id")
	if err != nil {
		return question, err
	}
	question.ID = catalog.QuestionID(id)

	question.Label, err = optionalString(v, "label")
	if err != nil {
		return question, err
	}

	typeName, err := requiredString(v, "type")
	if err != nil {
		return question, err
	}
	question.Type, err = parseValueType(typeName, v)
	if err != nil {
		return question, err
	}

	question.Required, err = optionalBool(v, "required")
	if err != nil {
		return question, err
	}

	return question, nil
}

// parseRules parses the clause's rule declarations.
func parseRules(v cue.Value) ([]catalog.Rule, error) {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, nil
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []catalog.Rule
	for iter.Next() {
		rule, err := parseRule(iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// parseRule parses one rule declaration.
func parseRule(v cue.Value) (catalog.Rule, error) {
	var rule catalog.Rule

	kind, err := requiredString(v, "kind")
	if err != nil {
		return rule, err
	}
	rule.Kind = catalog.RuleKind(kind)

	severity, err := optionalString(v, "severity")
	if err != nil {
		return rule, err
	}
	rule.Severity = catalog.Severity(severity)

	target, err := optionalString(v, "target")
	if err != nil {
		return rule, err
	}
	rule.Target = catalog.BlockID(target)

	question, err := optionalString(v, "question")
	if err != nil {
		return rule, err
	}
	rule.Question = catalog.QuestionID(question)

	rule.ContextKey, err = optionalString(v, "context_key")
	if err != nil {
		return rule, err
	}

	rule.Message, err = optionalString(v, "message")
	if err != nil {
		return rule, err
	}

	rule.Suggestion, err = optionalString(v, "suggestion")
	if err != nil {
		return rule, err
	}

	predicateVal := v.LookupPath(cue.ParsePath("predicate"))
	if predicateVal.Exists() {
		predicate, err := parsePredicate(predicateVal)
		if err != nil {
			return rule, err
		}
		rule.Predicate = predicate
	}

	return rule, nil
}

// parsePredicate parses a rule predicate: an operator plus either one
// comparison value or, for "in", a value list.
func parsePredicate(v cue.Value) (*catalog.Predicate, error) {
	op, err := requiredString(v, "op")
	if err != nil {
		return nil, err
	}
	predicate := &catalog.Predicate{Op: catalog.PredicateOp(op)}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		value, err := parseAnswerValue(valueVal)
		if err != nil {
			return nil, err
		}
		predicate.Value = value
	}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if valuesVal.Exists() {
		iter, err := valuesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			value, err := parseAnswerValue(iter.Value())
			if err != nil {
				return nil, err
			}
			predicate.Values = append(predicate.Values, value)
		}
	}

	return predicate, nil
}

// parseAnswerValue converts a scalar CUE value into an answer value.
// Floats are forbidden; monetary and duration quantities use int.
func parseAnswerValue(v cue.Value) (catalog.Value, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return catalog.StringValue(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return catalog.IntValue(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return catalog.BoolValue(b), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// parseValueType converts a declared question type name.
func parseValueType(name string, v cue.Value) (catalog.ValueType, error) {
	switch catalog.ValueType(name) {
	case catalog.TypeString, catalog.TypeInt, catalog.TypeBool:
		return catalog.ValueType(name), nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported question type %q (string, int, bool)", name),
			Pos:     v.Pos(),
		}
	}
}

// pathLabel returns the last path selector, the authored block name.
// Quoted labels like "non-compete" come back unquoted.
func pathLabel(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	sel := labels[len(labels)-1]
	if sel.Type() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// requiredString reads a required string field.
func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalString reads an optional string field.
func optionalString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", nil
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalBool reads an optional bool field.
func optionalBool(v cue.Value, field string) (bool, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return false, nil
	}
	b, err := fieldVal.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
