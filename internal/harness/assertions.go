package harness

import (
	"fmt"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/contract"
)

// Assertion types.
const (
	AssertStatus          = "status"
	AssertValidationState = "validation_state"
	AssertTemplateVersion = "template_version"
	AssertPin             = "pin"
	AssertSelection       = "selection"
	AssertAnswer          = "answer"
	AssertAuditContains   = "audit_contains"
	AssertAuditCount      = "audit_count"
)

// Assertion validates one aspect of the scenario outcome. Which fields
// apply depends on the type.
type Assertion struct {
	Type string `yaml:"type"`

	// Expect is the expected value for status, validation_state,
	// template_version, selection, and answer assertions.
	Expect string `yaml:"expect,omitempty"`

	// Block and Version identify a pin assertion.
	Block   string `yaml:"block,omitempty"`
	Version string `yaml:"version,omitempty"`

	// Slot identifies a selection assertion.
	Slot string `yaml:"slot,omitempty"`

	// Question identifies an answer assertion.
	Question string `yaml:"question,omitempty"`

	// Kind selects audit events for audit_contains and audit_count.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of matching events for audit_count.
	Count int `yaml:"count,omitempty"`

	// Details must be a subset of a matching event's details for
	// audit_contains.
	Details map[string]string `yaml:"details,omitempty"`
}

func (a Assertion) validate() error {
	switch a.Type {
	case AssertStatus, AssertValidationState, AssertTemplateVersion:
		if a.Expect == "" {
			return fmt.Errorf("%s requires expect", a.Type)
		}
	case AssertPin:
		if a.Block == "" || a.Version == "" {
			return fmt.Errorf("pin requires block and version")
		}
	case AssertSelection:
		if a.Slot == "" {
			return fmt.Errorf("selection requires slot")
		}
	case AssertAnswer:
		if a.Question == "" {
			return fmt.Errorf("answer requires question")
		}
	case AssertAuditContains, AssertAuditCount:
		if a.Kind == "" {
			return fmt.Errorf("%s requires kind", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// check evaluates the assertion against a completed run.
func (a Assertion) check(result *Result) error {
	switch a.Type {
	case AssertStatus:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		if string(in.Status) != a.Expect {
			return fmt.Errorf("expected status %s, got %s", a.Expect, in.Status)
		}

	case AssertValidationState:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		if string(in.ValidationState) != a.Expect {
			return fmt.Errorf("expected validation state %s, got %s", a.Expect, in.ValidationState)
		}

	case AssertTemplateVersion:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		if string(in.TemplateVersion) != a.Expect {
			return fmt.Errorf("expected template version %s, got %s", a.Expect, in.TemplateVersion)
		}

	case AssertPin:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		var pin contract.Pin
		ok := false
		for _, p := range in.Pins {
			if p.Block == catalog.BlockID(a.Block) {
				pin = p
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("no pin for block %s", a.Block)
		}
		if string(pin.Version) != a.Version {
			return fmt.Errorf("expected pin %s for %s, got %s", a.Version, a.Block, pin.Version)
		}

	case AssertSelection:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		pin, ok := in.SelectedSlots[catalog.SlotID(a.Slot)]
		if a.Expect == "" {
			if ok {
				return fmt.Errorf("expected slot %s to be empty, got %s", a.Slot, pin.Version)
			}
			return nil
		}
		if !ok {
			return fmt.Errorf("slot %s has no selection", a.Slot)
		}
		if string(pin.Version) != a.Expect {
			return fmt.Errorf("expected selection %s in slot %s, got %s", a.Expect, a.Slot, pin.Version)
		}

	case AssertAnswer:
		in, err := a.instance(result)
		if err != nil {
			return err
		}
		value, ok := in.Answers[catalog.QuestionID(a.Question)]
		if a.Expect == "" {
			if ok {
				return fmt.Errorf("expected question %s to be unanswered, got %v", a.Question, value)
			}
			return nil
		}
		if !ok {
			return fmt.Errorf("question %s is unanswered", a.Question)
		}
		if got := fmt.Sprintf("%v", value); got != a.Expect {
			return fmt.Errorf("expected answer %s for %s, got %s", a.Expect, a.Question, got)
		}

	case AssertAuditContains:
		for _, ev := range result.Trace {
			if ev.Kind != a.Kind {
				continue
			}
			if detailsMatch(a.Details, ev.Details) {
				return nil
			}
		}
		return fmt.Errorf("no %s event matching %v in trace", a.Kind, a.Details)

	case AssertAuditCount:
		count := 0
		for _, ev := range result.Trace {
			if ev.Kind == a.Kind {
				count++
			}
		}
		if count != a.Count {
			return fmt.Errorf("expected %d %s event(s), got %d", a.Count, a.Kind, count)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func (a Assertion) instance(result *Result) (*contract.Instance, error) {
	if result.Final == nil {
		return nil, fmt.Errorf("no instance was created")
	}
	return result.Final, nil
}

// detailsMatch reports whether want is a subset of got.
func detailsMatch(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
