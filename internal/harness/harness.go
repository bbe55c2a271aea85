package harness

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/compiler"
	"github.com/draftline/draftline/internal/contract"
	"github.com/draftline/draftline/internal/store"
	"github.com/draftline/draftline/internal/testutil"
)

// epoch is the fixed start instant of every scenario clock.
var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Runner executes one scenario against a fresh SQLite store.
type Runner struct {
	scenario *Scenario
	dbPath   string
}

// NewRunner creates a runner. dbPath names a database file that must
// not exist yet; each run wants a pristine store.
func NewRunner(s *Scenario, dbPath string) *Runner {
	return &Runner{scenario: s, dbPath: dbPath}
}

// Run stages the catalog, executes the flow, and evaluates assertions.
// A failed expectation lands in Result.Errors; an error return means
// the harness itself could not proceed.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	st, err := store.Open(r.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	cat := st.Catalog()
	staged, err := r.stageCatalog(ctx, cat)
	if err != nil {
		return nil, err
	}
	if err := r.publishInitial(ctx, cat, staged); err != nil {
		return nil, err
	}

	recorder := audit.NewMemoryRecorder()
	svc := contract.NewService(st.Instances(), cat, recorder,
		contract.WithClock(testutil.NewFixedClock(epoch, time.Second).Now),
		contract.WithIDGenerator(testutil.NewFixedIDs("inst")),
	)

	result := &Result{Pass: true}
	var instanceID string

	for i, step := range r.scenario.Flow {
		stepErr := r.runStep(ctx, svc, cat, step, &instanceID, result)
		switch {
		case step.ExpectError == "" && stepErr != nil:
			result.fail("flow[%d] %s: unexpected error: %v", i, step.Op, stepErr)
		case step.ExpectError != "" && stepErr == nil:
			result.fail("flow[%d] %s: expected %s, got success", i, step.Op, step.ExpectError)
		case step.ExpectError != "" && stepErr != nil:
			if code := string(contract.CodeOf(stepErr)); code != step.ExpectError {
				result.fail("flow[%d] %s: expected %s, got %s (%v)", i, step.Op, step.ExpectError, code, stepErr)
			}
		}
	}

	if instanceID != "" {
		final, err := svc.Get(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("loading final instance: %w", err)
		}
		result.Final = final
	}
	for _, ev := range recorder.Events() {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:        ev.Seq,
			Kind:       string(ev.Kind),
			InstanceID: ev.InstanceID,
			TenantID:   ev.TenantID,
			Details:    ev.Details,
		})
	}

	for i, a := range r.scenario.Assertions {
		if err := a.check(result); err != nil {
			result.fail("assertions[%d] %s: %v", i, a.Type, err)
		}
	}
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, svc *contract.Service, cat catalog.Writer, step FlowStep, instanceID *string, result *Result) error {
	switch step.Op {
	case OpCreate:
		cm, err := contextFromYAML(step.Context)
		if err != nil {
			return err
		}
		in, err := svc.Create(ctx, contract.CreateParams{
			TenantID: r.scenario.Tenant,
			Template: catalog.BlockID(step.Template),
			Context:  cm,
		})
		if err != nil {
			return err
		}
		*instanceID = in.ID
		return nil

	case OpUpdate:
		answers, err := answersFromYAML(step.Answers)
		if err != nil {
			return err
		}
		selections := make(map[catalog.SlotID]catalog.BlockID, len(step.Select)+len(step.Clear))
		for slot, block := range step.Select {
			selections[catalog.SlotID(slot)] = catalog.BlockID(block)
		}
		for _, slot := range step.Clear {
			selections[catalog.SlotID(slot)] = ""
		}
		_, err = svc.Update(ctx, *instanceID, contract.UpdateParams{
			Answers:    answers,
			Selections: selections,
		})
		return err

	case OpValidate:
		_, err := svc.Validate(ctx, *instanceID)
		return err

	case OpComplete:
		_, err := svc.Complete(ctx, *instanceID)
		return err

	case OpArchive:
		_, err := svc.Archive(ctx, *instanceID)
		return err

	case OpUpgrade:
		_, _, err := svc.Upgrade(ctx, *instanceID, catalog.VersionID(step.Version))
		return err

	case OpExport:
		export, err := svc.Export(ctx, *instanceID)
		if err != nil {
			return err
		}
		result.Export = export
		return nil

	case OpPublish:
		return publishVersion(ctx, cat, catalog.VersionID(step.Version))

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

// stageCatalog compiles every scenario CUE file into draft versions.
func (r *Runner) stageCatalog(ctx context.Context, cat *store.Catalog) ([]catalog.VersionID, error) {
	cueCtx := cuecontext.New()
	var staged []catalog.VersionID

	for _, file := range r.scenario.CatalogFiles() {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading catalog file: %w", err)
		}
		value := cueCtx.CompileBytes(data, cue.Filename(file))
		if err := value.Err(); err != nil {
			return nil, fmt.Errorf("compiling %s: %w", file, err)
		}

		clauses := value.LookupPath(cue.ParsePath("clause"))
		if clauses.Exists() {
			iter, err := clauses.Fields()
			if err != nil {
				return nil, fmt.Errorf("%s: iterating clauses: %w", file, err)
			}
			for iter.Next() {
				cv, err := compiler.CompileClause(iter.Value())
				if err != nil {
					return nil, fmt.Errorf("%s: %w", file, err)
				}
				if err := cat.AddClause(ctx, cv); err != nil {
					return nil, fmt.Errorf("staging clause %s: %w", cv.VersionID, err)
				}
				staged = append(staged, cv.VersionID)
			}
		}

		templates := value.LookupPath(cue.ParsePath("template"))
		if templates.Exists() {
			iter, err := templates.Fields()
			if err != nil {
				return nil, fmt.Errorf("%s: iterating templates: %w", file, err)
			}
			for iter.Next() {
				tv, err := compiler.CompileTemplate(iter.Value())
				if err != nil {
					return nil, fmt.Errorf("%s: %w", file, err)
				}
				if err := cat.AddTemplate(ctx, tv); err != nil {
					return nil, fmt.Errorf("staging template %s: %w", tv.VersionID, err)
				}
				staged = append(staged, tv.VersionID)
			}
		}
	}
	return staged, nil
}

// publishInitial publishes the scenario's publish list, or every
// staged version when the list is empty.
func (r *Runner) publishInitial(ctx context.Context, cat catalog.Writer, staged []catalog.VersionID) error {
	versions := staged
	if len(r.scenario.Publish) > 0 {
		versions = make([]catalog.VersionID, 0, len(r.scenario.Publish))
		for _, v := range r.scenario.Publish {
			versions = append(versions, catalog.VersionID(v))
		}
	}
	for _, v := range versions {
		if err := publishVersion(ctx, cat, v); err != nil {
			return err
		}
	}
	return nil
}

// publishVersion walks one version draft -> review -> approved -> published.
func publishVersion(ctx context.Context, cat catalog.Writer, v catalog.VersionID) error {
	for _, status := range []catalog.Status{catalog.StatusReview, catalog.StatusApproved, catalog.StatusPublished} {
		if err := cat.SetStatus(ctx, v, status); err != nil {
			return fmt.Errorf("publishing %s: %w", v, err)
		}
	}
	return nil
}

// answersFromYAML converts YAML scalars into typed answer values.
func answersFromYAML(raw map[string]interface{}) (catalog.AnswerMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	answers := make(catalog.AnswerMap, len(raw))
	for key, value := range raw {
		v, err := valueFromYAML(value)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", key, err)
		}
		answers[catalog.QuestionID(key)] = v
	}
	return answers, nil
}

// contextFromYAML converts YAML scalars into typed context values.
func contextFromYAML(raw map[string]interface{}) (catalog.ContextMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	cm := make(catalog.ContextMap, len(raw))
	for key, value := range raw {
		v, err := valueFromYAML(value)
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", key, err)
		}
		cm[key] = v
	}
	return cm, nil
}

// valueFromYAML maps a YAML scalar onto the answer value types.
// Floats are rejected, matching the catalog's value model.
func valueFromYAML(v interface{}) (catalog.Value, error) {
	switch val := v.(type) {
	case string:
		return catalog.StringValue(val), nil
	case int:
		return catalog.IntValue(int64(val)), nil
	case int64:
		return catalog.IntValue(val), nil
	case bool:
		return catalog.BoolValue(val), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}
