package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Flow step operations.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpValidate = "validate"
	OpComplete = "complete"
	OpArchive  = "archive"
	OpUpgrade  = "upgrade"
	OpExport   = "export"
	OpPublish  = "publish"
)

// Scenario defines one conformance scenario: a catalog to stage, a
// lifecycle flow to execute, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Catalog lists CUE source files to compile and stage.
	// Paths are relative to the scenario file location.
	Catalog []string `yaml:"catalog"`

	// Publish lists version ids to publish before the flow runs.
	// Empty means every staged version.
	Publish []string `yaml:"publish,omitempty"`

	// Tenant is the tenant id used for created instances.
	Tenant string `yaml:"tenant,omitempty"`

	// Flow contains the lifecycle steps, executed in order against a
	// single instance.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final instance and the audit trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// baseDir resolves relative catalog paths.
	baseDir string
}

// FlowStep is one lifecycle operation. Which fields apply depends on
// the op.
type FlowStep struct {
	Op string `yaml:"op"`

	// Template names the template block for create.
	Template string `yaml:"template,omitempty"`

	// Context carries context entries for create. Values are string,
	// int, or bool scalars.
	Context map[string]interface{} `yaml:"context,omitempty"`

	// Answers carries interview answers for update.
	Answers map[string]interface{} `yaml:"answers,omitempty"`

	// Select maps slot ids to candidate blocks for update.
	Select map[string]string `yaml:"select,omitempty"`

	// Clear lists slot selections to remove for update.
	Clear []string `yaml:"clear,omitempty"`

	// Version is the publish subject or the explicit upgrade target.
	Version string `yaml:"version,omitempty"`

	// ExpectError asserts the step fails with the given error code.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	s.baseDir = filepath.Dir(path)

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios loads every .yaml scenario under dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario dir %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

// CatalogFiles returns the scenario's catalog paths resolved against
// its base directory.
func (s *Scenario) CatalogFiles() []string {
	files := make([]string, len(s.Catalog))
	for i, f := range s.Catalog {
		if filepath.IsAbs(f) {
			files[i] = f
			continue
		}
		files[i] = filepath.Join(s.baseDir, f)
	}
	return files
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Catalog) == 0 {
		return fmt.Errorf("catalog is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow is required")
	}
	for i, step := range s.Flow {
		switch step.Op {
		case OpCreate:
			if step.Template == "" {
				return fmt.Errorf("flow[%d]: create requires template", i)
			}
		case OpUpdate, OpValidate, OpComplete, OpArchive, OpUpgrade, OpExport:
		case OpPublish:
			if step.Version == "" {
				return fmt.Errorf("flow[%d]: publish requires version", i)
			}
		default:
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}
