package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: demo
description: "demo scenario"
catalog:
  - nda.cue
tenant: acme
flow:
  - op: create
    template: nda
    context: { jurisdiction: "US" }
  - op: update
    answers: { term-months: 12 }
    select: { dispute: arbitration }
  - op: complete
    expect_error: CONFLICT_BLOCKING
assertions:
  - type: status
    expect: draft
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", s.Name)
	assert.Equal(t, "acme", s.Tenant)
	require.Len(t, s.Flow, 3)
	assert.Equal(t, OpCreate, s.Flow[0].Op)
	assert.Equal(t, "nda", s.Flow[0].Template)
	assert.Equal(t, 12, s.Flow[1].Answers["term-months"])
	assert.Equal(t, "arbitration", s.Flow[1].Select["dispute"])
	assert.Equal(t, "CONFLICT_BLOCKING", s.Flow[2].ExpectError)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertStatus, s.Assertions[0].Type)
}

func TestLoadScenario_ResolvesCatalogPaths(t *testing.T) {
	path := writeScenario(t, `
name: demo
catalog:
  - sub/nda.cue
flow:
  - op: create
    template: nda
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	files := s.CatalogFiles()
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "sub", "nda.cue"), files[0])
}

func TestLoadScenario_RejectsMissingName(t *testing.T) {
	path := writeScenario(t, `
catalog: [nda.cue]
flow:
  - op: create
    template: nda
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_RejectsUnknownOp(t *testing.T) {
	path := writeScenario(t, `
name: demo
catalog: [nda.cue]
flow:
  - op: teleport
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")
}

func TestLoadScenario_RejectsCreateWithoutTemplate(t *testing.T) {
	path := writeScenario(t, `
name: demo
catalog: [nda.cue]
flow:
  - op: create
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create requires template")
}

func TestLoadScenario_RejectsBadAssertion(t *testing.T) {
	path := writeScenario(t, `
name: demo
catalog: [nda.cue]
flow:
  - op: create
    template: nda
assertions:
  - type: pin
    block: confidentiality
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pin requires block and version")
}

func TestLoadScenarios_SortedByName(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.True(t, len(scenarios) >= 2)

	for i := 1; i < len(scenarios); i++ {
		assert.Less(t, scenarios[i-1].Name, scenarios[i].Name)
	}
}
