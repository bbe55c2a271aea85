package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_CompleteHappyPath(t *testing.T) {
	result := runScenario(t, "complete_happy_path")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, "complete_happy_path", result))
}

func TestGolden_BlockingConflict(t *testing.T) {
	result := runScenario(t, "blocking_conflict")
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, "blocking_conflict", result))
}

func TestTraceSnapshot_CanonicalMapShape(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "shape",
		Trace: []TraceEvent{
			{Seq: 1, Kind: "instance.created", InstanceID: "inst-0001", TenantID: "acme",
				Details: map[string]string{"template_version": "nda-v1"}},
			{Seq: 2, Kind: "instance.archived", InstanceID: "inst-0001"},
		},
	}

	m := snapshot.toCanonicalMap()
	assert.Equal(t, "shape", m["scenario_name"])

	trace, ok := m["trace"].([]any)
	require.True(t, ok)
	require.Len(t, trace, 2)

	first, ok := trace[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), first["seq"])
	assert.Equal(t, "acme", first["tenant_id"])

	// Empty optional fields stay out of the canonical form.
	second, ok := trace[1].(map[string]any)
	require.True(t, ok)
	_, hasTenant := second["tenant_id"]
	assert.False(t, hasTenant)
	_, hasDetails := second["details"]
	assert.False(t, hasDetails)
}
