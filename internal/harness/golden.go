package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/draftline/draftline/internal/catalog"
)

// TraceSnapshot captures the audit trace of one scenario execution.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot into the plain maps and scalars
// catalog.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		eventMap := map[string]any{
			"seq":  ev.Seq,
			"kind": ev.Kind,
		}
		if ev.InstanceID != "" {
			eventMap["instance_id"] = ev.InstanceID
		}
		if ev.TenantID != "" {
			eventMap["tenant_id"] = ev.TenantID
		}
		if len(ev.Details) > 0 {
			details := make(map[string]any, len(ev.Details))
			for k, v := range ev.Details {
				details[k] = v
			}
			eventMap["details"] = details
		}
		traceList[i] = eventMap
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// AssertGolden compares a result's trace against the golden file
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
	}
	traceJSON, err := catalog.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
