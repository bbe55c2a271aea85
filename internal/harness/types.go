package harness

import (
	"fmt"

	"github.com/draftline/draftline/internal/contract"
)

// TraceEvent is one audit event in the scenario trace. Timestamps are
// omitted so traces compare bytewise across runs.
type TraceEvent struct {
	Seq        int64             `json:"seq"`
	Kind       string            `json:"kind"`
	InstanceID string            `json:"instance_id,omitempty"`
	TenantID   string            `json:"tenant_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every flow expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors lists every failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace contains the audit events recorded during the flow.
	Trace []TraceEvent `json:"trace"`

	// Final is the instance after the last flow step, nil when the
	// flow never created one.
	Final *contract.Instance `json:"final,omitempty"`

	// Export is set when the flow ran an export step.
	Export *contract.Export `json:"export,omitempty"`
}

func (r *Result) fail(format string, args ...interface{}) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
