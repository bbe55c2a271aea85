// Package harness provides conformance testing for the contract
// lifecycle. Scenarios stage a CUE catalog, walk an instance through
// create, update, complete, upgrade, and archive, and assert on the
// resulting state and audit trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog:
//	  - path/to/catalog.cue
//	publish:
//	  - def-v1
//	  - nda-v1
//	tenant: acme
//	flow:
//	  - op: create
//	    template: nda
//	    context: { jurisdiction: "US" }
//	  - op: update
//	    answers: { term-months: 12 }
//	    select: { dispute: arbitration }
//	  - op: complete
//	    expect_error: CONFLICT_BLOCKING
//	assertions:
//	  - type: status
//	    expect: draft
//	  - type: pin
//	    block: confidentiality
//	    version: conf-v1
//	  - type: audit_count
//	    kind: instance.updated
//	    count: 1
//
// Catalog paths are relative to the scenario file. An empty publish
// list publishes every staged version; a flow step with op publish
// moves one version to published mid-scenario, which is how pin
// stability across catalog publishes is exercised.
//
// # Determinism
//
// Runs use a fixed clock and sequential instance ids, so the same
// scenario always produces the same trace. Golden files snapshot the
// trace in canonical JSON; regenerate them with go test -update.
package harness
