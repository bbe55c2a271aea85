package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// testCatalogCUE is a small NDA catalog used by the CLI tests.
const testCatalogCUE = `package catalog

clause: definitions: {
	version: "def-v1"
	title:   "Definitions"
	body:    "Capitalized terms have the meanings given in this section."
}

clause: confidentiality: {
	version: "conf-v1"
	title:   "Confidentiality"
	body:    "Each party shall keep Confidential Information secret."
	rules: [{
		kind:     "requires"
		severity: "hard"
		target:   "definitions"
		message:  "confidentiality relies on defined terms"
	}]
}

clause: arbitration: {
	version: "arb-v1"
	body:    "Disputes are settled by binding arbitration."
}

clause: "court-jurisdiction": {
	version: "court-v1"
	body:    "Disputes are settled before the competent courts."
}

clause: "non-compete": {
	version: "nc-v1"
	body:    "The receiving party shall not compete for the agreed term."
	rules: [{
		kind:     "requires_answer"
		severity: "hard"
		question: "term-months"
		predicate: {
			op:    "lte"
			value: 24
		}
		message:    "non-compete terms above 24 months are unenforceable"
		suggestion: "shorten the term or drop the non-compete clause"
	}]
}

template: nda: {
	version: "nda-v1"
	title:   "Mutual NDA"
	sections: [{
		title: "Core"
		fixed: ["definitions", "confidentiality"]
		slots: [{
			id:         "dispute"
			label:      "Dispute resolution"
			required:   true
			candidates: ["arbitration", "court-jurisdiction"]
		}, {
			id:         "restraint"
			label:      "Restraint of trade"
			candidates: ["non-compete"]
		}]
	}]
	questions: [{
		id:       "term-months"
		label:    "Term in months"
		type:     "int"
		required: true
	}, {
		id:       "counterparty"
		type:     "string"
		required: true
	}]
}
`

// allTestVersions lists every version id in testCatalogCUE.
var allTestVersions = []string{"def-v1", "conf-v1", "arb-v1", "court-v1", "nc-v1", "nda-v1"}

// writeTestCatalog writes the test catalog into a temp directory.
func writeTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeCUEFile(t, dir, "catalog.cue", testCatalogCUE)
	return dir
}

// writeCUEFile writes one CUE source file into dir.
func writeCUEFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

// execCommand runs a freshly constructed command and captures its output.
func execCommand(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedPublishedCatalog compiles the test catalog into a fresh database
// and publishes every version. Returns the database path.
func seedPublishedCatalog(t *testing.T) string {
	t.Helper()
	dir := writeTestCatalog(t)
	dbPath := filepath.Join(t.TempDir(), "draftline.db")

	_, err := execCommand(t, NewCompileCommand, "text", dir, "--db", dbPath)
	require.NoError(t, err)

	for _, version := range allTestVersions {
		_, err := execCommand(t, NewPublishCommand, "text", version, "--db", dbPath)
		require.NoError(t, err)
	}
	return dbPath
}

// decodeData unmarshals the data payload of a JSON CLI response.
func decodeData(t *testing.T, output string, v interface{}) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
