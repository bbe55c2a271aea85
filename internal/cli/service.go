package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/contract"
	"github.com/draftline/draftline/internal/store"
)

// session bundles the store-backed collaborators a lifecycle command
// needs: the open database, the catalog over it, and the service.
type session struct {
	store   *store.Store
	catalog *store.Catalog
	service *contract.Service
	audit   *audit.LogRecorder
}

// openSession opens the database and wires the lifecycle service.
// Callers must Close when done.
func openSession(dbPath string) (*session, error) {
	if dbPath == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", dbPath), err)
	}

	cat := st.Catalog()
	rec := audit.NewLogRecorder(0)
	svc := contract.NewService(st.Instances(), cat, rec)
	return &session{store: st, catalog: cat, service: svc, audit: rec}, nil
}

// Close flushes the audit recorder and closes the database.
func (s *session) Close() {
	s.audit.Close()
	s.store.Close()
}

// newFormatter builds the command's output formatter. Verbose logs go
// to stderr so JSON output stays parseable.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// reportDomainError renders a lifecycle error and converts it into an
// exit code: domain rejections exit 1, everything else exits 2.
func reportDomainError(f *OutputFormatter, err error) error {
	var ce *contract.Error
	if errors.As(err, &ce) {
		var details interface{}
		switch {
		case len(ce.Conflicts) > 0:
			details = ce.Conflicts
		case len(ce.Details) > 0:
			details = ce.Details
		}
		f.Error(string(ce.Code), ce.Message, details)
		return NewExitError(ExitFailure, ce.Message)
	}
	if errors.Is(err, catalog.ErrNotFound) {
		f.Error(string(contract.ErrCodeNotFound), err.Error(), nil)
		return WrapExitError(ExitFailure, err.Error(), err)
	}
	f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

// parsePairs parses repeated key=value flags.
func parsePairs(pairs []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("invalid --%s %q: expected key=value", flag, pair))
		}
		out[key] = value
	}
	return out, nil
}

// convertAnswers types raw answer strings against the instance's
// pinned question declarations.
func convertAnswers(tv *catalog.TemplateVersion, raw map[string]string) (catalog.AnswerMap, error) {
	answers := make(catalog.AnswerMap, len(raw))
	for key, value := range raw {
		id := catalog.QuestionID(key)
		question, ok := tv.Question(id)
		if !ok {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("unknown question %q for this template version", key))
		}
		converted, err := convertAnswer(question, value)
		if err != nil {
			return nil, err
		}
		answers[id] = converted
	}
	return answers, nil
}

// convertAnswer parses one raw answer string into a typed value.
func convertAnswer(q catalog.Question, raw string) (catalog.Value, error) {
	switch q.Type {
	case catalog.TypeString:
		return catalog.StringValue(raw), nil
	case catalog.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("answer for %q must be an integer, got %q", q.ID, raw))
		}
		return catalog.IntValue(n), nil
	case catalog.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, NewExitError(ExitFailure,
				fmt.Sprintf("answer for %q must be a boolean, got %q", q.ID, raw))
		}
		return catalog.BoolValue(b), nil
	default:
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("question %q has unsupported type %q", q.ID, q.Type))
	}
}

// convertContext types raw context values: ints and bools when they
// parse as such, strings otherwise.
func convertContext(raw map[string]string) catalog.ContextMap {
	out := make(catalog.ContextMap, len(raw))
	for key, value := range raw {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[key] = catalog.IntValue(n)
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			out[key] = catalog.BoolValue(b)
			continue
		}
		out[key] = catalog.StringValue(value)
	}
	return out
}
