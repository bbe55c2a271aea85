package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/rules"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Database string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <instance-id>",
		Short: "Re-run consistency validation for an instance",
		Long: `Re-run the rule engine against the instance's pinned clause
versions, slot selections, answers, and context.

Validation never blocks editing: conflicts are reported, and only
completion requires a conflict-free draft. Exit code is 1 when
blocking conflicts exist.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")

	return cmd
}

// ValidationOutput is the JSON payload of the validate command.
type ValidationOutput struct {
	InstanceID string                `json:"instance_id"`
	State      rules.ValidationState `json:"state"`
	Conflicts  []rules.Conflict      `json:"conflicts,omitempty"`
}

func runValidate(opts *ValidateOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	report, err := sess.service.Validate(cmd.Context(), id)
	if err != nil {
		return reportDomainError(formatter, err)
	}

	state := report.State()
	out := ValidationOutput{
		InstanceID: id,
		State:      state,
		Conflicts:  report.Conflicts,
	}

	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printValidation(formatter, out)
	}

	if state == rules.StateConflicts {
		return NewExitError(ExitFailure, fmt.Sprintf("instance %s has blocking conflicts", id))
	}
	return nil
}

// printValidation renders a validation report as text.
func printValidation(formatter *OutputFormatter, out ValidationOutput) {
	switch out.State {
	case rules.StateValid:
		fmt.Fprintf(formatter.Writer, "✓ %s: no conflicts\n", out.InstanceID)
		return
	case rules.StateWarnings:
		fmt.Fprintf(formatter.Writer, "⚠ %s: %d warning(s)\n\n", out.InstanceID, len(out.Conflicts))
	default:
		fmt.Fprintf(formatter.Writer, "✗ %s: %d conflict(s)\n\n", out.InstanceID, len(out.Conflicts))
	}

	for _, c := range out.Conflicts {
		fmt.Fprintf(formatter.Writer, "  [%s/%s] %s\n", c.Kind, c.Severity, conflictSubject(c))
		if c.Message != "" {
			fmt.Fprintf(formatter.Writer, "    %s\n", c.Message)
		}
		if c.Suggestion != "" {
			fmt.Fprintf(formatter.Writer, "    suggestion: %s\n", c.Suggestion)
		}
	}
}

// conflictSubject names what the conflict is about.
func conflictSubject(c rules.Conflict) string {
	switch {
	case c.Question != "":
		return fmt.Sprintf("%s: question %s", c.Source, c.Question)
	case c.Target != catalog.BlockID(""):
		return fmt.Sprintf("%s vs %s", c.Source, c.Target)
	default:
		return string(c.Source)
	}
}
