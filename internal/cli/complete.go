package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CompleteOptions holds flags for the complete command.
type CompleteOptions struct {
	*RootOptions
	Database string
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete <instance-id>",
		Short: "Freeze a conflict-free draft",
		Long: `Complete a draft instance: every required question must be
answered, every required slot filled, and no blocking conflicts may
remain. A completed instance's pins and answers are frozen.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")

	return cmd
}

func runComplete(opts *CompleteOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	in, err := sess.service.Complete(cmd.Context(), id)
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(in)
	}

	fmt.Fprintf(formatter.Writer, "✓ Completed instance %s\n", in.ID)
	if in.CompletedAt != nil {
		fmt.Fprintf(formatter.Writer, "  completed at: %s\n", in.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(formatter.Writer, "  validation: %s\n", in.ValidationState)
	return nil
}
