package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ArchiveOptions holds flags for the archive command.
type ArchiveOptions struct {
	*RootOptions
	Database string
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "archive <instance-id>",
		Short:         "Archive a draft or completed instance",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")

	return cmd
}

func runArchive(opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	in, err := sess.service.Archive(cmd.Context(), id)
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(in)
	}

	fmt.Fprintf(formatter.Writer, "✓ Archived instance %s\n", in.ID)
	return nil
}
