package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/contract"
)

// VersionsOptions holds flags for the versions command.
type VersionsOptions struct {
	*RootOptions
	Database string
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "versions <block-id>",
		Short:         "List all versions of a catalog block",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(opts, catalog.BlockID(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")

	return cmd
}

func runVersions(opts *VersionsOptions, block catalog.BlockID, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	refs, err := sess.catalog.Versions(ctx, block)
	if err != nil {
		return reportDomainError(formatter, err)
	}
	if len(refs) == 0 {
		msg := fmt.Sprintf("no versions found for block %q", block)
		_ = formatter.Error(string(contract.ErrCodeNotFound), msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	if formatter.Format == "json" {
		return formatter.Success(refs)
	}

	// The head is the published version new instances would pin.
	head, err := sess.catalog.CurrentPublishedVersion(ctx, block)
	if err != nil {
		head = ""
	}

	fmt.Fprintf(formatter.Writer, "Versions of %s:\n", block)
	for _, ref := range refs {
		marker := " "
		if ref.VersionID == head {
			marker = "*"
		}
		fmt.Fprintf(formatter.Writer, "%s %s  v%d  %s\n", marker, ref.VersionID, ref.Number, ref.Status)
	}
	return nil
}
