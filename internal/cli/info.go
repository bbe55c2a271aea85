package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
	Database string
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info <instance-id>",
		Short: "Show an instance's pinned and current template versions",
		Long: `Show where an instance stands relative to the catalog: the
pinned template version, the block's current published version, and
whether an upgrade is available.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")

	return cmd
}

func runInfo(opts *InfoOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	info, err := sess.service.VersionInfo(cmd.Context(), id)
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(info)
	}

	fmt.Fprintf(formatter.Writer, "Instance %s\n", info.InstanceID)
	fmt.Fprintf(formatter.Writer, "  status: %s\n", info.Status)
	fmt.Fprintf(formatter.Writer, "  validation: %s\n", info.ValidationState)
	fmt.Fprintf(formatter.Writer, "  pinned: %s (v%d)\n", info.PinnedVersion, info.PinnedNumber)
	fmt.Fprintf(formatter.Writer, "  current: %s (v%d)\n", info.CurrentVersion, info.CurrentNumber)
	if info.UpgradeAvailable {
		fmt.Fprintln(formatter.Writer, "  upgrade available")
	}
	return nil
}
