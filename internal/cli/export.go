package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Output   string // output file path
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <instance-id>",
		Short: "Export a completed instance's frozen pin set",
		Long: `Export the exact clause versions, slot selections, and answers
of a completed or archived instance, with a digest over the pin set.
Drafts cannot be exported: their pins are still mutable.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runExport(opts *ExportOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	export, err := sess.service.Export(cmd.Context(), id)
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if opts.Output != "" {
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding export", err)
		}
		data = append(data, '\n')
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return outputCompileError(formatter, ErrCodeStoreFailed,
				fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(export)
	}

	fmt.Fprintf(formatter.Writer, "Instance %s (template %s)\n", export.InstanceID, export.TemplateVersion)
	fmt.Fprintln(formatter.Writer, "Clause versions:")
	for _, v := range export.ClauseVersions {
		fmt.Fprintf(formatter.Writer, "  %s\n", v)
	}
	fmt.Fprintf(formatter.Writer, "Digest: %s\n", export.Digest)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote export to %s\n", opts.Output)
	}
	return nil
}
