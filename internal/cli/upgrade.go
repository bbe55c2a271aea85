package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/contract"
)

// UpgradeOptions holds flags for the upgrade command.
type UpgradeOptions struct {
	*RootOptions
	Database string
	Target   string // explicit target version, defaults to current published
}

// NewUpgradeCommand creates the upgrade command.
func NewUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpgradeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upgrade <instance-id>",
		Short: "Move a draft to a newer template version",
		Long: `Re-pin a draft instance to a newer published template version.

The migration keeps answers whose questions survive with the same
type, archives the rest, re-resolves slot selections against the new
structure, and reports everything that changed. Upgrades are explicit:
publishing a new version never moves an instance by itself.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgrade(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&opts.Target, "to", "", "target template version (default: current published)")

	return cmd
}

// UpgradeOutput is the JSON payload of the upgrade command.
type UpgradeOutput struct {
	Instance  *contract.Instance        `json:"instance"`
	Migration *contract.MigrationReport `json:"migration"`
}

func runUpgrade(opts *UpgradeOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	in, report, err := sess.service.Upgrade(cmd.Context(), id, catalog.VersionID(opts.Target))
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(UpgradeOutput{Instance: in, Migration: report})
	}

	fmt.Fprintf(formatter.Writer, "✓ Upgraded instance %s: %s -> %s\n\n",
		in.ID, report.FromVersion, report.ToVersion)
	printMigration(formatter, report)
	return nil
}

// printMigration renders the migration report as text, skipping empty
// sections.
func printMigration(formatter *OutputFormatter, report *contract.MigrationReport) {
	w := formatter.Writer

	for _, pin := range report.UpdatedPins {
		fmt.Fprintf(w, "  pin updated: %s %s -> %s\n", pin.Block, pin.OldVersion, pin.NewVersion)
	}
	for _, pin := range report.AddedPins {
		fmt.Fprintf(w, "  pin added: %s %s\n", pin.Block, pin.NewVersion)
	}
	for _, pin := range report.RemovedPins {
		fmt.Fprintf(w, "  pin removed: %s %s\n", pin.Block, pin.OldVersion)
	}
	for _, slot := range report.RemovedSlots {
		fmt.Fprintf(w, "  slot removed: %s (%s)\n", slot.Slot, slot.Reason)
	}
	for _, slot := range report.ClearedSelections {
		fmt.Fprintf(w, "  selection cleared: %s (%s)\n", slot.Slot, slot.Reason)
	}
	for _, slot := range report.NewSlots {
		fmt.Fprintf(w, "  new required slot: %s\n", slot)
	}
	for _, q := range report.KeptAnswers {
		fmt.Fprintf(w, "  answer kept: %s\n", q)
	}
	for _, a := range report.ArchivedAnswers {
		fmt.Fprintf(w, "  answer archived: %s\n", a.Question)
	}
	for _, q := range report.RetypedQuestions {
		fmt.Fprintf(w, "  question retyped, needs re-entry: %s\n", q)
	}
	for _, q := range report.NewRequiredQuestions {
		fmt.Fprintf(w, "  new required question: %s\n", q)
	}
	for _, c := range report.NewConflicts {
		fmt.Fprintf(w, "  new conflict [%s/%s]: %s\n", c.Kind, c.Severity, c.Message)
	}
}
