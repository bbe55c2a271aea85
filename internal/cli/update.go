package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/contract"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Database   string
	Answers    []string // question=value pairs
	Selections []string // slot=block pairs
	ClearSlots []string // slots to clear
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <instance-id>",
		Short: "Merge answers and slot selections into a draft",
		Long: `Merge interview answers and slot selections into a draft
instance and re-run consistency validation.

Answers are typed against the pinned template version's question
declarations. Slot selections must name a published candidate of
the slot; the chosen clause is pinned at selection time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")
	cmd.Flags().StringArrayVar(&opts.Answers, "answer", nil, "answer as question=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Selections, "select", nil, "slot selection as slot=block (repeatable)")
	cmd.Flags().StringArrayVar(&opts.ClearSlots, "clear-slot", nil, "slot selection to clear (repeatable)")

	return cmd
}

func runUpdate(opts *UpdateOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rawAnswers, err := parsePairs(opts.Answers, "answer")
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return err
	}
	rawSelections, err := parsePairs(opts.Selections, "select")
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return err
	}

	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()

	// Answers are typed against the instance's pinned template version,
	// not the current published one.
	in, err := sess.service.Get(ctx, id)
	if err != nil {
		return reportDomainError(formatter, err)
	}
	tv, err := sess.catalog.TemplateVersion(ctx, in.TemplateVersion)
	if err != nil {
		return reportDomainError(formatter, err)
	}
	answers, err := convertAnswers(tv, rawAnswers)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return err
	}

	selections := make(map[catalog.SlotID]catalog.BlockID, len(rawSelections)+len(opts.ClearSlots))
	for slot, block := range rawSelections {
		selections[catalog.SlotID(slot)] = catalog.BlockID(block)
	}
	for _, slot := range opts.ClearSlots {
		selections[catalog.SlotID(slot)] = ""
	}

	next, err := sess.service.Update(ctx, id, contract.UpdateParams{
		Answers:    answers,
		Selections: selections,
	})
	if err != nil {
		return reportDomainError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(next)
	}

	fmt.Fprintf(formatter.Writer, "✓ Updated instance %s (revision %d)\n", next.ID, next.Revision)
	fmt.Fprintf(formatter.Writer, "  validation: %s\n", next.ValidationState)
	return nil
}
