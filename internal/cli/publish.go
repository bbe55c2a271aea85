package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	Database string
	To       string // target status, defaults to published
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <version-id>",
		Short: "Advance a catalog version toward published",
		Long: `Advance a version through the editorial status chain
(draft, review, approved, published) to the target status.

Each intermediate transition is applied in order. Publishing a new
version never touches existing instances: their pins stay on the
versions they were created with.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, catalog.VersionID(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required)")
	cmd.Flags().StringVar(&opts.To, "to", string(catalog.StatusPublished), "target status")

	return cmd
}

// statusChain is the forward editorial path. Deprecation hangs off the
// end and is only reachable with an explicit --to deprecated.
var statusChain = []catalog.Status{
	catalog.StatusDraft,
	catalog.StatusReview,
	catalog.StatusApproved,
	catalog.StatusPublished,
	catalog.StatusDeprecated,
}

func chainIndex(s catalog.Status) int {
	for i, st := range statusChain {
		if st == s {
			return i
		}
	}
	return -1
}

func runPublish(opts *PublishOptions, version catalog.VersionID, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	target := catalog.Status(opts.To)
	targetIdx := chainIndex(target)
	if targetIdx < 0 {
		msg := fmt.Sprintf("invalid --to %q: must be one of %v", opts.To, statusChain)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	sess, err := openSession(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	current, err := sess.catalog.VersionStatus(ctx, version)
	if err != nil {
		return reportDomainError(formatter, err)
	}
	currentIdx := chainIndex(current)

	if currentIdx >= targetIdx {
		msg := fmt.Sprintf("version %s is already %s", version, current)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	for i := currentIdx + 1; i <= targetIdx; i++ {
		next := statusChain[i]
		formatter.VerboseLog("Transitioning %s: %s -> %s", version, statusChain[i-1], next)
		if err := sess.catalog.SetStatus(ctx, version, next); err != nil {
			return reportDomainError(formatter, err)
		}
	}

	sess.audit.Record(audit.Event{
		Kind: audit.EventPublished,
		At:   time.Now(),
		Details: map[string]string{
			"version": string(version),
			"status":  string(target),
		},
	})

	if formatter.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"version": version,
			"status":  target,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is now %s\n", version, target)
	return nil
}
