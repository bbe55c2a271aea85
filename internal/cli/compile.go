package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Database string // SQLite database path
	DryRun   bool   // validate only, stage nothing
}

// CompilationResult holds the compiled catalog versions.
type CompilationResult struct {
	Clauses   []catalog.ClauseVersion   `json:"clauses"`
	Templates []catalog.TemplateVersion `json:"templates"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ClauseCount   int
	TemplateCount int
	TotalRules    int
	TotalSlots    int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <catalog-dir>",
		Short: "Compile CUE catalog sources into draft versions",
		Long: `Compile CUE clause and template declarations and stage them as
draft versions in the catalog database.

The compiler parses CUE files, validates rule and structure
declarations, and inserts each version in draft status. Use the
publish command to walk a draft through review to published.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (required unless --dry-run)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate sources without staging versions")

	return cmd
}

func runCompile(opts *CompileOptions, catalogDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadCatalog(catalogDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, catalogDir)

	for _, cv := range loadResult.Clauses {
		formatter.VerboseLog("Compiling clause: %s (%s)", cv.BlockID, cv.VersionID)
	}
	for _, tv := range loadResult.Templates {
		formatter.VerboseLog("Compiling template: %s (%s)", tv.BlockID, tv.VersionID)
	}

	// Structural validation on top of the compile pass
	for _, cv := range loadResult.Clauses {
		for _, verr := range compiler.Validate(&cv) {
			loadErrors = append(loadErrors, &LoadError{Code: verr.Code, Message: fmt.Sprintf("clause %s: %s", cv.VersionID, verr.Message)})
		}
	}
	for _, tv := range loadResult.Templates {
		for _, verr := range compiler.Validate(&tv) {
			loadErrors = append(loadErrors, &LoadError{Code: verr.Code, Message: fmt.Sprintf("template %s: %s", tv.VersionID, verr.Message)})
		}
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{
		Clauses:   loadResult.Clauses,
		Templates: loadResult.Templates,
	}
	stats := calculateStats(result)

	// Stage drafts unless --dry-run
	if !opts.DryRun {
		sess, err := openSession(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
			return err
		}
		defer sess.Close()

		ctx := cmd.Context()
		for i := range result.Clauses {
			if err := sess.catalog.AddClause(ctx, &result.Clauses[i]); err != nil {
				return outputCompileError(formatter, ErrCodeStoreFailed,
					fmt.Sprintf("staging clause %s: %v", result.Clauses[i].VersionID, err), nil)
			}
		}
		for i := range result.Templates {
			if err := sess.catalog.AddTemplate(ctx, &result.Templates[i]); err != nil {
				return outputCompileError(formatter, ErrCodeStoreFailed,
					fmt.Sprintf("staging template %s: %v", result.Templates[i].VersionID, err), nil)
			}
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.DryRun)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		ClauseCount:   len(result.Clauses),
		TemplateCount: len(result.Templates),
	}
	for _, cv := range result.Clauses {
		stats.TotalRules += len(cv.Rules)
	}
	for _, tv := range result.Templates {
		stats.TotalSlots += len(tv.Slots())
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, dryRun bool) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	verb := "Staged"
	if dryRun {
		verb = "Validated"
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %d clause version(s), %d template version(s)\n\n",
		verb, stats.ClauseCount, stats.TemplateCount)

	if len(result.Clauses) > 0 {
		fmt.Fprintln(formatter.Writer, "Clauses:")
		for _, cv := range result.Clauses {
			ruleCount := len(cv.Rules)
			ruleSuffix := "rules"
			if ruleCount == 1 {
				ruleSuffix = "rule"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s, %d %s\n",
				cv.BlockID, cv.VersionID, ruleCount, ruleSuffix)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Templates) > 0 {
		fmt.Fprintln(formatter.Writer, "Templates:")
		for _, tv := range result.Templates {
			fmt.Fprintf(formatter.Writer, "  %s: %s, %d slot(s), %d question(s)\n",
				tv.BlockID, tv.VersionID, len(tv.Slots()), len(tv.Questions))
		}
		fmt.Fprintln(formatter.Writer)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
