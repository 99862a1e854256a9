package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/darkwire-sim/darkwire/internal/compiler"
	"github.com/darkwire-sim/darkwire/internal/def"
)

// ValidationIssue is one problem found in a mission definition.
type ValidationIssue struct {
	Mission string `json:"mission,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds the outcome of a validate run.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Missions int               `json:"missions"`
	Issues   []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions-dir>",
		Short: "Validate mission definitions",
		Long: `Validate the CUE mission definitions in a directory.

Compiles every mission and runs the structural checks the engine
applies at registration, without starting anything.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrs := compiler.LoadDir(dir)
	if result == nil {
		msg := "load failed"
		if len(loadErrs) > 0 {
			msg = loadErrs[0].Error()
		}
		_ = formatter.Error("E001", msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	var issues []ValidationIssue
	for _, err := range loadErrs {
		issues = append(issues, issueFromError(err))
	}
	for _, m := range result.Missions {
		formatter.VerboseLog("Validating mission: %s", m.ID)
		def.Normalize(m)
		if err := def.Validate(m); err != nil {
			issues = append(issues, issueFromError(err))
		}
	}

	if len(result.Missions) == 0 && len(issues) == 0 {
		issues = append(issues, ValidationIssue{
			Field:   "definitions",
			Message: "no missions found in " + dir,
		})
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Missions: len(result.Missions)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d mission(s) valid\n", len(result.Missions))
	return nil
}

// issueFromError maps the compiler's and validator's typed errors onto
// the flat issue shape the CLI reports.
func issueFromError(err error) ValidationIssue {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return ValidationIssue{
			Field:   cErr.Field,
			Message: cErr.Message,
			Line:    lineOf(cErr.Pos),
		}
	}
	var vErr *def.ValidationError
	if errors.As(err, &vErr) {
		return ValidationIssue{
			Mission: vErr.MissionID,
			Field:   vErr.Field,
			Message: vErr.Message,
		}
	}
	return ValidationIssue{Message: err.Error()}
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	exit := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))

	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Issues: issues}
		if err := formatter.Error("E002", issues[0].Message, result); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		loc := issue.Field
		if issue.Mission != "" {
			loc = issue.Mission + ": " + loc
		}
		if issue.Line > 0 {
			loc = fmt.Sprintf("%s (line %d)", loc, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", loc, issue.Message)
	}
	return exit
}
