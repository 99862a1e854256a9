package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/darkwire-sim/darkwire/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Trace bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against an isolated mission core.

Each scenario loads its mission definitions, drives the core through
its steps on a deterministic clock, and checks its assertions against
the recorded event trace.

Example:
  darkwire run scenarios/cascade.yaml
  darkwire run scenarios/*.yaml --trace`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the full event trace of each scenario")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var results []*harness.Result
	failed := 0

	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			_ = formatter.Error("E001", err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading scenario "+path, err)
		}

		result, err := harness.Run(scenario)
		if err != nil {
			_ = formatter.Error("E001", err.Error(), nil)
			return WrapExitError(ExitCommandError, "running scenario "+scenario.Name, err)
		}
		results = append(results, result)
		if !result.Passed() {
			failed++
		}

		if formatter.Format != "json" {
			fmt.Fprintln(formatter.Writer, harness.Describe(result))
			for _, failure := range result.Failures {
				fmt.Fprintf(formatter.Writer, "  %s\n", failure)
			}
			if opts.Trace {
				for _, te := range result.Trace {
					fmt.Fprintf(formatter.Writer, "  [%d] %s %v\n", te.Seq, te.Event, te.Payload)
				}
			}
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "%d scenario(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}
