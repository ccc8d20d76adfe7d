package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tommy/internal/gc"
)

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove outputs of deleted source files",
		Long: `Delete the records, and their output files, of source files that no
longer exist. A full run does this before processing; gc does only this.

Example:
  tommy gc --src ./assets --dst ./public`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGC(cmd, opts)
		},
	}
	addPipelineFlags(cmd, opts)
	return cmd
}

func runGC(cmd *cobra.Command, opts *PipelineOptions) error {
	s, err := opts.open()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(cmd, opts.Logger())
	defer cancel()

	files, err := s.Orchestrator.Index(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "index failed", err)
	}
	records, err := s.Store.GetAll(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot load records", err)
	}
	report, err := s.Collector().Collect(ctx, files, records)
	if err != nil {
		return WrapExitError(ExitFailure, "gc failed", err)
	}
	return opts.formatter(cmd).Success(gcResult(report))
}

type gcResult gc.Report

func (r gcResult) Text() string {
	return fmt.Sprintf("Removed %d records and %d files\n", r.Records, r.Files)
}
