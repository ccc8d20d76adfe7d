package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tommy/internal/pipeline"
	"github.com/roach88/tommy/internal/task"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "text" | "json"

	// Runner and IDs override the external tool runner and the run id
	// source (for testing). Nil means the production defaults.
	Runner task.Runner
	IDs    pipeline.IDGenerator

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tommy CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tommy",
		Short: "tommy - incremental asset pipeline",
		Long: `Process a source tree of web assets into a destination tree.

Every file is copied and then run through the tasks for its type (resizing,
optimization, format conversion, test pages). Results are recorded so that
unchanged files are skipped on the next run.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))

	return cmd
}

// newLogger builds the stderr logger: Debug with --verbose, JSON with
// --log-format json.
func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// Logger returns the logger installed by the root command, or slog.Default().
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
