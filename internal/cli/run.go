package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/tommy/internal/app"
	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/pipeline"
	"github.com/roach88/tommy/internal/watch"
)

// PipelineOptions holds the flags shared by commands that open a session.
type PipelineOptions struct {
	*RootOptions
	Src        string
	Dst        string
	ConfigPath string
	Force      bool
	Watch      bool

	v *viper.Viper
}

// addPipelineFlags registers --src, --dst, --config and the config override
// flags, and binds them together with their TOMMY_* variables.
func addPipelineFlags(cmd *cobra.Command, opts *PipelineOptions) {
	opts.v = viper.New()
	f := cmd.Flags()
	f.StringVar(&opts.Src, "src", "", "source directory (env TOMMY_SRC)")
	f.StringVar(&opts.Dst, "dst", "", "destination directory (env TOMMY_DST)")
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml, .json or .cue; env TOMMY_CONFIG)")
	f.Int("workers", 0, "files processed concurrently")
	f.String("store-backend", "", "record store backend (sqlite|bbolt)")
	f.String("store-path", "", "record store file, relative to the destination")

	_ = opts.v.BindPFlag("src", f.Lookup("src"))
	_ = opts.v.BindPFlag("dst", f.Lookup("dst"))
	_ = opts.v.BindPFlag("config", f.Lookup("config"))
	_ = opts.v.BindPFlag("workers", f.Lookup("workers"))
	_ = opts.v.BindPFlag("store.backend", f.Lookup("store-backend"))
	_ = opts.v.BindPFlag("store.path", f.Lookup("store-path"))
}

// resolve fills Src, Dst and ConfigPath from flags or environment and
// returns the override layer from flags and environment.
func (o *PipelineOptions) resolve() (*config.Config, error) {
	if err := config.BindEnv(o.v); err != nil {
		return nil, err
	}
	for _, key := range []string{"src", "dst", "config"} {
		if err := o.v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	o.Src = o.v.GetString("src")
	o.Dst = o.v.GetString("dst")
	o.ConfigPath = o.v.GetString("config")
	return config.FromViper(o.v)
}

func (o *PipelineOptions) sessionOptions(overrides ...*config.Config) app.Options {
	return app.Options{
		Src:        o.Src,
		Dst:        o.Dst,
		ConfigPath: o.ConfigPath,
		Overrides:  overrides,
		Force:      o.Force,
		Logger:     o.Logger(),
		Runner:     o.Runner,
		IDs:        o.IDs,
	}
}

// open resolves flags and opens a session, mapping failures to exit codes.
func (o *PipelineOptions) open() (*app.Session, error) {
	layer, err := o.resolve()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid flags or environment", err)
	}
	s, err := app.Open(o.sessionOptions(layer))
	if err != nil {
		return nil, sessionError(err)
	}
	return s, nil
}

func sessionError(err error) error {
	if app.IsCommandError(err) {
		return WrapExitError(ExitCommandError, "cannot start", err)
	}
	return WrapExitError(ExitFailure, "cannot start", err)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the source tree once",
		Long: `Run every file of the source tree through its task list.

Tasks whose input, algorithm version and settings are unchanged since the
last run are skipped. Records of deleted source files are removed together
with their outputs before processing starts.

Example:
  tommy run --src ./assets --dst ./public
  tommy run --src ./assets --dst ./public --config tommy.yaml --force
  tommy run --src ./assets --dst ./public --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	addPipelineFlags(cmd, opts)
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "re-run every task, ignoring records")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "keep watching the source tree after the run")

	return cmd
}

// NewWatchCommand creates the watch command, a run followed by watching.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PipelineOptions{RootOptions: rootOpts, Watch: true}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process the source tree, then follow changes",
		Long: `Run once, then process files as they are added, changed or removed.

Events arriving while a file is being processed are delayed by the
configured debounce (watch.debounce_ms, default 500) and handled in order.

Example:
  tommy watch --src ./assets --dst ./public`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	addPipelineFlags(cmd, opts)
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "re-run every task on the initial run")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *PipelineOptions) error {
	s, err := opts.open()
	if err != nil {
		return err
	}
	log := opts.Logger()
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	summary, err := s.Orchestrator.Run(ctx)
	if err != nil {
		if isCancel(err) {
			log.Info("run interrupted")
			return nil
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}
	if err := opts.formatter(cmd).Success(runReport(summary)); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watchSession(ctx, s, log)
}

// watchSession follows changes until ctx ends.
func watchSession(ctx context.Context, s *app.Session, log *slog.Logger) error {
	cfg := s.Env.Config
	src, err := watch.NewFSSource(s.Env.Roots, cfg.Ignore, log)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot watch source tree", err)
	}
	sched := watch.New(s.Orchestrator, s.Collector(),
		watch.WithDebounce(cfg.Watch.Debounce()),
		watch.WithLogger(log),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srcDone := make(chan error, 1)
	go func() {
		srcDone <- src.Run(ctx, sched)
		cancel()
	}()

	log.Info("watching", "src", s.Env.Roots.Src, "debounce", cfg.Watch.Debounce())
	if err := sched.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "watch failed", err)
	}
	if err := <-srcDone; err != nil {
		return WrapExitError(ExitFailure, "watch failed", err)
	}
	log.Info("watch stopped")
	return nil
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, log *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// runResult is the printed outcome of a full run.
type runResult struct {
	RunID    string   `json:"run_id"`
	Files    []string `json:"files"`
	Executed int      `json:"executed"`
	Cached   int      `json:"cached"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Removed  int      `json:"removed_records"`
}

func runReport(s pipeline.Summary) runResult {
	files := s.Files
	if files == nil {
		files = []string{}
	}
	return runResult{
		RunID:    s.RunID,
		Files:    files,
		Executed: s.Executed,
		Cached:   s.Cached,
		Skipped:  s.Skipped,
		Failed:   s.Failed,
		Removed:  s.GC.Records,
	}
}

func (r runResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d files (run %s)\n", len(r.Files), r.RunID)
	fmt.Fprintf(&b, "  executed %d, cached %d, skipped %d, failed %d\n", r.Executed, r.Cached, r.Skipped, r.Failed)
	if r.Removed > 0 {
		fmt.Fprintf(&b, "  removed %d orphaned records\n", r.Removed)
	}
	return b.String()
}
