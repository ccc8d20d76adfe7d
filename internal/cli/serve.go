package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tommy/internal/app"
	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/pipeline"
	"github.com/roach88/tommy/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*PipelineOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{PipelineOptions: &PipelineOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Trigger runs over HTTP",
		Long: `Listen for run requests.

POST / with {"src": "...", "dst": "...", "config": {...}, "force": false}
runs the full pipeline for that tree. The optional config object is merged
over --config and the environment. GET /healthz reports liveness.

Example:
  tommy serve --addr :8080
  curl -d '{"src":"./assets","dst":"./public"}' localhost:8080/`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	addPipelineFlags(cmd, opts.PipelineOptions)
	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	layer, err := opts.resolve()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags or environment", err)
	}
	log := opts.Logger()

	srv, err := server.New(server.Options{
		Addr:   opts.Addr,
		Run:    serveRunFunc(opts.PipelineOptions, layer),
		Logger: log,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "cannot start server", err)
	}

	ctx, cancel := signalContext(cmd, log)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Run() }()
	log.Info("listening", "addr", opts.Addr)

	select {
	case err := <-errc:
		if err != nil {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	log.Info("server stopped")
	return nil
}

// serveRunFunc opens a session per request: request roots, --config file,
// then flags/environment, then the request's config object.
func serveRunFunc(opts *PipelineOptions, layer *config.Config) server.RunFunc {
	return func(ctx context.Context, req server.Request) (pipeline.Summary, error) {
		sopts := opts.sessionOptions(layer, req.Config)
		sopts.Src = req.Src
		sopts.Dst = req.Dst
		sopts.Force = req.Force

		s, err := app.Open(sopts)
		if err != nil {
			return pipeline.Summary{}, err
		}
		defer s.Close()
		return s.Orchestrator.Run(ctx)
	}
}
