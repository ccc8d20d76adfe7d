// Package app assembles a pipeline session from roots and configuration:
// it resolves the roots, loads the configuration, opens the record store and
// wires the orchestrator, the collector and the optional remote syncer.
//
// The CLI and the HTTP trigger share it, so both build runs the same way.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/gc"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/pipeline"
	"github.com/roach88/tommy/internal/remote"
	"github.com/roach88/tommy/internal/store"
	"github.com/roach88/tommy/internal/task"
)

// Options describes one session.
type Options struct {
	Src        string
	Dst        string
	ConfigPath string
	// Overrides are merged over the config file, later ones winning.
	Overrides []*config.Config
	Force     bool

	Logger *slog.Logger
	// Runner starts external tools. Defaults to task.ExecRunner.
	Runner task.Runner
	// Now and IDs override the pipeline's clock and run id source.
	Now func() time.Time
	IDs pipeline.IDGenerator
}

// Session is an open pipeline with its store.
type Session struct {
	Env          *task.Env
	Store        store.Records
	Orchestrator *pipeline.Orchestrator
}

// Open validates the roots before anything else, so a PRECONDITION error
// means nothing was read or written. Configuration failures are CONFIG
// errors.
func Open(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	roots, err := model.ResolveRoots(opts.Src, opts.Dst)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(opts.ConfigPath, opts.Overrides...)
	if err != nil {
		return nil, model.NewConfigError(err)
	}

	st, err := OpenStore(cfg.Store, roots.Dst)
	if err != nil {
		return nil, &model.Error{Code: model.ErrCodeStore, Message: "open store", Path: roots.Dst, Err: err}
	}

	runner := opts.Runner
	if runner == nil {
		runner = task.ExecRunner{}
	}
	env := &task.Env{Roots: roots, Config: cfg, Force: opts.Force, Logger: log}

	popts := []pipeline.Option{pipeline.WithLogger(log)}
	if syncer := remote.New(cfg.Remote, roots.Dst, runner, log); syncer != nil {
		popts = append(popts, pipeline.WithSyncer(syncer))
	}
	if opts.Now != nil {
		popts = append(popts, pipeline.WithClock(opts.Now))
	}
	if opts.IDs != nil {
		popts = append(popts, pipeline.WithIDGenerator(opts.IDs))
	}

	orch, err := pipeline.New(env, task.Default(runner), task.DefaultPlan(), st, popts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &Session{Env: env, Store: st, Orchestrator: orch}, nil
}

// OpenStore opens the configured backend. A relative path is taken relative
// to the destination root.
func OpenStore(cfg config.StoreConfig, dst string) (store.Records, error) {
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dst, path)
	}
	return store.OpenBackend(cfg.Backend, dst, path)
}

// Collector returns the session's garbage collector.
func (s *Session) Collector() *gc.Collector {
	return s.Orchestrator.Collector()
}

// Close releases the store.
func (s *Session) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// IsCommandError reports whether err stems from the invocation itself
// (unusable roots or configuration) rather than from running.
func IsCommandError(err error) bool {
	return model.IsPrecondition(err) || model.IsCode(err, model.ErrCodeConfig)
}

// With opens a session, calls fn and closes the session.
func With(opts Options, fn func(*Session) error) error {
	s, err := Open(opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
