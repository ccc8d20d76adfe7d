// Package pipeline drives incremental runs: it indexes the source tree,
// selects each file's task list, and for every task decides between reusing
// the stored record and executing the task again.
//
// A task is re-executed when any of its three fingerprint axes changed
// (content hash, algorithm version, settings snapshot), when one of its
// recorded outputs is missing, or when forced. Results are recorded per
// (input file, task key).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tommy/internal/gc"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/remote"
	"github.com/roach88/tommy/internal/store"
	"github.com/roach88/tommy/internal/task"
)

// IDGenerator produces run ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 run ids.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Orchestrator runs task lists against source files.
type Orchestrator struct {
	env       *task.Env
	registry  *task.Registry
	plan      task.Plan
	store     store.Records
	collector *gc.Collector
	syncer    remote.Syncer
	owners    *outputOwners

	logger  *slog.Logger
	now     func() time.Time
	ids     IDGenerator
	workers int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator sets the run id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = g
	}
}

// WithWorkers bounds how many files are processed concurrently. Defaults to
// the configured worker count.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		o.workers = n
	}
}

// WithSyncer enables remote pull before and push after a full run.
func WithSyncer(s remote.Syncer) Option {
	return func(o *Orchestrator) {
		o.syncer = s
	}
}

// New validates the plan against the registry and returns an orchestrator.
func New(env *task.Env, reg *task.Registry, plan task.Plan, st store.Records, opts ...Option) (*Orchestrator, error) {
	if env == nil || env.Config == nil {
		return nil, fmt.Errorf("pipeline: env with config required")
	}
	if reg == nil {
		return nil, fmt.Errorf("pipeline: registry required")
	}
	if st == nil {
		return nil, fmt.Errorf("pipeline: store required")
	}
	if err := plan.Validate(reg); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	o := &Orchestrator{
		env:      env,
		registry: reg,
		plan:     plan,
		store:    st,
		owners:   newOutputOwners(),
		logger:   slog.Default(),
		now:      time.Now,
		ids:      UUIDv7Generator{},
		workers:  env.Config.Workers,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	o.collector = gc.New(env.Roots, st, gc.WithLogger(o.logger))
	return o, nil
}

// Env returns the run environment.
func (o *Orchestrator) Env() *task.Env {
	return o.env
}

// Collector returns the garbage collector bound to the same store.
func (o *Orchestrator) Collector() *gc.Collector {
	return o.collector
}

// Summary describes one run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Files    []string  `json:"files"`
	Executed int       `json:"executed"`
	Cached   int       `json:"cached"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	GC       gc.Report `json:"gc"`
}

func (s *Summary) add(r fileResult) {
	s.Executed += r.executed
	s.Cached += r.cached
	s.Skipped += r.skipped
	s.Failed += r.failed
}

// Run performs a full run: remote pull, index, orphan collection, every
// file's task list, remote push. Remote failures are returned; pipeline
// failures of single tasks are only counted.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if o.syncer != nil {
		if err := o.syncer.Pull(ctx); err != nil {
			return Summary{}, err
		}
	}

	files, err := o.Index(ctx)
	if err != nil {
		return Summary{}, err
	}

	records, err := o.store.GetAll(ctx)
	if err != nil {
		o.logger.Error("failed to load records, skipping orphan collection", "error", err)
		records = nil
	}
	report, err := o.collector.Collect(ctx, files, records)
	if err != nil {
		return Summary{}, err
	}

	summary, err := o.RunFiles(ctx, files)
	summary.GC = report
	if err != nil {
		return summary, err
	}

	if o.syncer != nil {
		if err := o.syncer.Push(ctx); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// RunAll indexes the source tree and runs every file.
func (o *Orchestrator) RunAll(ctx context.Context) (Summary, error) {
	files, err := o.Index(ctx)
	if err != nil {
		return Summary{}, err
	}
	return o.RunFiles(ctx, files)
}

// RunFiles runs the task list of each file. Summary.Files lists the
// attempted files in input order.
func (o *Orchestrator) RunFiles(ctx context.Context, files []string) (Summary, error) {
	summary := Summary{RunID: o.ids.Generate(), Files: []string{}}
	log := o.logger.With("run_id", summary.RunID)
	log.Info("run started", "files", len(files), "workers", o.workers)
	o.owners.load(ctx, o.store, log)

	results, err := forEach(ctx, o.workers, files, func(ctx context.Context, rel string) fileResult {
		return o.runFile(ctx, log, rel)
	})
	for i, r := range results {
		if !r.attempted {
			continue
		}
		summary.Files = append(summary.Files, files[i])
		summary.add(r)
	}

	log.Info("run finished",
		"executed", summary.Executed,
		"cached", summary.Cached,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, err
}
