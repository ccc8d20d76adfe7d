// Package watch turns filesystem notifications into incremental pipeline
// actions.
//
// A single worker drains events strictly in arrival order. Events that
// arrive while the worker is busy are held back until the debounce delay
// has passed, so bursts of writes from an editor or a copy settle first.
package watch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/tommy/internal/gc"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/pipeline"
)

// Op is the kind of a filesystem change.
type Op int

const (
	OpAdd Op = iota + 1
	OpChange
	OpUnlink
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	}
	return "unknown"
}

// Event is a change of one source-relative, slash-separated path.
type Event struct {
	Op   Op
	Path string
}

// State of the scheduler's worker.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "processing"
	}
	return "idle"
}

// Pipeline is the part of the orchestrator the scheduler drives.
type Pipeline interface {
	Index(ctx context.Context) (model.FileSet, error)
	RunFile(ctx context.Context, rel string) (pipeline.Summary, error)
}

// Collector removes the records of deleted inputs.
type Collector interface {
	CollectPath(ctx context.Context, rel string) (gc.Report, error)
}

// Dispatcher accepts events. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ev Event) bool
}

// Scheduler serializes watch events into pipeline actions.
type Scheduler struct {
	pipeline  Pipeline
	collector Collector
	queue     *eventQueue
	state     atomic.Int32
	debounce  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var _ Dispatcher = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the delay applied to events arriving while busy.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		s.debounce = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithClock sets the time source used to stamp not-before times.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 500 * time.Millisecond

// New creates an idle scheduler.
func New(p Pipeline, c Collector, opts ...Option) *Scheduler {
	s := &Scheduler{
		pipeline:  p,
		collector: c,
		queue:     newEventQueue(),
		debounce:  DefaultDebounce,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports whether the worker is handling an event.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Dispatch queues ev. It returns false once Run has returned.
func (s *Scheduler) Dispatch(ev Event) bool {
	p := pending{Event: ev}
	if s.State() == StateProcessing {
		p.NotBefore = s.now().Add(s.debounce)
	}
	ok := s.queue.Enqueue(p)
	if ok {
		s.logger.Debug("event queued", "op", ev.Op, "file", ev.Path, "not_before", p.NotBefore)
	}
	return ok
}

// Run handles events until ctx is cancelled. A scheduler runs once.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.queue.Close()

	for {
		p, ok := s.queue.TryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-s.queue.Wait():
				continue
			}
		}

		if wait := p.NotBefore.Sub(s.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		s.state.Store(int32(StateProcessing))
		s.handle(ctx, p.Event)
		s.state.Store(int32(StateIdle))
	}
}

func (s *Scheduler) handle(ctx context.Context, ev Event) {
	log := s.logger.With("op", ev.Op, "file", ev.Path)

	switch ev.Op {
	case OpAdd, OpChange:
		files, err := s.pipeline.Index(ctx)
		if err != nil {
			log.Error("reindex failed", "error", err)
			return
		}
		if !files.Contains(ev.Path) {
			log.Debug("not an indexed file")
			return
		}
		summary, err := s.pipeline.RunFile(ctx, ev.Path)
		if err != nil {
			log.Error("run failed", "error", err)
			return
		}
		log.Info("processed",
			"executed", summary.Executed,
			"cached", summary.Cached,
			"failed", summary.Failed,
		)

	case OpUnlink:
		report, err := s.collector.CollectPath(ctx, ev.Path)
		if err != nil {
			log.Error("cleanup failed", "error", err)
			return
		}
		log.Info("removed", "records", report.Records, "outputs", report.Files)

	default:
		log.Warn("unknown event")
	}
}
