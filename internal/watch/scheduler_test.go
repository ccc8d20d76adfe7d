package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tommy/internal/gc"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/pipeline"
)

// handled is one action taken by the scheduler.
type handled struct {
	Action string
	Path   string
	At     time.Time
}

// fakePipeline records actions. RunFile blocks on gate when it is set.
type fakePipeline struct {
	mu       sync.Mutex
	files    model.FileSet
	indexErr error
	runErr   error
	actions  []handled
	gate     chan struct{}
	started  chan string
}

func (p *fakePipeline) Index(context.Context) (model.FileSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files, p.indexErr
}

func (p *fakePipeline) RunFile(ctx context.Context, rel string) (pipeline.Summary, error) {
	p.record("run", rel)
	if p.started != nil {
		p.started <- rel
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
		}
	}
	return pipeline.Summary{Files: []string{rel}, Executed: 1}, p.runErr
}

func (p *fakePipeline) CollectPath(_ context.Context, rel string) (gc.Report, error) {
	p.record("collect", rel)
	return gc.Report{Records: 1}, nil
}

func (p *fakePipeline) record(action, rel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, handled{Action: action, Path: rel, At: time.Now()})
}

func (p *fakePipeline) Actions() []handled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]handled(nil), p.actions...)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// start runs s until the test ends.
func start(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

func waitActions(t *testing.T, p *fakePipeline, n int) []handled {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.Actions()) >= n }, 2*time.Second, 5*time.Millisecond)
	return p.Actions()
}

func TestScheduler_Actions(t *testing.T) {
	p := &fakePipeline{files: model.FileSet{"a.jpg", "b.txt"}}
	s := New(p, p, WithLogger(quiet()), WithDebounce(time.Millisecond))
	start(t, s)

	s.Dispatch(Event{Op: OpAdd, Path: "a.jpg"})
	s.Dispatch(Event{Op: OpAdd, Path: "ignored.tmp"})
	s.Dispatch(Event{Op: OpChange, Path: "b.txt"})
	s.Dispatch(Event{Op: OpUnlink, Path: "old"})

	got := waitActions(t, p, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"run a.jpg", "run b.txt", "collect old"}, []string{
		got[0].Action + " " + got[0].Path,
		got[1].Action + " " + got[1].Path,
		got[2].Action + " " + got[2].Path,
	}, "files missing from the index are not run")
}

func TestScheduler_DebouncesWhileProcessing(t *testing.T) {
	const debounce = 40 * time.Millisecond
	p := &fakePipeline{
		files:   model.FileSet{"a", "b", "c"},
		gate:    make(chan struct{}),
		started: make(chan string, 3),
	}
	s := New(p, p, WithLogger(quiet()), WithDebounce(debounce))
	start(t, s)

	s.Dispatch(Event{Op: OpChange, Path: "a"})
	require.Equal(t, "a", <-p.started)
	assert.Equal(t, StateProcessing, s.State())

	dispatched := time.Now()
	s.Dispatch(Event{Op: OpChange, Path: "b"})
	s.Dispatch(Event{Op: OpChange, Path: "c"})
	assert.Equal(t, 2, s.Pending())
	close(p.gate)

	got := waitActions(t, p, 3)
	assert.Equal(t, "a", got[0].Path)
	assert.Equal(t, "b", got[1].Path)
	assert.Equal(t, "c", got[2].Path)
	assert.GreaterOrEqual(t, got[1].At.Sub(dispatched), debounce, "busy-time events wait out the debounce")

	require.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestScheduler_DispatchStampsNotBefore(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(nil, nil, WithLogger(quiet()), WithDebounce(time.Second), WithClock(func() time.Time { return now }))

	s.Dispatch(Event{Op: OpAdd, Path: "idle"})
	s.state.Store(int32(StateProcessing))
	s.Dispatch(Event{Op: OpAdd, Path: "busy"})

	first, ok := s.queue.TryDequeue()
	require.True(t, ok)
	assert.True(t, first.NotBefore.IsZero(), "idle events are handled right away")

	second, ok := s.queue.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), second.NotBefore)
}

func TestScheduler_ErrorsDoNotStopTheLoop(t *testing.T) {
	p := &fakePipeline{files: model.FileSet{"a"}, runErr: errors.New("boom")}
	s := New(p, p, WithLogger(quiet()))
	start(t, s)

	s.Dispatch(Event{Op: OpAdd, Path: "a"})
	s.Dispatch(Event{Op: OpChange, Path: "a"})
	waitActions(t, p, 2)

	p.mu.Lock()
	p.indexErr = errors.New("unreadable")
	p.mu.Unlock()
	s.Dispatch(Event{Op: OpAdd, Path: "a"})
	s.Dispatch(Event{Op: OpUnlink, Path: "a"})

	got := waitActions(t, p, 3)
	assert.Equal(t, "collect", got[2].Action, "a failed reindex skips only its own event")
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	p := &fakePipeline{files: model.FileSet{"a"}}
	s := New(p, p, WithLogger(quiet()), WithDebounce(time.Hour))
	s.state.Store(int32(StateProcessing))
	s.Dispatch(Event{Op: OpAdd, Path: "a"})
	s.state.Store(int32(StateIdle))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, p.Actions(), "a pending debounce is abandoned")
	assert.False(t, s.Dispatch(Event{Op: OpAdd, Path: "b"}), "dispatch after Run returns is rejected")
}

func TestOpAndStateStrings(t *testing.T) {
	assert.Equal(t, "add", OpAdd.String())
	assert.Equal(t, "change", OpChange.String())
	assert.Equal(t, "unlink", OpUnlink.String())
	assert.Equal(t, "unknown", Op(0).String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "processing", StateProcessing.String())
}
