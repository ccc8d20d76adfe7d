package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Call is one recorded program invocation.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FakeRunner records invocations instead of starting programs.
//
// By default it emulates a successful tool: the last argument, when it is an
// absolute path that does not exist yet, is created. A printf frame pattern
// (%03d) creates three numbered frames, and woff2_compress creates the
// sibling .woff2 of its input.
type FakeRunner struct {
	// Fail maps program names to the error they return.
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

// Run implements task.Runner.
func (r *FakeRunner) Run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := r.Fail[name]; ok {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	last := args[len(args)-1]
	switch {
	case name == "woff2_compress":
		return touch(strings.TrimSuffix(last, filepath.Ext(last))+".woff2", name)
	case strings.Contains(last, "%03d"):
		for i := 1; i <= 3; i++ {
			if err := touch(fmt.Sprintf(last, i), name); err != nil {
				return err
			}
		}
		return nil
	case filepath.IsAbs(last):
		return touch(last, name)
	}
	return nil
}

// Calls returns the recorded invocations in order.
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Programs returns the program names of the recorded invocations.
func (r *FakeRunner) Programs() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Name
	}
	return out
}

func touch(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content+"\n"), 0o644)
}
