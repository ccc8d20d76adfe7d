package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/pipeline"
	"github.com/roach88/tommy/internal/store"
)

// FSSource watches the source tree recursively with fsnotify.
//
// Only changes after registration are reported; the initial tree is the
// job of a full run.
type FSSource struct {
	roots   model.Roots
	ignore  []string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewFSSource registers every directory under roots.Src, except ignored
// ones and the destination subtree.
func NewFSSource(roots model.Roots, ignore []string, log *slog.Logger) (*FSSource, error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	s := &FSSource{roots: roots, ignore: ignore, watcher: w, logger: log}
	if err := s.addTree(roots.Src, nil); err != nil {
		_ = w.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the watcher.
func (s *FSSource) Close() error {
	return s.watcher.Close()
}

// Run forwards translated events to d until ctx is cancelled. The watcher is
// closed on return.
func (s *FSSource) Run(ctx context.Context, d Dispatcher) error {
	defer s.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.forward(ev, d)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "error", err)
		}
	}
}

func (s *FSSource) forward(ev fsnotify.Event, d Dispatcher) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files moved in with the directory produce no events of their own.
			if err := s.addTree(ev.Name, d); err != nil {
				s.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	out, ok := s.translate(ev)
	if !ok {
		return
	}
	d.Dispatch(out)
}

// translate maps an fsnotify event to a scheduler event. Chmod-only events,
// paths outside the source root, the destination subtree, ignored names and
// store files are dropped.
func (s *FSSource) translate(ev fsnotify.Event) (Event, bool) {
	var op Op
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpUnlink
	case ev.Has(fsnotify.Create):
		op = OpAdd
	case ev.Has(fsnotify.Write):
		op = OpChange
	default:
		return Event{}, false
	}

	rel, ok := s.relevant(ev.Name)
	if !ok {
		return Event{}, false
	}
	return Event{Op: op, Path: rel}, true
}

func (s *FSSource) relevant(path string) (string, bool) {
	if s.insideDst(path) {
		return "", false
	}
	name := filepath.Base(path)
	if pipeline.IsIgnored(s.ignore, name) || store.IsStoreFile(name) {
		return "", false
	}
	rel, err := s.roots.SourceRel(path)
	if err != nil {
		return "", false
	}
	return rel, true
}

func (s *FSSource) insideDst(path string) bool {
	if !s.roots.DstInsideSrc() {
		return false
	}
	if filepath.Clean(path) == s.roots.Dst {
		return true
	}
	_, err := s.roots.DestRel(path)
	return err == nil
}

// addTree watches root and its subdirectories. With a non-nil d, regular
// files found on the way are dispatched as additions.
func (s *FSSource) addTree(root string, d Dispatcher) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}

		if !entry.IsDir() {
			if d != nil && entry.Type().IsRegular() {
				if rel, ok := s.relevant(path); ok {
					d.Dispatch(Event{Op: OpAdd, Path: rel})
				}
			}
			return nil
		}

		if path != s.roots.Src {
			if s.insideDst(path) || pipeline.IsIgnored(s.ignore, entry.Name()) {
				return filepath.SkipDir
			}
		}
		if err := s.watcher.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
