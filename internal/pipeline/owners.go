package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/store"
)

// owner is the record that lists an output.
type owner struct {
	file string
	key  model.TaskKey
}

// outputOwners maps destination-relative outputs to the input file whose
// record lists them. It is loaded from the store once and kept current by
// the orchestrator; removals made elsewhere (watch unlink, gc command) are
// detected when a conflicting entry is checked against the store.
type outputOwners struct {
	mu     sync.Mutex
	loaded bool
	byPath map[string]owner
}

func newOutputOwners() *outputOwners {
	return &outputOwners{byPath: make(map[string]owner)}
}

// load fills the index from every stored record. A failed load leaves the
// index empty and is retried on the next call.
func (w *outputOwners) load(ctx context.Context, st store.Records, log *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded {
		return
	}
	recs, err := st.GetAll(ctx)
	if err != nil {
		log.Warn("cannot load output owners, checking collisions per file only", "error", err)
		return
	}
	for _, r := range recs {
		w.addLocked(r.InputFile, r.TaskKey, r.OutputFiles)
	}
	w.loaded = true
}

// foreign returns the owner of out when it is another input file. Entries
// whose record no longer exists, or no longer lists out, are forgotten.
func (w *outputOwners) foreign(ctx context.Context, st store.Records, rel, out string) (owner, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.foreignLocked(ctx, st, rel, out)
}

func (w *outputOwners) foreignLocked(ctx context.Context, st store.Records, rel, out string) (owner, bool) {
	own, ok := w.byPath[out]
	if !ok || own.file == rel {
		return owner{}, false
	}
	rec, found, err := st.Get(ctx, own.file, own.key)
	if err == nil && (!found || !rec.OutputFiles.Contains(out)) {
		delete(w.byPath, out)
		return owner{}, false
	}
	return own, true
}

// claim registers outputs for (rel, key) unless one of them, other than
// rel's own destination copy, belongs to another input.
func (w *outputOwners) claim(ctx context.Context, st store.Records, rel string, key model.TaskKey, outputs model.OutputSet) (owner, string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range outputs {
		if out == rel {
			continue
		}
		if own, ok := w.foreignLocked(ctx, st, rel, out); ok {
			return own, out, false
		}
	}
	w.addLocked(rel, key, outputs)
	return owner{}, "", true
}

// release forgets the outputs of a dropped record.
func (w *outputOwners) release(rel string, key model.TaskKey, outputs model.OutputSet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range outputs {
		if own, ok := w.byPath[out]; ok && own == (owner{file: rel, key: key}) {
			delete(w.byPath, out)
		}
	}
}

func (w *outputOwners) addLocked(rel string, key model.TaskKey, outputs model.OutputSet) {
	for _, out := range outputs {
		if out == rel {
			continue
		}
		w.byPath[out] = owner{file: rel, key: key}
	}
}
