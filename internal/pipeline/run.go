package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/tommy/internal/fingerprint"
	"github.com/roach88/tommy/internal/gc"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/store"
	"github.com/roach88/tommy/internal/task"
)

type outcome int

const (
	outcomeExecuted outcome = iota
	outcomeCached
	outcomeSkipped
	outcomeFailed
)

type fileResult struct {
	attempted bool
	executed  int
	cached    int
	skipped   int
	failed    int
}

func (r *fileResult) count(o outcome) {
	switch o {
	case outcomeExecuted:
		r.executed++
	case outcomeCached:
		r.cached++
	case outcomeSkipped:
		r.skipped++
	case outcomeFailed:
		r.failed++
	}
}

// taskState is the cache decision for one task of one file.
type taskState struct {
	key     model.TaskKey
	task    task.Task
	enabled bool
	current fingerprint.Key
	prior   model.Record
	found   bool
	stale   bool
	err     error
}

// inPlace reports whether the prior record lists the file's own destination
// copy, i.e. the task rewrote the copy.
func (s *taskState) inPlace(rel string) bool {
	return s.found && s.key != model.KeyCopy && s.prior.OutputFiles.Contains(rel)
}

// RunFile runs the task list of a single file.
func (o *Orchestrator) RunFile(ctx context.Context, rel string) (Summary, error) {
	return o.RunFiles(ctx, []string{rel})
}

func (o *Orchestrator) runFile(ctx context.Context, log *slog.Logger, rel string) fileResult {
	res := fileResult{attempted: true}
	log = log.With("file", rel)
	keys := o.plan.Select(o.registry, rel)

	hash, err := fingerprint.ContentHash(o.env.Roots.SourcePath(rel))
	if err != nil {
		log.Error("cannot fingerprint input", "error", err)
		res.failed = len(keys)
		return res
	}

	records := o.loadRecords(ctx, log, rel)
	o.retire(ctx, log, rel, keys, records)

	states := make([]*taskState, len(keys))
	for i, key := range keys {
		states[i] = o.evaluate(key, hash, records)
	}
	if copyDisabled(states) {
		// Nothing can run without the copy.
		log.Info("copy disabled, removing every output of the file")
		o.dropFile(ctx, log, rel, records)
		res.skipped = len(states)
		return res
	}
	o.refreshCopy(rel, states)

	for i, st := range states {
		if ctx.Err() != nil {
			return res
		}
		out := o.runTask(ctx, log.With("task", st.key), rel, st, records)
		res.count(out)
		if st.key == model.KeyCopy && out == outcomeFailed {
			// Every later task works on the copy.
			res.skipped += len(states) - i - 1
			break
		}
	}
	return res
}

// loadRecords returns the stored records of rel by key. A lookup failure
// counts as "nothing cached".
func (o *Orchestrator) loadRecords(ctx context.Context, log *slog.Logger, rel string) map[model.TaskKey]model.Record {
	out := make(map[model.TaskKey]model.Record)
	recs, err := o.store.GetAllByFile(ctx, rel)
	if err != nil {
		log.Warn("record lookup failed, treating as not cached", "error", err)
		return out
	}
	for _, r := range recs {
		out[r.TaskKey] = r
	}
	return out
}

// retire drops records of tasks that are no longer in the file's list.
func (o *Orchestrator) retire(ctx context.Context, log *slog.Logger, rel string, keys []model.TaskKey, records map[model.TaskKey]model.Record) {
	for key, rec := range records {
		if slices.Contains(keys, key) {
			continue
		}
		log.Info("dropping record of task no longer planned", "task", key)
		o.dropRecord(ctx, log.With("task", key), rel, rec, records)
	}
}

func (o *Orchestrator) evaluate(key model.TaskKey, hash string, records map[model.TaskKey]model.Record) *taskState {
	t, _ := o.registry.Lookup(key)
	settings, enabled := o.env.Config.Task(key)
	st := &taskState{key: key, task: t, enabled: enabled}

	st.prior, st.found = records[key]
	cfg, err := fingerprint.CanonicalConfig(settings)
	if err != nil {
		st.err = fmt.Errorf("settings fingerprint: %w", err)
		return st
	}
	st.current = fingerprint.Key{InputHash: hash, AlgoVersion: o.registry.Version(key), TaskConfig: cfg}
	st.stale = o.env.Force ||
		!st.found ||
		!fingerprint.Matches(st.prior, st.current) ||
		!o.outputsExist(st.prior)
	return st
}

func copyDisabled(states []*taskState) bool {
	for _, st := range states {
		if st.key == model.KeyCopy {
			return !st.enabled
		}
	}
	return false
}

// refreshCopy marks every in-place task stale when the copy is about to be
// rewritten, since re-copying discards their changes. Other staleness stays
// per task.
func (o *Orchestrator) refreshCopy(rel string, states []*taskState) {
	rewrite := false
	for _, st := range states {
		if st.key == model.KeyCopy && st.stale && st.err == nil {
			rewrite = true
		}
	}
	if !rewrite {
		return
	}
	for _, st := range states {
		if st.enabled && st.inPlace(rel) {
			st.stale = true
		}
	}
}

func (o *Orchestrator) outputsExist(rec model.Record) bool {
	for _, rel := range rec.OutputFiles {
		if _, err := os.Stat(o.env.Roots.DestPath(rel)); err != nil {
			return false
		}
	}
	return true
}

func (o *Orchestrator) runTask(ctx context.Context, log *slog.Logger, rel string, st *taskState, records map[model.TaskKey]model.Record) outcome {
	if st.err != nil {
		log.Error("task failed", "error", model.NewTaskError(st.key, rel, st.err))
		return outcomeFailed
	}

	if !st.enabled {
		if st.found {
			log.Info("task disabled, removing previous outputs")
			o.dropRecord(ctx, log, rel, st.prior, records)
		}
		return outcomeSkipped
	}

	if !st.stale {
		log.Debug("cached")
		return outcomeCached
	}

	if own, out, ok := o.convertsOnto(ctx, rel, st.task); ok {
		log.Error("task failed", "error", model.NewForeignCollisionError(st.key, own.key, own.file, out))
		return outcomeFailed
	}

	if st.found {
		log.Debug("re-running", "stale", fingerprint.Stale(st.prior, st.current), "force", o.env.Force)
		o.dropRecord(ctx, log, rel, st.prior, records)
	}

	outs, err := o.execute(ctx, st.task, o.env.Roots.DestPath(rel))
	if err != nil {
		log.Error("task failed", "error", model.NewTaskError(st.key, rel, err))
		return outcomeFailed
	}

	outputs, err := o.relOutputs(outs)
	if err != nil {
		log.Error("task failed", "error", model.NewTaskError(st.key, rel, err))
		return outcomeFailed
	}
	if len(outputs) == 0 {
		log.Debug("task does not apply")
		return outcomeSkipped
	}

	if owner, output, ok := collision(rel, st.key, outputs, records); ok {
		log.Error("task failed", "error", model.NewCollisionError(st.key, owner, output))
		return outcomeFailed
	}
	if own, output, ok := o.owners.claim(ctx, o.store, rel, st.key, outputs); !ok {
		log.Error("task failed", "error", model.NewForeignCollisionError(st.key, own.key, own.file, output))
		return outcomeFailed
	}

	rec := model.Record{
		InputFile:   rel,
		TaskKey:     st.key,
		InputHash:   st.current.InputHash,
		RunAt:       o.now(),
		OutputFiles: outputs,
		AlgoVersion: st.current.AlgoVersion,
		TaskConfig:  st.current.TaskConfig,
	}
	if err := o.store.Upsert(ctx, rec); err != nil {
		log.Error("failed to store record", "error", &model.Error{
			Code: model.ErrCodeStore, Message: "upsert failed", Task: st.key, Path: rel, Err: err,
		})
	}
	records[st.key] = rec
	log.Info("executed", "outputs", len(outputs))
	return outcomeExecuted
}

// execute runs t, converting a panic into an error.
func (o *Orchestrator) execute(ctx context.Context, t task.Task, dst string) (outs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Run(ctx, o.env, dst)
}

// relOutputs converts reported paths to a normalized destination-relative
// set. Relative paths are taken relative to the destination root.
func (o *Orchestrator) relOutputs(outs []string) (model.OutputSet, error) {
	set := make(model.OutputSet, 0, len(outs))
	for _, p := range outs {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(o.env.Roots.Dst, p)
		}
		rel, err := o.env.Roots.DestRel(p)
		if err != nil {
			return nil, fmt.Errorf("output outside destination: %w", err)
		}
		set = append(set, rel)
	}
	return set.Normalize(), nil
}

// collision finds an output, other than the file's destination copy, that a
// different task of the same file already claims.
func collision(rel string, key model.TaskKey, outputs model.OutputSet, records map[model.TaskKey]model.Record) (model.TaskKey, string, bool) {
	owners := make([]model.TaskKey, 0, len(records))
	for k := range records {
		if k != key {
			owners = append(owners, k)
		}
	}
	slices.Sort(owners)

	for _, out := range outputs {
		if out == rel {
			continue
		}
		for _, k := range owners {
			if records[k].OutputFiles.Contains(out) {
				return k, out, true
			}
		}
	}
	return "", "", false
}

// convertsOnto reports whether t is a converter whose sibling output is
// already recorded for another input, e.g. a.png converting onto the a.webp
// of a.jpg. The check runs before executing so the other file's output is
// left untouched.
func (o *Orchestrator) convertsOnto(ctx context.Context, rel string, t task.Task) (owner, string, bool) {
	c, ok := t.(task.Converter)
	if !ok {
		return owner{}, "", false
	}
	out := strings.TrimSuffix(rel, path.Ext(rel)) + "." + c.TargetExt()
	own, ok := o.owners.foreign(ctx, o.store, rel, out)
	return own, out, ok
}

// dropFile removes every record of rel together with all its outputs,
// including the destination copy.
func (o *Orchestrator) dropFile(ctx context.Context, log *slog.Logger, rel string, records map[model.TaskKey]model.Record) {
	keys := make([]model.TaskKey, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		rec := records[k]
		gc.RemoveOutputs(o.env.Roots, rec.OutputFiles, "", log)
		o.deleteRecord(ctx, log.With("task", k), rel, rec, records)
	}
}

// dropRecord removes a prior record with its outputs. The destination copy is
// kept unless the record is the copy task's own.
func (o *Orchestrator) dropRecord(ctx context.Context, log *slog.Logger, rel string, rec model.Record, records map[model.TaskKey]model.Record) {
	keep := rel
	if rec.TaskKey == model.KeyCopy {
		keep = ""
	}
	gc.RemoveOutputs(o.env.Roots, rec.OutputFiles, keep, log)
	o.deleteRecord(ctx, log, rel, rec, records)
}

func (o *Orchestrator) deleteRecord(ctx context.Context, log *slog.Logger, rel string, rec model.Record, records map[model.TaskKey]model.Record) {
	if err := o.store.Delete(ctx, rel, rec.TaskKey); err != nil {
		log.Error("failed to delete record", "error", err)
	}
	o.owners.release(rel, rec.TaskKey, rec.OutputFiles)
	delete(records, rec.TaskKey)
}

// IsIgnored reports whether a base name is excluded from indexing.
func IsIgnored(ignore []string, name string) bool {
	return slices.Contains(ignore, name)
}

// Index returns the sorted relative paths of every regular file under the
// source root, skipping ignored names, store files and the destination
// subtree when it is nested in the source.
func (o *Orchestrator) Index(ctx context.Context) (model.FileSet, error) {
	return Index(ctx, o.env.Roots, o.env.Config.Ignore, o.logger)
}

// Index walks roots.Src. Unreadable entries below the root are logged and
// skipped.
func Index(ctx context.Context, roots model.Roots, ignore []string, log *slog.Logger) (model.FileSet, error) {
	files := model.FileSet{}
	nested := roots.DstInsideSrc()
	err := filepath.WalkDir(roots.Src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == roots.Src {
				return err
			}
			log.Warn("skipping unreadable entry", "path", p, "error", err)
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if p == roots.Src {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if (nested && p == roots.Dst) || IsIgnored(ignore, name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || IsIgnored(ignore, name) || store.IsStoreFile(name) {
			return nil
		}
		rel, rerr := roots.SourceRel(p)
		if rerr != nil {
			return rerr
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("index source tree: %w", err)
	}
	slices.Sort(files)
	return files, nil
}
