// Package gc reconciles execution records against the live source tree.
//
// A record whose input file is no longer indexed is an orphan: its outputs
// are deleted from the destination tree, then the record itself. Directories
// emptied by the removals are pruned up to the destination root.
package gc

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/store"
)

// Report counts what a collection removed.
type Report struct {
	Records int `json:"records"`
	Files   int `json:"files"`
}

// Add sums two reports.
func (r Report) Add(o Report) Report {
	return Report{Records: r.Records + o.Records, Files: r.Files + o.Files}
}

// Collector deletes orphaned records and their outputs.
type Collector struct {
	roots  model.Roots
	store  store.Records
	logger *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// New creates a collector over roots and st.
func New(roots model.Roots, st store.Records, opts ...Option) *Collector {
	c := &Collector{roots: roots, store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect removes every record in records whose input is not in files.
// Per-file and per-record failures are logged and skipped; only context
// cancellation aborts.
func (c *Collector) Collect(ctx context.Context, files model.FileSet, records []model.Record) (Report, error) {
	var report Report
	for _, rec := range records {
		if files.Contains(rec.InputFile) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report = report.Add(c.remove(ctx, rec))
	}
	if report.Records > 0 {
		c.logger.Info("collected orphans", "records", report.Records, "files", report.Files)
	}
	return report, nil
}

// CollectPath removes the records of rel, or of every file under rel when it
// names a removed directory.
func (c *Collector) CollectPath(ctx context.Context, rel string) (Report, error) {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	prefix := strings.TrimSuffix(rel, "/") + "/"
	for _, rec := range records {
		if rec.InputFile != rel && !strings.HasPrefix(rec.InputFile, prefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report = report.Add(c.remove(ctx, rec))
	}
	c.logger.Debug("collected path", "file", rel, "records", report.Records, "files", report.Files)
	return report, nil
}

func (c *Collector) remove(ctx context.Context, rec model.Record) Report {
	log := c.logger.With("file", rec.InputFile, "task", rec.TaskKey)
	removed := RemoveOutputs(c.roots, rec.OutputFiles, "", log)
	if err := c.store.Delete(ctx, rec.InputFile, rec.TaskKey); err != nil {
		log.Error("failed to delete record", "error", err)
		return Report{Files: removed}
	}
	log.Debug("orphan removed", "outputs", len(rec.OutputFiles))
	return Report{Records: 1, Files: removed}
}

// RemoveOutputs deletes destination-relative outputs, except keep, and
// prunes directories left empty. Missing files are tolerated, paths leaving
// the destination root are refused, other errors are logged. Returns the
// number of files deleted.
func RemoveOutputs(roots model.Roots, outputs []string, keep string, log *slog.Logger) int {
	removed := 0
	for _, rel := range outputs {
		if rel == "" || rel == keep {
			continue
		}
		abs := roots.DestPath(rel)
		if _, err := roots.DestRel(abs); err != nil {
			log.Warn("refusing to remove output outside destination", "output", rel, "error", err)
			continue
		}
		err := os.Remove(abs)
		switch {
		case err == nil:
			removed++
			pruneEmptyDirs(roots.Dst, filepath.Dir(abs))
		case errors.Is(err, fs.ErrNotExist):
		default:
			log.Error("failed to remove output", "output", rel, "error", err)
		}
	}
	return removed
}

// pruneEmptyDirs removes dir and its parents while they are empty, stopping
// below root.
func pruneEmptyDirs(root, dir string) {
	for {
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
