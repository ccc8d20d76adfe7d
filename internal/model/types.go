package model

import (
	"slices"
	"strings"
	"time"
)

// TaskKey identifies a task as "category.operation" (e.g. "processor.resize").
type TaskKey string

// Category returns the part before the dot.
func (k TaskKey) Category() string {
	c, _, _ := strings.Cut(string(k), ".")
	return c
}

// Operation returns the part after the dot.
func (k TaskKey) Operation() string {
	_, op, _ := strings.Cut(string(k), ".")
	return op
}

// Valid reports whether the key has exactly one dot with non-empty halves.
func (k TaskKey) Valid() bool {
	c, op, ok := strings.Cut(string(k), ".")
	return ok && c != "" && op != "" && !strings.Contains(op, ".")
}

func (k TaskKey) String() string {
	return string(k)
}

// OutputSet is the set of destination-relative paths produced by one task
// execution for one input.
type OutputSet []string

// Normalize returns a sorted copy without duplicates or empty entries.
func (o OutputSet) Normalize() OutputSet {
	out := make(OutputSet, 0, len(o))
	for _, p := range o {
		if p != "" {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether path is part of the set.
func (o OutputSet) Contains(path string) bool {
	return slices.Contains(o, path)
}

// Record is the persisted result of one task run against one input file.
// Key: (InputFile, TaskKey).
type Record struct {
	InputFile   string    `json:"input_file"`
	TaskKey     TaskKey   `json:"task_key"`
	InputHash   string    `json:"input_hash"`
	RunAt       time.Time `json:"run_at"`
	OutputFiles OutputSet `json:"output_files"`
	AlgoVersion string    `json:"algo_version"`
	TaskConfig  string    `json:"task_config"`
}

// RecordKey addresses a single record.
type RecordKey struct {
	InputFile string
	TaskKey   TaskKey
}

// Key returns the record's unique key.
func (r Record) Key() RecordKey {
	return RecordKey{InputFile: r.InputFile, TaskKey: r.TaskKey}
}

// FileSet is the sorted list of relative source paths of one index pass.
type FileSet []string

// Contains reports whether rel is indexed. The set must be sorted.
func (f FileSet) Contains(rel string) bool {
	_, ok := slices.BinarySearch(f, rel)
	return ok
}
