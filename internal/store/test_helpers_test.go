package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tommy/internal/model"
)

// createTestStore creates a new SQLite store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBoltStore creates a new bbolt store in a temp dir for testing.
func createTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bolt")
	s, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with minimal required fields.
func createTestRecord(file string, key model.TaskKey, outputs ...string) model.Record {
	return model.Record{
		InputFile:   file,
		TaskKey:     key,
		InputHash:   "hash-" + file,
		RunAt:       time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC),
		OutputFiles: model.OutputSet(outputs),
		AlgoVersion: "1",
		TaskConfig:  `{"quality":80}`,
	}
}

// backends runs fn against every Records implementation.
func backends(t *testing.T, fn func(t *testing.T, s Records)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("bbolt", func(t *testing.T) { fn(t, createTestBoltStore(t)) })
}
