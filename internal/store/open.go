package store

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by OpenBackend.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bbolt"
)

// OpenBackend opens the named backend. If path is empty the backend's
// default file name under dir is used.
func OpenBackend(backend, dir, path string) (Records, error) {
	switch backend {
	case "", BackendSQLite:
		if path == "" {
			path = filepath.Join(dir, DefaultFilename)
		}
		return Open(path)
	case BackendBolt:
		if path == "" {
			path = filepath.Join(dir, DefaultBoltFilename)
		}
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}

// IsStoreFile reports whether a base name belongs to a store's on-disk files
// (including SQLite's WAL and shared-memory companions).
func IsStoreFile(base string) bool {
	switch base {
	case DefaultFilename, DefaultFilename + "-wal", DefaultFilename + "-shm", DefaultFilename + "-journal", DefaultBoltFilename:
		return true
	}
	return false
}
