package fingerprint

import "github.com/roach88/tommy/internal/model"

// Key is the triple that must match for a cached result to be reused.
type Key struct {
	InputHash   string
	AlgoVersion string
	TaskConfig  string
}

// keyOf extracts the cache key stored on a record.
func keyOf(rec model.Record) Key {
	return Key{
		InputHash:   rec.InputHash,
		AlgoVersion: rec.AlgoVersion,
		TaskConfig:  rec.TaskConfig,
	}
}

// Matches is the sole staleness predicate: content hash, algorithm version
// and canonical configuration must all be equal.
func Matches(rec model.Record, current Key) bool {
	return keyOf(rec) == current
}

// Stale lists which axes differ, for diagnostics. Empty means fresh.
func Stale(rec model.Record, current Key) []string {
	var axes []string
	if rec.InputHash != current.InputHash {
		axes = append(axes, "content")
	}
	if rec.AlgoVersion != current.AlgoVersion {
		axes = append(axes, "version")
	}
	if rec.TaskConfig != current.TaskConfig {
		axes = append(axes, "config")
	}
	return axes
}
