package model

// Version constants for the persisted schema and the tool itself.
const (
	// SchemaVersion suffixes the record namespace (table or bucket name).
	SchemaVersion = "v1"

	// Version is the tommy release.
	Version = "0.3.0"
)
