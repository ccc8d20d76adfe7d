package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tommy/internal/model"
)

// marshalOutputs converts an OutputSet to JSON TEXT for storage.
// The set is normalized first so equal sets always serialize identically.
func marshalOutputs(outputs model.OutputSet) (string, error) {
	norm := outputs.Normalize()
	data, err := json.Marshal([]string(norm))
	if err != nil {
		return "", fmt.Errorf("marshal outputs: %w", err)
	}
	return string(data), nil
}

// unmarshalOutputs parses JSON TEXT to an OutputSet.
func unmarshalOutputs(data string) (model.OutputSet, error) {
	if data == "" || data == "[]" {
		return model.OutputSet{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	return model.OutputSet(out), nil
}

// formatTime stores timestamps as UTC RFC 3339 with nanoseconds.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run_at: %w", err)
	}
	return t, nil
}

// validateRecord rejects records that cannot be addressed.
func validateRecord(rec model.Record) error {
	if rec.InputFile == "" {
		return fmt.Errorf("record has empty input_file")
	}
	if !rec.TaskKey.Valid() {
		return fmt.Errorf("record has invalid task_key %q", rec.TaskKey)
	}
	return nil
}
