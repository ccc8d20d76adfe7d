package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tommy/internal/model"
)

const recordColumns = `input_file, task_key, input_hash, run_at, output_files, algo_version, task_config`

// Get retrieves the record for (inputFile, key).
// Returns found=false, err=nil if no record exists.
func (s *Store) Get(ctx context.Context, inputFile string, key model.TaskKey) (model.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM execution_records_v1
		WHERE input_file = ? AND task_key = ?
	`, inputFile, string(key))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, fmt.Errorf("get record %s/%s: %w", inputFile, key, err)
	}
	return rec, true, nil
}

// GetAllByFile returns every record of one input file.
// Returns an empty slice (not nil) if none exist.
func (s *Store) GetAllByFile(ctx context.Context, inputFile string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM execution_records_v1
		WHERE input_file = ?
		ORDER BY task_key COLLATE BINARY ASC
	`, inputFile)
	if err != nil {
		return nil, fmt.Errorf("query records of %s: %w", inputFile, err)
	}
	return collectRecords(rows)
}

// GetAll returns every stored record.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) GetAll(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM execution_records_v1
		ORDER BY input_file COLLATE BINARY ASC, task_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all records: %w", err)
	}
	return collectRecords(rows)
}

// Upsert replaces the record for rec's key.
// The delete and insert share one transaction, so a reader never observes
// the key missing or duplicated.
func (s *Store) Upsert(ctx context.Context, rec model.Record) error {
	if err := validateRecord(rec); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	outputsJSON, err := marshalOutputs(rec.OutputFiles)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	config := rec.TaskConfig
	if config == "" {
		config = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM execution_records_v1
		WHERE input_file = ? AND task_key = ?
	`, rec.InputFile, string(rec.TaskKey)); err != nil {
		return fmt.Errorf("upsert record: delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO execution_records_v1
		(`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.InputFile,
		string(rec.TaskKey),
		rec.InputHash,
		formatTime(rec.RunAt),
		outputsJSON,
		rec.AlgoVersion,
		config,
	); err != nil {
		return fmt.Errorf("upsert record: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert record: commit: %w", err)
	}
	return nil
}

// Delete removes the record for (inputFile, key). Deleting a missing
// record is not an error.
func (s *Store) Delete(ctx context.Context, inputFile string, key model.TaskKey) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM execution_records_v1
		WHERE input_file = ? AND task_key = ?
	`, inputFile, string(key)); err != nil {
		return fmt.Errorf("delete record %s/%s: %w", inputFile, key, err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one row into a Record.
func scanRecord(row rowScanner) (model.Record, error) {
	var rec model.Record
	var taskKey, runAt, outputsJSON string

	if err := row.Scan(
		&rec.InputFile, &taskKey, &rec.InputHash, &runAt,
		&outputsJSON, &rec.AlgoVersion, &rec.TaskConfig,
	); err != nil {
		return model.Record{}, err
	}

	rec.TaskKey = model.TaskKey(taskKey)

	t, err := parseTime(runAt)
	if err != nil {
		return model.Record{}, err
	}
	rec.RunAt = t

	outputs, err := unmarshalOutputs(outputsJSON)
	if err != nil {
		return model.Record{}, err
	}
	rec.OutputFiles = outputs

	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.Record, error) {
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
