package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/tommy/internal/model"
)

// DefaultBoltFilename is the bbolt store's file name under the destination root.
const DefaultBoltFilename = ".tommy.bolt"

const boltRecordsBucket = "execution-records-" + model.SchemaVersion

// keySeparator joins input_file and task_key. A NUL byte cannot occur in
// either, and it sorts before every other byte, so all keys of one file are
// contiguous and prefix-scannable.
const keySeparator = "\x00"

// BoltStore keeps execution records in a bbolt bucket, one JSON value per
// (input_file, task_key). bbolt serializes update transactions, which makes
// every write key-atomic.
type BoltStore struct {
	db *bolt.DB
}

var _ Records = (*BoltStore)(nil)

// boltRecord is the stored value; the key fields are kept for inspection.
type boltRecord struct {
	InputFile   string   `json:"input_file"`
	TaskKey     string   `json:"task_key"`
	InputHash   string   `json:"input_hash"`
	RunAt       string   `json:"run_at"`
	OutputFiles []string `json:"output_files"`
	AlgoVersion string   `json:"algo_version"`
	TaskConfig  string   `json:"task_config"`
}

// OpenBolt creates or opens a bbolt database at the given path.
// This function is idempotent.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("store: bolt path required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists([]byte(boltRecordsBucket))
		return berr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boltKey(inputFile string, key model.TaskKey) []byte {
	return []byte(inputFile + keySeparator + string(key))
}

// Get retrieves the record for (inputFile, key).
func (s *BoltStore) Get(ctx context.Context, inputFile string, key model.TaskKey) (model.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, false, err
	}
	var rec model.Record
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltRecordsBucket))
		if b == nil {
			return errors.New("store: bucket missing")
		}
		v := b.Get(boltKey(inputFile, key))
		if v == nil {
			return nil
		}
		r, err := decodeBoltRecord(v)
		if err != nil {
			return err
		}
		rec, found = r, true
		return nil
	})
	if err != nil {
		return model.Record{}, false, fmt.Errorf("get record %s/%s: %w", inputFile, key, err)
	}
	return rec, found, nil
}

// GetAllByFile returns every record of one input file, ordered by task key.
func (s *BoltStore) GetAllByFile(ctx context.Context, inputFile string) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(inputFile + keySeparator)
	records := []model.Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltRecordsBucket))
		if b == nil {
			return errors.New("store: bucket missing")
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			rec, err := decodeBoltRecord(v)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query records of %s: %w", inputFile, err)
	}
	return records, nil
}

// GetAll returns every stored record in key order.
func (s *BoltStore) GetAll(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := []model.Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltRecordsBucket))
		if b == nil {
			return errors.New("store: bucket missing")
		}
		return b.ForEach(func(_, v []byte) error {
			rec, err := decodeBoltRecord(v)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("query all records: %w", err)
	}
	return records, nil
}

// Upsert replaces the record for rec's key in a single update transaction.
func (s *BoltStore) Upsert(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	config := rec.TaskConfig
	if config == "" {
		config = "{}"
	}
	p, err := json.Marshal(boltRecord{
		InputFile:   rec.InputFile,
		TaskKey:     string(rec.TaskKey),
		InputHash:   rec.InputHash,
		RunAt:       formatTime(rec.RunAt),
		OutputFiles: rec.OutputFiles.Normalize(),
		AlgoVersion: rec.AlgoVersion,
		TaskConfig:  config,
	})
	if err != nil {
		return fmt.Errorf("upsert record: marshal: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltRecordsBucket))
		if b == nil {
			return errors.New("store: bucket missing")
		}
		k := boltKey(rec.InputFile, rec.TaskKey)
		if err := b.Delete(k); err != nil {
			return fmt.Errorf("upsert record: delete: %w", err)
		}
		return b.Put(k, p)
	})
}

// Delete removes the record for (inputFile, key).
func (s *BoltStore) Delete(ctx context.Context, inputFile string, key model.TaskKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltRecordsBucket))
		if b == nil {
			return errors.New("store: bucket missing")
		}
		if err := b.Delete(boltKey(inputFile, key)); err != nil {
			return fmt.Errorf("delete record %s/%s: %w", inputFile, key, err)
		}
		return nil
	})
}

func decodeBoltRecord(v []byte) (model.Record, error) {
	var br boltRecord
	if err := json.Unmarshal(v, &br); err != nil {
		return model.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	t, err := parseTime(br.RunAt)
	if err != nil {
		return model.Record{}, err
	}
	outputs := model.OutputSet(br.OutputFiles)
	if outputs == nil {
		outputs = model.OutputSet{}
	}
	return model.Record{
		InputFile:   br.InputFile,
		TaskKey:     model.TaskKey(br.TaskKey),
		InputHash:   br.InputHash,
		RunAt:       t,
		OutputFiles: outputs,
		AlgoVersion: br.AlgoVersion,
		TaskConfig:  br.TaskConfig,
	}, nil
}
