// Package store provides durable storage for execution records.
//
// A record is addressed by (input_file, task_key) and carries the
// fingerprint of its last successful run plus the outputs it produced.
//
// # Namespacing
//
// Records live in a namespace suffixed with model.SchemaVersion
// (table execution_records_v1 in SQLite, bucket execution-records-v1 in
// bbolt). Data written under another version is never read, so an
// incompatible store behaves as an empty one.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: writes are serialized, so upsert and delete are
//     atomic per key even when several pipeline workers share the store
//
// All queries return rows ordered by input_file, task_key.
package store
