// Package fingerprint computes the cache key of a (file, task) pair.
//
// A cached result is reused only when all three axes agree:
//   - InputHash: SHA-256 of the source bytes with domain separation
//   - AlgoVersion: the task author's version tag
//   - TaskConfig: canonical JSON of the task's settings snapshot
//
// Canonical JSON here follows RFC 8785 ordering rules: object keys sorted by
// UTF-16 code units, NFC-normalized strings, no HTML escaping, integers only.
package fingerprint
