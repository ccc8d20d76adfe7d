// Package model provides the shared types of the tommy asset pipeline.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Relative paths are always slash-separated and never start with "/"
//   - A Record exists only for a task that produced output on its last run
//   - Task configuration is stored as canonical JSON text, compared by equality
package model
