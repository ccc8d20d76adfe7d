package model

import (
	"errors"
	"fmt"
)

// Error represents a pipeline failure with a structured code.
//
// Codes:
//   - PRECONDITION: source/destination roots unusable, the run never starts
//   - TASK: a task implementation failed for one input
//   - OUTPUT_COLLISION: two task keys claim the same output for one input
//   - OVERWRITE: a conversion would overwrite an original source file
//   - STORE: a state store operation failed
//   - REMOTE: remote synchronization failed
//   - CONFIG: the configuration could not be loaded or is invalid
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the affected file, relative or absolute depending on context.
	Path string

	// Task is the task key, if any.
	Task TaskKey

	// Err is the underlying error (optional).
	Err error
}

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	ErrCodePrecondition    ErrorCode = "PRECONDITION"
	ErrCodeTask            ErrorCode = "TASK"
	ErrCodeOutputCollision ErrorCode = "OUTPUT_COLLISION"
	ErrCodeOverwrite       ErrorCode = "OVERWRITE"
	ErrCodeStore           ErrorCode = "STORE"
	ErrCodeRemote          ErrorCode = "REMOTE"
	ErrCodeConfig          ErrorCode = "CONFIG"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Task != "" {
		msg += fmt.Sprintf(" (task=%s)", e.Task)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" <%s>", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err wraps an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsPrecondition reports whether err is a fatal precondition error.
func IsPrecondition(err error) bool {
	return IsCode(err, ErrCodePrecondition)
}

// NewPreconditionError creates an Error for an unusable run setup.
func NewPreconditionError(message string, err error) *Error {
	return &Error{Code: ErrCodePrecondition, Message: message, Err: err}
}

// NewConfigError wraps a configuration failure.
func NewConfigError(err error) *Error {
	return &Error{Code: ErrCodeConfig, Message: "bad configuration", Err: err}
}

// NewTaskError wraps a task failure for one input.
func NewTaskError(key TaskKey, file string, err error) *Error {
	return &Error{Code: ErrCodeTask, Message: "task failed", Task: key, Path: file, Err: err}
}

// NewCollisionError reports an output already claimed by another task.
func NewCollisionError(key, owner TaskKey, output string) *Error {
	return &Error{
		Code:    ErrCodeOutputCollision,
		Message: fmt.Sprintf("output already produced by %s", owner),
		Task:    key,
		Path:    output,
	}
}

// NewForeignCollisionError reports an output already recorded for another
// input file.
func NewForeignCollisionError(key, owner TaskKey, ownerFile, output string) *Error {
	return &Error{
		Code:    ErrCodeOutputCollision,
		Message: fmt.Sprintf("output already produced by %s of <%s>", owner, ownerFile),
		Task:    key,
		Path:    output,
	}
}

// NewOverwriteError reports a conversion that would replace an original file.
func NewOverwriteError(input, original string) *Error {
	return &Error{
		Code:    ErrCodeOverwrite,
		Message: fmt.Sprintf("unable to convert <%s> because original would be overwritten", input),
		Path:    original,
	}
}
