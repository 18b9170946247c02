package solver

import (
	"errors"
	"fmt"
)

// RunError represents a fatal condition detected during a run.
//
// Every code is terminal: the simulation has no partial-failure mode, so a
// RunError on any rank cancels the group context and aborts the whole run.
//
//   - CONFIG_INVALID: bad startup parameters or non-divisible decomposition
//   - SNAPSHOT_IO: a checkpoint artifact could not be opened or written
//   - COMM_FAILED: a halo transfer failed or arrived out of alignment
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Rank is the rank that detected the condition.
	Rank int

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// RunErrorCode categorizes fatal run errors.
type RunErrorCode string

const (
	// ErrCodeConfig indicates invalid or inconsistent startup parameters.
	ErrCodeConfig RunErrorCode = "CONFIG_INVALID"

	// ErrCodeSnapshotIO indicates a checkpoint artifact write failed.
	ErrCodeSnapshotIO RunErrorCode = "SNAPSHOT_IO"

	// ErrCodeComm indicates a halo exchange failed.
	ErrCodeComm RunErrorCode = "COMM_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (rank %d): %v", e.Code, e.Message, e.Rank, e.Err)
	}
	return fmt.Sprintf("%s: %s (rank %d)", e.Code, e.Message, e.Rank)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *RunError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a CONFIG_INVALID run error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeConfig
}

// IsCommError reports whether err is a COMM_FAILED run error.
func IsCommError(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeComm
}

// IsSnapshotError reports whether err is a SNAPSHOT_IO run error.
func IsSnapshotError(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeSnapshotIO
}

func configError(rank int, err error) *RunError {
	return &RunError{Code: ErrCodeConfig, Rank: rank, Message: "invalid configuration", Err: err}
}

func snapshotError(rank int, err error) *RunError {
	return &RunError{Code: ErrCodeSnapshotIO, Rank: rank, Message: "checkpoint I/O failed", Err: err}
}

func commError(rank int, msg string, err error) *RunError {
	return &RunError{Code: ErrCodeComm, Rank: rank, Message: msg, Err: err}
}
