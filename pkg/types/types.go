// Package types holds the plain data shared across the scheduler core:
// identities, the task lifecycle state machine, and sentinel errors.
package types

import "errors"

// EntityID identifies a schedulable tenant. Dense and process-local.
type EntityID uint64

// ModelID identifies a compiled DNN bound to exactly one entity.
type ModelID uint64

// TaskID identifies a single inference request against one model.
type TaskID uint64

// Frequency is a governor-reported DVFS operating point, e.g. "1300500000".
type Frequency string

// TaskState is the one-way lifecycle a task moves through.
type TaskState int

const (
	Submitted TaskState = iota
	Started
	Finished
)

func (s TaskState) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Started:
		return "started"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Sentinel errors. Construction-time failures are returned wrapping these;
// hot-path failures are asserted (see pkg/log) rather than returned.
var (
	// ErrNotFound is returned for an unknown id or an out-of-range priority.
	ErrNotFound = errors.New("not found")
	// ErrNoPrivilege is returned when the process cannot write the governor.
	ErrNoPrivilege = errors.New("insufficient privilege")
	// ErrFail is the generic construction/operation failure.
	ErrFail = errors.New("operation failed")
)
