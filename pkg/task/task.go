// Package task implements the per-task lifecycle (submit -> start ->
// finished), its timestamp and accounting fields, and completion signalling
// for waiting RPC handlers.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/accelschd/pkg/types"
)

// Task is one inference request against one model. State transitions are
// one-way and are guarded by mu; completion is signalled by closing done
// exactly once, the one-shot-channel equivalent of a condition variable.
type Task struct {
	mu sync.Mutex

	ID       types.TaskID
	ModelID  types.ModelID
	EntityID types.EntityID

	state     types.TaskState
	kernelIdx int

	SubmitT time.Time
	StartT  time.Time
	EndT    time.Time

	ServiceTime time.Duration
	EnergyUsedU float64 // microjoules

	done chan struct{}
}

// New creates a Task in state Submitted, stamped with the current time.
func New(id types.TaskID, mid types.ModelID, eid types.EntityID) *Task {
	return &Task{
		ID:       id,
		ModelID:  mid,
		EntityID: eid,
		state:    types.Submitted,
		SubmitT:  time.Now(),
		done:     make(chan struct{}),
	}
}

// State returns the task's current lifecycle state.
func (t *Task) State() types.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// KernelIdx returns the next kernel index to dispatch.
func (t *Task) KernelIdx() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kernelIdx
}

// Start transitions Submitted -> Started exactly once, stamping StartT.
// It is a no-op if the task has already started.
func (t *Task) Start(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.Submitted {
		return
	}
	t.state = types.Started
	t.StartT = now
}

// RecordKernel accounts one dispatched kernel's measured time and energy.
func (t *Task) RecordKernel(serviceTime time.Duration, energyUJ float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kernelIdx++
	t.ServiceTime += serviceTime
	t.EnergyUsedU += energyUJ
}

// Finish transitions Started -> Finished, stamps EndT, and wakes every
// waiter blocked in Wait. Finish must only be called once num_kernels
// kernels have been recorded; callers enforce that invariant.
func (t *Task) Finish(now time.Time) {
	t.mu.Lock()
	if t.state == types.Finished {
		t.mu.Unlock()
		return
	}
	t.state = types.Finished
	t.EndT = now
	done := t.done
	t.mu.Unlock()
	close(done)
}

// Wait blocks until the task reaches Finished or ctx is done, whichever
// comes first. Re-entrant: any number of callers may wait concurrently.
func (t *Task) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	alreadyFinished := t.state == types.Finished
	t.mu.Unlock()
	if alreadyFinished {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a point-in-time copy of the task's accounting fields,
// safe to read concurrently with in-flight dispatch.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:          t.ID,
		ModelID:     t.ModelID,
		EntityID:    t.EntityID,
		State:       t.state,
		KernelIdx:   t.kernelIdx,
		SubmitT:     t.SubmitT,
		StartT:      t.StartT,
		EndT:        t.EndT,
		ServiceTime: t.ServiceTime,
		EnergyUsedU: t.EnergyUsedU,
	}
}

// Snapshot is an immutable view of a Task's fields for reporting.
type Snapshot struct {
	ID          types.TaskID
	ModelID     types.ModelID
	EntityID    types.EntityID
	State       types.TaskState
	KernelIdx   int
	SubmitT     time.Time
	StartT      time.Time
	EndT        time.Time
	ServiceTime time.Duration
	EnergyUsedU float64
}
