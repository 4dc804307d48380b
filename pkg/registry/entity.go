package registry

import (
	"sync"
	"time"

	"github.com/cuemby/accelschd/pkg/task"
	"github.com/cuemby/accelschd/pkg/types"
)

// Entity is a scheduling principal: one client owning one or more models,
// with a weighted fair share of the accelerator. mu is the entity.lock
// named throughout §5, guarding every mutable field below including the
// FCFS queue.
type Entity struct {
	mu sync.Mutex

	ID types.EntityID

	Priority   int
	Weight     uint64
	MaxPowerMW float64
	AvgPowerMW float64

	VRuntime   float64
	SchedSlice time.Duration
	Runtime    time.Duration

	queue       []*task.Task
	modelPowers []float64 // per-model power at its configured frequency, for AvgPowerMW
}

func newEntity(id types.EntityID, priority int, weight uint64) *Entity {
	return &Entity{ID: id, Priority: priority, Weight: weight}
}

// QueueLen returns the number of pending tasks, under entity.lock.
func (e *Entity) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Head returns the first task in the FCFS queue without removing it.
// ok is false if the queue is empty.
func (e *Entity) Head() (*task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	return e.queue[0], true
}

// PopHead removes and returns the first task in the FCFS queue.
func (e *Entity) PopHead() (*task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	t := e.queue[0]
	e.queue = e.queue[1:]
	return t, true
}

// Snapshot is a point-in-time, lock-free view of an entity's scheduling
// state, safe to read concurrently with the scheduler loop.
type Snapshot struct {
	ID         types.EntityID
	Priority   int
	Weight     uint64
	MaxPowerMW float64
	AvgPowerMW float64
	VRuntime   float64
	SchedSlice time.Duration
	Runtime    time.Duration
	QueueLen   int
}

// Snapshot returns a copy of the entity's current fields.
func (e *Entity) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ID:         e.ID,
		Priority:   e.Priority,
		Weight:     e.Weight,
		MaxPowerMW: e.MaxPowerMW,
		AvgPowerMW: e.AvgPowerMW,
		VRuntime:   e.VRuntime,
		SchedSlice: e.SchedSlice,
		Runtime:    e.Runtime,
		QueueLen:   len(e.queue),
	}
}
