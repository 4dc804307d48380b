package task

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/accelschd/pkg/types"
)

// Pool is the task_pool_lock-guarded map of every task this process has
// ever submitted. Finished tasks are retained for post-run reporting until
// shutdown, per spec.
type Pool struct {
	mu     sync.RWMutex
	tasks  map[types.TaskID]*Task
	nextID atomic.Uint64
}

// NewPool creates an empty task pool.
func NewPool() *Pool {
	return &Pool{tasks: make(map[types.TaskID]*Task)}
}

// New allocates a fresh TaskID, builds the Task, and registers it in the
// pool. Mirrors new_task steps 1-2 and 4; the caller is responsible for
// step 3 (FCFS queue insertion), since that crosses into the entity
// registry which the task package does not depend on.
func (p *Pool) New(mid types.ModelID, eid types.EntityID) *Task {
	id := types.TaskID(p.nextID.Add(1))
	t := New(id, mid, eid)

	p.mu.Lock()
	p.tasks[id] = t
	p.mu.Unlock()
	return t
}

// Get returns the task for id, or ErrNotFound.
func (p *Pool) Get(id types.TaskID) (*Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.tasks[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return t, nil
}

// Finished returns a snapshot of every task currently in state Finished.
func (p *Pool) Finished() []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Snapshot, 0, len(p.tasks))
	for _, t := range p.tasks {
		snap := t.Snapshot()
		if snap.State == types.Finished {
			out = append(out, snap)
		}
	}
	return out
}

// Len returns the number of tasks ever submitted.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tasks)
}
