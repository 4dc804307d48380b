// Package registry implements the entity registry and task submission
// (§4.2): creating and querying schedulable entities, loading models onto
// them, and submitting tasks — including the insert-into-index and
// slice-recomputation steps new_task triggers on an empty-to-non-empty
// FCFS-queue transition.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/accelschd/pkg/executor"
	"github.com/cuemby/accelschd/pkg/log"
	"github.com/cuemby/accelschd/pkg/metrics"
	"github.com/cuemby/accelschd/pkg/profile"
	"github.com/cuemby/accelschd/pkg/slicealloc"
	"github.com/cuemby/accelschd/pkg/task"
	"github.com/cuemby/accelschd/pkg/types"
	"github.com/cuemby/accelschd/pkg/vtindex"
)

// Registry owns the entity map (sched_entities_lock), the model map
// (model_pool_lock), the virtual-time index, and the task pool. It is the
// single point new_task, create_entity, set_entity_priority, and
// load_model are called through.
type Registry struct {
	entitiesMu sync.RWMutex
	entities   map[types.EntityID]*Entity
	nextEID    atomic.Uint64

	modelsMu sync.RWMutex
	models   map[types.ModelID]*Model
	nextMID  atomic.Uint64

	index  *vtindex.Index
	tasks  *task.Pool
	params slicealloc.Params

	logger zerolog.Logger
}

// New constructs an empty Registry. params tunes the slice allocator
// (§4.4): total quantum, alpha, and refinement granularity.
func New(params slicealloc.Params) *Registry {
	return &Registry{
		entities: make(map[types.EntityID]*Entity),
		models:   make(map[types.ModelID]*Model),
		index:    vtindex.New(),
		tasks:    task.NewPool(),
		params:   params,
		logger:   log.WithComponent("registry"),
	}
}

// Index returns the virtual-time ordered index the scheduler loop reads.
func (r *Registry) Index() *vtindex.Index { return r.index }

// Tasks returns the task pool.
func (r *Registry) Tasks() *task.Pool { return r.tasks }

// CreateEntity allocates a dense EntityID and records weight from the
// priority table. Fails with ErrNotFound if priority is out of [-20, 19].
func (r *Registry) CreateEntity(priority int) (types.EntityID, error) {
	weight, err := types.WeightForPriority(priority)
	if err != nil {
		return 0, err
	}

	eid := types.EntityID(r.nextEID.Add(1))
	e := newEntity(eid, priority, weight)

	r.entitiesMu.Lock()
	r.entities[eid] = e
	r.entitiesMu.Unlock()

	metrics.EntitiesTotal.Inc()
	r.logger.Info().Uint64("entity_id", uint64(eid)).Int("priority", priority).Msg("entity created")
	return eid, nil
}

// GetEntity returns the entity for eid, or ErrNotFound.
func (r *Registry) GetEntity(eid types.EntityID) (*Entity, error) {
	r.entitiesMu.RLock()
	defer r.entitiesMu.RUnlock()
	e, ok := r.entities[eid]
	if !ok {
		return nil, types.ErrNotFound
	}
	return e, nil
}

// SetEntityPriority updates an entity's weight in place. The update need
// not be atomic with scheduling: it takes effect at the next slice
// recomputation, per §4.2.
func (r *Registry) SetEntityPriority(eid types.EntityID, priority int) error {
	weight, err := types.WeightForPriority(priority)
	if err != nil {
		return err
	}
	e, err := r.GetEntity(eid)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.Priority = priority
	e.Weight = weight
	e.mu.Unlock()

	r.logger.Info().Uint64("entity_id", uint64(eid)).Int("priority", priority).Msg("entity priority updated")
	return nil
}

// LoadModel loads the profile at profile_path, builds a ProfiledExecutor
// over it (model_path only names the model in error messages), inserts
// the model into the pool, and updates the owning entity's
// max_power (running max) and avg_power (mean of its models' power).
func (r *Registry) LoadModel(modelPath, profilePath string, eid types.EntityID, freq types.Frequency) (types.ModelID, error) {
	e, err := r.GetEntity(eid)
	if err != nil {
		return 0, err
	}

	prof, err := profile.Load(profilePath)
	if err != nil {
		return 0, err
	}
	powerMW, err := prof.GPUPower(freq)
	if err != nil {
		return 0, fmt.Errorf("%w: model %s has no profiled power at frequency %s", types.ErrFail, modelPath, freq)
	}

	exec := executor.New(prof)
	mid := types.ModelID(r.nextMID.Add(1))
	m := &Model{
		ID:         mid,
		EntityID:   eid,
		Freq:       freq,
		NumKernels: exec.NumKernels(),
		MaxPowerMW: prof.MaxGPUPower(),
		PowerMW:    powerMW,
		Executor:   exec,
	}

	r.modelsMu.Lock()
	r.models[mid] = m
	r.modelsMu.Unlock()

	e.mu.Lock()
	if m.MaxPowerMW > e.MaxPowerMW {
		e.MaxPowerMW = m.MaxPowerMW
	}
	e.modelPowers = append(e.modelPowers, m.PowerMW)
	e.AvgPowerMW = average(e.modelPowers)
	e.mu.Unlock()

	metrics.ModelsTotal.Inc()
	r.logger.Info().
		Uint64("entity_id", uint64(eid)).
		Uint64("model_id", uint64(mid)).
		Str("frequency", string(freq)).
		Int("num_kernels", m.NumKernels).
		Msg("model loaded")
	return mid, nil
}

func average(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// GetModel returns the model for mid, or ErrNotFound.
func (r *Registry) GetModel(mid types.ModelID) (*Model, error) {
	r.modelsMu.RLock()
	defer r.modelsMu.RUnlock()
	m, ok := r.models[mid]
	if !ok {
		return nil, types.ErrNotFound
	}
	return m, nil
}

// NewTask implements new_task (§4.2): allocate a task, push it onto its
// entity's FCFS queue, and — on an empty-to-non-empty transition — seed
// the entity's vruntime to the index's current minimum (or 0), insert it
// into the index, and recompute every indexed entity's slice.
//
// Lock order is entity.lock then rb_tree_lock throughout, resolving the
// spec's left-open choice between the two valid orders (§5).
func (r *Registry) NewTask(mid types.ModelID) (*task.Task, error) {
	m, err := r.GetModel(mid)
	if err != nil {
		return nil, err
	}
	e, err := r.GetEntity(m.EntityID)
	if err != nil {
		return nil, err
	}

	t := r.tasks.New(mid, m.EntityID)

	e.mu.Lock()
	wasEmpty := len(e.queue) == 0
	e.queue = append(e.queue, t)
	var seededVRuntime float64
	if wasEmpty {
		_, minVRuntime, ok := r.index.Min()
		if !ok {
			minVRuntime = 0
		}
		e.VRuntime = minVRuntime
		seededVRuntime = minVRuntime
	}
	e.mu.Unlock()

	metrics.TasksSubmitted.Inc()
	if wasEmpty {
		r.index.Insert(m.EntityID, seededVRuntime)
		r.recomputeSlices()
	}

	r.logger.Debug().
		Uint64("task_id", uint64(t.ID)).
		Uint64("entity_id", uint64(m.EntityID)).
		Uint64("model_id", uint64(mid)).
		Msg("task submitted")
	return t, nil
}

// OnQueueDrained must be called by the scheduler loop after popping the
// last task from an entity's queue: it erases the entity from the index
// and recomputes slices over the reduced runnable set (§4.5 step 5).
func (r *Registry) OnQueueDrained(eid types.EntityID) {
	r.index.Erase(eid)
	r.recomputeSlices()
}

// recomputeSlices re-runs the slice allocator (§4.4) over every currently
// indexed entity and writes the results back, per entity, under that
// entity's lock. Called whenever the indexed set changes.
func (r *Registry) recomputeSlices() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SliceAllocationDuration)

	eids := r.index.Entities()
	inputs := make([]slicealloc.Input, 0, len(eids))
	var totalWeight uint64
	for _, eid := range eids {
		e, err := r.GetEntity(eid)
		if err != nil {
			continue
		}
		snap := e.Snapshot()
		inputs = append(inputs, slicealloc.Input{
			EntityID:   eid,
			Weight:     snap.Weight,
			AvgPowerMW: snap.AvgPowerMW,
		})
		totalWeight += snap.Weight
	}
	r.index.SetTotalWeight(totalWeight)
	metrics.TotalWeight.Set(float64(totalWeight))
	metrics.IndexedEntities.Set(float64(len(eids)))

	slices := slicealloc.Allocate(inputs, r.params)
	for eid, slice := range slices {
		e, err := r.GetEntity(eid)
		if err != nil {
			continue
		}
		e.mu.Lock()
		e.SchedSlice = slice
		e.mu.Unlock()
	}
}

// IndexEntityAndSetVRuntime is a small helper used by the scheduler loop
// at the end of a quantum (§4.5 step 5), reinserting an entity whose
// queue is still non-empty after advancing its vruntime.
func (r *Registry) IndexEntityAndSetVRuntime(eid types.EntityID, vruntime float64) {
	e, err := r.GetEntity(eid)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.VRuntime = vruntime
	e.mu.Unlock()
	r.index.Insert(eid, vruntime)
	r.recomputeSlices()
}

// AccumulateRuntime adds elapsed wall-clock time to an entity's cumulative
// runtime counter (§4.5 step 6).
func (r *Registry) AccumulateRuntime(eid types.EntityID, elapsed time.Duration) {
	e, err := r.GetEntity(eid)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.Runtime += elapsed
	e.mu.Unlock()
}
