// Package slicealloc implements the per-quantum slice allocator (§4.4): a
// weight-proportional baseline followed by an energy-aware refinement pass
// that spends quantum slack where it buys the least energy per unit of
// priority-normalised progress.
package slicealloc

import (
	"container/heap"
	"time"

	"github.com/cuemby/accelschd/pkg/types"
)

// Input is one runnable entity's allocator inputs.
type Input struct {
	EntityID   types.EntityID
	Weight     uint64
	AvgPowerMW float64 // average power, milliwatts, of the entity's loaded models
}

// Params tunes the allocator.
type Params struct {
	TotalQuantum time.Duration // Q
	Alpha        float64       // alpha in (0, 1]
	Granularity  time.Duration // G, the refinement step size
}

// Allocate computes sched_slice for every entity in inputs. The result map
// always sums to Params.TotalQuantum (within one Granularity step of
// rounding), satisfying invariant 5. Empty input, or input whose weights
// sum to zero, returns an empty map.
func Allocate(inputs []Input, p Params) map[types.EntityID]time.Duration {
	slices := make(map[types.EntityID]time.Duration, len(inputs))
	if len(inputs) == 0 {
		return slices
	}

	var totalWeight uint64
	for _, in := range inputs {
		totalWeight += in.Weight
	}
	if totalWeight == 0 {
		return slices
	}

	// Step 1 — baseline: proportional share of alpha*Q.
	baselineTotal := time.Duration(float64(p.TotalQuantum) * p.Alpha)
	for _, in := range inputs {
		share := float64(in.Weight) / float64(totalWeight)
		slices[in.EntityID] = time.Duration(share * float64(baselineTotal))
	}

	// Step 2 — energy-aware refinement: spend the remaining slack where it
	// buys the least energy per unit of priority-normalised allocation.
	remaining := p.TotalQuantum
	for _, s := range slices {
		remaining -= s
	}
	if remaining <= 0 {
		return slices
	}

	byID := make(map[types.EntityID]Input, len(inputs))
	for _, in := range inputs {
		byID[in.EntityID] = in
	}

	pq := make(energyHeap, 0, len(inputs))
	for _, in := range inputs {
		pq = append(pq, &energyItem{
			entityID: in.EntityID,
			energy:   projectedEnergy(in, slices[in.EntityID]),
		})
	}
	heap.Init(&pq)

	granularity := p.Granularity
	if granularity <= 0 {
		granularity = time.Millisecond
	}

	for remaining > 0 && pq.Len() > 0 {
		item := heap.Pop(&pq).(*energyItem)
		step := granularity
		if step > remaining {
			step = remaining
		}
		slices[item.entityID] += step
		remaining -= step

		in := byID[item.entityID]
		item.energy = projectedEnergy(in, slices[item.entityID])
		heap.Push(&pq, item)
	}

	return slices
}

// projectedEnergy computes energy_e = p_e * 1e-3 * slice_e * (w_0 / w_e),
// the spec's §4.4 step-2 metric, in microjoules (power in mW, slice in
// microseconds).
func projectedEnergy(in Input, slice time.Duration) float64 {
	if in.Weight == 0 {
		return 0
	}
	sliceUS := float64(slice.Microseconds())
	ratio := float64(types.ReferenceWeight) / float64(in.Weight)
	return in.AvgPowerMW * 1e-3 * sliceUS * ratio
}

type energyItem struct {
	entityID types.EntityID
	energy   float64
	index    int
}

type energyHeap []*energyItem

func (h energyHeap) Len() int            { return len(h) }
func (h energyHeap) Less(i, j int) bool  { return h[i].energy < h[j].energy }
func (h energyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *energyHeap) Push(x interface{}) {
	item := x.(*energyItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *energyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
