// Package vtindex implements the virtual-time ordered multiset (§4.3): an
// ordered set of (vruntime, entity) pairs supporting O(log n) insert,
// erase, and access to the minimum-vruntime entity. An entity is a
// member iff its FCFS queue is non-empty; ties on vruntime are broken by
// insertion sequence, since the scheduler does not rely on FIFO among tied
// entities.
package vtindex

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/cuemby/accelschd/pkg/types"
)

const btreeDegree = 32

// entry is the btree.Item stored per indexed entity.
type entry struct {
	vruntime float64
	seq      uint64
	eid      types.EntityID
}

func (e *entry) Less(than btree.Item) bool {
	o := than.(*entry)
	if e.vruntime != o.vruntime {
		return e.vruntime < o.vruntime
	}
	return e.seq < o.seq
}

// Index is the rb_tree_lock-guarded ordered index plus the total_weight
// accumulator that lock also protects.
type Index struct {
	mu    sync.Mutex
	tree  *btree.BTree
	byEID map[types.EntityID]*entry
	seq   atomic.Uint64

	totalWeight uint64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		tree:  btree.New(btreeDegree),
		byEID: make(map[types.EntityID]*entry),
	}
}

// Insert adds eid at vruntime. Inserting an entity already present
// replaces its stale entry, so an entity appears at most once; the
// scheduler's end-of-quantum reinsert relies on this.
func (idx *Index) Insert(eid types.EntityID, vruntime float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.insertLocked(eid, vruntime)
}

func (idx *Index) insertLocked(eid types.EntityID, vruntime float64) {
	if old, ok := idx.byEID[eid]; ok {
		idx.tree.Delete(old)
	}
	e := &entry{vruntime: vruntime, seq: idx.seq.Add(1), eid: eid}
	idx.tree.ReplaceOrInsert(e)
	idx.byEID[eid] = e
}

// Erase removes eid from the index. A no-op if eid is not present.
func (idx *Index) Erase(eid types.EntityID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.eraseLocked(eid)
}

func (idx *Index) eraseLocked(eid types.EntityID) {
	e, ok := idx.byEID[eid]
	if !ok {
		return
	}
	idx.tree.Delete(e)
	delete(idx.byEID, eid)
}

// Min returns the entity with the smallest vruntime. ok is false iff the
// index is empty.
func (idx *Index) Min() (eid types.EntityID, vruntime float64, ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	item := idx.tree.Min()
	if item == nil {
		return 0, 0, false
	}
	e := item.(*entry)
	return e.eid, e.vruntime, true
}

// Contains reports whether eid is currently indexed.
func (idx *Index) Contains(eid types.EntityID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.byEID[eid]
	return ok
}

// Len returns the number of indexed entities.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.Len()
}

// Entities returns the ids of every indexed entity, in no particular order.
func (idx *Index) Entities() []types.EntityID {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]types.EntityID, 0, len(idx.byEID))
	for eid := range idx.byEID {
		out = append(out, eid)
	}
	return out
}

// TotalWeight returns the sum of weights last recorded via SetTotalWeight.
// Kept under the same lock as the tree per spec invariant 4 and §5's lock
// list, which name rb_tree_lock as the guard for both.
func (idx *Index) TotalWeight() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.totalWeight
}

// SetTotalWeight records the sum of weights of the currently indexed
// entities. Callers recompute and set this every time the indexed set
// changes; it takes the lock on its own, separately from Insert/Erase.
func (idx *Index) SetTotalWeight(w uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.totalWeight = w
}

