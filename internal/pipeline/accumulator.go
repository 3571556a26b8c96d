package pipeline

import (
	"github.com/tidwall/btree"

	"github.com/textcorpus/posindex/internal/position"
)

// entry is one accumulator slot: a key and its (not yet necessarily
// deduplicated-across-batches) PositionList.
type entry struct {
	key  string
	list *position.PositionList
}

// accumulator is the per-batch Key -> PositionList map the spec requires
// to iterate in ascending key order before spilling (§4.F). Backed by a
// generic in-memory B-tree rather than a Go map plus an explicit sort
// step, so ascending iteration is a structural property of the type.
type Accumulator struct {
	tree *btree.BTreeG[entry]
	mode position.DedupMode
}

func NewAccumulator(mode position.DedupMode) *Accumulator {
	return &Accumulator{
		tree: btree.NewBTreeG(func(a, b entry) bool { return a.key < b.key }),
		mode: mode,
	}
}

// Add folds p into key's list, creating it if this is the first
// occurrence of key within the batch.
func (a *Accumulator) Add(key string, p position.Position) {
	existing, ok := a.tree.Get(entry{key: key})
	if !ok {
		l := position.NewList(p)
		a.tree.Set(entry{key: key, list: l})
		return
	}
	existing.list.Add(p)
}

// Ascend visits every key in ascending order, with its list sorted and
// deduplicated per the accumulator's dedup mode.
func (a *Accumulator) Ascend(fn func(key string, list *position.PositionList) bool) {
	a.tree.Scan(func(e entry) bool {
		e.list.Sort(a.mode)
		return fn(e.key, e.list)
	})
}

// Len returns the number of distinct keys accumulated.
func (a *Accumulator) Len() int { return a.tree.Len() }
