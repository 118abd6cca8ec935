package hcc

import (
	"oracle-pricefeed/internal/container"
	"oracle-pricefeed/internal/oracle"
)

// Checker owns one window per opted-in pair, created lazily on the first
// accepted update. Pairs not on the opt-in list are never tracked.
type Checker struct {
	capacity int
	k        uint64
	flagged  *container.IndexedMap[uint32, struct{}]
	windows  *container.IndexedMap[uint32, *Window]
}

// NewChecker builds a checker for the given opted-in pairs.
func NewChecker(capacity int, k uint64, pairs []uint32) *Checker {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	if k == 0 {
		k = DefaultBandWidth
	}
	flagged := container.NewIndexedMap[uint32, struct{}]()
	for _, p := range pairs {
		flagged.Put(p, struct{}{})
	}
	return &Checker{
		capacity: capacity,
		k:        k,
		flagged:  flagged,
		windows:  container.NewIndexedMap[uint32, *Window](),
	}
}

// Tracked reports whether pair is opted in to consistency checking.
func (c *Checker) Tracked(pairID uint32) bool {
	_, ok := c.flagged.Get(pairID)
	return ok
}

// WindowClone returns an independent copy of the pair's window (or a fresh
// one) for staged updates. The clone takes effect only through Install.
func (c *Checker) WindowClone(pairID uint32) *Window {
	if w, ok := c.windows.Get(pairID); ok {
		return w.Clone()
	}
	return NewWindow(c.capacity, c.k)
}

// Install commits a staged window for a pair.
func (c *Checker) Install(pairID uint32, w *Window) {
	c.windows.Put(pairID, w)
}

// StateOf returns the pair's classification and whether it is tracked.
func (c *Checker) StateOf(pairID uint32) (oracle.ConsistencyState, bool) {
	if !c.Tracked(pairID) {
		return oracle.InsufficientHistory, false
	}
	w, ok := c.windows.Get(pairID)
	if !ok {
		return oracle.InsufficientHistory, true
	}
	return w.State(), true
}

// States returns classifications for the requested pairs, omitting pairs that
// are not opted in.
func (c *Checker) States(pairIDs []uint32) []oracle.PairState {
	out := make([]oracle.PairState, 0, len(pairIDs))
	for _, id := range pairIDs {
		if state, tracked := c.StateOf(id); tracked {
			out = append(out, oracle.PairState{PairID: id, State: state})
		}
	}
	return out
}
