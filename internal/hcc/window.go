// Package hcc implements the historical consistency check: an online,
// bounded sliding-window variance estimate classifying each new price
// against a volatility-scaled band around the previous one.
package hcc

import (
	"fmt"

	"github.com/holiman/uint256"

	"oracle-pricefeed/internal/container"
	"oracle-pricefeed/internal/oracle"
)

const (
	// DefaultWindowSize is the number of retained samples per pair.
	DefaultWindowSize = 50
	// DefaultBandWidth is the default k in the prev +/- k*sigma band.
	DefaultBandWidth = 3
)

// Window is the per-pair sliding window. Sum and sum-of-squares are kept
// incrementally so each push is O(1) apart from the sqrt bisection.
type Window struct {
	capacity int
	k        uint64
	sum      uint256.Int
	sumSq    uint256.Int
	ring     *container.Ring[uint256.Int]
	state    oracle.ConsistencyState
}

// NewWindow builds an empty window of the given capacity and band width.
func NewWindow(capacity int, k uint64) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	if k == 0 {
		k = DefaultBandWidth
	}
	return &Window{
		capacity: capacity,
		k:        k,
		ring:     container.NewRing[uint256.Int](capacity),
		state:    oracle.InsufficientHistory,
	}
}

// State returns the classification of the most recent push.
func (w *Window) State() oracle.ConsistencyState {
	return w.state
}

// Clone returns an independent copy, used to stage updates that may be
// discarded if the surrounding verification call aborts.
func (w *Window) Clone() *Window {
	dup := *w
	dup.ring = w.ring.Clone()
	return &dup
}

// Push feeds one accepted value in. While the window is filling it only
// accumulates and reports InsufficientHistory. Once full, the new value is
// admitted tentatively, the variance band is computed from the updated sums
// around the previously admitted value, and an Inconsistent outcome rolls the
// admission back so the outlier never contaminates the history.
func (w *Window) Push(v uint256.Int) (oracle.ConsistencyState, error) {
	var vSq uint256.Int
	if _, overflow := vSq.MulOverflow(&v, &v); overflow {
		return w.state, fmt.Errorf("value square: %w", oracle.ErrVarianceBitWidthExceeded)
	}

	if w.ring.Len() < w.capacity {
		if _, overflow := w.sum.AddOverflow(&w.sum, &v); overflow {
			return w.state, fmt.Errorf("sum accumulate: %w", oracle.ErrVarianceBitWidthExceeded)
		}
		if _, overflow := w.sumSq.AddOverflow(&w.sumSq, &vSq); overflow {
			return w.state, fmt.Errorf("sum of squares accumulate: %w", oracle.ErrVarianceBitWidthExceeded)
		}
		w.ring.Push(v)
		w.state = oracle.InsufficientHistory
		return w.state, nil
	}

	stale, _ := w.ring.PeekOldest()
	prev, _ := w.ring.PeekNewest()

	var staleSq uint256.Int
	staleSq.Mul(&stale, &stale)

	// Tentative sums with stale evicted and v admitted.
	var sum, sumSq uint256.Int
	sum.Sub(&w.sum, &stale)
	if _, overflow := sum.AddOverflow(&sum, &v); overflow {
		return w.state, fmt.Errorf("sum update: %w", oracle.ErrVarianceBitWidthExceeded)
	}
	sumSq.Sub(&w.sumSq, &staleSq)
	if _, overflow := sumSq.AddOverflow(&sumSq, &vSq); overflow {
		return w.state, fmt.Errorf("sum of squares update: %w", oracle.ErrVarianceBitWidthExceeded)
	}

	variance, err := populationVariance(&sum, &sumSq, uint64(w.capacity))
	if err != nil {
		return w.state, err
	}
	sigma := sqrtNearest(&variance)

	lower, upper, err := band(&prev, &sigma, w.k)
	if err != nil {
		return w.state, err
	}

	if v.Cmp(lower) < 0 || v.Cmp(upper) > 0 {
		w.state = oracle.Inconsistent
		return w.state, nil
	}

	w.sum = sum
	w.sumSq = sumSq
	w.ring.Push(v)
	w.state = oracle.Consistent
	return w.state, nil
}

// populationVariance computes round_nearest((n*sumSq - sum^2) / n^2) with the
// two candidate remainders compared and ties rounded up.
func populationVariance(sum, sumSq *uint256.Int, n uint64) (uint256.Int, error) {
	var out uint256.Int

	nInt := uint256.NewInt(n)
	var t1, t2 uint256.Int
	if _, overflow := t1.MulOverflow(nInt, sumSq); overflow {
		return out, fmt.Errorf("n*sum_of_squares: %w", oracle.ErrVarianceBitWidthExceeded)
	}
	if _, overflow := t2.MulOverflow(sum, sum); overflow {
		return out, fmt.Errorf("sum squared: %w", oracle.ErrVarianceBitWidthExceeded)
	}

	// n*sum(v^2) >= (sum v)^2 holds for exact integers (Cauchy-Schwarz).
	var num uint256.Int
	num.Sub(&t1, &t2)

	den := uint256.NewInt(n * n)
	var rem uint256.Int
	out.DivMod(&num, den, &rem)

	var remUp uint256.Int
	remUp.Sub(den, &rem)
	if !rem.IsZero() && rem.Cmp(&remUp) >= 0 {
		out.AddUint64(&out, 1)
	}
	return out, nil
}

func band(prev, sigma *uint256.Int, k uint64) (lower, upper *uint256.Int, err error) {
	var spread uint256.Int
	if _, overflow := spread.MulOverflow(sigma, uint256.NewInt(k)); overflow {
		return nil, nil, fmt.Errorf("band spread: %w", oracle.ErrVarianceBitWidthExceeded)
	}

	lower = new(uint256.Int)
	if spread.Cmp(prev) < 0 {
		lower.Sub(prev, &spread)
	}

	upper = new(uint256.Int)
	if _, overflow := upper.AddOverflow(prev, &spread); overflow {
		return nil, nil, fmt.Errorf("band upper bound: %w", oracle.ErrVarianceBitWidthExceeded)
	}
	return lower, upper, nil
}
