package hcc

import "github.com/holiman/uint256"

// sqrtNearest returns the integer closest to the square root of v.
//
// A binary search over [0, 2^(ceil(bits/2)+1) - 1] finds the largest s with
// s^2 <= v, then s and s+1 are compared by absolute residual and the closer
// one wins, floor on ties. Downstream classification must match bit for bit
// across implementations, so this exact procedure is kept rather than a
// floating-point sqrt.
func sqrtNearest(v *uint256.Int) uint256.Int {
	var zero uint256.Int
	if v.IsZero() {
		return zero
	}

	half := (v.BitLen() + 1) / 2
	hi := new(uint256.Int).Lsh(uint256.NewInt(1), uint(half+1))
	hi.SubUint64(hi, 1)
	lo := new(uint256.Int)

	var (
		mid uint256.Int
		sq  uint256.Int
		one = uint256.NewInt(1)
	)
	// Invariant: lo^2 <= v, (hi+1)^2 > v once hi stops moving down.
	for lo.Cmp(hi) < 0 {
		// mid = (lo + hi + 1) / 2, biased up so lo always advances.
		mid.Add(lo, hi)
		mid.AddUint64(&mid, 1)
		mid.Rsh(&mid, 1)

		if _, overflow := sq.MulOverflow(&mid, &mid); overflow || sq.Cmp(v) > 0 {
			hi.Sub(&mid, one)
		} else {
			lo.Set(&mid)
		}
	}

	// lo is the floor; check whether (lo+1)^2 sits closer to v.
	var floorSq, below uint256.Int
	floorSq.Mul(lo, lo)
	below.Sub(v, &floorSq)

	var ceil, ceilSq, above uint256.Int
	ceil.AddUint64(lo, 1)
	if _, overflow := ceilSq.MulOverflow(&ceil, &ceil); overflow {
		return *lo
	}
	above.Sub(&ceilSq, v)

	if above.Cmp(&below) < 0 {
		return ceil
	}
	return *lo
}
