// Package merkle verifies Merkle multiproofs: one combined proof that a set
// of leaves belongs to a tree with a given root.
package merkle

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"oracle-pricefeed/internal/oracle"
)

// Verify recomputes the root implied by leaves, proof hashes and combination
// flags and compares it with the claimed root. Structural violations return
// an error; a clean mismatch returns (false, nil).
func Verify(leaves, proof []common.Hash, flags []bool, root common.Hash) (bool, error) {
	candidate, err := ComputeRoot(leaves, proof, flags)
	if err != nil {
		return false, err
	}
	return candidate == root, nil
}

// ComputeRoot folds the multiproof.
//
// Two FIFO queues are kept: the given leaf hashes and the hashes computed
// during the walk, plus a cursor over the proof hashes. Each flag combines
// two operands into a new computed hash; a true flag takes both operands from
// the queues (leaf queue first), a false flag takes the second operand from
// the proof cursor.
func ComputeRoot(leaves, proof []common.Hash, flags []bool) (common.Hash, error) {
	var (
		leafIdx     int
		computedIdx int
		proofIdx    int
		computed    = make([]common.Hash, 0, len(flags))
	)

	pop := func() (common.Hash, bool) {
		if leafIdx < len(leaves) {
			h := leaves[leafIdx]
			leafIdx++
			return h, true
		}
		if computedIdx < len(computed) {
			h := computed[computedIdx]
			computedIdx++
			return h, true
		}
		return common.Hash{}, false
	}

	for i, flag := range flags {
		a, ok := pop()
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: operand underflow at flag %d", oracle.ErrMalformedProofShape, i)
		}

		var b common.Hash
		if flag {
			b, ok = pop()
			if !ok {
				return common.Hash{}, fmt.Errorf("%w: operand underflow at flag %d", oracle.ErrMalformedProofShape, i)
			}
		} else {
			if proofIdx >= len(proof) {
				return common.Hash{}, fmt.Errorf("%w: proof underflow at flag %d", oracle.ErrMalformedProofShape, i)
			}
			b = proof[proofIdx]
			proofIdx++
		}

		computed = append(computed, combine(a, b))
	}

	if len(flags) > 0 {
		if proofIdx != len(proof) {
			return common.Hash{}, fmt.Errorf("%w: %d of %d proof hashes consumed",
				oracle.ErrUnconsumedProof, proofIdx, len(proof))
		}
		return computed[len(computed)-1], nil
	}

	// Degenerate proofs: a single leaf, or a bare root restated as the sole
	// proof hash.
	if len(leaves) == 1 && len(proof) == 0 {
		return leaves[0], nil
	}
	if len(leaves) == 0 && len(proof) == 1 {
		return proof[0], nil
	}
	return common.Hash{}, fmt.Errorf("%w: no flags with %d leaves and %d proof hashes",
		oracle.ErrMalformedProofShape, len(leaves), len(proof))
}

// combine hashes the pair in sorted order, making sibling order irrelevant
// and closing the trivial malleability of swapped operands.
func combine(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return common.BytesToHash(crypto.Keccak256(a[:], b[:]))
	}
	return common.BytesToHash(crypto.Keccak256(b[:], a[:]))
}
