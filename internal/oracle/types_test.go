package oracle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestShapeValid(t *testing.T) {
	cases := []struct {
		leaves, proof, flags int
		ok                   bool
	}{
		{1, 0, 0, true},
		{2, 0, 1, true},
		{2, 2, 3, true},
		{1, 1, 1, true},
		{0, 1, 0, true},
		{2, 0, 0, false},
		{1, 0, 1, false},
		{3, 1, 2, false},
	}

	for _, tc := range cases {
		b := ProofBlock{
			Leaves: make([]PriceEntry, tc.leaves),
			Proof:  make([]common.Hash, tc.proof),
			Flags:  make([]bool, tc.flags),
		}
		if b.ShapeValid() != tc.ok {
			t.Fatalf("shape %d/%d/%d: expected %t", tc.leaves, tc.proof, tc.flags, tc.ok)
		}
	}
}

func TestLeafHashCoversEveryField(t *testing.T) {
	base := PriceEntry{
		PairID:    1,
		Value:     *uint256.NewInt(1000),
		Decimal:   6,
		Timestamp: 1700000000000,
		Round:     42,
	}
	baseHash := base.LeafHash()

	mutations := []func(e *PriceEntry){
		func(e *PriceEntry) { e.PairID++ },
		func(e *PriceEntry) { e.Value.AddUint64(&e.Value, 1) },
		func(e *PriceEntry) { e.Decimal++ },
		func(e *PriceEntry) { e.Timestamp++ },
		func(e *PriceEntry) { e.Round++ },
	}

	for i, mutate := range mutations {
		e := base
		mutate(&e)
		if e.LeafHash() == baseHash {
			t.Fatalf("mutation %d did not change the leaf hash", i)
		}
	}

	// Determinism.
	if base.LeafHash() != baseHash {
		t.Fatal("leaf hash must be deterministic")
	}
}

func TestStaticAuthorizer(t *testing.T) {
	auth := NewStaticAuthorizer([]string{"alice", "bob"})

	if !auth.IsAuthorized("alice") || !auth.IsAuthorized("bob") {
		t.Fatal("configured callers should be authorized")
	}
	if auth.IsAuthorized("carol") || auth.IsAuthorized("") {
		t.Fatal("unknown callers must be rejected")
	}
}

func TestConsistencyStateStrings(t *testing.T) {
	if InsufficientHistory.String() != "insufficient_history" {
		t.Fatalf("unexpected: %s", InsufficientHistory)
	}
	if Consistent.String() != "consistent" || Inconsistent.String() != "inconsistent" {
		t.Fatal("unexpected state spellings")
	}
}
