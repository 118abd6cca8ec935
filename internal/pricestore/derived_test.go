package pricestore

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"oracle-pricefeed/internal/oracle"
)

func seededStore(t *testing.T, entries ...oracle.PriceEntry) *Store {
	t.Helper()
	s := NewStore(0)
	now := uint64(10_000)
	for _, e := range entries {
		if _, err := s.Upsert(e, now); err != nil {
			t.Fatalf("seed pair %d: %v", e.PairID, err)
		}
	}
	return s
}

func e18(n uint64) uint256.Int {
	v := uint256.NewInt(n)
	v.Mul(v, new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
	return *v
}

func TestDerivedMultiply(t *testing.T) {
	// 2.0 at 18 decimals times 4.0 at 18 decimals is 8.0 at 18 decimals.
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: e18(2), Decimal: 18, Round: 100},
		oracle.PriceEntry{PairID: 2, Value: e18(4), Decimal: 18, Round: 100},
	)

	got, err := s.Derived(1, 2, Multiply)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	want := e18(8)
	if got.Value != want {
		t.Fatalf("expected 8e18, got %s", got.Value.Dec())
	}
	if got.Decimal != 18 {
		t.Fatalf("derived prices are always 18-decimal, got %d", got.Decimal)
	}
	if got.Comparison != Equal || got.RoundGap != 0 {
		t.Fatalf("equal rounds expected, got %+v", got)
	}
}

func TestDerivedDivide(t *testing.T) {
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: e18(9), Decimal: 18, Round: 105},
		oracle.PriceEntry{PairID: 2, Value: e18(2), Decimal: 18, Round: 100},
	)

	got, err := s.Derived(1, 2, Divide)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	// 9 / 2 = 4.5 at 18 decimals.
	want := *uint256.NewInt(4_500_000_000_000_000_000)
	if got.Value != want {
		t.Fatalf("expected 4.5e18, got %s", got.Value.Dec())
	}
	if got.Comparison != FirstNewer || got.RoundGap != 5 {
		t.Fatalf("first operand is newer by 5 rounds, got %+v", got)
	}
}

func TestDerivedScalesMixedDecimals(t *testing.T) {
	// 3.0 at 6 decimals times 2.0 at 0 decimals.
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: *uint256.NewInt(3_000_000), Decimal: 6, Round: 100},
		oracle.PriceEntry{PairID: 2, Value: *uint256.NewInt(2), Decimal: 0, Round: 108},
	)

	got, err := s.Derived(1, 2, Multiply)
	if err != nil {
		t.Fatalf("derived: %v", err)
	}
	if want := e18(6); got.Value != want {
		t.Fatalf("expected 6e18, got %s", got.Value.Dec())
	}
	if got.Comparison != SecondNewer || got.RoundGap != 8 {
		t.Fatalf("second operand is newer by 8 rounds, got %+v", got)
	}
}

func TestDerivedZeroDivisor(t *testing.T) {
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: e18(1), Decimal: 18, Round: 100},
		oracle.PriceEntry{PairID: 2, Value: *uint256.NewInt(0), Decimal: 18, Round: 100},
	)

	if _, err := s.Derived(1, 2, Divide); !errors.Is(err, oracle.ErrZeroDivisor) {
		t.Fatalf("expected ErrZeroDivisor, got %v", err)
	}
}

func TestDerivedSamePair(t *testing.T) {
	s := seededStore(t, oracle.PriceEntry{PairID: 1, Value: e18(1), Decimal: 18, Round: 100})

	if _, err := s.Derived(1, 1, Multiply); !errors.Is(err, oracle.ErrSamePairID) {
		t.Fatalf("expected ErrSamePairID, got %v", err)
	}
}

func TestDerivedInvalidOperation(t *testing.T) {
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: e18(1), Decimal: 18, Round: 100},
		oracle.PriceEntry{PairID: 2, Value: e18(1), Decimal: 18, Round: 100},
	)

	if _, err := s.Derived(1, 2, Operation(9)); !errors.Is(err, oracle.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestDerivedMissingPair(t *testing.T) {
	s := seededStore(t, oracle.PriceEntry{PairID: 1, Value: e18(1), Decimal: 18, Round: 100})

	if _, err := s.Derived(1, 2, Multiply); !errors.Is(err, oracle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDerivedDecimalOutOfRange(t *testing.T) {
	s := seededStore(t,
		oracle.PriceEntry{PairID: 1, Value: e18(1), Decimal: 19, Round: 100},
		oracle.PriceEntry{PairID: 2, Value: e18(1), Decimal: 18, Round: 100},
	)

	if _, err := s.Derived(1, 2, Multiply); !errors.Is(err, oracle.ErrDecimalOutOfRange) {
		t.Fatalf("expected ErrDecimalOutOfRange, got %v", err)
	}
}

func TestParseOperation(t *testing.T) {
	if op, err := ParseOperation("multiply"); err != nil || op != Multiply {
		t.Fatalf("multiply: op=%v err=%v", op, err)
	}
	if op, err := ParseOperation("divide"); err != nil || op != Divide {
		t.Fatalf("divide: op=%v err=%v", op, err)
	}
	if _, err := ParseOperation("modulo"); !errors.Is(err, oracle.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}
