// Package pricestore keeps the latest verified observation per trading pair.
// A slot's round only ever increases; stale or equal rounds are silently
// ignored so replayed batches cannot roll a price back.
package pricestore

import (
	"fmt"

	"oracle-pricefeed/internal/container"
	"oracle-pricefeed/internal/oracle"
)

// DefaultRoundTolerance is how far ahead of the current time an incoming
// round may sit, in the same millisecond unit rounds are stamped with. It
// stops a maliciously far-future round from poisoning monotonicity forever.
const DefaultRoundTolerance = 10_000

// Store holds one slot per pair, created lazily on first accepted entry.
type Store struct {
	slots     *container.IndexedMap[uint32, oracle.PriceEntry]
	tolerance uint64
}

// NewStore builds an empty store; tolerance <= 0 selects DefaultRoundTolerance.
func NewStore(tolerance uint64) *Store {
	if tolerance == 0 {
		tolerance = DefaultRoundTolerance
	}
	return &Store{
		slots:     container.NewIndexedMap[uint32, oracle.PriceEntry](),
		tolerance: tolerance,
	}
}

// CheckRound validates the freshness bound without touching state.
func (s *Store) CheckRound(entry oracle.PriceEntry, now uint64) error {
	if entry.Round > now+s.tolerance {
		return fmt.Errorf("%w: round %d is %dms past the horizon at now=%d",
			oracle.ErrRoundOutOfBounds, entry.Round, entry.Round-now-s.tolerance, now)
	}
	return nil
}

// Upsert applies entry under the monotonic-round rule and reports whether the
// slot changed. An entry whose round is not strictly greater than the stored
// round is a silent no-op.
func (s *Store) Upsert(entry oracle.PriceEntry, now uint64) (bool, error) {
	if err := s.CheckRound(entry, now); err != nil {
		return false, err
	}
	if cur, ok := s.slots.Get(entry.PairID); ok && cur.Round >= entry.Round {
		return false, nil
	}
	s.slots.Put(entry.PairID, entry)
	return true, nil
}

// Get returns the latest entry for a pair.
func (s *Store) Get(pairID uint32) (oracle.PriceEntry, error) {
	entry, ok := s.slots.Get(pairID)
	if !ok {
		return oracle.PriceEntry{}, fmt.Errorf("pair %d: %w", pairID, oracle.ErrNotFound)
	}
	return entry, nil
}

// GetMany returns entries for the requested pairs; pairs without data are
// omitted rather than reported as errors.
func (s *Store) GetMany(pairIDs []uint32) []oracle.PriceEntry {
	out := make([]oracle.PriceEntry, 0, len(pairIDs))
	for _, id := range pairIDs {
		if entry, ok := s.slots.Get(id); ok {
			out = append(out, entry)
		}
	}
	return out
}

// Round returns the stored round for a pair, if any.
func (s *Store) Round(pairID uint32) (uint64, bool) {
	entry, ok := s.slots.Get(pairID)
	if !ok {
		return 0, false
	}
	return entry.Round, true
}

// Len returns the number of populated slots.
func (s *Store) Len() int {
	return s.slots.Len()
}
