package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"oracle-pricefeed/internal/codec"
	"oracle-pricefeed/internal/hcc"
	"oracle-pricefeed/internal/merkle"
	"oracle-pricefeed/internal/oracle"
)

// changeset stages every mutation of one verification call. Nothing it holds
// touches engine state until commit, which cannot fail: a call either lands
// in full or leaves no trace.
type changeset struct {
	roots    []common.Hash
	accepted []oracle.PriceEntry
	rounds   map[uint32]uint64
	windows  map[uint32]*hcc.Window
	events   []oracle.Event
}

// VerifyAndIngest is the sole write entry point for price data. It decodes
// the payload, verifies each distinct unseen root's committee signature,
// verifies every block's Merkle multiproof, then commits price upserts under
// the monotonic-round rule and feeds opted-in pairs to the consistency
// checker. Any failure aborts the whole call with no state change.
func (e *Engine) VerifyAndIngest(ctx context.Context, payload []byte) ([]oracle.PriceEntry, error) {
	proof, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}

	cs, err := e.ingestLocked(proof)
	if err != nil {
		return nil, err
	}

	// The lock is released before notification: notifiers do blocking I/O
	// and must never stall readers.
	for _, ev := range cs.events {
		e.emit(ctx, ev)
	}

	e.logger.Info().
		Int("blocks", len(proof.Blocks)).
		Int("new_roots", len(cs.roots)).
		Int("accepted", len(cs.accepted)).
		Msg("batch ingested")
	return cs.accepted, nil
}

// ingestLocked runs verification, staging and commit under the write lock and
// hands the committed changeset back for post-lock event emission.
func (e *Engine) ingestLocked(proof *oracle.OracleProof) (*changeset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	cs := &changeset{
		rounds:  make(map[uint32]uint64),
		windows: make(map[uint32]*hcc.Window),
	}

	if err := e.verifySignatures(proof, cs); err != nil {
		return nil, err
	}
	if err := verifyMultiproofs(proof); err != nil {
		return nil, err
	}
	if err := e.stageUpserts(proof, now, cs); err != nil {
		return nil, err
	}

	e.commit(cs, now)
	return cs, nil
}

// verifySignatures checks each distinct root not already in the replay guard.
// Re-submitted roots skip the pairing check; everything downstream still runs.
func (e *Engine) verifySignatures(proof *oracle.OracleProof, cs *changeset) error {
	staged := make(map[common.Hash]struct{})
	for i := range proof.Blocks {
		block := &proof.Blocks[i]
		if e.guard.Seen(block.Root) {
			continue
		}
		if _, ok := staged[block.Root]; ok {
			continue
		}

		ok, err := e.registry.Verify(block.CommitteeID, block.Root.Bytes(), block.Signature)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("committee %d root %s: %w",
				block.CommitteeID, block.Root.Hex(), oracle.ErrInvalidSignature)
		}

		staged[block.Root] = struct{}{}
		cs.roots = append(cs.roots, block.Root)
	}
	return nil
}

func verifyMultiproofs(proof *oracle.OracleProof) error {
	for i := range proof.Blocks {
		block := &proof.Blocks[i]

		leaves := make([]common.Hash, len(block.Leaves))
		for j := range block.Leaves {
			leaves[j] = block.Leaves[j].LeafHash()
		}

		ok, err := merkle.Verify(leaves, block.Proof, block.Flags, block.Root)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("block %d root %s: %w", i, block.Root.Hex(), oracle.ErrInvalidMerkleProof)
		}
	}
	return nil
}

// stageUpserts applies the monotonic-round rule against the store overlaid
// with earlier entries of this same batch, and probes consistency windows on
// clones so a later failure discards everything.
func (e *Engine) stageUpserts(proof *oracle.OracleProof, now uint64, cs *changeset) error {
	for i := range proof.Blocks {
		for _, entry := range proof.Blocks[i].Leaves {
			if err := e.store.CheckRound(entry, now); err != nil {
				return err
			}

			current, known := cs.rounds[entry.PairID]
			if !known {
				current, known = e.store.Round(entry.PairID)
			}
			if known && current >= entry.Round {
				// Stale round: silent no-op, not a failure.
				continue
			}

			cs.rounds[entry.PairID] = entry.Round
			cs.accepted = append(cs.accepted, entry)
			cs.events = append(cs.events, oracle.Event{
				Type:      oracle.EventPriceUpdated,
				PairID:    entry.PairID,
				Value:     entry.Value,
				Decimal:   entry.Decimal,
				Timestamp: entry.Timestamp,
				Round:     entry.Round,
				Root:      proof.Blocks[i].Root,
			})

			if !e.checker.Tracked(entry.PairID) {
				continue
			}
			window, ok := cs.windows[entry.PairID]
			if !ok {
				window = e.checker.WindowClone(entry.PairID)
				cs.windows[entry.PairID] = window
			}

			before := window.State()
			after, err := window.Push(entry.Value)
			if err != nil {
				return err
			}
			if after != before {
				cs.events = append(cs.events, oracle.Event{
					Type:    oracle.EventConsistencyChanged,
					PairID:  entry.PairID,
					Value:   entry.Value,
					Decimal: entry.Decimal,
					Round:   entry.Round,
					From:    before,
					To:      after,
				})
			}
		}
	}
	return nil
}

// commit lands the staged changeset at the time staging observed. Every
// operation here is infallible by construction: rounds were bounds-checked,
// roots are unseen and distinct.
func (e *Engine) commit(cs *changeset, now uint64) {
	for _, root := range cs.roots {
		if err := e.guard.Record(root); err != nil {
			// Unreachable: roots were deduplicated during staging.
			e.logger.Error().Err(err).Str("root", root.Hex()).Msg("replay guard rejected staged root")
			continue
		}
		cs.events = append(cs.events, oracle.Event{Type: oracle.EventRootAccepted, Root: root})
	}

	for _, entry := range cs.accepted {
		if _, err := e.store.Upsert(entry, now); err != nil {
			e.logger.Error().Err(err).Uint32("pair_id", entry.PairID).Msg("staged upsert rejected")
		}
	}

	for pairID, window := range cs.windows {
		e.checker.Install(pairID, window)
	}
}
