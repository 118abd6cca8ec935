package app

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"oracle-pricefeed/internal/alerting"
	"oracle-pricefeed/internal/codec"
	"oracle-pricefeed/internal/committee"
	"oracle-pricefeed/internal/merkle"
	"oracle-pricefeed/internal/oracle"
	"oracle-pricefeed/internal/service"
)

const simulateCaller = "simulator"

// SimulateBatch runs the full pipeline against an in-process engine: it mints
// an ephemeral committee signer, signs batches of random-walk prices, encodes
// them on the wire format, and ingests them. Every fifth round per pair gets a
// price spike so the consistency checker has something to flag.
func (a *App) SimulateBatch(ctx context.Context, opts SimulateOptions) error {
	if len(opts.PairIDs) == 0 {
		return fmt.Errorf("at least one pair id is required")
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 10
	}

	signer, err := committee.NewSigner()
	if err != nil {
		return err
	}

	engine := service.NewEngine(service.Options{
		ReplayWindow:   a.Config.Oracle.ReplayWindow,
		RoundTolerance: a.Config.Oracle.RoundToleranceMS,
		HCCWindowSize:  opts.WindowSize,
		HCCBandWidth:   opts.BandWidth,
		HCCPairs:       opts.PairIDs,
	}, oracle.NewStaticAuthorizer([]string{simulateCaller}), oracle.WallClock{}, alerting.NewLogNotifier(a.Logger), a.Logger)

	pub := signer.PublicKey()
	if err := engine.SeedCommittee(opts.CommitteeID, pub[:]); err != nil {
		return err
	}
	a.Logger.Info().
		Uint64("committee_id", opts.CommitteeID).
		Str("public_key", hexutil.Encode(pub[:])).
		Msg("ephemeral committee registered")

	rng := rand.New(rand.NewSource(opts.Seed))
	clock := oracle.WallClock{}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Round\tPair\tValue\tState")

	prices := make(map[uint32]uint64, len(opts.PairIDs))
	for _, pairID := range opts.PairIDs {
		prices[pairID] = 1_000_000 + uint64(rng.Intn(100_000))
	}

	for round := 0; round < opts.Rounds; round++ {
		now := clock.Now()
		entries := make([]oracle.PriceEntry, 0, len(opts.PairIDs))
		for _, pairID := range opts.PairIDs {
			prices[pairID] = nextPrice(rng, prices[pairID], round)
			entries = append(entries, oracle.PriceEntry{
				PairID:    pairID,
				Value:     *uint256.NewInt(prices[pairID]),
				Decimal:   6,
				Timestamp: now,
				Round:     now + uint64(round),
			})
		}

		payload, err := buildSignedBatch(signer, opts.CommitteeID, entries)
		if err != nil {
			return err
		}
		if _, err := engine.VerifyAndIngest(ctx, payload); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		states := engine.HCCStates(opts.PairIDs)
		stateByPair := make(map[uint32]oracle.ConsistencyState, len(states))
		for _, st := range states {
			stateByPair[st.PairID] = st.State
		}
		for _, e := range entries {
			fmt.Fprintf(writer, "%d\t%d\t%d\t%s\n", round, e.PairID, prices[e.PairID], stateByPair[e.PairID])
		}
	}

	writer.Flush()
	return nil
}

// nextPrice walks the price by up to 1%, with a 10x spike every fifth round.
func nextPrice(rng *rand.Rand, prev uint64, round int) uint64 {
	if round > 0 && round%5 == 0 {
		return prev * 10
	}
	jitter := prev / 100
	if jitter == 0 {
		jitter = 1
	}
	delta := uint64(rng.Int63n(int64(2*jitter + 1)))
	next := prev + delta
	if next > jitter {
		next -= jitter
	}
	return next
}

// buildSignedBatch assembles one single-committee payload: all leaves
// revealed, no proof hashes, combine flags only.
func buildSignedBatch(signer *committee.Signer, committeeID uint64, entries []oracle.PriceEntry) ([]byte, error) {
	leaves := make([]common.Hash, len(entries))
	for i, e := range entries {
		leaves[i] = e.LeafHash()
	}
	flags := make([]bool, len(entries)-1)
	for i := range flags {
		flags[i] = true
	}

	root, err := merkle.ComputeRoot(leaves, nil, flags)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(root[:])
	if err != nil {
		return nil, err
	}

	proof := &oracle.OracleProof{
		Blocks: []oracle.ProofBlock{{
			CommitteeID: committeeID,
			Root:        root,
			Signature:   sig,
			Leaves:      entries,
			Flags:       flags,
		}},
	}
	return codec.Encode(proof), nil
}
