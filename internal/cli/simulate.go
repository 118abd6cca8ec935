package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"oracle-pricefeed/internal/app"
)

var (
	simulateCommittee  uint64
	simulatePairs      []uint
	simulateSeed       int64
	simulateRounds     int
	simulateWindowSize int
	simulateBandWidth  uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-batch",
	Short: "Sign and ingest synthetic batches through an in-process pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(simulatePairs) == 0 {
			return errors.New("--pairs requires at least one pair id")
		}
		if simulateSeed == 0 {
			simulateSeed = time.Now().UnixNano()
		}

		pairs := make([]uint32, 0, len(simulatePairs))
		for _, p := range simulatePairs {
			pairs = append(pairs, uint32(p))
		}

		opts := app.SimulateOptions{
			CommitteeID: simulateCommittee,
			PairIDs:     pairs,
			Seed:        simulateSeed,
			WindowSize:  simulateWindowSize,
			BandWidth:   simulateBandWidth,
			Rounds:      simulateRounds,
		}

		return getApp().SimulateBatch(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Uint64Var(&simulateCommittee, "committee", 1, "Committee identifier for the ephemeral signer")
	simulateCmd.Flags().UintSliceVar(&simulatePairs, "pairs", []uint{1}, "Pair identifiers to publish")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "Random seed (0 uses the current time)")
	simulateCmd.Flags().IntVar(&simulateRounds, "rounds", 10, "Number of batches to sign and ingest")
	simulateCmd.Flags().IntVar(&simulateWindowSize, "window", 3, "Consistency window size")
	simulateCmd.Flags().Uint64Var(&simulateBandWidth, "band", 1, "Consistency band width multiplier")
}
