package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oracle-pricefeed/internal/app"
)

var (
	showPairID      uint32
	showLimit       int
	showTransitions bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent accepted price updates or consistency transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			PairID:      showPairID,
			Limit:       showLimit,
			Transitions: showTransitions,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().Uint32Var(&showPairID, "pair", 0, "Pair identifier to display updates for")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showTransitions, "transitions", false, "Show consistency transitions instead of price updates")
}
