package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"oracle-pricefeed/internal/storage"
)

// Show prints recent accepted price updates for a pair, or recent consistency
// transitions when requested.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Transitions {
		return a.showTransitions(ctx, store, opts)
	}
	return a.showUpdates(ctx, store, opts)
}

func (a *App) showUpdates(ctx context.Context, store *storage.Store, opts ShowOptions) error {
	updates, err := store.ListRecentUpdates(ctx, opts.PairID, opts.Limit)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		fmt.Fprintln(os.Stdout, "no price updates found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Recorded (UTC)\tPair\tValue\tDecimal\tRound\tRoot")

	for _, u := range updates {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%d\t%d\t%s\n",
			u.CreatedAt.UTC().Format(time.RFC3339),
			u.PairID,
			u.Value.String(),
			u.Decimal,
			u.Round,
			u.Root,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showTransitions(ctx context.Context, store *storage.Store, opts ShowOptions) error {
	transitions, err := store.ListRecentTransitions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Fprintln(os.Stdout, "no transitions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Recorded (UTC)\tPair\tFrom\tTo\tValue\tRound")

	for _, t := range transitions {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%d\n",
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.PairID,
			t.FromState,
			t.ToState,
			t.Value.String(),
			t.Round,
		)
	}

	writer.Flush()
	return nil
}
