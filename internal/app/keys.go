package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"oracle-pricefeed/internal/committee"
)

// GenerateKey mints a fresh BLS key pair and prints both halves. The secret
// is for committee operators; only the public key belongs in config.
func (a *App) GenerateKey(_ context.Context) error {
	signer, err := committee.NewSigner()
	if err != nil {
		return err
	}

	pub := signer.PublicKey()
	fmt.Fprintf(os.Stdout, "secret_key: %#x\n", signer.Secret())
	fmt.Fprintf(os.Stdout, "public_key: %s\n", hexutil.Encode(pub[:]))
	return nil
}

// ListKeys prints the committee keys recorded in the audit store.
func (a *App) ListKeys(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list keys")
	}
	if closeStore != nil {
		defer closeStore()
	}

	keys, err := store.ListCommitteeKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(os.Stdout, "no committee keys recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Committee\tPublic Key\tActive\tUpdated (UTC)")
	for _, k := range keys {
		fmt.Fprintf(writer, "%d\t%s\t%t\t%s\n", k.CommitteeID, k.PublicKey, k.Active, k.UpdatedAt.UTC().Format(time.RFC3339))
	}
	writer.Flush()
	return nil
}
