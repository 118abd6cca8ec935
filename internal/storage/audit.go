package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oracle-pricefeed/internal/oracle"
)

// AuditNotifier persists pipeline events into the audit tables. Failures are
// logged and swallowed: audit writes never affect committed oracle state.
type AuditNotifier struct {
	store  *Store
	logger zerolog.Logger
}

// NewAuditNotifier wires a Store into the notification fan-out.
func NewAuditNotifier(store *Store, logger zerolog.Logger) *AuditNotifier {
	return &AuditNotifier{
		store:  store,
		logger: logger.With().Str("component", "audit_notifier").Logger(),
	}
}

// Notify translates an event into its audit row.
func (n *AuditNotifier) Notify(ctx context.Context, ev oracle.Event) error {
	var err error
	switch ev.Type {
	case oracle.EventPriceUpdated:
		err = n.store.InsertPriceUpdate(ctx, PriceUpdateRecord{
			PairID:    ev.PairID,
			Value:     decimal.NewFromBigInt(ev.Value.ToBig(), 0),
			Decimal:   ev.Decimal,
			Timestamp: ev.Timestamp,
			Round:     ev.Round,
			Root:      ev.Root.Hex(),
		})
	case oracle.EventConsistencyChanged:
		_, err = n.store.InsertTransition(ctx, TransitionRecord{
			PairID:    ev.PairID,
			FromState: ev.From.String(),
			ToState:   ev.To.String(),
			Value:     decimal.NewFromBigInt(ev.Value.ToBig(), 0),
			Round:     ev.Round,
		})
	case oracle.EventKeyAdded:
		err = n.store.UpsertCommitteeKey(ctx, ev.CommitteeID, hexutil.Encode(ev.PublicKey))
	case oracle.EventKeyRemoved:
		err = n.store.DeactivateCommitteeKey(ctx, ev.CommitteeID)
	default:
		// Root acceptances are log-only.
		return nil
	}

	if err != nil {
		n.logger.Warn().Err(err).Str("event", ev.Type.String()).Msg("audit write failed")
	}
	return nil
}

var _ oracle.Notifier = (*AuditNotifier)(nil)
