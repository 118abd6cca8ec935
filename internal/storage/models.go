package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceUpdateRecord is one accepted price upsert, persisted for auditing and
// the show/export CLI. The in-memory store remains the source of truth.
type PriceUpdateRecord struct {
	ID        int64
	PairID    uint32
	Value     decimal.Decimal
	Decimal   uint16
	Timestamp uint64
	Round     uint64
	Root      string
	CreatedAt time.Time
}

// CommitteeKeyRecord captures a committee key registration or removal.
type CommitteeKeyRecord struct {
	CommitteeID uint64
	PublicKey   string
	Active      bool
	UpdatedAt   time.Time
}

// TransitionRecord captures a consistency-state transition for a pair.
type TransitionRecord struct {
	ID        int64
	PairID    uint32
	FromState string
	ToState   string
	Value     decimal.Decimal
	Round     uint64
	CreatedAt time.Time
}
