package oracle

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Clock supplies the single external time input of the pipeline, in the same
// millisecond unit reporters stamp rounds with. Must be non-decreasing.
type Clock interface {
	Now() uint64
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) Now() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Authorizer gates committee registry mutations.
type Authorizer interface {
	IsAuthorized(caller string) bool
}

// EventType discriminates observability events emitted by the pipeline.
type EventType uint8

const (
	EventKeyAdded EventType = iota
	EventKeyRemoved
	EventPriceUpdated
	EventRootAccepted
	EventConsistencyChanged
)

func (t EventType) String() string {
	switch t {
	case EventKeyAdded:
		return "key_added"
	case EventKeyRemoved:
		return "key_removed"
	case EventPriceUpdated:
		return "price_updated"
	case EventRootAccepted:
		return "root_accepted"
	case EventConsistencyChanged:
		return "consistency_changed"
	default:
		return "unknown"
	}
}

// Event is a fire-and-forget notification. Events are emitted only after the
// state mutations they describe have been committed.
type Event struct {
	Type        EventType
	CommitteeID uint64
	PublicKey   []byte
	PairID      uint32
	Value       uint256.Int
	Decimal     uint16
	Timestamp   uint64
	Round       uint64
	Root        common.Hash
	From        ConsistencyState
	To          ConsistencyState
}

// Notifier receives pipeline events. Delivery is best effort; a failing
// notifier must not affect committed state.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
