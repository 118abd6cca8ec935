package oracle

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	// PublicKeySize is the compressed BLS12-381 G1 public key length.
	PublicKeySize = 48
	// MaxDecimal is the largest supported decimal exponent for stored prices.
	MaxDecimal = 18
	// entryWireSize is the packed byte width of one price entry on the wire.
	entryWireSize = 4 + 16 + 8 + 2 + 8
)

// PriceEntry is one observation of one trading pair. Immutable once built;
// a newer round supersedes it, it is never mutated in place.
type PriceEntry struct {
	PairID    uint32
	Value     uint256.Int
	Decimal   uint16
	Timestamp uint64
	Round     uint64
}

// ProofBlock carries one committee's contribution to a batch: the signed
// Merkle root, the revealed leaves and the multiproof material.
type ProofBlock struct {
	CommitteeID uint64
	Root        common.Hash
	Signature   []byte
	Leaves      []PriceEntry
	Proof       []common.Hash
	Flags       []bool
}

// OracleProof is the decoded form of a submitted payload.
type OracleProof struct {
	Blocks []ProofBlock
}

// ShapeValid reports whether the multiproof material satisfies the structural
// invariant len(leaves)+len(proof) == len(flags)+1.
func (b *ProofBlock) ShapeValid() bool {
	return len(b.Leaves)+len(b.Proof) == len(b.Flags)+1
}

// WireBytes returns the fixed-order packed encoding of the entry:
// pair_id(4B LE) || value(16B LE) || timestamp(8B LE) || decimal(2B LE) || round(8B LE).
// Every proof ever issued hashes exactly this layout.
func (e *PriceEntry) WireBytes() []byte {
	buf := make([]byte, entryWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], e.PairID)
	value := e.Value.Bytes32()
	// Bytes32 is big-endian; the wire wants the low 16 bytes little-endian.
	for i := 0; i < 16; i++ {
		buf[4+i] = value[31-i]
	}
	binary.LittleEndian.PutUint64(buf[20:28], e.Timestamp)
	binary.LittleEndian.PutUint16(buf[28:30], e.Decimal)
	binary.LittleEndian.PutUint64(buf[30:38], e.Round)
	return buf
}

// LeafHash is the content hash binding an entry into a committee's Merkle tree.
func (e *PriceEntry) LeafHash() common.Hash {
	return common.BytesToHash(crypto.Keccak256(e.WireBytes()))
}

// ConsistencyState classifies a pair's newest value against its recent history.
type ConsistencyState uint8

const (
	// InsufficientHistory means the sliding window has not filled yet.
	InsufficientHistory ConsistencyState = iota
	// Consistent means the newest value sits inside the volatility band.
	Consistent
	// Inconsistent flags the newest value as an outlier.
	Inconsistent
)

func (s ConsistencyState) String() string {
	switch s {
	case Consistent:
		return "consistent"
	case Inconsistent:
		return "inconsistent"
	default:
		return "insufficient_history"
	}
}

// PairState pairs a trading pair with its consistency classification.
type PairState struct {
	PairID uint32
	State  ConsistencyState
}
