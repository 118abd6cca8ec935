// Package codec implements the wire format of submitted oracle proofs.
//
// The payload is little-endian throughout. Vector lengths and counts are
// unsigned LEB128 varints (7-bit groups, low group first, high bit set on
// continuation). Fixed-width integers are stored in native little-endian
// byte order.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"oracle-pricefeed/internal/oracle"
)

const (
	// maxVectorLen caps decoded vector length prefixes well above anything a
	// legitimate batch carries, so a corrupt prefix fails fast instead of
	// attempting a huge allocation.
	maxVectorLen = 1 << 20

	entrySize = 38
	rootSize  = 32
)

// Decode parses a submitted payload into an OracleProof. It fails with
// ErrMalformedPayload when the buffer runs out mid-field or a length prefix
// implies more data than remains, and validates each block's multiproof shape
// before any verification work starts.
func Decode(data []byte) (*oracle.OracleProof, error) {
	r := &reader{buf: data}

	blockCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}

	// Every block starts with a fixed 8-byte committee id, enough to bound
	// the hint.
	proof := &oracle.OracleProof{Blocks: make([]oracle.ProofBlock, 0, r.capHint(blockCount, 8))}
	for i := uint64(0); i < blockCount; i++ {
		block, err := decodeBlock(r)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		proof.Blocks = append(proof.Blocks, block)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", oracle.ErrMalformedPayload, r.remaining())
	}
	return proof, nil
}

func decodeBlock(r *reader) (oracle.ProofBlock, error) {
	var block oracle.ProofBlock

	committeeID, err := r.uint64()
	if err != nil {
		return block, err
	}
	block.CommitteeID = committeeID

	root, err := r.byteVector()
	if err != nil {
		return block, err
	}
	if len(root) != rootSize {
		return block, fmt.Errorf("%w: root is %d bytes, want %d", oracle.ErrMalformedPayload, len(root), rootSize)
	}
	block.Root = common.BytesToHash(root)

	if block.Signature, err = r.byteVector(); err != nil {
		return block, err
	}

	entryCount, err := r.uvarint()
	if err != nil {
		return block, err
	}
	block.Leaves = make([]oracle.PriceEntry, 0, r.capHint(entryCount, entrySize))
	for i := uint64(0); i < entryCount; i++ {
		entry, err := decodeEntry(r)
		if err != nil {
			return block, err
		}
		block.Leaves = append(block.Leaves, entry)
	}

	proofCount, err := r.uvarint()
	if err != nil {
		return block, err
	}
	block.Proof = make([]common.Hash, 0, r.capHint(proofCount, rootSize))
	for i := uint64(0); i < proofCount; i++ {
		raw, err := r.bytes(rootSize)
		if err != nil {
			return block, err
		}
		block.Proof = append(block.Proof, common.BytesToHash(raw))
	}

	flagCount, err := r.uvarint()
	if err != nil {
		return block, err
	}
	block.Flags = make([]bool, 0, r.capHint(flagCount, 1))
	for i := uint64(0); i < flagCount; i++ {
		b, err := r.byte()
		if err != nil {
			return block, err
		}
		switch b {
		case 0:
			block.Flags = append(block.Flags, false)
		case 1:
			block.Flags = append(block.Flags, true)
		default:
			return block, fmt.Errorf("%w: flag byte 0x%02x", oracle.ErrInvalidBoolEncoding, b)
		}
	}

	// Cheap structural rejection before any hashing or pairing work.
	if !block.ShapeValid() {
		return block, fmt.Errorf("%w: %d leaves + %d proof hashes vs %d flags",
			oracle.ErrMalformedProofShape, len(block.Leaves), len(block.Proof), len(block.Flags))
	}
	return block, nil
}

func decodeEntry(r *reader) (oracle.PriceEntry, error) {
	var entry oracle.PriceEntry

	raw, err := r.bytes(entrySize)
	if err != nil {
		return entry, err
	}

	entry.PairID = binary.LittleEndian.Uint32(raw[0:4])
	var valueBE [16]byte
	for i := 0; i < 16; i++ {
		valueBE[i] = raw[4+15-i]
	}
	entry.Value.SetBytes(valueBE[:])
	entry.Timestamp = binary.LittleEndian.Uint64(raw[20:28])
	entry.Decimal = binary.LittleEndian.Uint16(raw[28:30])
	entry.Round = binary.LittleEndian.Uint64(raw[30:38])
	return entry, nil
}

// Encode serialises a proof into the wire format accepted by Decode. It is
// used by the batch simulator, relayer fixtures and round-trip tests.
func Encode(p *oracle.OracleProof) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(p.Blocks)))
	for i := range p.Blocks {
		block := &p.Blocks[i]
		buf = binary.LittleEndian.AppendUint64(buf, block.CommitteeID)

		buf = binary.AppendUvarint(buf, uint64(rootSize))
		buf = append(buf, block.Root.Bytes()...)

		buf = binary.AppendUvarint(buf, uint64(len(block.Signature)))
		buf = append(buf, block.Signature...)

		buf = binary.AppendUvarint(buf, uint64(len(block.Leaves)))
		for j := range block.Leaves {
			buf = append(buf, block.Leaves[j].WireBytes()...)
		}

		buf = binary.AppendUvarint(buf, uint64(len(block.Proof)))
		for _, h := range block.Proof {
			buf = append(buf, h.Bytes()...)
		}

		buf = binary.AppendUvarint(buf, uint64(len(block.Flags)))
		for _, f := range block.Flags {
			if f {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

// reader walks the payload with bounds checking on every read.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

// capHint bounds an allocation hint by the bytes actually left in the buffer,
// so a forged count prefix cannot force a large allocation before the first
// element read fails.
func (r *reader) capHint(count uint64, unitSize int) int {
	if max := uint64(r.remaining() / unitSize); count > max {
		return int(max)
	}
	return int(count)
}

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: buffer exhausted", oracle.ErrMalformedPayload)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", oracle.ErrMalformedPayload, n, r.remaining())
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) uint64() (uint64, error) {
	raw, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated varint", oracle.ErrMalformedPayload)
	}
	if v > maxVectorLen {
		return 0, fmt.Errorf("%w: vector length %d exceeds limit", oracle.ErrMalformedPayload, v)
	}
	r.pos += n
	return v, nil
}

func (r *reader) byteVector() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(n))
}
