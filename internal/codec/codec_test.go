package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"oracle-pricefeed/internal/oracle"
)

func sampleProof() *oracle.OracleProof {
	return &oracle.OracleProof{
		Blocks: []oracle.ProofBlock{
			{
				CommitteeID: 9,
				Root:        common.HexToHash("0x11"),
				Signature:   bytes.Repeat([]byte{0xab}, 96),
				Leaves: []oracle.PriceEntry{
					{PairID: 1, Value: *uint256.NewInt(2_000_000), Decimal: 6, Timestamp: 1700000000000, Round: 42},
					{PairID: 2, Value: *uint256.NewInt(5), Decimal: 0, Timestamp: 1700000000001, Round: 43},
				},
				Proof: []common.Hash{common.HexToHash("0x22")},
				Flags: []bool{false, true},
			},
			{
				CommitteeID: 10,
				Root:        common.HexToHash("0x33"),
				Signature:   bytes.Repeat([]byte{0xcd}, 96),
				Leaves: []oracle.PriceEntry{
					{PairID: 7, Value: *uint256.NewInt(1), Decimal: 18, Timestamp: 1700000000002, Round: 44},
				},
				Flags: []bool{},
			},
		},
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	want := sampleProof()
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got.Blocks) != len(want.Blocks) {
		t.Fatalf("block count mismatch: %d vs %d", len(got.Blocks), len(want.Blocks))
	}
	for i := range want.Blocks {
		wb, gb := &want.Blocks[i], &got.Blocks[i]
		if gb.CommitteeID != wb.CommitteeID {
			t.Fatalf("block %d committee: %d vs %d", i, gb.CommitteeID, wb.CommitteeID)
		}
		if gb.Root != wb.Root {
			t.Fatalf("block %d root mismatch", i)
		}
		if !bytes.Equal(gb.Signature, wb.Signature) {
			t.Fatalf("block %d signature mismatch", i)
		}
		if len(gb.Leaves) != len(wb.Leaves) {
			t.Fatalf("block %d leaf count: %d vs %d", i, len(gb.Leaves), len(wb.Leaves))
		}
		for j := range wb.Leaves {
			if gb.Leaves[j] != wb.Leaves[j] {
				t.Fatalf("block %d leaf %d: %+v vs %+v", i, j, gb.Leaves[j], wb.Leaves[j])
			}
		}
		if len(gb.Proof) != len(wb.Proof) || len(gb.Flags) != len(wb.Flags) {
			t.Fatalf("block %d proof material mismatch", i)
		}
	}
}

func TestDecodeEmptyBatch(t *testing.T) {
	proof, err := Decode([]byte{0})
	if err != nil {
		t.Fatalf("empty batch should decode: %v", err)
	}
	if len(proof.Blocks) != 0 {
		t.Fatalf("expected no blocks, got %d", len(proof.Blocks))
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	full := Encode(sampleProof())
	for _, cut := range []int{1, len(full) / 2, len(full) - 1} {
		if _, err := Decode(full[:cut]); !errors.Is(err, oracle.ErrMalformedPayload) {
			t.Fatalf("truncation at %d: expected ErrMalformedPayload, got %v", cut, err)
		}
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	payload := append(Encode(sampleProof()), 0xff)
	if _, err := Decode(payload); !errors.Is(err, oracle.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for trailing bytes, got %v", err)
	}
}

func TestDecodeBadFlagByte(t *testing.T) {
	proof := sampleProof()
	payload := Encode(proof)

	// The last byte of the first block's encoding is its final flag.
	// Locate it by re-encoding just the first block.
	firstBlockLen := len(Encode(&oracle.OracleProof{Blocks: proof.Blocks[:1]}))
	payload[firstBlockLen-1] = 0x02

	if _, err := Decode(payload); !errors.Is(err, oracle.ErrInvalidBoolEncoding) {
		t.Fatalf("expected ErrInvalidBoolEncoding, got %v", err)
	}
}

func TestDecodeBadProofShape(t *testing.T) {
	proof := sampleProof()
	proof.Blocks[0].Flags = proof.Blocks[0].Flags[:1]

	if _, err := Decode(Encode(proof)); !errors.Is(err, oracle.ErrMalformedProofShape) {
		t.Fatalf("expected ErrMalformedProofShape, got %v", err)
	}
}

func TestDecodeWrongRootLength(t *testing.T) {
	// committee_id, then a root vector claiming 31 bytes.
	payload := []byte{1}
	payload = append(payload, make([]byte, 8)...)
	payload = append(payload, 31)
	payload = append(payload, make([]byte, 31)...)

	if _, err := Decode(payload); !errors.Is(err, oracle.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for short root, got %v", err)
	}
}

func TestDecodeOversizedVectorPrefix(t *testing.T) {
	// Block count varint far above the vector cap.
	payload := []byte{0xff, 0xff, 0xff, 0xff, 0x7f}
	if _, err := Decode(payload); !errors.Is(err, oracle.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for oversized prefix, got %v", err)
	}
}

func TestWireBytesLayout(t *testing.T) {
	entry := oracle.PriceEntry{
		PairID:    0x04030201,
		Value:     *uint256.NewInt(0x0807060504030201),
		Decimal:   0x0a09,
		Timestamp: 0x1817161514131211,
		Round:     0x2827262524232221,
	}

	raw := entry.WireBytes()
	if len(raw) != entrySize {
		t.Fatalf("entry should encode to %d bytes, got %d", entrySize, len(raw))
	}
	if !bytes.Equal(raw[0:4], []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("pair_id not little-endian: % x", raw[0:4])
	}
	if !bytes.Equal(raw[4:12], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}) {
		t.Fatalf("value low bytes not little-endian: % x", raw[4:12])
	}
	if !bytes.Equal(raw[20:28], []byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}) {
		t.Fatalf("timestamp not little-endian: % x", raw[20:28])
	}
	if !bytes.Equal(raw[28:30], []byte{0x09, 0x0a}) {
		t.Fatalf("decimal not little-endian: % x", raw[28:30])
	}
	if !bytes.Equal(raw[30:38], []byte{0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28}) {
		t.Fatalf("round not little-endian: % x", raw[30:38])
	}
}

// A short payload carrying a forged count prefix must fail on the first
// element read, with allocation hints bounded by the bytes actually present.
func TestDecodeForgedCountCapsAllocation(t *testing.T) {
	r := &reader{buf: make([]byte, 10)}
	if got := r.capHint(1<<20, entrySize); got != 0 {
		t.Fatalf("10-byte buffer cannot hold any entry, hint %d", got)
	}
	if got := r.capHint(2, entrySize); got != 0 {
		t.Fatalf("honest-but-oversized count must also be bounded, hint %d", got)
	}
	r = &reader{buf: make([]byte, 3*entrySize)}
	if got := r.capHint(1<<20, entrySize); got != 3 {
		t.Fatalf("expected hint 3, got %d", got)
	}
	if got := r.capHint(2, entrySize); got != 2 {
		t.Fatalf("plausible counts pass through, got %d", got)
	}

	// End to end: one block whose entry count claims the maximum while the
	// payload ends right after the prefix.
	payload := binary.AppendUvarint(nil, 1)
	payload = binary.LittleEndian.AppendUint64(payload, 9)
	payload = binary.AppendUvarint(payload, rootSize)
	payload = append(payload, make([]byte, rootSize)...)
	payload = binary.AppendUvarint(payload, 0)
	payload = binary.AppendUvarint(payload, 1<<20)

	if _, err := Decode(payload); !errors.Is(err, oracle.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
