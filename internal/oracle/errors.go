package oracle

import "errors"

// Malformed input. Always fatal to the call, never retried.
var (
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrMalformedProofShape = errors.New("malformed proof shape")
	ErrInvalidBoolEncoding = errors.New("invalid bool encoding")
)

// Authentication and authorization failures.
var (
	ErrInvalidSignature    = errors.New("invalid committee signature")
	ErrCommitteeKeyMissing = errors.New("committee key missing")
	ErrInvalidKeyLength    = errors.New("invalid public key length")
	ErrInvalidPublicKey    = errors.New("invalid public key encoding")
	ErrUnauthorized        = errors.New("caller not authorized")
)

// Proof-integrity failures.
var (
	ErrInvalidMerkleProof = errors.New("invalid merkle proof")
	ErrUnconsumedProof    = errors.New("unconsumed proof hashes")
)

// Freshness and ordering violations.
var (
	ErrRoundOutOfBounds = errors.New("round out of bounds")
	ErrDuplicateRoot    = errors.New("duplicate root")
)

// Domain errors on read paths. Local to a single call, never touch state.
var (
	ErrSamePairID        = errors.New("derived price requires distinct pairs")
	ErrInvalidOperation  = errors.New("invalid derived price operation")
	ErrDecimalOutOfRange = errors.New("decimal exponent out of range")
	ErrZeroDivisor       = errors.New("derived price divisor is zero")
	ErrNotFound          = errors.New("pair not found")
)

// Defensive guards. Should be unreachable for realistic price magnitudes;
// surfaced loudly instead of clamped so a numeric-range regression is visible.
var (
	ErrVarianceBitWidthExceeded = errors.New("variance exceeds 256-bit width")
)
