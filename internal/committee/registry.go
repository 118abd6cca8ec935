// Package committee maintains the registry of reporting-committee public keys
// and verifies BLS signatures over Merkle roots. Keys are 48-byte compressed
// BLS12-381 G1 points; signatures are 96-byte compressed G2 points, with
// messages hashed to G2 under the standard minimal-pubkey-size ciphersuite.
package committee

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/container"
	"oracle-pricefeed/internal/oracle"
)

// DST is the hash-to-curve domain separation tag for committee signatures.
// Changing it invalidates every existing signature.
const DST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"

const signatureSize = 96

type registeredKey struct {
	raw   [oracle.PublicKeySize]byte
	point bls12381.G1Affine
}

// Registry maps committee identifiers to their public keys.
type Registry struct {
	keys   *container.IndexedMap[uint64, registeredKey]
	negG1  bls12381.G1Affine
	logger zerolog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	_, _, g1, _ := bls12381.Generators()
	var neg bls12381.G1Affine
	neg.Neg(&g1)
	return &Registry{
		keys:   container.NewIndexedMap[uint64, registeredKey](),
		negG1:  neg,
		logger: logger.With().Str("component", "committee_registry").Logger(),
	}
}

// Register installs or replaces the public key for a committee. The key must
// be exactly 48 bytes and decode to a valid point in the G1 subgroup.
func (r *Registry) Register(committeeID uint64, publicKey []byte) error {
	if len(publicKey) != oracle.PublicKeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", oracle.ErrInvalidKeyLength, len(publicKey), oracle.PublicKeySize)
	}

	var key registeredKey
	copy(key.raw[:], publicKey)
	if _, err := key.point.SetBytes(publicKey); err != nil {
		return fmt.Errorf("%w: %v", oracle.ErrInvalidPublicKey, err)
	}

	replaced := r.keys.Put(committeeID, key)
	r.logger.Info().Uint64("committee_id", committeeID).Bool("replaced", replaced).Msg("committee key registered")
	return nil
}

// Remove deletes a committee's key.
func (r *Registry) Remove(committeeID uint64) error {
	if !r.keys.Remove(committeeID) {
		return fmt.Errorf("committee %d: %w", committeeID, oracle.ErrCommitteeKeyMissing)
	}
	r.logger.Info().Uint64("committee_id", committeeID).Msg("committee key removed")
	return nil
}

// PublicKey returns the registered raw key bytes.
func (r *Registry) PublicKey(committeeID uint64) ([oracle.PublicKeySize]byte, error) {
	key, ok := r.keys.Get(committeeID)
	if !ok {
		return [oracle.PublicKeySize]byte{}, fmt.Errorf("committee %d: %w", committeeID, oracle.ErrCommitteeKeyMissing)
	}
	return key.raw, nil
}

// Len returns the number of registered committees.
func (r *Registry) Len() int {
	return r.keys.Len()
}

// Verify checks signature over message for the given committee. It fails
// closed with ErrCommitteeKeyMissing when no key is registered; a signature
// that does not parse or does not verify yields (false, nil) with no side
// effects.
func (r *Registry) Verify(committeeID uint64, message, signature []byte) (bool, error) {
	key, ok := r.keys.Get(committeeID)
	if !ok {
		return false, fmt.Errorf("committee %d: %w", committeeID, oracle.ErrCommitteeKeyMissing)
	}

	if len(signature) != signatureSize {
		return false, nil
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(signature); err != nil {
		return false, nil
	}

	hm, err := bls12381.HashToG2(message, []byte(DST))
	if err != nil {
		return false, fmt.Errorf("hash to curve: %w", err)
	}

	// e(pk, H(m)) * e(-g1, sig) == 1  <=>  e(pk, H(m)) == e(g1, sig)
	ok, err = bls12381.PairingCheck(
		[]bls12381.G1Affine{key.point, r.negG1},
		[]bls12381.G2Affine{hm, sig},
	)
	if err != nil {
		return false, fmt.Errorf("pairing check: %w", err)
	}
	return ok, nil
}
