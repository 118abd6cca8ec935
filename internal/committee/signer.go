package committee

import (
	"crypto/rand"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"oracle-pricefeed/internal/oracle"
)

// Signer produces committee signatures. It backs the batch simulator and the
// pipeline tests; real committees sign out of process.
type Signer struct {
	sk  *big.Int
	pub bls12381.G1Affine
}

// NewSigner generates a fresh random key pair.
func NewSigner() (*Signer, error) {
	sk, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("sample secret key: %w", err)
	}
	return NewSignerFromSecret(sk), nil
}

// NewSignerFromSecret builds a deterministic signer from a known scalar.
func NewSignerFromSecret(sk *big.Int) *Signer {
	s := &Signer{sk: new(big.Int).Mod(sk, fr.Modulus())}
	_, _, g1, _ := bls12381.Generators()
	s.pub.ScalarMultiplication(&g1, s.sk)
	return s
}

// Secret returns a copy of the secret scalar.
func (s *Signer) Secret() *big.Int {
	return new(big.Int).Set(s.sk)
}

// PublicKey returns the compressed 48-byte public key.
func (s *Signer) PublicKey() [oracle.PublicKeySize]byte {
	return s.pub.Bytes()
}

// Sign returns the compressed 96-byte signature over message.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	hm, err := bls12381.HashToG2(message, []byte(DST))
	if err != nil {
		return nil, fmt.Errorf("hash to curve: %w", err)
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&hm, s.sk)
	raw := sig.Bytes()
	return raw[:], nil
}
