package committee

import (
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/oracle"
)

func newTestSigner(t *testing.T, seed int64) *Signer {
	t.Helper()
	return NewSignerFromSecret(big.NewInt(seed))
}

func TestRegisterAndVerify(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	signer := newTestSigner(t, 12345)

	pub := signer.PublicKey()
	if err := reg.Register(1, pub[:]); err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", reg.Len())
	}

	msg := []byte("price root")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := reg.Verify(1, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("valid signature should verify")
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	signer := newTestSigner(t, 777)

	pub := signer.PublicKey()
	if err := reg.Register(1, pub[:]); err != nil {
		t.Fatalf("register: %v", err)
	}

	sig, err := signer.Sign([]byte("signed message"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := reg.Verify(1, []byte("other message"), sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("signature over a different message must not verify")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	registered := newTestSigner(t, 1)
	imposter := newTestSigner(t, 2)

	pub := registered.PublicKey()
	if err := reg.Register(1, pub[:]); err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := []byte("price root")
	sig, err := imposter.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := reg.Verify(1, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("signature from an unregistered key must not verify")
	}
}

func TestVerifyMissingCommittee(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	if _, err := reg.Verify(99, []byte("m"), make([]byte, signatureSize)); !errors.Is(err, oracle.ErrCommitteeKeyMissing) {
		t.Fatalf("expected ErrCommitteeKeyMissing, got %v", err)
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	signer := newTestSigner(t, 5)

	pub := signer.PublicKey()
	if err := reg.Register(1, pub[:]); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Wrong length.
	if ok, err := reg.Verify(1, []byte("m"), []byte{1, 2, 3}); err != nil || ok {
		t.Fatalf("short signature should be a clean reject, ok=%t err=%v", ok, err)
	}

	// Right length, not a curve point.
	garbage := make([]byte, signatureSize)
	for i := range garbage {
		garbage[i] = 0xff
	}
	if ok, err := reg.Verify(1, []byte("m"), garbage); err != nil || ok {
		t.Fatalf("undecodable signature should be a clean reject, ok=%t err=%v", ok, err)
	}
}

func TestRegisterRejectsBadKeys(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	if err := reg.Register(1, make([]byte, 20)); !errors.Is(err, oracle.ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}

	garbage := make([]byte, oracle.PublicKeySize)
	for i := range garbage {
		garbage[i] = 0xff
	}
	if err := reg.Register(1, garbage); !errors.Is(err, oracle.ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("failed registrations must not be stored")
	}
}

func TestRegisterReplacesKey(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	first := newTestSigner(t, 10)
	second := newTestSigner(t, 20)

	pub1 := first.PublicKey()
	pub2 := second.PublicKey()
	if err := reg.Register(1, pub1[:]); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(1, pub2[:]); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	got, err := reg.PublicKey(1)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if got != pub2 {
		t.Fatal("re-registration should replace the stored key")
	}

	msg := []byte("m")
	sig, err := second.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if ok, err := reg.Verify(1, msg, sig); err != nil || !ok {
		t.Fatalf("new key should verify, ok=%t err=%v", ok, err)
	}
}

func TestRemove(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	signer := newTestSigner(t, 3)

	pub := signer.PublicKey()
	if err := reg.Register(1, pub[:]); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := reg.Remove(1); !errors.Is(err, oracle.ErrCommitteeKeyMissing) {
		t.Fatalf("expected ErrCommitteeKeyMissing, got %v", err)
	}
	if _, err := reg.PublicKey(1); !errors.Is(err, oracle.ErrCommitteeKeyMissing) {
		t.Fatalf("expected ErrCommitteeKeyMissing, got %v", err)
	}
}
