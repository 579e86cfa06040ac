package notifier

import (
	"encoding/base64"
	"strings"
	"testing"
)

const testSeed = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func TestSignerRoundtrip(t *testing.T) {
	signer, err := NewSigner(testSeed)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	payload := []byte(`{"transfer_id":"t1"}`)
	sig := signer.Sign(payload)

	if !signer.Verify(payload, sig) {
		t.Fatalf("expected signature to verify")
	}
	if signer.Verify([]byte("tampered"), sig) {
		t.Fatalf("expected tampered payload to fail verification")
	}
	if signer.Verify(payload, "not-base64!") {
		t.Fatalf("expected malformed signature to fail verification")
	}
}

func TestSignerPublicKeyIsStable(t *testing.T) {
	a, err := NewSigner(testSeed)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	b, err := NewSigner(testSeed)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	if a.PublicKey() != b.PublicKey() {
		t.Fatalf("expected identical seeds to derive the same public key")
	}

	raw, err := base64.RawURLEncoding.DecodeString(a.PublicKey())
	if err != nil || len(raw) != 32 {
		t.Fatalf("expected 32-byte public key, got %d bytes err=%v", len(raw), err)
	}
}

func TestNewSignerRejectsBadSeeds(t *testing.T) {
	if _, err := NewSigner("too-short"); err == nil {
		t.Fatalf("expected error for short seed")
	}
	if _, err := NewSigner(strings.Repeat("!", 43)); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}
