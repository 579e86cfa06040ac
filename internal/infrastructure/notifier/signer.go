package notifier

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Signer produces detached ed25519 signatures over notification payloads so
// subscribers can verify that a notification originated from this node.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner builds a Signer from a base64url-encoded 32-byte seed.
func NewSigner(encodedSeed string) (*Signer, error) {
	seed, err := base64.RawURLEncoding.DecodeString(encodedSeed)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	return &Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign returns the base64url-encoded signature of payload.
func (s *Signer) Sign(payload []byte) string {
	return base64.RawURLEncoding.EncodeToString(ed25519.Sign(s.key, payload))
}

// PublicKey returns the base64url-encoded verification key.
func (s *Signer) PublicKey() string {
	return base64.RawURLEncoding.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// Verify checks a signature produced by Sign against the signer's own key.
func (s *Signer) Verify(payload []byte, encodedSig string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return false
	}

	return ed25519.Verify(s.key.Public().(ed25519.PublicKey), payload, sig)
}
