package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Crypto-condition support. Conditions are named-information URIs of the form
//
//	ni:///sha-256;<base64url digest>?fpt=preimage-sha-256&cost=7
//
// and fulfillments are the base64url-encoded preimage. Only the
// preimage-sha-256 fingerprint type is supported; anything else verifies as
// invalid rather than failing.

const fingerprintPreimageSHA256 = "preimage-sha-256"

var (
	ErrInvalidCondition = errors.New("invalid condition URI")
)

// Condition is a parsed execution or cancellation condition.
type Condition struct {
	Fingerprint     []byte
	FingerprintType string
	Cost            int64
}

// ParseCondition parses a named-information condition URI.
func ParseCondition(uri string) (*Condition, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, ErrInvalidCondition
	}

	if u.Scheme != "ni" {
		return nil, ErrInvalidCondition
	}

	// Opaque path is "/sha-256;<digest>".
	path := strings.TrimPrefix(u.Path, "/")
	algo, digest, ok := strings.Cut(path, ";")
	if !ok || algo != "sha-256" || digest == "" {
		return nil, ErrInvalidCondition
	}

	fingerprint, err := base64.RawURLEncoding.DecodeString(digest)
	if err != nil {
		return nil, ErrInvalidCondition
	}
	if len(fingerprint) != sha256.Size {
		return nil, ErrInvalidCondition
	}

	q := u.Query()

	var cost int64
	if costStr := q.Get("cost"); costStr != "" {
		cost, err = strconv.ParseInt(costStr, 10, 64)
		if err != nil || cost < 0 {
			return nil, ErrInvalidCondition
		}
	}

	return &Condition{
		Fingerprint:     fingerprint,
		FingerprintType: q.Get("fpt"),
		Cost:            cost,
	}, nil
}

// VerifyFulfillment checks a base64url fulfillment preimage against a
// condition URI. It is pure and deterministic: malformed or unsupported
// conditions report false, never an error.
func VerifyFulfillment(conditionURI, fulfillment string) bool {
	cond, err := ParseCondition(conditionURI)
	if err != nil {
		return false
	}

	if cond.FingerprintType != fingerprintPreimageSHA256 {
		return false
	}

	preimage, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(fulfillment, "="))
	if err != nil {
		return false
	}

	// The cost of a preimage condition is the preimage length.
	if cond.Cost > 0 && int64(len(preimage)) != cond.Cost {
		return false
	}

	digest := sha256.Sum256(preimage)

	return subtle.ConstantTimeCompare(digest[:], cond.Fingerprint) == 1
}
