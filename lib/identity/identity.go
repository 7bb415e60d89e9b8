// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrInvalidRelation is wrapped by every decoding failure in this
// package. Callers that drop bad recipient entries test for it with
// errors.Is.
var ErrInvalidRelation = errors.New("identity: invalid peer reference")

// Identity is an Ed25519 public key. The zero value is not a valid
// identity; use IsZero to check.
type Identity [ed25519.PublicKeySize]byte

// fingerprintDomainKey separates identity fingerprints from any other
// BLAKE3 keyed hash of the same 32 bytes.
var fingerprintDomainKey = [32]byte{
	'r', 'o', 'u', 't', 'e', 'r', 'p', 'e', 'e', 'r', '.', 'i', 'd', 'e', 'n', 't',
	'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ParseIdentity decodes the base64 text form of an identity.
// Surrounding whitespace is ignored.
func ParseIdentity(text string) (Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidRelation, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return Identity{}, fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidRelation, len(raw), ed25519.PublicKeySize)
	}
	var identity Identity
	copy(identity[:], raw)
	if identity.IsZero() {
		return Identity{}, fmt.Errorf("%w: all-zero key", ErrInvalidRelation)
	}
	return identity, nil
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i == Identity{} }

// Base64 returns the canonical text form.
func (i Identity) Base64() string {
	return base64.StdEncoding.EncodeToString(i[:])
}

// String returns the canonical text form.
func (i Identity) String() string { return i.Base64() }

// PublicKey returns the identity as an ed25519.PublicKey.
func (i Identity) PublicKey() ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, i[:])
	return key
}

// Fingerprint returns a short, log-friendly hex digest of the identity.
// Two identities with the same fingerprint are not guaranteed equal;
// never use it for authorization.
func (i Identity) Fingerprint() string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(i[:])
	return hex.EncodeToString(hasher.Sum(nil)[:8])
}

// Verify reports whether signature is a valid signature of message by
// this identity.
func (i Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i[:], message, signature)
}

// MarshalText implements encoding.TextMarshaler.
func (i Identity) MarshalText() ([]byte, error) {
	if i.IsZero() {
		return []byte{}, nil
	}
	return []byte(i.Base64()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// produces the zero identity.
func (i *Identity) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Identity{}
		return nil
	}
	parsed, err := ParseIdentity(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
