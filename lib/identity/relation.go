// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import "fmt"

// Role is the part an identity plays on the router.
type Role uint8

const (
	// RolePeer is an ordinary participant. Recipient lists built from
	// user input are always peers.
	RolePeer Role = iota
	// RoleHost is the router itself.
	RoleHost
)

// String returns "peer" or "host".
func (r Role) String() string {
	switch r {
	case RolePeer:
		return "peer"
	case RoleHost:
		return "host"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RolePeer, RoleHost:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("identity: unknown role %d", uint8(r))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(data []byte) error {
	switch string(data) {
	case "peer":
		*r = RolePeer
	case "host":
		*r = RoleHost
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidRelation, data)
	}
	return nil
}

// Relation is a peer reference: an identity and the role it is
// addressed in.
type Relation struct {
	Identity Identity `cbor:"id"`
	Role     Role     `cbor:"role"`
}

// PeerFromBase64 decodes text as a peer identity. The error wraps
// ErrInvalidRelation for any malformed input.
func PeerFromBase64(text string) (Relation, error) {
	identity, err := ParseIdentity(text)
	if err != nil {
		return Relation{}, err
	}
	return Relation{Identity: identity, Role: RolePeer}, nil
}

// HostFromBase64 decodes text as a host identity.
func HostFromBase64(text string) (Relation, error) {
	identity, err := ParseIdentity(text)
	if err != nil {
		return Relation{}, err
	}
	return Relation{Identity: identity, Role: RoleHost}, nil
}

// String returns "role:fingerprint", suitable for logs.
func (r Relation) String() string {
	return r.Role.String() + ":" + r.Identity.Fingerprint()
}
