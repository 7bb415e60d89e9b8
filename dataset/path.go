// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/routerpeer/lib/identity"
)

// Scope controls who can read a collection.
type Scope uint8

const (
	// ScopePrivate collections are readable only by their owner.
	ScopePrivate Scope = iota
	// ScopePublic collections are readable by any subscriber.
	ScopePublic
)

// String returns "private" or "public".
func (s Scope) String() string {
	switch s {
	case ScopePrivate:
		return "private"
	case ScopePublic:
		return "public"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Path names a collection relative to its owner.
type Path struct {
	Scope Scope    `cbor:"scope"`
	Parts []string `cbor:"parts"`
}

// NewPrivatePath returns a private path with the given components.
func NewPrivatePath(parts ...string) Path {
	return Path{Scope: ScopePrivate, Parts: slices.Clone(parts)}
}

// NewPublicPath returns a public path with the given components.
func NewPublicPath(parts ...string) Path {
	return Path{Scope: ScopePublic, Parts: slices.Clone(parts)}
}

// Equal reports whether p and other name the same collection.
func (p Path) Equal(other Path) bool {
	return p.Scope == other.Scope && slices.Equal(p.Parts, other.Parts)
}

// String returns "scope:part/part", e.g. "private:Recp".
func (p Path) String() string {
	return p.Scope.String() + ":" + strings.Join(p.Parts, "/")
}

// Resolve binds p to its owner.
func (p Path) Resolve(owner identity.Identity) AbsolutePath {
	return AbsolutePath{Owner: owner, Scope: p.Scope, Parts: slices.Clone(p.Parts)}
}

// AbsolutePath is a Path bound to the identity that owns it.
type AbsolutePath struct {
	Owner identity.Identity `cbor:"owner"`
	Scope Scope             `cbor:"scope"`
	Parts []string          `cbor:"parts"`
}

// Relative drops the owner.
func (a AbsolutePath) Relative() Path {
	return Path{Scope: a.Scope, Parts: slices.Clone(a.Parts)}
}

// Equal reports whether a and other name the same collection of the
// same owner.
func (a AbsolutePath) Equal(other AbsolutePath) bool {
	return a.Owner == other.Owner && a.Relative().Equal(other.Relative())
}

// String returns "fingerprint/scope:parts".
func (a AbsolutePath) String() string {
	return a.Owner.Fingerprint() + "/" + a.Relative().String()
}
