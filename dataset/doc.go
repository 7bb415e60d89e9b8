// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset defines the addressing and value types of the
// router's replicated collections.
//
// A [Path] names a collection relative to the peer that owns it:
// private paths are visible only to the owner, public paths to anyone
// who subscribes. The router stores collections per owner, so a Path is
// [Path.Resolve]d against an identity before it is embedded in a UI
// page binding.
//
// Entries are [Data] values: a small tagged union (text, integer,
// float, bytes, array, null). The relay only ever produces and consumes
// text entries; the other variants exist because the router accepts
// them from other peers and a snapshot must be held verbatim.
package dataset
