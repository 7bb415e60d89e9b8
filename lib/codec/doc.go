// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the router-peer's standard CBOR configuration.
//
// Everything that crosses the router connection is CBOR: the handshake
// records, the message envelopes, and the UI page tree embedded in a
// set-page command. Configuration and keyfiles on disk are YAML and
// JSONC respectively and never go through this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same message always produces the same bytes, which keeps frame
// compression effective and makes captured traffic diffable.
//
// Every frame payload is a complete CBOR item:
//
//	data, err := codec.Marshal(envelope)
//	err = codec.Unmarshal(data, &envelope)
//
// Diagnose renders a payload in RFC 8949 diagnostic notation for
// debug logging.
//
// # Struct Tags
//
// Wire types carry `cbor` tags with short keys. Types that are also
// written to JSON (the keyfile) use `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both tags on one field.
package codec
