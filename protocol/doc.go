// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the messages exchanged between a peer and its
// router.
//
// Every message belongs to one of four categories, each a concrete type
// implementing the sealed [Message] interface:
//
//   - [*RouterMessage] -- authorization lifecycle, event routing,
//     directory and chord operations
//   - [*DatasetMessage] -- collection subscriptions, mutations and
//     snapshots
//   - [*UIMessage] -- page publication and input events
//   - [*ErrorMessage] -- a protocol error reported by the router
//
// Each category carries an operation enum; consumers switch over the
// concrete type and then over Op. The same types serve both directions:
// a peer sends commands (for example [DatasetAppend]) and receives
// events (for example a dataset Snapshot) built from the same struct.
//
// On the wire a message travels inside an [Envelope]: a CBOR map with
// exactly one category field set. [Encode] and [Decode] convert between
// the two.
package protocol
