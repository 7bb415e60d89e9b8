// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries protocol messages between a peer and its
// router.
//
// Messages travel as CBOR envelopes inside length-prefixed frames. A
// frame is a 1-byte compression tag, a 4-byte big-endian length, and the
// payload; [FrameCodec] compresses payloads above a threshold with zstd,
// LZ4 or snappy, and [ReadFrame] accepts any tag. Over TCP frames are
// written back to back; over WebSocket each binary message holds one
// frame. [Dial] picks the transport from the address: ws:// and wss://
// URLs use WebSocket, anything else is a TCP host:port.
//
// Every connection starts with a challenge-response handshake binding it
// to the peer's Ed25519 identity: the peer sends a hello naming its
// identity, the router answers with a random 32-byte nonce, the peer
// signs nonce||identity, and the router replies with a welcome or a
// rejection ([HandshakeError]).
//
// [Client] is the peer's session channel. It walks its address list,
// backs off between failed rounds, and on every reconnect replays the
// commands that define the session (identity properties, dataset and
// router subscriptions, the published page) before resuming its send
// queue. Lifecycle changes and router messages arrive through
// [Client.Receive] as [Response] values; a router Denied ends the client
// with [ResponseDenied].
//
// [Server] is the router end, used by tests and local development.
package transport
