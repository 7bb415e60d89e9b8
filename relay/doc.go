// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay is the peer's state machine. It publishes a page with
// two text entries and two lists, keeps local copies of the lists'
// backing collections (recipients and messages), and reacts to inbound
// router traffic:
//
//   - snapshots of the Recp and Messages collections replace the local
//     copies; a Messages snapshot longer than the history limit evicts
//     the oldest entry on the router
//   - text typed into "Add Recp" is appended to Recp
//   - text typed into "Send Msg" is sent as a test_event to every
//     recipient that decodes as a peer identity
//   - test_event deliveries are appended to Messages
//
// Everything else is ignored. The local collections change only when a
// snapshot arrives; handlers never edit them optimistically.
//
// [State] is owned by one goroutine. [Start] sends the session's setup
// commands and returns the initial state; [State.Run] then consumes the
// channel until it closes or the router denies the peer.
package relay
