// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// router-peer joins a router as a single relay peer. It publishes a
// page with two text entries and two lists, keeps the lists' backing
// collections (recipients and messages) in sync with the router, and
// forwards test_event messages between the peers named in its
// recipient list.
//
// State lives in two files: the client state file (--config, YAML,
// created with a fixed router address of localhost:1930 on first run)
// and the keyfile holding the peer's Ed25519 identity (generated on
// first run). A lock next to the state file keeps two processes from
// sharing it.
//
// Exit codes: 0 when the router channel closes or the process is
// interrupted, 2 when the router denies the peer, 1 for everything
// else.
package main
