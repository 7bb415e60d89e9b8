// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity holds the router-peer's cryptographic identity and
// the peer references it addresses events to.
//
// An [Identity] is an Ed25519 public key. Its canonical text form is
// standard base64 of the 32 key bytes; that is what users paste into
// the "Add Recp" field and what [PeerFromBase64] decodes. A [Relation]
// pairs an Identity with a [Role] (peer or host) and is the addressing
// unit for routed events.
//
// The private half lives in a [Keypair], loaded from a JSONC keyfile:
//
//	{
//	  // this machine's router identity
//	  "public_key": "base64...",
//	  "private_key": "base64...",
//	}
//
// [LoadOrGenerateKeyfile] uses the keyfile when it exists and creates
// one otherwise, so a fresh install keeps a stable identity across
// restarts.
package identity
