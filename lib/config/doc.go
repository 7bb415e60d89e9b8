// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for router-peer.
//
// Configuration is loaded from a single file specified by either the
// ROUTER_PEER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile] or [LoadOrCreate]). There is no discovery and no
// automatic file search.
//
// The file doubles as the client's persistent state: [LoadOrCreate]
// writes a fresh file with the router's fixed address when none exists,
// so a first run connects to localhost:1930 without further setup and
// later runs reuse whatever the operator edited.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs.
//
// Variable expansion is performed on identity.keyfile and log.file
// after loading: ${HOME} and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Router, Identity, Relay, Log
//   - [Default] -- returns a Config with development defaults
//   - [Load], [LoadFile] and [LoadOrCreate] -- the entry points
//   - [Duration] -- time.Duration that reads and writes "10s" in YAML
//
// This package depends on no other router-peer packages.
package config
