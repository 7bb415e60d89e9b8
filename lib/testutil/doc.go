// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], [RequireClosed] and [RequireQuiet]
// wrap the select-with-timeout pattern so tests that talk to the
// transport's goroutines never hang. They are the only place in the
// test suite that uses real wall-clock timeouts.
//
// [UniqueID] produces distinguishable payloads ("msg-1", "msg-2")
// without reaching for time.Now.
//
// All helpers call Fatalf on failure.
package testutil
