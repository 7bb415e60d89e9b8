// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the transport's
// reconnect loop.
//
// Production code calls Real(). Tests call Fake() and drive time with
// Advance, using WaitForTimers to block until the code under test has
// registered the wait it is about to perform:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	client := transport.NewClient(transport.ClientConfig{Clock: c, ...})
//	c.WaitForTimers(1)          // reconnect loop is now backing off
//	c.Advance(time.Second)      // fire the backoff deterministically
package clock
