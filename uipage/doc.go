// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package uipage models the pages a peer publishes to the router's UI.
//
// A [Page] is a tree of [Element]s rooted at one container. Containers
// (Rows, Columns) lay out their children; a container bound to a
// dataset is a list: the router renders its first child once per
// collection entry, resolving [DataPart] references in that child's
// content against the entry. Leaf kinds are Text, TextEntry and Button.
// Elements with an ID report input back to the owning peer.
//
// [PageManager] owns a page under construction and records every edit
// as a [Change], so a caller that has already published the page can
// push incremental updates. A caller publishing the whole page at once
// discards the accumulated changes with [PageManager.TakeChanges].
package uipage
