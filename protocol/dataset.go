// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/bureau-foundation/routerpeer/dataset"
)

// DatasetOp is the operation of a DatasetMessage.
type DatasetOp uint8

const (
	DatasetSubscribe DatasetOp = iota
	DatasetUnsubscribe
	DatasetAppend
	DatasetSetElement
	DatasetDeleteElement
	// DatasetSnapshot is router to peer: the full current contents of
	// a subscribed collection.
	DatasetSnapshot
)

// String returns the snake_case op name.
func (op DatasetOp) String() string {
	switch op {
	case DatasetSubscribe:
		return "subscribe"
	case DatasetUnsubscribe:
		return "unsubscribe"
	case DatasetAppend:
		return "append"
	case DatasetSetElement:
		return "set_element"
	case DatasetDeleteElement:
		return "delete_element"
	case DatasetSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("dataset_op(%d)", uint8(op))
	}
}

// DatasetMessage is a dataset-category message. Paths are relative to
// the sending peer; the router resolves them against the session's
// identity.
type DatasetMessage struct {
	Op      DatasetOp      `cbor:"op"`
	Path    dataset.Path   `cbor:"path"`
	Data    *dataset.Data  `cbor:"data,omitempty"`
	Index   int            `cbor:"index,omitempty"`
	Entries []dataset.Data `cbor:"entries,omitempty"`
}

func (*DatasetMessage) Category() Category  { return CategoryDataset }
func (m *DatasetMessage) Operation() string { return m.Op.String() }
func (*DatasetMessage) sealed()             {}

// NewDatasetSubscribe requests snapshots of the collection at path.
func NewDatasetSubscribe(path dataset.Path) *DatasetMessage {
	return &DatasetMessage{Op: DatasetSubscribe, Path: path}
}

// NewDatasetUnsubscribe cancels a NewDatasetSubscribe.
func NewDatasetUnsubscribe(path dataset.Path) *DatasetMessage {
	return &DatasetMessage{Op: DatasetUnsubscribe, Path: path}
}

// NewDatasetAppend adds data to the end of the collection.
func NewDatasetAppend(path dataset.Path, data dataset.Data) *DatasetMessage {
	return &DatasetMessage{Op: DatasetAppend, Path: path, Data: &data}
}

// NewDatasetSetElement replaces the entry at index.
func NewDatasetSetElement(path dataset.Path, index int, data dataset.Data) *DatasetMessage {
	return &DatasetMessage{Op: DatasetSetElement, Path: path, Index: index, Data: &data}
}

// NewDatasetDeleteElement removes the entry at index.
func NewDatasetDeleteElement(path dataset.Path, index int) *DatasetMessage {
	return &DatasetMessage{Op: DatasetDeleteElement, Path: path, Index: index}
}

// NewDatasetSnapshot carries the full contents of a collection.
func NewDatasetSnapshot(path dataset.Path, entries []dataset.Data) *DatasetMessage {
	return &DatasetMessage{Op: DatasetSnapshot, Path: path, Entries: dataset.CloneEntries(entries)}
}
