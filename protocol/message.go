// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// Category identifies a message family.
type Category uint8

const (
	CategoryRouter Category = iota + 1
	CategoryDataset
	CategoryUI
	CategoryError
)

// String returns "router", "dataset", "ui" or "error".
func (c Category) String() string {
	switch c {
	case CategoryRouter:
		return "router"
	case CategoryDataset:
		return "dataset"
	case CategoryUI:
		return "ui"
	case CategoryError:
		return "error"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Message is implemented by *RouterMessage, *DatasetMessage, *UIMessage
// and *ErrorMessage. The unexported method closes the set.
type Message interface {
	Category() Category
	// Operation returns the op name for logs.
	Operation() string
	sealed()
}

// ErrorMessage reports a protocol error from the router.
type ErrorMessage struct {
	Text string `cbor:"text"`
}

// NewError returns an error message.
func NewError(text string) *ErrorMessage { return &ErrorMessage{Text: text} }

func (*ErrorMessage) Category() Category { return CategoryError }
func (*ErrorMessage) Operation() string  { return "error" }
func (*ErrorMessage) sealed()            {}
func (m *ErrorMessage) Error() string    { return "router error: " + m.Text }
