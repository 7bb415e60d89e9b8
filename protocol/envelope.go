// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/routerpeer/lib/codec"
)

// ErrMalformed is wrapped by Decode when the envelope does not hold
// exactly one message.
var ErrMalformed = errors.New("protocol: malformed envelope")

// Envelope is the wire form of a Message: exactly one field is non-nil.
type Envelope struct {
	Router  *RouterMessage  `cbor:"router,omitempty"`
	Dataset *DatasetMessage `cbor:"dataset,omitempty"`
	UI      *UIMessage      `cbor:"ui,omitempty"`
	Error   *ErrorMessage   `cbor:"error,omitempty"`
}

// Wrap places message in an envelope.
func Wrap(message Message) (Envelope, error) {
	switch m := message.(type) {
	case *RouterMessage:
		if m != nil {
			return Envelope{Router: m}, nil
		}
	case *DatasetMessage:
		if m != nil {
			return Envelope{Dataset: m}, nil
		}
	case *UIMessage:
		if m != nil {
			return Envelope{UI: m}, nil
		}
	case *ErrorMessage:
		if m != nil {
			return Envelope{Error: m}, nil
		}
	}
	return Envelope{}, fmt.Errorf("%w: cannot wrap %T", ErrMalformed, message)
}

// Message returns the single message in the envelope.
func (e Envelope) Message() (Message, error) {
	var found []Message
	if e.Router != nil {
		found = append(found, e.Router)
	}
	if e.Dataset != nil {
		found = append(found, e.Dataset)
	}
	if e.UI != nil {
		found = append(found, e.UI)
	}
	if e.Error != nil {
		found = append(found, e.Error)
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("%w: no message", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %d categories set", ErrMalformed, len(found))
	}
}

// Encode returns the CBOR envelope for message.
func Encode(message Message) ([]byte, error) {
	envelope, err := Wrap(message)
	if err != nil {
		return nil, err
	}
	data, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", message.Category(), err)
	}
	return data, nil
}

// Decode parses a CBOR envelope.
func Decode(data []byte) (Message, error) {
	var envelope Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return envelope.Message()
}
