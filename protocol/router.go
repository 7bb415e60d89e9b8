// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/identity"
)

// RouterOp is the operation of a RouterMessage.
type RouterOp uint8

const (
	// Authorization lifecycle, router to peer.
	RouterPending RouterOp = iota
	RouterApprovalCode
	RouterApproved
	RouterDenied

	// Event routing.
	RouterSendEvent
	RouterEvent
	RouterSubscribe
	RouterUnsubscribe

	// Directory.
	RouterSubscribeDir
	RouterUnsubscribeDir
	RouterAddIdentity
	RouterRemoveIdentity
	RouterSetIdentityProperty

	// Chord.
	RouterSubscribeChord
	RouterUnsubscribeChord
	RouterChordAddrs
)

var routerOpNames = [...]string{
	RouterPending:             "pending",
	RouterApprovalCode:        "approval_code",
	RouterApproved:            "approved",
	RouterDenied:              "denied",
	RouterSendEvent:           "send_event",
	RouterEvent:               "event",
	RouterSubscribe:           "subscribe",
	RouterUnsubscribe:         "unsubscribe",
	RouterSubscribeDir:        "subscribe_dir",
	RouterUnsubscribeDir:      "unsubscribe_dir",
	RouterAddIdentity:         "add_identity",
	RouterRemoveIdentity:      "remove_identity",
	RouterSetIdentityProperty: "set_identity_property",
	RouterSubscribeChord:      "subscribe_chord",
	RouterUnsubscribeChord:    "unsubscribe_chord",
	RouterChordAddrs:          "chord_addrs",
}

// String returns the snake_case op name.
func (op RouterOp) String() string {
	if int(op) < len(routerOpNames) {
		return routerOpNames[op]
	}
	return fmt.Sprintf("router_op(%d)", uint8(op))
}

// RouterMessage is a router-category message. Which fields are set
// depends on Op:
//
//   - ApprovalCode: Code
//   - SendEvent: Name, Recipients, Data
//   - Event: Name, From, Data
//   - Subscribe, Unsubscribe: Name
//   - AddIdentity, RemoveIdentity: Relation
//   - SetIdentityProperty: Key, Value (and Relation on directory echoes)
//   - ChordAddrs: Addresses
//   - SubscribeChord, UnsubscribeChord: Address
type RouterMessage struct {
	Op         RouterOp            `cbor:"op"`
	Name       string              `cbor:"name,omitempty"`
	Key        string              `cbor:"key,omitempty"`
	Value      string              `cbor:"value,omitempty"`
	Code       string              `cbor:"code,omitempty"`
	Recipients []identity.Relation `cbor:"to,omitempty"`
	From       *identity.Relation  `cbor:"from,omitempty"`
	Data       *dataset.Data       `cbor:"data,omitempty"`
	Relation   *identity.Relation  `cbor:"relation,omitempty"`
	Address    string              `cbor:"addr,omitempty"`
	Addresses  []string            `cbor:"addrs,omitempty"`
}

func (*RouterMessage) Category() Category  { return CategoryRouter }
func (m *RouterMessage) Operation() string { return m.Op.String() }
func (*RouterMessage) sealed()             {}

// Payload returns Data, or the null entry when it is unset.
func (m *RouterMessage) Payload() dataset.Data {
	if m.Data == nil {
		return dataset.Null()
	}
	return *m.Data
}

// NewSetIdentityProperty publishes a property of this peer's identity.
func NewSetIdentityProperty(key, value string) *RouterMessage {
	return &RouterMessage{Op: RouterSetIdentityProperty, Key: key, Value: value}
}

// NewRouterSubscribe subscribes to events with the given name.
func NewRouterSubscribe(name string) *RouterMessage {
	return &RouterMessage{Op: RouterSubscribe, Name: name}
}

// NewRouterUnsubscribe cancels a NewRouterSubscribe.
func NewRouterUnsubscribe(name string) *RouterMessage {
	return &RouterMessage{Op: RouterUnsubscribe, Name: name}
}

// NewSendEvent sends a named event to recipients.
func NewSendEvent(name string, recipients []identity.Relation, data dataset.Data) *RouterMessage {
	return &RouterMessage{
		Op:         RouterSendEvent,
		Name:       name,
		Recipients: slices.Clone(recipients),
		Data:       &data,
	}
}

// NewEvent is the delivery of a SendEvent to one recipient.
func NewEvent(name string, from identity.Relation, data dataset.Data) *RouterMessage {
	return &RouterMessage{Op: RouterEvent, Name: name, From: &from, Data: &data}
}

// NewApprovalCode carries the code an operator enters on the router to
// admit this peer.
func NewApprovalCode(code string) *RouterMessage {
	return &RouterMessage{Op: RouterApprovalCode, Code: code}
}

// NewRouterStatus returns a payload-free router message, used for the
// Pending, Approved and Denied lifecycle notifications.
func NewRouterStatus(op RouterOp) *RouterMessage {
	return &RouterMessage{Op: op}
}

// NewAddIdentity announces a directory entry.
func NewAddIdentity(relation identity.Relation) *RouterMessage {
	return &RouterMessage{Op: RouterAddIdentity, Relation: &relation}
}

// NewChordAddrs lists chord member addresses.
func NewChordAddrs(addresses []string) *RouterMessage {
	return &RouterMessage{Op: RouterChordAddrs, Addresses: slices.Clone(addresses)}
}
