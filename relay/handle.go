// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/protocol"
)

// Handle reacts to one inbound message. Messages the relay has no use
// for are ignored.
func (s *State) Handle(ctx context.Context, message protocol.Message) {
	s.logger.Debug("router message",
		"category", message.Category(), "op", message.Operation())

	switch m := message.(type) {
	case *protocol.DatasetMessage:
		s.handleDataset(ctx, m)
	case *protocol.UIMessage:
		s.handleUI(ctx, m)
	case *protocol.RouterMessage:
		s.handleRouter(ctx, m)
	case *protocol.ErrorMessage:
		s.logger.Warn("router reported an error", "error", m.Text)
	}
}

func (s *State) handleDataset(ctx context.Context, message *protocol.DatasetMessage) {
	if message.Op != protocol.DatasetSnapshot {
		return
	}
	switch {
	case message.Path.Equal(RecipientsPath()):
		s.recipients = dataset.CloneEntries(message.Entries)
	case message.Path.Equal(MessagesPath()):
		s.messages = dataset.CloneEntries(message.Entries)
		if len(s.messages) > s.historyLimit {
			// One eviction per snapshot; the router's next snapshot
			// triggers another if still over the limit.
			s.send(ctx, protocol.NewDatasetDeleteElement(MessagesPath(), 0))
		}
	default:
		s.logger.Debug("ignoring snapshot for unknown collection", "dataset", message.Path.String())
	}
}

func (s *State) handleUI(ctx context.Context, message *protocol.UIMessage) {
	// Page browsing and publishing traffic is for viewers; the relay
	// only acts on input to its own page.
	if message.Op != protocol.UIInput {
		return
	}

	text, ok := message.InputValue().AsText()
	if !ok {
		return
	}
	switch message.ElementID {
	case AddRecipientID:
		s.send(ctx, protocol.NewDatasetAppend(RecipientsPath(), dataset.Text(text)))
	case SendMessageID:
		s.send(ctx, protocol.NewSendEvent(EventName, s.recipientRelations(), dataset.Text(text)))
	}
}

// recipientRelations decodes the recipient collection. Entries that
// are not text or not a valid identity are skipped.
func (s *State) recipientRelations() []identity.Relation {
	var relations []identity.Relation
	for _, entry := range s.recipients {
		text, ok := entry.AsText()
		if !ok {
			continue
		}
		relation, err := identity.PeerFromBase64(text)
		if err != nil {
			s.logger.Debug("skipping undecodable recipient", "error", err)
			continue
		}
		relations = append(relations, relation)
	}
	return relations
}

func (s *State) handleRouter(ctx context.Context, message *protocol.RouterMessage) {
	switch message.Op {
	case protocol.RouterEvent:
		if message.Name == EventName {
			s.send(ctx, protocol.NewDatasetAppend(MessagesPath(), message.Payload()))
		}

	case protocol.RouterApprovalCode:
		s.logger.Info("router is waiting for approval", "approval_code", message.Code)
	case protocol.RouterPending, protocol.RouterApproved, protocol.RouterDenied:
		s.logger.Debug("authorization status", "status", message.Op.String())

	case protocol.RouterSendEvent, protocol.RouterSubscribe, protocol.RouterUnsubscribe:
	case protocol.RouterSubscribeDir, protocol.RouterUnsubscribeDir,
		protocol.RouterAddIdentity, protocol.RouterRemoveIdentity,
		protocol.RouterSetIdentityProperty:
	case protocol.RouterSubscribeChord, protocol.RouterUnsubscribeChord, protocol.RouterChordAddrs:
	}
}
