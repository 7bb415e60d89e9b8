// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/protocol"
	"github.com/bureau-foundation/routerpeer/transport"
	"github.com/bureau-foundation/routerpeer/uipage"
)

const (
	// DefaultDisplayName is published as the "name" identity property.
	DefaultDisplayName = "Test Router"

	// DefaultHistoryLimit is the number of messages kept before the
	// oldest is evicted.
	DefaultHistoryLimit = 10

	// PageName names the published page.
	PageName = "Router Test Page"

	// EventName is the router event relayed between peers.
	EventName = "test_event"

	// AddRecipientID and SendMessageID are the ids of the two text
	// entries on the page.
	AddRecipientID = "Add Recp"
	SendMessageID  = "Send Msg"

	recipientsCollection = "Recp"
	messagesCollection   = "Messages"
)

// ErrDenied is returned by Run when the router refuses this peer.
var ErrDenied = errors.New("router denied authorization")

// RecipientsPath is the private collection of recipient identities.
func RecipientsPath() dataset.Path { return dataset.NewPrivatePath(recipientsCollection) }

// MessagesPath is the private collection of received messages.
func MessagesPath() dataset.Path { return dataset.NewPrivatePath(messagesCollection) }

// Channel is the relay's view of the router session. *transport.Client
// implements it.
type Channel interface {
	// Send queues a command for the router.
	Send(ctx context.Context, message protocol.Message) error

	// Receive returns the next response. ok is false once the channel
	// has closed for good.
	Receive(ctx context.Context) (response transport.Response, ok bool)
}

// Options configures Start.
type Options struct {
	// DisplayName is published as the "name" identity property. Empty
	// means DefaultDisplayName.
	DisplayName string

	// HistoryLimit bounds the Messages collection. Zero means
	// DefaultHistoryLimit.
	HistoryLimit int

	// Logger receives handler activity. Nil means slog.Default().
	Logger *slog.Logger
}

// State is the session state: the last snapshot of each collection.
// It is not safe for concurrent use.
type State struct {
	channel      Channel
	logger       *slog.Logger
	historyLimit int

	recipients []dataset.Data
	messages   []dataset.Data
}

// Start publishes this peer's name, subscribes to both collections and
// to EventName, and publishes the page. Send failures are logged and do
// not stop startup. owner is this peer's identity; the page's lists are
// bound to owner's private collections.
func Start(ctx context.Context, channel Channel, owner identity.Identity, options Options) *State {
	if options.DisplayName == "" {
		options.DisplayName = DefaultDisplayName
	}
	if options.HistoryLimit <= 0 {
		options.HistoryLimit = DefaultHistoryLimit
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := &State{
		channel:      channel,
		logger:       logger,
		historyLimit: options.HistoryLimit,
	}

	state.send(ctx, protocol.NewSetIdentityProperty("name", options.DisplayName))
	state.send(ctx, protocol.NewDatasetSubscribe(RecipientsPath()))
	state.send(ctx, protocol.NewDatasetSubscribe(MessagesPath()))
	state.send(ctx, protocol.NewRouterSubscribe(EventName))
	state.send(ctx, protocol.NewSetPage(BuildPage(owner)))

	logger.Info("relay started", "display_name", options.DisplayName, "history_limit", options.HistoryLimit)
	return state
}

// BuildPage returns the relay's page for owner:
//
//	Rows
//	├── TextEntry "Add Recp"
//	├── Rows bound to Recp, one Text per entry
//	├── TextEntry "Send Msg"
//	└── Rows bound to Messages, one Text per entry
func BuildPage(owner identity.Identity) uipage.Page {
	manager := uipage.NewPageManager(owner, PageName)
	// The root always exists.
	_ = manager.Edit(uipage.RootPath(), func(root *uipage.Element) {
		root.SetKind(uipage.KindRows)
		root.AppendChild(textEntry(AddRecipientID))
		root.AppendChild(collectionList(RecipientsPath().Resolve(owner)))
		root.AppendChild(textEntry(SendMessageID))
		root.AppendChild(collectionList(MessagesPath().Resolve(owner)))
	})
	// The whole page goes out in SetPage, so the edit history is
	// not needed.
	manager.TakeChanges()
	return manager.Page()
}

func textEntry(id string) uipage.Element {
	element := uipage.FromString(id)
	element.SetKind(uipage.KindTextEntry)
	element.SetSelectable(true)
	element.SetID(id)
	return element
}

// collectionList renders each entry of the collection at path as text.
func collectionList(path dataset.AbsolutePath) uipage.Element {
	list := uipage.NewElement(uipage.KindRows)
	list.SetDataset(path)

	template := uipage.NewElement(uipage.KindText)
	template.SetContent(uipage.NewContent(uipage.DataPart()))
	list.AppendChild(template)
	return list
}

// Recipients returns a copy of the last Recp snapshot.
func (s *State) Recipients() []dataset.Data { return dataset.CloneEntries(s.recipients) }

// Messages returns a copy of the last Messages snapshot.
func (s *State) Messages() []dataset.Data { return dataset.CloneEntries(s.messages) }

// Run handles responses until the channel closes or ctx is done, both
// of which return nil. A router denial returns ErrDenied.
func (s *State) Run(ctx context.Context) error {
	for {
		response, ok := s.channel.Receive(ctx)
		if !ok {
			if ctx.Err() != nil {
				s.logger.Debug("relay stopping", "reason", ctx.Err())
			} else {
				s.logger.Info("router channel closed")
			}
			return nil
		}

		switch response.Kind {
		case transport.ResponseMessage:
			s.Handle(ctx, response.Message)
		case transport.ResponseDenied:
			return ErrDenied
		case transport.ResponseConnected, transport.ResponseDisconnected:
			s.logger.Debug("router connection changed",
				"kind", response.Kind, "address", response.Address, "error", response.Err)
		}
	}
}

// send issues one command. Failures are logged, never retried.
func (s *State) send(ctx context.Context, message protocol.Message) {
	if err := s.channel.Send(ctx, message); err != nil {
		s.logger.Warn("sending to router failed",
			"category", message.Category(), "op", message.Operation(), "error", err)
	}
}
