// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/lib/testutil"
	"github.com/bureau-foundation/routerpeer/protocol"
	"github.com/bureau-foundation/routerpeer/transport"
	"github.com/bureau-foundation/routerpeer/uipage"
)

// fakeChannel records sends and serves queued responses.
type fakeChannel struct {
	sent      []protocol.Message
	sendErr   error
	responses chan transport.Response
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{responses: make(chan transport.Response, 16)}
}

func (c *fakeChannel) Send(_ context.Context, message protocol.Message) error {
	c.sent = append(c.sent, message)
	return c.sendErr
}

func (c *fakeChannel) Receive(ctx context.Context) (transport.Response, bool) {
	select {
	case response, ok := <-c.responses:
		return response, ok
	case <-ctx.Done():
		return transport.Response{}, false
	}
}

// take returns and clears the recorded sends.
func (c *fakeChannel) take() []protocol.Message {
	sent := c.sent
	c.sent = nil
	return sent
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIdentity(t *testing.T) identity.Identity {
	t.Helper()
	keypair, err := identity.Generate()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	return keypair.Identity()
}

// startState runs Start against a fresh channel and discards the
// startup commands.
func startState(t *testing.T, options Options) (*State, *fakeChannel) {
	t.Helper()
	channel := newFakeChannel()
	options.Logger = testLogger()
	state := Start(context.Background(), channel, testIdentity(t), options)
	channel.take()
	return state, channel
}

func texts(values ...string) []dataset.Data {
	entries := make([]dataset.Data, len(values))
	for i, value := range values {
		entries[i] = dataset.Text(value)
	}
	return entries
}

func requireNoSends(t *testing.T, channel *fakeChannel) {
	t.Helper()
	if sent := channel.take(); len(sent) != 0 {
		t.Fatalf("expected no commands, got %d (first %s/%s)", len(sent), sent[0].Category(), sent[0].Operation())
	}
}

func requireOneSend[T protocol.Message](t *testing.T, channel *fakeChannel) T {
	t.Helper()
	sent := channel.take()
	if len(sent) != 1 {
		t.Fatalf("expected one command, got %d", len(sent))
	}
	message, ok := sent[0].(T)
	if !ok {
		t.Fatalf("command is %T", sent[0])
	}
	return message
}

func TestStartSendsSetupCommandsInOrder(t *testing.T) {
	t.Parallel()
	channel := newFakeChannel()
	owner := testIdentity(t)
	Start(context.Background(), channel, owner, Options{Logger: testLogger()})

	sent := channel.take()
	if len(sent) != 5 {
		t.Fatalf("startup sent %d commands, want 5", len(sent))
	}

	name := sent[0].(*protocol.RouterMessage)
	if name.Op != protocol.RouterSetIdentityProperty || name.Key != "name" || name.Value != DefaultDisplayName {
		t.Errorf("command 0 = %+v, want name property", name)
	}
	for i, want := range []dataset.Path{RecipientsPath(), MessagesPath()} {
		subscribe := sent[1+i].(*protocol.DatasetMessage)
		if subscribe.Op != protocol.DatasetSubscribe || !subscribe.Path.Equal(want) {
			t.Errorf("command %d = %s %s, want subscribe %s", 1+i, subscribe.Op, subscribe.Path, want)
		}
	}
	event := sent[3].(*protocol.RouterMessage)
	if event.Op != protocol.RouterSubscribe || event.Name != EventName {
		t.Errorf("command 3 = %+v, want subscribe %s", event, EventName)
	}
	page := sent[4].(*protocol.UIMessage)
	if page.Op != protocol.UISetPage || page.Page == nil || page.Page.Name != PageName || page.Page.Owner != owner {
		t.Errorf("command 4 = %+v, want SetPage %q", page, PageName)
	}
}

func TestStartContinuesPastSendFailures(t *testing.T) {
	t.Parallel()
	channel := newFakeChannel()
	channel.sendErr = errors.New("queue closed")
	state := Start(context.Background(), channel, testIdentity(t), Options{Logger: testLogger()})

	if sent := channel.take(); len(sent) != 5 {
		t.Errorf("startup attempted %d commands, want 5", len(sent))
	}
	if len(state.Recipients()) != 0 || len(state.Messages()) != 0 {
		t.Error("initial collections are not empty")
	}
}

func TestStartUsesDisplayName(t *testing.T) {
	t.Parallel()
	channel := newFakeChannel()
	displayName := testutil.UniqueID("Relay")
	Start(context.Background(), channel, testIdentity(t), Options{DisplayName: displayName, Logger: testLogger()})
	if name := channel.take()[0].(*protocol.RouterMessage); name.Value != displayName {
		t.Errorf("name property = %q, want %q", name.Value, displayName)
	}
}

func TestBuildPage(t *testing.T) {
	t.Parallel()
	owner := testIdentity(t)
	page := BuildPage(owner)

	if page.Root.Kind != uipage.KindRows || len(page.Root.Children) != 4 {
		t.Fatalf("root = %s with %d children, want rows with 4", page.Root.Kind, len(page.Root.Children))
	}

	for _, index := range []int{0, 2} {
		entry := page.Root.Children[index]
		want := []string{AddRecipientID, "", SendMessageID}[index]
		if entry.Kind != uipage.KindTextEntry || !entry.Selectable || entry.ID != want || entry.Label() != want {
			t.Errorf("child %d = %+v, want selectable text entry %q", index, entry, want)
		}
	}

	for index, path := range map[int]dataset.Path{1: RecipientsPath(), 3: MessagesPath()} {
		list := page.Root.Children[index]
		if list.Kind != uipage.KindRows || list.Dataset == nil || !list.Dataset.Equal(path.Resolve(owner)) {
			t.Errorf("child %d is not a list bound to %s", index, path)
			continue
		}
		if len(list.Children) != 1 {
			t.Fatalf("list %d has %d template children, want 1", index, len(list.Children))
		}
		template := list.Children[0]
		if template.Kind != uipage.KindText || len(template.Content.Parts) != 1 {
			t.Fatalf("template %d = %+v", index, template)
		}
		part := template.Content.Parts[0]
		if part.Kind != uipage.PartData || len(part.Path) != 0 {
			t.Errorf("template %d part = %+v, want an empty data reference", index, part)
		}
		if rendered := template.Content.Render(dataset.Text("alice")); rendered != "alice" {
			t.Errorf("template %d renders %q, want the entry text", index, rendered)
		}
	}
}

func TestIgnorableMessagesHaveNoEffect(t *testing.T) {
	t.Parallel()
	other := identity.Relation{Identity: testIdentity(t), Role: identity.RolePeer}
	owner := testIdentity(t)

	messages := map[string]protocol.Message{
		"pending":            protocol.NewRouterStatus(protocol.RouterPending),
		"approval code":      protocol.NewApprovalCode("123-456"),
		"approved":           protocol.NewRouterStatus(protocol.RouterApproved),
		"denied":             protocol.NewRouterStatus(protocol.RouterDenied),
		"send event echo":    protocol.NewSendEvent(EventName, nil, dataset.Text("x")),
		"subscribe echo":     protocol.NewRouterSubscribe(EventName),
		"unsubscribe echo":   protocol.NewRouterUnsubscribe(EventName),
		"subscribe dir":      protocol.NewRouterStatus(protocol.RouterSubscribeDir),
		"unsubscribe dir":    protocol.NewRouterStatus(protocol.RouterUnsubscribeDir),
		"add identity":       protocol.NewAddIdentity(other),
		"remove identity":    &protocol.RouterMessage{Op: protocol.RouterRemoveIdentity, Relation: &other},
		"identity property":  protocol.NewSetIdentityProperty("name", "someone"),
		"subscribe chord":    &protocol.RouterMessage{Op: protocol.RouterSubscribeChord, Address: "localhost:1930"},
		"unsubscribe chord":  protocol.NewRouterStatus(protocol.RouterUnsubscribeChord),
		"chord addrs":        protocol.NewChordAddrs([]string{"localhost:1930"}),
		"other event":        protocol.NewEvent("other_event", other, dataset.Text("x")),
		"ui subscribe":       &protocol.UIMessage{Op: protocol.UISubscribe},
		"ui pages":           &protocol.UIMessage{Op: protocol.UIPages},
		"ui get page":        &protocol.UIMessage{Op: protocol.UIGetPage, Owner: &owner},
		"ui page":            &protocol.UIMessage{Op: protocol.UIPage},
		"ui update for":      &protocol.UIMessage{Op: protocol.UIUpdateElementsFor},
		"ui input for":       &protocol.UIMessage{Op: protocol.UIInputFor, ElementID: AddRecipientID},
		"ui set page":        protocol.NewSetPage(BuildPage(owner)),
		"ui clear page":      protocol.NewClearPage(),
		"ui update elements": protocol.NewUpdateElements(nil),
		"ui dataset":         &protocol.UIMessage{Op: protocol.UIDataset},
		"input unknown id":   protocol.NewUIInput("Delete All", nil, protocol.TextInput("x")),
		"click add recp":     protocol.NewUIInput(AddRecipientID, nil, protocol.ClickInput()),
		"click send msg":     protocol.NewUIInput(SendMessageID, nil, protocol.ClickInput()),
		"dataset append":     protocol.NewDatasetAppend(RecipientsPath(), dataset.Text("x")),
		"dataset delete":     protocol.NewDatasetDeleteElement(MessagesPath(), 0),
		"unknown snapshot":   protocol.NewDatasetSnapshot(dataset.NewPrivatePath("Other"), texts("x")),
		"public recp":        protocol.NewDatasetSnapshot(dataset.NewPublicPath("Recp"), texts("x")),
		"protocol error":     protocol.NewError("bad request"),
	}

	for name, message := range messages {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			state, channel := startState(t, Options{})
			state.recipients = texts("r")
			state.messages = texts("m")

			state.Handle(context.Background(), message)

			requireNoSends(t, channel)
			if !dataset.EqualEntries(state.recipients, texts("r")) || !dataset.EqualEntries(state.messages, texts("m")) {
				t.Error("collections changed")
			}
		})
	}
}

func TestRecipientsSnapshotReplacesState(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{})
	state.recipients = texts("stale-1", "stale-2", "stale-3")

	snapshot := []dataset.Data{dataset.Text("a"), dataset.Int(7), dataset.Text("a")}
	state.Handle(context.Background(), protocol.NewDatasetSnapshot(RecipientsPath(), snapshot))

	if !dataset.EqualEntries(state.Recipients(), snapshot) {
		t.Errorf("recipients = %v, want %v", state.Recipients(), snapshot)
	}
	requireNoSends(t, channel)

	state.Handle(context.Background(), protocol.NewDatasetSnapshot(RecipientsPath(), nil))
	if len(state.Recipients()) != 0 {
		t.Errorf("empty snapshot left %d recipients", len(state.Recipients()))
	}
}

func TestMessagesHistoryIsBounded(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{})

	var history []string
	for length := 1; length <= 11; length++ {
		history = append(history, string(rune('a'+length-1)))
		state.Handle(context.Background(), protocol.NewDatasetSnapshot(MessagesPath(), texts(history...)))

		if !dataset.EqualEntries(state.Messages(), texts(history...)) {
			t.Fatalf("length %d: messages = %v", length, state.Messages())
		}
		sent := channel.take()
		if length <= DefaultHistoryLimit {
			if len(sent) != 0 {
				t.Fatalf("length %d sent %d commands, want none", length, len(sent))
			}
			continue
		}
		if len(sent) != 1 {
			t.Fatalf("length %d sent %d commands, want one delete", length, len(sent))
		}
		remove := sent[0].(*protocol.DatasetMessage)
		if remove.Op != protocol.DatasetDeleteElement || !remove.Path.Equal(MessagesPath()) || remove.Index != 0 {
			t.Errorf("eviction = %s %s[%d], want delete_element private:Messages[0]", remove.Op, remove.Path, remove.Index)
		}
	}

	// Still one delete per snapshot, however far over the limit.
	state.Handle(context.Background(), protocol.NewDatasetSnapshot(MessagesPath(), texts(append(history, "l", "m")...)))
	if sent := channel.take(); len(sent) != 1 {
		t.Errorf("13 messages sent %d commands, want 1", len(sent))
	}
}

func TestHistoryLimitOption(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{HistoryLimit: 2})

	state.Handle(context.Background(), protocol.NewDatasetSnapshot(MessagesPath(), texts("a", "b")))
	requireNoSends(t, channel)
	state.Handle(context.Background(), protocol.NewDatasetSnapshot(MessagesPath(), texts("a", "b", "c")))
	requireOneSend[*protocol.DatasetMessage](t, channel)
}

func TestAddRecipientAppendsWithoutLocalUpdate(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{})

	state.Handle(context.Background(), protocol.NewUIInput(AddRecipientID, nil, protocol.TextInput("peer-key")))

	appended := requireOneSend[*protocol.DatasetMessage](t, channel)
	if appended.Op != protocol.DatasetAppend || !appended.Path.Equal(RecipientsPath()) {
		t.Fatalf("command = %s %s, want append to Recp", appended.Op, appended.Path)
	}
	if text, _ := appended.Data.AsText(); text != "peer-key" {
		t.Errorf("appended %q, want peer-key", text)
	}
	if len(state.Recipients()) != 0 {
		t.Error("recipients updated before the router's snapshot")
	}

	state.Handle(context.Background(), protocol.NewDatasetSnapshot(RecipientsPath(), texts("peer-key")))
	if !dataset.EqualEntries(state.Recipients(), texts("peer-key")) {
		t.Errorf("recipients = %v after snapshot", state.Recipients())
	}
}

func TestSendMessageDropsUndecodableRecipients(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{})
	first := testIdentity(t)
	second := testIdentity(t)

	state.Handle(context.Background(), protocol.NewDatasetSnapshot(RecipientsPath(), []dataset.Data{
		dataset.Text(first.Base64()),
		dataset.Text("not an identity"),
		dataset.Int(42),
		dataset.Text(second.Base64()),
		dataset.Text(""),
	}))
	channel.take()

	state.Handle(context.Background(), protocol.NewUIInput(SendMessageID, []int{}, protocol.TextInput("hello")))

	event := requireOneSend[*protocol.RouterMessage](t, channel)
	if event.Op != protocol.RouterSendEvent || event.Name != EventName {
		t.Fatalf("command = %s %q, want send_event %s", event.Op, event.Name, EventName)
	}
	want := []identity.Relation{
		{Identity: first, Role: identity.RolePeer},
		{Identity: second, Role: identity.RolePeer},
	}
	if len(event.Recipients) != len(want) {
		t.Fatalf("recipients = %v, want %v", event.Recipients, want)
	}
	for i := range want {
		if event.Recipients[i] != want[i] {
			t.Errorf("recipient %d = %v, want %v", i, event.Recipients[i], want[i])
		}
	}
	if text, _ := event.Payload().AsText(); text != "hello" {
		t.Errorf("payload = %q, want hello", text)
	}
}

func TestSendMessageWithNoRecipients(t *testing.T) {
	t.Parallel()
	state, channel := startState(t, Options{})

	state.Handle(context.Background(), protocol.NewUIInput(SendMessageID, nil, protocol.TextInput("into the void")))

	event := requireOneSend[*protocol.RouterMessage](t, channel)
	if event.Op != protocol.RouterSendEvent || len(event.Recipients) != 0 {
		t.Errorf("command = %s to %d recipients, want send_event to none", event.Op, len(event.Recipients))
	}
}

func TestTestEventAppendsRegardlessOfSender(t *testing.T) {
	t.Parallel()
	senders := map[string]identity.Relation{
		"peer": {Identity: testIdentity(t), Role: identity.RolePeer},
		"host": {Identity: testIdentity(t), Role: identity.RoleHost},
	}
	for name, sender := range senders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			state, channel := startState(t, Options{})

			state.Handle(context.Background(), protocol.NewEvent(EventName, sender, dataset.Text("hi")))

			appended := requireOneSend[*protocol.DatasetMessage](t, channel)
			if appended.Op != protocol.DatasetAppend || !appended.Path.Equal(MessagesPath()) {
				t.Fatalf("command = %s %s, want append to Messages", appended.Op, appended.Path)
			}
			if appended.Data == nil || !appended.Data.Equal(dataset.Text("hi")) {
				t.Errorf("appended %v, want the event payload", appended.Data)
			}
			if len(state.Messages()) != 0 {
				t.Error("messages updated before the router's snapshot")
			}
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("handles messages until closed", func(t *testing.T) {
		t.Parallel()
		state, channel := startState(t, Options{})
		done := make(chan error, 1)
		go func() { done <- state.Run(context.Background()) }()

		for _, response := range []transport.Response{
			{Kind: transport.ResponseConnected, Address: "localhost:1930"},
			{Kind: transport.ResponseMessage, Message: protocol.NewDatasetSnapshot(RecipientsPath(), texts("a"))},
			{Kind: transport.ResponseDisconnected, Err: errors.New("reset")},
		} {
			testutil.RequireSend(t, channel.responses, response, time.Second, "feeding %s", response.Kind)
		}
		close(channel.responses)

		if err := testutil.RequireReceive(t, done, time.Second, "waiting for Run to return"); err != nil {
			t.Fatalf("Run = %v, want nil on close", err)
		}
		if !dataset.EqualEntries(state.Recipients(), texts("a")) {
			t.Errorf("recipients = %v", state.Recipients())
		}
	})

	t.Run("denied", func(t *testing.T) {
		t.Parallel()
		state, channel := startState(t, Options{})
		channel.responses <- transport.Response{Kind: transport.ResponseDenied}

		if err := state.Run(context.Background()); !errors.Is(err, ErrDenied) {
			t.Errorf("Run = %v, want ErrDenied", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()
		state, _ := startState(t, Options{})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := state.Run(ctx); err != nil {
			t.Errorf("Run = %v, want nil on cancellation", err)
		}
	})
}
