// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/protocol"
	"github.com/bureau-foundation/routerpeer/uipage"
)

// stickyState remembers the commands that define a session, so a new
// connection can be brought to the same state as the one it replaces:
// identity properties, dataset and router subscriptions, and the
// published page. Everything else is a one-shot command and is not
// replayed.
type stickyState struct {
	mu sync.Mutex

	propertyKeys []string
	properties   map[string]string

	datasetKeys    mapset.Set[string]
	datasetOrder   []dataset.Path
	routerNames    mapset.Set[string]
	routerOrder    []string
	page           *uipage.Page
	pageUpdateLost bool
}

func newStickyState() *stickyState {
	return &stickyState{
		properties:  make(map[string]string),
		datasetKeys: mapset.NewThreadUnsafeSet[string](),
		routerNames: mapset.NewThreadUnsafeSet[string](),
	}
}

// record updates the state after message was written to a connection.
func (s *stickyState) record(message protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := message.(type) {
	case *protocol.RouterMessage:
		switch m.Op {
		case protocol.RouterSetIdentityProperty:
			if _, exists := s.properties[m.Key]; !exists {
				s.propertyKeys = append(s.propertyKeys, m.Key)
			}
			s.properties[m.Key] = m.Value
		case protocol.RouterSubscribe:
			if s.routerNames.Add(m.Name) {
				s.routerOrder = append(s.routerOrder, m.Name)
			}
		case protocol.RouterUnsubscribe:
			if s.routerNames.Contains(m.Name) {
				s.routerNames.Remove(m.Name)
				s.routerOrder = removeFirst(s.routerOrder, func(name string) bool { return name == m.Name })
			}
		}

	case *protocol.DatasetMessage:
		key := m.Path.String()
		switch m.Op {
		case protocol.DatasetSubscribe:
			if s.datasetKeys.Add(key) {
				s.datasetOrder = append(s.datasetOrder, m.Path)
			}
		case protocol.DatasetUnsubscribe:
			if s.datasetKeys.Contains(key) {
				s.datasetKeys.Remove(key)
				s.datasetOrder = removeFirst(s.datasetOrder, m.Path.Equal)
			}
		}

	case *protocol.UIMessage:
		switch m.Op {
		case protocol.UISetPage:
			if m.Page != nil {
				page := m.Page.Clone()
				s.page = &page
				s.pageUpdateLost = false
			}
		case protocol.UIClearPage:
			s.page = nil
			s.pageUpdateLost = false
		case protocol.UIUpdateElements:
			if s.page == nil {
				return
			}
			for _, change := range m.Changes {
				element, err := s.page.Element(change.Path)
				if err != nil {
					// The replayed page can no longer be trusted to
					// match what the router shows; keep the last good
					// copy and say so in replay.
					s.pageUpdateLost = true
					continue
				}
				*element = change.Element.Clone()
			}
		}
	}
}

// replay returns the commands that rebuild the session, in the order
// they would originally have been sent: properties, dataset
// subscriptions, router subscriptions, page.
func (s *stickyState) replay() (messages []protocol.Message, pageStale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.propertyKeys {
		messages = append(messages, protocol.NewSetIdentityProperty(key, s.properties[key]))
	}
	for _, path := range s.datasetOrder {
		messages = append(messages, protocol.NewDatasetSubscribe(path))
	}
	for _, name := range s.routerOrder {
		messages = append(messages, protocol.NewRouterSubscribe(name))
	}
	if s.page != nil {
		messages = append(messages, protocol.NewSetPage(*s.page))
	}
	return messages, s.pageUpdateLost
}

func removeFirst[T any](items []T, match func(T) bool) []T {
	for i, item := range items {
		if match(item) {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}
