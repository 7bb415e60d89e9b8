// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uipage

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/routerpeer/lib/identity"
)

// ErrNoElement is returned when a path does not name an element.
var ErrNoElement = errors.New("uipage: no element at path")

// Path addresses an element by child indices from the root. The empty
// path is the root.
type Path []int

// RootPath returns the path of the root element.
func RootPath() Path { return Path{} }

// Child returns the path of the index-th child of p.
func (p Path) Child(index int) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, index)
}

// Equal reports whether p and other address the same element.
func (p Path) Equal(other Path) bool { return slices.Equal(p, other) }

// String returns "/" for the root and "/0/2" otherwise.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var builder strings.Builder
	for _, index := range p {
		builder.WriteByte('/')
		builder.WriteString(strconv.Itoa(index))
	}
	return builder.String()
}

// Page is a named element tree owned by one peer.
type Page struct {
	Owner identity.Identity `cbor:"owner"`
	Name  string            `cbor:"name"`
	Root  Element           `cbor:"root"`
}

// Clone returns a deep copy.
func (p Page) Clone() Page {
	p.Root = p.Root.Clone()
	return p
}

// Element returns a pointer to the element at path inside p.
func (p *Page) Element(path Path) (*Element, error) {
	element := &p.Root
	for depth, index := range path {
		if index < 0 || index >= len(element.Children) {
			return nil, fmt.Errorf("%w: %s (index %d at depth %d, %d children)",
				ErrNoElement, path, index, depth, len(element.Children))
		}
		element = &element.Children[index]
	}
	return element, nil
}

// Walk calls fn for every element in depth-first pre-order.
func Walk(page Page, fn func(path Path, element *Element)) {
	walk(RootPath(), &page.Root, fn)
}

func walk(path Path, element *Element, fn func(Path, *Element)) {
	fn(path, element)
	for i := range element.Children {
		walk(path.Child(i), &element.Children[i], fn)
	}
}

// Change records the state of one element after an edit.
type Change struct {
	Path    Path    `cbor:"path"`
	Element Element `cbor:"element"`
}

// PageManager owns a page and records edits to it. It is not safe for
// concurrent use.
type PageManager struct {
	page    Page
	changes []Change
}

// NewPageManager returns a manager for an empty page whose root is a
// Rows container.
func NewPageManager(owner identity.Identity, name string) *PageManager {
	return &PageManager{
		page: Page{Owner: owner, Name: name, Root: NewElement(KindRows)},
	}
}

// Page returns a copy of the current page.
func (m *PageManager) Page() Page { return m.page.Clone() }

// Element returns a copy of the element at path.
func (m *PageManager) Element(path Path) (Element, error) {
	element, err := m.page.Element(path)
	if err != nil {
		return Element{}, err
	}
	return element.Clone(), nil
}

// Edit applies fn to the element at path and records the result as a
// change. Repeated edits to one path keep a single change holding the
// latest state.
func (m *PageManager) Edit(path Path, fn func(*Element)) error {
	element, err := m.page.Element(path)
	if err != nil {
		return err
	}
	fn(element)

	change := Change{Path: slices.Clone(path), Element: element.Clone()}
	for i := range m.changes {
		if m.changes[i].Path.Equal(path) {
			m.changes[i] = change
			return nil
		}
	}
	m.changes = append(m.changes, change)
	return nil
}

// PendingChanges returns the number of changes not yet taken.
func (m *PageManager) PendingChanges() int { return len(m.changes) }

// TakeChanges returns the recorded changes and clears them.
func (m *PageManager) TakeChanges() []Change {
	changes := m.changes
	m.changes = nil
	return changes
}
