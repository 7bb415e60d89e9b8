// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uipage

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/routerpeer/dataset"
)

// Kind is the element type.
type Kind uint8

const (
	KindRows Kind = iota
	KindColumns
	KindText
	KindTextEntry
	KindButton
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRows:
		return "rows"
	case KindColumns:
		return "columns"
	case KindText:
		return "text"
	case KindTextEntry:
		return "text_entry"
	case KindButton:
		return "button"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsContainer reports whether elements of this kind hold children.
func (k Kind) IsContainer() bool {
	return k == KindRows || k == KindColumns
}

// PartKind discriminates ContentPart variants.
type PartKind uint8

const (
	PartStatic PartKind = iota
	PartData
)

// ContentPart is one segment of an element's content: literal text, or
// a reference into the current dataset entry. An empty data path refers
// to the entry itself; each index descends into an array entry.
type ContentPart struct {
	Kind PartKind `cbor:"kind"`
	Text string   `cbor:"text,omitempty"`
	Path []int    `cbor:"path,omitempty"`
}

// StaticPart returns a literal text part.
func StaticPart(text string) ContentPart {
	return ContentPart{Kind: PartStatic, Text: text}
}

// DataPart returns a reference to the current dataset entry, or to a
// nested array element when path is non-empty.
func DataPart(path ...int) ContentPart {
	return ContentPart{Kind: PartData, Path: slices.Clone(path)}
}

// Content is an ordered list of parts rendered by concatenation.
type Content struct {
	Parts []ContentPart `cbor:"parts"`
}

// NewContent returns content made of parts.
func NewContent(parts ...ContentPart) Content {
	return Content{Parts: slices.Clone(parts)}
}

// AddPart appends a part.
func (c *Content) AddPart(part ContentPart) {
	c.Parts = append(c.Parts, part)
}

// Render resolves the content against entry. Data references that do
// not resolve to text render as the entry's log form.
func (c Content) Render(entry dataset.Data) string {
	var rendered []byte
	for _, part := range c.Parts {
		switch part.Kind {
		case PartStatic:
			rendered = append(rendered, part.Text...)
		case PartData:
			value, ok := lookup(entry, part.Path)
			if !ok {
				continue
			}
			if text, isText := value.AsText(); isText {
				rendered = append(rendered, text...)
			} else {
				rendered = append(rendered, value.String()...)
			}
		}
	}
	return string(rendered)
}

func lookup(entry dataset.Data, path []int) (dataset.Data, bool) {
	for _, index := range path {
		if entry.Kind != dataset.KindArray || index < 0 || index >= len(entry.Array) {
			return dataset.Data{}, false
		}
		entry = entry.Array[index]
	}
	return entry, true
}

// Element is one node of a page tree.
type Element struct {
	Kind       Kind                  `cbor:"kind"`
	ID         string                `cbor:"id,omitempty"`
	Selectable bool                  `cbor:"selectable,omitempty"`
	Dataset    *dataset.AbsolutePath `cbor:"dataset,omitempty"`
	Content    Content               `cbor:"content"`
	Children   []Element             `cbor:"children,omitempty"`
}

// NewElement returns an empty element of the given kind.
func NewElement(kind Kind) Element {
	return Element{Kind: kind}
}

// FromString returns a Text element whose content is text.
func FromString(text string) Element {
	return Element{Kind: KindText, Content: NewContent(StaticPart(text))}
}

// SetKind changes the element kind.
func (e *Element) SetKind(kind Kind) { e.Kind = kind }

// SetID sets the identifier reported with input events.
func (e *Element) SetID(id string) { e.ID = id }

// SetSelectable marks the element as accepting focus and input.
func (e *Element) SetSelectable(selectable bool) { e.Selectable = selectable }

// SetDataset binds the element to a collection.
func (e *Element) SetDataset(path dataset.AbsolutePath) {
	e.Dataset = &path
}

// ClearDataset removes the collection binding.
func (e *Element) ClearDataset() { e.Dataset = nil }

// SetContent replaces the element content.
func (e *Element) SetContent(content Content) { e.Content = content }

// AppendChild adds child as the last child.
func (e *Element) AppendChild(child Element) {
	e.Children = append(e.Children, child)
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	cloned := e
	if e.Dataset != nil {
		path := *e.Dataset
		path.Parts = slices.Clone(path.Parts)
		cloned.Dataset = &path
	}
	if e.Content.Parts != nil {
		cloned.Content.Parts = make([]ContentPart, len(e.Content.Parts))
		for i, part := range e.Content.Parts {
			part.Path = slices.Clone(part.Path)
			cloned.Content.Parts[i] = part
		}
	}
	if e.Children != nil {
		cloned.Children = make([]Element, len(e.Children))
		for i, child := range e.Children {
			cloned.Children[i] = child.Clone()
		}
	}
	return cloned
}

// Label returns the text shown for a leaf with no dataset entry: its
// static content parts, or its ID when it has none.
func (e Element) Label() string {
	label := e.Content.Render(dataset.Null())
	if label == "" {
		return e.ID
	}
	return label
}
