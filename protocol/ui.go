// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/uipage"
)

// UIOp is the operation of a UIMessage.
type UIOp uint8

const (
	// Viewer side: browse and drive other peers' pages.
	UISubscribe UIOp = iota
	UIPages
	UIGetPage
	UIPage
	UIUpdateElementsFor
	UIInputFor

	// Owner side: publish a page and receive its input.
	UISetPage
	UIClearPage
	UIUpdateElements
	UIInput
	UIDataset
)

var uiOpNames = [...]string{
	UISubscribe:         "subscribe",
	UIPages:             "pages",
	UIGetPage:           "get_page",
	UIPage:              "page",
	UIUpdateElementsFor: "update_elements_for",
	UIInputFor:          "input_for",
	UISetPage:           "set_page",
	UIClearPage:         "clear_page",
	UIUpdateElements:    "update_elements",
	UIInput:             "input",
	UIDataset:           "dataset",
}

// String returns the snake_case op name.
func (op UIOp) String() string {
	if int(op) < len(uiOpNames) {
		return uiOpNames[op]
	}
	return fmt.Sprintf("ui_op(%d)", uint8(op))
}

// InputKind discriminates Input variants.
type InputKind uint8

const (
	InputClick InputKind = iota
	InputText
)

// Input is what the user did to an element.
type Input struct {
	Kind InputKind `cbor:"kind"`
	Text string    `cbor:"text,omitempty"`
}

// TextInput returns a text submission.
func TextInput(text string) Input { return Input{Kind: InputText, Text: text} }

// ClickInput returns a click.
func ClickInput() Input { return Input{Kind: InputClick} }

// AsText returns the submitted text. ok is false for clicks.
func (i Input) AsText() (text string, ok bool) {
	if i.Kind != InputText {
		return "", false
	}
	return i.Text, true
}

// UIMessage is a UI-category message. Which fields are set depends on
// Op:
//
//   - SetPage, Page: Page
//   - Pages: Pages
//   - GetPage, ClearPage: Owner (GetPage) or nothing (ClearPage)
//   - UpdateElements, UpdateElementsFor: Changes (and Owner for the
//     latter)
//   - Input, InputFor: ElementID, DatasetIDs, Input (and Owner)
//   - Dataset: Path, Entries
type UIMessage struct {
	Op         UIOp                  `cbor:"op"`
	Owner      *identity.Identity    `cbor:"owner,omitempty"`
	Page       *uipage.Page          `cbor:"page,omitempty"`
	Pages      []uipage.Page         `cbor:"pages,omitempty"`
	Changes    []uipage.Change       `cbor:"changes,omitempty"`
	ElementID  string                `cbor:"element,omitempty"`
	DatasetIDs []int                 `cbor:"dataset_ids,omitempty"`
	Input      *Input                `cbor:"input,omitempty"`
	Path       *dataset.AbsolutePath `cbor:"path,omitempty"`
	Entries    []dataset.Data        `cbor:"entries,omitempty"`
}

func (*UIMessage) Category() Category  { return CategoryUI }
func (m *UIMessage) Operation() string { return m.Op.String() }
func (*UIMessage) sealed()             {}

// NewSetPage publishes page, replacing any page of the same name.
func NewSetPage(page uipage.Page) *UIMessage {
	page = page.Clone()
	return &UIMessage{Op: UISetPage, Page: &page}
}

// NewUpdateElements pushes incremental edits to a published page.
func NewUpdateElements(changes []uipage.Change) *UIMessage {
	return &UIMessage{Op: UIUpdateElements, Changes: slices.Clone(changes)}
}

// NewClearPage withdraws the published page.
func NewClearPage() *UIMessage {
	return &UIMessage{Op: UIClearPage}
}

// NewUIInput reports input on one of this peer's elements. datasetIDs
// locate the list entry the element was rendered for, outermost first.
func NewUIInput(elementID string, datasetIDs []int, input Input) *UIMessage {
	return &UIMessage{
		Op:         UIInput,
		ElementID:  elementID,
		DatasetIDs: slices.Clone(datasetIDs),
		Input:      &input,
	}
}

// InputValue returns Input, or a click when it is unset.
func (m *UIMessage) InputValue() Input {
	if m.Input == nil {
		return ClickInput()
	}
	return *m.Input
}
