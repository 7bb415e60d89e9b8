// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/routerpeer/uipage"
)

// maxLineWidth caps each outline line; longer lines end in an ellipsis.
const maxLineWidth = 100

// pagePrinter draws a page as an indented outline, one element per
// line. Styles come from the renderer of the output they are written
// to, so piped output carries no escape sequences.
type pagePrinter struct {
	title     lipgloss.Style
	container lipgloss.Style
	entry     lipgloss.Style
	binding   lipgloss.Style
}

func newPagePrinter(renderer *lipgloss.Renderer) pagePrinter {
	return pagePrinter{
		title:     renderer.NewStyle().Bold(true).Underline(true),
		container: renderer.NewStyle().Faint(true),
		entry:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		binding:   renderer.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (p pagePrinter) render(page uipage.Page) string {
	var builder strings.Builder
	builder.WriteString(p.title.Render(page.Name))

	uipage.Walk(page, func(path uipage.Path, element *uipage.Element) {
		line := strings.Repeat("  ", len(path)) + p.describe(element)
		builder.WriteString("\n")
		builder.WriteString(ansi.Truncate(line, maxLineWidth, "…"))
	})
	return builder.String()
}

func (p pagePrinter) describe(element *uipage.Element) string {
	var line string
	switch {
	case element.Kind.IsContainer():
		line = p.container.Render(element.Kind.String())
	case element.Kind == uipage.KindTextEntry || element.Kind == uipage.KindButton:
		line = p.entry.Render("[" + element.Label() + "]")
	default:
		line = describeContent(element.Content)
	}

	if element.ID != "" {
		line += " " + p.binding.Render("#"+element.ID)
	}
	if element.Dataset != nil {
		line += " " + p.binding.Render("<- "+element.Dataset.Relative().String())
	}
	return line
}

// describeContent shows static parts verbatim and data references as
// {entry} or {entry.0.1}.
func describeContent(content uipage.Content) string {
	var builder strings.Builder
	for _, part := range content.Parts {
		switch part.Kind {
		case uipage.PartStatic:
			builder.WriteString(part.Text)
		case uipage.PartData:
			builder.WriteString("{entry")
			for _, index := range part.Path {
				builder.WriteString(".")
				builder.WriteString(strconv.Itoa(index))
			}
			builder.WriteString("}")
		}
	}
	return builder.String()
}
