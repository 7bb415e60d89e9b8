// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/routerpeer/relay"
	"github.com/bureau-foundation/routerpeer/uipage"
)

func TestDescribeContent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content uipage.Content
		want    string
	}{
		{"empty", uipage.NewContent(), ""},
		{"static", uipage.NewContent(uipage.StaticPart("Add Recp")), "Add Recp"},
		{"entry", uipage.NewContent(uipage.DataPart()), "{entry}"},
		{"mixed", uipage.NewContent(uipage.StaticPart("from "), uipage.DataPart(0, 2)), "from {entry.0.2}"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := describeContent(test.content); got != test.want {
				t.Errorf("describeContent = %q, want %q", got, test.want)
			}
		})
	}
}

// colorPrinter forces the ANSI profile. lipgloss re-detects the profile
// from the environment unless SetColorProfile is called, and io.Discard
// is not a terminal.
func colorPrinter() pagePrinter {
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI))
	renderer.SetColorProfile(termenv.ANSI)
	return newPagePrinter(renderer)
}

func TestRenderRelayPage(t *testing.T) {
	t.Parallel()
	styled := colorPrinter().render(relay.BuildPage([32]byte{7}))
	if !strings.Contains(styled, "\x1b[") {
		t.Error("ANSI renderer produced no escape sequences")
	}

	want := []string{
		relay.PageName,
		"rows",
		"  [Add Recp] #Add Recp",
		"  rows <- private:Recp",
		"    {entry}",
		"  [Send Msg] #Send Msg",
		"  rows <- private:Messages",
		"    {entry}",
	}
	got := strings.Split(ansi.Strip(styled), "\n")
	if len(got) != len(want) {
		t.Fatalf("rendered %d lines, want %d:\n%s", len(got), len(want), ansi.Strip(styled))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderTruncatesLongLines(t *testing.T) {
	t.Parallel()
	manager := uipage.NewPageManager([32]byte{1}, "Long")
	if err := manager.Edit(uipage.RootPath(), func(root *uipage.Element) {
		root.AppendChild(uipage.FromString(strings.Repeat("x", 3*maxLineWidth)))
	}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(ansi.Strip(colorPrinter().render(manager.Page())), "\n")
	leaf := lines[len(lines)-1]
	if width := ansi.StringWidth(leaf); width > maxLineWidth {
		t.Errorf("leaf line is %d cells wide, want at most %d", width, maxLineWidth)
	}
	if !strings.HasSuffix(leaf, "…") {
		t.Errorf("truncated line %q does not end in an ellipsis", leaf)
	}
}
