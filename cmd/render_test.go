package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/botlink/internal/roster"
	"github.com/nextlevelbuilder/botlink/internal/session"
	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

func TestPrintRosterAlignsWideNames(t *testing.T) {
	titleStyle, headerStyle, okStyle, mutedStyle = titleStyle.UnsetBold(), headerStyle.UnsetBold().UnsetForeground(), okStyle.UnsetForeground(), mutedStyle.UnsetForeground()

	snap := roster.Snapshot{
		Query: roster.Query{Page: 1, PageSize: 5},
		Rows: []roster.Row{
			{ID: "1", DisplayName: "John Doe", Phone: "71111111111", Active: true, IsOwner: true},
			{ID: "2", DisplayName: "山田太郎", Phone: "", Active: false},
		},
		Total: 2,
	}
	var buf bytes.Buffer
	printRoster(&buf, snap)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}

	// The PHONE column starts at the same display column on every row.
	col := func(line, field string) int {
		i := strings.Index(line, field)
		if i < 0 {
			t.Fatalf("%q not in %q", field, line)
		}
		return runewidth.StringWidth(line[:i])
	}
	if a, b := col(lines[0], "PHONE"), col(lines[1], "+7 (111) 111-11-11"); a != b {
		t.Errorf("phone column %d vs %d", a, b)
	}
	if a, b := col(lines[1], "Active"), col(lines[2], "Not Active"); a != b {
		t.Errorf("status column %d vs %d", a, b)
	}
	if !strings.Contains(lines[1], "You") || !strings.Contains(lines[2], "Activate") {
		t.Errorf("action labels missing:\n%s", buf.String())
	}
	if !strings.Contains(lines[3], "page 1/1, 2 user(s)") {
		t.Errorf("footer = %q", lines[3])
	}
}

func TestPrintBotsMarksSelection(t *testing.T) {
	b := protocol.Binding{BotID: 7, BotName: "demo_bot", WebURL: "https://x"}
	var buf bytes.Buffer
	printBots(&buf, session.State{Linked: []protocol.Binding{b}, Selected: &b})
	if !strings.Contains(buf.String(), "*") || !strings.Contains(buf.String(), "@demo_bot") {
		t.Errorf("output:\n%s", buf.String())
	}

	buf.Reset()
	printBots(&buf, session.State{})
	if !strings.Contains(buf.String(), "No linked bots") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestRunConsoleLineParsing(t *testing.T) {
	if err := runConsoleLine(context.Background(), nil, "   "); err != nil {
		t.Errorf("blank line = %v", err)
	}
	if err := runConsoleLine(context.Background(), nil, `search "unterminated`); err == nil {
		t.Error("unterminated quote accepted")
	}
	if err := runConsoleLine(context.Background(), nil, "frobnicate"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command = %v", err)
	}
	if err := runConsoleLine(context.Background(), nil, "QUIT"); err != errQuit {
		t.Errorf("quit = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO"} {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
