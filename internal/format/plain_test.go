package format

import (
	"reflect"
	"testing"

	"pkt.systems/mdpane/schema"
)

func TestFormatEventMarksRole(t *testing.T) {
	r := NewPlainRenderer()
	lines := r.FormatEvent(schema.SessionEvent{Type: schema.EventContentPushed, Role: schema.RoleDiffRight, TabID: "a", SkipHistory: true})
	want := []string{"[diff-right] pushed a (history skipped)"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
}

func TestFormatModeChange(t *testing.T) {
	lines := NewPlainRenderer().FormatEvent(schema.SessionEvent{Type: schema.EventModeChanged, To: schema.ModeDiff})
	if len(lines) != 1 || lines[0] != "mode none -> diff" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestPositionCapturesOnlyWhenVerbose(t *testing.T) {
	cursor := schema.Position{Line: 5, Column: 10}
	event := schema.SessionEvent{Type: schema.EventPositionCaptured, Role: schema.RolePrimary, TabID: "a", Cursor: &cursor}
	r := NewPlainRenderer()
	if lines := r.FormatEvent(event); lines != nil {
		t.Fatalf("expected captures hidden, got %v", lines)
	}
	r.Verbose = true
	lines := r.FormatEvent(event)
	if len(lines) != 1 || lines[0] != "[primary] stored cursor 5:10 for a" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestFormatContentNumbersLines(t *testing.T) {
	text := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"
	lines := FormatContent(text)
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(lines))
	}
	if lines[0] != " 1 | a" || lines[9] != "10 | j" {
		t.Fatalf("unexpected numbering %q %q", lines[0], lines[9])
	}
}
