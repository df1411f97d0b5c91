package script

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/mdpane/internal/appconfig"
	"pkt.systems/mdpane/schema"
)

func runFile(t *testing.T, name string) Result {
	t.Helper()
	script, err := Load(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	result, err := Run(context.Background(), script, Options{})
	if err != nil {
		t.Fatalf("run %s: %v", name, err)
	}
	if result.Steps != len(script.Steps) {
		t.Fatalf("expected %d steps, ran %d", len(script.Steps), result.Steps)
	}
	return result
}

func TestRunTypingScript(t *testing.T) {
	result := runFile(t, "typing.yaml")
	pushed := 0
	for _, event := range result.Events {
		if event.Type == schema.EventContentPushed {
			pushed++
		}
	}
	if pushed != 2 {
		t.Fatalf("expected two pushes, got %d", pushed)
	}
	if result.Status.Lexer != "markdown" {
		t.Fatalf("expected markdown lexer in status, got %q", result.Status.Lexer)
	}
}

func TestRunDiffRoundTrip(t *testing.T) {
	result := runFile(t, "diff_roundtrip.yaml")
	if result.Mode != schema.ModeNone {
		t.Fatalf("expected final mode none, got %s", result.Mode)
	}
	if result.Status.String() != "Ln 3, Col 4" {
		t.Fatalf("unexpected final status %q", result.Status)
	}
}

func TestRunLateLayout(t *testing.T) {
	runFile(t, "layout.yaml")
}

func TestRunReportsFailedExpectation(t *testing.T) {
	script, err := Parse([]byte(`
steps:
  - open: {id: a, content: "abc"}
  - start:
  - expect: {tab: a, content: "xyz"}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := Run(context.Background(), script, Options{})
	if !errors.Is(err, ErrExpectation) {
		t.Fatalf("expected ErrExpectation, got %v", err)
	}
	if !strings.Contains(err.Error(), "step 3") || !strings.Contains(err.Error(), `want xyz, got abc`) {
		t.Fatalf("unexpected error text %q", err)
	}
	if result.Steps != 2 {
		t.Fatalf("expected two completed steps, got %d", result.Steps)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	script, err := Parse([]byte("steps:\n  - open: {id: a}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, script, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseRejectsBadSteps(t *testing.T) {
	cases := map[string]string{
		"unknown":  "steps:\n  - teleport: a\n",
		"multiple": "steps:\n  - start:\n    mode: diff\n",
		"empty":    "name: nothing\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestParsePositionAndSelection(t *testing.T) {
	pos, err := ParsePosition(" 5:10 ")
	if err != nil || pos != (schema.Position{Line: 5, Column: 10}) {
		t.Fatalf("unexpected position %v %v", pos, err)
	}
	if _, err := ParsePosition("0:1"); !errors.Is(err, schema.ErrPositionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := ParsePosition("5"); err == nil {
		t.Fatalf("expected error for missing column")
	}
	sel, err := ParseSelection("2:1-1:2")
	if err != nil {
		t.Fatalf("parse selection: %v", err)
	}
	if sel.Start() != (schema.Position{Line: 2, Column: 1}) || sel.String() != "2:1-1:2" {
		t.Fatalf("expected anchor kept first, got %s", sel)
	}
}

func TestMergeEditor(t *testing.T) {
	base := schema.SessionConfig{DebounceDelay: time.Second, PollAttempts: 4}
	got := MergeEditor(base, appconfig.EditorConfig{DebounceMS: 50, FollowTabMode: true})
	if got.DebounceDelay != 50*time.Millisecond || got.PollAttempts != 4 || !got.FollowTabMode {
		t.Fatalf("unexpected merge %+v", got)
	}
}
