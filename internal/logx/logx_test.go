package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithSlotAddsFields(t *testing.T) {
	capture := &logCapture{}
	log := WithSlot(newCaptureLogger(capture), schema.RoleDiffRight, "tab1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["slot"] != "diff-right" {
		t.Fatalf("expected slot field, got %+v", entry)
	}
	if entry["tab"] != "tab1" {
		t.Fatalf("expected tab field, got %+v", entry)
	}
}

func TestWithTabSkipsEmptyID(t *testing.T) {
	capture := &logCapture{}
	WithTab(newCaptureLogger(capture), "").Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["tab"]; ok {
		t.Fatalf("did not expect tab field for empty id, got %+v", entry)
	}
}

func TestTabFromContextDeduplicates(t *testing.T) {
	capture := &logCapture{}
	ctx := ContextWithTabLogger(context.Background(), newCaptureLogger(capture), "tab1")
	TabFromContext(ctx, "tab1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"tab"`)); n != 1 {
		t.Fatalf("expected one tab field, got %d in %s", n, line)
	}
}

func TestCopyContextFields(t *testing.T) {
	src := ContextWithRole(ContextWithTab(context.Background(), "tab1"), schema.RolePrimary)
	dst := CopyContextFields(context.Background(), src)
	if got, _ := dst.Value(tabKey).(schema.TabID); got != "tab1" {
		t.Fatalf("expected tab marker, got %q", got)
	}
	if got, _ := dst.Value(roleKey).(schema.Role); got != schema.RolePrimary {
		t.Fatalf("expected role marker, got %q", got)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
