package format

import (
	"fmt"
	"strings"

	"pkt.systems/mdpane/schema"
)

// PlainRenderer formats session events as plain text lines.
type PlainRenderer struct {
	// Verbose also renders position captures, which fire on every caret move.
	Verbose bool
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatEvent converts a SessionEvent into user-facing lines.
func (p *PlainRenderer) FormatEvent(event schema.SessionEvent) []string {
	switch event.Type {
	case schema.EventSlotMounted:
		return markLines(event.Role, []string{fmt.Sprintf("mounted %s", tabLabel(event.TabID))})
	case schema.EventSlotUnmounted:
		return markLines(event.Role, []string{"unmounted"})
	case schema.EventSlotSwitched:
		return markLines(event.Role, []string{fmt.Sprintf("switched to %s", tabLabel(event.TabID))})
	case schema.EventModeChanged:
		return []string{fmt.Sprintf("mode %s -> %s", modeLabel(event.From), modeLabel(event.To))}
	case schema.EventContentPushed:
		line := fmt.Sprintf("pushed %s", tabLabel(event.TabID))
		if event.SkipHistory {
			line += " (history skipped)"
		}
		return markLines(event.Role, []string{line})
	case schema.EventContentSynced:
		return markLines(event.Role, []string{fmt.Sprintf("synced %s from store", tabLabel(event.TabID))})
	case schema.EventBufferDisposed:
		return []string{fmt.Sprintf("buffer %s disposed", tabLabel(event.TabID))}
	case schema.EventPositionCaptured:
		if !p.Verbose {
			return nil
		}
		return markLines(event.Role, formatPosition(event))
	default:
		label := string(event.Type)
		if label == "" {
			label = "session"
		}
		return []string{fmt.Sprintf("%s event", label)}
	}
}

// FormatContent renders buffer text with line numbers.
func FormatContent(text string) []string {
	lines := splitLines(text)
	width := len(fmt.Sprintf("%d", len(lines)))
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		out = append(out, fmt.Sprintf("%*d | %s", width, i+1, line))
	}
	return out
}

func formatPosition(event schema.SessionEvent) []string {
	if event.Selection != nil {
		return []string{fmt.Sprintf("stored selection %s for %s", event.Selection, tabLabel(event.TabID))}
	}
	if event.Cursor != nil {
		return []string{fmt.Sprintf("stored cursor %s for %s", event.Cursor, tabLabel(event.TabID))}
	}
	return []string{fmt.Sprintf("stored position for %s", tabLabel(event.TabID))}
}

func tabLabel(id schema.TabID) string {
	if id == "" {
		return "(no tab)"
	}
	return string(id)
}

func modeLabel(mode schema.Mode) string {
	if mode == "" {
		return string(schema.ModeNone)
	}
	return string(mode)
}

func splitLines(text string) []string {
	if text == "" {
		return []string{""}
	}
	return strings.Split(text, "\n")
}

func markLines(role schema.Role, lines []string) []string {
	if role == "" || len(lines) == 0 {
		return lines
	}
	marker := "[" + string(role) + "] "
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}
