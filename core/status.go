package core

import (
	"fmt"

	"pkt.systems/mdpane/schema"
)

// Status is the caret summary of the active slot.
type Status struct {
	Role     schema.Role
	TabID    schema.TabID
	Line     int
	Column   int
	Selected int
	// Lexer names the highlighter for the shown buffer.
	Lexer string
}

func (s Status) String() string {
	if s.Line == 0 {
		return ""
	}
	if s.Selected > 0 {
		return fmt.Sprintf("Ln %d, Col %d (%d selected)", s.Line, s.Column, s.Selected)
	}
	return fmt.Sprintf("Ln %d, Col %d", s.Line, s.Column)
}

// StatusTracker follows the active slot and reports its caret. It learns
// about newly mounted slots from the registry instead of polling.
type StatusTracker struct {
	registry  *Registry
	slot      *Slot
	current   Status
	slotSubs  []func()
	stop      func()
	listeners listenerSet[Status]
}

// NewStatusTracker starts tracking the registry's active slot.
func NewStatusTracker(registry *Registry) *StatusTracker {
	t := &StatusTracker{registry: registry}
	t.stop = registry.OnActiveChange(t.follow)
	t.follow(registry.ActiveSlot())
	return t
}

// Status returns the latest status.
func (t *StatusTracker) Status() Status {
	return t.current
}

// OnChange registers fn for status changes.
func (t *StatusTracker) OnChange(fn func(Status)) func() {
	return t.listeners.add(fn)
}

// Close stops tracking.
func (t *StatusTracker) Close() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.unfollow()
	t.listeners.clear()
}

func (t *StatusTracker) follow(slot *Slot) {
	t.unfollow()
	t.slot = slot
	if slot != nil && slot.Surface() != nil {
		surface := slot.Surface()
		t.slotSubs = append(t.slotSubs,
			surface.OnDidChangeSelection(t.refresh),
			surface.OnDidChangeContent(func(ContentChange) { t.refresh() }),
		)
	}
	t.refresh()
}

func (t *StatusTracker) unfollow() {
	for _, dispose := range t.slotSubs {
		dispose()
	}
	t.slotSubs = nil
	t.slot = nil
}

func (t *StatusTracker) refresh() {
	next := Status{}
	if slot := t.slot; slot != nil {
		next.Role = slot.Role()
		next.TabID = slot.TabID()
		next.Lexer = slot.Buffer().Lexer()
		if sel, err := slot.Selection(); err == nil {
			next.Line = sel.EndLine
			next.Column = sel.EndColumn
			start, end := sel.Ordered()
			next.Selected = slot.Buffer().CharsBetween(start, end)
		}
	}
	if next == t.current {
		return
	}
	t.current = next
	t.listeners.emit(next)
}
