package core

import (
	"strings"
	"testing"

	"pkt.systems/mdpane/internal/tabstore"
	"pkt.systems/mdpane/internal/uiloop"
	"pkt.systems/mdpane/schema"
)

type recordingSink struct {
	events []schema.SessionEvent
}

func (r *recordingSink) OnSessionEvent(event schema.SessionEvent) {
	r.events = append(r.events, event)
}

func (r *recordingSink) count(kind schema.EventType) int {
	n := 0
	for _, event := range r.events {
		if event.Type == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	t        *testing.T
	loop     *uiloop.Manual
	store    *tabstore.Store
	surfaces *MemorySurfaces
	events   *recordingSink
	session  *Session
	writes   int
}

func newFixture(t *testing.T, ready bool) *fixture {
	return newFixtureWithConfig(t, ready, schema.SessionConfig{})
}

func newFixtureWithConfig(t *testing.T, ready bool, cfg schema.SessionConfig) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		loop:     uiloop.NewManual(),
		store:    tabstore.New(tabstore.Options{}),
		surfaces: NewMemorySurfaces(ready),
		events:   &recordingSink{},
	}
	session, err := NewSession(cfg, SessionDeps{
		Store:     f.store,
		Scheduler: f.loop,
		Surfaces:  f.surfaces,
		EventSink: f.events,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	f.session = session
	cancel := f.store.Subscribe(func(schema.TabID) { f.writes++ })
	t.Cleanup(func() {
		cancel()
		session.Close()
	})
	return f
}

func (f *fixture) open(id schema.TabID, content string) {
	f.t.Helper()
	if _, err := f.store.Open(tabstore.OpenRequest{ID: id, Content: content, Language: "markdown"}); err != nil {
		f.t.Fatalf("open %s: %v", id, err)
	}
}

func (f *fixture) start() {
	f.t.Helper()
	if err := f.session.Start(); err != nil {
		f.t.Fatalf("start: %v", err)
	}
}

func (f *fixture) tab(id schema.TabID) schema.Tab {
	f.t.Helper()
	tab, ok := f.store.Tab(id)
	if !ok {
		f.t.Fatalf("tab %s missing", id)
	}
	return tab
}

func (f *fixture) surface(role schema.Role) *MemorySurface {
	f.t.Helper()
	surface := f.surfaces.Latest(role)
	if surface == nil {
		f.t.Fatalf("no surface for %s", role)
	}
	return surface
}

func (f *fixture) slot(role schema.Role) *Slot {
	f.t.Helper()
	slot, ok := f.session.Slot(role)
	if !ok {
		f.t.Fatalf("slot %s not mounted", role)
	}
	return slot
}

func (f *fixture) setMode(mode schema.Mode) {
	f.t.Helper()
	if err := f.session.SetMode(mode); err != nil {
		f.t.Fatalf("set mode %s: %v", mode, err)
	}
}

func (f *fixture) cursor(role schema.Role) schema.Position {
	f.t.Helper()
	pos, err := f.surface(role).Cursor()
	if err != nil {
		f.t.Fatalf("cursor %s: %v", role, err)
	}
	return pos
}

func pos(line, column int) schema.Position {
	return schema.Position{Line: line, Column: column}
}

// numberedLines returns n lines of 25 characters each.
func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strings.Repeat("x", 20)
	}
	return strings.Join(lines, "\n")
}
