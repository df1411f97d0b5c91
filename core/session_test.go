package core

import (
	"errors"
	"testing"
	"time"

	"pkt.systems/mdpane/internal/tabstore"
	"pkt.systems/mdpane/internal/uiloop"
	"pkt.systems/mdpane/schema"
)

func TestTypingAtEndMarksTabDirty(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello world")
	f.start()
	surface := f.surface(schema.RolePrimary)
	if err := surface.MoveTo(pos(1, 12)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := surface.Type("!"); err != nil {
		t.Fatalf("type: %v", err)
	}
	f.loop.Advance(schema.DefaultDebounceDelay)
	tab := f.tab("a")
	if tab.Content != "hello world!" || !tab.IsDirty() {
		t.Fatalf("unexpected tab %q dirty=%v", tab.Content, tab.IsDirty())
	}
	if got := *tab.Cursor; got != pos(1, 13) {
		t.Fatalf("expected cursor after the insert, got %s", got)
	}
}

func TestEnteringDiffCapturesLivePrimaryPosition(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", numberedLines(10))
	f.start()
	primaryBuf := f.slot(schema.RolePrimary).Buffer()
	if err := f.surface(schema.RolePrimary).MoveTo(pos(5, 10)); err != nil {
		t.Fatalf("move: %v", err)
	}
	// A stale stored cursor must lose against the surface at transition time.
	f.store.SetTabCursor("a", pos(1, 1))

	f.setMode(schema.ModeDiff)

	if got := *f.tab("a").Cursor; got != pos(5, 10) {
		t.Fatalf("expected captured (5,10), got %s", got)
	}
	if got := f.cursor(schema.RoleDiffRight); got != pos(5, 10) {
		t.Fatalf("expected diff-right restored to (5,10), got %s", got)
	}
	if _, ok := f.session.Slot(schema.RolePrimary); ok {
		t.Fatalf("expected primary unmounted in diff mode")
	}
	right := f.slot(schema.RoleDiffRight)
	if right.Buffer() != primaryBuf {
		t.Fatalf("expected diff-right to reuse the cached buffer")
	}
	left := f.slot(schema.RoleDiffLeft)
	if !left.IsBaseline() || left.Buffer() == primaryBuf {
		t.Fatalf("expected diff-left to show an owned baseline buffer")
	}
	if f.session.ActiveSlot() != right {
		t.Fatalf("expected diff-right active, got %s", f.session.ActiveSlot().Role())
	}
	if !f.surface(schema.RoleDiffRight).HasFocus() {
		t.Fatalf("expected diff-right focused after restore")
	}
	if f.events.count(schema.EventModeChanged) != 1 {
		t.Fatalf("expected one mode event")
	}
	f.setMode(schema.ModeDiff)
	if f.events.count(schema.EventModeChanged) != 1 {
		t.Fatalf("expected setting the same mode to be silent")
	}
}

func TestExitingDiffCapturesFromRightPane(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", numberedLines(10))
	f.start()
	f.setMode(schema.ModeDiff)
	if err := f.surface(schema.RoleDiffRight).MoveTo(pos(3, 4)); err != nil {
		t.Fatalf("move: %v", err)
	}
	f.store.SetTabCursor("a", pos(9, 9))
	leftBuf := f.slot(schema.RoleDiffLeft).Buffer()

	f.setMode(schema.ModeNone)

	if got := f.cursor(schema.RolePrimary); got != pos(3, 4) {
		t.Fatalf("expected primary restored to (3,4), got %s", got)
	}
	if !leftBuf.IsDisposed() {
		t.Fatalf("expected baseline buffer disposed with its slot")
	}
	if _, ok := f.session.Slot(schema.RoleDiffRight); ok {
		t.Fatalf("expected diff slots unmounted")
	}
}

func TestUndoSurvivesModeTransitions(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello")
	f.start()
	surface := f.surface(schema.RolePrimary)
	_ = surface.MoveTo(pos(1, 6))
	_ = surface.Type("!")
	f.setMode(schema.ModeDiff)
	if got := f.tab("a").Content; got != "hello!" {
		t.Fatalf("expected pending edit flushed on transition, got %q", got)
	}
	if !f.slot(schema.RoleDiffRight).Undo() {
		t.Fatalf("expected native undo available in diff-right")
	}
	if got := f.slot(schema.RoleDiffRight).Buffer().Text(); got != "hello" {
		t.Fatalf("unexpected text after undo %q", got)
	}
	f.setMode(schema.ModeNone)
	if !f.session.Redo() {
		t.Fatalf("expected redo available back in primary")
	}
	f.loop.Advance(schema.DefaultDebounceDelay)
	if got := f.tab("a").Content; got != "hello!" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestSplitSharesBufferAndPushesOnce(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello")
	f.start()
	f.setMode(schema.ModeSplitVertical)
	primary := f.slot(schema.RolePrimary)
	secondary := f.slot(schema.RoleSecondary)
	if primary.Buffer() != secondary.Buffer() {
		t.Fatalf("expected both panes on one buffer")
	}
	surface := f.surface(schema.RolePrimary)
	_ = surface.MoveTo(pos(1, 6))
	_ = surface.Type("!")
	if got := f.surface(schema.RoleSecondary).Buffer().Text(); got != "hello!" {
		t.Fatalf("expected secondary to see the edit, got %q", got)
	}
	before := f.writes
	f.loop.Advance(schema.DefaultDebounceDelay)
	if f.writes-before != 1 {
		t.Fatalf("expected one store write, got %d", f.writes-before)
	}
}

func TestSwitchBetweenSplitsKeepsSlots(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", numberedLines(4))
	f.start()
	f.setMode(schema.ModeSplitVertical)
	secondary := f.surface(schema.RoleSecondary)
	f.setMode(schema.ModeSplitHorizontal)
	if f.surface(schema.RoleSecondary) != secondary {
		t.Fatalf("expected secondary surface kept across split orientations")
	}
	if secondary.IsDisposed() {
		t.Fatalf("expected secondary surface alive")
	}
}

func TestActivateTabRestoresPerTabPosition(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "alpha beta")
	f.open("b", "gamma")
	f.start()
	surface := f.surface(schema.RolePrimary)
	_ = surface.MoveTo(pos(1, 3))
	if err := f.session.ActivateTab("a"); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if got := f.cursor(schema.RolePrimary); got != pos(1, 1) {
		t.Fatalf("expected default cursor for a, got %s", got)
	}
	_ = surface.MoveTo(pos(1, 7))
	if err := f.session.ActivateTab("b"); err != nil {
		t.Fatalf("activate b: %v", err)
	}
	if got := f.cursor(schema.RolePrimary); got != pos(1, 3) {
		t.Fatalf("expected b restored to (1,3), got %s", got)
	}
	if got := *f.tab("a").Cursor; got != pos(1, 7) {
		t.Fatalf("expected a stored at (1,7), got %s", got)
	}
	if f.events.count(schema.EventSlotSwitched) != 2 {
		t.Fatalf("expected two switch events")
	}
	if err := f.session.ActivateTab("zzz"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestRestoreRunsOncePerTabUntilInvalidated(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", numberedLines(4))
	f.store.SetTabCursor("a", pos(2, 2))
	f.start()
	slot := f.slot(schema.RolePrimary)
	surface := f.surface(schema.RolePrimary)
	if err := surface.SetCursor(pos(4, 4)); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	f.store.SetTabCursor("a", pos(3, 3))
	slot.Restore()
	if got := f.cursor(schema.RolePrimary); got != pos(4, 4) {
		t.Fatalf("expected restore skipped for the same tab, got %s", got)
	}
	slot.InvalidateRestore()
	slot.Restore()
	if got := f.cursor(schema.RolePrimary); got != pos(3, 3) {
		t.Fatalf("expected restore after invalidation, got %s", got)
	}
}

func TestCloseTabDetachesAndDisposes(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "alpha")
	f.open("b", "gamma")
	f.start()
	buf := f.slot(schema.RolePrimary).Buffer()
	_ = f.surface(schema.RolePrimary).Type("x")
	f.session.CloseTab("b")
	if got := f.tab("b").Content; got != "xgamma" {
		t.Fatalf("expected pending edit pushed before close, got %q", got)
	}
	if !buf.IsDisposed() {
		t.Fatalf("expected buffer disposed")
	}
	slot := f.slot(schema.RolePrimary)
	if slot.TabID() != "" || f.surface(schema.RolePrimary).Buffer() != nil {
		t.Fatalf("expected the slot left empty")
	}
	if f.events.count(schema.EventBufferDisposed) != 1 {
		t.Fatalf("expected one dispose event")
	}
	if err := f.store.Close("b"); err != nil {
		t.Fatalf("store close: %v", err)
	}
	if err := f.session.ActivateTab(f.store.ActiveTabID()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if slot.TabID() != "a" {
		t.Fatalf("expected neighbour shown, got %q", slot.TabID())
	}
}

func TestSetDiffBaseShowsLiveTab(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "A")
	f.open("b", "B")
	f.start()
	if err := f.session.SetDiffBase("a"); err != nil {
		t.Fatalf("set diff base: %v", err)
	}
	f.setMode(schema.ModeDiff)
	left := f.slot(schema.RoleDiffLeft)
	cached, _ := f.session.Buffers().Peek("a")
	if left.IsBaseline() || left.TabID() != "a" || left.Buffer() != cached {
		t.Fatalf("expected diff-left on the live buffer of a")
	}
	if f.slot(schema.RoleDiffRight).TabID() != "b" {
		t.Fatalf("expected diff-right on b")
	}
	if err := f.session.SetDiffBase(""); err != nil {
		t.Fatalf("clear diff base: %v", err)
	}
	left = f.slot(schema.RoleDiffLeft)
	if !left.IsBaseline() || left.Buffer().Text() != "B" {
		t.Fatalf("expected baseline of b in diff-left")
	}
	if err := f.session.SetDiffBase("zzz"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestFollowTabModeAppliesRememberedMode(t *testing.T) {
	f := newFixtureWithConfig(t, true, schema.SessionConfig{FollowTabMode: true})
	f.open("a", "A")
	f.open("b", "B")
	if err := f.store.SetTabMode("a", schema.ModeSplitVertical); err != nil {
		t.Fatalf("set tab mode: %v", err)
	}
	f.start()
	if err := f.session.ActivateTab("a"); err != nil {
		t.Fatalf("activate a: %v", err)
	}
	if f.session.Mode().Mode() != schema.ModeSplitVertical {
		t.Fatalf("expected split mode, got %s", f.session.Mode().Mode())
	}
	if _, ok := f.session.Slot(schema.RoleSecondary); !ok {
		t.Fatalf("expected secondary mounted")
	}
	if err := f.session.ActivateTab("b"); err != nil {
		t.Fatalf("activate b: %v", err)
	}
	if f.session.Mode().Mode() != schema.ModeNone {
		t.Fatalf("expected single pane for b")
	}
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	store := tabstore.New(tabstore.Options{})
	loop := uiloop.NewManual()
	cases := []struct {
		name string
		cfg  schema.SessionConfig
		deps SessionDeps
		want error
	}{
		{name: "store", deps: SessionDeps{}, want: schema.ErrMissingStore},
		{name: "scheduler", deps: SessionDeps{Store: store}, want: schema.ErrMissingScheduler},
		{name: "surfaces", deps: SessionDeps{Store: store, Scheduler: loop}, want: schema.ErrMissingSurface},
		{name: "config", cfg: schema.SessionConfig{DebounceDelay: -1}, deps: SessionDeps{Store: store, Scheduler: loop, Surfaces: NewMemorySurfaces(true)}, want: schema.ErrInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSession(tc.cfg, tc.deps); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMountErrors(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "A")
	f.start()
	if _, err := f.session.Mount(schema.RolePrimary, SlotOptions{}); !errors.Is(err, schema.ErrSlotMounted) {
		t.Fatalf("expected ErrSlotMounted, got %v", err)
	}
	if _, err := f.session.MountSurface(schema.RolePrimary, NewMemorySurface("dup", true), SlotOptions{}); !errors.Is(err, schema.ErrSlotMounted) {
		t.Fatalf("expected registry to refuse a second primary, got %v", err)
	}
	if _, err := f.session.Mount(schema.Role("bogus"), SlotOptions{}); !errors.Is(err, schema.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := f.slot(schema.RolePrimary).SwitchTab("zzz"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	if err := f.session.Unmount(schema.RoleSecondary); !errors.Is(err, schema.ErrSlotNotMounted) {
		t.Fatalf("expected ErrSlotNotMounted, got %v", err)
	}
	if err := f.session.SetMode(schema.Mode("tabs")); !errors.Is(err, schema.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestCloseDisposesEverything(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "A")
	f.start()
	surface := f.surface(schema.RolePrimary)
	buf := f.slot(schema.RolePrimary).Buffer()
	f.session.Close()
	if !surface.IsDisposed() || !buf.IsDisposed() {
		t.Fatalf("expected surface and buffer disposed")
	}
	if f.session.Buffers().Len() != 0 {
		t.Fatalf("expected empty cache")
	}
	if f.session.ActiveSlot() != nil {
		t.Fatalf("expected no active slot")
	}
}

func TestBaselineFollowsSavedContent(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "one")
	f.start()
	f.setMode(schema.ModeDiff)
	right := f.surface(schema.RoleDiffRight)
	_ = right.MoveTo(pos(1, 4))
	if err := right.Type("!"); err != nil {
		t.Fatalf("type: %v", err)
	}
	f.loop.Advance(time.Second)
	left := f.slot(schema.RoleDiffLeft)
	stale := left.Buffer()
	if stale.Text() != "one" {
		t.Fatalf("expected saved baseline before save, got %q", stale.Text())
	}
	if err := f.store.MarkSaved("a"); err != nil {
		t.Fatalf("mark saved: %v", err)
	}
	if got := left.Buffer().Text(); got != "one!" {
		t.Fatalf("expected baseline rebuilt from saved content, got %q", got)
	}
	if !stale.IsDisposed() {
		t.Fatalf("expected the stale baseline buffer disposed")
	}
	if left.Surface().Buffer() != left.Buffer() || !left.IsBaseline() {
		t.Fatalf("expected diff-left to show the rebuilt baseline")
	}
	cached, _ := f.session.Buffers().Peek("a")
	if cached.Text() != "one!" || f.slot(schema.RoleDiffRight).Buffer() != cached {
		t.Fatalf("expected diff-right to keep the live buffer")
	}
	rebuilt := left.Buffer()
	if err := f.store.MarkSaved("a"); err != nil {
		t.Fatalf("mark saved: %v", err)
	}
	if left.Buffer() != rebuilt {
		t.Fatalf("expected no rebuild when the saved content is unchanged")
	}
}
