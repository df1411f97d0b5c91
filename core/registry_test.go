package core

import (
	"errors"
	"testing"
	"time"

	"pkt.systems/mdpane/schema"
)

func TestActiveSlotFollowsFocus(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello")
	f.start()
	var seen []schema.Role
	stop := f.session.Registry().OnActiveChange(func(slot *Slot) {
		seen = append(seen, slot.Role())
	})
	defer stop()

	f.setMode(schema.ModeSplitVertical)
	if got := f.session.ActiveSlot().Role(); got != schema.RolePrimary {
		t.Fatalf("expected primary active after split, got %s", got)
	}
	if err := f.surface(schema.RoleSecondary).Focus(); err != nil {
		t.Fatalf("focus: %v", err)
	}
	if got := f.session.ActiveSlot().Role(); got != schema.RoleSecondary {
		t.Fatalf("expected secondary active after focus, got %s", got)
	}
	f.setMode(schema.ModeNone)
	if got := f.session.ActiveSlot().Role(); got != schema.RolePrimary {
		t.Fatalf("expected primary active after secondary unmount, got %s", got)
	}
	if len(seen) != 2 || seen[0] != schema.RoleSecondary || seen[1] != schema.RolePrimary {
		t.Fatalf("unexpected active changes %v", seen)
	}
}

func TestActiveSlotFallbackOrder(t *testing.T) {
	f := newFixture(t, false)
	f.open("a", "hello")
	f.start()
	f.setMode(schema.ModeSplitHorizontal)
	if got := f.session.ActiveSlot().Role(); got != schema.RolePrimary {
		t.Fatalf("expected primary ahead of secondary, got %s", got)
	}
	f.setMode(schema.ModeDiff)
	if got := f.session.ActiveSlot().Role(); got != schema.RoleDiffRight {
		t.Fatalf("expected diff-right ahead of diff-left, got %s", got)
	}
}

func TestOnSlotAvailable(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello")
	calls := 0
	stop := f.session.Registry().OnSlotAvailable(schema.RolePrimary, func(slot *Slot) {
		calls++
		if slot.TabID() != "a" {
			t.Fatalf("expected slot announced after showing its tab")
		}
	})
	defer stop()
	f.start()
	if calls != 1 {
		t.Fatalf("expected one call on mount, got %d", calls)
	}
	late := 0
	f.session.Registry().OnSlotAvailable(schema.RolePrimary, func(*Slot) { late++ })()
	if late != 1 {
		t.Fatalf("expected immediate call for a mounted slot")
	}
}

func TestWaitForSlotResolvesOnMount(t *testing.T) {
	f := newFixture(t, true)
	f.open("a", "hello")
	f.start()
	var got *Slot
	var gotErr error
	f.session.Registry().WaitForSlot(schema.RoleSecondary, func(slot *Slot, err error) {
		got, gotErr = slot, err
	})
	f.setMode(schema.ModeSplitVertical)
	if gotErr != nil || got == nil || got.Role() != schema.RoleSecondary {
		t.Fatalf("expected secondary slot, got %v %v", got, gotErr)
	}
	if f.loop.Pending() != 0 {
		t.Fatalf("expected the poll timer cancelled")
	}
}

func TestWaitForSlotExpires(t *testing.T) {
	cfg := schema.SessionConfig{PollInterval: 10 * time.Millisecond, PollAttempts: 3}
	f := newFixtureWithConfig(t, true, cfg)
	f.open("a", "hello")
	f.start()
	calls := 0
	var gotErr error
	f.session.Registry().WaitForSlot(schema.RoleSecondary, func(slot *Slot, err error) {
		calls++
		gotErr = err
	})
	f.loop.Advance(29 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("expected wait still running")
	}
	f.loop.Advance(time.Millisecond)
	if calls != 1 || !errors.Is(gotErr, schema.ErrSlotNotMounted) {
		t.Fatalf("expected ErrSlotNotMounted once, got %d %v", calls, gotErr)
	}
	f.setMode(schema.ModeSplitVertical)
	if calls != 1 {
		t.Fatalf("expected no call after expiry")
	}
}

func TestWaitForSlotCancel(t *testing.T) {
	f := newFixture(t, true)
	calls := 0
	cancel := f.session.Registry().WaitForSlot(schema.RoleDiffLeft, func(*Slot, error) { calls++ })
	cancel()
	f.loop.Advance(time.Minute)
	if calls != 0 || f.loop.Pending() != 0 {
		t.Fatalf("expected cancelled wait to stay silent")
	}
}
