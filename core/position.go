package core

import (
	"context"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// PositionKeeper stores and restores per-tab cursor and selection.
type PositionKeeper struct {
	store    Store
	sched    Scheduler
	attempts int
	log      pslog.Logger
	sink     EventSink
}

// NewPositionKeeper constructs a keeper. attempts bounds the blind retry
// cascade used for surfaces without a ready signal.
func NewPositionKeeper(store Store, sched Scheduler, attempts int, logger pslog.Logger, sink EventSink) *PositionKeeper {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if attempts <= 0 {
		attempts = schema.DefaultRestoreAttempts
	}
	return &PositionKeeper{
		store:    store,
		sched:    sched,
		attempts: attempts,
		log:      logger,
		sink:     sink,
	}
}

// Restore applies the stored selection, or else the stored cursor, of tabID
// to the slot's surface, reveals it and focuses the surface when the slot
// is focus-eligible.
//
// Surfaces that report readiness get one attempt once laid out. Others get
// an immediate attempt, one on the next frame and the rest on zero-delay
// timers, because early position calls may be dropped silently.
// The returned func cancels outstanding attempts.
func (k *PositionKeeper) Restore(tabID schema.TabID, slot *Slot) func() {
	if slot == nil || slot.surface == nil || tabID == "" {
		return func() {}
	}
	surface := slot.surface
	focus := slot.focusOnRestore
	log := logx.WithSlot(k.log, slot.role, tabID)

	if signaler, ok := surface.(ReadySignaler); ok {
		if signaler.Ready() {
			k.apply(log, tabID, surface, focus, 1)
			return func() {}
		}
		log.Trace("position restore waiting for layout")
		var stop func()
		fired := false
		stop = signaler.OnReady(func() {
			if fired {
				return
			}
			fired = true
			stop()
			k.apply(log, tabID, surface, focus, 1)
		})
		return stop
	}

	// Captures stay off until an attempt is read back from the surface,
	// or the attempts run out.
	settled := slot.guard.begin(GuardRestoring)
	cancelled := false
	var pending func()
	try := func(attempt int) {
		if k.apply(log, tabID, surface, focus, attempt) && k.landed(tabID, surface) {
			settled()
		}
	}
	var schedule func(attempt int)
	schedule = func(attempt int) {
		if attempt > k.attempts {
			pending = nil
			settled()
			return
		}
		run := func() {
			if cancelled {
				return
			}
			try(attempt)
			schedule(attempt + 1)
		}
		if attempt == 2 {
			pending = k.sched.NextFrame(run)
			return
		}
		pending = k.sched.AfterFunc(0, run)
	}
	try(1)
	schedule(2)
	return func() {
		cancelled = true
		settled()
		if pending != nil {
			pending()
			pending = nil
		}
	}
}

// landed reports whether the surface shows the stored position of tabID.
func (k *PositionKeeper) landed(tabID schema.TabID, surface Surface) bool {
	tab, ok := k.store.Tab(tabID)
	if !ok {
		return false
	}
	sel, err := surface.Selection()
	if err != nil {
		return false
	}
	if stored := schema.NormalizeSelection(tab.Selection); stored != nil {
		return sel == *stored
	}
	if tab.Cursor != nil {
		return sel.IsCollapsed() && sel.End() == *tab.Cursor
	}
	return true
}

// apply makes one restore attempt. Errors are expected while layout or
// content is in flux and are skipped.
func (k *PositionKeeper) apply(log pslog.Logger, tabID schema.TabID, surface Surface, focus bool, attempt int) bool {
	if surface.IsDisposed() {
		log.Trace("position restore skipped", "attempt", attempt, "reason", "surface disposed")
		return false
	}
	if buf := surface.Buffer(); buf == nil || buf.TabID() != tabID || buf.IsDisposed() {
		log.Trace("position restore skipped", "attempt", attempt, "reason", "buffer moved")
		return false
	}
	tab, ok := k.store.Tab(tabID)
	if !ok {
		log.Debug("position restore skipped", "attempt", attempt, "err", schema.ErrTabNotFound)
		return false
	}
	if sel := schema.NormalizeSelection(tab.Selection); sel != nil {
		if err := surface.SetSelection(*sel); err != nil {
			log.Debug("position restore skipped", "attempt", attempt, "selection", sel.String(), "err", err)
			return false
		}
		if err := surface.Reveal(sel.Start(), sel.End()); err != nil {
			log.Trace("position reveal failed", "attempt", attempt, "err", err)
		}
	} else if tab.Cursor != nil {
		cursor := *tab.Cursor
		if err := surface.SetCursor(cursor); err != nil {
			log.Debug("position restore skipped", "attempt", attempt, "cursor", cursor.String(), "err", err)
			return false
		}
		if err := surface.Reveal(cursor, cursor); err != nil {
			log.Trace("position reveal failed", "attempt", attempt, "err", err)
		}
	} else {
		log.Trace("position restore empty", "attempt", attempt)
		return true
	}
	if focus {
		if err := surface.Focus(); err != nil {
			log.Trace("position focus failed", "attempt", attempt, "err", err)
		}
	}
	log.Trace("position restore applied", "attempt", attempt)
	return true
}

// Capture stores the slot's current cursor and, when not collapsed, its
// selection for tabID. Unchanged values are not written. Captures are
// suppressed while the slot swaps buffers, syncs content or waits for a
// blind restore to land. It reports whether anything was written.
func (k *PositionKeeper) Capture(tabID schema.TabID, slot *Slot) bool {
	if slot == nil || slot.surface == nil || tabID == "" {
		return false
	}
	log := logx.WithSlot(k.log, slot.role, tabID)
	if slot.guard.active() {
		log.Trace("position capture suppressed", "state", slot.guard.state().String())
		return false
	}
	surface := slot.surface
	if surface.IsDisposed() {
		return false
	}
	if signaler, ok := surface.(ReadySignaler); ok && !signaler.Ready() {
		// An unlaid surface still sits at its default position.
		log.Trace("position capture suppressed", "state", "layout pending")
		return false
	}
	if buf := surface.Buffer(); buf == nil || buf.TabID() != tabID || buf.IsDisposed() {
		return false
	}
	tab, ok := k.store.Tab(tabID)
	if !ok {
		return false
	}
	sel, err := surface.Selection()
	if err != nil {
		log.Debug("position capture skipped", "err", err)
		return false
	}
	cursor := sel.End()
	changed := false
	if sel.IsCollapsed() {
		if tab.Selection != nil {
			k.store.SetTabSelection(tabID, nil)
			changed = true
		}
	} else if stored := schema.NormalizeSelection(tab.Selection); stored == nil || *stored != sel {
		stored := sel
		k.store.SetTabSelection(tabID, &stored)
		changed = true
	}
	if tab.Cursor == nil || *tab.Cursor != cursor {
		k.store.SetTabCursor(tabID, cursor)
		changed = true
	}
	if !changed {
		return false
	}
	log.Trace("position captured", "cursor", cursor.String(), "selected", !sel.IsCollapsed())
	if k.sink != nil {
		event := schema.SessionEvent{Type: schema.EventPositionCaptured, Role: slot.role, TabID: tabID, Cursor: &cursor}
		if !sel.IsCollapsed() {
			selCopy := sel
			event.Selection = &selCopy
		}
		k.sink.OnSessionEvent(event)
	}
	return true
}
