package core

import (
	"time"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// reconciler keeps one slot's buffer and the store's tab content
// eventually consistent. Surface edits reach the store after a debounce;
// store changes reach the buffer as a full-extent range replace.
type reconciler struct {
	slot  *Slot
	store Store
	cache *BufferCache
	sched Scheduler
	delay time.Duration
	log   pslog.Logger
	sink  EventSink

	cancelPush  func()
	skipHistory bool
}

func newReconciler(slot *Slot, store Store, cache *BufferCache, sched Scheduler, delay time.Duration, logger pslog.Logger, sink EventSink) *reconciler {
	return &reconciler{
		slot:  slot,
		store: store,
		cache: cache,
		sched: sched,
		delay: delay,
		log:   logger,
		sink:  sink,
	}
}

func (r *reconciler) logger() pslog.Logger {
	return logx.WithSlot(r.log, r.slot.role, r.slot.tabID)
}

// pending reports whether a debounced push is armed.
func (r *reconciler) pending() bool {
	return r.cancelPush != nil
}

// onContentChange handles a change reported by the slot's surface.
func (r *reconciler) onContentChange(change ContentChange) {
	tabID, buf := r.slot.tabID, r.slot.buffer
	if tabID == "" || buf == nil || buf.IsDisposed() {
		return
	}
	if r.slot.guard.mutating() {
		r.logger().Trace("content change ignored", "state", r.slot.guard.state().String(), "version", change.Version)
		return
	}
	if !r.pending() {
		// Echo of a write that already reached the store, e.g. a sync
		// performed by another slot sharing this buffer.
		if tab, ok := r.store.Tab(tabID); ok && tab.Content == buf.Text() {
			return
		}
	}
	r.store.MarkTabDirty(tabID)
	r.skipHistory = change.IsUndo || change.IsRedo
	if r.cancelPush != nil {
		r.cancelPush()
	}
	r.cancelPush = r.sched.AfterFunc(r.delay, r.push)
	r.logger().Trace("content push scheduled", "version", change.Version, "skip_history", r.skipHistory)
}

// push writes the buffer text into the store. It re-reads the buffer, so
// a coalesced burst yields one write holding the final text.
func (r *reconciler) push() {
	r.cancelPush = nil
	skip := r.skipHistory
	r.skipHistory = false
	tabID, buf := r.slot.tabID, r.slot.buffer
	if tabID == "" {
		return
	}
	log := r.logger()
	if buf == nil || buf.IsDisposed() {
		log.Debug("content push skipped", "err", schema.ErrBufferDisposed)
		return
	}
	tab, ok := r.store.Tab(tabID)
	if !ok {
		log.Debug("content push skipped", "err", schema.ErrTabNotFound)
		return
	}
	text := buf.Text()
	if tab.Content == text {
		return
	}
	r.store.UpdateTabContent(tabID, text, schema.UpdateContentOptions{SkipHistory: skip})
	log.Trace("content push ok", "version", buf.Version(), "bytes", len(text), "skip_history", skip)
	if r.sink != nil {
		r.sink.OnSessionEvent(schema.SessionEvent{Type: schema.EventContentPushed, Role: r.slot.role, TabID: tabID, SkipHistory: skip})
	}
}

// flush runs a pending push now.
func (r *reconciler) flush() {
	if r.cancelPush == nil {
		return
	}
	r.cancelPush()
	r.push()
}

// stop drops a pending push without running it.
func (r *reconciler) stop() {
	if r.cancelPush != nil {
		r.cancelPush()
		r.cancelPush = nil
	}
	r.skipHistory = false
}

// syncFromStore brings the store's content into the buffer. Local edits
// waiting for their push win; the store catches up when the push lands.
// The buffer is re-resolved through the cache first, so a handle disposed
// behind the slot's back is recreated and reattached.
func (r *reconciler) syncFromStore() {
	tabID := r.slot.tabID
	if tabID == "" {
		return
	}
	log := r.logger()
	if r.pending() {
		log.Trace("content sync deferred", "reason", "push pending")
		return
	}
	tab, ok := r.store.Tab(tabID)
	if !ok {
		log.Debug("content sync skipped", "err", schema.ErrTabNotFound)
		return
	}
	buf := r.cache.GetOrCreate(tab)
	if buf != r.slot.buffer {
		log.Debug("content sync reattach", "reason", "buffer recreated", "version", buf.Version())
		r.slot.attach(tabID, buf, false)
		r.slot.InvalidateRestore()
		r.slot.restore()
		r.emitSynced(tabID)
		return
	}
	if buf.Text() == tab.Content {
		return
	}
	done := r.slot.guard.begin(GuardSyncing)
	buf.PushStackElement()
	err := buf.ReplaceAll(tab.Content)
	buf.PushStackElement()
	done()
	if err != nil {
		log.Debug("content sync failed", "err", err)
		return
	}
	log.Trace("content sync ok", "version", buf.Version(), "bytes", len(tab.Content))
	r.emitSynced(tabID)
}

func (r *reconciler) emitSynced(tabID schema.TabID) {
	if r.sink != nil {
		r.sink.OnSessionEvent(schema.SessionEvent{Type: schema.EventContentSynced, Role: r.slot.role, TabID: tabID})
	}
}
