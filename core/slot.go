package core

import (
	"context"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// SlotOptions selects what a slot shows when it mounts.
type SlotOptions struct {
	// TabID is the tab to show. Empty means the store's active tab for the
	// primary slot and nothing for the others.
	TabID schema.TabID
	// Baseline shows the tab's saved content in a read-only buffer owned by
	// the slot instead of the tab's live buffer. Used for the left diff pane.
	Baseline bool
	// Focus overrides whether restore focuses the surface. Primary and
	// diff-right focus by default.
	Focus *bool
}

// Slot is one mounted editing surface. It borrows a buffer from the cache
// and never disposes it; the only buffer it owns is a baseline buffer.
type Slot struct {
	role           schema.Role
	surface        Surface
	store          Store
	cache          *BufferCache
	registry       *Registry
	keeper         *PositionKeeper
	reconciler     *reconciler
	log            pslog.Logger
	sink           EventSink
	focusOnRestore bool

	tabID    schema.TabID
	buffer   *Buffer
	owned    bool
	baseline bool
	guard    suppressGuard

	mounted       bool
	unregister    func()
	subs          []func()
	lastRestored  schema.TabID
	cancelRestore func()
}

type slotDeps struct {
	store    Store
	cache    *BufferCache
	registry *Registry
	keeper   *PositionKeeper
	sched    Scheduler
	cfg      schema.SessionConfig
	sink     EventSink
	logger   pslog.Logger
}

func newSlot(role schema.Role, surface Surface, deps slotDeps) *Slot {
	logger := deps.logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	slot := &Slot{
		role:           role,
		surface:        surface,
		store:          deps.store,
		cache:          deps.cache,
		registry:       deps.registry,
		keeper:         deps.keeper,
		log:            logger,
		sink:           deps.sink,
		focusOnRestore: role == schema.RolePrimary || role == schema.RoleDiffRight,
	}
	slot.reconciler = newReconciler(slot, deps.store, deps.cache, deps.sched, deps.cfg.DebounceDelay, logger, deps.sink)
	return slot
}

// Role returns the slot role.
func (s *Slot) Role() schema.Role {
	if s == nil {
		return ""
	}
	return s.role
}

// TabID returns the tab currently shown, or "".
func (s *Slot) TabID() schema.TabID {
	if s == nil {
		return ""
	}
	return s.tabID
}

// Buffer returns the attached buffer.
func (s *Slot) Buffer() *Buffer {
	if s == nil {
		return nil
	}
	return s.buffer
}

// Surface returns the slot's surface.
func (s *Slot) Surface() Surface {
	if s == nil {
		return nil
	}
	return s.surface
}

// Mounted reports whether the slot is registered.
func (s *Slot) Mounted() bool {
	return s != nil && s.mounted
}

// IsBaseline reports whether the slot shows a read-only saved copy.
func (s *Slot) IsBaseline() bool {
	return s != nil && s.baseline
}

// GuardState reports the capture-suppression state.
func (s *Slot) GuardState() GuardState {
	if s == nil {
		return GuardIdle
	}
	return s.guard.state()
}

// PendingPush reports whether edits are waiting for their debounced push.
func (s *Slot) PendingPush() bool {
	return s != nil && s.reconciler.pending()
}

func (s *Slot) logger() pslog.Logger {
	return logx.WithSlot(s.log, s.role, s.tabID)
}

// mount registers the slot, shows its tab, restores the stored position,
// subscribes to surface and store events and announces the slot.
func (s *Slot) mount(opts SlotOptions) error {
	if s.mounted {
		return schema.ErrSlotMounted
	}
	if s.surface == nil || s.surface.IsDisposed() {
		return schema.ErrMissingSurface
	}
	unregister, err := s.registry.Register(s)
	if err != nil {
		return err
	}
	s.unregister = unregister
	s.mounted = true
	if opts.Focus != nil {
		s.focusOnRestore = *opts.Focus
	}
	s.baseline = opts.Baseline

	tabID := opts.TabID
	if tabID == "" && s.role == schema.RolePrimary {
		tabID = s.store.ActiveTabID()
	}
	if tabID != "" {
		if !s.show(tabID) {
			s.logger().Debug("slot mount tab missing", "requested", tabID)
		}
	}

	s.subs = append(s.subs,
		s.surface.OnDidChangeContent(s.onContentChange),
		s.surface.OnDidChangeSelection(s.onSelectionChange),
		s.surface.OnDidFocus(s.onFocus),
		s.surface.OnKeyDown(s.onKeyDown),
		s.store.Subscribe(s.onStoreChange),
	)
	if s.surface.HasFocus() {
		s.registry.NoteFocus(s.role)
	}
	s.registry.announce(s)
	s.logger().Debug("slot mount ok", "baseline", s.baseline)
	s.emit(schema.SessionEvent{Type: schema.EventSlotMounted})
	return nil
}

// Unmount flushes pending edits, stores the final position and
// unregisters. The borrowed buffer stays alive in the cache.
func (s *Slot) Unmount() error {
	if s == nil || !s.mounted {
		return schema.ErrSlotNotMounted
	}
	s.reconciler.flush()
	s.capture()
	s.stopRestore()
	s.reconciler.stop()
	for _, dispose := range s.subs {
		dispose()
	}
	s.subs = nil
	if s.owned && s.buffer != nil {
		s.buffer.Dispose()
	}
	s.owned = false
	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}
	s.mounted = false
	s.lastRestored = ""
	s.logger().Debug("slot unmount ok")
	s.emit(schema.SessionEvent{Type: schema.EventSlotUnmounted})
	return nil
}

// SwitchTab shows another tab. Pending edits of the old tab are pushed and
// its position stored before the buffers are swapped. An empty id leaves
// the slot without a buffer.
func (s *Slot) SwitchTab(id schema.TabID) error {
	if s == nil || !s.mounted {
		return schema.ErrSlotNotMounted
	}
	if id == s.tabID {
		return nil
	}
	if id != "" {
		if _, ok := s.store.Tab(id); !ok {
			return schema.ErrTabNotFound
		}
	}
	from := s.tabID
	s.reconciler.flush()
	s.capture()
	s.stopRestore()
	s.reconciler.stop()
	if id == "" {
		s.attach("", nil, false)
	} else {
		s.show(id)
	}
	s.logger().Debug("slot switch ok", "from", from)
	s.emit(schema.SessionEvent{Type: schema.EventSlotSwitched})
	return nil
}

// show attaches the buffer for id, syncs it with the store and restores
// the stored position.
func (s *Slot) show(id schema.TabID) bool {
	tab, ok := s.store.Tab(id)
	if !ok {
		return false
	}
	if s.baseline {
		buf := newEditBuffer(tab.ID, tab.SavedContent, tab.Language)
		s.attach(tab.ID, buf, true)
		return true
	}
	s.attach(tab.ID, s.cache.GetOrCreate(tab), false)
	s.reconciler.syncFromStore()
	s.restore()
	return true
}

// attach swaps the surface to buf. Detach and attach run back to back
// inside a swapping window so neither step is captured.
func (s *Slot) attach(id schema.TabID, buf *Buffer, owned bool) {
	done := s.guard.begin(GuardSwapping)
	defer done()
	if s.surface.Buffer() != nil {
		if err := s.surface.Attach(nil); err != nil {
			s.logger().Debug("slot detach failed", "err", err)
		}
	}
	if s.owned && s.buffer != nil && s.buffer != buf {
		s.buffer.Dispose()
	}
	s.tabID = id
	s.buffer = buf
	s.owned = owned
	if buf == nil {
		return
	}
	if err := s.surface.Attach(buf); err != nil {
		s.logger().Debug("slot attach failed", "err", err)
	}
}

// InvalidateRestore forgets which tab was last restored, so the next
// restore runs even for the same tab.
func (s *Slot) InvalidateRestore() {
	if s == nil {
		return
	}
	s.lastRestored = ""
}

// Restore applies the stored position of the current tab unless it was
// already applied since the last invalidation.
func (s *Slot) Restore() {
	if s == nil || !s.mounted {
		return
	}
	s.restore()
}

func (s *Slot) restore() {
	if s.baseline || s.tabID == "" {
		return
	}
	if s.lastRestored == s.tabID {
		s.logger().Trace("slot restore skipped", "reason", "already restored")
		return
	}
	s.stopRestore()
	s.lastRestored = s.tabID
	s.cancelRestore = s.keeper.Restore(s.tabID, s)
}

func (s *Slot) stopRestore() {
	if s.cancelRestore != nil {
		s.cancelRestore()
		s.cancelRestore = nil
	}
}

// Capture stores the current position of the shown tab. It reports whether
// the store was written.
func (s *Slot) Capture() bool {
	if s == nil || !s.mounted {
		return false
	}
	return s.capture()
}

func (s *Slot) capture() bool {
	if s.baseline || s.tabID == "" {
		return false
	}
	return s.keeper.Capture(s.tabID, s)
}

// Flush pushes pending edits to the store now.
func (s *Slot) Flush() {
	if s == nil {
		return
	}
	s.reconciler.flush()
}

// SyncFromStore brings store content into the buffer unless local edits
// are waiting.
func (s *Slot) SyncFromStore() {
	if s == nil || !s.mounted || s.baseline {
		return
	}
	s.reconciler.syncFromStore()
}

// Cursor returns the surface caret.
func (s *Slot) Cursor() (schema.Position, error) {
	if s == nil || s.surface == nil {
		return schema.Position{}, schema.ErrSlotNotMounted
	}
	return s.surface.Cursor()
}

// Selection returns the surface selection.
func (s *Slot) Selection() (schema.Selection, error) {
	if s == nil || s.surface == nil {
		return schema.Selection{}, schema.ErrSlotNotMounted
	}
	return s.surface.Selection()
}

// Undo steps the buffer's native history back. The resulting push skips
// the store's snapshot list.
func (s *Slot) Undo() bool {
	if s == nil || !s.mounted || s.baseline || s.buffer.IsDisposed() {
		return false
	}
	return s.buffer.Undo()
}

// Redo re-applies an undone step on the buffer's native history.
func (s *Slot) Redo() bool {
	if s == nil || !s.mounted || s.baseline || s.buffer.IsDisposed() {
		return false
	}
	return s.buffer.Redo()
}

// HandleKey offers chord to the undo/redo interceptor. It reports whether
// the chord was consumed.
func (s *Slot) HandleKey(chord KeyChord) bool {
	event := &KeyEvent{Chord: chord}
	s.onKeyDown(event)
	return event.Handled
}

func (s *Slot) onKeyDown(event *KeyEvent) {
	if event == nil || event.Handled {
		return
	}
	switch {
	case event.Chord.isUndoChord():
		s.Undo()
		event.Handled = true
	case event.Chord.isRedoChord():
		s.Redo()
		event.Handled = true
	}
}

func (s *Slot) onContentChange(change ContentChange) {
	if s.baseline {
		return
	}
	s.reconciler.onContentChange(change)
}

func (s *Slot) onSelectionChange() {
	s.capture()
}

func (s *Slot) onFocus() {
	s.registry.NoteFocus(s.role)
}

func (s *Slot) onStoreChange(id schema.TabID) {
	if id == "" || id != s.tabID {
		return
	}
	if s.baseline {
		s.refreshBaseline()
		return
	}
	s.reconciler.syncFromStore()
}

// refreshBaseline rebuilds the owned baseline buffer once the tab's saved
// content no longer matches it.
func (s *Slot) refreshBaseline() {
	tab, ok := s.store.Tab(s.tabID)
	if !ok {
		return
	}
	if !s.buffer.IsDisposed() && s.buffer.Text() == tab.SavedContent {
		return
	}
	s.attach(tab.ID, newEditBuffer(tab.ID, tab.SavedContent, tab.Language), true)
	s.logger().Debug("slot baseline refresh ok", "bytes", len(tab.SavedContent))
}

func (s *Slot) emit(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	event.Role = s.role
	if event.TabID == "" {
		event.TabID = s.tabID
	}
	s.sink.OnSessionEvent(event)
}
