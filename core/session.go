package core

import (
	"context"
	"fmt"
	"slices"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// Session wires the buffer cache, slot registry, position keeper and mode
// controller over one store. It mounts and unmounts slots as the mode
// changes and routes global commands to the active slot.
//
// A session must only be used from its scheduler's loop.
type Session struct {
	cfg      schema.SessionConfig
	store    Store
	sched    Scheduler
	surfaces SurfaceProvider
	mode     *ModeController
	sink     EventSink
	log      pslog.Logger

	cache    *BufferCache
	registry *Registry
	keeper   *PositionKeeper

	provided map[schema.Role]Surface
	diffBase schema.TabID
	stopMode func()
	closed   bool
}

// NewSession constructs a session. No slot is mounted until Start.
func NewSession(cfg schema.SessionConfig, deps SessionDeps) (*Session, error) {
	normalized, err := schema.NormalizeSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Store == nil {
		return nil, schema.ErrMissingStore
	}
	if deps.Scheduler == nil {
		return nil, schema.ErrMissingScheduler
	}
	if deps.Surfaces == nil {
		return nil, schema.ErrMissingSurface
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	mode := deps.Mode
	if mode == nil {
		mode = NewModeController(schema.ModeNone, logger)
	}
	cache := NewBufferCache(logger, deps.EventSink)
	s := &Session{
		cfg:      cfg,
		store:    deps.Store,
		sched:    deps.Scheduler,
		surfaces: deps.Surfaces,
		mode:     mode,
		sink:     deps.EventSink,
		log:      logger,
		cache:    cache,
		registry: NewRegistry(cache, deps.Scheduler, cfg, logger),
		keeper:   NewPositionKeeper(deps.Store, deps.Scheduler, cfg.RestoreAttempts, logger, deps.EventSink),
		provided: make(map[schema.Role]Surface),
	}
	s.stopMode = mode.OnChange(s.onModeChange)
	return s, nil
}

// Config returns the normalized session config.
func (s *Session) Config() schema.SessionConfig {
	return s.cfg
}

// Mode returns the mode controller.
func (s *Session) Mode() *ModeController {
	return s.mode
}

// Registry returns the slot registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Buffers returns the buffer cache.
func (s *Session) Buffers() *BufferCache {
	if s == nil {
		return nil
	}
	return s.cache
}

// Keeper returns the position keeper.
func (s *Session) Keeper() *PositionKeeper {
	return s.keeper
}

// Slot returns the mounted slot for role.
func (s *Session) Slot(role schema.Role) (*Slot, bool) {
	return s.registry.Slot(role)
}

// ActiveSlot returns the slot global commands should target.
func (s *Session) ActiveSlot() *Slot {
	return s.registry.ActiveSlot()
}

// Start mounts the slots of the current mode on the store's active tab.
func (s *Session) Start() error {
	mode := s.mode.Mode()
	tabID := s.store.ActiveTabID()
	for _, role := range mode.Roles() {
		if _, ok := s.registry.Slot(role); ok {
			continue
		}
		if err := s.mountRole(role, tabID); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}
	s.log.Info("session start ok", "mode", mode, "tab", tabID)
	return nil
}

// Mount mounts a slot for role on a surface from the session's provider.
func (s *Session) Mount(role schema.Role, opts SlotOptions) (*Slot, error) {
	if !role.Valid() {
		return nil, schema.ErrInvalidRole
	}
	if _, ok := s.registry.Slot(role); ok {
		return nil, schema.ErrSlotMounted
	}
	surface, err := s.surfaces.Surface(role)
	if err != nil {
		return nil, fmt.Errorf("surface for %s: %w", role, err)
	}
	if surface == nil {
		return nil, schema.ErrMissingSurface
	}
	slot, err := s.MountSurface(role, surface, opts)
	if err != nil {
		disposeSurface(surface)
		return nil, err
	}
	s.provided[role] = surface
	return slot, nil
}

// MountSurface mounts a slot for role on a surface owned by the caller.
func (s *Session) MountSurface(role schema.Role, surface Surface, opts SlotOptions) (*Slot, error) {
	if !role.Valid() {
		return nil, schema.ErrInvalidRole
	}
	slot := newSlot(role, surface, slotDeps{
		store:    s.store,
		cache:    s.cache,
		registry: s.registry,
		keeper:   s.keeper,
		sched:    s.sched,
		cfg:      s.cfg,
		sink:     s.sink,
		logger:   s.log,
	})
	if err := slot.mount(opts); err != nil {
		logx.WithSlot(s.log, role, opts.TabID).Debug("session mount failed", "err", err)
		return nil, err
	}
	return slot, nil
}

// Unmount unmounts the slot for role. Surfaces obtained from the provider
// are disposed with it.
func (s *Session) Unmount(role schema.Role) error {
	slot, ok := s.registry.Slot(role)
	if !ok {
		return schema.ErrSlotNotMounted
	}
	err := slot.Unmount()
	if surface, ok := s.provided[role]; ok {
		delete(s.provided, role)
		disposeSurface(surface)
	}
	return err
}

// SetMode requests a view-mode change. Setting the current mode is a no-op.
func (s *Session) SetMode(mode schema.Mode) error {
	_, err := s.mode.Set(mode)
	return err
}

// SetDiffBase makes the left diff pane show tab id instead of the saved
// copy of the right pane's tab. An empty id restores the saved copy.
func (s *Session) SetDiffBase(id schema.TabID) error {
	if id != "" {
		if _, ok := s.store.Tab(id); !ok {
			return schema.ErrTabNotFound
		}
	}
	if id == s.diffBase {
		return nil
	}
	s.diffBase = id
	if !s.mode.Mode().IsDiff() {
		return nil
	}
	if _, ok := s.registry.Slot(schema.RoleDiffLeft); ok {
		if err := s.Unmount(schema.RoleDiffLeft); err != nil {
			return err
		}
	}
	return s.mountRole(schema.RoleDiffLeft, s.foregroundTab(s.mode.Mode()))
}

// ActivateTab shows tab id in the foreground slots. The secondary split
// pane keeps its own tab once it has one.
func (s *Session) ActivateTab(id schema.TabID) error {
	tab, ok := s.store.Tab(id)
	if !ok {
		return schema.ErrTabNotFound
	}
	for _, slot := range s.registry.Slots() {
		switch slot.Role() {
		case schema.RoleSecondary:
			if slot.TabID() != "" {
				continue
			}
		case schema.RoleDiffLeft:
			if s.diffBase != "" {
				continue
			}
		}
		if err := slot.SwitchTab(id); err != nil {
			return fmt.Errorf("activate tab: %w", err)
		}
	}
	logx.WithTab(s.log, id).Debug("session activate ok")
	if s.cfg.FollowTabMode {
		return s.SetMode(tab.ViewMode())
	}
	return nil
}

// CloseTab detaches every slot showing id and disposes its buffer. Pending
// edits are pushed and positions stored first. Removing the tab from the
// store is left to the caller.
func (s *Session) CloseTab(id schema.TabID) {
	slots := s.registry.Slots()
	for i := len(slots) - 1; i >= 0; i-- {
		slot := slots[i]
		if slot.TabID() != id {
			continue
		}
		if err := slot.SwitchTab(""); err != nil {
			logx.WithSlot(s.log, slot.Role(), id).Debug("session close detach failed", "err", err)
		}
	}
	if s.diffBase == id {
		s.diffBase = ""
	}
	s.cache.Dispose(id)
	logx.WithTab(s.log, id).Debug("session close tab ok")
}

// Undo runs native undo on the active slot.
func (s *Session) Undo() bool {
	return s.ActiveSlot().Undo()
}

// Redo runs native redo on the active slot.
func (s *Session) Redo() bool {
	return s.ActiveSlot().Redo()
}

// Flush pushes pending edits of every slot.
func (s *Session) Flush() {
	for _, slot := range s.registry.Slots() {
		slot.Flush()
	}
}

// Close unmounts every slot and disposes all buffers.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopMode()
	slots := s.registry.Slots()
	for i := len(slots) - 1; i >= 0; i-- {
		if err := s.Unmount(slots[i].Role()); err != nil {
			logx.WithSlot(s.log, slots[i].Role(), slots[i].TabID()).Debug("session close unmount failed", "err", err)
		}
	}
	s.cache.DisposeAll()
	s.log.Info("session close ok")
}

// onModeChange stores the position from the slot that holds the live
// document in the outgoing mode, then mounts and unmounts slots for the
// incoming mode and restores positions on what is mounted.
func (s *Session) onModeChange(change ModeChange) {
	log := s.log.With("from", change.From, "to", change.To)
	log.Debug("session mode transition begin")
	for _, slot := range s.registry.Slots() {
		slot.InvalidateRestore()
	}
	tabID := s.foregroundTab(change.From)
	if source, ok := s.registry.Slot(change.From.Foreground()); ok {
		source.Flush()
		source.Capture()
	}

	wanted := change.To.Roles()
	mounted := s.registry.Slots()
	for i := len(mounted) - 1; i >= 0; i-- {
		role := mounted[i].Role()
		if slices.Contains(wanted, role) {
			continue
		}
		if err := s.Unmount(role); err != nil {
			log.Debug("session mode unmount failed", "slot", role, "err", err)
		}
	}
	for _, role := range wanted {
		if _, ok := s.registry.Slot(role); ok {
			continue
		}
		if err := s.mountRole(role, tabID); err != nil {
			log.Warn("session mode mount failed", "slot", role, "err", err)
		}
	}
	for _, slot := range s.registry.Slots() {
		slot.InvalidateRestore()
		slot.Restore()
	}
	log.Info("session mode transition ok", "tab", tabID)
	if s.sink != nil {
		s.sink.OnSessionEvent(schema.SessionEvent{Type: schema.EventModeChanged, TabID: tabID, From: change.From, To: change.To})
	}
}

func (s *Session) mountRole(role schema.Role, tabID schema.TabID) error {
	// In split mode primary and secondary borrow the same cached buffer of
	// tabID. Both reconcilers schedule a push for each edit; the later one
	// finds the store current and writes nothing.
	opts := SlotOptions{TabID: tabID}
	if role == schema.RoleDiffLeft {
		if s.diffBase != "" {
			opts.TabID = s.diffBase
		} else {
			opts.Baseline = true
		}
	}
	_, err := s.Mount(role, opts)
	return err
}

// foregroundTab returns the tab shown by mode's foreground slot, falling
// back to the store's active tab.
func (s *Session) foregroundTab(mode schema.Mode) schema.TabID {
	if slot, ok := s.registry.Slot(mode.Foreground()); ok && slot.TabID() != "" {
		return slot.TabID()
	}
	return s.store.ActiveTabID()
}

type disposer interface {
	Dispose()
}

func disposeSurface(surface Surface) {
	if d, ok := surface.(disposer); ok {
		d.Dispose()
	}
}
