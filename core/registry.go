package core

import (
	"context"
	"time"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// activeFallback is the order ActiveSlot walks when no mounted slot has
// reported focus. Secondary comes last so global commands never land on
// it while the primary exists.
var activeFallback = []schema.Role{
	schema.RolePrimary,
	schema.RoleDiffRight,
	schema.RoleDiffLeft,
	schema.RoleSecondary,
}

// Registry tracks mounted slots by role and arbitrates the active slot.
type Registry struct {
	slots     map[schema.Role]*Slot
	announced map[schema.Role]bool
	lastFocus schema.Role
	active    *Slot
	cache     *BufferCache
	sched     Scheduler
	interval  time.Duration
	attempts  int
	log       pslog.Logger

	available map[schema.Role]*listenerSet[*Slot]
	onActive  listenerSet[*Slot]
}

// NewRegistry constructs an empty registry over cache.
func NewRegistry(cache *BufferCache, sched Scheduler, cfg schema.SessionConfig, logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		slots:     make(map[schema.Role]*Slot),
		announced: make(map[schema.Role]bool),
		cache:     cache,
		sched:     sched,
		interval:  cfg.PollInterval,
		attempts:  cfg.PollAttempts,
		log:       logger,
		available: make(map[schema.Role]*listenerSet[*Slot]),
	}
}

// Buffers exposes the buffer cache to mounting slots.
func (r *Registry) Buffers() *BufferCache {
	if r == nil {
		return nil
	}
	return r.cache
}

// Register records slot under its role. The returned func removes it again.
func (r *Registry) Register(slot *Slot) (func(), error) {
	if slot == nil || !slot.role.Valid() {
		return nil, schema.ErrInvalidRole
	}
	if current, ok := r.slots[slot.role]; ok && current != slot {
		return nil, schema.ErrSlotMounted
	}
	r.slots[slot.role] = slot
	r.log.Trace("registry slot register", "slot", slot.role)
	done := false
	return func() {
		if done {
			return
		}
		done = true
		r.unregister(slot)
	}, nil
}

func (r *Registry) unregister(slot *Slot) {
	if r.slots[slot.role] != slot {
		return
	}
	delete(r.slots, slot.role)
	delete(r.announced, slot.role)
	if r.lastFocus == slot.role {
		r.lastFocus = ""
	}
	r.log.Trace("registry slot unregister", "slot", slot.role)
	r.refreshActive()
}

// announce publishes that slot finished mounting.
func (r *Registry) announce(slot *Slot) {
	if r.slots[slot.role] != slot {
		return
	}
	r.announced[slot.role] = true
	if set, ok := r.available[slot.role]; ok {
		set.emit(slot)
	}
	r.refreshActive()
}

// Slot returns the mounted slot for role.
func (r *Registry) Slot(role schema.Role) (*Slot, bool) {
	if r == nil {
		return nil, false
	}
	slot, ok := r.slots[role]
	if !ok || !r.announced[role] {
		return nil, false
	}
	return slot, true
}

// Slots returns the mounted slots in role order.
func (r *Registry) Slots() []*Slot {
	if r == nil {
		return nil
	}
	out := make([]*Slot, 0, len(r.slots))
	for _, role := range schema.Roles {
		if slot, ok := r.Slot(role); ok {
			out = append(out, slot)
		}
	}
	return out
}

// NoteFocus records that the slot for role took focus.
func (r *Registry) NoteFocus(role schema.Role) {
	if _, ok := r.slots[role]; !ok {
		return
	}
	r.lastFocus = role
	r.refreshActive()
}

// ActiveSlot returns the most recently focused mounted slot, or the
// primary when none has reported focus.
func (r *Registry) ActiveSlot() *Slot {
	if r == nil {
		return nil
	}
	if r.lastFocus != "" {
		if slot, ok := r.Slot(r.lastFocus); ok {
			return slot
		}
	}
	for _, role := range activeFallback {
		if slot, ok := r.Slot(role); ok {
			return slot
		}
	}
	return nil
}

// OnActiveChange registers fn for changes of ActiveSlot. fn receives nil
// when no slot is mounted.
func (r *Registry) OnActiveChange(fn func(*Slot)) func() {
	return r.onActive.add(fn)
}

func (r *Registry) refreshActive() {
	next := r.ActiveSlot()
	if next == r.active {
		return
	}
	r.active = next
	r.log.Trace("registry active slot", "slot", next.Role())
	r.onActive.emit(next)
}

// OnSlotAvailable calls fn each time a slot for role finishes mounting,
// and right away when one is mounted already.
func (r *Registry) OnSlotAvailable(role schema.Role, fn func(*Slot)) func() {
	if fn == nil {
		return func() {}
	}
	set, ok := r.available[role]
	if !ok {
		set = &listenerSet[*Slot]{}
		r.available[role] = set
	}
	remove := set.add(fn)
	if slot, ok := r.Slot(role); ok {
		fn(slot)
	}
	return remove
}

// WaitForSlot calls fn once with the slot for role as soon as it is
// mounted. Besides the mount event it polls a bounded number of times;
// when the polls run out fn receives ErrSlotNotMounted. The returned func
// cancels the wait.
func (r *Registry) WaitForSlot(role schema.Role, fn func(*Slot, error)) func() {
	if fn == nil {
		return func() {}
	}
	if slot, ok := r.Slot(role); ok {
		fn(slot, nil)
		return func() {}
	}
	done := false
	var removeListener, stopPoll func()
	finish := func(slot *Slot, err error) {
		if done {
			return
		}
		done = true
		if removeListener != nil {
			removeListener()
		}
		if stopPoll != nil {
			stopPoll()
		}
		fn(slot, err)
	}
	removeListener = r.OnSlotAvailable(role, func(slot *Slot) { finish(slot, nil) })

	attempt := 0
	var poll func()
	poll = func() {
		if done {
			return
		}
		attempt++
		if slot, ok := r.Slot(role); ok {
			finish(slot, nil)
			return
		}
		if attempt >= r.attempts {
			r.log.Debug("registry slot wait expired", "slot", role, "attempts", attempt)
			finish(nil, schema.ErrSlotNotMounted)
			return
		}
		stopPoll = r.sched.AfterFunc(r.interval, poll)
	}
	stopPoll = r.sched.AfterFunc(r.interval, poll)
	return func() {
		if done {
			return
		}
		done = true
		removeListener()
		stopPoll()
	}
}
