package eventbus

import (
	"context"
	"sync"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// AllTabs subscribes to events of every tab, including tab-less ones.
const AllTabs schema.TabID = ""

// Bus fans session events out to per-tab subscribers. It implements
// core.EventSink, so it can be handed to a session directly.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.TabID]map[chan schema.SessionEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.TabID]map[chan schema.SessionEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for tabID and returns a channel + cancel.
// AllTabs receives everything.
func (b *Bus) Subscribe(tabID schema.TabID) (<-chan schema.SessionEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.SessionEvent, b.depth)
	b.mu.Lock()
	tabSubs := b.subs[tabID]
	if tabSubs == nil {
		tabSubs = make(map[chan schema.SessionEvent]struct{})
		b.subs[tabID] = tabSubs
	}
	tabSubs[ch] = struct{}{}
	count := len(tabSubs)
	b.mu.Unlock()
	b.log.With("tab", tabID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[tabID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, tabID)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.With("tab", tabID).Debug("eventbus unsubscribe")
		})
	}
}

// OnSessionEvent publishes a session event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan schema.SessionEvent, 0, len(b.subs[event.TabID])+len(b.subs[AllTabs]))
	for sub := range b.subs[AllTabs] {
		subs = append(subs, sub)
	}
	if event.TabID != AllTabs {
		for sub := range b.subs[event.TabID] {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("tab", event.TabID).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
