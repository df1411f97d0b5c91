package core

import (
	"context"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// BufferCache owns the edit buffers, keyed by tab id. A buffer lives until
// its tab is closed; view-mode transitions and slot remounts reuse it.
type BufferCache struct {
	buffers map[schema.TabID]*Buffer
	log     pslog.Logger
	sink    EventSink
}

// NewBufferCache constructs an empty cache.
func NewBufferCache(logger pslog.Logger, sink EventSink) *BufferCache {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &BufferCache{
		buffers: make(map[schema.TabID]*Buffer),
		log:     logger,
		sink:    sink,
	}
}

// GetOrCreate returns the live buffer for tab, creating and hydrating one
// when the cache has none or holds a disposed one. A hit is returned as is;
// content reconciliation is not done here.
func (c *BufferCache) GetOrCreate(tab schema.Tab) *Buffer {
	if buf, ok := c.buffers[tab.ID]; ok {
		if !buf.IsDisposed() {
			return buf
		}
		logx.WithTab(c.log, tab.ID).Debug("buffer cache stale entry", "version", buf.Version())
	}
	buf := newEditBuffer(tab.ID, tab.Content, tab.Language)
	depth := hydrateHistory(buf, tab.HistorySnapshots())
	c.buffers[tab.ID] = buf
	logx.WithTab(c.log, tab.ID).Debug("buffer cache create", "language", buf.Language(), "lexer", buf.Lexer(), "undo_depth", depth)
	return buf
}

// Peek returns the cached buffer for id when it is still live.
func (c *BufferCache) Peek(id schema.TabID) (*Buffer, bool) {
	if c == nil {
		return nil, false
	}
	buf, ok := c.buffers[id]
	if !ok || buf.IsDisposed() {
		return nil, false
	}
	return buf, true
}

// Dispose disposes and forgets the buffer for id. Call it only when the tab closes.
func (c *BufferCache) Dispose(id schema.TabID) {
	buf, ok := c.buffers[id]
	if !ok {
		return
	}
	delete(c.buffers, id)
	buf.Dispose()
	logx.WithTab(c.log, id).Debug("buffer cache dispose")
	if c.sink != nil {
		c.sink.OnSessionEvent(schema.SessionEvent{Type: schema.EventBufferDisposed, TabID: id})
	}
}

// DisposeAll disposes every cached buffer.
func (c *BufferCache) DisposeAll() {
	for id := range c.buffers {
		c.Dispose(id)
	}
}

// Len returns the number of cached entries, disposed ones included.
func (c *BufferCache) Len() int {
	return len(c.buffers)
}

// hydrateHistory seeds buf so that undo walks back through snapshots.
// It returns the resulting undo depth. Redo is never reconstructed.
func hydrateHistory(buf *Buffer, snapshots []string) int {
	if len(snapshots) == 0 {
		return 0
	}
	if err := buf.SetValue(snapshots[0]); err != nil {
		return 0
	}
	for _, snapshot := range snapshots[1:] {
		buf.PushStackElement()
		if err := buf.ReplaceAll(snapshot); err != nil {
			// Fall back to the latest content with no history.
			_ = buf.SetValue(snapshots[len(snapshots)-1])
			return 0
		}
		buf.PushStackElement()
	}
	return len(buf.undo)
}
