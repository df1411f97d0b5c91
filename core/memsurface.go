package core

import (
	"sync"

	"pkt.systems/mdpane/schema"
)

// MemorySurface is a headless Surface. It keeps caret, selection, focus and
// layout state in memory and exposes user actions (typing, moving, key
// presses) for scripted sessions and tests.
//
// Like a real widget it drops position calls made before it is laid out.
type MemorySurface struct {
	name     string
	buf      *Buffer
	bufSub   func()
	anchor   schema.Position
	active   schema.Position
	focused  bool
	ready    bool
	disposed bool

	revealFrom schema.Position
	revealTo   schema.Position
	revealed   bool
	dropped    int

	content   listenerSet[ContentChange]
	selection listenerSet[struct{}]
	focus     listenerSet[struct{}]
	readiness listenerSet[struct{}]
	keys      listenerSet[*KeyEvent]
}

// NewMemorySurface returns a surface; ready reports whether layout is already done.
func NewMemorySurface(name string, ready bool) *MemorySurface {
	return &MemorySurface{
		name:   name,
		ready:  ready,
		anchor: schema.DefaultPosition,
		active: schema.DefaultPosition,
	}
}

// Name returns the label given at construction.
func (s *MemorySurface) Name() string {
	return s.name
}

// Attach implements Surface.
func (s *MemorySurface) Attach(buf *Buffer) error {
	if s.disposed {
		return schema.ErrSurfaceDisposed
	}
	if s.bufSub != nil {
		s.bufSub()
		s.bufSub = nil
	}
	s.buf = buf
	s.anchor = schema.DefaultPosition
	s.active = schema.DefaultPosition
	if buf == nil {
		return nil
	}
	s.bufSub = buf.OnDidChangeContent(s.onBufferChange)
	s.selection.emit(struct{}{})
	return nil
}

// Buffer implements Surface.
func (s *MemorySurface) Buffer() *Buffer {
	return s.buf
}

// Cursor implements Surface.
func (s *MemorySurface) Cursor() (schema.Position, error) {
	if err := s.check(); err != nil {
		return schema.Position{}, err
	}
	return s.active, nil
}

// Selection implements Surface.
func (s *MemorySurface) Selection() (schema.Selection, error) {
	if err := s.check(); err != nil {
		return schema.Selection{}, err
	}
	return schema.SelectionFrom(s.anchor, s.active), nil
}

// SetCursor implements Surface.
func (s *MemorySurface) SetCursor(pos schema.Position) error {
	if err := s.checkLive(pos); err != nil {
		return err
	}
	if !s.ready {
		s.dropped++
		return nil
	}
	s.move(pos, pos)
	return nil
}

// SetSelection implements Surface.
func (s *MemorySurface) SetSelection(sel schema.Selection) error {
	if err := s.checkLive(sel.Start(), sel.End()); err != nil {
		return err
	}
	if !s.ready {
		s.dropped++
		return nil
	}
	s.move(sel.Start(), sel.End())
	return nil
}

// Reveal implements Surface.
func (s *MemorySurface) Reveal(from, to schema.Position) error {
	if err := s.checkLive(from, to); err != nil {
		return err
	}
	if !s.ready {
		s.dropped++
		return nil
	}
	s.revealFrom, s.revealTo, s.revealed = from, to, true
	return nil
}

// Focus implements Surface.
func (s *MemorySurface) Focus() error {
	if s.disposed {
		return schema.ErrSurfaceDisposed
	}
	if s.focused {
		return nil
	}
	s.focused = true
	s.focus.emit(struct{}{})
	return nil
}

// Blur drops focus without notifying anyone, as a click elsewhere would.
func (s *MemorySurface) Blur() {
	s.focused = false
}

// HasFocus implements Surface.
func (s *MemorySurface) HasFocus() bool {
	return s.focused && !s.disposed
}

// OnDidChangeContent implements Surface.
func (s *MemorySurface) OnDidChangeContent(fn func(ContentChange)) func() {
	return s.content.add(fn)
}

// OnDidChangeSelection implements Surface.
func (s *MemorySurface) OnDidChangeSelection(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return s.selection.add(func(struct{}) { fn() })
}

// OnDidFocus implements Surface.
func (s *MemorySurface) OnDidFocus(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return s.focus.add(func(struct{}) { fn() })
}

// OnKeyDown implements Surface.
func (s *MemorySurface) OnKeyDown(fn func(*KeyEvent)) func() {
	return s.keys.add(fn)
}

// Ready implements ReadySignaler.
func (s *MemorySurface) Ready() bool {
	return s.ready && !s.disposed
}

// OnReady implements ReadySignaler.
func (s *MemorySurface) OnReady(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return s.readiness.add(func(struct{}) { fn() })
}

// SetReady flips layout readiness and notifies listeners when it becomes ready.
func (s *MemorySurface) SetReady(ready bool) {
	was := s.ready
	s.ready = ready
	if ready && !was && !s.disposed {
		s.readiness.emit(struct{}{})
	}
}

// IsDisposed implements Surface.
func (s *MemorySurface) IsDisposed() bool {
	return s.disposed
}

// Dispose tears the surface down. The attached buffer is left alone.
func (s *MemorySurface) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.bufSub != nil {
		s.bufSub()
		s.bufSub = nil
	}
	s.content.clear()
	s.selection.clear()
	s.focus.clear()
	s.readiness.clear()
	s.keys.clear()
}

// LastReveal returns the last range scrolled into view.
func (s *MemorySurface) LastReveal() (schema.Position, schema.Position, bool) {
	return s.revealFrom, s.revealTo, s.revealed
}

// Dropped counts position calls ignored because layout was not ready.
func (s *MemorySurface) Dropped() int {
	return s.dropped
}

// Type replaces the selection (or inserts at the caret) with text as one undo step.
func (s *MemorySurface) Type(text string) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.buf.IsDisposed() {
		return schema.ErrBufferDisposed
	}
	start, end := schema.SelectionFrom(s.anchor, s.active).Ordered()
	s.buf.PushStackElement()
	if err := s.buf.Replace(start, end, text); err != nil {
		return err
	}
	s.buf.PushStackElement()
	after := PositionAfter(start, text)
	s.move(after, after)
	return nil
}

// MoveTo places the caret as a user click would.
func (s *MemorySurface) MoveTo(pos schema.Position) error {
	if err := s.checkLive(pos); err != nil {
		return err
	}
	s.move(pos, pos)
	return nil
}

// Select selects a range as a user drag would.
func (s *MemorySurface) Select(sel schema.Selection) error {
	if err := s.checkLive(sel.Start(), sel.End()); err != nil {
		return err
	}
	s.move(sel.Start(), sel.End())
	return nil
}

// Press offers chord to key interceptors. It reports whether one handled it.
func (s *MemorySurface) Press(chord KeyChord) bool {
	if s.disposed {
		return false
	}
	event := &KeyEvent{Chord: chord}
	s.keys.emit(event)
	return event.Handled
}

func (s *MemorySurface) onBufferChange(change ContentChange) {
	anchor := s.buf.ClampPosition(s.anchor)
	active := s.buf.ClampPosition(s.active)
	s.content.emit(change)
	if anchor != s.anchor || active != s.active {
		s.anchor, s.active = anchor, active
		s.selection.emit(struct{}{})
	}
}

func (s *MemorySurface) move(anchor, active schema.Position) {
	if anchor == s.anchor && active == s.active {
		return
	}
	s.anchor, s.active = anchor, active
	s.selection.emit(struct{}{})
}

func (s *MemorySurface) check() error {
	if s.disposed {
		return schema.ErrSurfaceDisposed
	}
	if s.buf == nil {
		return schema.ErrNoBuffer
	}
	return nil
}

func (s *MemorySurface) checkLive(positions ...schema.Position) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.buf.IsDisposed() {
		return schema.ErrBufferDisposed
	}
	for _, pos := range positions {
		if !s.buf.ValidPosition(pos) {
			return schema.ErrPositionOutOfRange
		}
	}
	return nil
}

// MemorySurfaces hands out a fresh MemorySurface per request and remembers
// the latest one per role.
type MemorySurfaces struct {
	mu     sync.Mutex
	ready  bool
	latest map[schema.Role]*MemorySurface
}

// NewMemorySurfaces returns a provider whose surfaces start with the given readiness.
func NewMemorySurfaces(ready bool) *MemorySurfaces {
	return &MemorySurfaces{ready: ready, latest: make(map[schema.Role]*MemorySurface)}
}

// Surface implements SurfaceProvider.
func (p *MemorySurfaces) Surface(role schema.Role) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	surface := NewMemorySurface(string(role), p.ready)
	p.latest[role] = surface
	return surface, nil
}

// Latest returns the most recent surface handed out for role.
func (p *MemorySurfaces) Latest(role schema.Role) *MemorySurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest[role]
}
