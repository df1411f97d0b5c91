package core

import "pkt.systems/mdpane/schema"

// Surface is a mounted editing widget. It shows one buffer at a time and
// owns the caret, selection and focus state for it.
//
// Position setters on a surface that has not been laid out yet may be
// dropped without error.
type Surface interface {
	// Attach shows buf; nil detaches the current buffer.
	Attach(buf *Buffer) error
	Buffer() *Buffer
	Cursor() (schema.Position, error)
	SetCursor(pos schema.Position) error
	// Selection returns anchor and active end; it is collapsed when nothing is selected.
	Selection() (schema.Selection, error)
	SetSelection(sel schema.Selection) error
	// Reveal scrolls the range into view.
	Reveal(from, to schema.Position) error
	Focus() error
	HasFocus() bool
	// OnDidChangeContent reports changes of the attached buffer.
	OnDidChangeContent(fn func(ContentChange)) func()
	// OnDidChangeSelection reports caret and selection moves.
	OnDidChangeSelection(fn func()) func()
	OnDidFocus(fn func()) func()
	// OnKeyDown reports key presses before the widget handles them.
	// A handler that sets Handled stops the widget's default action.
	OnKeyDown(fn func(*KeyEvent)) func()
	IsDisposed() bool
}

// KeyEvent is a key press offered to interceptors.
type KeyEvent struct {
	Chord   KeyChord
	Handled bool
}

// ReadySignaler is implemented by surfaces that report when their layout is ready.
// Position restoration waits for the signal instead of retrying blindly.
type ReadySignaler interface {
	Ready() bool
	OnReady(fn func()) func()
}

// SurfaceProvider creates the surface for a slot role.
type SurfaceProvider interface {
	Surface(role schema.Role) (Surface, error)
}

// SurfaceProviderFunc adapts a function to SurfaceProvider.
type SurfaceProviderFunc func(role schema.Role) (Surface, error)

// Surface implements SurfaceProvider.
func (f SurfaceProviderFunc) Surface(role schema.Role) (Surface, error) {
	return f(role)
}
