package schema

import "errors"

// Lookup errors
var (
	// ErrTabNotFound indicates a requested tab is not open.
	ErrTabNotFound = errors.New("tab not found")
	// ErrSlotNotMounted indicates no slot is mounted for the role.
	ErrSlotNotMounted = errors.New("slot not mounted")
	// ErrSlotMounted indicates a slot is already mounted for the role.
	ErrSlotMounted = errors.New("slot already mounted")
)

// Stale-handle errors. These are expected during fast tab and mode switching
// and are swallowed where they occur.
var (
	// ErrBufferDisposed indicates the edit buffer was disposed.
	ErrBufferDisposed = errors.New("buffer disposed")
	// ErrSurfaceDisposed indicates the editing surface was torn down.
	ErrSurfaceDisposed = errors.New("surface disposed")
	// ErrNoBuffer indicates the surface has no buffer attached.
	ErrNoBuffer = errors.New("no buffer attached")
	// ErrPositionOutOfRange indicates a position outside the buffer content.
	ErrPositionOutOfRange = errors.New("position out of range")
)

// Validation errors
var (
	// ErrInvalidRole indicates an unknown slot role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidMode indicates an unknown view mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidConfig indicates a session config that cannot be used.
	ErrInvalidConfig = errors.New("invalid session config")
)

// Collaborator errors
var (
	// ErrMissingStore indicates no document store was provided.
	ErrMissingStore = errors.New("document store is required")
	// ErrMissingScheduler indicates no scheduler was provided.
	ErrMissingScheduler = errors.New("scheduler is required")
	// ErrMissingSurface indicates no surface was available for a slot.
	ErrMissingSurface = errors.New("surface is required")
)
