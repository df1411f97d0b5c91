package core

import "pkt.systems/pslog"

// SessionDeps captures the collaborators of a session. Store, Scheduler and
// Surfaces are required.
type SessionDeps struct {
	Store     Store
	Scheduler Scheduler
	Surfaces  SurfaceProvider
	// Mode is created in ModeNone when nil.
	Mode      *ModeController
	EventSink EventSink
	Logger    pslog.Logger
}
