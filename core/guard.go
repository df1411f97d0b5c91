package core

// GuardState is the capture-suppression state of a slot.
type GuardState int

const (
	// GuardIdle allows captures.
	GuardIdle GuardState = iota
	// GuardSwapping is held while a slot attaches a different buffer.
	GuardSwapping
	// GuardSyncing is held while store content is written into a buffer.
	GuardSyncing
	// GuardRestoring is held while a blind restore has not been seen to land.
	// The surface still sits at its default position.
	GuardRestoring
)

func (s GuardState) String() string {
	switch s {
	case GuardSwapping:
		return "swapping"
	case GuardSyncing:
		return "syncing"
	case GuardRestoring:
		return "restoring"
	default:
		return "idle"
	}
}

// suppressGuard counts open suppression windows per reason, so a sync that
// ends inside a swap does not reopen captures early.
type suppressGuard struct {
	swapping  int
	syncing   int
	restoring int
}

// begin opens a window for state. The returned func closes it; extra calls are no-ops.
func (g *suppressGuard) begin(state GuardState) func() {
	switch state {
	case GuardSwapping:
		g.swapping++
	case GuardSyncing:
		g.syncing++
	case GuardRestoring:
		g.restoring++
	default:
		return func() {}
	}
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		switch state {
		case GuardSwapping:
			g.swapping--
		case GuardSyncing:
			g.syncing--
		case GuardRestoring:
			g.restoring--
		}
	}
}

// active reports whether captures are suppressed.
func (g *suppressGuard) active() bool {
	return g.swapping > 0 || g.syncing > 0 || g.restoring > 0
}

// mutating reports whether buffer content is being replaced by the slot
// itself. Content changes seen then are not user edits.
func (g *suppressGuard) mutating() bool {
	return g.swapping > 0 || g.syncing > 0
}

// state reports the dominant open window: swapping, then syncing, then restoring.
func (g *suppressGuard) state() GuardState {
	switch {
	case g.swapping > 0:
		return GuardSwapping
	case g.syncing > 0:
		return GuardSyncing
	case g.restoring > 0:
		return GuardRestoring
	default:
		return GuardIdle
	}
}
