package core

import (
	"context"
	"fmt"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// ModeChange is one view-mode transition.
type ModeChange struct {
	From schema.Mode
	To   schema.Mode
}

// ModeController holds the current view mode. Listeners only hear actual
// transitions; setting the current mode again is silent.
type ModeController struct {
	mode      schema.Mode
	listeners listenerSet[ModeChange]
	log       pslog.Logger
}

// NewModeController starts in initial, or ModeNone when empty.
func NewModeController(initial schema.Mode, logger pslog.Logger) *ModeController {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if initial == "" {
		initial = schema.ModeNone
	}
	return &ModeController{mode: initial, log: logger}
}

// Mode returns the current mode.
func (c *ModeController) Mode() schema.Mode {
	if c == nil {
		return schema.ModeNone
	}
	return c.mode
}

// Set switches to mode. It reports whether a transition happened.
func (c *ModeController) Set(mode schema.Mode) (bool, error) {
	next, err := schema.ParseMode(string(mode))
	if err != nil {
		return false, fmt.Errorf("set mode: %w", err)
	}
	if next == c.mode {
		c.log.Trace("mode set unchanged", "mode", next)
		return false, nil
	}
	change := ModeChange{From: c.mode, To: next}
	c.mode = next
	c.log.Debug("mode set ok", "from", change.From, "to", change.To)
	c.listeners.emit(change)
	return true, nil
}

// OnChange registers fn for transitions. The returned func removes it.
func (c *ModeController) OnChange(fn func(ModeChange)) func() {
	return c.listeners.add(fn)
}
