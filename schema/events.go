package schema

// EventType identifies a session event.
type EventType string

const (
	// EventSlotMounted fires after a slot finished mounting.
	EventSlotMounted EventType = "slot.mounted"
	// EventSlotUnmounted fires after a slot was unregistered.
	EventSlotUnmounted EventType = "slot.unmounted"
	// EventSlotSwitched fires after a slot swapped to another tab.
	EventSlotSwitched EventType = "slot.switched"
	// EventModeChanged fires once per actual mode transition.
	EventModeChanged EventType = "mode.changed"
	// EventContentPushed fires after buffer text was written to the store.
	EventContentPushed EventType = "content.pushed"
	// EventContentSynced fires after store text was written into a buffer.
	EventContentSynced EventType = "content.synced"
	// EventPositionCaptured fires after a cursor or selection was stored.
	EventPositionCaptured EventType = "position.captured"
	// EventBufferDisposed fires after a tab's buffer left the cache.
	EventBufferDisposed EventType = "buffer.disposed"
)

// SessionEvent describes something the session manager did.
type SessionEvent struct {
	Type        EventType
	Role        Role
	TabID       TabID
	From        Mode
	To          Mode
	Cursor      *Position
	Selection   *Selection
	SkipHistory bool
}
