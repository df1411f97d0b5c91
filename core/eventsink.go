package core

import "pkt.systems/mdpane/schema"

// EventSink receives session events from the core.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
}
