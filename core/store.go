package core

import "pkt.systems/mdpane/schema"

// Store is the authoritative document store. The core reads tab records and
// calls the setters below; persistence and the undo-snapshot list belong to
// the store.
type Store interface {
	// Tab returns a copy of the tab record.
	Tab(id schema.TabID) (schema.Tab, bool)
	// ActiveTabID returns the tab shown by the primary slot, or "".
	ActiveTabID() schema.TabID
	SetTabCursor(id schema.TabID, cursor schema.Position)
	// SetTabSelection stores sel, or clears the stored selection when sel is nil.
	SetTabSelection(id schema.TabID, sel *schema.Selection)
	UpdateTabContent(id schema.TabID, content string, opts schema.UpdateContentOptions)
	MarkTabDirty(id schema.TabID)
	// Subscribe registers fn for content or saved-content changes of any tab.
	// Listeners run synchronously after the change; the returned func cancels.
	Subscribe(fn func(id schema.TabID)) func()
}
