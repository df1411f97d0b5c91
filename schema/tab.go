package schema

// Tab is a document tab as held by the document store.
// The session manager reads the whole record and writes only
// Content, Cursor and Selection through the store's setters.
type Tab struct {
	ID           TabID
	Path         string
	Title        string
	Content      string
	SavedContent string
	Language     string
	Cursor       *Position
	// Selection is nil when collapsed; a collapsed value is never stored.
	Selection *Selection
	// UndoStack holds prior content snapshots, oldest first.
	UndoStack        []string
	Dirty            bool
	SplitMode        Mode
	DiffMode         bool
	SplitPaneRatio   float64
	PreviewPaneRatio float64
}

// IsDirty reports whether the tab has edits that are not on disk.
func (t Tab) IsDirty() bool {
	return t.Dirty || t.Content != t.SavedContent
}

// Clone returns a deep copy of the tab.
func (t Tab) Clone() Tab {
	out := t
	if t.Cursor != nil {
		cursor := *t.Cursor
		out.Cursor = &cursor
	}
	if t.Selection != nil {
		sel := *t.Selection
		out.Selection = &sel
	}
	out.UndoStack = append([]string(nil), t.UndoStack...)
	return out
}

// HistorySnapshots returns the undo snapshots followed by the current content.
// This is the chain used to seed a freshly created edit buffer.
func (t Tab) HistorySnapshots() []string {
	out := make([]string, 0, len(t.UndoStack)+1)
	out = append(out, t.UndoStack...)
	return append(out, t.Content)
}

// ViewMode returns the view mode remembered for the tab.
func (t Tab) ViewMode() Mode {
	if t.DiffMode {
		return ModeDiff
	}
	if t.SplitMode.IsSplit() {
		return t.SplitMode
	}
	return ModeNone
}
