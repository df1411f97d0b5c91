package tabstore

import (
	"errors"
	"slices"

	"pkt.systems/mdpane/internal/persist"
	"pkt.systems/mdpane/schema"
)

// ErrNoState indicates the store was built without a persistence backend.
var ErrNoState = errors.New("tab store has no state backend")

// Snapshot captures the workspace for persistence.
func (s *Store) Snapshot() persist.WorkspaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := persist.WorkspaceSnapshot{
		Version: persist.SnapshotVersion,
		Order:   append([]schema.TabID(nil), s.order...),
		Active:  s.active,
		Mode:    s.mode,
		Tabs:    make([]persist.TabSnapshot, 0, len(s.order)),
	}
	for _, id := range s.order {
		tab := s.tabs[id].Clone()
		snap.Tabs = append(snap.Tabs, persist.TabSnapshot{
			ID:               tab.ID,
			Path:             tab.Path,
			Title:            tab.Title,
			Content:          tab.Content,
			SavedContent:     tab.SavedContent,
			Language:         tab.Language,
			Cursor:           tab.Cursor,
			Selection:        tab.Selection,
			UndoStack:        tab.UndoStack,
			SplitMode:        tab.SplitMode,
			DiffMode:         tab.DiffMode,
			SplitPaneRatio:   tab.SplitPaneRatio,
			PreviewPaneRatio: tab.PreviewPaneRatio,
		})
	}
	return snap
}

// Restore replaces the store contents with snap. Subscribers are not
// notified; restore before any session mounts.
func (s *Store) Restore(snap persist.WorkspaceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = make(map[schema.TabID]*schema.Tab, len(snap.Tabs))
	s.order = s.order[:0]
	for _, ts := range snap.Tabs {
		if ts.ID == "" {
			continue
		}
		if _, dup := s.tabs[ts.ID]; dup {
			continue
		}
		tab := schema.Tab{
			ID:               ts.ID,
			Path:             ts.Path,
			Title:            ts.Title,
			Content:          ts.Content,
			SavedContent:     ts.SavedContent,
			Language:         ts.Language,
			Cursor:           ts.Cursor,
			Selection:        schema.NormalizeSelection(ts.Selection),
			UndoStack:        ts.UndoStack,
			SplitMode:        ts.SplitMode,
			DiffMode:         ts.DiffMode,
			SplitPaneRatio:   ts.SplitPaneRatio,
			PreviewPaneRatio: ts.PreviewPaneRatio,
		}
		if over := len(tab.UndoStack) - s.historyMax; over > 0 {
			tab.UndoStack = tab.UndoStack[over:]
		}
		tab.Dirty = tab.Content != tab.SavedContent
		clone := tab.Clone()
		s.tabs[ts.ID] = &clone
	}
	// Order entries without a tab are dropped; tabs missing from the
	// order are appended in snapshot order.
	for _, id := range snap.Order {
		if _, ok := s.tabs[id]; ok && !slices.Contains(s.order, id) {
			s.order = append(s.order, id)
		}
	}
	for _, ts := range snap.Tabs {
		if _, ok := s.tabs[ts.ID]; ok && !slices.Contains(s.order, ts.ID) {
			s.order = append(s.order, ts.ID)
		}
	}
	s.active = ""
	if _, ok := s.tabs[snap.Active]; ok {
		s.active = snap.Active
	} else if len(s.order) > 0 {
		s.active = s.order[0]
	}
	s.mode = snap.Mode
	if s.mode == "" {
		s.mode = schema.ModeNone
	}
	s.log.Debug("tab store restore ok", "tabs", len(s.order), "active", s.active)
}

// Save persists the workspace.
func (s *Store) Save() error {
	if s.state == nil {
		return ErrNoState
	}
	return s.state.Save(s.workspace, s.Snapshot())
}

// Load restores the workspace from disk. It reports whether a snapshot existed.
func (s *Store) Load() (bool, error) {
	if s.state == nil {
		return false, ErrNoState
	}
	snap, ok, err := s.state.Load(s.workspace)
	if err != nil || !ok {
		return false, err
	}
	s.Restore(snap)
	return true, nil
}
