// Package tabstore is an in-memory document store for editing sessions.
// It keeps tab records, the active tab, per-tab undo snapshots and dirty
// state, and can persist the workspace through internal/persist.
package tabstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"pkt.systems/mdpane/internal/logx"
	"pkt.systems/mdpane/internal/persist"
	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// ErrTabExists indicates a tab id or path is already open.
var ErrTabExists = errors.New("tab already open")

// Options configures a Store.
type Options struct {
	// HistoryMax caps undo snapshots per tab.
	HistoryMax int
	// State persists the workspace when set.
	State     *persist.Store
	Workspace string
	Logger    pslog.Logger
}

// OpenRequest describes a tab to open.
type OpenRequest struct {
	ID       schema.TabID
	Path     string
	Title    string
	Content  string
	Language string
}

// Store is a mutex-guarded tab store. Subscribers run synchronously on the
// goroutine that made the change, after the lock is released.
type Store struct {
	mu         sync.Mutex
	tabs       map[schema.TabID]*schema.Tab
	order      []schema.TabID
	active     schema.TabID
	mode       schema.Mode
	historyMax int
	seq        int

	listenerSeq int
	listeners   map[int]func(schema.TabID)

	state     *persist.Store
	workspace string
	log       pslog.Logger
}

// New constructs an empty store.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	historyMax := opts.HistoryMax
	if historyMax <= 0 {
		historyMax = schema.DefaultHistoryMax
	}
	return &Store{
		tabs:       make(map[schema.TabID]*schema.Tab),
		mode:       schema.ModeNone,
		historyMax: historyMax,
		listeners:  make(map[int]func(schema.TabID)),
		state:      opts.State,
		workspace:  opts.Workspace,
		log:        logger,
	}
}

// Open adds a tab and makes it active.
func (s *Store) Open(req OpenRequest) (schema.Tab, error) {
	s.mu.Lock()
	id := req.ID
	if id == "" {
		s.seq++
		id = schema.TabID(fmt.Sprintf("tab-%d", s.seq))
		for s.tabs[id] != nil {
			s.seq++
			id = schema.TabID(fmt.Sprintf("tab-%d", s.seq))
		}
	}
	if _, ok := s.tabs[id]; ok {
		s.mu.Unlock()
		return schema.Tab{}, fmt.Errorf("%w: %s", ErrTabExists, id)
	}
	if req.Path != "" {
		if existing, ok := s.findByPathLocked(req.Path); ok {
			s.mu.Unlock()
			return schema.Tab{}, fmt.Errorf("%w: %s as %s", ErrTabExists, req.Path, existing)
		}
	}
	title := req.Title
	if title == "" && req.Path != "" {
		title = filepath.Base(req.Path)
	}
	if title == "" {
		title = string(id)
	}
	language := req.Language
	if language == "" {
		language = LanguageForPath(req.Path)
	}
	tab := &schema.Tab{
		ID:           id,
		Path:         req.Path,
		Title:        title,
		Content:      req.Content,
		SavedContent: req.Content,
		Language:     language,
	}
	s.tabs[id] = tab
	s.order = append(s.order, id)
	s.active = id
	out := tab.Clone()
	s.mu.Unlock()
	logx.WithTab(s.log, id).Info("tab open ok", "path", req.Path, "language", language)
	return out, nil
}

// OpenFile opens the file at path as a tab.
func (s *Store) OpenFile(path string) (schema.Tab, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return schema.Tab{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return schema.Tab{}, fmt.Errorf("open %s: %w", path, err)
	}
	return s.Open(OpenRequest{Path: abs, Content: string(data)})
}

// Close removes a tab. When it was active, its right neighbour (or the
// left one) becomes active.
func (s *Store) Close(id schema.TabID) error {
	s.mu.Lock()
	if _, ok := s.tabs[id]; !ok {
		s.mu.Unlock()
		return schema.ErrTabNotFound
	}
	idx := slices.Index(s.order, id)
	delete(s.tabs, id)
	s.order = slices.Delete(s.order, idx, idx+1)
	if s.active == id {
		s.active = ""
		if len(s.order) > 0 {
			s.active = s.order[min(idx, len(s.order)-1)]
		}
	}
	s.mu.Unlock()
	logx.WithTab(s.log, id).Info("tab close ok")
	return nil
}

// Activate makes id the active tab.
func (s *Store) Activate(id schema.TabID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[id]; !ok {
		return schema.ErrTabNotFound
	}
	s.active = id
	return nil
}

// Tab returns a copy of the tab record.
func (s *Store) Tab(id schema.TabID) (schema.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[id]
	if !ok {
		return schema.Tab{}, false
	}
	return tab.Clone(), true
}

// Tabs returns copies of all tabs in display order.
func (s *Store) Tabs() []schema.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Tab, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tabs[id].Clone())
	}
	return out
}

// ActiveTabID returns the active tab id, or "".
func (s *Store) ActiveTabID() schema.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// FindByPath returns the tab showing path.
func (s *Store) FindByPath(path string) (schema.TabID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByPathLocked(path)
}

func (s *Store) findByPathLocked(path string) (schema.TabID, bool) {
	clean := filepath.Clean(path)
	for _, id := range s.order {
		if tab := s.tabs[id]; tab.Path != "" && filepath.Clean(tab.Path) == clean {
			return id, true
		}
	}
	return "", false
}

// SetTabCursor stores the caret of a tab.
func (s *Store) SetTabCursor(id schema.TabID, cursor schema.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab, ok := s.tabs[id]; ok {
		tab.Cursor = &cursor
	}
}

// SetTabSelection stores sel, or clears it when sel is nil or collapsed.
func (s *Store) SetTabSelection(id schema.TabID, sel *schema.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab, ok := s.tabs[id]; ok {
		tab.Selection = schema.NormalizeSelection(sel)
	}
}

// UpdateTabContent replaces the content of a tab. The prior content is
// appended to the undo snapshots unless opts.SkipHistory is set.
func (s *Store) UpdateTabContent(id schema.TabID, content string, opts schema.UpdateContentOptions) {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok || tab.Content == content {
		s.mu.Unlock()
		return
	}
	if !opts.SkipHistory {
		tab.UndoStack = s.appendHistory(tab.UndoStack, tab.Content)
	}
	tab.Content = content
	tab.Dirty = content != tab.SavedContent
	depth := len(tab.UndoStack)
	s.mu.Unlock()
	logx.WithTab(s.log, id).Trace("tab content update ok", "bytes", len(content), "undo_depth", depth, "skip_history", opts.SkipHistory)
	s.notify(id)
}

func (s *Store) appendHistory(stack []string, snapshot string) []string {
	if n := len(stack); n > 0 && stack[n-1] == snapshot {
		return stack
	}
	stack = append(stack, snapshot)
	if over := len(stack) - s.historyMax; over > 0 {
		stack = slices.Delete(stack, 0, over)
	}
	return stack
}

// MarkTabDirty flags unsaved edits ahead of the content push.
func (s *Store) MarkTabDirty(id schema.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab, ok := s.tabs[id]; ok {
		tab.Dirty = true
	}
}

// MarkSaved records the current content as saved. Subscribers hear about
// it when the saved content moved.
func (s *Store) MarkSaved(id schema.TabID) error {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return schema.ErrTabNotFound
	}
	moved := tab.SavedContent != tab.Content
	tab.SavedContent = tab.Content
	tab.Dirty = false
	s.mu.Unlock()
	if moved {
		s.notify(id)
	}
	return nil
}

// SaveFile writes the tab content to its path and marks it saved.
func (s *Store) SaveFile(id schema.TabID) error {
	tab, ok := s.Tab(id)
	if !ok {
		return schema.ErrTabNotFound
	}
	if tab.Path == "" {
		return fmt.Errorf("save %s: tab has no path", id)
	}
	if err := os.WriteFile(tab.Path, []byte(tab.Content), 0o644); err != nil {
		logx.WithPath(logx.WithTab(s.log, id), tab.Path).Warn("tab save failed", "err", err)
		return err
	}
	logx.WithPath(logx.WithTab(s.log, id), tab.Path).Info("tab save ok", "bytes", len(tab.Content))
	return s.MarkSaved(id)
}

// Revert replaces the content with the saved content.
func (s *Store) Revert(id schema.TabID) error {
	tab, ok := s.Tab(id)
	if !ok {
		return schema.ErrTabNotFound
	}
	s.UpdateTabContent(id, tab.SavedContent, schema.UpdateContentOptions{})
	return s.MarkSaved(id)
}

// ReloadFromDisk re-reads the tab's file. A clean tab takes the new
// content; a dirty tab keeps its edits and only learns the new saved
// content. It reports whether the content changed.
func (s *Store) ReloadFromDisk(id schema.TabID) (bool, error) {
	tab, ok := s.Tab(id)
	if !ok {
		return false, schema.ErrTabNotFound
	}
	if tab.Path == "" {
		return false, nil
	}
	data, err := os.ReadFile(tab.Path)
	if err != nil {
		return false, fmt.Errorf("reload %s: %w", tab.Path, err)
	}
	disk := string(data)
	log := logx.WithPath(logx.WithTab(s.log, id), tab.Path)
	if disk == tab.SavedContent {
		return false, nil
	}
	if tab.IsDirty() {
		s.mu.Lock()
		if current, ok := s.tabs[id]; ok {
			current.SavedContent = disk
			current.Dirty = current.Content != disk
		}
		s.mu.Unlock()
		log.Warn("tab reload kept local edits")
		s.notify(id)
		return false, nil
	}
	s.mu.Lock()
	if current, ok := s.tabs[id]; ok {
		current.SavedContent = disk
	}
	s.mu.Unlock()
	s.UpdateTabContent(id, disk, schema.UpdateContentOptions{})
	log.Info("tab reload ok", "bytes", len(disk))
	return true, nil
}

// SetTabMode remembers the view mode for a tab.
func (s *Store) SetTabMode(id schema.TabID, mode schema.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[id]
	if !ok {
		return schema.ErrTabNotFound
	}
	tab.DiffMode = mode.IsDiff()
	if mode.IsSplit() {
		tab.SplitMode = mode
	} else if !mode.IsDiff() {
		tab.SplitMode = schema.ModeNone
	}
	return nil
}

// SetMode records the workspace view mode for persistence.
func (s *Store) SetMode(mode schema.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode returns the recorded workspace view mode.
func (s *Store) Mode() schema.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Subscribe registers fn for changes of content or saved content.
// The returned func cancels.
func (s *Store) Subscribe(fn func(schema.TabID)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.listenerSeq
	s.listenerSeq++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(tabID schema.TabID) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.listeners[id]
		s.mu.Unlock()
		if ok {
			fn(tabID)
		}
	}
}

// LanguageForPath maps a file extension to a language tag.
func LanguageForPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "":
		return "plaintext"
	case "md", "markdown":
		return "markdown"
	case "txt":
		return "plaintext"
	default:
		return ext
	}
}
