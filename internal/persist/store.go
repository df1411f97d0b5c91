package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/mdpane/schema"
	"pkt.systems/pslog"
)

// SnapshotVersion is written into every workspace snapshot.
const SnapshotVersion = 1

// TabSnapshot captures a document tab for persistence.
type TabSnapshot struct {
	ID               schema.TabID      `json:"id"`
	Path             string            `json:"path,omitempty"`
	Title            string            `json:"title,omitempty"`
	Content          string            `json:"content"`
	SavedContent     string            `json:"saved_content"`
	Language         string            `json:"language,omitempty"`
	Cursor           *schema.Position  `json:"cursor,omitempty"`
	Selection        *schema.Selection `json:"selection,omitempty"`
	UndoStack        []string          `json:"undo_stack,omitempty"`
	SplitMode        schema.Mode       `json:"split_mode,omitempty"`
	DiffMode         bool              `json:"diff_mode,omitempty"`
	SplitPaneRatio   float64           `json:"split_pane_ratio,omitempty"`
	PreviewPaneRatio float64           `json:"preview_pane_ratio,omitempty"`
}

// WorkspaceSnapshot captures the open tabs of a workspace.
type WorkspaceSnapshot struct {
	Version int            `json:"version"`
	Order   []schema.TabID `json:"order"`
	Active  schema.TabID   `json:"active,omitempty"`
	Mode    schema.Mode    `json:"mode,omitempty"`
	Tabs    []TabSnapshot  `json:"tabs"`
}

// Store persists workspace snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a workspace snapshot from disk. A missing file is not an error.
func (s *Store) Load(workspace string) (WorkspaceSnapshot, bool, error) {
	path := s.pathFor(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", "workspace", workspace)
			return WorkspaceSnapshot{}, false, nil
		}
		s.warn("state load failed", "workspace", workspace, "err", err)
		return WorkspaceSnapshot{}, false, err
	}
	var snapshot WorkspaceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("state load failed", "workspace", workspace, "err", err)
		return WorkspaceSnapshot{}, false, err
	}
	if snapshot.Version > SnapshotVersion {
		err := fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
		s.warn("state load failed", "workspace", workspace, "err", err)
		return WorkspaceSnapshot{}, false, err
	}
	for i := range snapshot.Tabs {
		// Older snapshots may carry collapsed selections.
		snapshot.Tabs[i].Selection = schema.NormalizeSelection(snapshot.Tabs[i].Selection)
	}
	s.debug("state load ok", "workspace", workspace, "tabs", len(snapshot.Tabs))
	return snapshot, true, nil
}

// Save writes a workspace snapshot to disk. The file is replaced atomically.
func (s *Store) Save(workspace string, snapshot WorkspaceSnapshot) error {
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}
	path := s.pathFor(workspace)
	if err := writeAtomic(path, snapshot); err != nil {
		s.warn("state save failed", "workspace", workspace, "err", err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "workspace", workspace, "tabs", len(snapshot.Tabs))
	}
	return nil
}

// Path returns the snapshot file for workspace.
func (s *Store) Path(workspace string) string {
	return s.pathFor(workspace)
}

func writeAtomic(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func (s *Store) pathFor(workspace string) string {
	name := sanitize(workspace)
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
