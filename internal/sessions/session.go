package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/outpostrun/conductor/pkg/models"
)

// compactionThreshold is the shortest current-path length Compact will act
// on; shorter paths are returned untouched.
const compactionThreshold = 10

// compactionKeepRecent is how many trailing entries survive a compaction
// uncompacted.
const compactionKeepRecent = 5

// Session wraps a Tree with identity, workspace, and persistence.
type Session struct {
	ID        string
	Name      string
	Workspace string
	AutoSave  bool

	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	Tree *Tree

	locker *WriteLocker
}

// New creates an empty, named session rooted at workspace. An empty name
// derives one from the first 8 characters of the new session id.
func New(name, workspace string, autoSave bool) *Session {
	id := uuid.NewString()
	if name == "" {
		name = "session-" + id[:8]
	}
	ts := now()
	return &Session{
		ID:        id,
		Name:      name,
		Workspace: workspace,
		AutoSave:  autoSave,
		CreatedAt: ts,
		UpdatedAt: ts,
		Metadata: map[string]any{
			"tokens_used": 0,
			"cost":        0.0,
		},
		Tree:   NewTree(),
		locker: NewWriteLocker(),
	}
}

// Append adds a message to the session, saving it afterward when AutoSave
// is set. The parentID defaults to the session's current entry when empty.
func (s *Session) Append(role models.Role, content, parentID string, metadata map[string]any) (*models.SessionEntry, error) {
	entry := s.Tree.Append(role, content, parentID, metadata)
	s.UpdatedAt = now()

	if s.AutoSave {
		if _, err := s.Save(""); err != nil {
			return entry, &SaveError{Cause: err}
		}
	}
	return entry, nil
}

// SaveError reports a persistence failure from an autosaving append. The
// entry is still present in the in-memory tree; callers should warn the
// user rather than discard the turn.
type SaveError struct{ Cause error }

func (e *SaveError) Error() string { return fmt.Sprintf("session autosave failed: %v", e.Cause) }
func (e *SaveError) Unwrap() error  { return e.Cause }

// CurrentPath returns the path from root to the session's current entry.
func (s *Session) CurrentPath() []*models.SessionEntry {
	return s.Tree.CurrentPath()
}

// SwitchTo moves the session's current pointer to a different entry,
// saving afterward when AutoSave is set.
func (s *Session) SwitchTo(entryID string) error {
	if err := s.Tree.SwitchTo(entryID); err != nil {
		return err
	}
	s.UpdatedAt = now()
	if s.AutoSave {
		if _, err := s.Save(""); err != nil {
			return &SaveError{Cause: err}
		}
	}
	return nil
}

// Compact collapses everything but the most recent compactionKeepRecent
// entries of the current path into a single system-role summary entry, and
// returns the new, shortened path. Paths at or below compactionThreshold
// are returned unchanged, since there is nothing worth summarizing yet.
func (s *Session) Compact(instructions string) ([]*models.SessionEntry, error) {
	path := s.CurrentPath()
	if len(path) <= compactionThreshold {
		return path, nil
	}

	recent := path[len(path)-compactionKeepRecent:]
	old := path[:len(path)-compactionKeepRecent]

	roles := map[models.Role]struct{}{}
	for _, e := range old {
		roles[e.Role] = struct{}{}
	}

	summary := fmt.Sprintf("[Compacted %d messages]\n", len(old))
	if instructions != "" {
		summary += fmt.Sprintf("Instructions: %s\n", instructions)
	}
	summary += fmt.Sprintf("Topics covered: %d roles", len(roles))

	// The compacted entry takes the last retained entry's parent, so the
	// retained tail re-parents onto it below rather than onto the entries
	// it replaces.
	var parent string
	if recent[0].ParentID != nil {
		parent = *recent[0].ParentID
	}
	compacted := s.Tree.Append(models.RoleSystem, summary, parent, map[string]any{
		"compacted":      true,
		"original_count": len(old),
	})

	rest, err := s.reparentOnto(compacted.ID, recent)
	if err != nil {
		return nil, err
	}

	s.UpdatedAt = now()
	if s.AutoSave {
		if _, err := s.Save(""); err != nil {
			return nil, &SaveError{Cause: err}
		}
	}
	return append([]*models.SessionEntry{compacted}, rest...), nil
}

// reparentOnto re-appends each retained entry as a fresh child chain under
// newParent, since the tree is append-only: the old recent entries remain
// reachable under their original parent, and the returned path is the new
// chain the session's current pointer advances along.
func (s *Session) reparentOnto(newParent string, recent []*models.SessionEntry) ([]*models.SessionEntry, error) {
	out := make([]*models.SessionEntry, 0, len(recent))
	parent := newParent
	for _, e := range recent {
		appended := s.Tree.Append(e.Role, e.Content, parent, e.Metadata)
		out = append(out, appended)
		parent = appended.ID
	}
	return out, nil
}

// Fork creates a new, independent session whose history is the path from
// root to entryID, copied entry-by-entry into a fresh tree.
func (s *Session) Fork(entryID, newName string) (*Session, error) {
	if newName == "" {
		newName = s.Name + "-fork"
	}
	child := New(newName, s.Workspace, s.AutoSave)

	path := s.Tree.PathTo(entryID)
	for _, e := range path {
		if _, err := child.Append(e.Role, e.Content, "", e.Metadata); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// Info reports summary statistics about the session for status displays.
type Info struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Entries           int            `json:"entries"`
	CurrentPathLength int            `json:"current_path_length"`
	Branches          int            `json:"branches"`
	Metadata          map[string]any `json:"metadata"`
}

// GetInfo returns summary statistics about the session.
func (s *Session) GetInfo() Info {
	branches := 0
	if root := s.Tree.Root(); root != "" {
		branches = len(s.Tree.BranchesFrom(root))
	}
	return Info{
		ID:                s.ID,
		Name:              s.Name,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		Entries:           s.Tree.Len(),
		CurrentPathLength: len(s.CurrentPath()),
		Branches:          branches,
		Metadata:          s.Metadata,
	}
}

// sessionFilePath returns the default on-disk location for a named session
// under workspace/.sessions/<name>.jsonl.
func sessionFilePath(workspace, name string) string {
	return filepath.Join(workspace, ".sessions", name+".jsonl")
}

// Save persists the session to path (or its default workspace-relative
// location, when path is empty) using write-then-rename so a reader never
// observes a partially written file. Writes are serialized per session id
// through the package-level write lock.
func (s *Session) Save(path string) (string, error) {
	if path == "" {
		path = sessionFilePath(s.Workspace, s.Name)
	}

	s.locker.Lock(s.ID)
	defer s.locker.Unlock(s.ID)

	treeJSONL, err := s.Tree.MarshalJSONL()
	if err != nil {
		return "", fmt.Errorf("marshal tree: %w", err)
	}

	head := header{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339Nano),
		Metadata:  s.Metadata,
	}
	headBytes, err := json.Marshal(head)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}

	var out []byte
	out = append(out, headBytes...)
	out = append(out, '\n')
	out = append(out, treeJSONL...)

	if err := writeFileAtomic(path, out, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a session file written by Save. AutoSave is disabled on the
// returned session; callers that want to keep autosaving should set it
// explicitly.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	nl := indexByte(data, '\n')
	if nl < 0 {
		return nil, fmt.Errorf("malformed session file: no header line")
	}
	var head header
	if err := json.Unmarshal(data[:nl], &head); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, head.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, head.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}

	s := &Session{
		ID:        head.ID,
		Name:      head.Name,
		Workspace: filepath.Dir(filepath.Dir(path)),
		AutoSave:  false,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Metadata:  head.Metadata,
		Tree:      NewTree(),
		locker:    NewWriteLocker(),
	}
	if err := s.Tree.UnmarshalJSONL(data[nl+1:]); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return s, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
