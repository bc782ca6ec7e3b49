// Package sessions implements the content-addressed session tree: an
// append-only DAG of SessionEntry nodes, JSONL persistence, and the
// single-writer locking discipline that protects a session's on-disk file.
package sessions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/outpostrun/conductor/pkg/models"
)

// Tree is in-memory tree storage for one session's entries. All entries
// ever appended remain reachable; nothing is ever mutated or removed except
// through Compact, which appends a new entry rather than rewriting history.
type Tree struct {
	mu        sync.RWMutex
	entries   map[string]*models.SessionEntry
	order     []string // insertion order, for deterministic iteration
	currentID string
	rootID    string
}

// NewTree returns an empty session tree.
func NewTree() *Tree {
	return &Tree{entries: make(map[string]*models.SessionEntry)}
}

// Append adds a new entry as a child of parentID (or of the current entry
// if parentID is empty) and advances current to the new entry. It is the
// tree's only mutation other than Compact, which itself calls Append.
func (t *Tree) Append(role models.Role, content string, parentID string, metadata map[string]any) *models.SessionEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parentID == "" {
		parentID = t.currentID
	}

	entry := &models.SessionEntry{
		ID:        uuid.NewString(),
		Timestamp: now(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	if parentID != "" {
		pid := parentID
		entry.ParentID = &pid
	}

	t.entries[entry.ID] = entry
	t.order = append(t.order, entry.ID)
	t.currentID = entry.ID
	if t.rootID == "" {
		t.rootID = entry.ID
	}

	return entry.Clone()
}

// Get returns a clone of the entry with the given id, or false if absent.
func (t *Tree) Get(id string) (*models.SessionEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Current returns the id of the entry the tree currently points to, or ""
// if the tree is empty.
func (t *Tree) Current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentID
}

// Root returns the id of the first entry ever appended, or "" if the tree
// is empty.
func (t *Tree) Root() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootID
}

// Len reports how many entries the tree holds.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// PathTo walks parent pointers from id back to the root and returns the
// entries from root to id, inclusive. An unknown id yields an empty path.
func (t *Tree) PathTo(id string) []*models.SessionEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathToLocked(id)
}

func (t *Tree) pathToLocked(id string) []*models.SessionEntry {
	var path []*models.SessionEntry
	cur, ok := t.entries[id]
	for ok {
		path = append([]*models.SessionEntry{cur.Clone()}, path...)
		if cur.ParentID == nil {
			break
		}
		cur, ok = t.entries[*cur.ParentID]
	}
	return path
}

// CurrentPath returns the path from root to the current entry.
func (t *Tree) CurrentPath() []*models.SessionEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.currentID == "" {
		return nil
	}
	return t.pathToLocked(t.currentID)
}

// Children returns the direct children of id, in insertion order.
func (t *Tree) Children(id string) []*models.SessionEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*models.SessionEntry
	for _, eid := range t.order {
		e := t.entries[eid]
		if e.ParentID != nil && *e.ParentID == id {
			out = append(out, e.Clone())
		}
	}
	return out
}

// BranchesFrom enumerates every root-to-leaf path rooted at id's children,
// as a list of branches where each branch is the sequence of entries
// descending from id (id itself excluded).
func (t *Tree) BranchesFrom(id string) [][]*models.SessionEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.branchesFromLocked(id)
}

func (t *Tree) branchesFromLocked(id string) [][]*models.SessionEntry {
	var children []*models.SessionEntry
	for _, eid := range t.order {
		e := t.entries[eid]
		if e.ParentID != nil && *e.ParentID == id {
			children = append(children, e)
		}
	}
	if len(children) == 0 {
		return [][]*models.SessionEntry{{}}
	}

	var branches [][]*models.SessionEntry
	for _, child := range children {
		for _, sub := range t.branchesFromLocked(child.ID) {
			branch := append([]*models.SessionEntry{child.Clone()}, sub...)
			branches = append(branches, branch)
		}
	}
	return branches
}

// SwitchTo moves current to id. It returns an error if id is unknown; the
// tree's structure is never changed by a switch.
func (t *Tree) SwitchTo(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	t.currentID = id
	return nil
}

// allSorted returns every entry in the tree, sorted by timestamp then id
// for deterministic serialization.
func (t *Tree) allSorted() []*models.SessionEntry {
	out := make([]*models.SessionEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
