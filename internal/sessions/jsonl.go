package sessions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/outpostrun/conductor/pkg/models"
)

// header is the first line of a saved session file: identity and rollup
// metadata that sits alongside, but outside, the entry tree itself.
type header struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// MarshalJSONL renders the tree as newline-delimited JSON, one entry per
// line, in timestamp order.
func (t *Tree) MarshalJSONL() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var buf bytes.Buffer
	for i, e := range t.allSorted() {
		if i > 0 {
			buf.WriteByte('\n')
		}
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal entry %s: %w", e.ID, err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// UnmarshalJSONL replaces the tree's contents with entries decoded from
// JSONL data. Current is restored to whichever entry carries the latest
// timestamp, matching the convention every writer of this format follows.
func (t *Tree) UnmarshalJSONL(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*models.SessionEntry)
	t.order = nil
	t.currentID = ""
	t.rootID = ""

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var latest *models.SessionEntry
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e models.SessionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}
		cp := e
		t.entries[cp.ID] = &cp
		t.order = append(t.order, cp.ID)
		if cp.ParentID == nil {
			t.rootID = cp.ID
		}
		if latest == nil || cp.Timestamp.After(latest.Timestamp) {
			latest = &cp
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan jsonl: %w", err)
	}
	if latest != nil {
		t.currentID = latest.ID
	}
	return nil
}

// writeFileAtomic writes data to path by writing to a sibling temp file and
// renaming it over the destination, so a crash mid-write never leaves a
// truncated session file on disk.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}
