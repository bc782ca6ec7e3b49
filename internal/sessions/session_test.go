package sessions

import (
	"path/filepath"
	"testing"

	"github.com/outpostrun/conductor/pkg/models"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New("greet", dir, false)
	s.Append(models.RoleUser, "hi", "", nil)
	s.Append(models.RoleAssistant, "hello", "", nil)

	path := filepath.Join(dir, "greet.jsonl")
	savedPath, err := s.Save(path)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if savedPath != path {
		t.Fatalf("unexpected save path: %s", savedPath)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != s.ID || loaded.Name != s.Name {
		t.Fatalf("header mismatch after load")
	}
	if loaded.Tree.Len() != s.Tree.Len() {
		t.Fatalf("entry count mismatch after load")
	}
	if loaded.Tree.Current() != s.Tree.Current() {
		t.Fatalf("current pointer mismatch after load")
	}
}

func TestCompactLeavesShortPathsAlone(t *testing.T) {
	s := New("short", t.TempDir(), false)
	for i := 0; i < 5; i++ {
		s.Append(models.RoleUser, "msg", "", nil)
	}
	before := s.CurrentPath()
	after, err := s.Compact("")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("short path should be returned unchanged, got %d want %d", len(after), len(before))
	}
}

func TestCompactSummarizesPrefix(t *testing.T) {
	s := New("long", t.TempDir(), false)
	for i := 0; i < 12; i++ {
		s.Append(models.RoleUser, "msg", "", nil)
	}
	path, err := s.Compact("keep it brief")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	// compacted entry + compactionKeepRecent retained entries.
	if len(path) != 1+compactionKeepRecent {
		t.Fatalf("expected %d entries in compacted path, got %d", 1+compactionKeepRecent, len(path))
	}
	if path[0].Role != models.RoleSystem {
		t.Fatalf("first entry of a compacted path must be the system summary")
	}
	if compactedFlag, _ := path[0].Metadata["compacted"].(bool); !compactedFlag {
		t.Fatalf("compacted entry must carry metadata.compacted = true")
	}
}

func TestForkCopiesPathIntoFreshSession(t *testing.T) {
	s := New("orig", t.TempDir(), false)
	if _, err := s.Append(models.RoleUser, "hi", "", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Append(models.RoleAssistant, "hello", "", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	branch, err := s.Fork(s.Tree.Current(), "orig-fork")
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if branch.ID == s.ID {
		t.Fatalf("forked session must have a distinct id")
	}
	if branch.Tree.Len() != s.Tree.Len() {
		t.Fatalf("forked session should copy the full path, got %d want %d", branch.Tree.Len(), s.Tree.Len())
	}
}
