package extensions

import (
	"context"
	"testing"
)

func TestLoadDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b-dir", Manifest{ID: "order.b"})
	writeManifest(t, dir, "a-dir", Manifest{ID: "order.a"})
	writeManifest(t, dir, "c-dir", Manifest{ID: "order.c"})

	var order []string
	Register("order.a", func(api API) error { order = append(order, "a"); return nil })
	Register("order.b", func(api API) error { order = append(order, "b"); return nil })
	Register("order.c", func(api API) error { order = append(order, "c"); return nil })

	s := NewSurface(nil, nil, nil)
	if err := Load(context.Background(), s, []string{dir}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected lexicographic load order [a b c], got %v", order)
	}
}

func TestLoadSkipsDisabledManifest(t *testing.T) {
	dir := t.TempDir()
	disabled := false
	writeManifest(t, dir, "off", Manifest{ID: "toggle.off", Enabled: &disabled})

	called := false
	Register("toggle.off", func(api API) error { called = true; return nil })

	s := NewSurface(nil, nil, nil)
	if err := Load(context.Background(), s, []string{dir}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if called {
		t.Fatalf("expected disabled extension not to load")
	}
	if len(s.Loaded()) != 0 {
		t.Fatalf("expected no loaded extensions, got %v", s.Loaded())
	}
}

func TestLoadSkipsUnregisteredID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "ghost", Manifest{ID: "does.not.exist"})

	s := NewSurface(nil, nil, nil)
	if err := Load(context.Background(), s, []string{dir}); err != nil {
		t.Fatalf("load should not fail for an unregistered id: %v", err)
	}
	if len(s.Loaded()) != 0 {
		t.Fatalf("expected no loaded extensions, got %v", s.Loaded())
	}
}

func TestLoadIsolatesPanickingEntryPoint(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "bad", Manifest{ID: "panics.bad"})
	writeManifest(t, dir, "good", Manifest{ID: "panics.good"})

	Register("panics.bad", func(api API) error { panic("kaboom") })
	var goodRan bool
	Register("panics.good", func(api API) error { goodRan = true; return nil })

	s := NewSurface(nil, nil, nil)
	if err := Load(context.Background(), s, []string{dir}); err != nil {
		t.Fatalf("load should absorb a panicking extension: %v", err)
	}
	if !goodRan {
		t.Fatalf("expected the second extension to load despite the first panicking")
	}
	if len(s.Loaded()) != 1 || s.Loaded()[0].ID != "panics.good" {
		t.Fatalf("expected only the well-behaved extension to be recorded as loaded: %v", s.Loaded())
	}
}

func TestLoadMissingDirectoryIsNotAnError(t *testing.T) {
	s := NewSurface(nil, nil, nil)
	if err := Load(context.Background(), s, []string{"/no/such/extensions/dir"}); err != nil {
		t.Fatalf("load: %v", err)
	}
}
