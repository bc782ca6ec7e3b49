package extensions

import (
	"context"
	"fmt"
	"sync"
)

// entryPoints is the process-wide table of extension identifiers to their
// registration function, populated by each extension package's init(), the
// same self-registration idiom database/sql drivers and image codecs use:
// importing the package for its side effect is what makes it available,
// and the manifest on disk only decides whether and when it loads.
var entryPoints = struct {
	mu    sync.RWMutex
	funcs map[string]EntryPoint
}{funcs: make(map[string]EntryPoint)}

// Register makes an extension's entry point available under id. Intended
// to be called from an extension package's init() function. Calling
// Register twice with the same id replaces the earlier registration.
func Register(id string, entry EntryPoint) {
	entryPoints.mu.Lock()
	defer entryPoints.mu.Unlock()
	entryPoints.funcs[id] = entry
}

func lookupEntryPoint(id string) (EntryPoint, bool) {
	entryPoints.mu.RLock()
	defer entryPoints.mu.RUnlock()
	entry, ok := entryPoints.funcs[id]
	return entry, ok
}

// Load scans dirs for extension manifests and, for each enabled manifest
// whose id has a registered entry point, invokes it against s. Extensions
// load in deterministic (lexicographic) order. A failing or panicking
// entry point is logged and skipped; it never prevents the remaining
// extensions from loading.
func Load(ctx context.Context, s *Surface, dirs []string) error {
	manifests, err := discoverManifests(dirs)
	if err != nil {
		return err
	}

	for _, entry := range manifests {
		if !entry.manifest.enabled() {
			s.logger.Debug("extension disabled, skipping", "id", entry.manifest.ID, "path", entry.path)
			continue
		}
		entryFn, ok := lookupEntryPoint(entry.manifest.ID)
		if !ok {
			s.logger.Warn("extension manifest has no registered entry point", "id", entry.manifest.ID, "path", entry.path)
			continue
		}
		if err := s.loadOne(ctx, entry.manifest.ID, entryFn); err != nil {
			s.logger.Error("extension failed to load", "id", entry.manifest.ID, "path", entry.path, "error", err)
			continue
		}
		s.loaded = append(s.loaded, LoadedExtension{ID: entry.manifest.ID, Path: entry.path})
	}
	return nil
}

// loadOne invokes entry's entry point, isolating the caller from both
// returned errors and panics — an extension author's mistake must never
// take down the host process.
func (s *Surface) loadOne(ctx context.Context, id string, entry EntryPoint) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	_ = ctx
	return entry(s.apiFor(id))
}
