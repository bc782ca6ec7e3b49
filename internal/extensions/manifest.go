package extensions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFilename is the name an extension's directory must contain for
// the directory to be recognized as an extension module.
const ManifestFilename = "extension.json"

// Manifest describes one extension module on disk. ID must match the
// identifier a Go package registered at init time via Register; the
// manifest only controls whether that registered entry point is loaded
// and in what order relative to its siblings.
type Manifest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// enabled reports whether the manifest opts into loading; absent means
// enabled, matching the rest of the config package's *bool convention.
func (m Manifest) enabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// manifestEntry pairs a decoded manifest with the path it was read from.
type manifestEntry struct {
	manifest Manifest
	path     string
}

// discoverManifests walks dirs for extension.json files and returns them
// sorted lexicographically by path, so load order is deterministic and
// independent of directory iteration order or OS.
func discoverManifests(dirs []string) ([]manifestEntry, error) {
	var found []manifestEntry

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read extensions directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name(), ManifestFilename)
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("read manifest %s: %w", path, err)
			}
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("decode manifest %s: %w", path, err)
			}
			if m.ID == "" {
				return nil, fmt.Errorf("manifest %s: id is required", path)
			}
			found = append(found, manifestEntry{manifest: m, path: path})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].path < found[j].path })
	return found, nil
}
