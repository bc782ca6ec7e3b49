package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filenames for the three layered context files searched from the
// workspace up to the user's home directory.
const (
	SystemMDFilename       = "SYSTEM.md"
	AgentsMDFilename       = "AGENTS.md"
	AppendSystemMDFilename = "APPEND_SYSTEM.md"
)

// findContextFiles returns every existing file named filename found by
// walking from root up through its ancestors to the filesystem root, with
// the user's home directory checked last as a global fallback. The result
// is ordered nearest-first: index 0 is the closest match to root.
func findContextFiles(root, filename string) []string {
	var found []string
	seen := make(map[string]bool)

	add := func(dir string) {
		path := filepath.Join(dir, filename)
		if seen[path] {
			return
		}
		seen[path] = true
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}

	current, err := filepath.Abs(root)
	if err == nil {
		for {
			add(current)
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		add(home)
	}

	return found
}

// loadNearest reads the nearest (first) match among files, or returns ""
// if there are none. SYSTEM.md uses nearest-wins semantics: the most
// workspace-specific copy overrides every ancestor's.
func loadNearest(files []string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	content, err := readFile(files[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", files[0], err)
	}
	return content, nil
}

// loadConcatenated reads every file in files and joins their contents,
// each labeled with its source path, in nearest-first order. AGENTS.md and
// APPEND_SYSTEM.md both use this: every instance found along the search
// path contributes, none wins outright.
func loadConcatenated(files []string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(files))
	for _, path := range files {
		content, err := readFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		content = strings.TrimRight(content, "\n")
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("# From: %s\n\n%s", path, content))
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// ContextFiles is the result of resolving the three layered context files
// for a given workspace root.
type ContextFiles struct {
	SystemMD       string
	AgentsMD       string
	AppendSystemMD string
}

// LoadContextFiles resolves SYSTEM.md, AGENTS.md, and APPEND_SYSTEM.md for
// root, searching from root up through its ancestors to the home
// directory.
func LoadContextFiles(root string) (*ContextFiles, error) {
	systemMD, err := loadNearest(findContextFiles(root, SystemMDFilename))
	if err != nil {
		return nil, err
	}
	agentsMD, err := loadConcatenated(findContextFiles(root, AgentsMDFilename))
	if err != nil {
		return nil, err
	}
	appendMD, err := loadConcatenated(findContextFiles(root, AppendSystemMDFilename))
	if err != nil {
		return nil, err
	}
	return &ContextFiles{SystemMD: systemMD, AgentsMD: agentsMD, AppendSystemMD: appendMD}, nil
}

// BuildSystemPrompt assembles the final system-role message from the
// layered context files plus the skills appendix: SYSTEM.md replaces
// defaultPrompt if present, AGENTS.md is appended under a "Project
// Context" heading, the skills appendix follows, and APPEND_SYSTEM.md is
// appended last no matter what precedes it.
func (c *ContextFiles) BuildSystemPrompt(defaultPrompt, skillsAppendix string) string {
	base := defaultPrompt
	if c.SystemMD != "" {
		base = c.SystemMD
	}
	if c.AgentsMD != "" {
		base = strings.TrimRight(base, "\n") + "\n\n# Project Context\n\n" + c.AgentsMD
	}
	if skillsAppendix != "" {
		base = strings.TrimRight(base, "\n") + "\n\n" + skillsAppendix
	}
	if c.AppendSystemMD != "" {
		base = strings.TrimRight(base, "\n") + "\n\n" + c.AppendSystemMD
	}
	return base
}
