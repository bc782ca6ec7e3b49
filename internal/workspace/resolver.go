package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver resolves and validates paths relative to a workspace root,
// rejecting anything that would escape it. It backs both file-tool access
// and @-reference expansion in the CLI grammar.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path within the workspace root, or
// an error if path escapes it.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace", path)
	}
	return targetAbs, nil
}

// ResolveReference resolves an @-reference token to a workspace-contained
// path. It first tries the token as a workspace-relative or absolute path;
// if that escapes the workspace, it falls back to matching the token
// against file basenames under the root before giving up.
func (r Resolver) ResolveReference(token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "@"))
	if token == "" {
		return "", fmt.Errorf("reference is required")
	}
	if resolved, err := r.Resolve(token); err == nil {
		if _, statErr := os.Stat(resolved); statErr == nil {
			return resolved, nil
		}
	}
	return r.resolveByBasename(token)
}

func (r Resolver) resolveByBasename(name string) (string, error) {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	var match string
	walkErr := filepath.Walk(rootAbs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if info.Name() == name {
			match = path
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("search workspace: %w", walkErr)
	}
	if match == "" {
		return "", fmt.Errorf("no file named %q found under workspace", name)
	}
	return match, nil
}
