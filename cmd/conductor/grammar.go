package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// InputKind classifies one line of interactive CLI input per the
// `/`, `!`, `>>` prefix grammar.
type InputKind int

const (
	// InputMessage is a normal turn: sent to the agent loop as the next
	// user message.
	InputMessage InputKind = iota
	// InputCommand is a `/name args` slash command, resolved against the
	// command registry and executed synchronously without touching the
	// provider.
	InputCommand
	// InputSteering is a `!text` redirection: queued and drained between
	// tool-call iterations of whichever turn is currently in flight.
	InputSteering
	// InputFollowUp is a `>>text` follow-up: queued and drained only
	// after the current turn completes cleanly.
	InputFollowUp
)

// ClassifyInput inspects one line of raw stdin input and returns its kind
// plus the text with the recognized prefix stripped.
func ClassifyInput(line string) (InputKind, string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, ">>"):
		return InputFollowUp, strings.TrimSpace(trimmed[2:])
	case strings.HasPrefix(trimmed, "!"):
		return InputSteering, strings.TrimSpace(trimmed[1:])
	case strings.HasPrefix(trimmed, "/"):
		return InputCommand, trimmed
	default:
		return InputMessage, trimmed
	}
}

var fileReferencePattern = regexp.MustCompile(`@(\S+)`)

// ExpandFileReferences finds every `@<path>` token in text, reads that
// file relative to root, and appends its content as a fenced section.
// Paths that resolve outside root are rejected rather than silently
// skipped, since a workspace-escaping read is exactly the failure mode
// this containment check exists to catch.
func ExpandFileReferences(root, text string) (string, error) {
	matches := fileReferencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	var sections []string
	for _, m := range matches {
		rel := m[1]
		abs, err := filepath.Abs(filepath.Join(absRoot, rel))
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", rel, err)
		}
		if !withinRoot(absRoot, abs) {
			return "", fmt.Errorf("%s refers outside the workspace", rel)
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", rel, err)
		}
		sections = append(sections, fmt.Sprintf("--- File: %s ---\n%s\n---", rel, string(content)))
	}
	return text + "\n\n" + strings.Join(sections, "\n\n"), nil
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
