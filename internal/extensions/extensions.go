// Package extensions implements the registration API exposed to
// user-supplied extension modules: tool registration, slash-command
// registration, and lifecycle-event subscription, plus the directory
// scanner that discovers and loads them in deterministic order.
package extensions

import (
	"sort"

	"github.com/outpostrun/conductor/internal/skills"
)

// Kind represents a unified extension type for status reporting.
type Kind string

const (
	KindSkill     Kind = "skill"
	KindExtension Kind = "extension"
)

// Extension describes a configured extension across systems, for status
// output (e.g. a CLI `status` subcommand).
type Extension struct {
	ID     string
	Name   string
	Kind   Kind
	Source string
	Status string
}

// List returns a unified, sorted view of configured skills and loaded
// extension modules. surface may be nil before Load has run.
func List(surface *Surface, skillsMgr *skills.Manager) []Extension {
	var out []Extension

	if skillsMgr != nil {
		eligible := map[string]struct{}{}
		for _, skill := range skillsMgr.ListEligible() {
			eligible[skill.Name] = struct{}{}
		}
		for _, skill := range skillsMgr.ListAll() {
			status := "ineligible"
			if _, ok := eligible[skill.Name]; ok {
				status = "eligible"
			}
			out = append(out, Extension{
				ID:     skill.Name,
				Name:   skill.Name,
				Kind:   KindSkill,
				Source: string(skill.Source),
				Status: status,
			})
		}
	}

	if surface != nil {
		for _, loaded := range surface.Loaded() {
			out = append(out, Extension{
				ID:     loaded.ID,
				Name:   loaded.ID,
				Kind:   KindExtension,
				Source: loaded.Path,
				Status: "loaded",
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind == out[j].Kind {
			return out[i].ID < out[j].ID
		}
		return out[i].Kind < out[j].Kind
	})

	return out
}
