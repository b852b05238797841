// Package plan contains the pure correction step that forces a plan's
// file sets to match its authoritative generation order.
package plan

import (
	"fmt"
	"sort"

	"github.com/davebot/dave/internal/models"
)

// Reconcile validates a plan against the known repository files, treating
// GenerationOrder as the source of truth. Files in the order that exist in
// the repo are moved into FilesToEdit; unknown files are moved into
// FilesToCreate, preserving the planner's NewFile entry when one exists and
// synthesizing a placeholder otherwise. Paths planned but absent from the
// order are dropped.
//
// Reconcile never mutates its input. When the plan is already consistent
// (the common case) the input pointer is returned unchanged with no
// warnings. The returned warnings describe corrections; inconsistency is
// never an error.
func Reconcile(p *models.Plan, knownFiles []string) (*models.Plan, []string) {
	if p == nil {
		return nil, nil
	}

	ordered := make(map[string]bool, len(p.GenerationOrder))
	for _, f := range p.GenerationOrder {
		ordered[f] = true
	}
	planned := p.PlannedFiles()

	if setsEqual(planned, ordered) {
		return p, nil
	}

	known := make(map[string]bool, len(knownFiles))
	for _, f := range knownFiles {
		known[f] = true
	}
	existingCreations := make(map[string]models.NewFile, len(p.FilesToCreate))
	for _, f := range p.FilesToCreate {
		existingCreations[f.Path] = f
	}

	var warnings []string
	var edits []string
	var creations []models.NewFile
	seenEdit := make(map[string]bool)
	seenCreate := make(map[string]bool)

	for _, path := range p.GenerationOrder {
		if known[path] {
			if !seenEdit[path] {
				edits = append(edits, path)
				seenEdit[path] = true
			}
			continue
		}
		if seenCreate[path] {
			continue
		}
		seenCreate[path] = true
		if nf, ok := existingCreations[path]; ok {
			creations = append(creations, nf)
		} else {
			warnings = append(warnings,
				fmt.Sprintf("file %q from generation_order was not in files_to_create; adding it", path))
			creations = append(creations, models.NewFile{
				Path:      path,
				Reasoning: "Added to the plan to match the generation order.",
			})
		}
	}

	for path := range planned {
		if !ordered[path] {
			warnings = append(warnings,
				fmt.Sprintf("file %q was planned but not in generation_order; dropping it", path))
		}
	}

	sort.Strings(edits)
	sort.Slice(creations, func(i, j int) bool { return creations[i].Path < creations[j].Path })

	out := *p
	out.FilesToEdit = edits
	out.FilesToCreate = creations
	return &out, warnings
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
