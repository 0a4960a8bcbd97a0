package ldraw

import (
	"errors"
	"fmt"
	"sort"
)

// Build scheduler errors.
var ErrBuildIncomplete = errors.New("build incomplete")

// Builder computes, for a requested set of top-level part types, the
// transitive part-type closure and a bottom-up construction order using
// reference counting, so that each unique part's geometry is computed
// exactly once regardless of how many times it is placed.
type Builder struct {
	// OnWarning receives non-fatal scheduler notices, such as a
	// repeated finalize request for already-built geometry.
	OnWarning ReportFunc
	// OnBuilt receives the ordered build events: one call per part
	// type, after its geometry is finalized.
	OnBuilt func(pt *PartType)

	reg *Registry
}

// NewBuilder returns a builder resolving identities through reg.
func NewBuilder(reg *Registry) *Builder {
	return &Builder{reg: reg}
}

// Build finalizes geometry for the requested part types and everything
// they transitively reference. A part type's geometry is computed only
// after all of its distinct children's geometry exists. An unresolved
// placement or replacement aborts only the enclosing subtree; other
// independent subtrees still build. The returned error joins all
// subtree failures.
func (b *Builder) Build(ids ...string) error {
	var errs []error

	b.pinReplacements()

	// Collect every reachable part type that has no geometry yet.
	toBuild := make(map[string]*PartType)
	for _, id := range ids {
		if err := b.collect(NormalizeID(id), toBuild, make(map[string]bool)); err != nil {
			errs = append(errs, err)
		}
	}

	// Reference-count graph: children counts distinct not-yet-built
	// descendants referenced directly in steps; parents is the
	// reverse adjacency.
	children := make(map[string]int, len(toBuild))
	parents := make(map[string][]string)
	for id, pt := range toBuild {
		seen := make(map[string]bool)
		for _, step := range pt.Steps {
			for _, p := range step.Placements {
				child, err := resolvePart(b.reg, p.ID)
				if err != nil {
					continue // already reported during collect
				}
				if _, ok := toBuild[child.ID]; !ok || seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				children[id]++
				parents[child.ID] = append(parents[child.ID], id)
			}
		}
	}

	// Process ready part types in rounds: finalizing one decrements
	// each parent's count; a parent reaching zero joins the next
	// round.
	var ready []string
	for id := range toBuild {
		if children[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	built := make(map[string]bool, len(toBuild))
	failed := make(map[string]bool)
	for len(ready) > 0 {
		var next []string
		for _, id := range ready {
			pt := toBuild[id]
			if pt.Geometry() != nil {
				b.warnf("geometry for %q already finalized", id)
			} else if _, err := pt.BuildGeometry(b.reg); err != nil {
				errs = append(errs, err)
				failed[id] = true
				continue // parents stay blocked
			}
			built[id] = true
			if b.OnBuilt != nil {
				b.OnBuilt(pt)
			}
			for _, parentID := range parents[id] {
				children[parentID]--
				if children[parentID] == 0 {
					next = append(next, parentID)
				}
			}
		}
		sort.Strings(next)
		ready = next
	}

	for _, id := range sortedKeys(toBuild) {
		if !built[id] && !failed[id] {
			errs = append(errs, fmt.Errorf("%w: %s blocked by failed or cyclic children", ErrBuildIncomplete, id))
		}
	}
	return errors.Join(errs...)
}

// pinReplacements invalidates the geometry of every part type nested
// one level inside a part that replaces another, so replacement parts
// always rebuild their children fresh.
func (b *Builder) pinReplacements() {
	for _, pt := range b.reg.Loaded() {
		if pt.ReplacementID == "" {
			continue
		}
		repl, state := b.reg.Lookup(pt.ReplacementID)
		if state != EntryLoaded {
			continue // fatal later, at build time of the subtree
		}
		for _, step := range repl.Steps {
			for _, p := range step.Placements {
				if child, state := b.reg.Lookup(p.ID); state == EntryLoaded {
					child.InvalidateGeometry()
				}
			}
		}
	}
}

// collect gathers the not-yet-built closure of id into toBuild,
// following replacements and detecting reference cycles.
func (b *Builder) collect(id string, toBuild map[string]*PartType, visiting map[string]bool) error {
	pt, err := resolvePart(b.reg, id)
	if err != nil {
		return err
	}
	if pt.Geometry() != nil || toBuild[pt.ID] != nil {
		return nil
	}
	if visiting[pt.ID] {
		return fmt.Errorf("%w: %s", ErrCyclicReference, pt.ID)
	}
	visiting[pt.ID] = true
	defer delete(visiting, pt.ID)

	for _, step := range pt.Steps {
		for _, p := range step.Placements {
			if err := b.collect(p.ID, toBuild, visiting); err != nil {
				return fmt.Errorf("collecting %s: %w", pt.ID, err)
			}
		}
	}
	toBuild[pt.ID] = pt
	return nil
}

func (b *Builder) warnf(format string, args ...any) {
	if b.OnWarning != nil {
		b.OnWarning(Report{Message: fmt.Sprintf(format, args...)})
	}
}

func sortedKeys(m map[string]*PartType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
