package ldraw

import "fmt"

// NormalizeSteps splits placement-only steps into homogeneous batches
// for build and clean rendering: placements are grouped by (target
// identity, resolved color) preserving group encounter order, with one
// trailing group for leaf parts. Steps that are empty or contain raw
// primitives pass through unchanged. Every referenced non-leaf part
// type is normalized recursively, exactly once; cyclic references fail
// with ErrCyclicReference instead of recursing unboundedly.
func NormalizeSteps(reg *Registry, pt *PartType) error {
	return normalizeSteps(reg, pt, make(map[string]bool))
}

func normalizeSteps(reg *Registry, pt *PartType, visiting map[string]bool) error {
	if pt.normalized {
		return nil
	}
	if visiting[pt.ID] {
		return fmt.Errorf("%w: %s", ErrCyclicReference, pt.ID)
	}
	visiting[pt.ID] = true
	defer delete(visiting, pt.ID)

	steps := make([]*Step, 0, len(pt.Steps))
	for _, step := range pt.Steps {
		split, err := splitStep(reg, step, visiting)
		if err != nil {
			return err
		}
		steps = append(steps, split...)
	}
	pt.Steps = steps
	pt.normalized = true
	return nil
}

// placementGroup keys a batch of placements sharing target and color.
type placementGroup struct {
	id    string
	color ColorID
}

// splitStep emits one step per (identity, color) group of an
// assembly-placement step, normalizing referenced sub-models along the
// way. Leaf-part placements form one final step after all assembly
// groups.
func splitStep(reg *Registry, step *Step, visiting map[string]bool) ([]*Step, error) {
	if step.HasPrimitives() || step.IsEmpty() {
		return []*Step{step}, nil
	}

	var order []placementGroup
	groups := make(map[placementGroup][]Placement)
	var leaves []Placement

	for _, p := range step.Placements {
		child, state := reg.Lookup(p.ID)
		if state != EntryLoaded {
			// Reported at completion time; keep the placement with
			// the assemblies so nothing is silently dropped.
			key := placementGroup{id: p.ID, color: p.Color}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], p)
			continue
		}
		if child.IsLeaf() {
			leaves = append(leaves, p)
			continue
		}
		if err := normalizeSteps(reg, child, visiting); err != nil {
			return nil, err
		}
		key := placementGroup{id: p.ID, color: p.Color}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	var out []*Step
	for _, key := range order {
		s := step.cloneShell()
		s.Placements = groups[key]
		out = append(out, s)
	}
	if len(leaves) > 0 {
		s := step.cloneShell()
		s.Placements = leaves
		out = append(out, s)
	}
	return out, nil
}
