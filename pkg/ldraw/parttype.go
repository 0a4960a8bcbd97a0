package ldraw

import (
	"errors"
	"fmt"
	"strings"
)

// Part graph errors.
var (
	ErrCyclicReference     = errors.New("cyclic part reference")
	ErrUnresolvedReference = errors.New("unresolved part reference")
)

// PartKind classifies a part type.
type PartKind int

const (
	// KindUnknown means the classifier has not run yet.
	KindUnknown PartKind = iota
	// KindLeaf is a part type whose geometry is primitive drawing
	// commands, not further placements.
	KindLeaf
	// KindAssembly is a part type composed of placements of other
	// part types.
	KindAssembly
)

// String returns a human-readable kind name.
func (k PartKind) String() string {
	switch k {
	case KindLeaf:
		return "Leaf"
	case KindAssembly:
		return "Assembly"
	default:
		return "Unknown"
	}
}

// partFileSuffix marks identities that are leaf part files.
const partFileSuffix = ".dat"

// PartType is a named, reusable model unit: a primitive part file or an
// assembly/sub-model. Identity is the normalized file path or model
// name and is assigned at most once, except for the documented rename
// cases handled during parsing.
type PartType struct {
	ID          string
	Description string
	Author      string
	License     string
	Org         string

	// ReplacementID is set when the file declares itself superseded
	// by another part ("~Moved to" notice).
	ReplacementID string

	// Inlined marks part types embedded in a model file rather than
	// loaded from a library.
	Inlined bool

	Steps []*Step

	// CertifiedBFC and CCW describe the back-face-culling state the
	// file was parsed under.
	CertifiedBFC bool
	CCW          bool

	lastRotation *StepRotation
	normalized   bool
	kind         PartKind
	partCount    int
	geometry     *Geometry
}

// NewPartType returns an empty part type with the given identity.
func NewPartType(id string) *PartType {
	return &PartType{ID: NormalizeID(id), CCW: true, partCount: -1}
}

// AddStep appends a step, applying the step-collapse protocol: a
// totally empty first step is rejected; an ADD-mode rotation is summed
// onto the last known rotation (degrading to REL when there is none);
// an empty step whose rotation equals the last rotation is a no-op; a
// step following an empty step with equal rotation replaces it.
// It reports whether the step list changed.
func (pt *PartType) AddStep(step *Step) bool {
	if step.IsEmpty() && len(pt.Steps) == 0 {
		return false
	}
	if step.Rotation != nil && step.Rotation.Mode == RotationAdditive {
		if pt.lastRotation == nil {
			step.Rotation.Mode = RotationRelative
		} else {
			step.Rotation = &StepRotation{
				X:    pt.lastRotation.X + step.Rotation.X,
				Y:    pt.lastRotation.Y + step.Rotation.Y,
				Z:    pt.lastRotation.Z + step.Rotation.Z,
				Mode: pt.lastRotation.Mode,
			}
		}
	}
	sameRotation := step.Rotation.Equal(pt.lastRotation)
	if step.IsEmpty() && sameRotation {
		return false
	}
	if n := len(pt.Steps); n > 0 && pt.Steps[n-1].IsEmpty() && pt.Steps[n-1].Rotation.Equal(step.Rotation) {
		pt.Steps[n-1] = step
	} else {
		pt.Steps = append(pt.Steps, step)
	}
	pt.lastRotation = step.Rotation
	return true
}

// LastStep returns the last step, or nil when there is none.
func (pt *PartType) LastStep() *Step {
	if len(pt.Steps) == 0 {
		return nil
	}
	return pt.Steps[len(pt.Steps)-1]
}

// SetDescription records the human-readable description and reacts to
// the two special comment conventions: a "~Moved to X" notice sets the
// replacement identity, and an "~Unknown part" notice marks the part as
// a known-bad stub. It reports whether either convention matched.
func (pt *PartType) SetDescription(desc string) (moved, unknown bool) {
	pt.Description = desc
	if rest, ok := strings.CutPrefix(desc, "~Moved to "); ok {
		id := NormalizeID(rest)
		if !strings.Contains(id, ".") {
			id += partFileSuffix
		}
		pt.ReplacementID = id
		return true, false
	}
	if strings.HasPrefix(desc, "~Unknown part") {
		return false, true
	}
	return false, false
}

// IsOfficial reports whether the part comes from the official library,
// judged from its !LDRAW_ORG header.
func (pt *PartType) IsOfficial() bool {
	return pt.Org != "" && !strings.Contains(pt.Org, "Unofficial")
}

// Kind classifies the part type as leaf or assembly: a part-file
// identity, or a single step containing only primitives, is a leaf.
// The result is computed once and cached.
func (pt *PartType) Kind() PartKind {
	if pt.kind != KindUnknown {
		return pt.kind
	}
	switch {
	case strings.HasSuffix(pt.ID, partFileSuffix):
		pt.kind = KindLeaf
	case len(pt.Steps) == 1 && len(pt.Steps[0].Placements) == 0 && pt.Steps[0].HasPrimitives():
		pt.kind = KindLeaf
	default:
		pt.kind = KindAssembly
	}
	return pt.kind
}

// IsLeaf reports whether the part type is a leaf part.
func (pt *PartType) IsLeaf() bool {
	return pt.Kind() == KindLeaf
}

// CountParts returns the total number of leaf part placements in the
// transitive closure of pt. The count is memoized once per part type
// and invalidated only by Reset.
func (pt *PartType) CountParts(reg *Registry) (int, error) {
	return pt.countParts(reg, make(map[string]bool))
}

func (pt *PartType) countParts(reg *Registry, visiting map[string]bool) (int, error) {
	if pt.partCount >= 0 {
		return pt.partCount, nil
	}
	if visiting[pt.ID] {
		return 0, fmt.Errorf("%w: %s", ErrCyclicReference, pt.ID)
	}
	visiting[pt.ID] = true
	defer delete(visiting, pt.ID)

	count := 0
	for _, step := range pt.Steps {
		for _, p := range step.Placements {
			child, state := reg.Lookup(p.ID)
			if state != EntryLoaded {
				return 0, fmt.Errorf("%w: %s referenced by %s", ErrUnresolvedReference, p.ID, pt.ID)
			}
			if child.IsLeaf() {
				count++
				continue
			}
			n, err := child.countParts(reg, visiting)
			if err != nil {
				return 0, err
			}
			count += n
		}
	}
	pt.partCount = count
	return count, nil
}

// Geometry returns the finalized geometry, or nil when it has not been
// built yet.
func (pt *PartType) Geometry() *Geometry {
	return pt.geometry
}

// InvalidateGeometry discards memoized geometry so the next build
// recomputes it.
func (pt *PartType) InvalidateGeometry() {
	pt.geometry = nil
}

// Reset discards all memoized state: part count, geometry, kind
// classification and the normalization flag.
func (pt *PartType) Reset() {
	pt.partCount = -1
	pt.geometry = nil
	pt.kind = KindUnknown
	pt.normalized = false
}

// ReleaseSteps discards raw step and placement data to reclaim memory.
// The computed geometry, identity and metadata persist.
func (pt *PartType) ReleaseSteps() {
	pt.Kind() // classification depends on step shape; pin it first
	pt.Steps = nil
	pt.lastRotation = nil
}
