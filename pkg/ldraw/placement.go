package ldraw

import (
	"strings"

	"github.com/brickhub/ldmodel/pkg/math3"
)

// Placement is an immutable record of one part type positioned, colored
// and oriented inside another. Target identities are case- and
// path-separator-normalized.
type Placement struct {
	Color    ColorID
	Position math3.Vec3
	Rotation math3.Mat3
	ID       string
	Cull     bool
	Invert   bool // invert the winding of the placed geometry
}

// PlaceAt returns the placement that results from nesting p inside
// parent: the color is resolved through the 16/24 inheritance rule, the
// transform is composed child-local point -> parent rotation -> +
// parent translation, and the invert flags are XORed since each nesting
// level may flip winding.
func (p Placement) PlaceAt(parent Placement) Placement {
	return Placement{
		Color:    ResolveColor(p.Color, parent.Color),
		Position: parent.Rotation.MulVec3(p.Position).Add(parent.Position),
		Rotation: parent.Rotation.Mul(p.Rotation),
		ID:       p.ID,
		Cull:     p.Cull && parent.Cull,
		Invert:   p.Invert != parent.Invert,
	}
}

// PlacePoint transforms a child-local point into the parent frame:
// rotate, then translate.
func (p Placement) PlacePoint(v math3.Vec3) math3.Vec3 {
	return p.Rotation.MulVec3(v).Add(p.Position)
}

// NormalizeID normalizes a part identity: lowercase with forward
// slashes. Identities compare equal after normalization.
func NormalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), "\\", "/")
}

// RotationMode selects how a step rotation combines with prior state.
type RotationMode int

const (
	// RotationRelative composes with the default viewing orientation.
	RotationRelative RotationMode = iota
	// RotationAdditive accumulates onto the previous step's rotation.
	RotationAdditive
	// RotationAbsolute ignores inherited rotation entirely.
	RotationAbsolute
)

// String returns the directive token for the mode.
func (m RotationMode) String() string {
	switch m {
	case RotationRelative:
		return "REL"
	case RotationAdditive:
		return "ADD"
	case RotationAbsolute:
		return "ABS"
	default:
		return "REL"
	}
}

// ParseRotationMode parses a ROTSTEP mode token. Unrecognized tokens
// default to REL.
func ParseRotationMode(s string) RotationMode {
	switch strings.ToUpper(s) {
	case "ADD":
		return RotationAdditive
	case "ABS":
		return RotationAbsolute
	default:
		return RotationRelative
	}
}

// StepRotation is a viewing rotation attached to a step, in degrees.
type StepRotation struct {
	X, Y, Z float32
	Mode    RotationMode
}

// Equal reports rotation equality. Two nil rotations are equal; one nil
// and one non-nil are not; two non-nil rotations are equal iff all four
// fields match exactly.
func (r *StepRotation) Equal(other *StepRotation) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.X == other.X && r.Y == other.Y && r.Z == other.Z && r.Mode == other.Mode
}

// Clone returns an independent copy, or nil for a nil rotation.
func (r *StepRotation) Clone() *StepRotation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
