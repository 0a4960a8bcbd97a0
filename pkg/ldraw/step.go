package ldraw

import "github.com/brickhub/ldmodel/pkg/math3"

// Line is a colored line segment primitive.
type Line struct {
	Color  ColorID
	P1, P2 math3.Vec3
}

// Triangle is a colored triangle primitive in canonical winding.
type Triangle struct {
	Color      ColorID
	P1, P2, P3 math3.Vec3
}

// Quad is a colored quadrilateral primitive in canonical winding.
// Consumers decompose it into two triangles.
type Quad struct {
	Color          ColorID
	P1, P2, P3, P4 math3.Vec3
}

// CondLine is a conditional line: drawn only when its two control
// points project to the same side of the line on screen. It never
// affects culling.
type CondLine struct {
	Color  ColorID
	P1, P2 math3.Vec3
	C1, C2 math3.Vec3
}

// Step is an ordered unit of construction within a part type: sub-model
// placements and/or raw primitives, an optional viewing rotation, and a
// cull flag. Culling is enabled by default and is suppressed for the
// whole step as soon as any triangle or quad is emitted outside a
// certified-BFC, locally-clipped context.
type Step struct {
	Placements []Placement
	Lines      []Line
	Triangles  []Triangle
	Quads      []Quad
	CondLines  []CondLine
	Rotation   *StepRotation
	Cull       bool
}

// NewStep returns an empty step with culling enabled.
func NewStep() *Step {
	return &Step{Cull: true}
}

// IsEmpty reports whether the step contains no placements and no
// primitives.
func (s *Step) IsEmpty() bool {
	return len(s.Placements) == 0 && !s.HasPrimitives()
}

// HasPrimitives reports whether the step contains raw drawing
// primitives. A step containing primitives is never split or merged.
func (s *Step) HasPrimitives() bool {
	return len(s.Lines) > 0 || len(s.Triangles) > 0 || len(s.Quads) > 0 || len(s.CondLines) > 0
}

// AddPlacement appends a sub-model placement.
func (s *Step) AddPlacement(p Placement) {
	s.Placements = append(s.Placements, p)
}

// AddLine appends a line segment.
func (s *Step) AddLine(color ColorID, p1, p2 math3.Vec3) {
	s.Lines = append(s.Lines, Line{Color: color, P1: p1, P2: p2})
}

// AddTriangle appends a triangle. Callers pass points already brought
// into canonical winding.
func (s *Step) AddTriangle(color ColorID, p1, p2, p3 math3.Vec3) {
	s.Triangles = append(s.Triangles, Triangle{Color: color, P1: p1, P2: p2, P3: p3})
}

// AddQuad appends a quad. Callers pass points already brought into
// canonical winding.
func (s *Step) AddQuad(color ColorID, p1, p2, p3, p4 math3.Vec3) {
	s.Quads = append(s.Quads, Quad{Color: color, P1: p1, P2: p2, P3: p3, P4: p4})
}

// AddCondLine appends a conditional line with its two control points.
func (s *Step) AddCondLine(color ColorID, p1, p2, c1, c2 math3.Vec3) {
	s.CondLines = append(s.CondLines, CondLine{Color: color, P1: p1, P2: p2, C1: c1, C2: c2})
}

// clone returns a shallow copy with an independently cloned rotation
// and no content, used when splitting placement-only steps.
func (s *Step) cloneShell() *Step {
	return &Step{Rotation: s.Rotation.Clone(), Cull: s.Cull}
}
