package ldraw

import (
	"errors"
	"fmt"
)

// Geometry build errors.
var (
	ErrGeometryNotReady = errors.New("child geometry not built")
	ErrGeometryNotBuilt = errors.New("geometry not built")
)

// Geometry is the finalized, build-ready output for one part type: the
// merged, de-duplicated primitives of the part and all its placed
// children, with inherit colors resolved at each placement boundary.
// Line colors inherited through the edge sentinel land in the edge
// color space; consumers see only the combined ColorID.
type Geometry struct {
	Lines     []Line
	Triangles []Triangle
	Quads     []Quad
	CondLines []CondLine

	// Cull reports whether back-face culling may be applied to the
	// whole geometry.
	Cull bool
	// CCW is the default winding flag the source was certified with.
	CCW bool
}

// IsEmpty reports whether the geometry holds no primitives.
func (g *Geometry) IsEmpty() bool {
	return len(g.Lines) == 0 && len(g.Triangles) == 0 && len(g.Quads) == 0 && len(g.CondLines) == 0
}

// SurfaceCount returns the number of surface primitives (triangles and
// quads).
func (g *Geometry) SurfaceCount() int {
	return len(g.Triangles) + len(g.Quads)
}

// resolvePart looks up id and follows its replacement chain: a part
// declaring itself superseded redirects to the superseding part.
// An unresolved identity or replacement is fatal for the caller.
func resolvePart(reg *Registry, id string) (*PartType, error) {
	seen := make(map[string]bool)
	for {
		pt, state := reg.Lookup(id)
		if state != EntryLoaded {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, id)
		}
		if pt.ReplacementID == "" {
			return pt, nil
		}
		if seen[pt.ID] {
			return nil, fmt.Errorf("%w: replacement chain at %s", ErrCyclicReference, pt.ID)
		}
		seen[pt.ID] = true
		id = pt.ReplacementID
	}
}

// BuildGeometry finalizes the part type's geometry: its own primitives
// plus every placed child's finalized geometry, transformed, color
// resolved and de-duplicated. The result is memoized; a repeated call
// returns the existing geometry. Every child must have geometry built
// already; the build scheduler guarantees the order.
func (pt *PartType) BuildGeometry(reg *Registry) (*Geometry, error) {
	if pt.geometry != nil {
		return pt.geometry, nil
	}
	acc := newGeomAccum(pt)
	for _, step := range pt.Steps {
		if !step.Cull {
			acc.g.Cull = false
		}
		for _, line := range step.Lines {
			acc.addLine(line)
		}
		for _, tri := range step.Triangles {
			acc.addTriangle(tri)
		}
		for _, quad := range step.Quads {
			acc.addQuad(quad)
		}
		for _, cond := range step.CondLines {
			acc.addCondLine(cond)
		}
		for _, p := range step.Placements {
			child, err := resolvePart(reg, p.ID)
			if err != nil {
				return nil, fmt.Errorf("building %s: %w", pt.ID, err)
			}
			childGeom := child.Geometry()
			if childGeom == nil {
				return nil, fmt.Errorf("%w: %s referenced by %s", ErrGeometryNotReady, child.ID, pt.ID)
			}
			acc.merge(childGeom, p)
		}
	}
	pt.geometry = acc.g
	return pt.geometry, nil
}

// geomAccum accumulates primitives with exact-equality de-duplication.
type geomAccum struct {
	g     *Geometry
	lines map[Line]bool
	tris  map[Triangle]bool
	quads map[Quad]bool
	conds map[CondLine]bool
}

func newGeomAccum(pt *PartType) *geomAccum {
	return &geomAccum{
		g:     &Geometry{Cull: true, CCW: pt.CCW},
		lines: make(map[Line]bool),
		tris:  make(map[Triangle]bool),
		quads: make(map[Quad]bool),
		conds: make(map[CondLine]bool),
	}
}

func (a *geomAccum) addLine(l Line) {
	if !a.lines[l] {
		a.lines[l] = true
		a.g.Lines = append(a.g.Lines, l)
	}
}

func (a *geomAccum) addTriangle(t Triangle) {
	if !a.tris[t] {
		a.tris[t] = true
		a.g.Triangles = append(a.g.Triangles, t)
	}
}

func (a *geomAccum) addQuad(q Quad) {
	if !a.quads[q] {
		a.quads[q] = true
		a.g.Quads = append(a.g.Quads, q)
	}
}

func (a *geomAccum) addCondLine(c CondLine) {
	if !a.conds[c] {
		a.conds[c] = true
		a.g.CondLines = append(a.g.CondLines, c)
	}
}

// merge folds a child's finalized geometry into the accumulator under
// the given placement: points are transformed, surface winding is
// reversed when the placement inverts or its rotation reflects, and
// colors resolve through the 16/24 rule with inherited edge lines
// landing in the edge color space.
func (a *geomAccum) merge(child *Geometry, p Placement) {
	flip := p.Invert
	if p.Rotation.Det() < 0 {
		flip = !flip
	}
	for _, l := range child.Lines {
		a.addLine(Line{
			Color: resolveEdgeAware(l.Color, p.Color),
			P1:    p.PlacePoint(l.P1),
			P2:    p.PlacePoint(l.P2),
		})
	}
	for _, t := range child.Triangles {
		nt := Triangle{
			Color: ResolveColor(t.Color, p.Color),
			P1:    p.PlacePoint(t.P1),
			P2:    p.PlacePoint(t.P2),
			P3:    p.PlacePoint(t.P3),
		}
		if flip {
			nt.P1, nt.P3 = nt.P3, nt.P1
		}
		a.addTriangle(nt)
	}
	for _, q := range child.Quads {
		nq := Quad{
			Color: ResolveColor(q.Color, p.Color),
			P1:    p.PlacePoint(q.P1),
			P2:    p.PlacePoint(q.P2),
			P3:    p.PlacePoint(q.P3),
			P4:    p.PlacePoint(q.P4),
		}
		if flip {
			nq.P1, nq.P2, nq.P3, nq.P4 = nq.P4, nq.P3, nq.P2, nq.P1
		}
		a.addQuad(nq)
	}
	for _, c := range child.CondLines {
		a.addCondLine(CondLine{
			Color: resolveEdgeAware(c.Color, p.Color),
			P1:    p.PlacePoint(c.P1),
			P2:    p.PlacePoint(c.P2),
			C1:    p.PlacePoint(c.C1),
			C2:    p.PlacePoint(c.C2),
		})
	}
	if !child.Cull || !p.Cull {
		a.g.Cull = false
	}
}

// resolveEdgeAware resolves a line primitive color: the edge sentinel
// under a concrete parent color maps into that color's edge space.
func resolveEdgeAware(c, parent ColorID) ColorID {
	switch c {
	case ColorMain:
		return parent
	case ColorEdge:
		if parent == ColorMain {
			return ColorEdge
		}
		return parent.Base().Edge()
	default:
		return c
	}
}
