package ldraw

import (
	"errors"
	"testing"

	"github.com/brickhub/ldmodel/pkg/math3"
)

// packedFixture builds a part with every primitive kind and returns its
// packed payload.
func packedFixture(t *testing.T) (*PartType, []byte) {
	t.Helper()
	reg := NewRegistry()
	pt := NewPartType("3001.dat")
	pt.Description = "Brick 2 x 4"
	step := NewStep()
	step.AddLine(ColorEdge, math3.Vec3{}, math3.Vec3{X: 1})
	step.AddTriangle(4, math3.Vec3{}, math3.Vec3{X: 1}, math3.Vec3{Y: 1})
	step.AddQuad(14, math3.Vec3{}, math3.Vec3{X: 1}, math3.Vec3{X: 1, Y: 1}, math3.Vec3{Y: 1})
	step.AddCondLine(ColorEdge, math3.Vec3{}, math3.Vec3{X: 1}, math3.Vec3{Y: 1}, math3.Vec3{Z: 1})
	pt.AddStep(step)
	reg.Register(pt)
	if _, err := pt.BuildGeometry(reg); err != nil {
		t.Fatal(err)
	}

	data, err := PackGeometry(pt)
	if err != nil {
		t.Fatalf("PackGeometry error: %v", err)
	}
	return pt, data
}

func TestPackUnpackGeometry(t *testing.T) {
	pt, data := packedFixture(t)

	id, desc, g, err := UnpackGeometry(data)
	if err != nil {
		t.Fatalf("UnpackGeometry error: %v", err)
	}
	if id != "3001.dat" || desc != "Brick 2 x 4" {
		t.Errorf("identity = (%q, %q)", id, desc)
	}

	src := pt.Geometry()
	if g.Cull != src.Cull || g.CCW != src.CCW {
		t.Errorf("flags = (%v, %v), want (%v, %v)", g.Cull, g.CCW, src.Cull, src.CCW)
	}
	if len(g.Lines) != 1 || g.Lines[0] != src.Lines[0] {
		t.Errorf("lines = %+v, want %+v", g.Lines, src.Lines)
	}
	if len(g.Triangles) != 1 || g.Triangles[0] != src.Triangles[0] {
		t.Errorf("triangles = %+v, want %+v", g.Triangles, src.Triangles)
	}
	if len(g.Quads) != 1 || g.Quads[0] != src.Quads[0] {
		t.Errorf("quads = %+v, want %+v", g.Quads, src.Quads)
	}
	if len(g.CondLines) != 1 || g.CondLines[0] != src.CondLines[0] {
		t.Errorf("conditional lines = %+v, want %+v", g.CondLines, src.CondLines)
	}
}

func TestPackGeometryRequiresBuild(t *testing.T) {
	pt := NewPartType("3001.dat")
	if _, err := PackGeometry(pt); !errors.Is(err, ErrGeometryNotBuilt) {
		t.Errorf("err = %v, want ErrGeometryNotBuilt", err)
	}
}

func TestUnpackGeometryErrors(t *testing.T) {
	_, data := packedFixture(t)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[0] = 'X'
		if _, _, _, err := UnpackGeometry(bad); !errors.Is(err, ErrInvalidPackMagic) {
			t.Errorf("err = %v, want ErrInvalidPackMagic", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[4] = 99
		if _, _, _, err := UnpackGeometry(bad); !errors.Is(err, ErrUnsupportedPackVersion) {
			t.Errorf("err = %v, want ErrUnsupportedPackVersion", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		for _, n := range []int{0, 3, 8, len(data) / 2, len(data) - 1} {
			if _, _, _, err := UnpackGeometry(data[:n]); !errors.Is(err, ErrTruncatedPackData) {
				t.Errorf("len %d: err = %v, want ErrTruncatedPackData", n, err)
			}
		}
	})
}
