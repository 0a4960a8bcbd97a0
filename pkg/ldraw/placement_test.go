package ldraw

import (
	"testing"

	"github.com/brickhub/ldmodel/pkg/math3"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "3001.DAT", "3001.dat"},
		{"backslash", `s\3001s01.dat`, "s/3001s01.dat"},
		{"trim", "  car.ldr ", "car.ldr"},
		{"already normal", "parts/3001.dat", "parts/3001.dat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeID(tt.in); got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlaceAt(t *testing.T) {
	child := Placement{
		Color:    ColorMain,
		Position: math3.Vec3{X: 1, Y: 0, Z: 0},
		Rotation: math3.Identity(),
		ID:       "3001.dat",
		Cull:     true,
	}
	parent := Placement{
		Color:    4,
		Position: math3.Vec3{X: 0, Y: 10, Z: 0},
		Rotation: math3.RotationZ(90),
		Cull:     true,
		Invert:   true,
	}

	got := child.PlaceAt(parent)

	if got.Color != 4 {
		t.Errorf("Color = %d, want 4", got.Color)
	}
	// (1,0,0) rotated 90 degrees about Z is (0,1,0); then translated.
	want := math3.Vec3{X: 0, Y: 11, Z: 0}
	if !got.Position.NearEqual(want, 1e-5) {
		t.Errorf("Position = %v, want %v", got.Position, want)
	}
	if !got.Invert {
		t.Error("Invert = false, want true (child false XOR parent true)")
	}
	if !got.Cull {
		t.Error("Cull = false, want true")
	}
	if got.ID != "3001.dat" {
		t.Errorf("ID = %q, want 3001.dat", got.ID)
	}
}

func TestPlaceAtInvertXOR(t *testing.T) {
	tests := []struct {
		name          string
		child, parent bool
		want          bool
	}{
		{"neither", false, false, false},
		{"child only", true, false, true},
		{"parent only", false, true, true},
		{"both cancel", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Placement{Invert: tt.child, Rotation: math3.Identity()}
			p := Placement{Invert: tt.parent, Rotation: math3.Identity()}
			if got := c.PlaceAt(p).Invert; got != tt.want {
				t.Errorf("Invert = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaceAtNestingIsAssociative(t *testing.T) {
	// Placing a inside b inside c must equal placing (a inside b)
	// inside c.
	a := Placement{
		Color:    ColorMain,
		Position: math3.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: math3.RotationX(30),
		ID:       "a.dat",
		Cull:     true,
		Invert:   true,
	}
	b := Placement{
		Color:    ColorEdge,
		Position: math3.Vec3{X: -4, Z: 5},
		Rotation: math3.RotationY(45),
		ID:       "b.ldr",
		Cull:     true,
	}
	c := Placement{
		Color:    7,
		Position: math3.Vec3{Y: 10},
		Rotation: math3.RotationZ(60),
		ID:       "c.ldr",
		Cull:     true,
		Invert:   true,
	}

	left := a.PlaceAt(b).PlaceAt(c)
	right := a.PlaceAt(b.PlaceAt(c))

	if left.Color != right.Color || left.Invert != right.Invert || left.Cull != right.Cull {
		t.Errorf("flags differ: %+v vs %+v", left, right)
	}
	if !left.Position.NearEqual(right.Position, 1e-4) {
		t.Errorf("positions differ: %v vs %v", left.Position, right.Position)
	}
	if !left.Rotation.NearEqual(right.Rotation, 1e-4) {
		t.Errorf("rotations differ: %v vs %v", left.Rotation, right.Rotation)
	}
}

func TestParseRotationMode(t *testing.T) {
	tests := []struct {
		in   string
		want RotationMode
	}{
		{"REL", RotationRelative},
		{"rel", RotationRelative},
		{"ADD", RotationAdditive},
		{"ABS", RotationAbsolute},
		{"bogus", RotationRelative},
	}

	for _, tt := range tests {
		if got := ParseRotationMode(tt.in); got != tt.want {
			t.Errorf("ParseRotationMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStepRotationEqual(t *testing.T) {
	r := &StepRotation{X: 1, Y: 2, Z: 3, Mode: RotationRelative}

	tests := []struct {
		name string
		a, b *StepRotation
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", r, nil, false},
		{"equal", r, &StepRotation{X: 1, Y: 2, Z: 3}, true},
		{"angle differs", r, &StepRotation{X: 1, Y: 2, Z: 4}, false},
		{"mode differs", r, &StepRotation{X: 1, Y: 2, Z: 3, Mode: RotationAbsolute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepRotationClone(t *testing.T) {
	if (*StepRotation)(nil).Clone() != nil {
		t.Error("nil Clone should stay nil")
	}
	r := &StepRotation{X: 1}
	c := r.Clone()
	c.X = 2
	if r.X != 1 {
		t.Error("Clone shares memory with original")
	}
}
