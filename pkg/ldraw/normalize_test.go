package ldraw

import (
	"errors"
	"testing"

	"github.com/brickhub/ldmodel/pkg/math3"
)

// normalizeFixture registers a leaf brick and two sub-assemblies.
func normalizeFixture(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()

	brick := NewPartType("brick.dat")
	brick.AddStep(stepWithLine())
	reg.Register(brick)

	for _, id := range []string{"suba.ldr", "subb.ldr"} {
		sub := NewPartType(id)
		sub.AddStep(stepWithPlacement("brick.dat", ColorMain))
		reg.Register(sub)
	}
	return reg
}

func TestNormalizeStepsGroupsByIdentityAndColor(t *testing.T) {
	reg := normalizeFixture(t)

	main := NewPartType("main.ldr")
	step := NewStep()
	step.AddPlacement(Placement{Color: 4, Rotation: math3.Identity(), ID: "suba.ldr"})
	step.AddPlacement(Placement{Color: 4, Rotation: math3.Identity(), ID: "subb.ldr"})
	step.AddPlacement(Placement{Color: 4, Position: math3.Vec3{X: 20}, Rotation: math3.Identity(), ID: "suba.ldr"})
	step.AddPlacement(Placement{Color: 2, Rotation: math3.Identity(), ID: "suba.ldr"})
	step.AddPlacement(Placement{Color: 16, Rotation: math3.Identity(), ID: "brick.dat"})
	main.AddStep(step)
	reg.Register(main)

	if err := NormalizeSteps(reg, main); err != nil {
		t.Fatalf("NormalizeSteps error: %v", err)
	}

	// Groups in encounter order: (suba,4) x2, (subb,4), (suba,2), then
	// the trailing leaf step.
	if len(main.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(main.Steps))
	}
	checks := []struct {
		id    string
		color ColorID
		count int
	}{
		{"suba.ldr", 4, 2},
		{"subb.ldr", 4, 1},
		{"suba.ldr", 2, 1},
		{"brick.dat", 16, 1},
	}
	for i, c := range checks {
		ps := main.Steps[i].Placements
		if len(ps) != c.count {
			t.Errorf("step %d has %d placements, want %d", i, len(ps), c.count)
			continue
		}
		if ps[0].ID != c.id || ps[0].Color != c.color {
			t.Errorf("step %d = (%s, %d), want (%s, %d)", i, ps[0].ID, ps[0].Color, c.id, c.color)
		}
	}
}

func TestNormalizeStepsPassThrough(t *testing.T) {
	reg := normalizeFixture(t)

	main := NewPartType("main.ldr")
	main.AddStep(stepWithLine())
	reg.Register(main)

	if err := NormalizeSteps(reg, main); err != nil {
		t.Fatalf("NormalizeSteps error: %v", err)
	}
	if len(main.Steps) != 1 {
		t.Errorf("primitive step was split: %d steps", len(main.Steps))
	}
}

func TestNormalizeStepsKeepsUnknownPlacements(t *testing.T) {
	reg := normalizeFixture(t)
	reg.MarkPending("ghost.dat")

	main := NewPartType("main.ldr")
	step := NewStep()
	step.AddPlacement(Placement{Color: 4, Rotation: math3.Identity(), ID: "ghost.dat"})
	step.AddPlacement(Placement{Color: 4, Rotation: math3.Identity(), ID: "suba.ldr"})
	main.AddStep(step)
	reg.Register(main)

	if err := NormalizeSteps(reg, main); err != nil {
		t.Fatalf("NormalizeSteps error: %v", err)
	}
	total := 0
	for _, s := range main.Steps {
		total += len(s.Placements)
	}
	if total != 2 {
		t.Errorf("placements after normalize = %d, want 2 (nothing dropped)", total)
	}
}

func TestNormalizeStepsIdempotent(t *testing.T) {
	reg := normalizeFixture(t)

	main := NewPartType("main.ldr")
	step := NewStep()
	step.AddPlacement(Placement{Color: 4, Rotation: math3.Identity(), ID: "suba.ldr"})
	step.AddPlacement(Placement{Color: 2, Rotation: math3.Identity(), ID: "suba.ldr"})
	main.AddStep(step)
	reg.Register(main)

	if err := NormalizeSteps(reg, main); err != nil {
		t.Fatal(err)
	}
	n := len(main.Steps)
	if err := NormalizeSteps(reg, main); err != nil {
		t.Fatal(err)
	}
	if len(main.Steps) != n {
		t.Errorf("second pass changed step count: %d -> %d", n, len(main.Steps))
	}
}

func TestNormalizeStepsCycle(t *testing.T) {
	reg := NewRegistry()
	a := NewPartType("a.ldr")
	a.AddStep(stepWithPlacement("b.ldr", ColorMain))
	b := NewPartType("b.ldr")
	b.AddStep(stepWithPlacement("a.ldr", ColorMain))
	reg.Register(a)
	reg.Register(b)

	if err := NormalizeSteps(reg, a); !errors.Is(err, ErrCyclicReference) {
		t.Errorf("err = %v, want ErrCyclicReference", err)
	}
}
