package ldraw

import (
	"strconv"
	"strings"
)

// ToLDR re-emits the part type as semantically equivalent source text:
// header directives followed by the steps in order. Consecutive steps
// with identical rotation collapse to a plain STEP marker; a cleared
// rotation emits ROTSTEP END; a changed rotation emits an explicit
// ROTSTEP directive.
func (pt *PartType) ToLDR() string {
	var b strings.Builder
	b.WriteString("0 FILE " + pt.ID + "\n")
	if pt.Description != "" {
		b.WriteString("0 " + pt.Description + "\n")
	}
	b.WriteString("0 Name: " + pt.ID + "\n")
	if pt.Author != "" {
		b.WriteString("0 Author: " + pt.Author + "\n")
	}
	if pt.License != "" {
		b.WriteString("0 !LICENSE " + pt.License + "\n")
	}
	if pt.Org != "" {
		b.WriteString("0 !LDRAW_ORG " + pt.Org + "\n")
	}
	if pt.CertifiedBFC {
		if pt.CCW {
			b.WriteString("0 BFC CERTIFY CCW\n")
		} else {
			b.WriteString("0 BFC CERTIFY CW\n")
		}
	}
	if pt.Inlined {
		b.WriteString("0 !BRICKHUB_INLINED\n")
	}

	var prev *StepRotation
	for _, step := range pt.Steps {
		pt.writeStep(&b, step)
		switch {
		case step.Rotation.Equal(prev):
			b.WriteString("0 STEP\n")
		case step.Rotation == nil:
			b.WriteString("0 ROTSTEP END\n")
		default:
			r := step.Rotation
			b.WriteString("0 ROTSTEP " + formatFloat(r.X) + " " + formatFloat(r.Y) + " " +
				formatFloat(r.Z) + " " + r.Mode.String() + "\n")
		}
		prev = step.Rotation
	}
	return b.String()
}

// writeStep emits the retained commands of one step. Surfaces are
// written in source winding: the parser's canonicalization flip is
// undone here so a re-parse restores the stored points. A step whose
// culling was suppressed inside a certified file re-emits under NOCLIP.
func (pt *PartType) writeStep(b *strings.Builder, step *Step) {
	noclip := !step.Cull && pt.CertifiedBFC && step.HasPrimitives()
	if noclip {
		b.WriteString("0 BFC NOCLIP\n")
	}
	for _, p := range step.Placements {
		if p.Invert {
			b.WriteString("0 BFC INVERTNEXT\n")
		}
		b.WriteString("1 " + strconv.Itoa(int(p.Color)) +
			" " + formatVec(p.Position.X, p.Position.Y, p.Position.Z))
		for _, v := range p.Rotation {
			b.WriteString(" " + formatFloat(v))
		}
		b.WriteString(" " + p.ID + "\n")
	}
	for _, l := range step.Lines {
		b.WriteString("2 " + strconv.Itoa(int(l.Color)) +
			" " + formatVec(l.P1.X, l.P1.Y, l.P1.Z) +
			" " + formatVec(l.P2.X, l.P2.Y, l.P2.Z) + "\n")
	}
	for _, t := range step.Triangles {
		p1, p3 := t.P1, t.P3
		if pt.CCW {
			p1, p3 = p3, p1
		}
		b.WriteString("3 " + strconv.Itoa(int(t.Color)) +
			" " + formatVec(p1.X, p1.Y, p1.Z) +
			" " + formatVec(t.P2.X, t.P2.Y, t.P2.Z) +
			" " + formatVec(p3.X, p3.Y, p3.Z) + "\n")
	}
	for _, q := range step.Quads {
		p1, p2, p3, p4 := q.P1, q.P2, q.P3, q.P4
		if pt.CCW {
			p1, p2, p3, p4 = p4, p3, p2, p1
		}
		b.WriteString("4 " + strconv.Itoa(int(q.Color)) +
			" " + formatVec(p1.X, p1.Y, p1.Z) +
			" " + formatVec(p2.X, p2.Y, p2.Z) +
			" " + formatVec(p3.X, p3.Y, p3.Z) +
			" " + formatVec(p4.X, p4.Y, p4.Z) + "\n")
	}
	for _, c := range step.CondLines {
		b.WriteString("5 " + strconv.Itoa(int(c.Color)) +
			" " + formatVec(c.P1.X, c.P1.Y, c.P1.Z) +
			" " + formatVec(c.P2.X, c.P2.Y, c.P2.Z) +
			" " + formatVec(c.C1.X, c.C1.Y, c.C1.Z) +
			" " + formatVec(c.C2.X, c.C2.Y, c.C2.Z) + "\n")
	}
	if noclip {
		b.WriteString("0 BFC CLIP\n")
	}
}

// ToLDR re-emits the whole loaded document: the main model followed by
// every loaded non-official part type, each as its own FILE block.
// Official library parts are external and are not inlined.
func (l *Loader) ToLDR() string {
	var b strings.Builder
	main, state := l.registry.Lookup(l.mainModel)
	if state == EntryLoaded {
		b.WriteString(main.ToLDR())
	}
	for _, pt := range l.registry.Loaded() {
		if pt == main || pt.IsOfficial() {
			continue
		}
		b.WriteString(pt.ToLDR())
	}
	return b.String()
}

// formatVec formats three coordinates separated by single spaces.
func formatVec(x, y, z float32) string {
	return formatFloat(x) + " " + formatFloat(y) + " " + formatFloat(z)
}

// formatFloat returns the shortest decimal representation with at most
// six fractional digits that parses back to the same float32 value,
// falling back to the full shortest round-trip form.
func formatFloat(f float32) string {
	v := float64(f)
	for prec := 0; prec <= 6; prec++ {
		s := strconv.FormatFloat(v, 'f', prec, 32)
		if parsed, err := strconv.ParseFloat(s, 32); err == nil && float32(parsed) == f {
			return s
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 32)
}
