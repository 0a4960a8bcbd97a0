package ldraw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brickhub/ldmodel/pkg/math3"
)

// DefaultModelID is the fallback identity assigned when a text declares
// no file-start directive and no main model exists yet.
const DefaultModelID = "main.ldr"

// ignoredDirectives is the fixed allow-list of known meta commands that
// carry no information for the model graph.
var ignoredDirectives = map[string]bool{
	"!CATEGORY": true,
	"!CMDLINE":  true,
	"!HELP":     true,
	"!HISTORY":  true,
	"!KEYWORDS": true,
	"!LDCAD":    true,
	"!LEOCAD":   true,
	"!LPUB":     true,
	"!THEME":    true,
	"CLEAR":     true,
	"NOFILE":    true,
	"PAUSE":     true,
	"PRINT":     true,
	"SAVE":      true,
	"WRITE":     true,
}

// parseState carries the per-text parse state: current part type,
// current step and BFC flags. It is local to one Parse call, never
// shared.
type parseState struct {
	l    *Loader
	part *PartType
	step *Step

	invertNext bool
	localCull  bool
	ccw        bool

	defaultID   string
	lastComment string
	lineNo      int

	// referenced collects identities seen in placements that were
	// unknown at the time; loading is kicked off at end of text so
	// that models defined later in the same text are not fetched.
	referenced []string
	refSeen    map[string]bool
}

// Parse runs the grammar over every line of text, registers the part
// types it completes, and kicks off loading of every referenced
// identity that is still unknown. It returns the main model's part
// type, or nil when the text produced no parts.
func (l *Loader) Parse(text string) *PartType {
	return l.parseText(text, "")
}

// parseText parses one text body. defaultID names the file the text was
// fetched as and is adopted when the text itself declares no identity.
func (l *Loader) parseText(text, defaultID string) *PartType {
	st := &parseState{
		l:         l,
		part:      NewPartType(""),
		step:      NewStep(),
		defaultID: NormalizeID(defaultID),
		localCull: true,
		ccw:       true,
		refSeen:   make(map[string]bool),
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		st.lineNo = i + 1
		st.parseLine(line)
	}
	st.closePart()

	for _, id := range st.referenced {
		l.scheduleLoad(id)
	}
	if main, state := l.registry.Lookup(l.mainModel); state == EntryLoaded {
		return main
	}
	return nil
}

// parseLine tokenizes and dispatches one physical line. Lines with
// fewer than two whitespace-separated tokens are skipped. The
// INVERTNEXT flag is consumed by the next non-meta line regardless of
// whether that line parsed cleanly.
func (st *parseState) parseLine(line string) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return
	}
	lineType, err := strconv.Atoi(tokens[0])
	if err != nil {
		st.warnf("unrecognized line type %q", tokens[0])
		return
	}
	if lineType == 0 {
		st.parseMeta(tokens)
		return
	}
	switch lineType {
	case 1:
		st.parsePlacement(tokens)
	case 2:
		st.parseLinePrim(tokens)
	case 3:
		st.parseTriangle(tokens)
	case 4:
		st.parseQuad(tokens)
	case 5:
		st.parseCondLine(tokens)
	default:
		st.warnf("unknown line type %d", lineType)
	}
	st.invertNext = false
	st.lastComment = ""
}

// parseMeta handles type-0 lines: directives and comments. A comment
// only describes a following file block when it immediately precedes
// the file start directive.
func (st *parseState) parseMeta(tokens []string) {
	rest := strings.Join(tokens[2:], " ")
	previous := st.lastComment
	st.lastComment = ""
	switch tokens[1] {
	case "FILE", "file", "Name:":
		if rest == "" {
			st.warnf("file start directive without a name")
			return
		}
		st.handlePotentialFileStart(rest, previous)
	case "Author:":
		st.part.Author = rest
	case "!LICENSE":
		st.part.License = rest
	case "!LDRAW_ORG":
		st.part.Org = rest
	case "BFC":
		st.parseBFC(tokens[2:])
	case "STEP":
		st.closeStep(true)
	case "ROTSTEP":
		st.parseRotStep(tokens[2:])
	case "!COLOUR":
		if err := st.l.Colors.ParseColourDirective(tokens[2:]); err != nil {
			st.warnf("bad !COLOUR directive: %v", err)
		}
	case "!BRICKHUB_INLINED":
		st.part.Inlined = true
	default:
		if ignoredDirectives[tokens[1]] {
			return
		}
		if strings.HasPrefix(tokens[1], "!") {
			st.warnf("unknown command %q", tokens[1])
			return
		}
		st.handleComment(strings.Join(tokens[1:], " "))
	}
}

// handleComment captures a plain comment as the previous comment and
// auto-fills the part description.
func (st *parseState) handleComment(comment string) {
	st.lastComment = comment
	if st.part.Description != "" {
		return
	}
	st.applyDescription(comment)
}

// applyDescription sets the part description from a comment, reacting
// to the "~Moved to" and "~Unknown part" conventions.
func (st *parseState) applyDescription(comment string) {
	moved, unknown := st.part.SetDescription(comment)
	if moved {
		st.warnf("part %q has moved to %q", st.part.ID, st.part.ReplacementID)
	}
	if unknown {
		st.errorf("reference to unknown part %q", st.part.ID)
	}
}

// handlePotentialFileStart applies the four-case file boundary
// protocol. Directives after a file start begin clean. previous is the
// comment directly before the file start; it seeds the description of
// a freshly begun block.
func (st *parseState) handlePotentialFileStart(name, previous string) {
	id := NormalizeID(name)
	st.invertNext = false
	st.localCull = true
	st.ccw = true

	switch {
	case st.part.ID != "" && st.part.ID == id:
		// Consistent FILE and Name: lines; description only.
	case st.l.mainModel == "":
		st.part.ID = id
		st.l.mainModel = id
	case st.part.ID == "":
		// A sub-file adopting its declared name.
		st.part.ID = id
	case len(st.part.Steps) == 0 && st.step.IsEmpty() && st.part.ID == st.l.mainModel:
		// The main model never got content under its declared name;
		// tolerate files whose first directive block does not match
		// by renaming it in place.
		st.l.registry.Remove(st.part.ID)
		st.part.ID = id
		st.l.mainModel = id
	default:
		if len(st.part.Steps) == 0 && st.step.IsEmpty() && st.part.ID != "" {
			// Malformed file fallback: keep the empty model as a
			// wrapper referencing the model that follows.
			st.step.AddPlacement(Placement{
				Color:    ColorMain,
				Rotation: math3.Identity(),
				ID:       id,
				Cull:     true,
			})
		}
		st.closePart()
		st.part = NewPartType(id)
		st.step = NewStep()
		if previous != "" {
			st.applyDescription(previous)
		}
	}
}

// parseBFC handles back-face-culling meta commands.
func (st *parseState) parseBFC(options []string) {
	for _, opt := range options {
		switch strings.ToUpper(opt) {
		case "CERTIFY":
			st.part.CertifiedBFC = true
			st.localCull = true
		case "NOCERTIFY":
			st.part.CertifiedBFC = false
		case "INVERTNEXT":
			st.invertNext = true
		case "CLIP":
			st.localCull = true
		case "NOCLIP":
			st.localCull = false
		case "CW":
			st.ccw = false
			st.part.CCW = false
		case "CCW":
			st.ccw = true
			st.part.CCW = true
		default:
			st.warnf("unknown BFC option %q", opt)
		}
	}
}

// parseRotStep handles "0 ROTSTEP x y z [REL|ADD|ABS]" and the bare
// "0 ROTSTEP END" that clears rotation. Both variants end the step.
func (st *parseState) parseRotStep(args []string) {
	if len(args) >= 1 && strings.EqualFold(args[0], "END") {
		st.step.Rotation = nil
		st.closeStep(false)
		return
	}
	if len(args) < 3 {
		st.warnf("malformed ROTSTEP directive")
		return
	}
	x, okX := st.parseFloat(args[0])
	y, okY := st.parseFloat(args[1])
	z, okZ := st.parseFloat(args[2])
	if !okX || !okY || !okZ {
		return
	}
	mode := RotationRelative
	if len(args) >= 4 {
		mode = ParseRotationMode(args[3])
	}
	st.step.Rotation = &StepRotation{X: x, Y: y, Z: z, Mode: mode}
	st.closeStep(true)
}

// closeStep hands the current step to the part type and begins a new
// one, optionally carrying the rotation forward.
func (st *parseState) closeStep(keepRotation bool) {
	rotation := st.step.Rotation
	st.part.AddStep(st.step)
	st.step = NewStep()
	if keepRotation {
		st.step.Rotation = rotation.Clone()
	}
}

// closePart finalizes the in-progress part type: the trailing step is
// added, a fallback identity is assigned when no file start was ever
// seen, and the part is registered.
func (st *parseState) closePart() {
	st.part.AddStep(st.step)
	st.step = NewStep()
	if st.part.ID == "" {
		switch {
		case st.defaultID != "":
			st.part.ID = st.defaultID
		case st.l.mainModel == "":
			st.l.mainModel = DefaultModelID
			st.part.ID = DefaultModelID
		default:
			st.part.ID = st.l.mainModel
		}
	}
	if len(st.part.Steps) == 0 && st.part.Description == "" && st.part.Author == "" {
		return // nothing was parsed under this identity
	}
	st.l.registry.Register(st.part)
}

// parsePlacement handles type-1 lines: color, position, a 3x3 rotation
// matrix written row-major, and the target identity in the remaining
// tokens.
func (st *parseState) parsePlacement(tokens []string) {
	if len(tokens) < 15 {
		st.warnf("malformed sub-model placement")
		return
	}
	color := st.parseColor(tokens[1])
	position, ok := st.parseVec3(tokens[2:5])
	if !ok {
		return
	}
	var rotation math3.Mat3
	for i := 0; i < 9; i++ {
		v, ok := st.parseFloat(tokens[5+i])
		if !ok {
			return
		}
		rotation[i] = v
	}
	id := NormalizeID(strings.Join(tokens[14:], " "))
	st.step.AddPlacement(Placement{
		Color:    color,
		Position: position,
		Rotation: rotation,
		ID:       id,
		Cull:     st.part.CertifiedBFC && st.localCull,
		Invert:   st.invertNext,
	})
	if !st.l.registry.Known(id) && !st.refSeen[id] {
		st.refSeen[id] = true
		st.referenced = append(st.referenced, id)
	}
}

// parseLinePrim handles type-2 lines: color plus two points.
func (st *parseState) parseLinePrim(tokens []string) {
	if len(tokens) < 8 {
		st.warnf("malformed line segment")
		return
	}
	color := st.parseColor(tokens[1])
	p1, ok1 := st.parseVec3(tokens[2:5])
	p2, ok2 := st.parseVec3(tokens[5:8])
	if !ok1 || !ok2 {
		return
	}
	st.step.AddLine(color, p1, p2)
}

// parseTriangle handles type-3 lines. The point order is reversed when
// the current winding XOR invert-next calls for it, so all stored
// triangles share one canonical winding.
func (st *parseState) parseTriangle(tokens []string) {
	if len(tokens) < 11 {
		st.warnf("malformed triangle")
		return
	}
	color := st.parseColor(tokens[1])
	p1, ok1 := st.parseVec3(tokens[2:5])
	p2, ok2 := st.parseVec3(tokens[5:8])
	p3, ok3 := st.parseVec3(tokens[8:11])
	if !ok1 || !ok2 || !ok3 {
		return
	}
	if st.ccw != st.invertNext {
		p1, p3 = p3, p1
	}
	st.step.AddTriangle(color, p1, p2, p3)
	st.applySurfaceCulling()
}

// parseQuad handles type-4 lines with the triangle winding rule.
func (st *parseState) parseQuad(tokens []string) {
	if len(tokens) < 14 {
		st.warnf("malformed quad")
		return
	}
	color := st.parseColor(tokens[1])
	p1, ok1 := st.parseVec3(tokens[2:5])
	p2, ok2 := st.parseVec3(tokens[5:8])
	p3, ok3 := st.parseVec3(tokens[8:11])
	p4, ok4 := st.parseVec3(tokens[11:14])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	if st.ccw != st.invertNext {
		p1, p2, p3, p4 = p4, p3, p2, p1
	}
	st.step.AddQuad(color, p1, p2, p3, p4)
	st.applySurfaceCulling()
}

// parseCondLine handles type-5 lines: two endpoints plus two control
// points. Conditional lines never affect culling.
func (st *parseState) parseCondLine(tokens []string) {
	if len(tokens) < 14 {
		st.warnf("malformed conditional line")
		return
	}
	color := st.parseColor(tokens[1])
	p1, ok1 := st.parseVec3(tokens[2:5])
	p2, ok2 := st.parseVec3(tokens[5:8])
	c1, ok3 := st.parseVec3(tokens[8:11])
	c2, ok4 := st.parseVec3(tokens[11:14])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	st.step.AddCondLine(color, p1, p2, c1, c2)
}

// applySurfaceCulling disables culling for the whole enclosing step
// when a surface is emitted outside a certified, locally-clipped
// context.
func (st *parseState) applySurfaceCulling() {
	if !st.part.CertifiedBFC || !st.localCull {
		st.step.Cull = false
	}
}

// parseColor parses a color token, substituting black for unknown
// colors with a warning.
func (st *parseState) parseColor(token string) ColorID {
	v, err := strconv.Atoi(token)
	if err != nil {
		st.warnf("invalid color %q", token)
		return ColorBlack
	}
	id := ColorID(v)
	if !st.l.Colors.Contains(id) {
		st.warnf("unknown color %d", id)
		return ColorBlack
	}
	return id
}

// parseVec3 parses three consecutive float tokens.
func (st *parseState) parseVec3(tokens []string) (math3.Vec3, bool) {
	x, okX := st.parseFloat(tokens[0])
	y, okY := st.parseFloat(tokens[1])
	z, okZ := st.parseFloat(tokens[2])
	return math3.Vec3{X: x, Y: y, Z: z}, okX && okY && okZ
}

// parseFloat parses one float token with a warning on failure.
func (st *parseState) parseFloat(token string) (float32, bool) {
	v, err := strconv.ParseFloat(token, 32)
	if err != nil {
		st.warnf("invalid number %q", token)
		return 0, false
	}
	return float32(v), true
}

func (st *parseState) warnf(format string, args ...any) {
	st.l.warn(Report{
		Message: fmt.Sprintf(format, args...),
		Line:    st.lineNo,
		PartID:  st.part.ID,
	})
}

func (st *parseState) errorf(format string, args ...any) {
	st.l.reportError(Report{
		Message: fmt.Sprintf(format, args...),
		Line:    st.lineNo,
		PartID:  st.part.ID,
	})
}
