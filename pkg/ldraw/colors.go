// Package ldraw parses hierarchical brick-model descriptions into a
// part/model graph, resolves cross-references between named sub-models,
// and produces merged, de-duplicated geometric primitives per part.
package ldraw

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Color table errors.
var (
	ErrUnknownColor      = errors.New("unknown color")
	ErrInvalidColorValue = errors.New("invalid color value")
)

// ColorID identifies a color. Two numeric spaces share the domain: an
// ordinary color (0 <= id < EdgeColorOffset) and its edge variant
// (id >= EdgeColorOffset, base recoverable by subtracting the offset).
type ColorID int

// Sentinel color IDs.
const (
	// ColorBlack is the fallback substituted for unknown color IDs.
	ColorBlack ColorID = 0
	// ColorMain inherits the placing model's main color.
	ColorMain ColorID = 16
	// ColorEdge inherits the placing model's edge color.
	ColorEdge ColorID = 24
	// EdgeColorOffset separates the ordinary color space from the edge
	// color space within the shared ColorID domain.
	EdgeColorOffset ColorID = 10000
)

// IsEdge reports whether id lies in the edge color space.
func (id ColorID) IsEdge() bool {
	return id >= EdgeColorOffset
}

// Base returns the ordinary-space color for an edge-space id, and id
// itself otherwise.
func (id ColorID) Base() ColorID {
	if id.IsEdge() {
		return id - EdgeColorOffset
	}
	return id
}

// Edge returns the edge-space variant of an ordinary-space id.
func (id ColorID) Edge() ColorID {
	if id.IsEdge() {
		return id
	}
	return id + EdgeColorOffset
}

// ResolveColor resolves a child color against the color of the placement
// it is nested under. Color 16 inherits the parent color; color 24
// inherits the parent color unless the parent itself is 16, in which
// case the edge sentinel is preserved. All other colors are final.
func ResolveColor(child, parent ColorID) ColorID {
	switch child {
	case ColorMain:
		return parent
	case ColorEdge:
		if parent == ColorMain {
			return ColorEdge
		}
		return parent
	default:
		return child
	}
}

// Color describes one entry of the color table.
type Color struct {
	Name  string
	Value uint32 // Face color as 0xRRGGBB
	Edge  uint32 // Edge color as 0xRRGGBB
	Alpha uint8  // 0 = fully transparent, 255 = opaque
}

// ColorTable maps color IDs to face color, edge color, and alpha.
type ColorTable struct {
	colors map[ColorID]Color
}

// NewColorTable returns a table seeded with the standard colors.
func NewColorTable() *ColorTable {
	t := &ColorTable{colors: make(map[ColorID]Color, len(standardColors))}
	for id, c := range standardColors {
		t.colors[id] = c
	}
	return t
}

// Add registers or replaces a color definition.
func (t *ColorTable) Add(id ColorID, c Color) {
	t.colors[id.Base()] = c
}

// Contains reports whether id resolves to a known color. The inherit
// sentinels 16 and 24 are always considered known.
func (t *ColorTable) Contains(id ColorID) bool {
	if id == ColorMain || id == ColorEdge {
		return true
	}
	_, ok := t.colors[id.Base()]
	return ok
}

// Lookup returns the color entry for id. For an edge-space id the face
// color of the returned entry is the base color's edge color. Unknown
// IDs resolve to black and ErrUnknownColor.
func (t *ColorTable) Lookup(id ColorID) (Color, error) {
	c, ok := t.colors[id.Base()]
	if !ok {
		return t.colors[ColorBlack], fmt.Errorf("%w: %d", ErrUnknownColor, id)
	}
	if id.IsEdge() {
		return Color{Name: c.Name + " Edge", Value: c.Edge, Edge: c.Edge, Alpha: c.Alpha}, nil
	}
	return c, nil
}

// FaceColor returns the RGB face color and alpha for id, falling back
// to black for unknown IDs.
func (t *ColorTable) FaceColor(id ColorID) (rgb uint32, alpha uint8) {
	c, _ := t.Lookup(id)
	return c.Value, c.Alpha
}

// EdgeColor returns the RGB edge color for id, falling back to black's
// edge color for unknown IDs.
func (t *ColorTable) EdgeColor(id ColorID) uint32 {
	c, _ := t.Lookup(id.Base())
	return c.Edge
}

// ParseColourDirective parses the payload of a "0 !COLOUR" line, i.e.
// the tokens following the "!COLOUR" keyword:
//
//	name CODE id VALUE #rrggbb EDGE #rrggbb [ALPHA a]
//
// and registers the resulting color in the table.
func (t *ColorTable) ParseColourDirective(tokens []string) error {
	if len(tokens) < 7 {
		return fmt.Errorf("%w: too few tokens", ErrInvalidColorValue)
	}
	c := Color{Name: tokens[0], Alpha: 255}
	var id ColorID = -1
	for i := 1; i < len(tokens)-1; i++ {
		switch strings.ToUpper(tokens[i]) {
		case "CODE":
			v, err := strconv.Atoi(tokens[i+1])
			if err != nil {
				return fmt.Errorf("%w: bad CODE %q", ErrInvalidColorValue, tokens[i+1])
			}
			id = ColorID(v)
		case "VALUE":
			v, err := parseHexColor(tokens[i+1])
			if err != nil {
				return err
			}
			c.Value = v
		case "EDGE":
			v, err := parseHexColor(tokens[i+1])
			if err != nil {
				return err
			}
			c.Edge = v
		case "ALPHA":
			v, err := strconv.Atoi(tokens[i+1])
			if err != nil || v < 0 || v > 255 {
				return fmt.Errorf("%w: bad ALPHA %q", ErrInvalidColorValue, tokens[i+1])
			}
			c.Alpha = uint8(v)
		}
	}
	if id < 0 {
		return fmt.Errorf("%w: missing CODE", ErrInvalidColorValue)
	}
	t.Add(id, c)
	return nil
}

// parseHexColor parses a "#rrggbb" or "0xrrggbb" token.
func parseHexColor(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidColorValue, s)
	}
	return uint32(v), nil
}

// standardColors holds the built-in color definitions. Files may extend
// the table with !COLOUR directives.
var standardColors = map[ColorID]Color{
	0:   {Name: "Black", Value: 0x05131D, Edge: 0x595959, Alpha: 255},
	1:   {Name: "Blue", Value: 0x0055BF, Edge: 0x333333, Alpha: 255},
	2:   {Name: "Green", Value: 0x237841, Edge: 0x333333, Alpha: 255},
	3:   {Name: "Dark Turquoise", Value: 0x008F9B, Edge: 0x333333, Alpha: 255},
	4:   {Name: "Red", Value: 0xC91A09, Edge: 0x333333, Alpha: 255},
	5:   {Name: "Dark Pink", Value: 0xC870A0, Edge: 0x333333, Alpha: 255},
	6:   {Name: "Brown", Value: 0x583927, Edge: 0x1E1E1E, Alpha: 255},
	7:   {Name: "Light Gray", Value: 0x9BA19D, Edge: 0x333333, Alpha: 255},
	8:   {Name: "Dark Gray", Value: 0x6D6E5C, Edge: 0x333333, Alpha: 255},
	9:   {Name: "Light Blue", Value: 0xB4D2E3, Edge: 0x333333, Alpha: 255},
	10:  {Name: "Bright Green", Value: 0x4B9F4A, Edge: 0x333333, Alpha: 255},
	11:  {Name: "Light Turquoise", Value: 0x55A5AF, Edge: 0x333333, Alpha: 255},
	12:  {Name: "Salmon", Value: 0xF2705E, Edge: 0x333333, Alpha: 255},
	13:  {Name: "Pink", Value: 0xFC97AC, Edge: 0x333333, Alpha: 255},
	14:  {Name: "Yellow", Value: 0xF2CD37, Edge: 0x333333, Alpha: 255},
	15:  {Name: "White", Value: 0xFFFFFF, Edge: 0x333333, Alpha: 255},
	17:  {Name: "Light Green", Value: 0xC2DAB8, Edge: 0x333333, Alpha: 255},
	18:  {Name: "Light Yellow", Value: 0xFBE696, Edge: 0x333333, Alpha: 255},
	19:  {Name: "Tan", Value: 0xE4CD9E, Edge: 0x333333, Alpha: 255},
	20:  {Name: "Light Violet", Value: 0xC9CAE2, Edge: 0x333333, Alpha: 255},
	22:  {Name: "Purple", Value: 0x81007B, Edge: 0x333333, Alpha: 255},
	25:  {Name: "Orange", Value: 0xFE8A18, Edge: 0x333333, Alpha: 255},
	26:  {Name: "Magenta", Value: 0x923978, Edge: 0x333333, Alpha: 255},
	27:  {Name: "Lime", Value: 0xBBE90B, Edge: 0x333333, Alpha: 255},
	28:  {Name: "Dark Tan", Value: 0x958A73, Edge: 0x333333, Alpha: 255},
	36:  {Name: "Trans Red", Value: 0xC91A09, Edge: 0x880000, Alpha: 128},
	43:  {Name: "Trans Light Blue", Value: 0xAEE9EF, Edge: 0x72B3B0, Alpha: 128},
	47:  {Name: "Trans Clear", Value: 0xFCFCFC, Edge: 0xC3C3C3, Alpha: 128},
	70:  {Name: "Reddish Brown", Value: 0x582A12, Edge: 0x595959, Alpha: 255},
	71:  {Name: "Light Bluish Gray", Value: 0xA0A5A9, Edge: 0x333333, Alpha: 255},
	72:  {Name: "Dark Bluish Gray", Value: 0x6C6E68, Edge: 0x333333, Alpha: 255},
	84:  {Name: "Medium Dark Flesh", Value: 0xCC702A, Edge: 0x333333, Alpha: 255},
	272: {Name: "Dark Blue", Value: 0x0A3463, Edge: 0x1E1E1E, Alpha: 255},
	288: {Name: "Dark Green", Value: 0x184632, Edge: 0x595959, Alpha: 255},
	308: {Name: "Dark Brown", Value: 0x352100, Edge: 0x595959, Alpha: 255},
	320: {Name: "Dark Red", Value: 0x720E0F, Edge: 0x333333, Alpha: 255},
}
