package ldraw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/brickhub/ldmodel/pkg/math3"
)

// Packed geometry errors.
var (
	ErrInvalidPackMagic       = errors.New("invalid pack magic: expected 'LDPK'")
	ErrUnsupportedPackVersion = errors.New("unsupported pack version")
	ErrTruncatedPackData      = errors.New("truncated pack data")
)

const (
	packMagic   = "LDPK"
	packVersion = uint8(1)

	packFlagCull = 1 << 0
	packFlagCCW  = 1 << 1
)

// PackGeometry encodes a part type's finalized geometry as an opaque
// payload carrying identity and description, suitable for keyed storage
// and later short-circuit lookup. The geometry must be built first.
func PackGeometry(pt *PartType) ([]byte, error) {
	g := pt.Geometry()
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrGeometryNotBuilt, pt.ID)
	}

	var buf bytes.Buffer
	buf.WriteString(packMagic)
	buf.WriteByte(packVersion)
	writePackString(&buf, pt.ID)
	writePackString(&buf, pt.Description)

	var flags uint8
	if g.Cull {
		flags |= packFlagCull
	}
	if g.CCW {
		flags |= packFlagCCW
	}
	buf.WriteByte(flags)

	binary.Write(&buf, binary.LittleEndian, uint32(len(g.Lines)))
	for _, l := range g.Lines {
		binary.Write(&buf, binary.LittleEndian, int32(l.Color))
		writePackVecs(&buf, l.P1, l.P2)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(g.Triangles)))
	for _, t := range g.Triangles {
		binary.Write(&buf, binary.LittleEndian, int32(t.Color))
		writePackVecs(&buf, t.P1, t.P2, t.P3)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(g.Quads)))
	for _, q := range g.Quads {
		binary.Write(&buf, binary.LittleEndian, int32(q.Color))
		writePackVecs(&buf, q.P1, q.P2, q.P3, q.P4)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(g.CondLines)))
	for _, c := range g.CondLines {
		binary.Write(&buf, binary.LittleEndian, int32(c.Color))
		writePackVecs(&buf, c.P1, c.P2, c.C1, c.C2)
	}
	return buf.Bytes(), nil
}

// UnpackGeometry decodes a payload produced by PackGeometry.
func UnpackGeometry(data []byte) (id, description string, g *Geometry, err error) {
	if len(data) < len(packMagic)+1 {
		return "", "", nil, ErrTruncatedPackData
	}
	if string(data[:len(packMagic)]) != packMagic {
		return "", "", nil, ErrInvalidPackMagic
	}
	r := bytes.NewReader(data[len(packMagic):])

	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", "", nil, ErrTruncatedPackData
	}
	if version != packVersion {
		return "", "", nil, fmt.Errorf("%w: %d", ErrUnsupportedPackVersion, version)
	}
	if id, err = readPackString(r); err != nil {
		return "", "", nil, err
	}
	if description, err = readPackString(r); err != nil {
		return "", "", nil, err
	}
	var flags uint8
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return "", "", nil, ErrTruncatedPackData
	}
	g = &Geometry{
		Cull: flags&packFlagCull != 0,
		CCW:  flags&packFlagCCW != 0,
	}

	lineCount, err := readPackCount(r)
	if err != nil {
		return "", "", nil, err
	}
	for i := uint32(0); i < lineCount; i++ {
		var l Line
		var color int32
		if err := binary.Read(r, binary.LittleEndian, &color); err != nil {
			return "", "", nil, ErrTruncatedPackData
		}
		l.Color = ColorID(color)
		if err := readPackVecs(r, &l.P1, &l.P2); err != nil {
			return "", "", nil, err
		}
		g.Lines = append(g.Lines, l)
	}

	triCount, err := readPackCount(r)
	if err != nil {
		return "", "", nil, err
	}
	for i := uint32(0); i < triCount; i++ {
		var t Triangle
		var color int32
		if err := binary.Read(r, binary.LittleEndian, &color); err != nil {
			return "", "", nil, ErrTruncatedPackData
		}
		t.Color = ColorID(color)
		if err := readPackVecs(r, &t.P1, &t.P2, &t.P3); err != nil {
			return "", "", nil, err
		}
		g.Triangles = append(g.Triangles, t)
	}

	quadCount, err := readPackCount(r)
	if err != nil {
		return "", "", nil, err
	}
	for i := uint32(0); i < quadCount; i++ {
		var q Quad
		var color int32
		if err := binary.Read(r, binary.LittleEndian, &color); err != nil {
			return "", "", nil, ErrTruncatedPackData
		}
		q.Color = ColorID(color)
		if err := readPackVecs(r, &q.P1, &q.P2, &q.P3, &q.P4); err != nil {
			return "", "", nil, err
		}
		g.Quads = append(g.Quads, q)
	}

	condCount, err := readPackCount(r)
	if err != nil {
		return "", "", nil, err
	}
	for i := uint32(0); i < condCount; i++ {
		var c CondLine
		var color int32
		if err := binary.Read(r, binary.LittleEndian, &color); err != nil {
			return "", "", nil, ErrTruncatedPackData
		}
		c.Color = ColorID(color)
		if err := readPackVecs(r, &c.P1, &c.P2, &c.C1, &c.C2); err != nil {
			return "", "", nil, err
		}
		g.CondLines = append(g.CondLines, c)
	}
	return id, description, g, nil
}

func writePackString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readPackString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", ErrTruncatedPackData
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrTruncatedPackData
	}
	return string(b), nil
}

func readPackCount(r *bytes.Reader) (uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, ErrTruncatedPackData
	}
	return n, nil
}

func writePackVecs(buf *bytes.Buffer, vs ...math3.Vec3) {
	for _, v := range vs {
		binary.Write(buf, binary.LittleEndian, [3]float32{v.X, v.Y, v.Z})
	}
}

func readPackVecs(r *bytes.Reader, vs ...*math3.Vec3) error {
	for _, v := range vs {
		var p [3]float32
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return ErrTruncatedPackData
		}
		v.X, v.Y, v.Z = p[0], p[1], p[2]
	}
	return nil
}
