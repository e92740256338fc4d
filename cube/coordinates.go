package cube

import (
	"fmt"

	"github.com/notargets/meshoctree/stream"
	"gonum.org/v1/gonum/spatial/r3"
)

// MaxLevel is the deepest refinement level a coordinate can address. Morton
// keys interleave 21 bits per axis, which leaves room for one level of
// neighbour arithmetic above MaxLevel.
const MaxLevel = 20

// Coordinates addresses a cube at a refinement level. Level 0 is the root
// box and every level halves the cube size along each axis.
type Coordinates struct {
	I, J, K int32
	Level   uint8
}

// New returns the coordinates (i, j, k) at level
func New(i, j, k int32, level uint8) Coordinates {
	return Coordinates{I: i, J: j, K: k, Level: level}
}

// Root is the level 0 cube
var Root = Coordinates{}

// Valid reports whether the coordinates lie inside the root box
func (c Coordinates) Valid() bool {
	if c.Level > MaxLevel {
		return false
	}
	n := int32(1) << c.Level
	return c.I >= 0 && c.I < n && c.J >= 0 && c.J < n && c.K >= 0 && c.K < n
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%d %d %d %d)", c.I, c.J, c.K, c.Level)
}

// cellSize returns the edge lengths of a cube at level l
func cellSize(root r3.Box, l uint8) r3.Vec {
	n := float64(int64(1) << l)
	s := root.Size()
	return r3.Vec{X: s.X / n, Y: s.Y / n, Z: s.Z / n}
}

// BoundingBox maps the cube into the root box. Cubes sharing a face produce
// bit-identical face coordinates at any level.
func (c Coordinates) BoundingBox(root r3.Box) r3.Box {
	h := cellSize(root, c.Level)
	return r3.Box{
		Min: r3.Vec{
			X: root.Min.X + float64(c.I)*h.X,
			Y: root.Min.Y + float64(c.J)*h.Y,
			Z: root.Min.Z + float64(c.K)*h.Z,
		},
		Max: r3.Vec{
			X: root.Min.X + float64(c.I+1)*h.X,
			Y: root.Min.Y + float64(c.J+1)*h.Y,
			Z: root.Min.Z + float64(c.K+1)*h.Z,
		},
	}
}

// Centre returns the midpoint of the cube
func (c Coordinates) Centre(root r3.Box) r3.Vec {
	return c.BoundingBox(root).Center()
}

// Size returns the edge length of the cube along x
func (c Coordinates) Size(root r3.Box) float64 {
	return cellSize(root, c.Level).X
}

// Vertices returns the cube corners in node order: node n sits at the
// maximum along x when bit 0 is set, y for bit 1 and z for bit 2.
func (c Coordinates) Vertices(root r3.Box) (v [8]r3.Vec) {
	bb := c.BoundingBox(root)
	for n := range v {
		v[n] = bb.Min
		if n&1 != 0 {
			v[n].X = bb.Max.X
		}
		if n&2 != 0 {
			v[n].Y = bb.Max.Y
		}
		if n&4 != 0 {
			v[n].Z = bb.Max.Z
		}
	}
	return
}

// RefineForPosition returns child c. The child occupies the octant given
// by OctantVector(c).
func (c Coordinates) RefineForPosition(child int) Coordinates {
	return Coordinates{
		I:     2*c.I + int32(child&1),
		J:     2*c.J + int32((child>>1)&1),
		K:     2*c.K + int32((child>>2)&1),
		Level: c.Level + 1,
	}
}

// Refine returns the eight children at Level+1
func (c Coordinates) Refine() (children [8]Coordinates) {
	for i := range children {
		children[i] = c.RefineForPosition(i)
	}
	return
}

// ReduceToLevel returns the ancestor at level l. Levels deeper than c are
// returned unchanged.
func (c Coordinates) ReduceToLevel(l uint8) Coordinates {
	if l >= c.Level {
		return c
	}
	shift := c.Level - l
	return Coordinates{I: c.I >> shift, J: c.J >> shift, K: c.K >> shift, Level: l}
}

// Parent returns the cube one level up. The root is its own parent.
func (c Coordinates) Parent() Coordinates {
	if c.Level == 0 {
		return c
	}
	return c.ReduceToLevel(c.Level - 1)
}

// PositionInParent returns the child index of c within its parent
func (c Coordinates) PositionInParent() int {
	return int(c.I&1) | int(c.J&1)<<1 | int(c.K&1)<<2
}

// Shift returns the cube displaced by d at the same level
func (c Coordinates) Shift(d Offset) Coordinates {
	return Coordinates{I: c.I + d[0], J: c.J + d[1], K: c.K + d[2], Level: c.Level}
}

// Compare orders coordinates lexicographically on (Level, K, J, I)
func (c Coordinates) Compare(o Coordinates) int {
	switch {
	case c.Level != o.Level:
		return cmpInt(int32(c.Level), int32(o.Level))
	case c.K != o.K:
		return cmpInt(c.K, o.K)
	case c.J != o.J:
		return cmpInt(c.J, o.J)
	default:
		return cmpInt(c.I, o.I)
	}
}

func cmpInt(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Less is Compare(o) < 0
func (c Coordinates) Less(o Coordinates) bool { return c.Compare(o) < 0 }

// Contains reports whether o lies inside c (o at the same or a deeper level)
func (c Coordinates) Contains(o Coordinates) bool {
	return o.Level >= c.Level && o.ReduceToLevel(c.Level) == c
}

// WriteTokens writes (I J K Level)
func (c Coordinates) WriteTokens(w *stream.Writer) {
	w.Begin()
	w.Label(int64(c.I))
	w.Space()
	w.Label(int64(c.J))
	w.Space()
	w.Label(int64(c.K))
	w.Space()
	w.Label(int64(c.Level))
	w.End()
}

// ReadCoordinates reads the form written by WriteTokens
func ReadCoordinates(r *stream.Reader) (c Coordinates, err error) {
	const name = "meshOctreeCubeCoordinates"
	if err = r.ReadBegin(name); err != nil {
		return
	}
	var v [4]int64
	for n := range v {
		if v[n], err = r.ReadLabel(name); err != nil {
			return
		}
	}
	if v[3] < 0 || v[3] > MaxLevel+1 {
		return c, &stream.ParseError{Record: name, Expected: "level", Found: fmt.Sprint(v[3])}
	}
	// Neighbour arithmetic reaches one cube past either side of the root
	limit := int64(1) << v[3]
	for _, x := range v[:3] {
		if x < -1 || x > limit {
			return c, &stream.ParseError{Record: name, Expected: fmt.Sprintf("coordinate in [-1, %d]", limit), Found: fmt.Sprint(x)}
		}
	}
	c = Coordinates{I: int32(v[0]), J: int32(v[1]), K: int32(v[2]), Level: uint8(v[3])}
	err = r.ReadEnd(name)
	return
}
