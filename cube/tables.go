package cube

// Offset is a displacement in cubes along x, y and z
type Offset [3]int32

// Neg returns the opposite direction
func (o Offset) Neg() Offset { return Offset{-o[0], -o[1], -o[2]} }

// Number of faces, edges and nodes of a hexahedral cube
const (
	NumFaces = 6
	NumEdges = 12
	NumNodes = 8
)

// OctantVector returns the corner direction of child or node c: -1 along an
// axis when the corresponding bit of c is clear and +1 when it is set.
func OctantVector(c int) Offset {
	var o Offset
	for a := 0; a < 3; a++ {
		if c&(1<<a) != 0 {
			o[a] = 1
		} else {
			o[a] = -1
		}
	}
	return o
}

var faceOffsets = [NumFaces]Offset{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// FaceOffset returns the direction of face f: -x, +x, -y, +y, -z, +z
func FaceOffset(f int) Offset { return faceOffsets[f] }

// OppositeFace returns the face on the other side of the cube
func OppositeFace(f int) int { return f ^ 1 }

// Edges 0..3 run along x, 4..7 along y and 8..11 along z
var edgeNodes = [NumEdges][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// EdgeNodes returns the two corner nodes of edge e
func EdgeNodes(e int) [2]int { return edgeNodes[e] }

// EdgeOffset returns the direction of the cube diagonally across edge e
func EdgeOffset(e int) Offset {
	a, b := OctantVector(edgeNodes[e][0]), OctantVector(edgeNodes[e][1])
	return Offset{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2, (a[2] + b[2]) / 2}
}

// OppositeEdge returns the edge of a neighbour across edge e that coincides with e
func OppositeEdge(e int) int {
	off := EdgeOffset(e).Neg()
	for o := 0; o < NumEdges; o++ {
		if EdgeOffset(o) == off {
			return o
		}
	}
	return -1
}

// OppositeNode returns the node of a corner neighbour that coincides with node n
func OppositeNode(n int) int { return 7 - n }

// RegularityPositions holds the 26 neighbour directions: faces 0..5,
// edges 6..17 and nodes 18..25.
var RegularityPositions = func() (p [26]Offset) {
	for f := 0; f < NumFaces; f++ {
		p[f] = FaceOffset(f)
	}
	for e := 0; e < NumEdges; e++ {
		p[NumFaces+e] = EdgeOffset(e)
	}
	for n := 0; n < NumNodes; n++ {
		p[NumFaces+NumEdges+n] = OctantVector(n)
	}
	return
}()

// Touches reports whether child lies on side d of its parent along every
// non-zero component of d. Zero components accept either half.
func Touches(child int, d Offset) bool {
	for a := 0; a < 3; a++ {
		bit := (child >> a) & 1
		switch d[a] {
		case -1:
			if bit != 0 {
				return false
			}
		case 1:
			if bit != 1 {
				return false
			}
		}
	}
	return true
}
