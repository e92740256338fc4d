package surface

import (
	"sort"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"github.com/notargets/gocfd/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tetrahedron faces as local vertex triples
var tetFaces = [4][3]int{
	{0, 1, 2},
	{0, 1, 3},
	{1, 2, 3},
	{0, 2, 3},
}

// FromMeshFile reads a tetrahedral volume mesh and returns its boundary,
// the faces used by exactly one tetrahedron, oriented outwards. Meshes with
// other volume element types are rejected.
func FromMeshFile(path string, opts ...Option) (*Surface, error) {
	m, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading mesh %s", path)
	}

	verts := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		verts[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}

	if len(m.ElementTypes) != len(m.EtoV) {
		return nil, errors.Errorf("mesh %s: %d elements but %d element types",
			path, len(m.EtoV), len(m.ElementTypes))
	}
	tets := make([][4]int, 0, len(m.EtoV))
	for k, ev := range m.EtoV {
		typ := m.ElementTypes[k]
		// Lower dimensional elements are boundary markers
		if typ.GetDimension() < 3 {
			continue
		}
		// A tet face shared with another volume element would read as boundary.
		// Second order tets list their corners first.
		if typ != utils.Tet && typ != utils.Tet10 {
			return nil, errors.Errorf("mesh %s: element %d is a %s, only tetrahedral meshes are supported",
				path, k, typ)
		}
		tets = append(tets, [4]int{ev[0], ev[1], ev[2], ev[3]})
	}
	if len(tets) == 0 {
		return nil, errors.Errorf("mesh file %s does not have any tets", path)
	}
	return FromTetrahedra(verts, tets, opts...)
}

// FromTetrahedra extracts the boundary of a tetrahedral mesh
func FromTetrahedra(verts []r3.Vec, tets [][4]int, opts ...Option) (*Surface, error) {
	type faceUse struct {
		tri   [3]int
		count int
	}
	faces := make(map[[3]int]*faceUse)
	order := make([][3]int, 0)

	for k, tet := range tets {
		for _, f := range tetFaces {
			tri := [3]int{tet[f[0]], tet[f[1]], tet[f[2]]}
			for _, v := range tri {
				if v < 0 || v >= len(verts) {
					return nil, errors.Errorf("tet %d references vertex %d, mesh has %d vertices",
						k, v, len(verts))
				}
			}
			// The fourth vertex decides which way is out
			opposite := tet[0] + tet[1] + tet[2] + tet[3] - tri[0] - tri[1] - tri[2]
			a, b, c := verts[tri[0]], verts[tri[1]], verts[tri[2]]
			n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
			if r3.Dot(n, r3.Sub(verts[opposite], a)) > 0 {
				tri[1], tri[2] = tri[2], tri[1]
			}

			key := tri
			sort.Ints(key[:])
			if fu, ok := faces[key]; ok {
				fu.count++
				continue
			}
			faces[key] = &faceUse{tri: tri, count: 1}
			order = append(order, key)
		}
	}

	// Renumber the points used by boundary faces
	pointMap := make(map[int]int)
	var points []r3.Vec
	var triangles []Triangle
	for _, key := range order {
		fu := faces[key]
		if fu.count != 1 {
			continue
		}
		var t Triangle
		for i, v := range fu.tri {
			nv, ok := pointMap[v]
			if !ok {
				nv = len(points)
				pointMap[v] = nv
				points = append(points, verts[v])
			}
			t.V[i] = nv
		}
		triangles = append(triangles, t)
	}
	if len(triangles) == 0 {
		return nil, errors.New("tetrahedral mesh has no boundary faces")
	}
	return New(points, triangles, []string{"boundary"}, opts...)
}

// NewBoxSurface triangulates the six faces of a box, one patch per face,
// normals pointing outwards
func NewBoxSurface(bb r3.Box) (*Surface, error) {
	var points []r3.Vec
	for n := 0; n < 8; n++ {
		p := bb.Min
		if n&1 != 0 {
			p.X = bb.Max.X
		}
		if n&2 != 0 {
			p.Y = bb.Max.Y
		}
		if n&4 != 0 {
			p.Z = bb.Max.Z
		}
		points = append(points, p)
	}
	// Quads in node numbering, counter clockwise seen from outside
	quads := [6][4]int{
		{0, 4, 6, 2}, // -x
		{1, 3, 7, 5}, // +x
		{0, 1, 5, 4}, // -y
		{2, 6, 7, 3}, // +y
		{0, 2, 3, 1}, // -z
		{4, 5, 7, 6}, // +z
	}
	names := []string{"xMin", "xMax", "yMin", "yMax", "zMin", "zMax"}
	var triangles []Triangle
	for f, q := range quads {
		triangles = append(triangles,
			Triangle{V: [3]int{q[0], q[1], q[2]}, Patch: f},
			Triangle{V: [3]int{q[0], q[2], q[3]}, Patch: f},
		)
	}
	return New(points, triangles, names)
}
