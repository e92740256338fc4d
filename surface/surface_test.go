package surface

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitBox() r3.Box {
	return r3.Box{Min: r3.Vec{}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
}

func singleTriangle(t *testing.T, a, b, c r3.Vec) *Surface {
	s, err := New([]r3.Vec{a, b, c}, []Triangle{{V: [3]int{0, 1, 2}}}, nil)
	require.NoError(t, err)
	return s
}

func TestNewValidates(t *testing.T) {
	pts := []r3.Vec{{}, {X: 1}, {Y: 1}}
	_, err := New(pts, []Triangle{{V: [3]int{0, 1, 3}}}, nil)
	assert.Error(t, err)
	_, err = New(pts, []Triangle{{V: [3]int{0, 1, 1}}}, nil)
	assert.Error(t, err)
	_, err = New(pts, []Triangle{{V: [3]int{0, 1, 2}, Patch: 2}}, []string{"a"})
	assert.Error(t, err)
	_, err = New(nil, nil, nil)
	assert.Error(t, err)
}

func TestBoxSurface(t *testing.T) {
	bb := r3.Box{Min: r3.Vec{X: -1, Y: -2, Z: -3}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}
	s, err := NewBoxSurface(bb)
	require.NoError(t, err)

	assert.Equal(t, 12, s.NumberOfTriangles())
	assert.Equal(t, bb, s.BoundingBox())
	// The twelve box edges separate patches, the face diagonals do not
	assert.Equal(t, 12, s.NumberOfEdges())
	for e := range s.Edges {
		assert.Len(t, s.EdgeTriangles[e], 2)
	}

	// Normals point away from the centre
	centre := bb.Center()
	for tr := range s.Triangles {
		out := r3.Sub(s.TriangleCentroid(tr), centre)
		assert.Greater(t, r3.Dot(out, s.TriangleNormal(tr)), 0.0, "triangle %d", tr)
	}
}

func TestFeatureAngle(t *testing.T) {
	// Two triangles folded by 90 degrees along the x axis
	pts := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	tris := []Triangle{{V: [3]int{0, 1, 2}}, {V: [3]int{1, 0, 3}}}

	s, err := New(pts, tris, nil)
	require.NoError(t, err)
	// Four open edges plus the fold
	assert.Equal(t, 5, s.NumberOfEdges())
	assert.Contains(t, s.Edges, [2]int{0, 1})

	s, err = New(pts, tris, nil, WithFeatureAngle(120))
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumberOfEdges())
	assert.NotContains(t, s.Edges, [2]int{0, 1})
}

func TestTriangleIntersectsBox(t *testing.T) {
	box := unitBox()
	tests := []struct {
		name string
		tri  [3]r3.Vec
		hit  bool
	}{
		{"vertex inside", [3]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 3}, {Y: 3}}, true},
		{"spans the box", [3]r3.Vec{{X: -5, Y: -5, Z: 0.5}, {X: 5, Y: -5, Z: 0.5}, {X: 0, Y: 5, Z: 0.5}}, true},
		{"far away", [3]r3.Vec{{X: 3, Y: 3, Z: 3}, {X: 4, Y: 3, Z: 3}, {X: 3, Y: 4, Z: 3}}, false},
		{"touches a face", [3]r3.Vec{{X: 1, Y: -1, Z: -1}, {X: 1, Y: 3, Z: -1}, {X: 1, Y: -1, Z: 3}}, true},
		// Bounding boxes overlap but the plane passes beyond the corner
		{"cuts past the corner", [3]r3.Vec{{X: 3.1, Y: 0, Z: 0}, {X: 0, Y: 3.1, Z: 0}, {X: 0, Y: 0, Z: 3.1}}, false},
		{"cuts the corner", [3]r3.Vec{{X: 2.5, Y: 0, Z: 0}, {X: 0, Y: 2.5, Z: 0}, {X: 0, Y: 0, Z: 2.5}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := singleTriangle(t, tc.tri[0], tc.tri[1], tc.tri[2])
			assert.Equal(t, tc.hit, s.TriangleIntersectsBox(0, box))
		})
	}
}

func TestSegmentIntersectsBox(t *testing.T) {
	box := unitBox()
	assert.True(t, SegmentIntersectsBox(r3.Vec{X: -1, Y: 0.5, Z: 0.5}, r3.Vec{X: 2, Y: 0.5, Z: 0.5}, box))
	assert.True(t, SegmentIntersectsBox(r3.Vec{X: 0.2, Y: 0.2, Z: 0.2}, r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, box))
	assert.False(t, SegmentIntersectsBox(r3.Vec{X: -1, Y: 2, Z: 0.5}, r3.Vec{X: 2, Y: 2, Z: 0.5}, box))
	// Stops short of the box
	assert.False(t, SegmentIntersectsBox(r3.Vec{X: -2, Y: 0.5, Z: 0.5}, r3.Vec{X: -0.5, Y: 0.5, Z: 0.5}, box))
	// Runs along a face
	assert.True(t, SegmentIntersectsBox(r3.Vec{X: -1, Y: 1, Z: 0.5}, r3.Vec{X: 2, Y: 1, Z: 0.5}, box))
}

func TestClosestPointOnTriangle(t *testing.T) {
	s := singleTriangle(t, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	tests := []struct {
		p, want r3.Vec
	}{
		{r3.Vec{X: 0.2, Y: 0.2, Z: 5}, r3.Vec{X: 0.2, Y: 0.2}},
		{r3.Vec{X: -1, Y: -1, Z: 0}, r3.Vec{}},
		{r3.Vec{X: 3, Y: -1, Z: 1}, r3.Vec{X: 1}},
		{r3.Vec{X: 0.5, Y: -2, Z: 0}, r3.Vec{X: 0.5}},
		{r3.Vec{X: 1, Y: 1, Z: 0}, r3.Vec{X: 0.5, Y: 0.5}},
		{r3.Vec{X: -3, Y: 0.25, Z: 0}, r3.Vec{Y: 0.25}},
	}
	for _, tc := range tests {
		got := s.ClosestPointOnTriangle(tc.p, 0)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(tc.want, got)), 1e-12, "p=%v got=%v", tc.p, got)
	}
}

func TestFromTetrahedra(t *testing.T) {
	// Two tets sharing the face (1,2,3)
	verts := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}
	tets := [][4]int{{0, 1, 2, 3}, {1, 2, 3, 4}}

	s, err := FromTetrahedra(verts, tets)
	require.NoError(t, err)
	assert.Equal(t, 6, s.NumberOfTriangles())
	assert.Len(t, s.Points, 5)

	centre := r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}
	for tr := range s.Triangles {
		out := r3.Sub(s.TriangleCentroid(tr), centre)
		assert.Greater(t, r3.Dot(out, s.TriangleNormal(tr)), 0.0, "triangle %d", tr)
	}

	_, err = FromTetrahedra(verts, [][4]int{{0, 1, 2, 9}})
	assert.Error(t, err)
}

func writeMesh(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.su2")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing mesh: %v", err)
	}
	return path
}

const twoTetPoints = `NDIME= 3
NPOIN= 8
0 0 0
1 0 0
0 1 0
0 0 1
1 1 1
0 0 -1
1 0 -1
0 1 -1
`

func TestFromMeshFile(t *testing.T) {
	// Two tets sharing the face (1,2,3) plus a boundary triangle marker
	path := writeMesh(t, twoTetPoints+`NELEM= 3
10 0 1 2 3
10 1 2 3 4
5 0 1 2
`)
	s, err := FromMeshFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, s.NumberOfTriangles())
	assert.Len(t, s.Points, 5)
	assert.Equal(t, []string{"boundary"}, s.PatchNames)
}

func TestFromMeshFileRejectsMixedMesh(t *testing.T) {
	// The prism shares the face (0,1,2) with the tet
	path := writeMesh(t, twoTetPoints+`NELEM= 2
10 0 1 2 3
13 5 6 7 0 1 2
`)
	_, err := FromMeshFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only tetrahedral meshes")

	_, err = FromMeshFile(filepath.Join(t.TempDir(), "missing.su2"))
	assert.Error(t, err)
}
