package octree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/surface"
)

func innerBox() r3.Box {
	return r3.Box{Min: r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, Max: r3.Vec{X: 0.7, Y: 0.7, Z: 0.7}}
}

// closedBoxTree refines a unit root around a closed box surface to level 4
// and classifies the leaves
func closedBoxTree(t *testing.T) *Octree {
	surf, err := surface.NewBoxSurface(innerBox())
	require.NoError(t, err)
	o := newListed(surf)
	refineAll(o, 2)
	refineData(o, 2)
	o.ClassifyLeaves()
	return o
}

func TestClassifyClosedBox(t *testing.T) {
	o := closedBoxTree(t)

	centre := o.FindLeafContainingVertex(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
	assert.Equal(t, cube.Inside, o.LeafType(centre))
	corner := o.FindLeafContainingVertex(r3.Vec{X: 0.05, Y: 0.05, Z: 0.05})
	assert.Equal(t, cube.Outside, o.LeafType(corner))

	for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
		typ := o.LeafType(leafI)
		assert.Equal(t, o.HasContainedTriangles(leafI), typ == cube.Data, leafI)
		assert.NotEqual(t, cube.Unknown, typ)
	}

	assert.Equal(t, 1, o.CountRegions(cube.Inside))
	assert.Equal(t, 1, o.CountRegions(cube.Outside))
	assert.Equal(t, 1, o.CountRegions(cube.Inside|cube.Data))
	assert.NoError(t, o.CheckGluedRegions())
}

func TestCheckGluedRegionsDetectsContact(t *testing.T) {
	o := closedBoxTree(t)

	// Open a hole in the data shell
	var nei []int
	for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
		if o.LeafType(leafI) != cube.Data {
			continue
		}
		nei = o.FindNeighboursForLeaf(o.LeafCoordinates(leafI), nei)
		hasInside, hasOutside := false, false
		for _, n := range nei {
			hasInside = hasInside || o.LeafType(n) == cube.Inside
			hasOutside = hasOutside || o.LeafType(n) == cube.Outside
		}
		if hasInside && hasOutside {
			o.SetLeafType(leafI, cube.Outside)
			break
		}
	}
	assert.Error(t, o.CheckGluedRegions())
}

func TestClassifyWithoutSurface(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 1)
	o.ClassifyLeaves()
	for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
		assert.Equal(t, cube.Outside, o.LeafType(leafI))
	}
	assert.Zero(t, o.CountRegions(cube.Inside))
}

func TestLeafGraph(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 1)

	g := o.LeafGraph()
	assert.Equal(t, 8, g.Nodes().Len())
	// Each octant shares a face with three others
	assert.Equal(t, 12, g.Edges().Len())
	assert.True(t, g.HasEdgeBetween(0, 1))
	assert.False(t, g.HasEdgeBetween(0, 7))
}

func TestFindNearestSurfacePoint(t *testing.T) {
	o := closedBoxTree(t)

	p, d2, tri, ok := o.FindNearestSurfacePoint(r3.Vec{X: 0.35, Y: 0.5, Z: 0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.0025, d2, 1e-12)
	assert.InDelta(t, 0.3, p.X, 1e-12)
	assert.Equal(t, 0, o.Surface().Triangles[tri].Patch)

	// From far outside the surface the search widens until it finds the box
	p, d2, _, ok = o.FindNearestSurfacePoint(r3.Vec{X: 0.02, Y: 0.5, Z: 0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.28*0.28, d2, 1e-12)
	assert.InDelta(t, 0.3, p.X, 1e-12)

	// Near a corner of the box the distance is to the corner point
	_, d2, _, ok = o.FindNearestSurfacePoint(r3.Vec{X: 0.75, Y: 0.75, Z: 0.75})
	require.True(t, ok)
	assert.InDelta(t, 3*0.05*0.05, d2, 1e-12)

	_, _, _, ok = newListed(nil).FindNearestSurfacePoint(r3.Vec{})
	assert.False(t, ok)
}
