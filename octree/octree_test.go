package octree

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/surface"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func unitBox() r3.Box {
	return r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// seedTriangle spans the middle of the unit cube without touching any
// level 3 cell boundary at its centroid
func seedTriangle(t *testing.T) *surface.Surface {
	s, err := surface.New([]r3.Vec{
		{X: 0.1, Y: 0.2, Z: 0.3},
		{X: 0.8, Y: 0.35, Z: 0.5},
		{X: 0.45, Y: 0.9, Z: 0.65},
	}, []surface.Triangle{{V: [3]int{0, 1, 2}}}, nil)
	require.NoError(t, err)
	return s
}

func newListed(surf *surface.Surface, opts ...Option) *Octree {
	o := New(surf, unitBox(), append([]Option{WithLogger(quietLogger())}, opts...)...)
	o.CreateListOfLeaves()
	return o
}

func refineAll(o *Octree, times int) {
	for i := 0; i < times; i++ {
		refine := make([]bool, o.NumberOfLeaves())
		for leafI := range refine {
			refine[leafI] = true
		}
		o.RefineSelectedBoxes(refine, false)
	}
}

// refineData refines the leaves holding triangles times times
func refineData(o *Octree, times int) {
	for i := 0; i < times; i++ {
		refine := make([]bool, o.NumberOfLeaves())
		for leafI := range refine {
			refine[leafI] = o.HasContainedTriangles(leafI)
		}
		o.RefineSelectedBoxes(refine, false)
	}
}

func TestLeafQueriesBeforeListing(t *testing.T) {
	o := New(nil, unitBox(), WithLogger(quietLogger()))

	assert.PanicsWithError(t, "octree: NumberOfLeaves: list of leaves is not built", func() {
		o.NumberOfLeaves()
	})
	assert.PanicsWithError(t, "octree: ReturnLeaf: list of leaves is not built", func() {
		o.ReturnLeaf(0)
	})

	o.CreateListOfLeaves()
	assert.Equal(t, 1, o.NumberOfLeaves())
	assert.Panics(t, func() { o.ReturnLeaf(1) })

	// Topology changes drop the list again
	require.NoError(t, o.RefineTreeForCoordinates(cube.New(1, 0, 0, 1), cube.AllProcs, cube.Unknown))
	assert.False(t, o.LeavesListed())

	var perr *PreconditionError
	func() {
		defer func() {
			err, ok := recover().(error)
			require.True(t, ok)
			require.True(t, errors.As(err, &perr))
		}()
		o.LeafCoordinates(0)
	}()
	assert.Equal(t, "LeafCoordinates", perr.Op)
}

func TestSeedTriangleScenario(t *testing.T) {
	surf := seedTriangle(t)
	o := newListed(surf)
	require.True(t, o.HasContainedTriangles(0))

	refineData(o, 3)
	require.Greater(t, o.NumberOfLeaves(), 1)

	centroid := surf.TriangleCentroid(0)
	leafI := o.FindLeafContainingVertex(centroid)
	require.GreaterOrEqual(t, leafI, 0)
	cc := o.LeafCoordinates(leafI)
	assert.Equal(t, uint8(3), cc.Level)
	assert.True(t, o.HasContainedTriangles(leafI))
	assert.Equal(t, cube.Data, o.LeafType(leafI))

	// Siblings hold the triangle exactly when it reaches their box
	parent := o.Cube(o.FindCubeForPosition(cc.Parent()))
	for _, sib := range parent.Children {
		v := o.Cube(sib)
		require.True(t, v.IsLeaf)
		box := v.Coordinates.BoundingBox(o.RootBox())
		assert.Equal(t, surf.TriangleIntersectsBox(0, box), o.HasContainedTriangles(v.LeafI), v.Coordinates)
	}

	for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
		if !o.HasContainedTriangles(leafI) {
			assert.False(t, surf.TriangleIntersectsBox(0, o.LeafBox(leafI)), leafI)
		}
	}
}

func TestContainedTrianglesRepeat(t *testing.T) {
	surf, err := surface.NewBoxSurface(r3.Box{
		Min: r3.Vec{X: 0.3, Y: 0.3, Z: 0.3},
		Max: r3.Vec{X: 0.7, Y: 0.7, Z: 0.7},
	})
	require.NoError(t, err)
	o := newListed(surf)
	refineData(o, 2)

	var first, second []int
	for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
		first = append(first[:0], o.ContainedTriangles(leafI, nil)...)
		second = o.ContainedTriangles(leafI, second)
		assert.Equal(t, first, second)
		assert.Equal(t, len(first) > 0, o.HasContainedTriangles(leafI))
	}
	assert.Empty(t, o.ContainedTriangles(0, []int{5, 6}))
}

func TestReduceMemoryConsumption(t *testing.T) {
	surf := seedTriangle(t)
	o := newListed(surf)
	refineData(o, 3)

	before := make([][]int, o.NumberOfLeaves())
	for leafI := range before {
		before[leafI] = o.ContainedTriangles(leafI, nil)
	}
	entries := o.triangles.NumberOfEntries()
	o.ReduceMemoryConsumption()

	assert.Less(t, o.triangles.NumberOfEntries(), entries)
	for leafI := range before {
		assert.Equal(t, before[leafI], o.ContainedTriangles(leafI, nil))
	}
}

func TestNewCubifiesRoot(t *testing.T) {
	o := New(nil, r3.Box{Max: r3.Vec{X: 2, Y: 1, Z: 1}}, WithLogger(quietLogger()))
	box := o.RootBox()
	assert.Equal(t, r3.Vec{X: 0, Y: -0.5, Z: -0.5}, box.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 1.5, Z: 1.5}, box.Max)
}

func TestCubeView(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 1)

	root := o.Cube(o.Root())
	assert.False(t, root.IsLeaf)
	assert.Equal(t, -1, root.LeafI)
	for c, id := range root.Children {
		v := o.Cube(id)
		assert.True(t, v.IsLeaf)
		assert.Equal(t, c, v.LeafI)
		assert.Equal(t, cube.Root.RefineForPosition(c), v.Coordinates)
	}
	assert.Panics(t, func() { o.Cube(NodeID(len(o.nodes))) })
}

func TestFindLeavesContainedInBox(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 2)

	box := r3.Box{Min: r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, Max: r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}}
	leaves := o.FindLeavesContainedInBox(box, nil)
	require.Len(t, leaves, 1)
	assert.Equal(t, cube.New(1, 1, 1, 2), o.LeafCoordinates(leaves[0]))

	// A box across the centre reaches the eight central leaves
	box = r3.Box{Min: r3.Vec{X: 0.45, Y: 0.45, Z: 0.45}, Max: r3.Vec{X: 0.55, Y: 0.55, Z: 0.55}}
	assert.Len(t, o.FindLeavesContainedInBox(box, leaves), 8)
}

func TestFindLeafContainingVertex(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 2)

	leafI := o.FindLeafContainingVertex(r3.Vec{X: 0.1, Y: 0.6, Z: 0.9})
	require.GreaterOrEqual(t, leafI, 0)
	assert.Equal(t, cube.New(0, 2, 3, 2), o.LeafCoordinates(leafI))

	// The upper faces of the root belong to the last cells
	leafI = o.FindLeafContainingVertex(r3.Vec{X: 1, Y: 1, Z: 1})
	require.GreaterOrEqual(t, leafI, 0)
	assert.Equal(t, cube.New(3, 3, 3, 2), o.LeafCoordinates(leafI))

	assert.Equal(t, -1, o.FindLeafContainingVertex(r3.Vec{X: 1.5}))
}

func TestWriteJSON(t *testing.T) {
	o := newListed(seedTriangle(t), WithRank(3))
	refineData(o, 1)

	var buf bytes.Buffer
	require.NoError(t, o.WriteJSON(&buf))

	var doc struct {
		Rank   int `json:"rank"`
		Leaves []struct {
			Index       int    `json:"index"`
			Coordinates [4]int `json:"coordinates"`
			Type        string `json:"type"`
			Owner       int    `json:"owner"`
			Triangles   []int  `json:"triangles"`
		} `json:"leaves"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 3, doc.Rank)
	require.Len(t, doc.Leaves, o.NumberOfLeaves())
	for leafI, l := range doc.Leaves {
		cc := o.LeafCoordinates(leafI)
		assert.Equal(t, leafI, l.Index)
		assert.Equal(t, [4]int{int(cc.I), int(cc.J), int(cc.K), int(cc.Level)}, l.Coordinates)
		assert.Equal(t, 3, l.Owner)
		assert.Equal(t, o.LeafType(leafI).String(), l.Type)
		assert.Equal(t, o.HasContainedTriangles(leafI), len(l.Triangles) > 0)
	}
}
