package octree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshoctree/cube"
)

func TestRefineSelectedBoxesCountsAndTypes(t *testing.T) {
	o := newListed(seedTriangle(t))
	n := o.RefineSelectedBoxes([]bool{true}, false)
	assert.Equal(t, 1, n)
	require.Equal(t, 8, o.NumberOfLeaves())
	for leafI := 0; leafI < 8; leafI++ {
		want := cube.Unknown
		if o.HasContainedTriangles(leafI) {
			want = cube.Data
		}
		assert.Equal(t, want, o.LeafType(leafI))
		assert.Equal(t, cube.Root.RefineForPosition(leafI), o.LeafCoordinates(leafI))
	}

	assert.Zero(t, o.RefineSelectedBoxes(make([]bool, 8), false))
	assert.Panics(t, func() { o.RefineSelectedBoxes(make([]bool, 3), false) })
}

func TestEnsureCorrectRegularity(t *testing.T) {
	o := threeLevelTree(t)

	// Marking a level 3 leaf next to coarser level 2 leaves forces those too
	refine := make([]bool, o.NumberOfLeaves())
	refine[o.FindLeafLabelForPosition(cube.New(1, 1, 1, 3))] = true
	assert.True(t, o.EnsureCorrectRegularity(refine))
	assert.True(t, refine[o.FindLeafLabelForPosition(cube.New(1, 0, 0, 2))])
	assert.True(t, refine[o.FindLeafLabelForPosition(cube.New(1, 1, 1, 2))])
	// and, transitively, the level 1 octants touching those
	assert.True(t, refine[o.FindLeafLabelForPosition(cube.New(1, 0, 0, 1))])
	assert.False(t, refine[o.FindLeafLabelForPosition(cube.New(0, 0, 0, 3))])

	assert.False(t, o.EnsureCorrectRegularity(refine))
}

func TestEnsureCorrectRegularitySons(t *testing.T) {
	o := threeLevelTree(t)
	refine := make([]bool, o.NumberOfLeaves())
	refine[o.FindLeafLabelForPosition(cube.New(0, 0, 0, 3))] = true
	assert.True(t, o.EnsureCorrectRegularitySons(refine))

	marked := 0
	for leafI, mark := range refine {
		if mark {
			marked++
			assert.Equal(t, cube.New(0, 0, 0, 2), o.LeafCoordinates(leafI).Parent())
		}
	}
	assert.Equal(t, 8, marked)
	assert.False(t, o.EnsureCorrectRegularitySons(refine))
}

func TestMarkAdditionalLayers(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 3)

	refine := make([]bool, o.NumberOfLeaves())
	refine[o.FindLeafLabelForPosition(cube.New(0, 0, 0, 3))] = true
	assert.Equal(t, 7, o.MarkAdditionalLayers(refine, 1))
	assert.Equal(t, 26-7, o.MarkAdditionalLayers(refine, 1))

	// Two layers in one call reach as far as two single layers
	again := make([]bool, o.NumberOfLeaves())
	again[o.FindLeafLabelForPosition(cube.New(0, 0, 0, 3))] = true
	assert.Equal(t, 26, o.MarkAdditionalLayers(again, 2))
	assert.Equal(t, refine, again)

	assert.Zero(t, o.MarkAdditionalLayers(make([]bool, o.NumberOfLeaves()), 3))
}

func TestMarkAdditionalLayersSkipsFinerLeaves(t *testing.T) {
	o := threeLevelTree(t)
	refine := make([]bool, o.NumberOfLeaves())
	refine[o.FindLeafLabelForPosition(cube.New(1, 0, 0, 1))] = true
	o.MarkAdditionalLayers(refine, 1)

	for leafI, mark := range refine {
		if o.LeafCoordinates(leafI).Level > 1 {
			assert.False(t, mark, o.LeafCoordinates(leafI))
		}
	}
	assert.True(t, refine[o.FindLeafLabelForPosition(cube.New(1, 1, 0, 1))])
}

func TestRefineTreeForCoordinates(t *testing.T) {
	o := newListed(nil)
	refineAll(o, 1)

	require.NoError(t, o.RefineTreeForCoordinates(cube.New(3, 3, 3, 2), cube.AllProcs, cube.Inside))
	o.CreateListOfLeaves()
	assert.Equal(t, 15, o.NumberOfLeaves())
	leafI := o.FindLeafLabelForPosition(cube.New(3, 3, 3, 2))
	require.GreaterOrEqual(t, leafI, 0)
	assert.Equal(t, cube.Inside, o.LeafType(leafI))

	assert.Error(t, o.RefineTreeForCoordinates(cube.New(4, 0, 0, 2), cube.AllProcs, cube.Unknown))
	// Owned leaves below the target keep it from collapsing
	assert.Error(t, o.RefineTreeForCoordinates(cube.New(1, 1, 1, 1), 5, cube.Unknown))
}

func TestRefineTreeForCoordinatesGrowsForeignBranch(t *testing.T) {
	o := newListed(nil)
	o.rebuild([]leafEntry{
		{coords: cube.New(0, 0, 0, 1), procNo: 0, cubeType: cube.Unknown},
		{coords: cube.New(1, 0, 0, 1), procNo: 1, cubeType: cube.Outside},
	})

	// A foreign leaf on the path only grows the branch towards the target
	require.NoError(t, o.RefineTreeForCoordinates(cube.New(3, 0, 0, 2), 1, cube.Data))
	o.CreateListOfLeaves()
	assert.Equal(t, 2, o.NumberOfLeaves())
	leafI := o.FindLeafLabelForPosition(cube.New(3, 0, 0, 2))
	require.GreaterOrEqual(t, leafI, 0)
	assert.Equal(t, 1, o.LeafProcNo(leafI))
	assert.False(t, o.IsOwned(leafI))
	assert.Equal(t, -1, o.FindLeafLabelForPosition(cube.New(1, 0, 0, 1)))

	// A foreign branch collapses back into one leaf
	require.NoError(t, o.RefineTreeForCoordinates(cube.New(1, 0, 0, 1), 1, cube.Outside))
	o.CreateListOfLeaves()
	assert.Equal(t, 2, o.NumberOfLeaves())
	assert.GreaterOrEqual(t, o.FindLeafLabelForPosition(cube.New(1, 0, 0, 1)), 0)
}
