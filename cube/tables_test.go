package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegularityPositionsAreTheUnitNeighbourhood(t *testing.T) {
	seen := make(map[Offset]bool)
	for i, p := range RegularityPositions {
		assert.NotEqual(t, Offset{}, p, "position %d", i)
		for a := 0; a < 3; a++ {
			assert.True(t, p[a] >= -1 && p[a] <= 1, "position %d axis %d", i, a)
		}
		assert.False(t, seen[p], "position %d repeats %v", i, p)
		seen[p] = true
	}
	assert.Len(t, seen, 26)

	// Nodes come last and equal the octant vectors
	for n := 0; n < NumNodes; n++ {
		assert.Equal(t, OctantVector(n), RegularityPositions[NumFaces+NumEdges+n])
	}
}

func TestEdgeOffsets(t *testing.T) {
	tests := []struct {
		edge int
		off  Offset
	}{
		{0, Offset{0, -1, -1}},
		{3, Offset{0, 1, 1}},
		{4, Offset{-1, 0, -1}},
		{7, Offset{1, 0, 1}},
		{8, Offset{-1, -1, 0}},
		{11, Offset{1, 1, 0}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.off, EdgeOffset(tc.edge), "edge %d", tc.edge)
	}
	for e := 0; e < NumEdges; e++ {
		o := OppositeEdge(e)
		assert.Equal(t, EdgeOffset(e).Neg(), EdgeOffset(o))
		assert.Equal(t, e, OppositeEdge(o))
	}
}

func TestFaces(t *testing.T) {
	for f := 0; f < NumFaces; f++ {
		assert.Equal(t, FaceOffset(f).Neg(), FaceOffset(OppositeFace(f)))
	}
}

func TestTouches(t *testing.T) {
	// Children on the +x side of their parent
	var plusX []int
	for c := 0; c < 8; c++ {
		if Touches(c, FaceOffset(1)) {
			plusX = append(plusX, c)
		}
	}
	assert.Equal(t, []int{1, 3, 5, 7}, plusX)

	// Exactly one child touches each corner
	for n := 0; n < NumNodes; n++ {
		var hits []int
		for c := 0; c < 8; c++ {
			if Touches(c, OctantVector(n)) {
				hits = append(hits, c)
			}
		}
		assert.Equal(t, []int{n}, hits)
	}

	// Two children lie along each edge
	for e := 0; e < NumEdges; e++ {
		var hits []int
		for c := 0; c < 8; c++ {
			if Touches(c, EdgeOffset(e)) {
				hits = append(hits, c)
			}
		}
		nodes := EdgeNodes(e)
		assert.ElementsMatch(t, nodes[:], hits, "edge %d", e)
	}
}
