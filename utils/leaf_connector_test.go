package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridAdjacency connects the cells of an n×n grid to their 8 neighbours
func gridAdjacency(n int) [][]int {
	LToL := make([][]int, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			for dj := -1; dj <= 1; dj++ {
				for di := -1; di <= 1; di++ {
					if di == 0 && dj == 0 {
						continue
					}
					ii, jj := i+di, j+dj
					if ii < 0 || jj < 0 || ii >= n || jj >= n {
						continue
					}
					LToL[i+j*n] = append(LToL[i+j*n], ii+jj*n)
				}
			}
		}
	}
	return LToL
}

// quadrants assigns an n×n grid to four partitions
func quadrants(n int) []int {
	LToP := make([]int, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			p := 0
			if i >= n/2 {
				p |= 1
			}
			if j >= n/2 {
				p |= 2
			}
			LToP[i+j*n] = p
		}
	}
	return LToP
}

// simulateLeafExchange sends each owned leaf's global id through the pick
// and place buffers and returns the halo contents of every partition
func simulateLeafExchange(lc *LeafConnector) ([][]int, error) {
	halos := make([][]int, lc.NumPartitions)
	for p := range halos {
		halos[p] = make([]int, len(lc.HaloToGlobalLeaf[p]))
		for i := range halos[p] {
			halos[p][i] = -1
		}
	}

	// Phase 1: Pick
	pick := make([][][]int, lc.NumPartitions)
	for p := 0; p < lc.NumPartitions; p++ {
		pick[p] = make([][]int, lc.NumPartitions)
		for q := 0; q < lc.NumPartitions; q++ {
			for _, local := range lc.GetPickIndices(p, q) {
				pick[p][q] = append(pick[p][q], lc.LocalToGlobalLeaf[p][local])
			}
		}
	}

	// Phase 2: Place
	for q := 0; q < lc.NumPartitions; q++ {
		for p := 0; p < lc.NumPartitions; p++ {
			for i, slot := range lc.GetPlaceIndices(q, p) {
				if slot >= len(halos[q]) {
					return nil, fmt.Errorf("place index %d out of bounds for partition %d", slot, q)
				}
				halos[q][slot] = pick[p][q][i]
			}
		}
	}
	return halos, nil
}

func TestLeafConnector_SinglePartition(t *testing.T) {
	n := 4
	lc, err := NewLeafConnector(1, make([]int, n*n), gridAdjacency(n))
	require.NoError(t, err)
	require.NoError(t, lc.Verify())

	assert.Equal(t, n*n, lc.LeavesPerPartition[0])
	assert.Empty(t, lc.HaloToGlobalLeaf[0])
	assert.Empty(t, lc.NeighbourPartitions(0))
}

func TestLeafConnector_Quadrants(t *testing.T) {
	n := 4
	LToP := quadrants(n)
	LToL := gridAdjacency(n)

	lc, err := NewLeafConnector(4, LToP, LToL)
	require.NoError(t, err)
	if err = lc.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// Each quadrant borders the three others
	for p := 0; p < 4; p++ {
		assert.Len(t, lc.NeighbourPartitions(p), 3, "partition %d", p)
	}

	// Quadrant 0 owns cells (0..1, 0..1); its halo is the L-shaped ring
	// (2,0) (2,1) (0,2) (1,2) (2,2)
	assert.ElementsMatch(t, []int{2, 6, 8, 9, 10}, lc.HaloToGlobalLeaf[0])

	// Only the corner cell (1,1) touches the diagonal quadrant
	assert.Equal(t, []int{5}, lc.PickedGlobalLeaves(0, 3))

	halos, err := simulateLeafExchange(lc)
	require.NoError(t, err)
	for p := range halos {
		assert.Equal(t, lc.HaloToGlobalLeaf[p], halos[p], "partition %d", p)
		for _, g := range halos[p] {
			assert.NotEqual(t, p, LToP[g], "partition %d received its own leaf %d", p, g)
		}
	}
}

func TestLeafConnector_IgnoresMissingNeighbours(t *testing.T) {
	// Leaf 1 lists an absent neighbour and leaf 2 is not owned by anyone
	LToP := []int{0, 1, -1}
	LToL := [][]int{{1}, {0, -1}, {0}}
	lc, err := NewLeafConnector(2, LToP, LToL)
	require.NoError(t, err)
	require.NoError(t, lc.Verify())
	assert.Equal(t, []int{1}, lc.HaloToGlobalLeaf[0])
	assert.Equal(t, []int{0}, lc.HaloToGlobalLeaf[1])
}

func TestLeafConnector_InvalidInput(t *testing.T) {
	_, err := NewLeafConnector(0, nil, nil)
	assert.Error(t, err)
	_, err = NewLeafConnector(2, []int{0, 2}, [][]int{nil, nil})
	assert.Error(t, err)
	_, err = NewLeafConnector(2, []int{0, 1}, [][]int{{5}, nil})
	assert.Error(t, err)
	_, err = NewLeafConnector(2, []int{0, 1}, [][]int{nil})
	assert.Error(t, err)
}

func TestLeafConnector_VerifyDetectsAsymmetry(t *testing.T) {
	// One sided adjacency: 0 sees 1 but 1 does not see 0
	lc, err := NewLeafConnector(2, []int{0, 1}, [][]int{{1}, nil})
	require.NoError(t, err)
	assert.Error(t, lc.Verify())
}

func TestVRWGraph(t *testing.T) {
	g := NewVRWGraph()
	assert.Equal(t, 0, g.NumberOfRows())

	r0 := g.AppendRow([]int{3, 1, 4})
	r1 := g.AppendRow(nil)
	r2 := g.AppendRow([]int{1, 5})
	assert.Equal(t, []int{0, 1, 2}, []int{r0, r1, r2})
	assert.Equal(t, 3, g.NumberOfRows())
	assert.Equal(t, 5, g.NumberOfEntries())

	assert.Equal(t, []int{3, 1, 4}, g.Row(r0))
	assert.Equal(t, 0, g.SizeOfRow(r1))
	assert.True(t, g.Contains(r2, 5))
	assert.False(t, g.Contains(r2, 3))

	dst := []int{9, 9, 9, 9}
	dst = g.CopyRow(r2, dst)
	assert.Equal(t, []int{1, 5}, dst)

	// Appending to a returned row must not clobber the next row
	row := g.Row(r0)
	_ = append(row, 42)
	assert.Equal(t, []int{1, 5}, g.Row(r2))

	var zero VRWGraph
	assert.Equal(t, 0, zero.AppendRow([]int{7}))
	assert.Equal(t, []int{7}, zero.Row(0))
}
