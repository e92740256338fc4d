package utils

import (
	"fmt"
)

// LeafConnector manages pick and place indices for leaves shared across
// partition boundaries. A leaf is picked by its owner for every other
// partition that owns one of its neighbours; the receiving partition places
// it in its halo.
type LeafConnector struct {
	NumPartitions int
	NumLeaves     int

	// Input connectivity
	LToP []int   // Leaf → partition, negative entries take no part
	LToL [][]int // Leaf → neighbour leaves, negative entries are ignored

	// Partition mappings
	LeavesPerPartition []int         // Owned leaves per partition
	GlobalToLocalLeaf  []map[int]int // [partition][globalLeaf] → localLeaf
	LocalToGlobalLeaf  [][]int       // [partition][localLeaf] → globalLeaf

	// Pick/Place indices per partition
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]

	// HaloToGlobalLeaf lists, per partition, the global leaf behind each halo slot
	HaloToGlobalLeaf [][]int
}

// PickBuffer contains local leaf indices to send
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer contains halo slots receiving the picked leaves, in pick order
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewLeafConnector creates a leaf connector from ownership and adjacency
func NewLeafConnector(numPartitions int, LToP []int, LToL [][]int) (*LeafConnector, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("invalid number of partitions: %d", numPartitions)
	}
	if len(LToL) != len(LToP) {
		return nil, fmt.Errorf("LToL length %d does not match LToP length %d", len(LToL), len(LToP))
	}
	for leaf, p := range LToP {
		if p >= numPartitions {
			return nil, fmt.Errorf("leaf %d assigned to partition %d, only %d partitions",
				leaf, p, numPartitions)
		}
	}
	for leaf, neis := range LToL {
		for _, nei := range neis {
			if nei >= len(LToP) {
				return nil, fmt.Errorf("leaf %d has neighbour %d, only %d leaves", leaf, nei, len(LToP))
			}
		}
	}

	lc := &LeafConnector{
		NumPartitions: numPartitions,
		NumLeaves:     len(LToP),
		LToP:          LToP,
		LToL:          LToL,
	}

	lc.buildPartitionMappings()
	lc.initializeBuffers()
	lc.BuildIndices()

	return lc, nil
}

// buildPartitionMappings creates bidirectional mappings between global and local leaf numbering
func (lc *LeafConnector) buildPartitionMappings() {
	lc.LeavesPerPartition = make([]int, lc.NumPartitions)
	for _, p := range lc.LToP {
		if p >= 0 {
			lc.LeavesPerPartition[p]++
		}
	}

	lc.GlobalToLocalLeaf = make([]map[int]int, lc.NumPartitions)
	lc.LocalToGlobalLeaf = make([][]int, lc.NumPartitions)
	for p := 0; p < lc.NumPartitions; p++ {
		lc.GlobalToLocalLeaf[p] = make(map[int]int)
		lc.LocalToGlobalLeaf[p] = make([]int, 0, lc.LeavesPerPartition[p])
	}

	for globalLeaf, p := range lc.LToP {
		if p < 0 {
			continue
		}
		lc.GlobalToLocalLeaf[p][globalLeaf] = len(lc.LocalToGlobalLeaf[p])
		lc.LocalToGlobalLeaf[p] = append(lc.LocalToGlobalLeaf[p], globalLeaf)
	}
}

// initializeBuffers creates empty pick and place buffer structures
func (lc *LeafConnector) initializeBuffers() {
	lc.PickIndices = make([][]PickBuffer, lc.NumPartitions)
	lc.PlaceIndices = make([][]PlaceBuffer, lc.NumPartitions)
	lc.HaloToGlobalLeaf = make([][]int, lc.NumPartitions)

	for p := 0; p < lc.NumPartitions; p++ {
		lc.PickIndices[p] = make([]PickBuffer, lc.NumPartitions)
		lc.PlaceIndices[p] = make([]PlaceBuffer, lc.NumPartitions)

		for q := 0; q < lc.NumPartitions; q++ {
			lc.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			lc.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// BuildIndices walks the owned leaves of every partition in local order and
// records each leaf once for every foreign partition among its neighbours
func (lc *LeafConnector) BuildIndices() {
	for p := 0; p < lc.NumPartitions; p++ {
		for localLeaf, globalLeaf := range lc.LocalToGlobalLeaf[p] {
			sent := make(map[int]bool)
			for _, nei := range lc.LToL[globalLeaf] {
				if nei < 0 {
					continue
				}
				q := lc.LToP[nei]
				if q < 0 || q == p || sent[q] {
					continue
				}
				sent[q] = true

				lc.PickIndices[p][q].Indices = append(lc.PickIndices[p][q].Indices, localLeaf)

				slot := len(lc.HaloToGlobalLeaf[q])
				lc.HaloToGlobalLeaf[q] = append(lc.HaloToGlobalLeaf[q], globalLeaf)
				lc.PlaceIndices[q][p].Indices = append(lc.PlaceIndices[q][p].Indices, slot)
			}
		}
	}
}

// GetPickIndices returns pick indices for sending from source to target partition
func (lc *LeafConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= lc.NumPartitions ||
		targetPartition < 0 || targetPartition >= lc.NumPartitions {
		return nil
	}
	return lc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (lc *LeafConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= lc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= lc.NumPartitions {
		return nil
	}
	return lc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// PickedGlobalLeaves returns the global leaves source sends to target
func (lc *LeafConnector) PickedGlobalLeaves(sourcePartition, targetPartition int) []int {
	picks := lc.GetPickIndices(sourcePartition, targetPartition)
	out := make([]int, len(picks))
	for i, local := range picks {
		out[i] = lc.LocalToGlobalLeaf[sourcePartition][local]
	}
	return out
}

// NeighbourPartitions returns the partitions p exchanges leaves with
func (lc *LeafConnector) NeighbourPartitions(p int) []int {
	var out []int
	for q := 0; q < lc.NumPartitions; q++ {
		if q != p && len(lc.PickIndices[p][q].Indices) > 0 {
			out = append(out, q)
		}
	}
	return out
}

// Verify checks index validity, correspondence and symmetry
func (lc *LeafConnector) Verify() error {
	// Verify 1: Local validity - all pick indices are within bounds
	for p := 0; p < lc.NumPartitions; p++ {
		for q := 0; q < lc.NumPartitions; q++ {
			for _, idx := range lc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= lc.LeavesPerPartition[p] {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, lc.LeavesPerPartition[p]-1)
				}
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length
	for p := 0; p < lc.NumPartitions; p++ {
		for q := 0; q < lc.NumPartitions; q++ {
			pickLen := len(lc.PickIndices[p][q].Indices)
			placeLen := len(lc.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
			for i, slot := range lc.PlaceIndices[q][p].Indices {
				global := lc.LocalToGlobalLeaf[p][lc.PickIndices[p][q].Indices[i]]
				if slot < 0 || slot >= len(lc.HaloToGlobalLeaf[q]) || lc.HaloToGlobalLeaf[q][slot] != global {
					return fmt.Errorf("place slot %d of partition %d does not hold leaf %d", slot, q, global)
				}
			}
		}
	}

	// Verify 3: Every picked leaf touches the partition it is sent to
	for p := 0; p < lc.NumPartitions; p++ {
		for q := 0; q < lc.NumPartitions; q++ {
			for _, global := range lc.PickedGlobalLeaves(p, q) {
				touches := false
				for _, nei := range lc.LToL[global] {
					if nei >= 0 && lc.LToP[nei] == q {
						touches = true
						break
					}
				}
				if !touches {
					return fmt.Errorf("leaf %d sent from %d to %d has no neighbour there", global, p, q)
				}
			}
		}
	}

	// Verify 4: Symmetry - exchange partners agree on each other
	for p := 0; p < lc.NumPartitions; p++ {
		for q := 0; q < lc.NumPartitions; q++ {
			if p == q {
				continue
			}
			sends := len(lc.PickIndices[p][q].Indices) > 0
			receives := len(lc.PickIndices[q][p].Indices) > 0
			if sends != receives {
				return fmt.Errorf("partition %d sends %v to %d but receives %v from it",
					p, sends, q, receives)
			}
		}
	}

	return nil
}
