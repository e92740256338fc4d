package partitions

import (
	"fmt"
)

// Partition represents the octree leaves owned by one rank
type Partition struct {
	// Unique identifier for this partition, equal to the owning rank
	ID int

	// Leaf membership
	Leaves    []int // Global leaf indices in this partition
	NumLeaves int   // Actual number of leaves
	MaxLeaves int   // Size of the largest partition in the layout

	// Load
	Weight int // Sum of leaf weights
}

// PartitionLayout manages the complete leaf decomposition
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumLeaves) across all partitions
	TotalLeaves   int // Sum of all leaves across partitions
	NumPartitions int // Total number of partitions

	// Leaf to partition mapping
	LToP []int // Length TotalLeaves: leaf k belongs to partition LToP[k]
}

// GetPartition returns the partition owning leaf k
func (pl *PartitionLayout) GetPartition(leafID int) int {
	if leafID < 0 || leafID >= len(pl.LToP) {
		return -1
	}
	return pl.LToP[leafID]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("layout has %d partitions, expected %d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.LToP) != pl.TotalLeaves {
		return fmt.Errorf("LToP length %d != TotalLeaves %d", len(pl.LToP), pl.TotalLeaves)
	}

	// Verify KpartMax
	actualMax := 0
	total := 0
	for _, p := range pl.Partitions {
		if p.NumLeaves != len(p.Leaves) {
			return fmt.Errorf("partition %d: NumLeaves %d != len(Leaves) %d",
				p.ID, p.NumLeaves, len(p.Leaves))
		}
		if p.NumLeaves > actualMax {
			actualMax = p.NumLeaves
		}
		if p.MaxLeaves != pl.KpartMax {
			return fmt.Errorf("partition %d: MaxLeaves %d != KpartMax %d",
				p.ID, p.MaxLeaves, pl.KpartMax)
		}
		for _, leaf := range p.Leaves {
			if pl.GetPartition(leaf) != p.ID {
				return fmt.Errorf("partition %d lists leaf %d owned by %d",
					p.ID, leaf, pl.GetPartition(leaf))
			}
		}
		total += p.NumLeaves
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	// Every leaf is listed exactly once
	if total != pl.TotalLeaves {
		return fmt.Errorf("partitions hold %d leaves, layout has %d", total, pl.TotalLeaves)
	}
	return nil
}

// PartitionLeaves returns the leaves owned by partition p
func (pl *PartitionLayout) PartitionLeaves(p int) []int {
	if p < 0 || p >= len(pl.Partitions) {
		return nil
	}
	return pl.Partitions[p].Leaves
}
