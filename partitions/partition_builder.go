package partitions

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// PartitionBuilder distributes octree leaves over ranks
type PartitionBuilder struct {
	// Leaf connectivity
	Leaves *LeafConnectivity

	// Partitioning parameters
	NumPartitions       int     // Number of ranks; derived from TargetPartitionSize when zero
	TargetPartitionSize int     // Desired leaves per partition
	MaxImbalance        float64 // Acceptable weight imbalance, unchecked when zero
	Strategy            PartitionStrategy
}

// LeafConnectivity provides what the strategies need to know about the leaves
type LeafConnectivity struct {
	NumLeaves int
	Weights   []int    // Cost of each leaf, unit weights when nil
	Keys      []uint64 // Morton key of each leaf, needed by SpaceFillingCurve
	LToL      [][]int  // Leaf-to-leaf adjacency, needed by GraphPartition
}

// PartitionStrategy defines how leaves are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive leaves
	RoundRobin                              // Distribute cyclically

	// Locality preserving strategies
	GraphPartition    // Greedy region growing over leaf adjacency
	SpaceFillingCurve // Morton curve ordering
)

var strategyNames = map[PartitionStrategy]string{
	BlockPartition:    "block",
	RoundRobin:        "roundrobin",
	GraphPartition:    "graph",
	SpaceFillingCurve: "sfc",
}

func (s PartitionStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// ParseStrategy maps a configuration name to a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout from leaf connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.Leaves == nil {
		return nil, fmt.Errorf("no leaf connectivity")
	}
	if err := pb.checkInputs(); err != nil {
		return nil, err
	}

	// Determine number of partitions needed
	numPartitions := pb.calculateNumPartitions()

	// Partition the leaves
	lToP := pb.partitionLeaves(numPartitions)

	// Create partition structures
	partitions := pb.createPartitions(lToP, numPartitions)

	kpartMax := pb.calculateKpartMax(partitions)
	for i := range partitions {
		partitions[i].MaxLeaves = kpartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      kpartMax,
		TotalLeaves:   pb.Leaves.NumLeaves,
		NumPartitions: numPartitions,
		LToP:          lToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	if pb.MaxImbalance > 0 && pb.Leaves.NumLeaves >= numPartitions {
		stats := layout.PartitionStatistics()
		if stats.WeightImbalance > pb.MaxImbalance {
			return nil, fmt.Errorf("%s partitioning imbalance %.3f exceeds %.3f",
				pb.Strategy, stats.WeightImbalance, pb.MaxImbalance)
		}
	}

	return layout, nil
}

func (pb *PartitionBuilder) checkInputs() error {
	lc := pb.Leaves
	if lc.Weights != nil && len(lc.Weights) != lc.NumLeaves {
		return fmt.Errorf("weights length %d does not match %d leaves", len(lc.Weights), lc.NumLeaves)
	}
	for i, w := range lc.Weights {
		if w < 0 {
			return fmt.Errorf("leaf %d has negative weight %d", i, w)
		}
	}
	if pb.Strategy == SpaceFillingCurve && len(lc.Keys) != lc.NumLeaves {
		return fmt.Errorf("space filling curve needs %d keys, got %d", lc.NumLeaves, len(lc.Keys))
	}
	if pb.Strategy == GraphPartition && len(lc.LToL) != lc.NumLeaves {
		return fmt.Errorf("graph partitioning needs adjacency for %d leaves, got %d", lc.NumLeaves, len(lc.LToL))
	}
	if pb.NumPartitions <= 0 && pb.TargetPartitionSize <= 0 {
		return fmt.Errorf("either NumPartitions or TargetPartitionSize must be positive")
	}
	return nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	if pb.NumPartitions > 0 {
		return pb.NumPartitions
	}
	numPartitions := int(math.Ceil(float64(pb.Leaves.NumLeaves) / float64(pb.TargetPartitionSize)))

	// Ensure at least one partition
	if numPartitions < 1 {
		numPartitions = 1
	}

	return numPartitions
}

func (pb *PartitionBuilder) weight(leaf int) int {
	if pb.Leaves.Weights == nil {
		return 1
	}
	return pb.Leaves.Weights[leaf]
}

// partitionLeaves assigns leaves to partitions
func (pb *PartitionBuilder) partitionLeaves(numPartitions int) []int {
	n := pb.Leaves.NumLeaves
	lToP := make([]int, n)

	switch pb.Strategy {
	case BlockPartition:
		leavesPerPartition := int(math.Ceil(float64(n) / float64(numPartitions)))
		if leavesPerPartition < 1 {
			leavesPerPartition = 1
		}
		for i := 0; i < n; i++ {
			lToP[i] = i / leavesPerPartition
			if lToP[i] >= numPartitions {
				lToP[i] = numPartitions - 1
			}
		}

	case RoundRobin:
		for i := 0; i < n; i++ {
			lToP[i] = i % numPartitions
		}

	case SpaceFillingCurve:
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		keys := pb.Leaves.Keys
		sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })
		pb.splitWeighted(order, numPartitions, lToP)

	case GraphPartition:
		pb.growRegions(numPartitions, lToP)

	default:
		return pb.partitionWithStrategy(BlockPartition, numPartitions)
	}

	return lToP
}

// partitionWithStrategy applies a different strategy
func (pb *PartitionBuilder) partitionWithStrategy(strategy PartitionStrategy, numPartitions int) []int {
	oldStrategy := pb.Strategy
	pb.Strategy = strategy
	result := pb.partitionLeaves(numPartitions)
	pb.Strategy = oldStrategy
	return result
}

// splitWeighted cuts the ordered leaves into contiguous ranges of equal
// weight. A leaf goes to the range holding the midpoint of its weight.
func (pb *PartitionBuilder) splitWeighted(order []int, numPartitions int, lToP []int) {
	total := 0
	for _, leaf := range order {
		total += pb.weight(leaf)
	}
	if total == 0 {
		// All weights zero, fall back to counts
		for pos, leaf := range order {
			lToP[leaf] = pos * numPartitions / len(order)
		}
		return
	}

	before := 0
	for _, leaf := range order {
		w := pb.weight(leaf)
		mid := 2*before + w // twice the weight midpoint, avoids fractions
		p := mid * numPartitions / (2 * total)
		if p >= numPartitions {
			p = numPartitions - 1
		}
		lToP[leaf] = p
		before += w
	}
}

// growRegions fills partitions one at a time by breadth first search from
// the lowest unassigned leaf until each reaches its share of the weight
func (pb *PartitionBuilder) growRegions(numPartitions int, lToP []int) {
	n := pb.Leaves.NumLeaves
	for i := range lToP {
		lToP[i] = -1
	}
	remaining := 0
	for i := 0; i < n; i++ {
		remaining += pb.weight(i)
	}

	nextSeed := 0
	for p := 0; p < numPartitions; p++ {
		// Last partition takes what is left
		if p == numPartitions-1 {
			for i := range lToP {
				if lToP[i] < 0 {
					lToP[i] = p
				}
			}
			return
		}

		target := int(math.Ceil(float64(remaining) / float64(numPartitions-p)))
		got := 0
		var queue []int
		for got < target || (target == 0 && got == 0) {
			if len(queue) == 0 {
				for nextSeed < n && lToP[nextSeed] >= 0 {
					nextSeed++
				}
				if nextSeed >= n {
					break
				}
				lToP[nextSeed] = p
				got += pb.weight(nextSeed)
				queue = append(queue, nextSeed)
				continue
			}
			leaf := queue[0]
			queue = queue[1:]
			for _, nei := range pb.Leaves.LToL[leaf] {
				if nei < 0 || nei >= n || lToP[nei] >= 0 || got >= target {
					continue
				}
				lToP[nei] = p
				got += pb.weight(nei)
				queue = append(queue, nei)
			}
		}
		remaining -= got
	}
}

// createPartitions builds partition structures from leaf assignments
func (pb *PartitionBuilder) createPartitions(lToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	for i := range partitions {
		partitions[i] = Partition{
			ID:     i,
			Leaves: make([]int, 0),
		}
	}

	for leaf, part := range lToP {
		partitions[part].Leaves = append(partitions[part].Leaves, leaf)
		partitions[part].NumLeaves++
		partitions[part].Weight += pb.weight(leaf)
	}

	return partitions
}

// calculateKpartMax finds maximum leaves across all partitions
func (pb *PartitionBuilder) calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumLeaves > kpartMax {
			kpartMax = p.NumLeaves
		}
	}
	return kpartMax
}

// PartitionStatistics computes load balance metrics
func (layout *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: layout.NumPartitions,
		MinLeaves:     math.MaxInt32,
		MaxLeaves:     0,
		AvgLeaves:     float64(layout.TotalLeaves) / float64(layout.NumPartitions),
	}

	totalWeight, maxWeight := 0, 0
	for _, p := range layout.Partitions {
		if p.NumLeaves < stats.MinLeaves {
			stats.MinLeaves = p.NumLeaves
		}
		if p.NumLeaves > stats.MaxLeaves {
			stats.MaxLeaves = p.NumLeaves
		}
		totalWeight += p.Weight
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}

	if stats.AvgLeaves > 0 {
		stats.Imbalance = float64(stats.MaxLeaves) / stats.AvgLeaves
	}
	if totalWeight > 0 {
		stats.WeightImbalance = float64(maxWeight) * float64(layout.NumPartitions) / float64(totalWeight)
	}

	return stats
}

type PartitionStats struct {
	NumPartitions   int
	MinLeaves       int
	MaxLeaves       int
	AvgLeaves       float64
	Imbalance       float64 // MaxLeaves / AvgLeaves
	WeightImbalance float64 // Heaviest partition weight / average weight
}
