package octree

import (
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
)

// CreateListOfLeaves numbers the leaves in depth first child order. Leaf
// indices from an earlier list are meaningless afterwards.
func (o *Octree) CreateListOfLeaves() {
	for i := range o.nodes {
		o.nodes[i].leafI = -1
	}
	leaves := make([]NodeID, 0, len(o.nodes))
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := &o.nodes[id]
		switch c := n.content.(type) {
		case bucket:
			n.leafI = int32(len(leaves))
			leaves = append(leaves, id)
		case children:
			for _, child := range c {
				if child != NoNode {
					walk(child)
				}
			}
		}
	}
	walk(o.Root())
	o.leaves = leaves
	leavesGauge.WithLabelValues(strconv.Itoa(o.rank)).Set(float64(len(leaves)))
}

// LeavesListed reports whether the leaf list is current
func (o *Octree) LeavesListed() bool { return o.leaves != nil }

func (o *Octree) requireLeaves(op string) {
	if o.leaves == nil {
		precondition(op, "list of leaves is not built")
	}
}

// leaf returns the node of leafI, panicking on an unusable index
func (o *Octree) leaf(op string, leafI int) *node {
	o.requireLeaves(op)
	if leafI < 0 || leafI >= len(o.leaves) {
		precondition(op, "leaf %d out of range [0, %d)", leafI, len(o.leaves))
	}
	return &o.nodes[o.leaves[leafI]]
}

// NumberOfLeaves returns the size of the leaf list
func (o *Octree) NumberOfLeaves() int {
	o.requireLeaves("NumberOfLeaves")
	return len(o.leaves)
}

// ReturnLeaf describes leaf leafI
func (o *Octree) ReturnLeaf(leafI int) cube.Basic {
	n := o.leaf("ReturnLeaf", leafI)
	return cube.Basic{Coordinates: n.coords, Type: n.cubeType, ProcNo: n.procNo}
}

// LeafNode returns the arena id of leaf leafI
func (o *Octree) LeafNode(leafI int) NodeID {
	o.leaf("LeafNode", leafI)
	return o.leaves[leafI]
}

func (o *Octree) LeafCoordinates(leafI int) cube.Coordinates {
	return o.leaf("LeafCoordinates", leafI).coords
}

func (o *Octree) LeafBox(leafI int) r3.Box {
	return o.leaf("LeafBox", leafI).coords.BoundingBox(o.root)
}

func (o *Octree) LeafType(leafI int) cube.Type {
	return o.leaf("LeafType", leafI).cubeType
}

// LeafProcNo returns the rank owning leaf leafI. Cubes shared by all ranks
// report the local rank.
func (o *Octree) LeafProcNo(leafI int) int {
	p := o.leaf("LeafProcNo", leafI).procNo
	if p == cube.AllProcs {
		return o.rank
	}
	return int(p)
}

// IsOwned reports whether leaf leafI belongs to this rank
func (o *Octree) IsOwned(leafI int) bool {
	return o.owns(o.leaf("IsOwned", leafI).procNo)
}

// SetLeafType overrides the classification of leaf leafI
func (o *Octree) SetLeafType(leafI int, t cube.Type) {
	o.leaf("SetLeafType", leafI).cubeType = t
}
