package octree

import (
	"github.com/samber/lo"

	"github.com/notargets/meshoctree/cube"
)

// touchingLeaves visits the leaves below id that lie on side back of it.
// Branches held by another rank are visited as NoNode.
func (o *Octree) touchingLeaves(id NodeID, back cube.Offset, visit func(NodeID)) {
	ch, ok := o.nodes[id].content.(children)
	if !ok {
		visit(id)
		return
	}
	for c, child := range ch {
		if !cube.Touches(c, back) {
			continue
		}
		if child == NoNode {
			visit(NoNode)
			continue
		}
		o.touchingLeaves(child, back, visit)
	}
}

// neighboursAt appends the leaves adjacent to cc across offset off
func (o *Octree) neighboursAt(cc cube.Coordinates, off cube.Offset, dst []int) []int {
	nc := cc.Shift(off)
	if !nc.Valid() {
		return dst
	}
	id := o.FindCubeForPosition(nc)
	if id == NoNode {
		return append(dst, int(cube.OtherProc))
	}
	o.touchingLeaves(id, off.Neg(), func(leaf NodeID) {
		if leaf == NoNode {
			dst = append(dst, int(cube.OtherProc))
			return
		}
		dst = append(dst, int(o.nodes[leaf].leafI))
	})
	return dst
}

// FindNeighbourOverNode returns the leaf sharing corner nodeI of cc from the
// diagonal direction. When that region is refined further, the leaf touching
// the corner is returned. The result is -1 past the root box and
// cube.OtherProc when the region is held by another rank.
func (o *Octree) FindNeighbourOverNode(cc cube.Coordinates, nodeI int) int {
	o.requireLeaves("FindNeighbourOverNode")
	nc := cc.Shift(cube.OctantVector(nodeI))
	if !nc.Valid() {
		return -1
	}
	id := o.FindCubeForPosition(nc)
	corner := cube.OppositeNode(nodeI)
	for id != NoNode {
		ch, ok := o.nodes[id].content.(children)
		if !ok {
			return int(o.nodes[id].leafI)
		}
		id = ch[corner]
	}
	return int(cube.OtherProc)
}

// FindNeighboursOverEdge resets dst to the leaves diagonally across edge
// edgeI of cc
func (o *Octree) FindNeighboursOverEdge(cc cube.Coordinates, edgeI int, dst []int) []int {
	o.requireLeaves("FindNeighboursOverEdge")
	dst = o.neighboursAt(cc, cube.EdgeOffset(edgeI), dst[:0])
	return lo.Uniq(dst)
}

// FindNeighboursInDirection resets dst to the leaves across face dir of cc
func (o *Octree) FindNeighboursInDirection(cc cube.Coordinates, dir int, dst []int) []int {
	o.requireLeaves("FindNeighboursInDirection")
	dst = o.neighboursAt(cc, cube.FaceOffset(dir), dst[:0])
	return lo.Uniq(dst)
}

// FindNeighboursForLeaf resets dst to the leaves sharing a face with cc
func (o *Octree) FindNeighboursForLeaf(cc cube.Coordinates, dst []int) []int {
	o.requireLeaves("FindNeighboursForLeaf")
	dst = dst[:0]
	for f := 0; f < cube.NumFaces; f++ {
		dst = o.neighboursAt(cc, cube.FaceOffset(f), dst)
	}
	return lo.Uniq(dst)
}

// FindAllLeafNeighbours resets dst to the leaves sharing a face, an edge or
// a corner with cc
func (o *Octree) FindAllLeafNeighbours(cc cube.Coordinates, dst []int) []int {
	o.requireLeaves("FindAllLeafNeighbours")
	dst = dst[:0]
	for _, off := range cube.RegularityPositions {
		dst = o.neighboursAt(cc, off, dst)
	}
	return lo.Uniq(dst)
}
