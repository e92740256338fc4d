package octree

import (
	"github.com/pkg/errors"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/utils"
)

func (o *Octree) checkMarks(op string, refine []bool) {
	o.requireLeaves(op)
	if len(refine) != len(o.leaves) {
		precondition(op, "%d refinement flags for %d leaves", len(refine), len(o.leaves))
	}
}

// RefineSelectedBoxes refines the marked leaves after extending the marks
// until the tree stays 2:1 balanced. With hexRefinement all leaf sons of a
// cube are refined together. Returns the number of refined leaves; the
// leaf list is rebuilt.
func (o *Octree) RefineSelectedBoxes(refine []bool, hexRefinement bool) int {
	o.checkMarks("RefineSelectedBoxes", refine)
	o.balanceMarks(refine, hexRefinement)
	return o.refineMarked(refine)
}

// balanceMarks runs both marking rules to a common fixed point
func (o *Octree) balanceMarks(refine []bool, hexRefinement bool) bool {
	changed := false
	for {
		c := o.EnsureCorrectRegularity(refine)
		if hexRefinement && o.EnsureCorrectRegularitySons(refine) {
			c = true
		}
		if !c {
			return changed
		}
		changed = true
	}
}

// refineMarked splits every marked leaf and lists the leaves again
func (o *Octree) refineMarked(refine []bool) int {
	var ids []NodeID
	for leafI, mark := range refine {
		if !mark {
			continue
		}
		id := o.leaves[leafI]
		if o.nodes[id].coords.Level >= cube.MaxLevel {
			o.log.Warnf("leaf %d is at the deepest level, not refined", leafI)
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		o.refineLeaf(id)
	}
	o.CreateListOfLeaves()
	refinedCubes.Add(float64(len(ids)))
	o.log.WithField("refined", len(ids)).WithField("leaves", len(o.leaves)).Debug("refined selected boxes")
	return len(ids)
}

// refineLeaf replaces the bucket of leaf id by eight children and hands
// each child the triangles and edges intersecting its box
func (o *Octree) refineLeaf(id NodeID) {
	parent := o.nodes[id]
	b := parent.content.(bucket)
	var ch children
	var tris, edges []int
	for c, cc := range parent.coords.Refine() {
		box := cc.BoundingBox(o.root)
		tris, edges = tris[:0], edges[:0]
		if b.triangles >= 0 {
			for _, t := range o.triangles.Row(int(b.triangles)) {
				if o.surf.TriangleIntersectsBox(t, box) {
					tris = append(tris, t)
				}
			}
		}
		if b.edges >= 0 {
			for _, e := range o.edges.Row(int(b.edges)) {
				if o.surf.EdgeIntersectsBox(e, box) {
					edges = append(edges, e)
				}
			}
		}
		t := cube.Unknown
		if len(tris) > 0 {
			t = cube.Data
		}
		ch[c] = o.addNode(node{
			coords:   cc,
			cubeType: t,
			procNo:   parent.procNo,
			leafI:    -1,
			content:  o.newBucket(tris, edges),
		})
	}
	o.nodes[id].content = ch
	o.nodes[id].leafI = -1
}

func (o *Octree) leafLevel(leafI int) uint8 {
	return o.nodes[o.leaves[leafI]].coords.Level
}

// EnsureCorrectRegularity marks every leaf that would end up more than one
// level coarser than a neighbour once the marked leaves are refined. Marks
// spread until nothing changes; the return value tells whether any were
// added.
func (o *Octree) EnsureCorrectRegularity(refine []bool) bool {
	o.checkMarks("EnsureCorrectRegularity", refine)
	regularityPasses.Inc()

	var queue []int
	for leafI, mark := range refine {
		if mark {
			queue = append(queue, leafI)
		}
	}
	changed := false
	var nei []int
	for len(queue) > 0 {
		leafI := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		lvl := o.leafLevel(leafI)
		nei = o.FindAllLeafNeighbours(o.LeafCoordinates(leafI), nei)
		for _, n := range nei {
			if n < 0 || refine[n] || o.leafLevel(n) >= lvl {
				continue
			}
			refine[n] = true
			changed = true
			queue = append(queue, n)
		}
	}
	return changed
}

// EnsureCorrectRegularitySons marks the leaf siblings of every marked leaf
func (o *Octree) EnsureCorrectRegularitySons(refine []bool) bool {
	o.checkMarks("EnsureCorrectRegularitySons", refine)
	changed := false
	for leafI, mark := range refine {
		if !mark {
			continue
		}
		cc := o.LeafCoordinates(leafI)
		if cc.Level == 0 {
			continue
		}
		parent := o.FindCubeForPosition(cc.Parent())
		ch, ok := o.nodes[parent].content.(children)
		if !ok {
			continue
		}
		for _, sib := range ch {
			if sib == NoNode || !o.nodes[sib].isLeaf() {
				continue
			}
			if s := o.nodes[sib].leafI; !refine[s] {
				refine[s] = true
				changed = true
			}
		}
	}
	return changed
}

// MarkAdditionalLayers grows the marked region by nLayers layers of
// neighbours that are not finer than the leaf they border. Returns the
// number of leaves marked.
func (o *Octree) MarkAdditionalLayers(refine []bool, nLayers int) int {
	o.checkMarks("MarkAdditionalLayers", refine)
	var front []int
	for leafI, mark := range refine {
		if mark {
			front = append(front, leafI)
		}
	}
	marked := 0
	for layer := 0; layer < nLayers && len(front) > 0; layer++ {
		front = o.markLayer(refine, front)
		marked += len(front)
	}
	return marked
}

// markLayer marks the unmarked neighbours of front that are not finer than
// the front leaf they touch and returns them
func (o *Octree) markLayer(refine []bool, front []int) []int {
	var next, nei []int
	for _, leafI := range front {
		lvl := o.leafLevel(leafI)
		nei = o.FindAllLeafNeighbours(o.LeafCoordinates(leafI), nei)
		for _, n := range nei {
			if n < 0 || refine[n] || o.leafLevel(n) > lvl {
				continue
			}
			refine[n] = true
			next = append(next, n)
		}
	}
	return next
}

// RefineTreeForCoordinates makes cc a leaf owned by procNo. Owned leaves on
// the way are refined in full; placeholders of other ranks only grow the
// branch leading to cc. The leaf list must be rebuilt afterwards.
func (o *Octree) RefineTreeForCoordinates(cc cube.Coordinates, procNo int16, cubeType cube.Type) error {
	if !cc.Valid() {
		return errors.Errorf("refining tree for invalid coordinates %s", cc)
	}
	o.invalidate()

	id := o.Root()
	for shift := int(cc.Level) - 1; shift >= 0; shift-- {
		n := &o.nodes[id]
		if n.isLeaf() {
			if o.owns(n.procNo) {
				o.refineLeaf(id)
			} else {
				o.nodes[id].content = noChildren()
			}
		}
		ch := o.nodes[id].content.(children)
		c := childIndex(cc, shift)
		if ch[c] == NoNode {
			ch[c] = o.addNode(node{
				coords:   o.nodes[id].coords.RefineForPosition(c),
				cubeType: cube.Unknown,
				procNo:   procNo,
				leafI:    -1,
				content:  emptyBucket,
			})
			o.nodes[id].content = ch
		}
		id = ch[c]
	}

	n := &o.nodes[id]
	if !n.isLeaf() {
		if o.ownsBelow(id) {
			return errors.Errorf("cube %s is refined on rank %d", cc, o.rank)
		}
		n.content = emptyBucket
	}
	n.procNo, n.cubeType = procNo, cubeType
	return nil
}

// ownsBelow reports whether any leaf below id belongs to this rank
func (o *Octree) ownsBelow(id NodeID) bool {
	n := &o.nodes[id]
	ch, ok := n.content.(children)
	if !ok {
		return o.owns(n.procNo)
	}
	for _, child := range ch {
		if child != NoNode && o.ownsBelow(child) {
			return true
		}
	}
	return false
}

// ReduceMemoryConsumption drops contained element rows left behind by
// refined cubes
func (o *Octree) ReduceMemoryConsumption() {
	var tris, edges utils.VRWGraph
	before := o.triangles.NumberOfEntries() + o.edges.NumberOfEntries()
	for i := range o.nodes {
		b, ok := o.nodes[i].content.(bucket)
		if !ok {
			continue
		}
		if b.triangles >= 0 {
			b.triangles = int32(tris.AppendRow(o.triangles.Row(int(b.triangles))))
		}
		if b.edges >= 0 {
			b.edges = int32(edges.AppendRow(o.edges.Row(int(b.edges))))
		}
		o.nodes[i].content = b
	}
	o.triangles, o.edges = tris, edges
	o.log.WithField("entries", tris.NumberOfEntries()+edges.NumberOfEntries()).
		WithField("released", before-tris.NumberOfEntries()-edges.NumberOfEntries()).
		Debug("compacted contained elements")
}
