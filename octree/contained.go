package octree

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/surface"
)

func (o *Octree) bucketOf(op string, leafI int) bucket {
	return o.leaf(op, leafI).content.(bucket)
}

// HasContainedTriangles reports whether any surface triangle intersects leaf leafI
func (o *Octree) HasContainedTriangles(leafI int) bool {
	return o.bucketOf("HasContainedTriangles", leafI).triangles >= 0
}

// HasContainedEdges reports whether any feature edge intersects leaf leafI
func (o *Octree) HasContainedEdges(leafI int) bool {
	return o.bucketOf("HasContainedEdges", leafI).edges >= 0
}

// ContainedTriangles resets dst to the triangles intersecting leaf leafI
func (o *Octree) ContainedTriangles(leafI int, dst []int) []int {
	b := o.bucketOf("ContainedTriangles", leafI)
	if b.triangles < 0 {
		return dst[:0]
	}
	return o.triangles.CopyRow(int(b.triangles), dst)
}

// ContainedEdges resets dst to the feature edges intersecting leaf leafI
func (o *Octree) ContainedEdges(leafI int, dst []int) []int {
	b := o.bucketOf("ContainedEdges", leafI)
	if b.edges < 0 {
		return dst[:0]
	}
	return o.edges.CopyRow(int(b.edges), dst)
}

// FindLeavesContainedInBox resets dst to the leaves whose boxes intersect box
func (o *Octree) FindLeavesContainedInBox(box r3.Box, dst []int) []int {
	o.requireLeaves("FindLeavesContainedInBox")
	dst = dst[:0]
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := &o.nodes[id]
		if !surface.BoxesOverlap(n.coords.BoundingBox(o.root), box) {
			return
		}
		switch c := n.content.(type) {
		case bucket:
			dst = append(dst, int(n.leafI))
		case children:
			for _, child := range c {
				if child != NoNode {
					walk(child)
				}
			}
		}
	}
	walk(o.Root())
	return dst
}
