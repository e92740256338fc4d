package octree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
)

// childIndex returns the child of cc's ancestor at level cc.Level-shift-1
// that lies on the path to cc
func childIndex(cc cube.Coordinates, shift int) int {
	return int((cc.I>>shift)&1) | int((cc.J>>shift)&1)<<1 | int((cc.K>>shift)&1)<<2
}

// FindCubeForPosition walks from the root towards cc. It returns the cube at
// cc, or the coarser leaf containing cc, or NoNode when cc is outside the
// root or inside a branch held by another rank.
func (o *Octree) FindCubeForPosition(cc cube.Coordinates) NodeID {
	if !cc.Valid() {
		return NoNode
	}
	id := o.Root()
	for shift := int(cc.Level) - 1; shift >= 0; shift-- {
		ch, ok := o.nodes[id].content.(children)
		if !ok {
			return id
		}
		id = ch[childIndex(cc, shift)]
		if id == NoNode {
			return NoNode
		}
	}
	return id
}

// FindLeafLabelForPosition returns the leaf index of the leaf exactly at cc,
// -1 when there is none
func (o *Octree) FindLeafLabelForPosition(cc cube.Coordinates) int {
	o.requireLeaves("FindLeafLabelForPosition")
	id := o.FindCubeForPosition(cc)
	if id == NoNode {
		return -1
	}
	n := &o.nodes[id]
	if !n.isLeaf() || n.coords != cc {
		return -1
	}
	return int(n.leafI)
}

// pointCoordinates returns the finest cube containing p. Points on the upper
// faces of the root box belong to the last cube along that axis.
func (o *Octree) pointCoordinates(p r3.Vec) (cube.Coordinates, bool) {
	if !o.root.Contains(p) {
		return cube.Coordinates{}, false
	}
	n := float64(int64(1) << cube.MaxLevel)
	size := o.root.Size()
	index := func(v, lo, ext float64) int32 {
		i := int64(math.Floor((v - lo) / ext * n))
		if i >= int64(n) {
			i = int64(n) - 1
		}
		if i < 0 {
			i = 0
		}
		return int32(i)
	}
	return cube.Coordinates{
		I:     index(p.X, o.root.Min.X, size.X),
		J:     index(p.Y, o.root.Min.Y, size.Y),
		K:     index(p.Z, o.root.Min.Z, size.Z),
		Level: cube.MaxLevel,
	}, true
}

// FindLeafContainingVertex returns the leaf containing p, -1 when p is
// outside the root box or in a branch held by another rank
func (o *Octree) FindLeafContainingVertex(p r3.Vec) int {
	o.requireLeaves("FindLeafContainingVertex")
	cc, ok := o.pointCoordinates(p)
	if !ok {
		return -1
	}
	id := o.FindCubeForPosition(cc)
	if id == NoNode || !o.nodes[id].isLeaf() {
		return -1
	}
	return int(o.nodes[id].leafI)
}

// FindNearestSurfacePoint returns the point of the surface closest to p, its
// squared distance and triangle. Leaves are searched in a box around p that
// doubles until it holds a triangle no farther than its half width.
func (o *Octree) FindNearestSurfacePoint(p r3.Vec) (point r3.Vec, dist2 float64, triangle int, ok bool) {
	o.requireLeaves("FindNearestSurfacePoint")
	if o.surf == nil {
		return
	}

	h := o.cubeSize(cube.MaxLevel)
	if leafI := o.FindLeafContainingVertex(p); leafI >= 0 {
		h = o.LeafCoordinates(leafI).Size(o.root)
	}
	// Farthest any point of the root can be from p
	limit := 2 * (r3.Norm(o.root.Size()) + r3.Norm(r3.Sub(p, o.root.Center())))

	var leaves, tris []int
	seen := make(map[int]bool)
	dist2 = math.Inf(1)
	for {
		half := r3.Vec{X: h, Y: h, Z: h}
		box := r3.Box{Min: r3.Sub(p, half), Max: r3.Add(p, half)}
		leaves = o.FindLeavesContainedInBox(box, leaves)
		for _, leafI := range leaves {
			tris = o.ContainedTriangles(leafI, tris)
			for _, t := range tris {
				if seen[t] {
					continue
				}
				seen[t] = true
				q := o.surf.ClosestPointOnTriangle(p, t)
				if d := r3.Norm2(r3.Sub(q, p)); d < dist2 {
					point, dist2, triangle, ok = q, d, t, true
				}
			}
		}
		if (ok && dist2 <= h*h) || h > limit {
			return
		}
		h *= 2
	}
}
