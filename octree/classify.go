package octree

import (
	"context"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/parallel"
)

// onRootBoundary reports whether cc touches a face of the root box
func onRootBoundary(cc cube.Coordinates) bool {
	last := int32(1)<<cc.Level - 1
	return cc.I == 0 || cc.J == 0 || cc.K == 0 || cc.I == last || cc.J == last || cc.K == last
}

// markDataLeaves types owned leaves holding triangles as Data and resets the
// other owned leaves to Unknown
func (o *Octree) markDataLeaves() {
	for leafI, id := range o.leaves {
		n := &o.nodes[id]
		if !o.owns(n.procNo) {
			continue
		}
		if o.HasContainedTriangles(leafI) {
			n.cubeType = cube.Data
		} else {
			n.cubeType = cube.Unknown
		}
	}
}

// floodOutside spreads Outside over face neighbours through owned Unknown
// leaves, starting from those touching the root boundary and from halo
// leaves already known to be outside. Returns whether any leaf changed.
func (o *Octree) floodOutside() bool {
	var queue []int
	changed := false
	for leafI, id := range o.leaves {
		n := &o.nodes[id]
		switch {
		case !o.owns(n.procNo):
			if n.cubeType == cube.Outside {
				queue = append(queue, leafI)
			}
		case n.cubeType == cube.Outside:
			queue = append(queue, leafI)
		case n.cubeType == cube.Unknown && onRootBoundary(n.coords):
			n.cubeType = cube.Outside
			changed = true
			queue = append(queue, leafI)
		}
	}

	var nei []int
	for len(queue) > 0 {
		leafI := queue[0]
		queue = queue[1:]
		nei = o.FindNeighboursForLeaf(o.LeafCoordinates(leafI), nei)
		for _, nb := range nei {
			if nb < 0 {
				continue
			}
			n := &o.nodes[o.leaves[nb]]
			if !o.owns(n.procNo) || n.cubeType != cube.Unknown {
				continue
			}
			n.cubeType = cube.Outside
			changed = true
			queue = append(queue, nb)
		}
	}
	return changed
}

// markInside types the remaining owned Unknown leaves Inside
func (o *Octree) markInside() int {
	inside := 0
	for _, id := range o.leaves {
		n := &o.nodes[id]
		if o.owns(n.procNo) && n.cubeType == cube.Unknown {
			n.cubeType = cube.Inside
			inside++
		}
	}
	return inside
}

// ClassifyLeaves types every leaf as Data, Outside or Inside relative to
// the surface
func (o *Octree) ClassifyLeaves() {
	o.requireLeaves("ClassifyLeaves")
	o.markDataLeaves()
	o.floodOutside()
	inside := o.markInside()
	o.log.WithField("inside", inside).Info("classified leaves")
}

// ClassifyLeavesDistributed classifies the owned leaves of every rank. Halo
// types are exchanged after each flood until no rank changes.
func (o *Octree) ClassifyLeavesDistributed(ctx context.Context, comm parallel.Comm) error {
	o.requireLeaves("ClassifyLeavesDistributed")
	o.markDataLeaves()
	if err := o.AddLayerFromNeighbouringProcessors(ctx, comm); err != nil {
		return err
	}
	for pass := 0; ; pass++ {
		changed := o.floodOutside()
		if err := o.AddLayerFromNeighbouringProcessors(ctx, comm); err != nil {
			return err
		}
		again, err := parallel.AllReduceOr(ctx, comm, changed)
		if err != nil {
			return err
		}
		if !again {
			o.log.WithField("passes", pass+1).Debug("outside flood converged")
			break
		}
	}
	inside := o.markInside()
	if err := o.AddLayerFromNeighbouringProcessors(ctx, comm); err != nil {
		return err
	}
	o.log.WithField("inside", inside).Info("classified leaves")
	return nil
}
