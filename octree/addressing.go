package octree

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/meshoctree/cube"
)

// LeafGraph connects the local leaves that share a face. Node ids are leaf
// indices.
func (o *Octree) LeafGraph() *simple.UndirectedGraph {
	return o.typedLeafGraph(cube.Unknown | cube.Outside | cube.Data | cube.Inside)
}

// typedLeafGraph is LeafGraph restricted to leaves with a type in mask
func (o *Octree) typedLeafGraph(mask cube.Type) *simple.UndirectedGraph {
	o.requireLeaves("LeafGraph")
	g := simple.NewUndirectedGraph()
	for leafI, id := range o.leaves {
		if o.nodes[id].cubeType&mask != 0 {
			g.AddNode(simple.Node(leafI))
		}
	}
	var nei []int
	for leafI, id := range o.leaves {
		if o.nodes[id].cubeType&mask == 0 {
			continue
		}
		nei = o.FindNeighboursForLeaf(o.nodes[id].coords, nei)
		for _, nb := range nei {
			if nb <= leafI || o.nodes[o.leaves[nb]].cubeType&mask == 0 {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(leafI), T: simple.Node(nb)})
		}
	}
	return g
}

// CountRegions returns the number of face connected groups of leaves whose
// type is in mask
func (o *Octree) CountRegions(mask cube.Type) int {
	return len(topo.ConnectedComponents(o.typedLeafGraph(mask)))
}

// CheckGluedRegions verifies that no Inside leaf shares a face with an
// Outside leaf
func (o *Octree) CheckGluedRegions() error {
	o.requireLeaves("CheckGluedRegions")
	var nei []int
	for leafI, id := range o.leaves {
		if o.nodes[id].cubeType != cube.Inside {
			continue
		}
		nei = o.FindNeighboursForLeaf(o.nodes[id].coords, nei)
		for _, nb := range nei {
			if nb >= 0 && o.nodes[o.leaves[nb]].cubeType == cube.Outside {
				return errors.Errorf("inside leaf %d %s touches outside leaf %d %s",
					leafI, o.nodes[id].coords, nb, o.nodes[o.leaves[nb]].coords)
			}
		}
	}
	return nil
}
