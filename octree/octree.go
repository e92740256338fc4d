package octree

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/surface"
	"github.com/notargets/meshoctree/utils"
)

// NodeID addresses a cube in the arena of an Octree
type NodeID int32

// NoNode marks an absent cube
const NoNode NodeID = -1

// content is what a cube holds: either its eight children or, for a leaf,
// the bucket of surface elements intersecting it
type content interface {
	isContent()
}

// children of a refined cube in octant order. Entries are NoNode only for
// branches that live on another rank.
type children [8]NodeID

// bucket rows index the contained triangle and edge graphs, -1 when empty
type bucket struct {
	triangles, edges int32
}

func (children) isContent() {}
func (bucket) isContent()   {}

var emptyBucket = bucket{triangles: -1, edges: -1}

func noChildren() (ch children) {
	for c := range ch {
		ch[c] = NoNode
	}
	return
}

type node struct {
	coords   cube.Coordinates
	cubeType cube.Type
	procNo   int16
	leafI    int32 // position in the leaf list, -1 unless listed
	content  content
}

func (n *node) isLeaf() bool {
	_, ok := n.content.(bucket)
	return ok
}

// Octree is a spatial index of cubes over a triangulated surface. Cubes live
// in an arena and are addressed by NodeID; leaves are additionally numbered
// by a snapshot rebuilt with CreateListOfLeaves.
type Octree struct {
	root r3.Box
	surf *surface.Surface
	rank int
	log  logrus.FieldLogger

	nodes  []node
	leaves []NodeID // nil until listed, reset whenever the topology changes

	triangles utils.VRWGraph
	edges     utils.VRWGraph

	// Labels of halo leaves on their owning ranks
	remoteLabels map[cube.Coordinates]int
	neiProcs     []int
}

// Option configures an Octree
type Option func(*Octree)

// WithLogger sets the logger, logrus.StandardLogger by default
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Octree) { o.log = log }
}

// WithRank sets the rank the octree lives on
func WithRank(rank int) Option {
	return func(o *Octree) { o.rank = rank }
}

// New creates an octree holding only its root cube. A root box that is not a
// cube is grown around its centre until it is one. The root collects every
// triangle and feature edge of surf intersecting the root box; surf may be
// nil for a tree that only tracks cube layout.
func New(surf *surface.Surface, root r3.Box, opts ...Option) *Octree {
	o := &Octree{
		root: cubify(root),
		surf: surf,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.WithField("rank", o.rank)

	b := emptyBucket
	if surf != nil {
		var tris, edges []int
		for t := 0; t < surf.NumberOfTriangles(); t++ {
			if surf.TriangleIntersectsBox(t, o.root) {
				tris = append(tris, t)
			}
		}
		for e := 0; e < surf.NumberOfEdges(); e++ {
			if surf.EdgeIntersectsBox(e, o.root) {
				edges = append(edges, e)
			}
		}
		b = o.newBucket(tris, edges)
	}
	o.nodes = append(o.nodes, node{
		coords:   cube.Root,
		cubeType: cube.Unknown,
		procNo:   cube.AllProcs,
		leafI:    -1,
		content:  b,
	})
	return o
}

// cubify grows the shorter sides of box to its longest side
func cubify(box r3.Box) r3.Box {
	ext := box.Size()
	side := math.Max(ext.X, math.Max(ext.Y, ext.Z))
	half := r3.Vec{X: side / 2, Y: side / 2, Z: side / 2}
	c := box.Center()
	return r3.Box{Min: r3.Sub(c, half), Max: r3.Add(c, half)}
}

func (o *Octree) newBucket(tris, edges []int) bucket {
	b := emptyBucket
	if len(tris) > 0 {
		b.triangles = int32(o.triangles.AppendRow(tris))
	}
	if len(edges) > 0 {
		b.edges = int32(o.edges.AppendRow(edges))
	}
	return b
}

func (o *Octree) addNode(n node) NodeID {
	o.nodes = append(o.nodes, n)
	return NodeID(len(o.nodes) - 1)
}

// invalidate drops the leaf list after a topology change
func (o *Octree) invalidate() {
	o.leaves = nil
}

func (o *Octree) RootBox() r3.Box            { return o.root }
func (o *Octree) Surface() *surface.Surface { return o.surf }
func (o *Octree) Rank() int                 { return o.rank }
func (o *Octree) Root() NodeID              { return 0 }

// CubeView is a read only description of one cube
type CubeView struct {
	cube.Basic
	IsLeaf   bool
	LeafI    int      // -1 unless the cube is a listed leaf
	Children [8]NodeID // all NoNode for leaves
}

// Cube describes the cube id
func (o *Octree) Cube(id NodeID) CubeView {
	if id < 0 || int(id) >= len(o.nodes) {
		precondition("Cube", "node %d out of range [0, %d)", id, len(o.nodes))
	}
	n := &o.nodes[id]
	v := CubeView{
		Basic:    cube.Basic{Coordinates: n.coords, Type: n.cubeType, ProcNo: n.procNo},
		IsLeaf:   n.isLeaf(),
		LeafI:    int(n.leafI),
		Children: noChildren(),
	}
	if ch, ok := n.content.(children); ok {
		v.Children = ch
	}
	return v
}

// owns reports whether procNo denotes this rank
func (o *Octree) owns(procNo int16) bool {
	return procNo == cube.AllProcs || int(procNo) == o.rank
}

// cubeSize is the edge length of cubes at level l
func (o *Octree) cubeSize(l uint8) float64 {
	return cube.Root.Size(o.root) / float64(uint32(1)<<l)
}
