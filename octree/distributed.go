package octree

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/parallel"
	"github.com/notargets/meshoctree/partitions"
	"github.com/notargets/meshoctree/utils"
)

// Kinds of contained element shipped in a LabelledPair
const (
	triangleKind int64 = iota
	edgeKind
)

// LeafLocation names the rank and leaf holding a point. Rank and Leaf are
// -1 when no rank holds the point.
type LeafLocation struct {
	Point int
	Rank  int
	Leaf  int
}

// leafEntry describes a leaf to keep when the tree is rebuilt
type leafEntry struct {
	coords   cube.Coordinates
	procNo   int16
	cubeType cube.Type
	tris     []int
	edges    []int
}

// NeighbourProcs returns the ranks owning halo leaves, ascending
func (o *Octree) NeighbourProcs() []int {
	return append([]int(nil), o.neiProcs...)
}

// RemoteLeafLabel returns the index leaf leafI has on its owning rank. Owned
// leaves answer their own index.
func (o *Octree) RemoteLeafLabel(leafI int) (int, bool) {
	n := o.leaf("RemoteLeafLabel", leafI)
	if o.owns(n.procNo) {
		return leafI, true
	}
	label, ok := o.remoteLabels[n.coords]
	if !ok {
		return -1, false
	}
	return label, true
}

func (o *Octree) checkComm(op string, comm parallel.Comm) error {
	if comm.Rank() != o.rank {
		return errors.Errorf("%s: octree of rank %d used with communicator of rank %d", op, o.rank, comm.Rank())
	}
	return nil
}

// leafWeight is the partitioning cost of a leaf
func (o *Octree) leafWeight(leafI int) int {
	b := o.bucketOf("leafWeight", leafI)
	if b.triangles < 0 {
		return 1
	}
	return 1 + o.triangles.SizeOfRow(int(b.triangles))
}

// leafConnectivity describes the local leaves for the partitioner
func (o *Octree) leafConnectivity(weight func(leafI int) int) partitions.LeafConnectivity {
	n := len(o.leaves)
	lc := partitions.LeafConnectivity{
		NumLeaves: n,
		Weights:   make([]int, n),
		Keys:      make([]uint64, n),
		LToL:      make([][]int, n),
	}
	var nei []int
	for leafI := 0; leafI < n; leafI++ {
		cc := o.LeafCoordinates(leafI)
		lc.Weights[leafI] = weight(leafI)
		lc.Keys[leafI] = cc.MortonKey()
		nei = o.FindAllLeafNeighbours(cc, nei)
		lc.LToL[leafI] = lo.Filter(nei, func(nb int, _ int) bool { return nb >= 0 })
	}
	return lc
}

// LeafConnectivity describes the local leaves for a partitioner. Leaves
// weigh one plus the number of triangles they hold.
func (o *Octree) LeafConnectivity() partitions.LeafConnectivity {
	o.requireLeaves("LeafConnectivity")
	return o.leafConnectivity(o.leafWeight)
}

func (o *Octree) entryFor(leafI int, procNo int16, withContent bool) leafEntry {
	e := leafEntry{
		coords:   o.LeafCoordinates(leafI),
		procNo:   procNo,
		cubeType: o.LeafType(leafI),
	}
	if withContent {
		e.tris = o.ContainedTriangles(leafI, nil)
		e.edges = o.ContainedEdges(leafI, nil)
	}
	return e
}

// insertPath creates the internal cubes leading to cc and returns its id
func (o *Octree) insertPath(cc cube.Coordinates) NodeID {
	id := o.Root()
	for shift := int(cc.Level) - 1; shift >= 0; shift-- {
		ch := o.nodes[id].content.(children)
		c := childIndex(cc, shift)
		if ch[c] == NoNode {
			ch[c] = o.addNode(node{
				coords:   o.nodes[id].coords.RefineForPosition(c),
				cubeType: cube.Unknown,
				procNo:   cube.AllProcs,
				leafI:    -1,
				content:  noChildren(),
			})
			o.nodes[id].content = ch
		}
		id = ch[c]
	}
	return id
}

// rebuild replaces the tree by one holding exactly the given leaves. Cubes
// not covered by an entry are left out.
func (o *Octree) rebuild(entries []leafEntry) {
	o.triangles, o.edges = utils.VRWGraph{}, utils.VRWGraph{}
	o.nodes = []node{{
		coords:   cube.Root,
		cubeType: cube.Unknown,
		procNo:   cube.AllProcs,
		leafI:    -1,
		content:  noChildren(),
	}}
	for _, e := range entries {
		id := o.insertPath(e.coords)
		b := o.newBucket(e.tris, e.edges)
		n := &o.nodes[id]
		n.procNo, n.cubeType, n.content = e.procNo, e.cubeType, b
	}
	o.remoteLabels = nil
	o.neiProcs = nil
	o.CreateListOfLeaves()
}

// DistributeLeavesToProcessors splits a tree that is identical on every rank.
// Each rank keeps the leaves it is assigned and a halo of the leaves touching
// them; everything else is pruned.
func (o *Octree) DistributeLeavesToProcessors(ctx context.Context, comm parallel.Comm,
	strategy partitions.PartitionStrategy) error {
	o.requireLeaves("DistributeLeavesToProcessors")
	if err := o.checkComm("DistributeLeavesToProcessors", comm); err != nil {
		return err
	}
	me, size := comm.Rank(), comm.Size()

	n := len(o.leaves)
	total, err := parallel.AllReduceSum(ctx, comm, int64(n))
	if err != nil {
		return err
	}
	if total != int64(n*size) {
		return errors.Errorf("ranks hold different trees: %d leaves here, %d over %d ranks", n, total, size)
	}

	conn := o.leafConnectivity(o.leafWeight)
	pb := &partitions.PartitionBuilder{Leaves: &conn, NumPartitions: size, Strategy: strategy}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return errors.Wrap(err, "partitioning leaves")
	}
	lc, err := utils.NewLeafConnector(size, layout.LToP, conn.LToL)
	if err != nil {
		return errors.Wrap(err, "connecting partitions")
	}

	owned := layout.PartitionLeaves(me)
	halo := lc.HaloToGlobalLeaf[me]
	entries := make([]leafEntry, 0, len(owned)+len(halo))
	for _, leafI := range owned {
		entries = append(entries, o.entryFor(leafI, int16(me), true))
	}
	for _, leafI := range halo {
		entries = append(entries, o.entryFor(leafI, int16(layout.LToP[leafI]), false))
	}
	o.rebuild(entries)

	o.log.WithField("owned", len(owned)).WithField("halo", len(halo)).
		WithField("strategy", strategy.String()).Info("distributed leaves")
	return o.AddLayerFromNeighbouringProcessors(ctx, comm)
}

// onProcessorBoundary reports whether other ranks may hold leaf leafI
func (o *Octree) onProcessorBoundary(leafI int, nei []int) (bool, []int) {
	if !o.IsOwned(leafI) {
		return true, nei
	}
	nei = o.FindAllLeafNeighbours(o.LeafCoordinates(leafI), nei)
	return o.needsRemote(nei), nei
}

// needsRemote reports whether a neighbour list reaches another rank
func (o *Octree) needsRemote(nei []int) bool {
	for _, nb := range nei {
		if nb < 0 || !o.owns(o.nodes[o.leaves[nb]].procNo) {
			return true
		}
	}
	return false
}

// shareMarks sends the marked candidates that other ranks may hold to every
// rank and marks the matching local leaves of the records received. Returns
// the leaves newly marked here.
func (o *Octree) shareMarks(ctx context.Context, comm parallel.Comm, refine []bool, candidates []int) ([]int, error) {
	me := comm.Rank()
	var marks []parallel.LabelledCoordinates
	var nei []int
	for _, leafI := range candidates {
		if !refine[leafI] {
			continue
		}
		var shared bool
		if shared, nei = o.onProcessorBoundary(leafI, nei); shared {
			marks = append(marks, parallel.LabelledCoordinates{
				Label:   int64(leafI),
				Payload: o.LeafCoordinates(leafI),
			})
		}
	}
	send := make(map[int][]parallel.LabelledCoordinates)
	for q := 0; q < comm.Size(); q++ {
		if q != me {
			send[q] = marks
		}
	}
	countSent(parallel.CoordinatesCodec, send, me)
	recv, err := parallel.ExchangeMap(ctx, comm, parallel.CoordinatesCodec, send)
	if err != nil {
		return nil, err
	}

	var added []int
	for _, recs := range recv {
		for _, rec := range recs {
			if leafI := o.FindLeafLabelForPosition(rec.Payload); leafI >= 0 && !refine[leafI] {
				refine[leafI] = true
				added = append(added, leafI)
			}
		}
	}
	return added, nil
}

// MarkAdditionalLayersParallel is MarkAdditionalLayers over a distributed
// tree. Marks are exchanged after every layer so each layer grows from the
// whole previous one. Returns the number of owned leaves marked on all
// ranks.
func (o *Octree) MarkAdditionalLayersParallel(ctx context.Context, comm parallel.Comm,
	refine []bool, nLayers int) (int, error) {
	o.checkMarks("MarkAdditionalLayersParallel", refine)
	if err := o.checkComm("MarkAdditionalLayersParallel", comm); err != nil {
		return 0, err
	}
	var front []int
	for leafI, mark := range refine {
		if mark {
			front = append(front, leafI)
		}
	}
	owned := 0
	for layer := 0; layer < nLayers; layer++ {
		next := o.markLayer(refine, front)
		added, err := o.shareMarks(ctx, comm, refine, next)
		if err != nil {
			return 0, err
		}
		front = append(next, added...)
		owned += len(lo.Filter(front, func(leafI int, _ int) bool { return o.IsOwned(leafI) }))
	}
	total, err := parallel.AllReduceSum(ctx, comm, int64(owned))
	return int(total), err
}

// RefineSelectedBoxesParallel refines the marked leaves of a distributed
// tree. Marks on cubes shared with other ranks are exchanged until every
// rank agrees and the tree stays 2:1 balanced across ranks. Returns the
// number of owned leaves refined on all ranks.
func (o *Octree) RefineSelectedBoxesParallel(ctx context.Context, comm parallel.Comm,
	refine []bool, hexRefinement bool) (int, error) {
	o.checkMarks("RefineSelectedBoxesParallel", refine)
	if err := o.checkComm("RefineSelectedBoxesParallel", comm); err != nil {
		return 0, err
	}
	for round := 0; ; round++ {
		o.balanceMarks(refine, hexRefinement)
		added, err := o.shareMarks(ctx, comm, refine, lo.Range(len(refine)))
		if err != nil {
			return 0, err
		}
		again, err := parallel.AllReduceOr(ctx, comm, len(added) > 0)
		if err != nil {
			return 0, err
		}
		if !again {
			o.log.WithField("rounds", round+1).Debug("refinement marks agreed")
			break
		}
	}

	owned := 0
	for leafI, mark := range refine {
		if mark && o.IsOwned(leafI) && o.LeafCoordinates(leafI).Level < cube.MaxLevel {
			owned++
		}
	}
	o.refineMarked(refine)
	total, err := parallel.AllReduceSum(ctx, comm, int64(owned))
	if err != nil {
		return 0, err
	}
	if err := o.AddLayerFromNeighbouringProcessors(ctx, comm); err != nil {
		return 0, err
	}
	return int(total), nil
}

type layerRequest struct {
	cc  cube.Coordinates
	dir int
}

// AddLayerFromNeighbouringProcessors asks the other ranks for the leaves
// touching the owned leaves from outside. Missing leaves are added to the
// tree, present ones get their owner's type, and the owner's leaf index is
// recorded for RemoteLeafLabel. Exchanges repeat until no rank adds a leaf,
// so the recorded indices match the final leaf lists.
func (o *Octree) AddLayerFromNeighbouringProcessors(ctx context.Context, comm parallel.Comm) error {
	o.requireLeaves("AddLayerFromNeighbouringProcessors")
	if err := o.checkComm("AddLayerFromNeighbouringProcessors", comm); err != nil {
		return err
	}
	for {
		grown, err := o.exchangeLayer(ctx, comm)
		if err != nil {
			return err
		}
		again, err := parallel.AllReduceOr(ctx, comm, grown > 0)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// exchangeLayer runs one request and reply round of
// AddLayerFromNeighbouringProcessors and returns the number of leaves added
func (o *Octree) exchangeLayer(ctx context.Context, comm parallel.Comm) (int, error) {
	me, size := comm.Rank(), comm.Size()

	// Positions next to owned leaves that are not covered by owned leaves
	seen := make(map[layerRequest]bool)
	var reqs []parallel.LabelledCoordinates
	var nei []int
	for _, id := range o.leaves {
		n := o.nodes[id]
		if !o.owns(n.procNo) {
			continue
		}
		for dir, off := range cube.RegularityPositions {
			nei = o.neighboursAt(n.coords, off, nei[:0])
			if !o.needsRemote(nei) {
				continue
			}
			r := layerRequest{cc: n.coords.Shift(off), dir: dir}
			if seen[r] {
				continue
			}
			seen[r] = true
			reqs = append(reqs, parallel.LabelledCoordinates{Label: int64(dir), Payload: r.cc})
		}
	}
	send := make(map[int][]parallel.LabelledCoordinates)
	for q := 0; q < size; q++ {
		if q != me {
			send[q] = reqs
		}
	}
	countSent(parallel.CoordinatesCodec, send, me)
	recv, err := parallel.ExchangeMap(ctx, comm, parallel.CoordinatesCodec, send)
	if err != nil {
		return 0, err
	}

	// Answer with the owned leaves touching each requesting side
	replies := make(map[int][]parallel.LabelledCube)
	for q, recs := range recv {
		sent := make(map[NodeID]bool)
		for _, rec := range recs {
			if rec.Label < 0 || int(rec.Label) >= len(cube.RegularityPositions) {
				return 0, errors.Errorf("rank %d requested direction %d", q, rec.Label)
			}
			id := o.FindCubeForPosition(rec.Payload)
			if id == NoNode {
				continue
			}
			back := cube.RegularityPositions[rec.Label].Neg()
			o.touchingLeaves(id, back, func(leaf NodeID) {
				if leaf == NoNode || sent[leaf] || !o.owns(o.nodes[leaf].procNo) {
					return
				}
				sent[leaf] = true
				n := &o.nodes[leaf]
				replies[q] = append(replies[q], parallel.LabelledCube{
					Label:   int64(n.leafI),
					Payload: cube.Basic{Coordinates: n.coords, Type: n.cubeType, ProcNo: int16(me)},
				})
			})
		}
	}
	countSent(parallel.CubeCodec, replies, me)
	answers, err := parallel.ExchangeMap(ctx, comm, parallel.CubeCodec, replies)
	if err != nil {
		return 0, err
	}

	procs := lo.Keys(answers)
	sort.Ints(procs)
	o.remoteLabels = make(map[cube.Coordinates]int)
	grown := 0
	for _, q := range procs {
		for _, rec := range answers[q] {
			b := rec.Payload
			id := o.FindCubeForPosition(b.Coordinates)
			if id != NoNode && o.nodes[id].isLeaf() && o.nodes[id].coords == b.Coordinates {
				n := &o.nodes[id]
				if o.owns(n.procNo) {
					return 0, errors.Errorf("ranks %d and %d both own cube %s", me, q, b.Coordinates)
				}
				n.procNo, n.cubeType = b.ProcNo, b.Type
			} else {
				if err := o.RefineTreeForCoordinates(b.Coordinates, b.ProcNo, b.Type); err != nil {
					return 0, err
				}
				grown++
			}
			o.remoteLabels[b.Coordinates] = int(rec.Label)
		}
	}
	o.neiProcs = procs
	if !o.LeavesListed() {
		o.CreateListOfLeaves()
	}
	o.log.WithField("requests", len(reqs)).WithField("added", grown).
		WithField("neighbours", procs).Debug("exchanged halo layer")
	return grown, nil
}

// newSkeleton returns an empty tree over the same root box
func (o *Octree) newSkeleton() *Octree {
	return &Octree{root: o.root, rank: o.rank, log: o.log}
}

// LoadDistribution repartitions the owned leaves of all ranks by weight.
// Leaves changing owner carry their triangles and edges along; every rank
// then keeps its new leaves and their halo.
func (o *Octree) LoadDistribution(ctx context.Context, comm parallel.Comm,
	strategy partitions.PartitionStrategy) error {
	o.requireLeaves("LoadDistribution")
	if err := o.checkComm("LoadDistribution", comm); err != nil {
		return err
	}
	me, size := comm.Rank(), comm.Size()

	// Every rank learns every owned leaf, labelled by its weight
	var local []parallel.LabelledCube
	for leafI, id := range o.leaves {
		n := &o.nodes[id]
		if !o.owns(n.procNo) {
			continue
		}
		local = append(local, parallel.LabelledCube{
			Label:   int64(o.leafWeight(leafI)),
			Payload: cube.Basic{Coordinates: n.coords, Type: n.cubeType, ProcNo: int16(me)},
		})
	}
	exchangedRecords.WithLabelValues(parallel.CubeCodec.Name).Add(float64(len(local) * (size - 1)))
	all, err := parallel.AllGather(ctx, comm, parallel.CubeCodec, local)
	if err != nil {
		return err
	}

	skel := o.newSkeleton()
	var entries []leafEntry
	weights := make(map[cube.Coordinates]int)
	for q, recs := range all {
		for _, rec := range recs {
			b := rec.Payload
			if _, dup := weights[b.Coordinates]; dup {
				return errors.Errorf("cube %s is owned twice", b.Coordinates)
			}
			weights[b.Coordinates] = int(rec.Label)
			entries = append(entries, leafEntry{coords: b.Coordinates, procNo: int16(q), cubeType: b.Type})
		}
	}
	skel.rebuild(entries)

	conn := skel.leafConnectivity(func(g int) int { return weights[skel.LeafCoordinates(g)] })
	pb := &partitions.PartitionBuilder{Leaves: &conn, NumPartitions: size, Strategy: strategy}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return errors.Wrap(err, "partitioning leaves")
	}
	lc, err := utils.NewLeafConnector(size, layout.LToP, conn.LToL)
	if err != nil {
		return errors.Wrap(err, "connecting partitions")
	}

	// Ship the contents of leaves changing owner
	triSend := make(map[int][]parallel.ParTriFace)
	pairSend := make(map[int][]parallel.LabelledPair)
	triSent := make(map[int]map[int]bool)
	moved := 0
	var tris, edges []int
	for leafI, id := range o.leaves {
		if !o.owns(o.nodes[id].procNo) {
			continue
		}
		g := skel.FindLeafLabelForPosition(o.nodes[id].coords)
		q := layout.LToP[g]
		if q == me {
			continue
		}
		moved++
		if triSent[q] == nil {
			triSent[q] = make(map[int]bool)
		}
		tris = o.ContainedTriangles(leafI, tris)
		for _, t := range tris {
			pairSend[q] = append(pairSend[q], parallel.LabelledPair{
				Label:   int64(g),
				Payload: parallel.Pair{First: triangleKind, Second: int64(t)},
			})
			if !triSent[q][t] {
				triSent[q][t] = true
				triSend[q] = append(triSend[q], parallel.ParTriFace{Label: int64(t), Payload: o.surf.TrianglePoints(t)})
			}
		}
		edges = o.ContainedEdges(leafI, edges)
		for _, e := range edges {
			pairSend[q] = append(pairSend[q], parallel.LabelledPair{
				Label:   int64(g),
				Payload: parallel.Pair{First: edgeKind, Second: int64(e)},
			})
		}
	}

	countSent(parallel.TriFaceCodec, triSend, me)
	gotTris, err := parallel.ExchangeMap(ctx, comm, parallel.TriFaceCodec, triSend)
	if err != nil {
		return err
	}
	for q, recs := range gotTris {
		for _, rec := range recs {
			t := int(rec.Label)
			if o.surf == nil || t < 0 || t >= o.surf.NumberOfTriangles() || o.surf.TrianglePoints(t) != rec.Payload {
				return errors.Errorf("triangle %d from rank %d does not match the local surface", t, q)
			}
		}
	}

	countSent(parallel.PairCodec, pairSend, me)
	gotPairs, err := parallel.ExchangeMap(ctx, comm, parallel.PairCodec, pairSend)
	if err != nil {
		return err
	}
	incoming := make(map[int]*leafEntry)
	for _, recs := range gotPairs {
		for _, rec := range recs {
			g := int(rec.Label)
			e, ok := incoming[g]
			if !ok {
				e = &leafEntry{}
				incoming[g] = e
			}
			switch rec.Payload.First {
			case triangleKind:
				e.tris = append(e.tris, int(rec.Payload.Second))
			case edgeKind:
				e.edges = append(e.edges, int(rec.Payload.Second))
			default:
				return errors.Errorf("unknown contained element kind %d", rec.Payload.First)
			}
		}
	}

	// Keep the new owned leaves and their halo
	owned := layout.PartitionLeaves(me)
	halo := lc.HaloToGlobalLeaf[me]
	keep := make([]leafEntry, 0, len(owned)+len(halo))
	for _, g := range owned {
		e := leafEntry{coords: skel.LeafCoordinates(g), procNo: int16(me), cubeType: skel.LeafType(g)}
		if leafI := o.FindLeafLabelForPosition(e.coords); leafI >= 0 && o.IsOwned(leafI) {
			e.tris = o.ContainedTriangles(leafI, nil)
			e.edges = o.ContainedEdges(leafI, nil)
		} else if in, ok := incoming[g]; ok {
			e.tris, e.edges = in.tris, in.edges
		}
		keep = append(keep, e)
	}
	for _, g := range halo {
		keep = append(keep, leafEntry{coords: skel.LeafCoordinates(g), procNo: int16(layout.LToP[g]), cubeType: skel.LeafType(g)})
	}
	o.rebuild(keep)

	stats := layout.PartitionStatistics()
	o.log.WithField("owned", len(owned)).WithField("sent", moved).
		WithField("imbalance", stats.WeightImbalance).Info("balanced load")
	return o.AddLayerFromNeighbouringProcessors(ctx, comm)
}

// FindLeavesForPoints locates points on whichever rank owns them. Every rank
// must call it, possibly with no points.
func (o *Octree) FindLeavesForPoints(ctx context.Context, comm parallel.Comm, points []r3.Vec) ([]LeafLocation, error) {
	o.requireLeaves("FindLeavesForPoints")
	if err := o.checkComm("FindLeavesForPoints", comm); err != nil {
		return nil, err
	}
	me, size := comm.Rank(), comm.Size()

	out := make([]LeafLocation, len(points))
	var asks []parallel.RefLabelledPoint
	for i, p := range points {
		out[i] = LeafLocation{Point: i, Rank: -1, Leaf: -1}
		if leafI := o.FindLeafContainingVertex(p); leafI >= 0 && o.IsOwned(leafI) {
			out[i].Rank, out[i].Leaf = me, leafI
			continue
		}
		asks = append(asks, parallel.RefLabelledPoint{
			Label:   int64(me),
			Payload: parallel.LabelledPoint{Label: int64(i), Payload: p},
		})
	}
	send := make(map[int][]parallel.RefLabelledPoint)
	for q := 0; q < size; q++ {
		if q != me {
			send[q] = asks
		}
	}
	countSent(parallel.RefPointCodec, send, me)
	recv, err := parallel.ExchangeMap(ctx, comm, parallel.RefPointCodec, send)
	if err != nil {
		return nil, err
	}

	replies := make(map[int][]parallel.LabelledPair)
	for q, recs := range recv {
		for _, rec := range recs {
			if leafI := o.FindLeafContainingVertex(rec.Payload.Payload); leafI >= 0 && o.IsOwned(leafI) {
				replies[q] = append(replies[q], parallel.LabelledPair{
					Label:   rec.Payload.Label,
					Payload: parallel.Pair{First: int64(me), Second: int64(leafI)},
				})
			}
		}
	}
	countSent(parallel.PairCodec, replies, me)
	answers, err := parallel.ExchangeMap(ctx, comm, parallel.PairCodec, replies)
	if err != nil {
		return nil, err
	}
	for _, recs := range answers {
		for _, rec := range recs {
			i := int(rec.Label)
			if i < 0 || i >= len(out) {
				return nil, errors.Errorf("answer for unknown point %d", i)
			}
			out[i].Rank, out[i].Leaf = int(rec.Payload.First), int(rec.Payload.Second)
		}
	}
	return out, nil
}
