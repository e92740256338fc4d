package octree

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/config"
	"github.com/notargets/meshoctree/parallel"
	"github.com/notargets/meshoctree/surface"
)

const (
	// rootMargin widens the surface bounding box before it is fitted with cells
	rootMargin = 1.1
	// sizeTolerance absorbs round off when cell sizes are compared
	sizeTolerance = 1e-9
)

// Creator builds an octree over a surface following the refinement
// settings
type Creator struct {
	surf     *surface.Surface
	settings config.Settings
	opts     []Option
}

// NewCreator prepares a build over surf. The options are handed to every
// octree the creator makes.
func NewCreator(surf *surface.Surface, settings config.Settings, opts ...Option) *Creator {
	return &Creator{surf: surf, settings: settings, opts: opts}
}

// rootBox returns the root box and the level at which cells are no larger
// than maxCellSize
func (c *Creator) rootBox() (r3.Box, int) {
	s := c.settings
	if s.RootBox != nil {
		box := cubify(s.RootBox.R3())
		side := box.Size().X
		n := 0
		for side > s.MaxCellSize*(1+sizeTolerance) && n < s.MaxLevel {
			side /= 2
			n++
		}
		return box, n
	}

	bb := c.surf.BoundingBox()
	ext := bb.Size()
	need := math.Max(ext.X, math.Max(ext.Y, ext.Z)) * rootMargin
	side, n := s.MaxCellSize, 0
	for side < need {
		side *= 2
		n++
	}
	half := side / 2
	centre := bb.Center()
	return r3.Box{
		Min: r3.Sub(centre, r3.Vec{X: half, Y: half, Z: half}),
		Max: r3.Add(centre, r3.Vec{X: half, Y: half, Z: half}),
	}, n
}

func (c *Creator) uniformLevel(n int) int {
	if n < c.settings.MinLevel {
		n = c.settings.MinLevel
	}
	if n > c.settings.MaxLevel {
		n = c.settings.MaxLevel
	}
	return n
}

func (c *Creator) newOctree(extra ...Option) (*Octree, int, error) {
	if err := c.settings.Validate(); err != nil {
		return nil, 0, err
	}
	if c.surf == nil && c.settings.RootBox == nil {
		return nil, 0, errors.New("an octree needs a surface or an explicit root box")
	}
	box, n := c.rootBox()
	o := New(c.surf, box, append(append([]Option(nil), c.opts...), extra...)...)
	o.CreateListOfLeaves()
	return o, c.uniformLevel(n), nil
}

// refineUniformly refines every leaf until the tree reaches level
func (c *Creator) refineUniformly(ctx context.Context, o *Octree, level int) error {
	for l := 0; l < level; l++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		refine := make([]bool, o.NumberOfLeaves())
		for leafI := range refine {
			refine[leafI] = true
		}
		o.RefineSelectedBoxes(refine, false)
	}
	o.log.WithField("level", level).WithField("leaves", o.NumberOfLeaves()).Info("refined uniformly")
	return nil
}

// boundaryMarks marks owned leaves holding triangles that are still larger
// than boundaryCellSize
func (c *Creator) boundaryMarks(o *Octree) ([]bool, int) {
	refine := make([]bool, o.NumberOfLeaves())
	n := 0
	for leafI := range refine {
		if !o.IsOwned(leafI) || !o.HasContainedTriangles(leafI) {
			continue
		}
		l := o.leafLevel(leafI)
		if int(l) >= c.settings.MaxLevel || o.cubeSize(l) <= c.settings.BoundaryCellSize*(1+sizeTolerance) {
			continue
		}
		refine[leafI] = true
		n++
	}
	return refine, n
}

// refineBoundary refines around the surface until every cell holding
// triangles is small enough or at the deepest allowed level
func (c *Creator) refineBoundary(ctx context.Context, o *Octree,
	step func(refine []bool) (int, error)) error {
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		refine, seeds := c.boundaryMarks(o)
		refined, err := step(refine)
		if err != nil {
			return err
		}
		o.log.WithField("pass", pass).WithField("seeds", seeds).
			WithField("refined", refined).Debug("boundary refinement pass")
		if refined == 0 {
			break
		}
	}
	o.ReduceMemoryConsumption()
	o.log.WithField("leaves", o.NumberOfLeaves()).Info("refined boundary")
	return nil
}

// CreateOctreeBoxes builds the octree on a single rank
func (c *Creator) CreateOctreeBoxes(ctx context.Context) (*Octree, error) {
	o, level, err := c.newOctree()
	if err != nil {
		return nil, err
	}
	if err := c.refineUniformly(ctx, o, level); err != nil {
		return nil, err
	}
	err = c.refineBoundary(ctx, o, func(refine []bool) (int, error) {
		o.MarkAdditionalLayers(refine, c.settings.AdditionalRefinementLayers)
		return o.RefineSelectedBoxes(refine, c.settings.HexRefinement), nil
	})
	if err != nil {
		return nil, err
	}
	o.ClassifyLeaves()
	return o, nil
}

// CreateOctreeBoxesDistributed builds the octree over all ranks of comm.
// Every rank must call it with the same surface and settings; each returns
// the tree holding its own leaves and their halo.
func (c *Creator) CreateOctreeBoxesDistributed(ctx context.Context, comm parallel.Comm) (*Octree, error) {
	strategy, err := c.settings.PartitionStrategy()
	if err != nil {
		return nil, err
	}
	o, level, err := c.newOctree(WithRank(comm.Rank()))
	if err != nil {
		return nil, err
	}
	if err := c.refineUniformly(ctx, o, level); err != nil {
		return nil, err
	}
	if err := o.DistributeLeavesToProcessors(ctx, comm, strategy); err != nil {
		return nil, errors.Wrap(err, "distributing leaves")
	}
	err = c.refineBoundary(ctx, o, func(refine []bool) (int, error) {
		if _, err := o.MarkAdditionalLayersParallel(ctx, comm, refine, c.settings.AdditionalRefinementLayers); err != nil {
			return 0, err
		}
		return o.RefineSelectedBoxesParallel(ctx, comm, refine, c.settings.HexRefinement)
	})
	if err != nil {
		return nil, errors.Wrap(err, "refining boundary")
	}
	if err := o.LoadDistribution(ctx, comm, strategy); err != nil {
		return nil, errors.Wrap(err, "balancing load")
	}
	if err := o.ClassifyLeavesDistributed(ctx, comm); err != nil {
		return nil, errors.Wrap(err, "classifying leaves")
	}
	return o, nil
}
