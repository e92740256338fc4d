package integration

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/notargets/meshoctree/config"
	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/octree"
	"github.com/notargets/meshoctree/parallel"
	"github.com/notargets/meshoctree/surface"
)

// Build creates the octree over surf on settings.Parallel.Ranks local ranks.
// One rank builds serially; more split the tree with the distributed
// creator. The returned trees are indexed by rank.
func Build(ctx context.Context, surf *surface.Surface, settings config.Settings,
	log logrus.FieldLogger) ([]*octree.Octree, error) {
	if settings.Parallel.Ranks <= 1 {
		o, err := octree.NewCreator(surf, settings, octree.WithLogger(log)).CreateOctreeBoxes(ctx)
		if err != nil {
			return nil, err
		}
		return []*octree.Octree{o}, nil
	}
	return BuildDistributed(ctx, surf, settings, settings.Parallel.Ranks, log)
}

// BuildDistributed runs the distributed creator on ranks local ranks
func BuildDistributed(ctx context.Context, surf *surface.Surface, settings config.Settings,
	ranks int, log logrus.FieldLogger) ([]*octree.Octree, error) {
	trees := make([]*octree.Octree, ranks)
	err := parallel.Run(ctx, ranks, func(ctx context.Context, comm parallel.Comm) error {
		c := octree.NewCreator(surf, settings, octree.WithLogger(log))
		o, err := c.CreateOctreeBoxesDistributed(ctx, comm)
		if err != nil {
			return err
		}
		trees[comm.Rank()] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trees, nil
}

// OwnedLeaves maps every owned leaf of the trees to its owning rank. A leaf
// owned twice is an error.
func OwnedLeaves(trees []*octree.Octree) (map[cube.Coordinates]int, error) {
	owned := make(map[cube.Coordinates]int)
	for r, o := range trees {
		for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
			if !o.IsOwned(leafI) {
				continue
			}
			cc := o.LeafCoordinates(leafI)
			if prev, dup := owned[cc]; dup {
				return nil, errors.Errorf("leaf %s owned by ranks %d and %d", cc, prev, r)
			}
			owned[cc] = r
		}
	}
	return owned, nil
}

// OwnedTypes maps every owned leaf of the trees to its type
func OwnedTypes(trees []*octree.Octree) map[cube.Coordinates]cube.Type {
	types := make(map[cube.Coordinates]cube.Type)
	for _, o := range trees {
		for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
			if o.IsOwned(leafI) {
				types[o.LeafCoordinates(leafI)] = o.LeafType(leafI)
			}
		}
	}
	return types
}

// Summary counts what a build produced
type Summary struct {
	Ranks  int
	Leaves int
	// Owned leaves per rank
	PerRank []int
	// Halo leaves per rank
	Halo   []int
	ByType map[cube.Type]int
}

// Summarize counts the owned and halo leaves of the trees
func Summarize(trees []*octree.Octree) Summary {
	s := Summary{
		Ranks:   len(trees),
		PerRank: make([]int, len(trees)),
		Halo:    make([]int, len(trees)),
		ByType:  make(map[cube.Type]int),
	}
	for r, o := range trees {
		for leafI := 0; leafI < o.NumberOfLeaves(); leafI++ {
			if !o.IsOwned(leafI) {
				s.Halo[r]++
				continue
			}
			s.PerRank[r]++
			s.ByType[o.LeafType(leafI)]++
		}
		s.Leaves += s.PerRank[r]
	}
	return s
}

// Types returns the leaf types present in the summary, in flag order
func (s Summary) Types() []cube.Type {
	types := make([]cube.Type, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
