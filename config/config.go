package config

import (
	"io"
	"math"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/partitions"
)

// Settings controls how the octree is built
type Settings struct {
	// Largest cell allowed anywhere in the domain
	MaxCellSize float64 `toml:"maxCellSize"`
	// Target size of cells holding surface triangles
	BoundaryCellSize float64 `toml:"boundaryCellSize"`

	MinLevel int `toml:"minLevel"`
	MaxLevel int `toml:"maxLevel"`

	// Layers of neighbours refined together with boundary cells
	AdditionalRefinementLayers int `toml:"additionalRefinementLayers"`
	// Refine all eight sons of a parent when one of them is refined
	HexRefinement bool `toml:"hexRefinement"`

	// Explicit root box, derived from the surface when absent
	RootBox *Box `toml:"rootBox"`

	Parallel Parallel `toml:"parallel"`
	Export   Export   `toml:"export"`
}

// Box is an axis aligned box given by two corners
type Box struct {
	Min [3]float64 `toml:"min"`
	Max [3]float64 `toml:"max"`
}

// R3 converts the box to gonum form
func (b Box) R3() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
		Max: r3.Vec{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
	}
}

type Parallel struct {
	Ranks    int    `toml:"ranks"`
	Strategy string `toml:"strategy"`
}

type Export struct {
	JSON string `toml:"json"`
}

// Default returns settings that build a coarse octree on a single rank
func Default() Settings {
	return Settings{
		MaxCellSize:      1,
		BoundaryCellSize: 0.25,
		MinLevel:         0,
		MaxLevel:         10,
		Parallel: Parallel{
			Ranks:    1,
			Strategy: partitions.SpaceFillingCurve.String(),
		},
	}
}

// Decode reads TOML on top of the defaults
func Decode(r io.Reader) (Settings, error) {
	s := Default()
	if _, err := toml.DecodeReader(r, &s); err != nil {
		return s, errors.Wrap(err, "decoding settings")
	}
	return s, s.Validate()
}

// Load reads settings from a TOML file
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, errors.Wrap(err, "opening settings")
	}
	defer f.Close()
	s, err := Decode(f)
	return s, errors.Wrapf(err, "%s", path)
}

// Validate rejects settings that cannot produce an octree
func (s Settings) Validate() error {
	if !(s.MaxCellSize > 0) {
		return errors.Errorf("maxCellSize must be positive, got %g", s.MaxCellSize)
	}
	if !(s.BoundaryCellSize > 0) {
		return errors.Errorf("boundaryCellSize must be positive, got %g", s.BoundaryCellSize)
	}
	if s.BoundaryCellSize > s.MaxCellSize {
		return errors.Errorf("boundaryCellSize %g exceeds maxCellSize %g", s.BoundaryCellSize, s.MaxCellSize)
	}
	if s.MinLevel < 0 || s.MaxLevel < s.MinLevel || s.MaxLevel > cube.MaxLevel {
		return errors.Errorf("levels must satisfy 0 <= minLevel <= maxLevel <= %d, got %d and %d",
			cube.MaxLevel, s.MinLevel, s.MaxLevel)
	}
	if s.AdditionalRefinementLayers < 0 {
		return errors.Errorf("additionalRefinementLayers must not be negative, got %d", s.AdditionalRefinementLayers)
	}
	if s.RootBox != nil {
		lo, hi := s.RootBox.Min, s.RootBox.Max
		for d := 0; d < 3; d++ {
			if math.IsNaN(lo[d]) || math.IsNaN(hi[d]) || !(hi[d] > lo[d]) {
				return errors.Errorf("rootBox is degenerate along axis %d: [%g, %g]", d, lo[d], hi[d])
			}
		}
	}
	if s.Parallel.Ranks < 1 {
		return errors.Errorf("parallel.ranks must be at least 1, got %d", s.Parallel.Ranks)
	}
	if _, err := s.PartitionStrategy(); err != nil {
		return errors.Wrap(err, "parallel.strategy")
	}
	return nil
}

// PartitionStrategy resolves the configured strategy name
func (s Settings) PartitionStrategy() (partitions.PartitionStrategy, error) {
	return partitions.ParseStrategy(s.Parallel.Strategy)
}
