package surface

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFeatureAngle is the dihedral angle in degrees above which an edge
// shared by two triangles is treated as a feature edge
const DefaultFeatureAngle = 45.0

// Triangle indexes three surface points and the patch it belongs to
type Triangle struct {
	V     [3]int
	Patch int
}

// Surface is a triangulated boundary: the geometry the octree is refined
// against. Points and triangles are immutable after New.
type Surface struct {
	Points     []r3.Vec
	Triangles  []Triangle
	PatchNames []string

	// Edges holds the feature edges as point pairs, lower index first
	Edges [][2]int
	// EdgeTriangles lists the triangles attached to each feature edge
	EdgeTriangles [][]int

	bb           r3.Box
	featureAngle float64
}

// Option configures New
type Option func(*Surface)

// WithFeatureAngle sets the feature edge threshold in degrees
func WithFeatureAngle(deg float64) Option {
	return func(s *Surface) { s.featureAngle = deg }
}

// New validates the triangles against the points and extracts feature edges
func New(points []r3.Vec, triangles []Triangle, patchNames []string, opts ...Option) (*Surface, error) {
	if len(points) == 0 {
		return nil, errors.New("surface has no points")
	}
	s := &Surface{
		Points:       points,
		Triangles:    triangles,
		PatchNames:   patchNames,
		featureAngle: DefaultFeatureAngle,
	}
	for _, opt := range opts {
		opt(s)
	}
	for t, tri := range triangles {
		for _, v := range tri.V {
			if v < 0 || v >= len(points) {
				return nil, errors.Errorf("triangle %d references point %d, surface has %d points",
					t, v, len(points))
			}
		}
		if tri.V[0] == tri.V[1] || tri.V[1] == tri.V[2] || tri.V[0] == tri.V[2] {
			return nil, errors.Errorf("triangle %d is degenerate: %v", t, tri.V)
		}
		if tri.Patch < 0 || (len(patchNames) > 0 && tri.Patch >= len(patchNames)) {
			return nil, errors.Errorf("triangle %d has patch %d, surface has %d patches",
				t, tri.Patch, len(patchNames))
		}
	}

	s.bb = boxAround(points...)
	s.findFeatureEdges()
	return s, nil
}

// findFeatureEdges collects open, non-manifold, patch boundary and sharp edges
func (s *Surface) findFeatureEdges() {
	edgeTris := make(map[[2]int][]int)
	for t, tri := range s.Triangles {
		for e := 0; e < 3; e++ {
			a, b := tri.V[e], tri.V[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			edgeTris[key] = append(edgeTris[key], t)
		}
	}

	cosLimit := math.Cos(s.featureAngle * math.Pi / 180)
	for key, tris := range edgeTris {
		feature := false
		switch {
		case len(tris) != 2:
			feature = true
		case s.Triangles[tris[0]].Patch != s.Triangles[tris[1]].Patch:
			feature = true
		default:
			n0 := r3.Unit(s.TriangleNormal(tris[0]))
			n1 := r3.Unit(s.TriangleNormal(tris[1]))
			feature = r3.Dot(n0, n1) < cosLimit
		}
		if feature {
			s.Edges = append(s.Edges, key)
		}
	}

	// Map iteration order is random, edge labels must not be
	sort.Slice(s.Edges, func(i, j int) bool {
		if s.Edges[i][0] != s.Edges[j][0] {
			return s.Edges[i][0] < s.Edges[j][0]
		}
		return s.Edges[i][1] < s.Edges[j][1]
	})
	s.EdgeTriangles = make([][]int, len(s.Edges))
	for e, key := range s.Edges {
		s.EdgeTriangles[e] = edgeTris[key]
	}
}

// BoundingBox returns the box around all surface points
func (s *Surface) BoundingBox() r3.Box { return s.bb }

func (s *Surface) NumberOfTriangles() int { return len(s.Triangles) }

func (s *Surface) NumberOfEdges() int { return len(s.Edges) }

// TrianglePoints returns the corners of triangle t
func (s *Surface) TrianglePoints(t int) [3]r3.Vec {
	tri := s.Triangles[t].V
	return [3]r3.Vec{s.Points[tri[0]], s.Points[tri[1]], s.Points[tri[2]]}
}

// TriangleNormal returns the area weighted normal of triangle t
func (s *Surface) TriangleNormal(t int) r3.Vec {
	p := s.TrianglePoints(t)
	return r3.Scale(0.5, r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0])))
}

// TriangleCentroid returns the centroid of triangle t
func (s *Surface) TriangleCentroid(t int) r3.Vec {
	p := s.TrianglePoints(t)
	return r3.Scale(1.0/3.0, r3.Add(r3.Add(p[0], p[1]), p[2]))
}

// TriangleBox returns the bounding box of triangle t
func (s *Surface) TriangleBox(t int) r3.Box {
	p := s.TrianglePoints(t)
	return boxAround(p[:]...)
}

// EdgePoints returns the end points of feature edge e
func (s *Surface) EdgePoints(e int) [2]r3.Vec {
	return [2]r3.Vec{s.Points[s.Edges[e][0]], s.Points[s.Edges[e][1]]}
}

// EdgeBox returns the bounding box of feature edge e
func (s *Surface) EdgeBox(e int) r3.Box {
	p := s.EdgePoints(e)
	return boxAround(p[:]...)
}

func boxAround(pts ...r3.Vec) r3.Box {
	bb := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		bb.Min = r3.Vec{X: math.Min(bb.Min.X, p.X), Y: math.Min(bb.Min.Y, p.Y), Z: math.Min(bb.Min.Z, p.Z)}
		bb.Max = r3.Vec{X: math.Max(bb.Max.X, p.X), Y: math.Max(bb.Max.Y, p.Y), Z: math.Max(bb.Max.Z, p.Z)}
	}
	return bb
}
