package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoxesOverlap reports whether two closed boxes share at least one point
func BoxesOverlap(a, b r3.Box) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// TriangleIntersectsBox tests triangle t against a closed box with the
// separating axis theorem: the box normals, the triangle normal and the
// nine edge cross products.
func (s *Surface) TriangleIntersectsBox(t int, box r3.Box) bool {
	if !BoxesOverlap(s.TriangleBox(t), box) {
		return false
	}
	p := s.TrianglePoints(t)
	if box.Contains(p[0]) || box.Contains(p[1]) || box.Contains(p[2]) {
		return true
	}

	centre := box.Center()
	half := r3.Scale(0.5, box.Size())
	v0 := r3.Sub(p[0], centre)
	v1 := r3.Sub(p[1], centre)
	v2 := r3.Sub(p[2], centre)

	f0 := r3.Sub(v1, v0)
	f1 := r3.Sub(v2, v1)
	f2 := r3.Sub(v0, v2)

	// The box normals are covered by the bounding box test above
	if n := r3.Cross(f0, f1); r3.Norm2(n) > 0 {
		if separated(n, v0, v1, v2, half) {
			return false
		}
	}

	for _, f := range [3]r3.Vec{f0, f1, f2} {
		for _, axis := range [3]r3.Vec{
			{X: 0, Y: -f.Z, Z: f.Y},
			{X: f.Z, Y: 0, Z: -f.X},
			{X: -f.Y, Y: f.X, Z: 0},
		} {
			if r3.Norm2(axis) == 0 {
				continue
			}
			if separated(axis, v0, v1, v2, half) {
				return false
			}
		}
	}
	return true
}

// separated reports whether the projections of the triangle and the box
// onto axis are disjoint. Touching projections are not separated.
func separated(axis, v0, v1, v2, half r3.Vec) bool {
	p0, p1, p2 := r3.Dot(v0, axis), r3.Dot(v1, axis), r3.Dot(v2, axis)
	lo := math.Min(math.Min(p0, p1), p2)
	hi := math.Max(math.Max(p0, p1), p2)
	r := math.Abs(half.X*axis.X) + math.Abs(half.Y*axis.Y) + math.Abs(half.Z*axis.Z)
	return hi < -r || lo > r
}

// EdgeIntersectsBox clips feature edge e against the box slabs
func (s *Surface) EdgeIntersectsBox(e int, box r3.Box) bool {
	p := s.EdgePoints(e)
	return SegmentIntersectsBox(p[0], p[1], box)
}

// SegmentIntersectsBox reports whether the closed segment a-b meets the box
func SegmentIntersectsBox(a, b r3.Vec, box r3.Box) bool {
	d := r3.Sub(b, a)
	tmin, tmax := 0.0, 1.0
	o := [3]float64{a.X, a.Y, a.Z}
	dir := [3]float64{d.X, d.Y, d.Z}
	lo := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}
	for ax := 0; ax < 3; ax++ {
		if dir[ax] == 0 {
			if o[ax] < lo[ax] || o[ax] > hi[ax] {
				return false
			}
			continue
		}
		t1 := (lo[ax] - o[ax]) / dir[ax]
		t2 := (hi[ax] - o[ax]) / dir[ax]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// ClosestPointOnTriangle returns the point of triangle t nearest to p
func (s *Surface) ClosestPointOnTriangle(p r3.Vec, t int) r3.Vec {
	v := s.TrianglePoints(t)
	return closestPointOnTriangle(p, v[0], v[1], v[2])
}

// closestPointOnTriangle walks the Voronoi regions of the triangle corners,
// edges and face in turn
func closestPointOnTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}

	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}

	denom := 1 / (va + vb + vc)
	v, w := vb*denom, vc*denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}
