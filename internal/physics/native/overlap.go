package native

import (
	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const gjkMaxIterations = 64

type supportFunc func(dir rl.Vector3) rl.Vector3

func triangleSupport(v0, v1, v2 rl.Vector3) supportFunc {
	return func(dir rl.Vector3) rl.Vector3 {
		best := v0
		bestDot := rl.Vector3DotProduct(v0, dir)
		if d := rl.Vector3DotProduct(v1, dir); d > bestDot {
			best, bestDot = v1, d
		}
		if d := rl.Vector3DotProduct(v2, dir); d > bestDot {
			best = v2
		}
		return best
	}
}

// gjk reports whether two convex sets intersect. Touching counts as overlap.
func gjk(a, b supportFunc) bool {
	minkowski := func(d rl.Vector3) rl.Vector3 {
		return rl.Vector3Subtract(a(d), b(rl.Vector3Negate(d)))
	}
	d := rl.Vector3{X: 1}
	simplex := make([]rl.Vector3, 0, 4)
	s := minkowski(d)
	simplex = append(simplex, s)
	d = rl.Vector3Negate(s)
	for i := 0; i < gjkMaxIterations; i++ {
		if rl.Vector3DotProduct(d, d) < 1e-12 {
			return true
		}
		p := minkowski(d)
		if rl.Vector3DotProduct(p, d) < 0 {
			return false
		}
		simplex = append(simplex, p)
		var done bool
		simplex, d, done = nextSimplex(simplex)
		if done {
			return true
		}
	}
	return true
}

// nextSimplex reduces the simplex to the feature closest to the origin and
// returns the next search direction. The newest point is last.
func nextSimplex(s []rl.Vector3) ([]rl.Vector3, rl.Vector3, bool) {
	switch len(s) {
	case 2:
		return lineCase(s[1], s[0], s)
	case 3:
		return triangleCase(s[2], s[1], s[0], s)
	default:
		a, b, c, d := s[3], s[2], s[1], s[0]
		ao := rl.Vector3Negate(a)
		ab := rl.Vector3Subtract(b, a)
		ac := rl.Vector3Subtract(c, a)
		ad := rl.Vector3Subtract(d, a)
		if rl.Vector3DotProduct(rl.Vector3CrossProduct(ab, ac), ao) > 0 {
			return triangleCase(a, b, c, s)
		}
		if rl.Vector3DotProduct(rl.Vector3CrossProduct(ac, ad), ao) > 0 {
			return triangleCase(a, c, d, s)
		}
		if rl.Vector3DotProduct(rl.Vector3CrossProduct(ad, ab), ao) > 0 {
			return triangleCase(a, d, b, s)
		}
		return s, rl.Vector3{}, true
	}
}

func lineCase(a, b rl.Vector3, s []rl.Vector3) ([]rl.Vector3, rl.Vector3, bool) {
	ab := rl.Vector3Subtract(b, a)
	ao := rl.Vector3Negate(a)
	s = s[:0]
	if rl.Vector3DotProduct(ab, ao) > 0 {
		s = append(s, b, a)
		return s, rl.Vector3CrossProduct(rl.Vector3CrossProduct(ab, ao), ab), false
	}
	s = append(s, a)
	return s, ao, false
}

// triangleCase handles triangle abc with a the newest point.
func triangleCase(a, b, c rl.Vector3, s []rl.Vector3) ([]rl.Vector3, rl.Vector3, bool) {
	ab := rl.Vector3Subtract(b, a)
	ac := rl.Vector3Subtract(c, a)
	ao := rl.Vector3Negate(a)
	abc := rl.Vector3CrossProduct(ab, ac)

	if rl.Vector3DotProduct(rl.Vector3CrossProduct(abc, ac), ao) > 0 {
		if rl.Vector3DotProduct(ac, ao) > 0 {
			s = append(s[:0], c, a)
			return s, rl.Vector3CrossProduct(rl.Vector3CrossProduct(ac, ao), ac), false
		}
		return lineCase(a, b, s)
	}
	if rl.Vector3DotProduct(rl.Vector3CrossProduct(ab, abc), ao) > 0 {
		return lineCase(a, b, s)
	}
	if rl.Vector3DotProduct(abc, ao) > 0 {
		s = append(s[:0], c, b, a)
		return s, abc, false
	}
	s = append(s[:0], b, c, a)
	return s, rl.Vector3Negate(abc), false
}

// primitivesOverlap tests two primitives exactly, walking triangles for soups.
func primitivesOverlap(pa, pb *primitive) bool {
	if !overlaps(pa.bounds, pb.bounds) {
		return false
	}
	if pa.kind == primSoup && pb.kind == primSoup {
		found := false
		eachTriangle(pa, pb.bounds, func(ta supportFunc, tb rl.BoundingBox) bool {
			eachTriangle(pb, tb, func(other supportFunc, _ rl.BoundingBox) bool {
				found = gjk(ta, other)
				return found
			})
			return found
		})
		return found
	}
	if pa.kind == primSoup {
		pa, pb = pb, pa
	}
	if pb.kind == primSoup {
		found := false
		eachTriangle(pb, pa.bounds, func(tri supportFunc, _ rl.BoundingBox) bool {
			found = gjk(pa.support, tri)
			return found
		})
		return found
	}
	return gjk(pa.support, pb.support)
}

// eachTriangle visits the world-space triangles of a soup primitive that may
// touch the world bounds box.
func eachTriangle(p *primitive, box rl.BoundingBox, fn func(tri supportFunc, bounds rl.BoundingBox) bool) {
	query := expand(soupBounds(p.pose, box), contactMargin)
	p.soup.TrianglesIn(query, func(_ int, tri *physics.Triangle) bool {
		v0, v1, v2 := p.pose.Apply(tri.V0), p.pose.Apply(tri.V1), p.pose.Apply(tri.V2)
		bounds := segmentBounds(v0, v1)
		bounds.Min = rl.Vector3Min(bounds.Min, v2)
		bounds.Max = rl.Vector3Max(bounds.Max, v2)
		return fn(triangleSupport(v0, v1, v2), bounds)
	})
}
