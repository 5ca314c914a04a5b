package native

import (
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// rayHit is a hit in the ray's parameter space: point = origin + direction*t.
type rayHit struct {
	t      float32
	normal rl.Vector3
}

// castPrimitive intersects the segment origin..origin+dir with one primitive.
// A segment that starts inside a solid shape hits at t=0.
func castPrimitive(p *primitive, origin, dir rl.Vector3) (rayHit, bool) {
	o := p.pose.InverseApply(origin)
	d := p.pose.InverseApplyVector(dir)

	var hit rayHit
	var ok bool
	switch s := p.shape.(type) {
	case *physics.SphereShape:
		hit, ok = raycastSphere(o, d, rl.Vector3{}, s.Radius())
	case *physics.BoxShape:
		hit, ok = raycastBox(o, d, rl.Vector3Negate(s.HalfExtents()), s.HalfExtents())
	case *physics.CapsuleShape:
		hit, ok = raycastCapsule(o, d, s.Length()/2, s.Radius())
	case *physics.CylinderShape:
		hit, ok = raycastCylinder(o, d, s.Length()/2, s.Radius())
	case *physics.ConvexShape:
		hit, ok = raycastPlanes(o, d, s.Planes())
	default:
		if p.kind == primSoup {
			hit, ok = raycastSoup(p.soup, o, d)
		}
	}
	if !ok {
		return rayHit{}, false
	}
	hit.normal = p.pose.ApplyVector(hit.normal)
	return hit, true
}

func raycastSphere(origin, direction, center rl.Vector3, radius float32) (rayHit, bool) {
	oc := rl.Vector3Subtract(origin, center)
	c := rl.Vector3DotProduct(oc, oc) - radius*radius
	if c <= 0 {
		return rayHit{t: 0, normal: insideNormal(direction)}, true
	}
	a := rl.Vector3DotProduct(direction, direction)
	if a < 1e-12 {
		return rayHit{}, false
	}
	b := 2.0 * rl.Vector3DotProduct(oc, direction)

	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return rayHit{}, false
	}

	t := (-b - float32(math.Sqrt(float64(discriminant)))) / (2 * a)
	if t < 0 || t > 1 {
		return rayHit{}, false
	}

	point := rl.Vector3Add(origin, rl.Vector3Scale(direction, t))
	normal := rl.Vector3Normalize(rl.Vector3Subtract(point, center))

	return rayHit{t: t, normal: normal}, true
}

// raycastBox runs the slab test against the box [min, max].
func raycastBox(origin, direction, min, max rl.Vector3) (rayHit, bool) {
	tmin, tmax := float32(-1e30), float32(1e30)
	var normal rl.Vector3

	o := [3]float32{origin.X, origin.Y, origin.Z}
	d := [3]float32{direction.X, direction.Y, direction.Z}
	lo := [3]float32{min.X, min.Y, min.Z}
	hi := [3]float32{max.X, max.Y, max.Z}
	for axis := 0; axis < 3; axis++ {
		if d[axis] == 0 {
			if o[axis] < lo[axis] || o[axis] > hi[axis] {
				return rayHit{}, false
			}
			continue
		}
		t1 := (lo[axis] - o[axis]) / d[axis]
		t2 := (hi[axis] - o[axis]) / d[axis]
		sign := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tmin {
			tmin = t1
			normal = rl.Vector3{}
			switch axis {
			case 0:
				normal.X = sign
			case 1:
				normal.Y = sign
			case 2:
				normal.Z = sign
			}
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return rayHit{}, false
		}
	}

	if tmax < 0 || tmin > 1 {
		return rayHit{}, false
	}
	if tmin < 0 {
		return rayHit{t: 0, normal: insideNormal(direction)}, true
	}
	return rayHit{t: tmin, normal: normal}, true
}

// raycastCapsule intersects a capsule along the local Y axis.
func raycastCapsule(origin, direction rl.Vector3, halfLength, radius float32) (rayHit, bool) {
	best := rayHit{t: 2}
	found := false
	if hit, ok := raycastTube(origin, direction, halfLength, radius); ok {
		best, found = hit, true
	}
	for _, y := range [2]float32{-halfLength, halfLength} {
		if hit, ok := raycastSphere(origin, direction, rl.Vector3{Y: y}, radius); ok && hit.t < best.t {
			best, found = hit, true
		}
	}
	return best, found
}

// raycastCylinder intersects a capped cylinder along the local Y axis.
func raycastCylinder(origin, direction rl.Vector3, halfLength, radius float32) (rayHit, bool) {
	if absf(origin.Y) <= halfLength && origin.X*origin.X+origin.Z*origin.Z <= radius*radius {
		return rayHit{t: 0, normal: insideNormal(direction)}, true
	}
	best := rayHit{t: 2}
	found := false
	if hit, ok := raycastTube(origin, direction, halfLength, radius); ok {
		best, found = hit, true
	}
	if direction.Y != 0 {
		for _, y := range [2]float32{-halfLength, halfLength} {
			t := (y - origin.Y) / direction.Y
			if t < 0 || t > 1 || t >= best.t {
				continue
			}
			x := origin.X + direction.X*t
			z := origin.Z + direction.Z*t
			if x*x+z*z <= radius*radius {
				n := rl.Vector3{Y: 1}
				if y < 0 {
					n.Y = -1
				}
				best, found = rayHit{t: t, normal: n}, true
			}
		}
	}
	return best, found
}

// raycastTube intersects the side of a Y-axis cylinder between -h and h.
func raycastTube(origin, direction rl.Vector3, h, radius float32) (rayHit, bool) {
	a := direction.X*direction.X + direction.Z*direction.Z
	if a < 1e-12 {
		return rayHit{}, false
	}
	b := 2 * (origin.X*direction.X + origin.Z*direction.Z)
	c := origin.X*origin.X + origin.Z*origin.Z - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return rayHit{}, false
	}
	t := (-b - sqrtf(disc)) / (2 * a)
	if t < 0 || t > 1 {
		return rayHit{}, false
	}
	y := origin.Y + direction.Y*t
	if y < -h || y > h {
		return rayHit{}, false
	}
	n := rl.Vector3Normalize(rl.Vector3{X: origin.X + direction.X*t, Z: origin.Z + direction.Z*t})
	return rayHit{t: t, normal: n}, true
}

// raycastPlanes clips the segment against the face planes of a convex hull.
func raycastPlanes(origin, direction rl.Vector3, planes []physics.Plane) (rayHit, bool) {
	tmin, tmax := float32(0), float32(1)
	var normal rl.Vector3
	entered := false
	for _, pl := range planes {
		denom := rl.Vector3DotProduct(pl.Normal, direction)
		dist := pl.D - rl.Vector3DotProduct(pl.Normal, origin)
		if absf(denom) < 1e-9 {
			if dist < 0 {
				return rayHit{}, false
			}
			continue
		}
		t := dist / denom
		if denom < 0 {
			if t > tmin {
				tmin, normal, entered = t, pl.Normal, true
			}
		} else if t < tmax {
			tmax = t
		}
		if tmin > tmax {
			return rayHit{}, false
		}
	}
	if !entered {
		return rayHit{t: 0, normal: insideNormal(direction)}, true
	}
	return rayHit{t: tmin, normal: normal}, true
}

// raycastSoup returns the closest triangle crossed by the segment. Triangles
// are two-sided; the normal faces the ray.
func raycastSoup(soup triangleSource, origin, direction rl.Vector3) (rayHit, bool) {
	best := rayHit{t: 2}
	found := false
	end := rl.Vector3Add(origin, direction)
	soup.TrianglesIn(segmentBounds(origin, end), func(_ int, tri *physics.Triangle) bool {
		if t, ok := rayTriangle(origin, direction, tri); ok && t < best.t {
			n := tri.Normal
			if rl.Vector3DotProduct(n, direction) > 0 {
				n = rl.Vector3Negate(n)
			}
			best, found = rayHit{t: t, normal: n}, true
		}
		return false
	})
	return best, found
}

// rayTriangle is the Moller-Trumbore intersection restricted to t in [0, 1].
func rayTriangle(origin, direction rl.Vector3, tri *physics.Triangle) (float32, bool) {
	e1 := rl.Vector3Subtract(tri.V1, tri.V0)
	e2 := rl.Vector3Subtract(tri.V2, tri.V0)
	p := rl.Vector3CrossProduct(direction, e2)
	det := rl.Vector3DotProduct(e1, p)
	if absf(det) < 1e-12 {
		return 0, false
	}
	inv := 1 / det
	s := rl.Vector3Subtract(origin, tri.V0)
	u := rl.Vector3DotProduct(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := rl.Vector3CrossProduct(s, e1)
	v := rl.Vector3DotProduct(direction, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := rl.Vector3DotProduct(e2, q) * inv
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// insideNormal is reported for rays starting inside a shape.
func insideNormal(direction rl.Vector3) rl.Vector3 {
	if rl.Vector3Length(direction) < 1e-12 {
		return rl.Vector3{Y: 1}
	}
	return rl.Vector3Negate(rl.Vector3Normalize(direction))
}
