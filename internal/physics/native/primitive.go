package native

import (
	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// triangleSource is implemented by mesh and terrain shapes.
type triangleSource interface {
	Triangles() []physics.Triangle
	TrianglesIn(box rl.BoundingBox, fn func(i int, tri *physics.Triangle) bool)
}

type primitiveKind int

const (
	primRound primitiveKind = iota // sphere or capsule: a segment with a radius
	primBox
	primSoup
)

// primitive is one convex piece of a body's shape placed in world space.
// Cylinders and convex hulls collide as their bounding boxes.
type primitive struct {
	kind   primitiveKind
	shape  physics.Shape // the leaf shape
	child  uint32
	pose   physics.Transform
	bounds rl.BoundingBox

	// primRound
	a, b   rl.Vector3
	radius float32

	// primBox
	box orientedBox

	// primSoup, triangles in shape space
	soup triangleSource
}

// primitives flattens shape placed at pose into world-space pieces.
func primitives(shape physics.Shape, pose physics.Transform) []primitive {
	return appendPrimitives(nil, shape, pose, physics.NoChild)
}

func appendPrimitives(out []primitive, shape physics.Shape, pose physics.Transform, child uint32) []primitive {
	switch s := shape.(type) {
	case *physics.SphereShape:
		out = append(out, primitive{kind: primRound, a: pose.Position, b: pose.Position, radius: s.Radius()})
	case *physics.CapsuleShape:
		a, b := s.Segment()
		out = append(out, primitive{kind: primRound, a: pose.Apply(a), b: pose.Apply(b), radius: s.Radius()})
	case *physics.BoxShape:
		out = append(out, primitive{kind: primBox, box: placeBox(pose, rl.Vector3{}, s.HalfExtents())})
	case *physics.CylinderShape, *physics.ConvexShape:
		local := shape.AABB()
		center := rl.Vector3Scale(rl.Vector3Add(local.Min, local.Max), 0.5)
		half := rl.Vector3Scale(rl.Vector3Subtract(local.Max, local.Min), 0.5)
		out = append(out, primitive{kind: primBox, box: placeBox(pose, center, half)})
	case triangleSource:
		out = append(out, primitive{kind: primSoup, soup: s})
	case physics.CompoundShape:
		for i := 0; i < s.ChildCount(); i++ {
			offset, _ := s.ChildOffset(i)
			out = appendPrimitives(out, s.Child(i), pose.Mul(offset), uint32(i))
		}
		return out
	default:
		return out
	}
	p := &out[len(out)-1]
	p.shape = shape
	p.child = child
	p.pose = pose
	p.bounds = shape.TransformedAABB(pose)
	return out
}

// support returns the world-space point of a convex primitive furthest along
// dir. Soup primitives have no support; their triangles are tested one by one.
func (p *primitive) support(dir rl.Vector3) rl.Vector3 {
	switch s := p.shape.(type) {
	case *physics.CylinderShape:
		local := p.pose.InverseApplyVector(dir)
		out := rl.Vector3{Y: s.Length() / 2}
		if local.Y < 0 {
			out.Y = -out.Y
		}
		if l := sqrtf(local.X*local.X + local.Z*local.Z); l > 1e-9 {
			out.X = local.X / l * s.Radius()
			out.Z = local.Z / l * s.Radius()
		}
		return p.pose.Apply(out)
	case *physics.ConvexShape:
		return p.pose.Apply(s.Support(p.pose.InverseApplyVector(dir)))
	}
	switch p.kind {
	case primRound:
		out := p.a
		if rl.Vector3DotProduct(rl.Vector3Subtract(p.b, p.a), dir) > 0 {
			out = p.b
		}
		if l := rl.Vector3Length(dir); l > 1e-9 {
			out = rl.Vector3Add(out, rl.Vector3Scale(dir, p.radius/l))
		}
		return out
	case primBox:
		return p.box.support(dir)
	}
	return p.pose.Position
}

// closestOnSegment returns the point on segment ab closest to p.
func closestOnSegment(p, a, b rl.Vector3) rl.Vector3 {
	ab := rl.Vector3Subtract(b, a)
	denom := rl.Vector3DotProduct(ab, ab)
	if denom < 1e-12 {
		return a
	}
	t := clampf(rl.Vector3DotProduct(rl.Vector3Subtract(p, a), ab)/denom, 0, 1)
	return rl.Vector3Add(a, rl.Vector3Scale(ab, t))
}

// closestSegments returns the closest points between segments p1q1 and p2q2.
func closestSegments(p1, q1, p2, q2 rl.Vector3) (rl.Vector3, rl.Vector3) {
	d1 := rl.Vector3Subtract(q1, p1)
	d2 := rl.Vector3Subtract(q2, p2)
	r := rl.Vector3Subtract(p1, p2)
	a := rl.Vector3DotProduct(d1, d1)
	e := rl.Vector3DotProduct(d2, d2)
	f := rl.Vector3DotProduct(d2, r)

	var s, t float32
	switch {
	case a < 1e-12 && e < 1e-12:
		return p1, p2
	case a < 1e-12:
		t = clampf(f/e, 0, 1)
	default:
		c := rl.Vector3DotProduct(d1, r)
		if e < 1e-12 {
			s = clampf(-c/a, 0, 1)
		} else {
			b := rl.Vector3DotProduct(d1, d2)
			denom := a*e - b*b
			if denom > 1e-12 {
				s = clampf((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clampf(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = clampf((b-c)/a, 0, 1)
			}
		}
	}
	return rl.Vector3Add(p1, rl.Vector3Scale(d1, s)), rl.Vector3Add(p2, rl.Vector3Scale(d2, t))
}

// closestPointOnTriangle finds the closest point on a triangle to point p
func closestPointOnTriangle(p, a, b, c rl.Vector3) rl.Vector3 {
	// Check if P in vertex region outside A
	ab := rl.Vector3Subtract(b, a)
	ac := rl.Vector3Subtract(c, a)
	ap := rl.Vector3Subtract(p, a)

	d1 := rl.Vector3DotProduct(ab, ap)
	d2 := rl.Vector3DotProduct(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	// Check if P in vertex region outside B
	bp := rl.Vector3Subtract(p, b)
	d3 := rl.Vector3DotProduct(ab, bp)
	d4 := rl.Vector3DotProduct(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	// Check if P in edge region of AB
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return rl.Vector3Add(a, rl.Vector3Scale(ab, v))
	}

	// Check if P in vertex region outside C
	cp := rl.Vector3Subtract(p, c)
	d5 := rl.Vector3DotProduct(ab, cp)
	d6 := rl.Vector3DotProduct(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	// Check if P in edge region of AC
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return rl.Vector3Add(a, rl.Vector3Scale(ac, w))
	}

	// Check if P in edge region of BC
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return rl.Vector3Add(b, rl.Vector3Scale(rl.Vector3Subtract(c, b), w))
	}

	// P inside face region
	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return rl.Vector3Add(a, rl.Vector3Add(rl.Vector3Scale(ab, v), rl.Vector3Scale(ac, w)))
}

// closestSegmentTriangle approximates the closest points between a segment
// and a triangle by alternating projections.
func closestSegmentTriangle(a, b rl.Vector3, tri *physics.Triangle) (onSegment, onTriangle rl.Vector3) {
	onSegment = rl.Vector3Scale(rl.Vector3Add(a, b), 0.5)
	for i := 0; i < 4; i++ {
		onTriangle = closestPointOnTriangle(onSegment, tri.V0, tri.V1, tri.V2)
		onSegment = closestOnSegment(onTriangle, a, b)
	}
	// The segment may cross the triangle's plane
	da := rl.Vector3DotProduct(rl.Vector3Subtract(a, tri.V0), tri.Normal)
	db := rl.Vector3DotProduct(rl.Vector3Subtract(b, tri.V0), tri.Normal)
	if (da < 0) != (db < 0) {
		t := da / (da - db)
		p := rl.Vector3Lerp(a, b, t)
		q := closestPointOnTriangle(p, tri.V0, tri.V1, tri.V2)
		if rl.Vector3Distance(p, q) < rl.Vector3Distance(onSegment, onTriangle) {
			return p, q
		}
	}
	return onSegment, onTriangle
}

// closestSegmentBox approximates the closest points between a segment and a box.
func closestSegmentBox(a, b rl.Vector3, box orientedBox) (onSegment, onBox rl.Vector3) {
	onSegment = closestOnSegment(box.center, a, b)
	for i := 0; i < 4; i++ {
		onBox = box.closest(onSegment)
		onSegment = closestOnSegment(onBox, a, b)
	}
	return onSegment, onBox
}
