package native

import (
	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// contactMargin keeps touching pairs reported for one extra step.
const contactMargin = 0.005

// manifoldPoint is one contact point with its accumulated solver impulses.
type manifoldPoint struct {
	position rl.Vector3
	depth    float32

	normalImpulse   float32
	tangentImpulse  [2]float32
	normalMass      float32
	tangentMass     [2]float32
	velocityBias    float32
	restitutionBias float32
}

// manifold is the set of points between two primitives. Normal points from a to b.
type manifold struct {
	a, b     *body
	normal   rl.Vector3
	tangents [2]rl.Vector3
	points   []manifoldPoint
	friction float32
	bounce   float32
}

func (m *manifold) add(position rl.Vector3, depth float32) {
	m.points = append(m.points, manifoldPoint{position: position, depth: depth})
}

func (m *manifold) depth() float32 {
	var d float32
	for _, p := range m.points {
		if p.depth > d {
			d = p.depth
		}
	}
	return d
}

// collide runs the narrow phase between two primitives and appends the
// resulting manifolds. Soup against soup never collides.
func collide(a, b *body, pa, pb *primitive, out []manifold) []manifold {
	if !overlaps(expand(pa.bounds, contactMargin), pb.bounds) {
		return out
	}
	swap := false
	if pa.kind > pb.kind {
		pa, pb = pb, pa
		a, b = b, a
		swap = true
	}
	m := manifold{a: a, b: b}
	switch {
	case pa.kind == primRound && pb.kind == primRound:
		collideRounds(pa, pb, &m)
	case pa.kind == primRound && pb.kind == primBox:
		collideRoundBox(pa, pb, &m)
	case pa.kind == primBox && pb.kind == primBox:
		collideBoxes(pa, pb, &m)
	case pa.kind == primRound && pb.kind == primSoup:
		out = collideRoundSoup(pa, pb, a, b, swap, out)
		return out
	case pa.kind == primBox && pb.kind == primSoup:
		out = collideBoxSoup(pa, pb, a, b, swap, out)
		return out
	default:
		return out
	}
	if len(m.points) == 0 {
		return out
	}
	if swap {
		m.a, m.b = m.b, m.a
		m.normal = rl.Vector3Negate(m.normal)
	}
	return append(out, m)
}

func collideRounds(pa, pb *primitive, m *manifold) {
	qa, qb := closestSegments(pa.a, pa.b, pb.a, pb.b)
	d := rl.Vector3Subtract(qb, qa)
	dist := rl.Vector3Length(d)
	reach := pa.radius + pb.radius
	if dist >= reach+contactMargin {
		return
	}
	m.normal = rl.Vector3{Y: 1}
	if dist > 1e-6 {
		m.normal = rl.Vector3Scale(d, 1/dist)
	}
	depth := reach - dist
	point := rl.Vector3Add(qa, rl.Vector3Scale(m.normal, pa.radius-depth*0.5))
	m.add(point, depth)
}

func collideRoundBox(pr, pb *primitive, m *manifold) {
	s, q := closestSegmentBox(pr.a, pr.b, pb.box)
	d := rl.Vector3Subtract(q, s)
	dist := rl.Vector3Length(d)
	if dist > 1e-5 {
		if dist >= pr.radius+contactMargin {
			return
		}
		m.normal = rl.Vector3Scale(d, 1/dist)
		m.add(q, pr.radius-dist)
		return
	}
	// The segment reaches inside the box: push out along the shallowest face.
	ball := orientedBox{center: s, half: [3]float32{pr.radius, pr.radius, pr.radius}, axes: pb.box.axes}
	n, depth, ok := boxPenetration(ball, pb.box)
	if !ok || depth < 1e-6 {
		return
	}
	m.normal = n
	m.add(s, depth)
}

func collideBoxes(pa, pb *primitive, m *manifold) {
	n, depth, ok := boxPenetration(pa.box, pb.box)
	if !ok || depth < 1e-6 {
		return
	}
	m.normal = n
	for _, c := range pa.box.corners() {
		if pb.box.inside(c, contactMargin) {
			m.add(c, depth)
		}
	}
	for _, c := range pb.box.corners() {
		if pa.box.inside(c, contactMargin) {
			m.add(c, depth)
		}
	}
	if len(m.points) == 0 {
		// Edge against edge
		ca := pa.box.closest(pb.box.center)
		cb := pb.box.closest(ca)
		m.add(rl.Vector3Scale(rl.Vector3Add(ca, cb), 0.5), depth)
	}
	if len(m.points) > 4 {
		m.points = deepest(m.points, m.normal)
	}
}

// deepest keeps four points spread along the contact plane.
func deepest(points []manifoldPoint, normal rl.Vector3) []manifoldPoint {
	t := perpendicular(normal)
	u := rl.Vector3CrossProduct(normal, t)
	var pick [4]int
	var best [4]float32
	for i := range best {
		best[i] = -1e30
	}
	for i, p := range points {
		keys := [4]float32{
			rl.Vector3DotProduct(p.position, t),
			-rl.Vector3DotProduct(p.position, t),
			rl.Vector3DotProduct(p.position, u),
			-rl.Vector3DotProduct(p.position, u),
		}
		for k := range keys {
			if keys[k] > best[k] {
				best[k] = keys[k]
				pick[k] = i
			}
		}
	}
	out := make([]manifoldPoint, 0, 4)
	seen := map[int]bool{}
	for _, i := range pick {
		if !seen[i] {
			seen[i] = true
			out = append(out, points[i])
		}
	}
	return out
}

// soupBounds returns world bounds expressed in the soup's local space.
func soupBounds(pose physics.Transform, world rl.BoundingBox) rl.BoundingBox {
	inv := pose.Inverse()
	corners := boundsBox(world).corners()
	first := inv.Apply(corners[0])
	out := rl.BoundingBox{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := inv.Apply(c)
		out.Min = rl.Vector3Min(out.Min, p)
		out.Max = rl.Vector3Max(out.Max, p)
	}
	return out
}

// collideRoundSoup emits one manifold per touched triangle. Normals point
// from the soup to the round primitive before the swap is undone.
func collideRoundSoup(pr, ps *primitive, round, soup *body, swap bool, out []manifold) []manifold {
	pose := ps.pose
	a, b := pose.InverseApply(pr.a), pose.InverseApply(pr.b)
	query := expand(soupBounds(pose, pr.bounds), contactMargin)
	ps.soup.TrianglesIn(query, func(_ int, tri *physics.Triangle) bool {
		s, q := closestSegmentTriangle(a, b, tri)
		d := rl.Vector3Subtract(s, q)
		dist := rl.Vector3Length(d)
		if dist >= pr.radius+contactMargin {
			return false
		}
		n := tri.Normal
		if dist > 1e-6 {
			n = rl.Vector3Scale(d, 1/dist)
		}
		m := manifold{a: soup, b: round, normal: pose.ApplyVector(n)}
		m.add(pose.Apply(q), pr.radius-dist)
		if !swap {
			m.a, m.b = m.b, m.a
			m.normal = rl.Vector3Negate(m.normal)
		}
		out = append(out, m)
		return false
	})
	return out
}

func collideBoxSoup(pb, ps *primitive, box, soup *body, swap bool, out []manifold) []manifold {
	pose := ps.pose
	inv := pose.Inverse()
	local := orientedBox{center: inv.Apply(pb.box.center), half: pb.box.half}
	for i, a := range pb.box.axes {
		local.axes[i] = inv.ApplyVector(a)
	}
	query := expand(soupBounds(pose, pb.bounds), contactMargin)
	ps.soup.TrianglesIn(query, func(_ int, tri *physics.Triangle) bool {
		n, depth, ok := boxTriangleOverlap(local, tri)
		if !ok {
			return false
		}
		m := manifold{a: soup, b: box, normal: pose.ApplyVector(n)}
		limit := maxProjection(tri, n)
		for _, c := range local.corners() {
			if d := limit - rl.Vector3DotProduct(c, n); d > -contactMargin {
				m.add(pose.Apply(c), d)
			}
		}
		if len(m.points) == 0 {
			centroid := rl.Vector3Scale(rl.Vector3Add(tri.V0, rl.Vector3Add(tri.V1, tri.V2)), 1.0/3)
			m.add(pose.Apply(local.closest(centroid)), depth)
		}
		if len(m.points) > 4 {
			m.points = deepest(m.points, m.normal)
		}
		if !swap {
			m.a, m.b = m.b, m.a
			m.normal = rl.Vector3Negate(m.normal)
		}
		out = append(out, m)
		return false
	})
	return out
}

func maxProjection(tri *physics.Triangle, axis rl.Vector3) float32 {
	d0 := rl.Vector3DotProduct(tri.V0, axis)
	d1 := rl.Vector3DotProduct(tri.V1, axis)
	d2 := rl.Vector3DotProduct(tri.V2, axis)
	return max(d0, d1, d2)
}

// boxTriangleOverlap tests the thirteen separating axes between a box and a
// triangle. The returned axis points from the triangle toward the box.
func boxTriangleOverlap(box orientedBox, tri *physics.Triangle) (rl.Vector3, float32, bool) {
	edges := [3]rl.Vector3{
		rl.Vector3Subtract(tri.V1, tri.V0),
		rl.Vector3Subtract(tri.V2, tri.V1),
		rl.Vector3Subtract(tri.V0, tri.V2),
	}
	axes := make([]rl.Vector3, 0, 13)
	axes = append(axes, tri.Normal, box.axes[0], box.axes[1], box.axes[2])
	for _, e := range edges {
		for _, a := range box.axes {
			axes = append(axes, rl.Vector3CrossProduct(e, a))
		}
	}

	best := float32(1e30)
	var bestAxis rl.Vector3
	faceDepth := float32(-1)
	for i, axis := range axes {
		l := rl.Vector3Length(axis)
		if l < 1e-5 {
			continue
		}
		axis = rl.Vector3Scale(axis, 1/l)
		c := rl.Vector3DotProduct(box.center, axis)
		r := box.extentAlong(axis)
		d0 := rl.Vector3DotProduct(tri.V0, axis)
		d1 := rl.Vector3DotProduct(tri.V1, axis)
		d2 := rl.Vector3DotProduct(tri.V2, axis)
		lo, hi := min(d0, d1, d2), max(d0, d1, d2)
		if c-r > hi+contactMargin || c+r < lo-contactMargin {
			return rl.Vector3{}, 0, false
		}
		// Overlap when pushing the box along +axis or -axis
		up, down := hi-(c-r), (c+r)-lo
		depth, dir := up, axis
		if down < up {
			depth, dir = down, rl.Vector3Negate(axis)
		}
		if i == 0 && c > hi {
			faceDepth = up
		}
		if depth < best {
			best, bestAxis = depth, dir
		}
	}
	if best == 1e30 {
		return rl.Vector3{}, 0, false
	}
	// A box centered above the face is pushed along the face normal. Edge
	// axes there come from neighbouring triangles and would snag.
	if faceDepth >= 0 {
		return tri.Normal, faceDepth, true
	}
	return bestAxis, best, true
}

// perpendicular returns a unit vector orthogonal to n.
func perpendicular(n rl.Vector3) rl.Vector3 {
	if absf(n.X) < 0.57735 {
		return rl.Vector3Normalize(rl.Vector3CrossProduct(n, rl.Vector3{X: 1}))
	}
	return rl.Vector3Normalize(rl.Vector3CrossProduct(n, rl.Vector3{Y: 1}))
}
