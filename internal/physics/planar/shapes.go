package planar

import (
	"fmt"
	"sort"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/jakecoffman/cp"
)

// minArea below which a projected triangle collapses to a segment.
const minArea = 1e-6

// flatten projects shape onto the XY plane of body as cp shapes. The
// shapes are not added to a space. Each carries its compound child index
// in UserData.
func flatten(owner *cp.Body, shape physics.Shape, offset physics.Transform, child uint32) ([]*cp.Shape, error) {
	var out []*cp.Shape
	tag := func(s *cp.Shape) {
		s.UserData = child
		s.SetCollisionType(collisionType)
		out = append(out, s)
	}
	switch s := shape.(type) {
	case *physics.SphereShape:
		tag(cp.NewCircle(owner, float64(s.Radius()), vec(offset.Position)))
	case *physics.CapsuleShape:
		a, b := s.Segment()
		tag(cp.NewSegment(owner, vec(offset.Apply(a)), vec(offset.Apply(b)), float64(s.Radius())))
	case *physics.BoxShape, *physics.CylinderShape:
		tag(polygon(owner, boxCorners(shape.AABB()), offset))
	case *physics.ConvexShape:
		tag(polygon(owner, s.Points(), offset))
	case *physics.MeshShape:
		for _, tri := range s.Triangles() {
			tag(triangle(owner, tri, offset))
		}
	case *physics.TerrainShape:
		return nil, fmt.Errorf("%w: terrain shapes in the planar backend", physics.ErrUnsupported)
	case physics.CompoundShape:
		for i := 0; i < s.ChildCount(); i++ {
			childOffset, _ := s.ChildOffset(i)
			pieces, err := flatten(owner, s.Child(i), offset.Mul(childOffset), uint32(i))
			if err != nil {
				return nil, err
			}
			out = append(out, pieces...)
		}
	default:
		return nil, fmt.Errorf("%w: shape %s", physics.ErrUnsupported, shape.Type())
	}
	return out, nil
}

func childOf(s *cp.Shape) uint32 {
	if c, ok := s.UserData.(uint32); ok {
		return c
	}
	return physics.NoChild
}

func boxCorners(box rl.BoundingBox) []rl.Vector3 {
	corners := make([]rl.Vector3, 0, 8)
	for i := 0; i < 8; i++ {
		c := box.Min
		if i&1 != 0 {
			c.X = box.Max.X
		}
		if i&2 != 0 {
			c.Y = box.Max.Y
		}
		if i&4 != 0 {
			c.Z = box.Max.Z
		}
		corners = append(corners, c)
	}
	return corners
}

// polygon builds the hull of points placed by offset and projected to XY.
func polygon(owner *cp.Body, points []rl.Vector3, offset physics.Transform) *cp.Shape {
	flat := make([]cp.Vector, len(points))
	for i, pt := range points {
		flat[i] = vec(offset.Apply(pt))
	}
	hull := convexHull(flat)
	if len(hull) < 3 {
		return segment(owner, flat)
	}
	return cp.NewPolyShapeRaw(owner, len(hull), hull, 0)
}

func triangle(owner *cp.Body, tri physics.Triangle, offset physics.Transform) *cp.Shape {
	flat := []cp.Vector{vec(offset.Apply(tri.V0)), vec(offset.Apply(tri.V1)), vec(offset.Apply(tri.V2))}
	area := flat[1].Sub(flat[0]).Cross(flat[2].Sub(flat[0]))
	if area > -minArea && area < minArea {
		return segment(owner, flat)
	}
	if area < 0 {
		flat[1], flat[2] = flat[2], flat[1]
	}
	return cp.NewPolyShapeRaw(owner, 3, flat, 0)
}

// segment spans the two points of flat furthest apart.
func segment(owner *cp.Body, flat []cp.Vector) *cp.Shape {
	var a, b cp.Vector
	best := -1.0
	for i := range flat {
		for j := i + 1; j < len(flat); j++ {
			if d := flat[i].DistanceSq(flat[j]); d > best {
				best, a, b = d, flat[i], flat[j]
			}
		}
	}
	return cp.NewSegment(owner, a, b, 0)
}

// convexHull returns the counter-clockwise hull of points (monotone chain).
func convexHull(points []cp.Vector) []cp.Vector {
	pts := append([]cp.Vector(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	if len(pts) < 3 {
		return pts
	}
	turn := func(o, a, b cp.Vector) float64 { return a.Sub(o).Cross(b.Sub(o)) }
	hull := make([]cp.Vector, 0, 2*len(pts))
	for _, pt := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= minArea {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		pt := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= minArea {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}
