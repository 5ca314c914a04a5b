package physics

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Plane is a face plane of a convex hull: points p with Dot(Normal, p) <= D are inside.
type Plane struct {
	Normal rl.Vector3
	D      float32
}

// ConvexShape is the convex hull of a point cloud.
type ConvexShape struct {
	shapeBase
	points []rl.Vector3
	planes []Plane
	bounds rl.BoundingBox
}

const hullEpsilon = 1e-5

// NewConvexShape builds the hull of points. At least four points that do not
// all lie on one plane are required.
func NewConvexShape(points []rl.Vector3) (*ConvexShape, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: convex shape needs at least 4 points, got %d", ErrInvalidDimension, len(points))
	}
	planes := hullPlanes(points)
	if len(planes) < 4 {
		return nil, fmt.Errorf("%w: convex points are coplanar", ErrInvalidDimension)
	}
	c := &ConvexShape{
		points: append([]rl.Vector3(nil), points...),
		planes: planes,
	}
	c.bounds = boundsOf(c.points, Identity())
	c.init(nil)
	return c, nil
}

func (c *ConvexShape) Type() ShapeType { return ShapeConvex }

// Points returns the points the hull was built from.
func (c *ConvexShape) Points() []rl.Vector3 { return c.points }

// Planes returns the outward face planes of the hull.
func (c *ConvexShape) Planes() []Plane { return c.planes }

func (c *ConvexShape) AABB() rl.BoundingBox { return c.bounds }

func (c *ConvexShape) TransformedAABB(pose Transform) rl.BoundingBox {
	return boundsOf(c.points, pose)
}

// Support returns the hull point furthest along dir.
func (c *ConvexShape) Support(dir rl.Vector3) rl.Vector3 {
	best := c.points[0]
	bestDot := rl.Vector3DotProduct(best, dir)
	for _, p := range c.points[1:] {
		if d := rl.Vector3DotProduct(p, dir); d > bestDot {
			best, bestDot = p, d
		}
	}
	return best
}

// hullPlanes finds the supporting planes of a point cloud by testing every
// point triple. Point clouds handed to physics are small, so the quartic
// cost is paid once at construction.
func hullPlanes(points []rl.Vector3) []Plane {
	var planes []Plane
	n := len(points)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				normal := rl.Vector3CrossProduct(
					rl.Vector3Subtract(points[j], points[i]),
					rl.Vector3Subtract(points[k], points[i]),
				)
				length := rl.Vector3Length(normal)
				if length < hullEpsilon {
					continue
				}
				normal = rl.Vector3Scale(normal, 1/length)
				d := rl.Vector3DotProduct(normal, points[i])

				above, below := false, false
				for _, p := range points {
					side := rl.Vector3DotProduct(normal, p) - d
					if side > hullEpsilon {
						above = true
					} else if side < -hullEpsilon {
						below = true
					}
					if above && below {
						break
					}
				}
				switch {
				case above && below:
					continue
				case above:
					normal, d = rl.Vector3Negate(normal), -d
				}
				if !containsPlane(planes, normal, d) {
					planes = append(planes, Plane{Normal: normal, D: d})
				}
			}
		}
	}
	return planes
}

func containsPlane(planes []Plane, normal rl.Vector3, d float32) bool {
	for _, p := range planes {
		if rl.Vector3DotProduct(p.Normal, normal) > 1-hullEpsilon && absf(p.D-d) < 1e-4 {
			return true
		}
	}
	return false
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
