package physics

import (
	"fmt"
	"math"
	"sync/atomic"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// ShapeType identifies a Shape variant.
type ShapeType int

const (
	ShapeSphere ShapeType = iota
	ShapeBox
	ShapeCapsule
	ShapeCylinder
	ShapeConvex
	ShapeMesh
	ShapeTerrain
	ShapeCompound
)

var shapeTypeNames = [...]string{"sphere", "box", "capsule", "cylinder", "convex", "mesh", "terrain", "compound"}

func (t ShapeType) String() string {
	if t < 0 || int(t) >= len(shapeTypeNames) {
		return fmt.Sprintf("ShapeType(%d)", int(t))
	}
	return shapeTypeNames[t]
}

// ParseShapeType maps a shape name back to its ShapeType.
func ParseShapeType(name string) (ShapeType, bool) {
	for i, n := range shapeTypeNames {
		if n == name {
			return ShapeType(i), true
		}
	}
	return 0, false
}

// Shape is collision geometry shared between colliders and compounds.
// Shapes are reference counted: constructors return a count of 1, every
// holder calls Retain, and Release drops a reference. The last Release
// destroys the shape and, for compounds, releases the children.
type Shape interface {
	Type() ShapeType
	// AABB returns the local-space bounds.
	AABB() rl.BoundingBox
	// TransformedAABB returns the bounds under a rigid transform.
	TransformedAABB(pose Transform) rl.BoundingBox
	MassData(density float32) MassData

	Retain()
	Release()
	RefCount() int32
	IsDestroyed() bool

	base() *shapeBase
}

type shapeBase struct {
	refs      atomic.Int32
	destroyed atomic.Bool
	onDestroy func()
}

func (s *shapeBase) init(onDestroy func()) {
	s.refs.Store(1)
	s.onDestroy = onDestroy
}

func (s *shapeBase) base() *shapeBase { return s }

// Retain adds a reference.
func (s *shapeBase) Retain() {
	s.refs.Add(1)
}

// Release drops a reference and destroys the shape when none remain.
func (s *shapeBase) Release() {
	if s.destroyed.Load() {
		return
	}
	if s.refs.Add(-1) > 0 {
		return
	}
	s.destroyed.Store(true)
	if s.onDestroy != nil {
		s.onDestroy()
	}
}

// RefCount returns the current number of references.
func (s *shapeBase) RefCount() int32 {
	return s.refs.Load()
}

// IsDestroyed reports whether the last reference was released.
func (s *shapeBase) IsDestroyed() bool {
	return s.destroyed.Load()
}

func positive(values ...float32) bool {
	for _, v := range values {
		if !(v > 0) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// SphereShape is a sphere centered on the origin.
type SphereShape struct {
	shapeBase
	radius float32
}

// NewSphereShape creates a sphere. The radius must be positive.
func NewSphereShape(radius float32) (*SphereShape, error) {
	if !positive(radius) {
		return nil, fmt.Errorf("%w: sphere radius %v", ErrInvalidDimension, radius)
	}
	s := &SphereShape{radius: radius}
	s.init(nil)
	return s, nil
}

func (s *SphereShape) Type() ShapeType { return ShapeSphere }
func (s *SphereShape) Radius() float32 { return s.radius }

func (s *SphereShape) AABB() rl.BoundingBox {
	r := rl.Vector3{X: s.radius, Y: s.radius, Z: s.radius}
	return rl.BoundingBox{Min: rl.Vector3Negate(r), Max: r}
}

func (s *SphereShape) TransformedAABB(pose Transform) rl.BoundingBox {
	r := rl.Vector3{X: s.radius, Y: s.radius, Z: s.radius}
	return rl.BoundingBox{Min: rl.Vector3Subtract(pose.Position, r), Max: rl.Vector3Add(pose.Position, r)}
}

// pointRadius is the radius of the degenerate shape colliders get when they have none.
const pointRadius = 1.1920929e-07

var pointShape = func() *SphereShape {
	s := &SphereShape{radius: pointRadius}
	s.init(nil)
	return s
}()

// BoxShape is a box centered on the origin.
type BoxShape struct {
	shapeBase
	halfExtents rl.Vector3
}

// NewBoxShape creates a box from its full dimensions.
func NewBoxShape(size rl.Vector3) (*BoxShape, error) {
	if !positive(size.X, size.Y, size.Z) {
		return nil, fmt.Errorf("%w: box size %v", ErrInvalidDimension, size)
	}
	b := &BoxShape{halfExtents: rl.Vector3Scale(size, 0.5)}
	b.init(nil)
	return b, nil
}

func (b *BoxShape) Type() ShapeType { return ShapeBox }

// Dimensions returns the full size of the box.
func (b *BoxShape) Dimensions() rl.Vector3 { return rl.Vector3Scale(b.halfExtents, 2) }

// HalfExtents returns half the size of the box.
func (b *BoxShape) HalfExtents() rl.Vector3 { return b.halfExtents }

func (b *BoxShape) AABB() rl.BoundingBox {
	return rl.BoundingBox{Min: rl.Vector3Negate(b.halfExtents), Max: b.halfExtents}
}

func (b *BoxShape) TransformedAABB(pose Transform) rl.BoundingBox {
	return transformBounds(b.AABB(), pose)
}

// CapsuleShape is a capsule along the local Y axis. Length excludes the caps.
type CapsuleShape struct {
	shapeBase
	radius, length float32
}

// NewCapsuleShape creates a capsule. Radius and length must be positive.
func NewCapsuleShape(radius, length float32) (*CapsuleShape, error) {
	if !positive(radius, length) {
		return nil, fmt.Errorf("%w: capsule radius %v length %v", ErrInvalidDimension, radius, length)
	}
	c := &CapsuleShape{radius: radius, length: length}
	c.init(nil)
	return c, nil
}

func (c *CapsuleShape) Type() ShapeType { return ShapeCapsule }
func (c *CapsuleShape) Radius() float32 { return c.radius }
func (c *CapsuleShape) Length() float32 { return c.length }

// Segment returns the endpoints of the capsule's core segment.
func (c *CapsuleShape) Segment() (rl.Vector3, rl.Vector3) {
	h := c.length / 2
	return rl.Vector3{Y: -h}, rl.Vector3{Y: h}
}

func (c *CapsuleShape) AABB() rl.BoundingBox {
	h := c.length/2 + c.radius
	return rl.BoundingBox{
		Min: rl.Vector3{X: -c.radius, Y: -h, Z: -c.radius},
		Max: rl.Vector3{X: c.radius, Y: h, Z: c.radius},
	}
}

func (c *CapsuleShape) TransformedAABB(pose Transform) rl.BoundingBox {
	a, b := c.Segment()
	a, b = pose.Apply(a), pose.Apply(b)
	r := rl.Vector3{X: c.radius, Y: c.radius, Z: c.radius}
	return rl.BoundingBox{
		Min: rl.Vector3Subtract(rl.Vector3Min(a, b), r),
		Max: rl.Vector3Add(rl.Vector3Max(a, b), r),
	}
}

// CylinderShape is a cylinder along the local Y axis.
type CylinderShape struct {
	shapeBase
	radius, length float32
}

// NewCylinderShape creates a cylinder. Radius and length must be positive.
func NewCylinderShape(radius, length float32) (*CylinderShape, error) {
	if !positive(radius, length) {
		return nil, fmt.Errorf("%w: cylinder radius %v length %v", ErrInvalidDimension, radius, length)
	}
	c := &CylinderShape{radius: radius, length: length}
	c.init(nil)
	return c, nil
}

func (c *CylinderShape) Type() ShapeType { return ShapeCylinder }
func (c *CylinderShape) Radius() float32 { return c.radius }
func (c *CylinderShape) Length() float32 { return c.length }

func (c *CylinderShape) AABB() rl.BoundingBox {
	h := c.length / 2
	return rl.BoundingBox{
		Min: rl.Vector3{X: -c.radius, Y: -h, Z: -c.radius},
		Max: rl.Vector3{X: c.radius, Y: h, Z: c.radius},
	}
}

func (c *CylinderShape) TransformedAABB(pose Transform) rl.BoundingBox {
	return transformBounds(c.AABB(), pose)
}

// transformBounds returns the bounds of a box's eight corners under pose.
func transformBounds(box rl.BoundingBox, pose Transform) rl.BoundingBox {
	if pose.IsIdentity() {
		return box
	}
	out := rl.BoundingBox{
		Min: rl.Vector3{X: math.MaxFloat32, Y: math.MaxFloat32, Z: math.MaxFloat32},
		Max: rl.Vector3{X: -math.MaxFloat32, Y: -math.MaxFloat32, Z: -math.MaxFloat32},
	}
	for i := 0; i < 8; i++ {
		corner := box.Min
		if i&1 != 0 {
			corner.X = box.Max.X
		}
		if i&2 != 0 {
			corner.Y = box.Max.Y
		}
		if i&4 != 0 {
			corner.Z = box.Max.Z
		}
		p := pose.Apply(corner)
		out.Min = rl.Vector3Min(out.Min, p)
		out.Max = rl.Vector3Max(out.Max, p)
	}
	return out
}

// boundsOf returns the bounds of a point set, transformed by pose.
func boundsOf(points []rl.Vector3, pose Transform) rl.BoundingBox {
	out := rl.BoundingBox{
		Min: rl.Vector3{X: math.MaxFloat32, Y: math.MaxFloat32, Z: math.MaxFloat32},
		Max: rl.Vector3{X: -math.MaxFloat32, Y: -math.MaxFloat32, Z: -math.MaxFloat32},
	}
	for _, p := range points {
		p = pose.Apply(p)
		out.Min = rl.Vector3Min(out.Min, p)
		out.Max = rl.Vector3Max(out.Max, p)
	}
	return out
}

// UnionBounds returns the smallest box containing a and b.
func UnionBounds(a, b rl.BoundingBox) rl.BoundingBox {
	return rl.BoundingBox{Min: rl.Vector3Min(a.Min, b.Min), Max: rl.Vector3Max(a.Max, b.Max)}
}
