package physics

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// NoChild is the child index reported when the hit shape is not a compound.
const NoChild = ^uint32(0)

// RaycastHit describes one collider crossed by a ray.
type RaycastHit struct {
	Collider *Collider
	// Shape is the compound child that was hit, otherwise the collider's shape.
	Shape    Shape
	Position rl.Vector3
	Normal   rl.Vector3
	// Fraction is the distance along the ray relative to its direction's length.
	Fraction float32
	Child    uint32
}

// RaycastFunc receives each hit. Returning true stops the raycast.
type RaycastFunc func(hit RaycastHit) bool

// QueryFunc receives each overlapping collider. Returning true stops the query.
type QueryFunc func(c *Collider, child uint32) bool

// shapeAt returns the shape reported for a hit on child.
func (c *Collider) shapeAt(child uint32) Shape {
	if child != NoChild {
		if cs, ok := c.shape.(CompoundShape); ok {
			if s := cs.Child(int(child)); s != nil {
				return s
			}
		}
	}
	if c.shape == Shape(pointShape) {
		return nil
	}
	return c.shape
}

func (w *World) beginQuery() func() {
	w.queryDepth++
	return func() { w.queryDepth-- }
}

// castRay collects the hits on the segment origin..origin+direction that pass mask.
func (w *World) castRay(origin, direction rl.Vector3, mask TagMask, fn func(RaycastHit) bool) {
	for _, h := range w.backend.CastRay(origin, direction) {
		c := w.colliderOf(h.Body)
		if c == nil || !mask.Has(c.tag) {
			continue
		}
		hit := RaycastHit{
			Collider: c,
			Shape:    c.shapeAt(h.Child),
			Position: rl.Vector3Add(origin, rl.Vector3Scale(direction, h.Fraction)),
			Normal:   h.Normal,
			Fraction: h.Fraction,
			Child:    h.Child,
		}
		if fn(hit) {
			return
		}
	}
}

// Raycast reports every collider crossed by the segment from origin to
// origin+direction, in the order the backend finds them. Callbacks may read
// colliders but must not destroy them.
func (w *World) Raycast(origin, direction rl.Vector3, mask TagMask, fn RaycastFunc) {
	if w.destroyed || fn == nil {
		return
	}
	defer w.beginQuery()()
	w.castRay(origin, direction, mask, fn)
}

// RaycastAny returns the first hit the backend reports.
func (w *World) RaycastAny(origin, direction rl.Vector3, mask TagMask) (RaycastHit, bool) {
	var first RaycastHit
	found := false
	w.Raycast(origin, direction, mask, func(hit RaycastHit) bool {
		first, found = hit, true
		return true
	})
	return first, found
}

// RaycastClosest returns the hit nearest to origin.
func (w *World) RaycastClosest(origin, direction rl.Vector3, mask TagMask) (RaycastHit, bool) {
	var closest RaycastHit
	found := false
	w.Raycast(origin, direction, mask, func(hit RaycastHit) bool {
		if !found || hit.Fraction < closest.Fraction {
			closest, found = hit, true
		}
		return false
	})
	return closest, found
}

// QueryShape reports every collider overlapping shape placed at position and
// orientation. It returns whether anything matched, even when fn stops early.
// fn may be nil.
func (w *World) QueryShape(shape Shape, position rl.Vector3, orientation rl.Quaternion, mask TagMask, fn QueryFunc) bool {
	if w.destroyed || shape == nil || shape.IsDestroyed() {
		return false
	}
	defer w.beginQuery()()
	pose := fixOffset(Transform{Position: position, Orientation: orientation})
	found := false
	for _, h := range w.backend.Overlap(shape, pose) {
		c := w.colliderOf(h.Body)
		if c == nil || !mask.Has(c.tag) {
			continue
		}
		found = true
		if fn != nil && fn(c, h.Child) {
			break
		}
	}
	return found
}

// QueryBox reports colliders overlapping an axis-aligned box.
func (w *World) QueryBox(center, halfExtents rl.Vector3, mask TagMask, fn QueryFunc) bool {
	box, err := NewBoxShape(rl.Vector3Scale(halfExtents, 2))
	if err != nil {
		return false
	}
	defer box.Release()
	return w.QueryShape(box, center, rl.QuaternionIdentity(), mask, fn)
}

// QuerySphere reports colliders overlapping a sphere.
func (w *World) QuerySphere(center rl.Vector3, radius float32, mask TagMask, fn QueryFunc) bool {
	sphere, err := NewSphereShape(radius)
	if err != nil {
		return false
	}
	defer sphere.Release()
	return w.QueryShape(sphere, center, rl.QuaternionIdentity(), mask, fn)
}

// QueryTriangle reports colliders overlapping a world-space triangle.
func (w *World) QueryTriangle(v0, v1, v2 rl.Vector3, mask TagMask, fn QueryFunc) bool {
	tri, err := NewMeshShape([]rl.Vector3{v0, v1, v2}, []uint32{0, 1, 2})
	if err != nil {
		return false
	}
	defer tri.Release()
	return w.QueryShape(tri, rl.Vector3{}, rl.QuaternionIdentity(), mask, fn)
}
