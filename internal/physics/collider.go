package physics

import (
	"fmt"
	"iter"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Collider is a rigid body in a World with one attached Shape.
// After Destroy only IsDestroyed, World and the UserData field may be used;
// every other method panics.
type Collider struct {
	world       *World
	body        Body
	shape       Shape
	shapeOffset Transform
	tag         uint32
	id          uint64
	destroyed   bool

	joints     *joint // head of this collider's joint list
	prev, next *Collider

	// UserData is free for the embedding application.
	UserData any
}

// isStatic reports whether shape can only be used by kinematic bodies.
func isStatic(shape Shape) bool {
	t := shape.Type()
	return t == ShapeMesh || t == ShapeTerrain
}

// NewCollider adds a body to the world at position. A nil shape gives the
// collider a point shape. Mesh and terrain colliders are created kinematic.
func (w *World) NewCollider(shape Shape, position rl.Vector3) (*Collider, error) {
	if w.destroyed {
		return nil, ErrWorldDestroyed
	}
	if w.colliderCount >= w.config.MaxColliders {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyColliders, w.config.MaxColliders)
	}
	if shape == nil {
		shape = pointShape
	} else if shape.IsDestroyed() {
		return nil, ErrDestroyed
	}

	kinematic := isStatic(shape)
	c := &Collider{world: w, tag: Untagged, shapeOffset: Identity()}
	body, err := w.backend.CreateBody(BodyDef{
		Shape:       shape,
		Pose:        At(position),
		Kinematic:   kinematic,
		Layer:       ObjectLayer(Untagged, kinematic),
		AllowSleep:  w.allowSleep,
		LinearDamp:  w.linearDamping,
		AngularDamp: w.angularDamping,
		UserData:    c,
	})
	if err != nil {
		return nil, fmt.Errorf("physics: create %s body: %w", shape.Type(), err)
	}

	shape.Retain()
	c.shape = shape
	c.body = body
	w.nextID++
	c.id = w.nextID

	c.next = w.colliders
	if w.colliders != nil {
		w.colliders.prev = c
	}
	w.colliders = c
	w.colliderCount++
	return c, nil
}

// NewBoxCollider creates a collider with a new box shape of the given full size.
func (w *World) NewBoxCollider(position, size rl.Vector3) (*Collider, error) {
	shape, err := NewBoxShape(size)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, position)
}

func (w *World) NewSphereCollider(position rl.Vector3, radius float32) (*Collider, error) {
	shape, err := NewSphereShape(radius)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, position)
}

func (w *World) NewCapsuleCollider(position rl.Vector3, radius, length float32) (*Collider, error) {
	shape, err := NewCapsuleShape(radius, length)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, position)
}

func (w *World) NewCylinderCollider(position rl.Vector3, radius, length float32) (*Collider, error) {
	shape, err := NewCylinderShape(radius, length)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, position)
}

func (w *World) NewConvexCollider(position rl.Vector3, points []rl.Vector3) (*Collider, error) {
	shape, err := NewConvexShape(points)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, position)
}

// NewMeshCollider creates a kinematic collider from a triangle list.
func (w *World) NewMeshCollider(vertices []rl.Vector3, indices []uint32) (*Collider, error) {
	shape, err := NewMeshShape(vertices, indices)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, rl.Vector3{})
}

// NewTerrainCollider creates a kinematic heightfield collider centered on the origin.
func (w *World) NewTerrainCollider(heights []float32, n int, scaleXZ, scaleY float32) (*Collider, error) {
	shape, err := NewTerrainShape(heights, n, scaleXZ, scaleY)
	if err != nil {
		return nil, err
	}
	return w.newOwnedCollider(shape, rl.Vector3{})
}

// newOwnedCollider hands the caller's only shape reference to the collider.
func (w *World) newOwnedCollider(shape Shape, position rl.Vector3) (*Collider, error) {
	c, err := w.NewCollider(shape, position)
	shape.Release()
	return c, err
}

func (c *Collider) handle() Body {
	if c.destroyed {
		panic("physics: use of destroyed Collider")
	}
	return c.body
}

// Destroy releases the shape, destroys every attached joint, removes the
// backend body and unlinks the collider from its world. Calling it again
// does nothing.
func (c *Collider) Destroy() {
	if c.destroyed {
		return
	}
	w := c.world
	c.shape.Release()
	c.shape = nil
	for c.joints != nil {
		c.joints.Destroy()
	}
	w.backend.DestroyBody(c.body)
	c.body = nil

	if c.prev != nil {
		c.prev.next = c.next
	} else {
		w.colliders = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	}
	c.prev, c.next = nil, nil
	w.colliderCount--
	c.destroyed = true
}

func (c *Collider) IsDestroyed() bool { return c.destroyed }

// World returns the world the collider was created in.
func (c *Collider) World() *World { return c.world }

// Joints iterates the joints attached to the collider.
func (c *Collider) Joints() iter.Seq[Joint] {
	return func(yield func(Joint) bool) {
		for j := c.joints; j != nil; {
			next := j.nodes[j.role(c)].next
			if !yield(j.self) {
				return
			}
			j = next
		}
	}
}

// Shape returns the attached shape, or nil for the default point shape.
func (c *Collider) Shape() Shape {
	c.handle()
	if c.shape == Shape(pointShape) {
		return nil
	}
	return c.shape
}

// SetShape swaps the collider's shape, keeping the current shape offset.
// A nil shape restores the point shape. Mesh and terrain shapes make the
// collider kinematic.
func (c *Collider) SetShape(shape Shape) error {
	body := c.handle()
	if shape == nil {
		shape = pointShape
	} else if shape.IsDestroyed() {
		return ErrDestroyed
	}
	shape.Retain()
	old := c.shape
	c.shape = shape
	old.Release()
	body.SetShape(shape, c.shapeOffset, true)
	if isStatic(shape) && !body.Kinematic() {
		c.SetKinematic(true)
	}
	return nil
}

// ShapeOffset returns the shape's pose relative to the body.
func (c *Collider) ShapeOffset() Transform {
	c.handle()
	return c.shapeOffset
}

func (c *Collider) SetShapeOffset(offset Transform) {
	body := c.handle()
	c.shapeOffset = fixOffset(offset)
	body.SetShape(c.shape, c.shapeOffset, true)
}

// Tag returns the collider's tag name, or "" when untagged.
func (c *Collider) Tag() string {
	c.handle()
	return c.world.tagName(c.tag)
}

// SetTag assigns a tag declared by the world. An empty name clears the tag.
func (c *Collider) SetTag(name string) error {
	body := c.handle()
	tag := uint32(Untagged)
	if name != "" {
		tag = c.world.findTag(name)
		if tag == Untagged {
			return fmt.Errorf("%w: %q", ErrUnknownTag, name)
		}
	}
	c.tag = tag
	body.SetLayer(ObjectLayer(tag, body.Kinematic()))
	return nil
}

// ObjectLayer returns the backend layer derived from the tag and motion type.
func (c *Collider) ObjectLayer() uint32 {
	return ObjectLayer(c.tag, c.handle().Kinematic())
}

func (c *Collider) Kinematic() bool { return c.handle().Kinematic() }

// SetKinematic switches the motion type. Kinematic bodies are put to sleep
// immediately. Mesh and terrain colliders stay kinematic.
func (c *Collider) SetKinematic(kinematic bool) {
	body := c.handle()
	if !kinematic && isStatic(c.shape) {
		c.world.warn("dynamic " + c.shape.Type().String() + " colliders")
		return
	}
	body.SetKinematic(kinematic)
	body.SetLayer(ObjectLayer(c.tag, kinematic))
	if kinematic {
		body.SetAwake(false)
	}
}

func (c *Collider) Enabled() bool { return c.handle().Enabled() }

func (c *Collider) SetEnabled(enabled bool) { c.handle().SetEnabled(enabled) }

func (c *Collider) Sensor() bool { return c.handle().Sensor() }

// SetSensor makes the collider report contacts without a collision response.
func (c *Collider) SetSensor(sensor bool) error {
	return c.world.capability("sensors", c.handle().SetSensor(sensor))
}

func (c *Collider) Continuous() bool { return c.handle().Continuous() }

func (c *Collider) SetContinuous(continuous bool) error {
	return c.world.capability("continuous collision", c.handle().SetContinuous(continuous))
}

func (c *Collider) GravityScale() float32 { return c.handle().GravityScale() }

func (c *Collider) SetGravityScale(scale float32) { c.handle().SetGravityScale(scale) }

func (c *Collider) SleepingAllowed() bool { return c.handle().SleepingAllowed() }

func (c *Collider) SetSleepingAllowed(allowed bool) { c.handle().SetSleepingAllowed(allowed) }

func (c *Collider) Awake() bool { return c.handle().Awake() }

func (c *Collider) SetAwake(awake bool) { c.handle().SetAwake(awake) }

func (c *Collider) Friction() float32 { return c.handle().Friction() }

func (c *Collider) SetFriction(f float32) { c.handle().SetFriction(f) }

func (c *Collider) Restitution() float32 { return c.handle().Restitution() }

func (c *Collider) SetRestitution(r float32) { c.handle().SetRestitution(r) }

// Mass data

func (c *Collider) Mass() float32 { return c.handle().MassData().Mass }

func (c *Collider) SetMass(mass float32) {
	body := c.handle()
	md := body.MassData()
	md.Mass = mass
	body.SetMassData(md)
}

// Inertia returns the principal moments and the rotation of their frame.
func (c *Collider) Inertia() (rl.Vector3, rl.Quaternion) {
	md := c.handle().MassData()
	return md.Inertia, md.InertiaRotation
}

func (c *Collider) SetInertia(diagonal rl.Vector3, rotation rl.Quaternion) {
	body := c.handle()
	md := body.MassData()
	md.Inertia = diagonal
	md.InertiaRotation = rotation
	body.SetMassData(md)
}

// CenterOfMass is in body space.
func (c *Collider) CenterOfMass() rl.Vector3 { return c.handle().MassData().CenterOfMass }

func (c *Collider) SetCenterOfMass(center rl.Vector3) {
	body := c.handle()
	md := body.MassData()
	md.CenterOfMass = center
	body.SetMassData(md)
}

// ResetMassData recomputes mass properties from the shape.
func (c *Collider) ResetMassData() { c.handle().ResetMassData() }

// Pose and motion

func (c *Collider) Pose() Transform { return c.handle().Pose() }

// SetPose teleports the body. The orientation must be normalized.
func (c *Collider) SetPose(pose Transform) { c.handle().SetPose(pose) }

func (c *Collider) Position() rl.Vector3 { return c.handle().Pose().Position }

func (c *Collider) SetPosition(position rl.Vector3) {
	body := c.handle()
	pose := body.Pose()
	pose.Position = position
	body.SetPose(pose)
}

func (c *Collider) Orientation() rl.Quaternion { return c.handle().Pose().Orientation }

func (c *Collider) SetOrientation(orientation rl.Quaternion) {
	body := c.handle()
	pose := body.Pose()
	pose.Orientation = orientation
	body.SetPose(pose)
}

func (c *Collider) LinearVelocity() rl.Vector3 { return c.handle().LinearVelocity() }

func (c *Collider) SetLinearVelocity(v rl.Vector3) { c.handle().SetLinearVelocity(v) }

func (c *Collider) AngularVelocity() rl.Vector3 { return c.handle().AngularVelocity() }

func (c *Collider) SetAngularVelocity(v rl.Vector3) { c.handle().SetAngularVelocity(v) }

// LinearDamping returns the damping factor. The threshold is always zero.
func (c *Collider) LinearDamping() (damping, threshold float32) {
	linear, _ := c.handle().Damping()
	return linear, 0
}

// SetLinearDamping sets the damping factor. A non-zero threshold is not
// supported and logs a warning.
func (c *Collider) SetLinearDamping(damping, threshold float32) {
	body := c.handle()
	if threshold != 0 {
		c.world.warn("damping thresholds")
	}
	_, angular := body.Damping()
	body.SetDamping(damping, angular)
}

func (c *Collider) AngularDamping() (damping, threshold float32) {
	_, angular := c.handle().Damping()
	return angular, 0
}

func (c *Collider) SetAngularDamping(damping, threshold float32) {
	body := c.handle()
	if threshold != 0 {
		c.world.warn("damping thresholds")
	}
	linear, _ := body.Damping()
	body.SetDamping(linear, damping)
}

// Forces

func (c *Collider) ApplyForce(force rl.Vector3) { c.handle().AddForce(force) }

// ApplyForceAtPosition applies force at a world-space point.
func (c *Collider) ApplyForceAtPosition(force, position rl.Vector3) {
	c.handle().AddForceAt(force, position)
}

func (c *Collider) ApplyTorque(torque rl.Vector3) { c.handle().AddTorque(torque) }

func (c *Collider) ApplyLinearImpulse(impulse rl.Vector3) { c.handle().AddImpulse(impulse) }

func (c *Collider) ApplyLinearImpulseAtPosition(impulse, position rl.Vector3) {
	c.handle().AddImpulseAt(impulse, position)
}

func (c *Collider) ApplyAngularImpulse(impulse rl.Vector3) { c.handle().AddAngularImpulse(impulse) }

// Space conversion

// LocalPoint converts a world point into body space.
func (c *Collider) LocalPoint(world rl.Vector3) rl.Vector3 {
	return c.handle().Pose().InverseApply(world)
}

// WorldPoint converts a body-space point into world space.
func (c *Collider) WorldPoint(local rl.Vector3) rl.Vector3 {
	return c.handle().Pose().Apply(local)
}

func (c *Collider) LocalVector(world rl.Vector3) rl.Vector3 {
	return c.handle().Pose().InverseApplyVector(world)
}

func (c *Collider) WorldVector(local rl.Vector3) rl.Vector3 {
	return c.handle().Pose().ApplyVector(local)
}

func (c *Collider) LinearVelocityFromLocalPoint(local rl.Vector3) rl.Vector3 {
	body := c.handle()
	return body.PointVelocity(body.Pose().Apply(local))
}

func (c *Collider) LinearVelocityFromWorldPoint(world rl.Vector3) rl.Vector3 {
	return c.handle().PointVelocity(world)
}

// AABB returns the world-space bounds of the collider.
func (c *Collider) AABB() rl.BoundingBox { return c.handle().Bounds() }

func (c *Collider) String() string {
	if c.destroyed {
		return "Collider(destroyed)"
	}
	if tag := c.world.tagName(c.tag); tag != "" {
		return fmt.Sprintf("Collider#%d(%s, %s)", c.id, c.shape.Type(), tag)
	}
	return fmt.Sprintf("Collider#%d(%s)", c.id, c.shape.Type())
}
