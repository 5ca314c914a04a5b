package physics

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Backend is the rigid-body solver a World drives. It owns integration,
// broad phase, narrow phase and constraint solving. The World owns object
// identity, ownership and the collision policy it hands over as a LayerFilter.
//
// Setters that a backend cannot honour return ErrUnsupported; the World logs
// a warning and treats the call as a no-op.
type Backend interface {
	Name() string
	Init(cfg BackendConfig) error
	Close() error

	CreateBody(def BodyDef) (Body, error)
	DestroyBody(b Body)
	BodyCount() int

	// Step advances the simulation by dt split into steps sub-steps.
	Step(dt float32, steps int) error
	Gravity() rl.Vector3
	SetGravity(g rl.Vector3)

	// CastRay returns every body crossed by the segment origin..origin+direction.
	// Fraction is relative to the length of direction.
	CastRay(origin, direction rl.Vector3) []RayHit
	// Overlap returns every body overlapping shape placed at the given pose.
	Overlap(shape Shape, pose Transform) []OverlapHit
	// Contacts lists the touching pairs found by the last Step.
	Contacts() []ContactPoint

	CreateConstraint(def ConstraintDef) (Constraint, error)
	DestroyConstraint(c Constraint)
}

// BackendConfig carries the world-level settings a backend is built with.
type BackendConfig struct {
	MaxBodies    int
	MaxBodyPairs int
	MaxContacts  int
	Gravity      rl.Vector3
	Filter       LayerFilter
}

// BodyDef describes a body to create.
type BodyDef struct {
	Shape       Shape
	Pose        Transform
	Kinematic   bool
	Layer       uint32
	AllowSleep  bool
	LinearDamp  float32
	AngularDamp float32
	UserData    any
}

// RayHit is one body crossed by a ray. Child is NoChild unless the body's
// shape is a compound.
type RayHit struct {
	Body     Body
	Fraction float32
	Normal   rl.Vector3
	Child    uint32
}

// OverlapHit is one body overlapping a query shape.
type OverlapHit struct {
	Body  Body
	Child uint32
}

// ContactPoint is a touching pair reported by a backend after a step.
// Normal points from A to B.
type ContactPoint struct {
	A, B   Body
	Normal rl.Vector3
	Points []rl.Vector3
	Depth  float32
}

// Body is a backend rigid body.
type Body interface {
	Pose() Transform
	SetPose(p Transform)
	LinearVelocity() rl.Vector3
	SetLinearVelocity(v rl.Vector3)
	AngularVelocity() rl.Vector3
	SetAngularVelocity(v rl.Vector3)
	Damping() (linear, angular float32)
	SetDamping(linear, angular float32)

	MassData() MassData
	SetMassData(m MassData)
	ResetMassData()

	Friction() float32
	SetFriction(f float32)
	Restitution() float32
	SetRestitution(r float32)
	GravityScale() float32
	SetGravityScale(s float32)
	Sensor() bool
	SetSensor(sensor bool) error
	Continuous() bool
	SetContinuous(continuous bool) error

	SleepingAllowed() bool
	SetSleepingAllowed(allowed bool)
	Awake() bool
	SetAwake(awake bool)
	Enabled() bool
	SetEnabled(enabled bool)
	Kinematic() bool
	SetKinematic(kinematic bool)
	Layer() uint32
	SetLayer(layer uint32)

	// SetShape swaps the body's geometry. The offset places the shape in body space.
	SetShape(shape Shape, offset Transform, updateMass bool)

	AddForce(force rl.Vector3)
	AddForceAt(force, point rl.Vector3)
	AddTorque(torque rl.Vector3)
	AddImpulse(impulse rl.Vector3)
	AddImpulseAt(impulse, point rl.Vector3)
	AddAngularImpulse(impulse rl.Vector3)

	// PointVelocity is the velocity of a world-space point rigidly attached to the body.
	PointVelocity(point rl.Vector3) rl.Vector3
	Bounds() rl.BoundingBox
	UserData() any
}

// ConstraintDef describes a two-body constraint. Anchors and axis are in
// world space at creation time.
type ConstraintDef struct {
	Kind    JointType
	A, B    Body
	AnchorA rl.Vector3
	AnchorB rl.Vector3
	Axis    rl.Vector3
}

// Constraint is a backend two-body constraint. Every setter may return ErrUnsupported.
type Constraint interface {
	Enabled() bool
	SetEnabled(enabled bool)

	// Anchors are the attachment points in world space, following each body.
	Anchors() (rl.Vector3, rl.Vector3)
	SetAnchors(a, b rl.Vector3) error
	Axis() rl.Vector3
	SetAxis(axis rl.Vector3) error
	// Value is the current distance, hinge angle or slider position.
	Value() float32

	Limits() (min, max float32)
	SetLimits(min, max float32) error
	Spring() Spring
	SetSpring(s Spring) error
	Friction() float32
	SetFriction(f float32) error

	Motor() (MotorMode, float32)
	SetMotor(mode MotorMode, target float32) error
	MotorSpring() Spring
	SetMotorSpring(s Spring) error
	MaxMotorForce() float32
	SetMaxMotorForce(f float32) error
	MotorForce() float32

	// Force and Torque are the reaction magnitudes of the last solve.
	Force() float32
	Torque() float32
}

// Transform is a rigid pose: translation plus unit quaternion.
type Transform struct {
	Position    rl.Vector3
	Orientation rl.Quaternion
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Orientation: rl.QuaternionIdentity()}
}

// At returns a transform with the given position and identity orientation.
func At(position rl.Vector3) Transform {
	return Transform{Position: position, Orientation: rl.QuaternionIdentity()}
}

// Apply maps a local point into the transform's parent space.
func (t Transform) Apply(p rl.Vector3) rl.Vector3 {
	return rl.Vector3Add(rl.Vector3RotateByQuaternion(p, t.Orientation), t.Position)
}

// ApplyVector rotates a direction without translating it.
func (t Transform) ApplyVector(v rl.Vector3) rl.Vector3 {
	return rl.Vector3RotateByQuaternion(v, t.Orientation)
}

// InverseApply maps a parent-space point into local space.
func (t Transform) InverseApply(p rl.Vector3) rl.Vector3 {
	return rl.Vector3RotateByQuaternion(rl.Vector3Subtract(p, t.Position), rl.QuaternionInvert(t.Orientation))
}

// InverseApplyVector rotates a parent-space direction into local space.
func (t Transform) InverseApplyVector(v rl.Vector3) rl.Vector3 {
	return rl.Vector3RotateByQuaternion(v, rl.QuaternionInvert(t.Orientation))
}

// Mul composes t with a child transform expressed in t's space.
func (t Transform) Mul(child Transform) Transform {
	return Transform{
		Position:    t.Apply(child.Position),
		Orientation: rl.QuaternionMultiply(t.Orientation, child.Orientation),
	}
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() Transform {
	inv := rl.QuaternionInvert(t.Orientation)
	return Transform{
		Position:    rl.Vector3RotateByQuaternion(rl.Vector3Negate(t.Position), inv),
		Orientation: inv,
	}
}

// IsIdentity reports whether the transform does nothing.
func (t Transform) IsIdentity() bool {
	q := t.Orientation
	return t.Position == (rl.Vector3{}) && q.X == 0 && q.Y == 0 && q.Z == 0 && (q.W == 1 || q.W == -1)
}
