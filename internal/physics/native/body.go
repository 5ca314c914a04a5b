package native

import (
	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Sleep thresholds
const (
	SleepVelocityThreshold = 0.3 // units/sec - below this, a body might sleep
	SleepAngularThreshold  = 0.2 // rad/sec - below this, a body might sleep
	SleepTimeThreshold     = 0.5 // seconds of low velocity before sleeping
)

// body is a rigid body simulated by the native backend.
type body struct {
	backend *Backend
	index   int // position in backend.bodies

	shape    physics.Shape
	revision uint64 // of shape when mass was derived
	offset   physics.Transform
	pose     physics.Transform

	linVel, angVel rl.Vector3
	force, torque  rl.Vector3
	linDamp        float32
	angDamp        float32

	mass       physics.MassData
	invMass    float32
	invInertia rl.Vector3 // diagonal, in the inertia frame

	friction     float32
	restitution  float32
	gravityScale float32
	sensor       bool
	continuous   bool

	allowSleep bool
	awake      bool
	enabled    bool
	kinematic  bool
	layer      uint32
	sleepTimer float32

	bounds   rl.BoundingBox // world bounds, refreshed every sub-step
	userData any
}

func newBody(p *Backend, def physics.BodyDef) *body {
	b := &body{
		backend:      p,
		shape:        def.Shape,
		offset:       physics.Identity(),
		pose:         def.Pose,
		linDamp:      def.LinearDamp,
		angDamp:      def.AngularDamp,
		friction:     0.2,
		gravityScale: 1,
		allowSleep:   def.AllowSleep,
		awake:        !def.Kinematic,
		enabled:      true,
		kinematic:    def.Kinematic,
		layer:        def.Layer,
		userData:     def.UserData,
	}
	if b.pose.Orientation == (rl.Quaternion{}) {
		b.pose.Orientation = rl.QuaternionIdentity()
	}
	b.revision = physics.ShapeRevision(b.shape)
	b.ResetMassData()
	b.refreshBounds()
	return b
}

// shapePose is the world pose of the attached shape.
func (b *body) shapePose() physics.Transform {
	return b.pose.Mul(b.offset)
}

func (b *body) refreshBounds() {
	b.bounds = b.shape.TransformedAABB(b.shapePose())
}

// centerOfMass returns the world position of the center of mass.
func (b *body) centerOfMass() rl.Vector3 {
	return b.pose.Apply(b.mass.CenterOfMass)
}

// dynamic reports whether the body responds to forces and contacts.
func (b *body) dynamic() bool {
	return !b.kinematic && b.invMass > 0
}

func (b *body) effectiveInvMass() float32 {
	if !b.dynamic() {
		return 0
	}
	return b.invMass
}

// applyInvInertia multiplies v by the world-space inverse inertia tensor.
func (b *body) applyInvInertia(v rl.Vector3) rl.Vector3 {
	if !b.dynamic() {
		return rl.Vector3{}
	}
	q := rl.QuaternionMultiply(b.pose.Orientation, b.mass.InertiaRotation)
	local := rl.Vector3RotateByQuaternion(v, rl.QuaternionInvert(q))
	local = rl.Vector3{X: local.X * b.invInertia.X, Y: local.Y * b.invInertia.Y, Z: local.Z * b.invInertia.Z}
	return rl.Vector3RotateByQuaternion(local, q)
}

// applyImpulseAt changes velocity by an impulse acting at a world point.
func (b *body) applyImpulseAt(impulse, point rl.Vector3) {
	if !b.dynamic() {
		return
	}
	b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(impulse, b.invMass))
	r := rl.Vector3Subtract(point, b.centerOfMass())
	b.angVel = rl.Vector3Add(b.angVel, b.applyInvInertia(rl.Vector3CrossProduct(r, impulse)))
}

func (b *body) applyAngularImpulse(impulse rl.Vector3) {
	if !b.dynamic() {
		return
	}
	b.angVel = rl.Vector3Add(b.angVel, b.applyInvInertia(impulse))
}

// velocityAt is the velocity of the material point at world position p.
func (b *body) velocityAt(p rl.Vector3) rl.Vector3 {
	r := rl.Vector3Subtract(p, b.centerOfMass())
	return rl.Vector3Add(b.linVel, rl.Vector3CrossProduct(b.angVel, r))
}

// moving reports whether the body can push others this step.
func (b *body) moving() bool {
	if b.kinematic {
		return rl.Vector3Length(b.linVel) > 0 || rl.Vector3Length(b.angVel) > 0
	}
	return b.awake
}

// wake forces the body out of sleep state
func (b *body) wake() {
	if b.kinematic {
		return
	}
	b.awake = true
	b.sleepTimer = 0
}

// trySleep puts the body to sleep after it has been slow for long enough.
func (b *body) trySleep(dt float32) {
	if !b.allowSleep || !b.awake || b.kinematic {
		return
	}
	if rl.Vector3Length(b.linVel) < SleepVelocityThreshold && rl.Vector3Length(b.angVel) < SleepAngularThreshold {
		b.sleepTimer += dt
		if b.sleepTimer >= SleepTimeThreshold {
			b.awake = false
			b.linVel = rl.Vector3{}
			b.angVel = rl.Vector3{}
		}
	} else {
		b.sleepTimer = 0
	}
}

// physics.Body

func (b *body) Pose() physics.Transform { return b.pose }

func (b *body) SetPose(p physics.Transform) {
	if p.Orientation == (rl.Quaternion{}) {
		p.Orientation = rl.QuaternionIdentity()
	}
	b.pose = p
	b.refreshBounds()
	b.wake()
}

func (b *body) LinearVelocity() rl.Vector3 { return b.linVel }

func (b *body) SetLinearVelocity(v rl.Vector3) {
	b.linVel = v
	if rl.Vector3Length(v) > 0 {
		b.wake()
	}
}

func (b *body) AngularVelocity() rl.Vector3 { return b.angVel }

func (b *body) SetAngularVelocity(v rl.Vector3) {
	b.angVel = v
	if rl.Vector3Length(v) > 0 {
		b.wake()
	}
}

func (b *body) Damping() (linear, angular float32) { return b.linDamp, b.angDamp }

func (b *body) SetDamping(linear, angular float32) {
	b.linDamp, b.angDamp = linear, angular
}

func (b *body) MassData() physics.MassData { return b.mass }

func (b *body) SetMassData(m physics.MassData) {
	if m.InertiaRotation == (rl.Quaternion{}) {
		m.InertiaRotation = rl.QuaternionIdentity()
	}
	b.mass = m
	b.invMass = 0
	if m.Mass > 0 {
		b.invMass = 1 / m.Mass
	}
	b.invInertia = rl.Vector3{X: inverse(m.Inertia.X), Y: inverse(m.Inertia.Y), Z: inverse(m.Inertia.Z)}
}

// ResetMassData derives mass from the shape at the default density. Shapes
// without volume get unit mass so they still respond to forces.
func (b *body) ResetMassData() {
	md := b.shape.MassData(physics.DefaultDensity)
	md.CenterOfMass = b.offset.Apply(md.CenterOfMass)
	md.InertiaRotation = rl.QuaternionMultiply(b.offset.Orientation, md.InertiaRotation)
	if md.Mass < 1e-6 {
		md.Mass = 1
		md.Inertia = rl.Vector3{X: 0.4, Y: 0.4, Z: 0.4}
	}
	b.SetMassData(md)
}

func (b *body) Friction() float32 { return b.friction }
func (b *body) SetFriction(f float32) { b.friction = f }
func (b *body) Restitution() float32 { return b.restitution }
func (b *body) SetRestitution(r float32) { b.restitution = r }
func (b *body) GravityScale() float32 { return b.gravityScale }
func (b *body) SetGravityScale(s float32) { b.gravityScale = s }

func (b *body) Sensor() bool { return b.sensor }

func (b *body) SetSensor(sensor bool) error {
	b.sensor = sensor
	return nil
}

func (b *body) Continuous() bool { return b.continuous }

// SetContinuous records the flag. Fast bodies are sub-stepped instead of swept.
func (b *body) SetContinuous(continuous bool) error {
	b.continuous = continuous
	return nil
}

func (b *body) SleepingAllowed() bool { return b.allowSleep }

func (b *body) SetSleepingAllowed(allowed bool) {
	b.allowSleep = allowed
	if !allowed {
		b.wake()
	}
}

func (b *body) Awake() bool { return b.awake }

func (b *body) SetAwake(awake bool) {
	if awake {
		b.wake()
		return
	}
	b.awake = false
	b.sleepTimer = 0
	if !b.kinematic {
		b.linVel = rl.Vector3{}
		b.angVel = rl.Vector3{}
	}
}

func (b *body) Enabled() bool { return b.enabled }

func (b *body) SetEnabled(enabled bool) {
	b.enabled = enabled
	if enabled {
		b.wake()
	}
}

func (b *body) Kinematic() bool { return b.kinematic }

func (b *body) SetKinematic(kinematic bool) {
	b.kinematic = kinematic
	if kinematic {
		b.awake = false
	} else {
		b.wake()
	}
}

func (b *body) Layer() uint32 { return b.layer }

func (b *body) SetLayer(layer uint32) {
	b.layer = layer
	b.wake()
}

func (b *body) SetShape(shape physics.Shape, offset physics.Transform, updateMass bool) {
	b.shape = shape
	b.revision = physics.ShapeRevision(shape)
	b.offset = offset
	if updateMass {
		b.ResetMassData()
	}
	b.refreshBounds()
	b.wake()
}

func (b *body) AddForce(force rl.Vector3) {
	b.force = rl.Vector3Add(b.force, force)
	b.wake()
}

func (b *body) AddForceAt(force, point rl.Vector3) {
	b.force = rl.Vector3Add(b.force, force)
	r := rl.Vector3Subtract(point, b.centerOfMass())
	b.torque = rl.Vector3Add(b.torque, rl.Vector3CrossProduct(r, force))
	b.wake()
}

func (b *body) AddTorque(torque rl.Vector3) {
	b.torque = rl.Vector3Add(b.torque, torque)
	b.wake()
}

func (b *body) AddImpulse(impulse rl.Vector3) {
	b.wake()
	if b.dynamic() {
		b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(impulse, b.invMass))
	}
}

func (b *body) AddImpulseAt(impulse, point rl.Vector3) {
	b.wake()
	b.applyImpulseAt(impulse, point)
}

func (b *body) AddAngularImpulse(impulse rl.Vector3) {
	b.wake()
	b.applyAngularImpulse(impulse)
}

func (b *body) PointVelocity(point rl.Vector3) rl.Vector3 { return b.velocityAt(point) }

func (b *body) Bounds() rl.BoundingBox { return b.bounds }

func (b *body) UserData() any { return b.userData }

func inverse(x float32) float32 {
	if x > 0 {
		return 1 / x
	}
	return 0
}
