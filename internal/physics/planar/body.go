package planar

import (
	"errors"
	"log"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/jakecoffman/cp"
)

// body wraps a cp.Body and the cp shapes flattened from its physics.Shape.
type body struct {
	backend  *Backend
	cpBody   *cp.Body
	shapes   []*cp.Shape
	attached bool // body and shapes are in the space

	shape    physics.Shape
	revision uint64 // of shape when the cp shapes were built
	offset   physics.Transform
	z        float32
	mass     physics.MassData

	linDamp, angDamp float32
	friction         float32
	restitution      float32
	gravityScale     float32
	sensor           bool

	allowSleep bool
	enabled    bool
	kinematic  bool
	layer      uint32
	userData   any
}

func newBody(p *Backend, def physics.BodyDef) *body {
	b := &body{
		backend:      p,
		shape:        def.Shape,
		offset:       physics.Identity(),
		z:            def.Pose.Position.Z,
		linDamp:      def.LinearDamp,
		angDamp:      def.AngularDamp,
		friction:     0.2,
		gravityScale: 1,
		allowSleep:   def.AllowSleep,
		enabled:      true,
		kinematic:    def.Kinematic,
		layer:        def.Layer,
		userData:     def.UserData,
	}
	if def.Kinematic {
		b.cpBody = cp.NewKinematicBody()
	} else {
		b.cpBody = cp.NewBody(1, 1)
	}
	b.cpBody.UserData = b
	b.cpBody.SetPosition(vec(def.Pose.Position))
	b.cpBody.SetAngle(twist(def.Pose.Orientation))
	b.cpBody.SetVelocityUpdateFunc(b.updateVelocity)
	b.buildShapes()
	b.ResetMassData()
	b.attach()
	return b
}

// buildShapes flattens the physics shape. Unsupported geometry leaves the
// body without shapes.
func (b *body) buildShapes() {
	b.revision = physics.ShapeRevision(b.shape)
	shapes, err := flatten(b.cpBody, b.shape, b.offset, physics.NoChild)
	if err != nil {
		if errors.Is(err, physics.ErrUnsupported) {
			log.Printf("Physics: planar body created without collision geometry: %v", err)
		}
		shapes = nil
	}
	for _, s := range shapes {
		s.SetFriction(float64(b.friction))
		s.SetElasticity(float64(b.restitution))
		s.SetSensor(b.sensor)
	}
	b.shapes = shapes
}

func (b *body) attach() {
	if b.attached {
		return
	}
	space := b.backend.space
	space.AddBody(b.cpBody)
	for _, s := range b.shapes {
		space.AddShape(s)
	}
	b.attached = true
}

func (b *body) detach() {
	if !b.attached {
		return
	}
	space := b.backend.space
	for _, s := range b.shapes {
		space.RemoveShape(s)
	}
	space.RemoveBody(b.cpBody)
	b.attached = false
}

func (b *body) inSpace() bool { return b.attached }

func (b *body) dynamic() bool { return !b.kinematic }

// resting reports whether cp has put the body to sleep, or the body is
// kinematic and standing still.
func (b *body) resting() bool {
	if !b.attached {
		return false
	}
	if b.dynamic() {
		return b.cpBody.IsSleeping()
	}
	return b.cpBody.Velocity() == (cp.Vector{}) && b.cpBody.AngularVelocity() == 0
}

// updateVelocity is cp's integrator with per-body damping and gravity scale.
func (b *body) updateVelocity(cb *cp.Body, gravity cp.Vector, damping, dt float64) {
	lin := dampingFactor(b.linDamp, dt)
	cp.BodyUpdateVelocity(cb, gravity.Mult(float64(b.gravityScale)), lin, dt)
	if b.angDamp == b.linDamp || lin == 0 {
		return
	}
	if w := cb.AngularVelocity(); w != 0 {
		cb.SetAngularVelocity(w / lin * dampingFactor(b.angDamp, dt))
	}
}

func dampingFactor(damping float32, dt float64) float64 {
	f := 1 - float64(damping)*dt
	if f < 0 {
		return 0
	}
	return f
}

func (b *body) wake() {
	if b.attached && b.dynamic() {
		b.cpBody.Activate()
	}
}

func (b *body) clearForces() {
	if !b.dynamic() {
		return
	}
	if b.cpBody.Force() != (cp.Vector{}) {
		b.cpBody.SetForce(cp.Vector{})
	}
	if b.cpBody.Torque() != 0 {
		b.cpBody.SetTorque(0)
	}
}

// reindex refreshes the shape bounds after a teleport.
func (b *body) reindex() {
	if b.attached {
		b.backend.space.ReindexShapesForBody(b.cpBody)
	}
}

// centerOfMass is the world position of the center of gravity.
func (b *body) centerOfMass() cp.Vector {
	return b.cpBody.LocalToWorld(b.cpBody.CenterOfGravity())
}

// applyMass pushes the stored mass data into cp. Only dynamic bodies carry mass.
func (b *body) applyMass() {
	if !b.dynamic() {
		return
	}
	m := b.mass
	mass := float64(m.Mass)
	if mass <= 0 {
		mass = 1
	}
	moment := float64(inertiaAboutZ(m))
	if moment <= 0 {
		moment = mass * 0.4
	}
	b.cpBody.SetMass(mass)
	b.cpBody.SetMoment(moment)
	b.cpBody.SetCenterOfGravity(vec(m.CenterOfMass))
}

// inertiaAboutZ projects the principal inertia onto the world Z axis.
func inertiaAboutZ(m physics.MassData) float32 {
	q := m.InertiaRotation
	if q == (rl.Quaternion{}) {
		q = rl.QuaternionIdentity()
	}
	axes := [3]rl.Vector3{{X: 1}, {Y: 1}, {Z: 1}}
	moments := [3]float32{m.Inertia.X, m.Inertia.Y, m.Inertia.Z}
	var izz float32
	for i, axis := range axes {
		z := rl.Vector3RotateByQuaternion(axis, q).Z
		izz += moments[i] * z * z
	}
	return izz
}

// physics.Body

func (b *body) Pose() physics.Transform {
	p := b.cpBody.Position()
	return physics.Transform{
		Position:    rl.Vector3{X: float32(p.X), Y: float32(p.Y), Z: b.z},
		Orientation: aboutZ(b.cpBody.Angle()),
	}
}

func (b *body) SetPose(p physics.Transform) {
	b.z = p.Position.Z
	b.cpBody.SetPosition(vec(p.Position))
	b.cpBody.SetAngle(twist(p.Orientation))
	b.reindex()
	b.wake()
}

func (b *body) LinearVelocity() rl.Vector3 {
	v := b.cpBody.Velocity()
	return rl.Vector3{X: float32(v.X), Y: float32(v.Y)}
}

func (b *body) SetLinearVelocity(v rl.Vector3) { b.cpBody.SetVelocityVector(vec(v)) }

func (b *body) AngularVelocity() rl.Vector3 {
	return rl.Vector3{Z: float32(b.cpBody.AngularVelocity())}
}

func (b *body) SetAngularVelocity(v rl.Vector3) { b.cpBody.SetAngularVelocity(float64(v.Z)) }

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
	b.applyMass()
}

// ResetMassData derives mass from the shape at the default density.
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

func (b *body) SetFriction(f float32) {
	b.friction = f
	for _, s := range b.shapes {
		s.SetFriction(float64(f))
	}
}

func (b *body) Restitution() float32 { return b.restitution }

func (b *body) SetRestitution(r float32) {
	b.restitution = r
	for _, s := range b.shapes {
		s.SetElasticity(float64(r))
	}
}

func (b *body) GravityScale() float32     { return b.gravityScale }
func (b *body) SetGravityScale(s float32) { b.gravityScale = s }
func (b *body) Sensor() bool              { return b.sensor }

func (b *body) SetSensor(sensor bool) error {
	b.sensor = sensor
	for _, s := range b.shapes {
		s.SetSensor(sensor)
	}
	return nil
}

func (b *body) Continuous() bool { return false }

// SetContinuous is unsupported: cp has no swept collision.
func (b *body) SetContinuous(bool) error { return physics.ErrUnsupported }

func (b *body) SleepingAllowed() bool { return b.allowSleep }

func (b *body) SetSleepingAllowed(allowed bool) {
	b.allowSleep = allowed
	if !allowed {
		b.wake()
	}
}

func (b *body) Awake() bool {
	return b.attached && b.dynamic() && !b.cpBody.IsSleeping()
}

func (b *body) SetAwake(awake bool) {
	if awake {
		b.wake()
		return
	}
	if b.attached && b.dynamic() && !b.cpBody.IsSleeping() {
		b.cpBody.Sleep()
	}
}

func (b *body) Enabled() bool { return b.enabled }

// SetEnabled takes the body, its shapes and its constraints out of the space.
func (b *body) SetEnabled(enabled bool) {
	if b.enabled == enabled {
		return
	}
	b.enabled = enabled
	p := b.backend
	if !enabled {
		for c := range p.constraints {
			if c.a == b || c.b == b {
				c.detach()
			}
		}
		b.detach()
		return
	}
	b.attach()
	for c := range p.constraints {
		if (c.a == b || c.b == b) && c.enabled {
			c.attach()
		}
	}
	b.wake()
}

func (b *body) Kinematic() bool { return b.kinematic }

func (b *body) SetKinematic(kinematic bool) {
	if b.kinematic == kinematic {
		return
	}
	b.kinematic = kinematic
	if kinematic {
		b.cpBody.SetType(cp.BODY_KINEMATIC)
		return
	}
	b.cpBody.SetType(cp.BODY_DYNAMIC)
	b.applyMass()
	b.wake()
}

func (b *body) Layer() uint32         { return b.layer }
func (b *body) SetLayer(layer uint32) { b.layer = layer }

func (b *body) SetShape(shape physics.Shape, offset physics.Transform, updateMass bool) {
	if offset.Orientation == (rl.Quaternion{}) {
		offset.Orientation = rl.QuaternionIdentity()
	}
	attached := b.attached
	b.detach()
	b.shape, b.offset = shape, offset
	b.buildShapes()
	if updateMass {
		b.ResetMassData()
	}
	if attached {
		b.attach()
		b.wake()
	}
}

func (b *body) AddForce(force rl.Vector3) {
	if b.dynamic() {
		b.cpBody.ApplyForceAtWorldPoint(vec(force), b.centerOfMass())
	}
}

func (b *body) AddForceAt(force, point rl.Vector3) {
	if b.dynamic() {
		b.cpBody.ApplyForceAtWorldPoint(vec(force), vec(point))
	}
}

func (b *body) AddTorque(torque rl.Vector3) {
	if b.dynamic() {
		b.cpBody.SetTorque(b.cpBody.Torque() + float64(torque.Z))
	}
}

func (b *body) AddImpulse(impulse rl.Vector3) {
	if b.dynamic() {
		b.cpBody.ApplyImpulseAtWorldPoint(vec(impulse), b.centerOfMass())
		b.wake()
	}
}

func (b *body) AddImpulseAt(impulse, point rl.Vector3) {
	if b.dynamic() {
		b.cpBody.ApplyImpulseAtWorldPoint(vec(impulse), vec(point))
		b.wake()
	}
}

func (b *body) AddAngularImpulse(impulse rl.Vector3) {
	if b.dynamic() {
		w := b.cpBody.AngularVelocity() + float64(impulse.Z)/b.cpBody.Moment()
		b.cpBody.SetAngularVelocity(w)
	}
}

func (b *body) PointVelocity(point rl.Vector3) rl.Vector3 {
	v := b.cpBody.VelocityAtWorldPoint(vec(point))
	return rl.Vector3{X: float32(v.X), Y: float32(v.Y)}
}

func (b *body) Bounds() rl.BoundingBox {
	return b.shape.TransformedAABB(b.Pose().Mul(b.offset))
}

func (b *body) UserData() any { return b.userData }
