package physics

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// fakeBackend records calls and returns scripted query results.
type fakeBackend struct {
	cfg         BackendConfig
	gravity     rl.Vector3
	bodies      map[*fakeBody]bool
	constraints map[*fakeConstraint]bool
	closed      bool
	steps       int

	rayHits     []RayHit
	overlapHits []OverlapHit
	contacts    []ContactPoint
	onStep      func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		bodies:      make(map[*fakeBody]bool),
		constraints: make(map[*fakeConstraint]bool),
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Init(cfg BackendConfig) error {
	f.cfg = cfg
	f.gravity = cfg.Gravity
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBackend) CreateBody(def BodyDef) (Body, error) {
	b := &fakeBody{def: def, pose: def.Pose, enabled: true, awake: true}
	b.mass = def.Shape.MassData(DefaultDensity)
	f.bodies[b] = true
	return b, nil
}

func (f *fakeBackend) DestroyBody(b Body) { delete(f.bodies, b.(*fakeBody)) }

func (f *fakeBackend) BodyCount() int { return len(f.bodies) }

func (f *fakeBackend) Step(dt float32, steps int) error {
	f.steps++
	if f.onStep != nil {
		f.onStep()
	}
	return nil
}

func (f *fakeBackend) Gravity() rl.Vector3 { return f.gravity }

func (f *fakeBackend) SetGravity(g rl.Vector3) { f.gravity = g }

func (f *fakeBackend) CastRay(origin, direction rl.Vector3) []RayHit { return f.rayHits }

func (f *fakeBackend) Overlap(shape Shape, pose Transform) []OverlapHit { return f.overlapHits }

func (f *fakeBackend) Contacts() []ContactPoint { return f.contacts }

func (f *fakeBackend) CreateConstraint(def ConstraintDef) (Constraint, error) {
	c := &fakeConstraint{def: def, enabled: true}
	if def.Kind == JointDistance {
		d := rl.Vector3Distance(def.AnchorA, def.AnchorB)
		c.min, c.max = d, d
	}
	f.constraints[c] = true
	return c, nil
}

func (f *fakeBackend) DestroyConstraint(c Constraint) { delete(f.constraints, c.(*fakeConstraint)) }

type fakeBody struct {
	def     BodyDef
	pose    Transform
	linVel  rl.Vector3
	angVel  rl.Vector3
	mass    MassData
	enabled bool
	awake   bool
}

func (b *fakeBody) Pose() Transform                     { return b.pose }
func (b *fakeBody) SetPose(p Transform)                 { b.pose = p }
func (b *fakeBody) LinearVelocity() rl.Vector3          { return b.linVel }
func (b *fakeBody) SetLinearVelocity(v rl.Vector3)      { b.linVel = v }
func (b *fakeBody) AngularVelocity() rl.Vector3         { return b.angVel }
func (b *fakeBody) SetAngularVelocity(v rl.Vector3)     { b.angVel = v }
func (b *fakeBody) Damping() (linear, angular float32)  { return b.def.LinearDamp, b.def.AngularDamp }
func (b *fakeBody) SetDamping(linear, angular float32)  { b.def.LinearDamp, b.def.AngularDamp = linear, angular }
func (b *fakeBody) MassData() MassData                  { return b.mass }
func (b *fakeBody) SetMassData(m MassData)              { b.mass = m }
func (b *fakeBody) ResetMassData()                      { b.mass = b.def.Shape.MassData(DefaultDensity) }
func (b *fakeBody) Friction() float32                   { return 0 }
func (b *fakeBody) SetFriction(f float32)               {}
func (b *fakeBody) Restitution() float32                { return 0 }
func (b *fakeBody) SetRestitution(r float32)            {}
func (b *fakeBody) GravityScale() float32               { return 1 }
func (b *fakeBody) SetGravityScale(s float32)           {}
func (b *fakeBody) Sensor() bool                        { return false }
func (b *fakeBody) SetSensor(sensor bool) error         { return nil }
func (b *fakeBody) Continuous() bool                    { return false }
func (b *fakeBody) SetContinuous(continuous bool) error { return ErrUnsupported }
func (b *fakeBody) SleepingAllowed() bool               { return b.def.AllowSleep }
func (b *fakeBody) SetSleepingAllowed(allowed bool)     { b.def.AllowSleep = allowed }
func (b *fakeBody) Awake() bool                         { return b.awake }
func (b *fakeBody) SetAwake(awake bool)                 { b.awake = awake }
func (b *fakeBody) Enabled() bool                       { return b.enabled }
func (b *fakeBody) SetEnabled(enabled bool)             { b.enabled = enabled }
func (b *fakeBody) Kinematic() bool                     { return b.def.Kinematic }
func (b *fakeBody) SetKinematic(kinematic bool)         { b.def.Kinematic = kinematic }
func (b *fakeBody) Layer() uint32                       { return b.def.Layer }
func (b *fakeBody) SetLayer(layer uint32)               { b.def.Layer = layer }

func (b *fakeBody) SetShape(shape Shape, offset Transform, updateMass bool) {
	b.def.Shape = shape
	if updateMass {
		b.ResetMassData()
	}
}

func (b *fakeBody) AddForce(force rl.Vector3)              {}
func (b *fakeBody) AddForceAt(force, point rl.Vector3)     {}
func (b *fakeBody) AddTorque(torque rl.Vector3)            {}
func (b *fakeBody) AddImpulse(impulse rl.Vector3)          {}
func (b *fakeBody) AddImpulseAt(impulse, point rl.Vector3) {}
func (b *fakeBody) AddAngularImpulse(impulse rl.Vector3)   {}

func (b *fakeBody) PointVelocity(point rl.Vector3) rl.Vector3 { return b.linVel }
func (b *fakeBody) Bounds() rl.BoundingBox                    { return b.def.Shape.TransformedAABB(b.pose) }
func (b *fakeBody) UserData() any                             { return b.def.UserData }

type fakeConstraint struct {
	def      ConstraintDef
	enabled  bool
	min, max float32
	spring   Spring
}

func (c *fakeConstraint) Enabled() bool           { return c.enabled }
func (c *fakeConstraint) SetEnabled(enabled bool) { c.enabled = enabled }

func (c *fakeConstraint) Anchors() (rl.Vector3, rl.Vector3) { return c.def.AnchorA, c.def.AnchorB }

func (c *fakeConstraint) SetAnchors(a, b rl.Vector3) error {
	c.def.AnchorA, c.def.AnchorB = a, b
	return nil
}

func (c *fakeConstraint) Axis() rl.Vector3              { return c.def.Axis }
func (c *fakeConstraint) SetAxis(axis rl.Vector3) error { return ErrUnsupported }
func (c *fakeConstraint) Value() float32                { return 0 }
func (c *fakeConstraint) Limits() (min, max float32)    { return c.min, c.max }

func (c *fakeConstraint) SetLimits(min, max float32) error {
	c.min, c.max = min, max
	return nil
}

func (c *fakeConstraint) Spring() Spring { return c.spring }

func (c *fakeConstraint) SetSpring(s Spring) error {
	c.spring = s
	return nil
}

func (c *fakeConstraint) Friction() float32                        { return 0 }
func (c *fakeConstraint) SetFriction(f float32) error              { return nil }
func (c *fakeConstraint) Motor() (MotorMode, float32)              { return MotorNone, 0 }
func (c *fakeConstraint) SetMotor(mode MotorMode, t float32) error { return nil }
func (c *fakeConstraint) MotorSpring() Spring                      { return Spring{} }
func (c *fakeConstraint) SetMotorSpring(s Spring) error            { return nil }
func (c *fakeConstraint) MaxMotorForce() float32                   { return 0 }
func (c *fakeConstraint) SetMaxMotorForce(f float32) error         { return nil }
func (c *fakeConstraint) MotorForce() float32                      { return 0 }
func (c *fakeConstraint) Force() float32                           { return 0 }
func (c *fakeConstraint) Torque() float32                          { return 0 }
