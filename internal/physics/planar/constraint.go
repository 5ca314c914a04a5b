package planar

import (
	"fmt"
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/jakecoffman/cp"
)

// grooveReach caps slider travel when its limits are infinite.
const grooveReach = 1e4

// constraint is a joint built from one or more cp constraints. Parameter
// changes rebuild the cp parts.
type constraint struct {
	backend  *Backend
	kind     physics.JointType
	a, b     *body
	enabled  bool
	attached bool

	parts []*cp.Constraint
	main  *cp.Constraint
	limit *cp.Constraint // hinge rotary limit, slider rotation lock
	motor *cp.Constraint // hinge motor or friction

	localA, localB cp.Vector
	sign           float64 // hinge: +1 for +Z axis, -1 for -Z
	refAngle       float64 // relative angle at creation
	slideAxis      cp.Vector
	slideOrigin    cp.Vector // in A's space

	minLimit, maxLimit float32
	spring             physics.Spring
	friction           float32
	motorMode          physics.MotorMode
	motorTarget        float32
	maxMotorForce      float32
}

func newConstraint(p *Backend, def physics.ConstraintDef) (*constraint, error) {
	a, ok := def.A.(*body)
	if !ok {
		return nil, physics.ErrUnsupported
	}
	b, ok := def.B.(*body)
	if !ok {
		return nil, physics.ErrUnsupported
	}
	c := &constraint{
		backend:       p,
		kind:          def.Kind,
		a:             a,
		b:             b,
		enabled:       true,
		localA:        a.cpBody.WorldToLocal(vec(def.AnchorA)),
		localB:        b.cpBody.WorldToLocal(vec(def.AnchorB)),
		refAngle:      b.cpBody.Angle() - a.cpBody.Angle(),
		maxMotorForce: float32(math.Inf(1)),
	}
	axis := rl.Vector3Normalize(def.Axis)
	switch def.Kind {
	case physics.JointBall:
	case physics.JointDistance:
		d := rl.Vector3Distance(def.AnchorA, def.AnchorB)
		c.minLimit, c.maxLimit = d, d
	case physics.JointHinge:
		if math.Abs(float64(axis.Z)) < 0.999 {
			return nil, fmt.Errorf("%w: hinge axis must be Z in the planar backend", physics.ErrUnsupported)
		}
		c.sign = 1
		if axis.Z < 0 {
			c.sign = -1
		}
		c.minLimit, c.maxLimit = -math.Pi, math.Pi
	case physics.JointSlider:
		if math.Abs(float64(axis.Z)) > 1e-3 {
			return nil, fmt.Errorf("%w: slider axis must lie in the XY plane", physics.ErrUnsupported)
		}
		c.slideAxis = vec(axis).Normalize().Rotate(cp.ForAngle(-a.cpBody.Angle()))
		c.slideOrigin = a.cpBody.WorldToLocal(vec(def.AnchorB))
		c.minLimit, c.maxLimit = float32(math.Inf(-1)), float32(math.Inf(1))
	default:
		return nil, physics.ErrUnsupported
	}
	c.rebuild()
	return c, nil
}

// rebuild replaces the cp parts with ones matching the current parameters.
func (c *constraint) rebuild() {
	attached := c.attached
	c.detach()
	c.main, c.limit, c.motor = nil, nil, nil
	ca, cb := c.a.cpBody, c.b.cpBody

	switch c.kind {
	case physics.JointBall:
		c.main = cp.NewPivotJoint2(ca, cb, c.localA, c.localB)
	case physics.JointDistance:
		if c.spring.Frequency > 0 {
			stiffness, damping := c.springCoefficients()
			c.main = cp.NewDampedSpring(ca, cb, c.localA, c.localB, c.restLength(), stiffness, damping)
		} else {
			c.main = cp.NewSlideJoint(ca, cb, c.localA, c.localB, float64(c.minLimit), float64(c.maxLimit))
		}
	case physics.JointHinge:
		c.main = cp.NewPivotJoint2(ca, cb, c.localA, c.localB)
		if c.minLimit > -math.Pi || c.maxLimit < math.Pi {
			lo, hi := float64(c.minLimit), float64(c.maxLimit)
			if c.sign < 0 {
				lo, hi = -hi, -lo
			}
			c.limit = cp.NewRotaryLimitJoint(ca, cb, c.refAngle+lo, c.refAngle+hi)
		}
		switch {
		case c.motorMode == physics.MotorVelocity:
			// cp's simple motor drives wB - wA toward -rate
			c.motor = cp.NewSimpleMotor(ca, cb, -c.sign*float64(c.motorTarget))
			c.motor.SetMaxForce(float64(c.maxMotorForce))
		case c.friction > 0:
			c.motor = cp.NewSimpleMotor(ca, cb, 0)
			c.motor.SetMaxForce(float64(c.friction))
		}
	case physics.JointSlider:
		lo := clampReach(float64(c.minLimit))
		hi := clampReach(float64(c.maxLimit))
		grooveA := c.slideOrigin.Add(c.slideAxis.Mult(lo))
		grooveB := c.slideOrigin.Add(c.slideAxis.Mult(hi))
		c.main = cp.NewGrooveJoint(ca, cb, grooveA, grooveB, c.localB)
		c.limit = cp.NewRotaryLimitJoint(ca, cb, c.refAngle, c.refAngle)
	}

	c.parts = c.parts[:0]
	for _, part := range []*cp.Constraint{c.main, c.limit, c.motor} {
		if part != nil {
			c.parts = append(c.parts, part)
		}
	}
	if attached {
		c.attach()
	}
}

func clampReach(v float64) float64 {
	return math.Max(-grooveReach, math.Min(grooveReach, v))
}

func (c *constraint) restLength() float64 {
	if !math.IsInf(float64(c.maxLimit), 1) {
		return float64(c.maxLimit)
	}
	return float64(c.Value())
}

// springCoefficients maps frequency and damping ratio onto cp's stiffness
// and damping using the reduced mass of the pair.
func (c *constraint) springCoefficients() (stiffness, damping float64) {
	m := reducedMass(c.a, c.b)
	omega := 2 * math.Pi * float64(c.spring.Frequency)
	return m * omega * omega, 2 * m * float64(c.spring.Damping) * omega
}

func reducedMass(a, b *body) float64 {
	var inv float64
	for _, x := range []*body{a, b} {
		if x.dynamic() {
			inv += 1 / x.cpBody.Mass()
		}
	}
	if inv == 0 {
		return 1
	}
	return 1 / inv
}

// attach adds the parts to the space once both bodies are there.
func (c *constraint) attach() {
	if c.attached || !c.enabled || !c.a.attached || !c.b.attached {
		return
	}
	for _, part := range c.parts {
		c.backend.space.AddConstraint(part)
	}
	c.attached = true
}

func (c *constraint) detach() {
	if !c.attached {
		return
	}
	for _, part := range c.parts {
		c.backend.space.RemoveConstraint(part)
	}
	c.attached = false
}

func (c *constraint) wake() {
	c.a.wake()
	c.b.wake()
}

func (c *constraint) relativeAngle() float64 {
	return c.b.cpBody.Angle() - c.a.cpBody.Angle() - c.refAngle
}

func (c *constraint) worldAnchors() (cp.Vector, cp.Vector) {
	return c.a.cpBody.LocalToWorld(c.localA), c.b.cpBody.LocalToWorld(c.localB)
}

// physics.Constraint

func (c *constraint) Enabled() bool { return c.enabled }

func (c *constraint) SetEnabled(enabled bool) {
	c.enabled = enabled
	if enabled {
		c.attach()
	} else {
		c.detach()
	}
	c.wake()
}

func (c *constraint) Anchors() (rl.Vector3, rl.Vector3) {
	pa, pb := c.worldAnchors()
	return rl.Vector3{X: float32(pa.X), Y: float32(pa.Y), Z: c.a.z}, rl.Vector3{X: float32(pb.X), Y: float32(pb.Y), Z: c.b.z}
}

func (c *constraint) SetAnchors(a, b rl.Vector3) error {
	if c.kind != physics.JointBall {
		return physics.ErrUnsupported
	}
	c.localA = c.a.cpBody.WorldToLocal(vec(a))
	c.localB = c.b.cpBody.WorldToLocal(vec(b))
	c.rebuild()
	c.wake()
	return nil
}

func (c *constraint) Axis() rl.Vector3 {
	switch c.kind {
	case physics.JointHinge:
		return rl.Vector3{Z: float32(c.sign)}
	case physics.JointSlider:
		d := cp.ForAngle(c.a.cpBody.Angle()).Rotate(c.slideAxis)
		return rl.Vector3{X: float32(d.X), Y: float32(d.Y)}
	}
	return rl.Vector3{}
}

func (c *constraint) SetAxis(rl.Vector3) error { return physics.ErrUnsupported }

func (c *constraint) Value() float32 {
	switch c.kind {
	case physics.JointDistance:
		pa, pb := c.worldAnchors()
		return float32(pa.Distance(pb))
	case physics.JointHinge:
		return float32(wrapAngle(c.sign * c.relativeAngle()))
	case physics.JointSlider:
		origin := c.a.cpBody.LocalToWorld(c.slideOrigin)
		_, pb := c.worldAnchors()
		axis := cp.ForAngle(c.a.cpBody.Angle()).Rotate(c.slideAxis)
		return float32(pb.Sub(origin).Dot(axis))
	}
	return 0
}

func wrapAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

func (c *constraint) Limits() (min, max float32) { return c.minLimit, c.maxLimit }

func (c *constraint) SetLimits(min, max float32) error {
	if c.kind == physics.JointBall {
		return physics.ErrUnsupported
	}
	c.minLimit, c.maxLimit = min, max
	c.rebuild()
	c.wake()
	return nil
}

func (c *constraint) Spring() physics.Spring { return c.spring }

// SetSpring turns a distance joint into a cp damped spring.
func (c *constraint) SetSpring(s physics.Spring) error {
	if c.kind != physics.JointDistance {
		return physics.ErrUnsupported
	}
	c.spring = s
	c.rebuild()
	c.wake()
	return nil
}

func (c *constraint) Friction() float32 { return c.friction }

func (c *constraint) SetFriction(f float32) error {
	if c.kind != physics.JointHinge {
		return physics.ErrUnsupported
	}
	c.friction = f
	c.rebuild()
	return nil
}

func (c *constraint) Motor() (physics.MotorMode, float32) { return c.motorMode, c.motorTarget }

// SetMotor supports velocity motors on hinges only.
func (c *constraint) SetMotor(mode physics.MotorMode, target float32) error {
	if c.kind != physics.JointHinge || mode == physics.MotorPosition {
		return physics.ErrUnsupported
	}
	c.motorMode, c.motorTarget = mode, target
	c.rebuild()
	c.wake()
	return nil
}

func (c *constraint) MotorSpring() physics.Spring { return physics.Spring{} }

func (c *constraint) SetMotorSpring(physics.Spring) error { return physics.ErrUnsupported }

func (c *constraint) MaxMotorForce() float32 { return c.maxMotorForce }

func (c *constraint) SetMaxMotorForce(f float32) error {
	if c.kind != physics.JointHinge {
		return physics.ErrUnsupported
	}
	c.maxMotorForce = f
	if c.motor != nil && c.motorMode == physics.MotorVelocity {
		c.motor.SetMaxForce(float64(f))
	}
	return nil
}

func (c *constraint) MotorForce() float32 {
	if c.motorMode == physics.MotorNone {
		return 0
	}
	return c.perSecond(c.motor)
}

func (c *constraint) Force() float32 { return c.perSecond(c.main) }

func (c *constraint) Torque() float32 { return c.perSecond(c.limit) }

// perSecond converts the last impulse of part into a force.
func (c *constraint) perSecond(part *cp.Constraint) float32 {
	dt := c.backend.lastDt
	if part == nil || !c.attached || dt <= 0 {
		return 0
	}
	return float32(math.Abs(part.Class.GetImpulse()) / dt)
}
