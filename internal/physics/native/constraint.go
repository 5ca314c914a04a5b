package native

import (
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Baumgarte stiffness for rigid constraint rows
const jointBeta = 0.2

// constraint is a two-body joint solved with sequential impulses. Anchors and
// axes are stored in each body's space so they follow the bodies.
type constraint struct {
	backend *Backend
	kind    physics.JointType
	a, b    *body
	index   int // position in backend.constraints
	enabled bool

	localA, localB rl.Vector3 // anchors
	axisA, axisB   rl.Vector3 // joint axis
	refA, refB     rl.Vector3 // hinge zero-angle reference
	slideOrigin    rl.Vector3 // slider zero position, in A's space
	relRot         rl.Quaternion

	minLimit, maxLimit float32
	spring             physics.Spring
	friction           float32
	motorMode          physics.MotorMode
	motorTarget        float32
	motorSpring        physics.Spring
	maxMotorForce      float32

	// results of the last sub-step
	linearImpulse  float32
	angularImpulse float32
	motorImpulse   float32
	lastH          float32
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
		localA:        a.pose.InverseApply(def.AnchorA),
		localB:        b.pose.InverseApply(def.AnchorB),
		maxMotorForce: float32(math.Inf(1)),
	}
	switch def.Kind {
	case physics.JointBall:
	case physics.JointDistance:
		d := rl.Vector3Distance(def.AnchorA, def.AnchorB)
		c.minLimit, c.maxLimit = d, d
	case physics.JointHinge, physics.JointSlider:
		axis := rl.Vector3Normalize(def.Axis)
		c.axisA = a.pose.InverseApplyVector(axis)
		c.axisB = b.pose.InverseApplyVector(axis)
		ref := perpendicular(axis)
		c.refA = a.pose.InverseApplyVector(ref)
		c.refB = b.pose.InverseApplyVector(ref)
		c.slideOrigin = a.pose.InverseApply(def.AnchorB)
		c.relRot = rl.QuaternionMultiply(rl.QuaternionInvert(a.pose.Orientation), b.pose.Orientation)
		if def.Kind == physics.JointHinge {
			c.minLimit, c.maxLimit = -math.Pi, math.Pi
		} else {
			c.minLimit, c.maxLimit = float32(math.Inf(-1)), float32(math.Inf(1))
		}
	default:
		return nil, physics.ErrUnsupported
	}
	return c, nil
}

func (c *constraint) anchorsWorld() (rl.Vector3, rl.Vector3) {
	return c.a.pose.Apply(c.localA), c.b.pose.Apply(c.localB)
}

func (c *constraint) axisWorld() rl.Vector3 {
	return c.a.pose.ApplyVector(c.axisA)
}

func (c *constraint) hingeAngle() float32 {
	axis := c.axisWorld()
	ra := c.a.pose.ApplyVector(c.refA)
	rb := c.b.pose.ApplyVector(c.refB)
	y := rl.Vector3DotProduct(rl.Vector3CrossProduct(ra, rb), axis)
	x := rl.Vector3DotProduct(ra, rb)
	return float32(math.Atan2(float64(y), float64(x)))
}

func (c *constraint) sliderPosition() float32 {
	_, pb := c.anchorsWorld()
	origin := c.a.pose.Apply(c.slideOrigin)
	return rl.Vector3DotProduct(rl.Vector3Subtract(pb, origin), c.axisWorld())
}

// physics.Constraint

func (c *constraint) Enabled() bool { return c.enabled }

func (c *constraint) SetEnabled(enabled bool) {
	c.enabled = enabled
	c.a.wake()
	c.b.wake()
}

func (c *constraint) Anchors() (rl.Vector3, rl.Vector3) { return c.anchorsWorld() }

// SetAnchors moves the attachment points. Only ball joints can be re-anchored.
func (c *constraint) SetAnchors(a, b rl.Vector3) error {
	if c.kind != physics.JointBall {
		return physics.ErrUnsupported
	}
	c.localA = c.a.pose.InverseApply(a)
	c.localB = c.b.pose.InverseApply(b)
	c.a.wake()
	c.b.wake()
	return nil
}

func (c *constraint) Axis() rl.Vector3 { return c.axisWorld() }

func (c *constraint) SetAxis(rl.Vector3) error { return physics.ErrUnsupported }

func (c *constraint) Value() float32 {
	switch c.kind {
	case physics.JointDistance:
		pa, pb := c.anchorsWorld()
		return rl.Vector3Distance(pa, pb)
	case physics.JointHinge:
		return c.hingeAngle()
	case physics.JointSlider:
		return c.sliderPosition()
	}
	return 0
}

func (c *constraint) Limits() (min, max float32) { return c.minLimit, c.maxLimit }

func (c *constraint) SetLimits(min, max float32) error {
	if c.kind == physics.JointBall {
		return physics.ErrUnsupported
	}
	c.minLimit, c.maxLimit = min, max
	c.a.wake()
	c.b.wake()
	return nil
}

func (c *constraint) Spring() physics.Spring { return c.spring }

func (c *constraint) SetSpring(s physics.Spring) error {
	if c.kind == physics.JointBall {
		return physics.ErrUnsupported
	}
	c.spring = s
	return nil
}

func (c *constraint) Friction() float32 { return c.friction }

func (c *constraint) SetFriction(f float32) error {
	if c.kind != physics.JointHinge && c.kind != physics.JointSlider {
		return physics.ErrUnsupported
	}
	c.friction = f
	return nil
}

func (c *constraint) Motor() (physics.MotorMode, float32) { return c.motorMode, c.motorTarget }

func (c *constraint) SetMotor(mode physics.MotorMode, target float32) error {
	if c.kind != physics.JointHinge && c.kind != physics.JointSlider {
		return physics.ErrUnsupported
	}
	c.motorMode, c.motorTarget = mode, target
	c.motorImpulse = 0
	c.a.wake()
	c.b.wake()
	return nil
}

func (c *constraint) MotorSpring() physics.Spring { return c.motorSpring }

func (c *constraint) SetMotorSpring(s physics.Spring) error {
	if c.kind != physics.JointHinge && c.kind != physics.JointSlider {
		return physics.ErrUnsupported
	}
	c.motorSpring = s
	return nil
}

func (c *constraint) MaxMotorForce() float32 { return c.maxMotorForce }

func (c *constraint) SetMaxMotorForce(f float32) error {
	if c.kind != physics.JointHinge && c.kind != physics.JointSlider {
		return physics.ErrUnsupported
	}
	c.maxMotorForce = f
	return nil
}

func (c *constraint) MotorForce() float32 { return perSecond(c.motorImpulse, c.lastH) }
func (c *constraint) Force() float32 { return perSecond(c.linearImpulse, c.lastH) }
func (c *constraint) Torque() float32 { return perSecond(c.angularImpulse, c.lastH) }

func perSecond(impulse, h float32) float32 {
	if h <= 0 {
		return 0
	}
	return absf(impulse) / h
}

// Solver

// softness returns the bias factor and compliance for a row. A zero-frequency
// spring is rigid.
func softness(s physics.Spring, effMass, h float32) (beta, gamma float32) {
	if s.Frequency <= 0 || effMass <= 0 {
		return jointBeta, 0
	}
	omega := 2 * math.Pi * s.Frequency
	d := 2 * effMass * s.Damping * omega
	k := effMass * omega * omega
	denom := h * (d + h*k)
	if denom <= 0 {
		return jointBeta, 0
	}
	return h * k / (d + h*k), 1 / denom
}

// row is one scalar constraint solved by sequential impulses.
type row struct {
	linear     bool
	n          rl.Vector3 // direction
	pa, pb     rl.Vector3 // world points for linear rows
	bias       float32    // velocity bias
	gamma      float32
	lo, hi     float32
	acc        float32
	invEffMass float32
	effMass    float32
}

func (c *constraint) newLinearRow(n, pa, pb rl.Vector3) row {
	r := row{linear: true, n: n, pa: pa, pb: pb, lo: float32(math.Inf(-1)), hi: float32(math.Inf(1))}
	ra := rl.Vector3Subtract(pa, c.a.centerOfMass())
	rb := rl.Vector3Subtract(pb, c.b.centerOfMass())
	k := c.a.effectiveInvMass() + c.b.effectiveInvMass()
	k += rl.Vector3DotProduct(n, rl.Vector3CrossProduct(c.a.applyInvInertia(rl.Vector3CrossProduct(ra, n)), ra))
	k += rl.Vector3DotProduct(n, rl.Vector3CrossProduct(c.b.applyInvInertia(rl.Vector3CrossProduct(rb, n)), rb))
	r.invEffMass = k
	r.effMass = inverse(k)
	return r
}

func (c *constraint) newAngularRow(n rl.Vector3) row {
	r := row{n: n, lo: float32(math.Inf(-1)), hi: float32(math.Inf(1))}
	k := rl.Vector3DotProduct(n, c.a.applyInvInertia(n)) + rl.Vector3DotProduct(n, c.b.applyInvInertia(n))
	r.invEffMass = k
	r.effMass = inverse(k)
	return r
}

// withError sets the bias so the row removes position error e over time.
func (r *row) withError(e float32, s physics.Spring, h float32) {
	beta, gamma := softness(s, r.effMass, h)
	r.bias = beta / h * e
	r.gamma = gamma
}

func (c *constraint) solveRow(r *row) float32 {
	if r.invEffMass+r.gamma <= 1e-12 {
		return 0
	}
	var v float32
	if r.linear {
		v = rl.Vector3DotProduct(r.n, rl.Vector3Subtract(c.b.velocityAt(r.pb), c.a.velocityAt(r.pa)))
	} else {
		v = rl.Vector3DotProduct(r.n, rl.Vector3Subtract(c.b.angVel, c.a.angVel))
	}
	lambda := -(v + r.bias + r.gamma*r.acc) / (r.invEffMass + r.gamma)
	old := r.acc
	r.acc = clampf(old+lambda, r.lo, r.hi)
	lambda = r.acc - old
	impulse := rl.Vector3Scale(r.n, lambda)
	if r.linear {
		c.a.applyImpulseAt(rl.Vector3Negate(impulse), r.pa)
		c.b.applyImpulseAt(impulse, r.pb)
	} else {
		c.a.applyAngularImpulse(rl.Vector3Negate(impulse))
		c.b.applyAngularImpulse(impulse)
	}
	return lambda
}

// jointRows holds the rows built for one sub-step.
type jointRows struct {
	linear  []row
	angular []row
	motor   *row
}

// prepare builds the rows of the constraint for a sub-step of length h.
func (c *constraint) prepare(h float32) jointRows {
	var out jointRows
	pa, pb := c.anchorsWorld()
	basis := [3]rl.Vector3{{X: 1}, {Y: 1}, {Z: 1}}

	pointRows := func(dirs []rl.Vector3) {
		d := rl.Vector3Subtract(pb, pa)
		for _, n := range dirs {
			r := c.newLinearRow(n, pa, pb)
			r.withError(rl.Vector3DotProduct(d, n), physics.Spring{}, h)
			out.linear = append(out.linear, r)
		}
	}

	switch c.kind {
	case physics.JointBall:
		pointRows(basis[:])

	case physics.JointDistance:
		d := rl.Vector3Subtract(pb, pa)
		length := rl.Vector3Length(d)
		n := rl.Vector3{Y: 1}
		if length > 1e-6 {
			n = rl.Vector3Scale(d, 1/length)
		}
		r := c.newLinearRow(n, pa, pb)
		switch {
		case c.minLimit == c.maxLimit:
			r.withError(length-c.minLimit, c.spring, h)
		case length < c.minLimit:
			r.withError(length-c.minLimit, c.spring, h)
			r.lo = 0
		case length > c.maxLimit:
			r.withError(length-c.maxLimit, c.spring, h)
			r.hi = 0
		default:
			return out
		}
		out.linear = append(out.linear, r)

	case physics.JointHinge:
		pointRows(basis[:])
		axis := c.axisWorld()
		axisB := c.b.pose.ApplyVector(c.axisB)
		e := rl.Vector3CrossProduct(axis, axisB)
		t1 := perpendicular(axis)
		t2 := rl.Vector3CrossProduct(axis, t1)
		for _, n := range [2]rl.Vector3{t1, t2} {
			r := c.newAngularRow(n)
			r.withError(rl.Vector3DotProduct(e, n), physics.Spring{}, h)
			out.angular = append(out.angular, r)
		}
		c.axisRows(&out, func() row { return c.newAngularRow(axis) }, c.hingeAngle(), h)

	case physics.JointSlider:
		axis := c.axisWorld()
		t1 := perpendicular(axis)
		t2 := rl.Vector3CrossProduct(axis, t1)
		origin := c.a.pose.Apply(c.slideOrigin)
		d := rl.Vector3Subtract(pb, origin)
		for _, n := range [2]rl.Vector3{t1, t2} {
			r := c.newLinearRow(n, origin, pb)
			r.withError(rl.Vector3DotProduct(d, n), physics.Spring{}, h)
			out.linear = append(out.linear, r)
		}
		// Lock relative rotation
		target := rl.QuaternionMultiply(c.a.pose.Orientation, c.relRot)
		qe := rl.QuaternionMultiply(c.b.pose.Orientation, rl.QuaternionInvert(target))
		if qe.W < 0 {
			qe = rl.Quaternion{X: -qe.X, Y: -qe.Y, Z: -qe.Z, W: -qe.W}
		}
		e := rl.Vector3{X: 2 * qe.X, Y: 2 * qe.Y, Z: 2 * qe.Z}
		for _, n := range basis {
			r := c.newAngularRow(n)
			r.withError(rl.Vector3DotProduct(e, n), physics.Spring{}, h)
			out.angular = append(out.angular, r)
		}
		c.axisRows(&out, func() row { return c.newLinearRow(axis, origin, pb) }, rl.Vector3DotProduct(d, axis), h)
	}
	return out
}

// axisRows adds the limit, motor and friction rows of a hinge or slider.
// mk builds a row along the free axis.
func (c *constraint) axisRows(out *jointRows, mk func() row, value, h float32) {
	add := func(r row) {
		if r.linear {
			out.linear = append(out.linear, r)
		} else {
			out.angular = append(out.angular, r)
		}
	}
	limited := !(c.kind == physics.JointHinge && c.minLimit <= -math.Pi && c.maxLimit >= math.Pi)
	if limited {
		switch {
		case c.minLimit == c.maxLimit:
			r := mk()
			r.withError(value-c.minLimit, c.spring, h)
			add(r)
		case value <= c.minLimit:
			r := mk()
			r.withError(value-c.minLimit, c.spring, h)
			r.lo = 0
			add(r)
		case value >= c.maxLimit:
			r := mk()
			r.withError(value-c.maxLimit, c.spring, h)
			r.hi = 0
			add(r)
		}
	}

	maxImpulse := c.maxMotorForce * h
	switch c.motorMode {
	case physics.MotorVelocity:
		r := mk()
		r.bias = -c.motorTarget
		r.lo, r.hi = -maxImpulse, maxImpulse
		out.motor = &r
	case physics.MotorPosition:
		r := mk()
		e := value - c.motorTarget
		if c.kind == physics.JointHinge {
			e = wrapAngle(e)
		}
		r.withError(e, c.motorSpring, h)
		r.lo, r.hi = -maxImpulse, maxImpulse
		out.motor = &r
	default:
		if c.friction > 0 {
			r := mk()
			r.lo, r.hi = -c.friction*h, c.friction*h
			out.motor = &r
		}
	}
}

func wrapAngle(a float32) float32 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// solve runs one velocity iteration over the prepared rows.
func (c *constraint) solve(rows *jointRows) {
	if rows.motor != nil {
		c.solveRow(rows.motor)
	}
	for i := range rows.angular {
		c.solveRow(&rows.angular[i])
	}
	for i := range rows.linear {
		c.solveRow(&rows.linear[i])
	}
}

// finish records the reaction impulses of the sub-step.
func (c *constraint) finish(rows *jointRows, h float32) {
	c.lastH = h
	c.linearImpulse = 0
	for _, r := range rows.linear {
		c.linearImpulse += r.acc * r.acc
	}
	c.linearImpulse = sqrtf(c.linearImpulse)
	c.angularImpulse = 0
	for _, r := range rows.angular {
		c.angularImpulse += r.acc * r.acc
	}
	c.angularImpulse = sqrtf(c.angularImpulse)
	c.motorImpulse = 0
	if rows.motor != nil && c.motorMode != physics.MotorNone {
		c.motorImpulse = rows.motor.acc
	}
}
