package physics

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// BallJoint pins two colliders together at a shared point.
type BallJoint struct {
	joint
}

// NewBallJoint connects a and b at anchor, given in world space.
func NewBallJoint(a, b *Collider, anchor rl.Vector3) (*BallJoint, error) {
	j := &BallJoint{}
	err := newJoint(j, &j.joint, jointDef{
		ConstraintDef: ConstraintDef{Kind: JointBall, AnchorA: anchor, AnchorB: anchor},
		userA:         a,
		userB:         b,
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// SetAnchor moves the shared point to a new world position.
func (j *BallJoint) SetAnchor(anchor rl.Vector3) error {
	return j.live().apply("anchor", j.constraint.SetAnchors(anchor, anchor))
}

// SetResponseTime is not available on ball joints; it logs a warning.
func (j *BallJoint) SetResponseTime(float32) {
	j.live().unsupported("response time")
}

// SetTightness is not available on ball joints; it logs a warning.
func (j *BallJoint) SetTightness(float32) {
	j.live().unsupported("tightness")
}

func (j *BallJoint) Spring() Spring { return j.live().constraint.Spring() }

func (j *BallJoint) SetSpring(s Spring) error {
	return j.live().apply("spring", j.constraint.SetSpring(s))
}

// DistanceJoint keeps the distance between two anchors within limits.
// A new joint is rigid at the anchors' current distance.
type DistanceJoint struct {
	joint
}

// NewDistanceJoint connects anchorA on a to anchorB on b, both in world space.
func NewDistanceJoint(a, b *Collider, anchorA, anchorB rl.Vector3) (*DistanceJoint, error) {
	j := &DistanceJoint{}
	err := newJoint(j, &j.joint, jointDef{
		ConstraintDef: ConstraintDef{Kind: JointDistance, AnchorA: anchorA, AnchorB: anchorB},
		userA:         a,
		userB:         b,
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Distance returns the maximum allowed distance.
func (j *DistanceJoint) Distance() float32 {
	_, max := j.live().constraint.Limits()
	return max
}

// SetDistance makes the joint rigid at d.
func (j *DistanceJoint) SetDistance(d float32) error {
	return j.SetLimits(d, d)
}

// CurrentDistance is the anchor separation after the last step.
func (j *DistanceJoint) CurrentDistance() float32 { return j.live().constraint.Value() }

func (j *DistanceJoint) Limits() (min, max float32) { return j.live().constraint.Limits() }

func (j *DistanceJoint) SetLimits(min, max float32) error {
	if err := checkLimits(min, max); err != nil {
		return err
	}
	if min < 0 {
		min = 0
	}
	return j.live().apply("limits", j.constraint.SetLimits(min, max))
}

// ResetLimits lets the anchors move anywhere from touching to infinitely apart.
func (j *DistanceJoint) ResetLimits() error {
	return j.SetLimits(0, float32(math.Inf(1)))
}

func (j *DistanceJoint) Spring() Spring { return j.live().constraint.Spring() }

func (j *DistanceJoint) SetSpring(s Spring) error {
	return j.live().apply("spring", j.constraint.SetSpring(s))
}

// SetResponseTime softens the limits with a spring of frequency 1/rt.
func (j *DistanceJoint) SetResponseTime(rt float32) error {
	if !(rt > 0) {
		return j.SetSpring(Spring{})
	}
	s := j.Spring()
	s.Frequency = 1 / rt
	return j.SetSpring(s)
}

// SetTightness is not available on distance joints; it logs a warning.
func (j *DistanceJoint) SetTightness(float32) {
	j.live().unsupported("tightness")
}

// axisJoint holds the limit, friction, motor and spring controls shared by
// hinge and slider joints.
type axisJoint struct {
	joint
	naturalMin, naturalMax float32
}

func (j *axisJoint) init(self Joint, def jointDef, naturalMin, naturalMax float32) error {
	axis, err := normalizeAxis(def.Axis)
	if err != nil {
		return err
	}
	def.Axis = axis
	j.naturalMin, j.naturalMax = naturalMin, naturalMax
	return newJoint(self, &j.joint, def)
}

// Axis returns the joint axis in world space.
func (j *axisJoint) Axis() rl.Vector3 { return j.live().constraint.Axis() }

// SetAxis is rejected by most backends once the joint exists.
func (j *axisJoint) SetAxis(axis rl.Vector3) error {
	axis, err := normalizeAxis(axis)
	if err != nil {
		return err
	}
	return j.live().apply("axis", j.constraint.SetAxis(axis))
}

func (j *axisJoint) Limits() (min, max float32) { return j.live().constraint.Limits() }

func (j *axisJoint) SetLimits(min, max float32) error {
	if err := checkLimits(min, max); err != nil {
		return err
	}
	return j.live().apply("limits", j.constraint.SetLimits(min, max))
}

// ResetLimits restores the joint's unrestricted range.
func (j *axisJoint) ResetLimits() error {
	return j.SetLimits(j.naturalMin, j.naturalMax)
}

func (j *axisJoint) Friction() float32 { return j.live().constraint.Friction() }

func (j *axisJoint) SetFriction(f float32) error {
	return j.live().apply("friction", j.constraint.SetFriction(f))
}

// MotorTarget returns the motor mode and its velocity or position target.
func (j *axisJoint) MotorTarget() (MotorMode, float32) { return j.live().constraint.Motor() }

// SetMotorTarget drives the joint. MotorNone switches the motor off.
func (j *axisJoint) SetMotorTarget(mode MotorMode, target float32) error {
	if mode == MotorNone {
		target = 0
	}
	return j.live().apply("motor", j.constraint.SetMotor(mode, target))
}

func (j *axisJoint) MotorSpring() Spring { return j.live().constraint.MotorSpring() }

func (j *axisJoint) SetMotorSpring(s Spring) error {
	return j.live().apply("motor spring", j.constraint.SetMotorSpring(s))
}

func (j *axisJoint) MaxMotorForce() float32 { return j.live().constraint.MaxMotorForce() }

func (j *axisJoint) SetMaxMotorForce(f float32) error {
	return j.live().apply("max motor force", j.constraint.SetMaxMotorForce(f))
}

// MotorForce is the force (or torque) the motor applied in the last step.
func (j *axisJoint) MotorForce() float32 { return j.live().constraint.MotorForce() }

// Spring softens the limits.
func (j *axisJoint) Spring() Spring { return j.live().constraint.Spring() }

func (j *axisJoint) SetSpring(s Spring) error {
	return j.live().apply("spring", j.constraint.SetSpring(s))
}

// HingeJoint lets two colliders rotate about a shared axis through an anchor.
type HingeJoint struct {
	axisJoint
}

// NewHingeJoint connects a and b at anchor, rotating about axis (world space).
func NewHingeJoint(a, b *Collider, anchor, axis rl.Vector3) (*HingeJoint, error) {
	j := &HingeJoint{}
	err := j.init(j, jointDef{
		ConstraintDef: ConstraintDef{Kind: JointHinge, AnchorA: anchor, AnchorB: anchor, Axis: axis},
		userA:         a,
		userB:         b,
	}, -math.Pi, math.Pi)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Angle is the rotation about the axis since creation, in radians.
func (j *HingeJoint) Angle() float32 { return j.live().constraint.Value() }

// SliderJoint lets two colliders translate along a shared axis.
type SliderJoint struct {
	axisJoint
}

// NewSliderJoint connects a and b, sliding along axis (world space).
func NewSliderJoint(a, b *Collider, axis rl.Vector3) (*SliderJoint, error) {
	var anchorA, anchorB rl.Vector3
	if a != nil && !a.destroyed {
		anchorA = a.Position()
	}
	if b != nil && !b.destroyed {
		anchorB = b.Position()
	}
	j := &SliderJoint{}
	err := j.init(j, jointDef{
		ConstraintDef: ConstraintDef{Kind: JointSlider, AnchorA: anchorA, AnchorB: anchorB, Axis: axis},
		userA:         a,
		userB:         b,
	}, float32(math.Inf(-1)), float32(math.Inf(1)))
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Position is the translation along the axis since creation.
func (j *SliderJoint) Position() float32 { return j.live().constraint.Value() }
