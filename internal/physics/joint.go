package physics

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// JointType identifies a Joint variant.
type JointType int

const (
	JointBall JointType = iota
	JointDistance
	JointHinge
	JointSlider
)

var jointTypeNames = [...]string{"ball", "distance", "hinge", "slider"}

func (t JointType) String() string {
	if t < 0 || int(t) >= len(jointTypeNames) {
		return fmt.Sprintf("JointType(%d)", int(t))
	}
	return jointTypeNames[t]
}

// ParseJointType maps a joint name back to its JointType.
func ParseJointType(name string) (JointType, bool) {
	for i, n := range jointTypeNames {
		if n == name {
			return JointType(i), true
		}
	}
	return 0, false
}

// MotorMode selects what a hinge or slider motor drives toward.
type MotorMode int

const (
	MotorNone MotorMode = iota
	MotorVelocity
	MotorPosition
)

var motorModeNames = [...]string{"none", "velocity", "position"}

func (m MotorMode) String() string {
	if m < 0 || int(m) >= len(motorModeNames) {
		return fmt.Sprintf("MotorMode(%d)", int(m))
	}
	return motorModeNames[m]
}

// ParseMotorMode maps a motor mode name back to its MotorMode.
func ParseMotorMode(name string) (MotorMode, bool) {
	for i, n := range motorModeNames {
		if n == name {
			return MotorMode(i), true
		}
	}
	return 0, false
}

// Spring softens a limit or motor. A zero Frequency means rigid.
type Spring struct {
	Frequency float32
	Damping   float32
}

// Joint is a two-body constraint. Joints are destroyed explicitly or when
// either of their colliders is destroyed.
type Joint interface {
	Type() JointType
	Colliders() (*Collider, *Collider)
	Destroy()
	IsDestroyed() bool
	Enabled() bool
	SetEnabled(enabled bool)
	// Anchors returns the attachment points in world space.
	Anchors() (rl.Vector3, rl.Vector3)
	// Force and Torque are the reaction magnitudes of the last step.
	Force() float32
	Torque() float32

	base() *joint
}

// Roles of the three lists a joint belongs to.
const (
	roleA = iota
	roleB
	roleWorld
)

type jointNode struct {
	prev, next *joint
}

type joint struct {
	kind       JointType
	world      *World
	a, b       *Collider
	constraint Constraint
	nodes      [3]jointNode
	self       Joint
	destroyed  bool

	// UserData is free for the embedding application.
	UserData any
}

// newJoint validates the colliders, creates the backend constraint and links
// the joint into both collider lists and the world list.
func newJoint(self Joint, j *joint, def jointDef) error {
	a, b := def.userA, def.userB
	if a == nil || b == nil || a.destroyed || b.destroyed {
		return ErrDestroyed
	}
	if a.world != b.world {
		return ErrCrossWorld
	}
	if a == b {
		return ErrSameCollider
	}
	w := a.world
	if w.destroyed {
		return ErrWorldDestroyed
	}

	def.A, def.B = a.body, b.body
	constraint, err := w.backend.CreateConstraint(def.ConstraintDef)
	if err != nil {
		return fmt.Errorf("physics: create %s joint: %w", def.Kind, err)
	}

	j.kind = def.Kind
	j.world = w
	j.a, j.b = a, b
	j.constraint = constraint
	j.self = self

	j.linkCollider(a, roleA)
	j.linkCollider(b, roleB)
	j.nodes[roleWorld].next = w.joints
	if w.joints != nil {
		w.joints.nodes[roleWorld].prev = j
	}
	w.joints = j
	w.jointCount++
	return nil
}

// jointDef pairs a ConstraintDef with the colliders it is built from.
type jointDef struct {
	ConstraintDef
	userA, userB *Collider
}

// role reports which of the joint's collider lists c's list runs through.
func (j *joint) role(c *Collider) int {
	if c == j.a {
		return roleA
	}
	return roleB
}

func (j *joint) linkCollider(c *Collider, r int) {
	j.nodes[r].prev = nil
	j.nodes[r].next = c.joints
	if head := c.joints; head != nil {
		head.nodes[head.role(c)].prev = j
	}
	c.joints = j
}

func (j *joint) unlinkCollider(c *Collider, r int) {
	n := &j.nodes[r]
	if n.prev != nil {
		n.prev.nodes[n.prev.role(c)].next = n.next
	} else {
		c.joints = n.next
	}
	if n.next != nil {
		n.next.nodes[n.next.role(c)].prev = n.prev
	}
	n.prev, n.next = nil, nil
}

func (j *joint) unlinkWorld() {
	n := &j.nodes[roleWorld]
	if n.prev != nil {
		n.prev.nodes[roleWorld].next = n.next
	} else {
		j.world.joints = n.next
	}
	if n.next != nil {
		n.next.nodes[roleWorld].prev = n.prev
	}
	n.prev, n.next = nil, nil
}

func (j *joint) base() *joint { return j }

// live panics when the joint has been destroyed.
func (j *joint) live() *joint {
	if j.destroyed {
		panic("physics: use of destroyed Joint")
	}
	return j
}

func (j *joint) Type() JointType { return j.kind }

// Colliders returns the two colliders the joint connects. They stay
// readable after the joint is destroyed.
func (j *joint) Colliders() (*Collider, *Collider) { return j.a, j.b }

// Destroy unlinks the joint from its colliders and world and removes the
// backend constraint. Calling it again does nothing.
func (j *joint) Destroy() {
	if j.destroyed {
		return
	}
	j.destroyed = true
	j.unlinkCollider(j.a, roleA)
	j.unlinkCollider(j.b, roleB)
	j.unlinkWorld()
	j.world.backend.DestroyConstraint(j.constraint)
	j.constraint = nil
	j.world.jointCount--
}

func (j *joint) IsDestroyed() bool { return j.destroyed }

func (j *joint) Enabled() bool { return j.live().constraint.Enabled() }

func (j *joint) SetEnabled(enabled bool) { j.live().constraint.SetEnabled(enabled) }

func (j *joint) Anchors() (rl.Vector3, rl.Vector3) { return j.live().constraint.Anchors() }

func (j *joint) Force() float32 { return j.live().constraint.Force() }

func (j *joint) Torque() float32 { return j.live().constraint.Torque() }

// apply runs a backend setter, turning ErrUnsupported into a warning.
func (j *joint) apply(op string, err error) error {
	return j.world.capability(j.kind.String()+" joint "+op, err)
}

func (j *joint) unsupported(op string) {
	j.world.warn(j.kind.String() + " joint " + op)
}

func checkLimits(min, max float32) error {
	if min > max {
		return fmt.Errorf("%w: %v > %v", ErrInvalidLimits, min, max)
	}
	return nil
}

func normalizeAxis(axis rl.Vector3) (rl.Vector3, error) {
	l := rl.Vector3Length(axis)
	if !(l > 0) {
		return rl.Vector3{}, ErrInvalidAxis
	}
	return rl.Vector3Scale(axis, 1/l), nil
}
