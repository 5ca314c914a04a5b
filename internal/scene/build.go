package scene

import (
	"fmt"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Built is a world created from a scene. Colliders and Joints hold the named
// entries; unnamed ones are only reachable through the world.
type Built struct {
	World     *physics.World
	Colliders map[string]*physics.Collider
	Joints    map[string]physics.Joint
}

// Build creates a world on backend and fills it from s. The world owns the
// backend; if building fails the world is destroyed.
func Build(s *Scene, backend physics.Backend) (*Built, error) {
	w, err := physics.NewWorld(backend, s.Config())
	if err != nil {
		return nil, err
	}
	out := &Built{
		World:     w,
		Colliders: make(map[string]*physics.Collider),
		Joints:    make(map[string]physics.Joint),
	}
	b := &builder{scene: s, shapes: make(map[string]physics.Shape)}
	defer b.release()

	if err := b.populate(out); err != nil {
		w.Destroy()
		return nil, err
	}
	return out, nil
}

// Reload builds s on a fresh backend from newBackend, runs prepare on the
// result (attaching a script, say) and only then destroys prev. When any step
// fails the new world is discarded and prev is returned unchanged. prepare
// may be nil.
func Reload(prev *Built, s *Scene, newBackend BackendFactory, prepare func(*Built) error) (*Built, error) {
	backend, err := newBackend()
	if err != nil {
		return prev, err
	}
	next, err := Build(s, backend)
	if err != nil {
		return prev, err
	}
	if prepare != nil {
		if err := prepare(next); err != nil {
			next.World.Destroy()
			return prev, err
		}
	}
	if prev != nil {
		prev.World.Destroy()
	}
	return next, nil
}

func (b *builder) populate(out *Built) error {
	w := out.World
	for _, pair := range b.scene.Disabled {
		w.DisableCollisionBetween(pair[0], pair[1])
	}
	for i, def := range b.scene.Colliders {
		c, err := b.collider(w, def)
		if err != nil {
			return fmt.Errorf("scene: collider %s: %w", label(def.Name, i), err)
		}
		if def.Name != "" {
			out.Colliders[def.Name] = c
		}
	}
	for i, def := range b.scene.Joints {
		j, err := joint(out.Colliders, def)
		if err != nil {
			return fmt.Errorf("scene: joint %s: %w", label(def.Name, i), err)
		}
		if def.Name != "" {
			out.Joints[def.Name] = j
		}
	}
	return nil
}

func label(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("#%d", i)
	}
	return fmt.Sprintf("%q", name)
}

// builder turns shape definitions into shapes. Named shapes are built once
// and shared; the builder drops its own references when done.
type builder struct {
	scene  *Scene
	shapes map[string]physics.Shape
}

func (b *builder) release() {
	for _, s := range b.shapes {
		s.Release()
	}
	clear(b.shapes)
}

func (b *builder) named(name string) (physics.Shape, error) {
	if s, ok := b.shapes[name]; ok {
		return s, nil
	}
	def, ok := b.scene.Shapes[name]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q", name)
	}
	s, err := b.shape(def)
	if err != nil {
		return nil, fmt.Errorf("shape %q: %w", name, err)
	}
	b.shapes[name] = s
	return s, nil
}

func shapeOf[T physics.Shape](s T, err error) (physics.Shape, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func vectors(vs []Vec3) []rl.Vector3 {
	out := make([]rl.Vector3, len(vs))
	for i, v := range vs {
		out[i] = v.V()
	}
	return out
}

func (b *builder) shape(def ShapeDef) (physics.Shape, error) {
	kind, ok := physics.ParseShapeType(def.Type)
	if !ok {
		return nil, fmt.Errorf("unknown shape type %q", def.Type)
	}
	switch kind {
	case physics.ShapeSphere:
		return shapeOf(physics.NewSphereShape(def.Radius))
	case physics.ShapeBox:
		return shapeOf(physics.NewBoxShape(def.Size.V()))
	case physics.ShapeCapsule:
		return shapeOf(physics.NewCapsuleShape(def.Radius, def.Length))
	case physics.ShapeCylinder:
		return shapeOf(physics.NewCylinderShape(def.Radius, def.Length))
	case physics.ShapeConvex:
		return shapeOf(physics.NewConvexShape(vectors(def.Points)))
	case physics.ShapeMesh:
		return shapeOf(physics.NewMeshShape(vectors(def.Vertices), def.Indices))
	case physics.ShapeTerrain:
		return shapeOf(physics.NewTerrainShape(def.Heights, def.Samples, def.ScaleXZ, def.ScaleY))
	case physics.ShapeCompound:
		return b.compound(def)
	}
	return nil, fmt.Errorf("unknown shape type %q", def.Type)
}

func (b *builder) compound(def ShapeDef) (physics.Shape, error) {
	children := make([]physics.CompoundChild, 0, len(def.Children))
	var inline []physics.Shape
	defer func() {
		for _, s := range inline {
			s.Release()
		}
	}()
	for i, child := range def.Children {
		var (
			s   physics.Shape
			err error
		)
		if child.Geometry != nil {
			s, err = b.shape(*child.Geometry)
			if err == nil {
				inline = append(inline, s)
			}
		} else {
			s, err = b.named(child.Shape)
		}
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children = append(children, physics.CompoundChild{
			Shape:  s,
			Offset: physics.Transform{Position: child.Offset.V(), Orientation: child.Rotation.Q()},
		})
	}
	if def.Mutable {
		return shapeOf(physics.NewMutableCompoundShape(children))
	}
	return shapeOf(physics.NewFrozenCompoundShape(children))
}

func (b *builder) collider(w *physics.World, def ColliderDef) (*physics.Collider, error) {
	var shape physics.Shape
	switch {
	case def.Shape != "":
		s, err := b.named(def.Shape)
		if err != nil {
			return nil, err
		}
		shape = s
	case def.Geometry != nil:
		s, err := b.shape(*def.Geometry)
		if err != nil {
			return nil, err
		}
		defer s.Release()
		shape = s
	}

	c, err := w.NewCollider(shape, def.Position.V())
	if err != nil {
		return nil, err
	}
	if def.Name != "" {
		c.UserData = def.Name
	}
	if def.Rotation != (Rotation{}) {
		c.SetOrientation(def.Rotation.Q())
	}
	if def.Tag != "" {
		if err := c.SetTag(def.Tag); err != nil {
			c.Destroy()
			return nil, err
		}
	}
	if def.Kinematic != nil {
		c.SetKinematic(*def.Kinematic)
	}
	if def.Sensor {
		if err := c.SetSensor(true); err != nil {
			c.Destroy()
			return nil, err
		}
	}
	if def.Continuous {
		if err := c.SetContinuous(true); err != nil {
			c.Destroy()
			return nil, err
		}
	}
	if def.Friction != nil {
		c.SetFriction(*def.Friction)
	}
	if def.Restitution != nil {
		c.SetRestitution(*def.Restitution)
	}
	if def.GravityScale != nil {
		c.SetGravityScale(*def.GravityScale)
	}
	if def.Mass > 0 {
		c.SetMass(def.Mass)
	}
	if def.Velocity != (Vec3{}) {
		c.SetLinearVelocity(def.Velocity.V())
	}
	if def.Spin != (Vec3{}) {
		c.SetAngularVelocity(def.Spin.V())
	}
	if def.Disabled {
		c.SetEnabled(false)
	}
	return c, nil
}

type (
	limited interface {
		SetLimits(min, max float32) error
	}
	sprung interface {
		SetSpring(s physics.Spring) error
	}
	motorized interface {
		SetMotorTarget(mode physics.MotorMode, target float32) error
		SetMaxMotorForce(f float32) error
		SetFriction(f float32) error
	}
)

func joint(colliders map[string]*physics.Collider, def JointDef) (physics.Joint, error) {
	a, b := colliders[def.A], colliders[def.B]
	if a == nil || b == nil {
		return nil, fmt.Errorf("colliders %q and %q must exist", def.A, def.B)
	}
	kind, ok := physics.ParseJointType(def.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", def.Type)
	}

	anchor := rl.Vector3Lerp(a.Position(), b.Position(), .5)
	if def.Anchor != nil {
		anchor = def.Anchor.V()
	}
	var (
		j   physics.Joint
		err error
	)
	switch kind {
	case physics.JointBall:
		j, err = physics.NewBallJoint(a, b, anchor)
	case physics.JointDistance:
		anchorA, anchorB := a.Position(), b.Position()
		if def.Anchor != nil {
			anchorA = def.Anchor.V()
		}
		if def.AnchorB != nil {
			anchorB = def.AnchorB.V()
		}
		j, err = physics.NewDistanceJoint(a, b, anchorA, anchorB)
	case physics.JointHinge:
		j, err = physics.NewHingeJoint(a, b, anchor, def.Axis.V())
	case physics.JointSlider:
		j, err = physics.NewSliderJoint(a, b, def.Axis.V())
	}
	if err != nil {
		return nil, err
	}
	if err := configure(j, kind, def); err != nil {
		j.Destroy()
		return nil, err
	}
	return j, nil
}

func configure(j physics.Joint, kind physics.JointType, def JointDef) error {
	if def.Name != "" {
		setJointName(j, def.Name)
	}
	if def.Limits != nil {
		lim, ok := j.(limited)
		if !ok {
			return fmt.Errorf("%s joint has no limits", kind)
		}
		lo, hi := def.Limits[0], def.Limits[1]
		if kind == physics.JointHinge {
			lo, hi = degrees(lo), degrees(hi)
		}
		if err := lim.SetLimits(lo, hi); err != nil {
			return err
		}
	}
	if def.Spring != nil {
		if err := j.(sprung).SetSpring(physics.Spring{Frequency: def.Spring.Frequency, Damping: def.Spring.Damping}); err != nil {
			return err
		}
	}
	m, hasMotor := j.(motorized)
	if def.Friction > 0 {
		if !hasMotor {
			return fmt.Errorf("%s joint has no friction", kind)
		}
		if err := m.SetFriction(def.Friction); err != nil {
			return err
		}
	}
	if def.Motor != nil {
		if !hasMotor {
			return fmt.Errorf("%s joint has no motor", kind)
		}
		mode, _ := physics.ParseMotorMode(def.Motor.Mode)
		if def.Motor.MaxForce != nil {
			if err := m.SetMaxMotorForce(*def.Motor.MaxForce); err != nil {
				return err
			}
		}
		if err := m.SetMotorTarget(mode, def.Motor.Target); err != nil {
			return err
		}
	}
	if def.Disabled {
		j.SetEnabled(false)
	}
	return nil
}

// setJointName stores the scene name in the joint's UserData.
func setJointName(j physics.Joint, name string) {
	switch j := j.(type) {
	case *physics.BallJoint:
		j.UserData = name
	case *physics.DistanceJoint:
		j.UserData = name
	case *physics.HingeJoint:
		j.UserData = name
	case *physics.SliderJoint:
		j.UserData = name
	}
}
