// Package scene loads physics worlds from YAML files.
//
// A scene names its tags, the tag pairs that do not collide, reusable shapes,
// colliders and the joints between them:
//
//	world:
//	  gravity: [0, -9.81, 0]
//	  stepCount: 2
//	tags: [ground, crate]
//	disabled:
//	  - [crate, crate]
//	shapes:
//	  crate: {type: box, size: [1, 1, 1]}
//	colliders:
//	  - name: floor
//	    geometry: {type: box, size: [20, 1, 20]}
//	    kinematic: true
//	    tag: ground
//	  - name: a
//	    shape: crate
//	    position: [0, 3, 0]
//	joints:
//	  - type: ball
//	    a: floor
//	    b: a
//	    anchor: [0, 2, 0]
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gopkg.in/yaml.v3"
)

// Vec3 is a YAML [x, y, z] triple.
type Vec3 [3]float32

// V converts to a raylib vector.
func (v Vec3) V() rl.Vector3 { return rl.Vector3{X: v[0], Y: v[1], Z: v[2]} }

// Rotation is an [x, y, z] Euler rotation in degrees.
type Rotation [3]float32

// Q converts to a quaternion.
func (r Rotation) Q() rl.Quaternion {
	if r == (Rotation{}) {
		return rl.QuaternionIdentity()
	}
	return rl.QuaternionFromEuler(r[0]*rl.Deg2rad, r[1]*rl.Deg2rad, r[2]*rl.Deg2rad)
}

// Scene is the root of a scene file.
type Scene struct {
	World     WorldSpec           `yaml:"world"`
	Tags      []string            `yaml:"tags"`
	Disabled  [][2]string         `yaml:"disabled"`
	Shapes    map[string]ShapeDef `yaml:"shapes"`
	Colliders []ColliderDef       `yaml:"colliders"`
	Joints    []JointDef          `yaml:"joints"`
}

// WorldSpec overrides physics.DefaultWorldConfig. Unset fields keep the default.
type WorldSpec struct {
	Gravity          *Vec3    `yaml:"gravity"`
	MaxColliders     int      `yaml:"maxColliders"`
	MaxColliderPairs int      `yaml:"maxColliderPairs"`
	MaxContacts      int      `yaml:"maxContacts"`
	StepCount        int      `yaml:"stepCount"`
	AllowSleep       *bool    `yaml:"allowSleep"`
	LinearDamping    *float32 `yaml:"linearDamping"`
	AngularDamping   *float32 `yaml:"angularDamping"`
}

// ShapeDef describes one shape. Which fields apply depends on Type.
type ShapeDef struct {
	Type     string     `yaml:"type"`
	Radius   float32    `yaml:"radius"`
	Length   float32    `yaml:"length"`
	Size     Vec3       `yaml:"size"`
	Points   []Vec3     `yaml:"points"`
	Vertices []Vec3     `yaml:"vertices"`
	Indices  []uint32   `yaml:"indices"`
	Heights  []float32  `yaml:"heights"`
	Samples  int        `yaml:"samples"`
	ScaleXZ  float32    `yaml:"scaleXZ"`
	ScaleY   float32    `yaml:"scaleY"`
	Mutable  bool       `yaml:"mutable"`
	Children []ChildDef `yaml:"children"`
}

// ChildDef places a compound child. Shape names an entry of Scene.Shapes;
// Geometry defines the child inline.
type ChildDef struct {
	Shape    string    `yaml:"shape"`
	Geometry *ShapeDef `yaml:"geometry"`
	Offset   Vec3      `yaml:"offset"`
	Rotation Rotation  `yaml:"rotation"`
}

// ColliderDef describes one collider. Without Shape or Geometry the
// collider gets a point shape.
type ColliderDef struct {
	Name         string    `yaml:"name"`
	Shape        string    `yaml:"shape"`
	Geometry     *ShapeDef `yaml:"geometry"`
	Position     Vec3      `yaml:"position"`
	Rotation     Rotation  `yaml:"rotation"`
	Tag          string    `yaml:"tag"`
	Kinematic    *bool     `yaml:"kinematic"`
	Sensor       bool      `yaml:"sensor"`
	Continuous   bool      `yaml:"continuous"`
	Friction     *float32  `yaml:"friction"`
	Restitution  *float32  `yaml:"restitution"`
	GravityScale *float32  `yaml:"gravityScale"`
	Mass         float32   `yaml:"mass"`
	Velocity     Vec3      `yaml:"velocity"`
	Spin         Vec3      `yaml:"spin"`
	Disabled     bool      `yaml:"disabled"`
}

// JointDef describes one joint between two named colliders. Anchor is the
// joint point for ball and hinge joints and the anchor on A for distance
// joints. Hinge limits are in degrees.
type JointDef struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	A        string      `yaml:"a"`
	B        string      `yaml:"b"`
	Anchor   *Vec3       `yaml:"anchor"`
	AnchorB  *Vec3       `yaml:"anchorB"`
	Axis     Vec3        `yaml:"axis"`
	Limits   *[2]float32 `yaml:"limits"`
	Spring   *SpringDef  `yaml:"spring"`
	Motor    *MotorDef   `yaml:"motor"`
	Friction float32     `yaml:"friction"`
	Disabled bool        `yaml:"disabled"`
}

// SpringDef is a soft constraint setting.
type SpringDef struct {
	Frequency float32 `yaml:"frequency"`
	Damping   float32 `yaml:"damping"`
}

// MotorDef drives a hinge or slider.
type MotorDef struct {
	Mode     string   `yaml:"mode"`
	Target   float32  `yaml:"target"`
	MaxForce *float32 `yaml:"maxForce"`
}

func loadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := os.ReadFile(filename)
	if err != nil {
		return zero, fmt.Errorf("scene: load %s: %w", filename, err)
	}
	spec, err := parseSpec[T](data)
	if err != nil {
		return zero, fmt.Errorf("scene: unmarshal %s: %w", filename, err)
	}
	return spec, nil
}

// ErrEmptyScene is returned for a file with no YAML document, such as one an
// editor has truncated but not yet rewritten.
var ErrEmptyScene = errors.New("scene: empty document")

func parseSpec[T any](data []byte) (T, error) {
	var spec T
	if len(bytes.TrimSpace(data)) == 0 {
		return spec, ErrEmptyScene
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		var zero T
		return zero, err
	}
	return spec, nil
}

// Load reads and validates a scene file.
func Load(filename string) (*Scene, error) {
	s, err := loadSpec[Scene](filename)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %s: %w", filename, err)
	}
	return &s, nil
}

// Parse decodes and validates a scene from YAML.
func Parse(data []byte) (*Scene, error) {
	s, err := parseSpec[Scene](data)
	if err != nil {
		return nil, fmt.Errorf("scene: unmarshal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	return &s, nil
}

// Marshal encodes a scene back to YAML.
func Marshal(s *Scene) ([]byte, error) {
	return yaml.Marshal(s)
}

// Config returns the world settings the scene asks for.
func (s *Scene) Config() physics.WorldConfig {
	cfg := physics.DefaultWorldConfig()
	w := s.World
	if w.Gravity != nil {
		cfg.Gravity = w.Gravity.V()
	}
	if w.MaxColliders > 0 {
		cfg.MaxColliders = w.MaxColliders
	}
	if w.MaxColliderPairs > 0 {
		cfg.MaxColliderPairs = w.MaxColliderPairs
	}
	if w.MaxContacts > 0 {
		cfg.MaxContacts = w.MaxContacts
	}
	if w.StepCount > 0 {
		cfg.StepCount = w.StepCount
	}
	if w.AllowSleep != nil {
		cfg.AllowSleep = *w.AllowSleep
	}
	if w.LinearDamping != nil {
		cfg.LinearDamping = *w.LinearDamping
	}
	if w.AngularDamping != nil {
		cfg.AngularDamping = *w.AngularDamping
	}
	cfg.Tags = append([]string(nil), s.Tags...)
	return cfg
}

// Validate checks references between sections. Geometry itself is checked
// when the shapes are built.
func (s *Scene) Validate() error {
	for name, def := range s.Shapes {
		if err := s.checkShape(def, true); err != nil {
			return fmt.Errorf("shape %q: %w", name, err)
		}
	}
	names := make(map[string]bool, len(s.Colliders))
	for i, c := range s.Colliders {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		} else if names[c.Name] {
			return fmt.Errorf("collider %q: duplicate name", c.Name)
		}
		names[c.Name] = true
		if c.Shape != "" && c.Geometry != nil {
			return fmt.Errorf("collider %s: both shape and geometry set", label)
		}
		if c.Shape != "" {
			if _, ok := s.Shapes[c.Shape]; !ok {
				return fmt.Errorf("collider %s: unknown shape %q", label, c.Shape)
			}
		}
		if c.Geometry != nil {
			if err := s.checkShape(*c.Geometry, true); err != nil {
				return fmt.Errorf("collider %s: %w", label, err)
			}
		}
	}
	for i, j := range s.Joints {
		if _, ok := physics.ParseJointType(j.Type); !ok {
			return fmt.Errorf("joint #%d: unknown type %q", i, j.Type)
		}
		if !names[j.A] || !names[j.B] || j.A == "" || j.B == "" {
			return fmt.Errorf("joint #%d: colliders %q and %q must be named colliders", i, j.A, j.B)
		}
		if (j.Type == physics.JointHinge.String() || j.Type == physics.JointSlider.String()) && j.Axis == (Vec3{}) {
			return fmt.Errorf("joint #%d: %s joint needs an axis", i, j.Type)
		}
		if j.Motor != nil {
			if _, ok := physics.ParseMotorMode(j.Motor.Mode); !ok {
				return fmt.Errorf("joint #%d: unknown motor mode %q", i, j.Motor.Mode)
			}
		}
	}
	return nil
}

func (s *Scene) checkShape(def ShapeDef, allowCompound bool) error {
	kind, ok := physics.ParseShapeType(def.Type)
	if !ok {
		return fmt.Errorf("unknown shape type %q", def.Type)
	}
	if kind != physics.ShapeCompound {
		return nil
	}
	if !allowCompound {
		return physics.ErrNestedCompound
	}
	for i, child := range def.Children {
		switch {
		case child.Geometry != nil:
			if err := s.checkShape(*child.Geometry, false); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		case child.Shape != "":
			ref, ok := s.Shapes[child.Shape]
			if !ok {
				return fmt.Errorf("child %d: unknown shape %q", i, child.Shape)
			}
			if ref.Type == physics.ShapeCompound.String() {
				return fmt.Errorf("child %d: %w", i, physics.ErrNestedCompound)
			}
		default:
			return fmt.Errorf("child %d: needs shape or geometry", i)
		}
	}
	return nil
}

// degrees converts hinge limits written in degrees.
func degrees(v float32) float32 {
	if math.IsInf(float64(v), 0) {
		return v
	}
	return v * rl.Deg2rad
}
