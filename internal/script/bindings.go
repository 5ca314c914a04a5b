package script

import (
	"fmt"
	"log"
	"strings"

	"physworld/internal/physics"

	"github.com/d5/tengo/v2"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// defaultLimit caps the results of queries that do not pass one.
const defaultLimit = 64

func fn(name string, f tengo.CallableFunc) *tengo.UserFunction {
	return &tengo.UserFunction{Name: name, Value: f}
}

func (rt *Runtime) collider(obj tengo.Object) *physics.Collider {
	c := rt.scene.Colliders[objectAsString(obj)]
	if c == nil || c.IsDestroyed() {
		return nil
	}
	return c
}

func (rt *Runtime) joint(obj tengo.Object) physics.Joint {
	j := rt.scene.Joints[objectAsString(obj)]
	if j == nil || j.IsDestroyed() {
		return nil
	}
	return j
}

func (rt *Runtime) mask(args []tengo.Object, i int) (physics.TagMask, error) {
	if len(args) <= i {
		return physics.AllTags, nil
	}
	return rt.scene.World.TagMask(objectAsString(args[i]))
}

func limitArg(args []tengo.Object, i int) int {
	if len(args) <= i {
		return defaultLimit
	}
	n, ok := tengo.ToInt(args[i])
	if !ok || n <= 0 {
		return defaultLimit
	}
	return n
}

// vectorSetter binds a collider setter taking one vector.
func (rt *Runtime) vectorSetter(name string, set func(c *physics.Collider, v rl.Vector3)) *tengo.UserFunction {
	return fn(name, func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		v, ok := objectAsVector(args[1])
		if c == nil || !ok {
			return tengo.FalseValue, nil
		}
		set(c, v)
		return tengo.TrueValue, nil
	})
}

// vectorGetter binds a collider getter returning one vector.
func (rt *Runtime) vectorGetter(name string, get func(c *physics.Collider) rl.Vector3) *tengo.UserFunction {
	return fn(name, func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		if c == nil {
			return tengo.UndefinedValue, nil
		}
		return vectorObject(get(c)), nil
	})
}

func (rt *Runtime) buildEngine() *tengo.ImmutableMap {
	w := rt.scene.World
	values := map[string]tengo.Object{}

	values["time"] = fn("time", func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: rt.elapsed}, nil
	})

	values["log"] = fn("log", func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(objectToAny(a))
		}
		log.Printf("Script: %s", strings.Join(parts, " "))
		return tengo.UndefinedValue, nil
	})

	values["colliders"] = fn("colliders", func(args ...tengo.Object) (tengo.Object, error) {
		var names []tengo.Object
		for c := range w.Colliders() {
			names = append(names, &tengo.String{Value: colliderName(c)})
		}
		return &tengo.Array{Value: names}, nil
	})

	values["gravity"] = fn("gravity", func(args ...tengo.Object) (tengo.Object, error) {
		return vectorObject(w.Gravity()), nil
	})

	values["set_gravity"] = fn("set_gravity", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		g, ok := objectAsVector(args[0])
		if !ok {
			return tengo.FalseValue, nil
		}
		if err := w.SetGravity(g); err != nil {
			return nil, err
		}
		return tengo.TrueValue, nil
	})

	values["position"] = rt.vectorGetter("position", (*physics.Collider).Position)
	values["velocity"] = rt.vectorGetter("velocity", (*physics.Collider).LinearVelocity)
	values["spin"] = rt.vectorGetter("spin", (*physics.Collider).AngularVelocity)
	values["set_position"] = rt.vectorSetter("set_position", (*physics.Collider).SetPosition)
	values["set_velocity"] = rt.vectorSetter("set_velocity", (*physics.Collider).SetLinearVelocity)
	values["set_spin"] = rt.vectorSetter("set_spin", (*physics.Collider).SetAngularVelocity)
	values["apply_force"] = rt.vectorSetter("apply_force", (*physics.Collider).ApplyForce)
	values["apply_impulse"] = rt.vectorSetter("apply_impulse", (*physics.Collider).ApplyLinearImpulse)

	values["awake"] = fn("awake", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		return boolObject(c != nil && c.Awake()), nil
	})

	values["set_enabled"] = fn("set_enabled", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		if c == nil {
			return tengo.FalseValue, nil
		}
		c.SetEnabled(!args[1].IsFalsy())
		return tengo.TrueValue, nil
	})

	values["set_kinematic"] = fn("set_kinematic", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		if c == nil {
			return tengo.FalseValue, nil
		}
		c.SetKinematic(!args[1].IsFalsy())
		return tengo.TrueValue, nil
	})

	values["tag"] = fn("tag", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		if c == nil {
			return tengo.UndefinedValue, nil
		}
		return &tengo.String{Value: c.Tag()}, nil
	})

	values["set_tag"] = fn("set_tag", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		c := rt.collider(args[0])
		if c == nil {
			return tengo.FalseValue, nil
		}
		if err := c.SetTag(objectAsString(args[1])); err != nil {
			return errorObject(err), nil
		}
		return tengo.TrueValue, nil
	})

	// raycast(origin, direction[, filter]) returns the closest hit or undefined.
	values["raycast"] = fn("raycast", func(args ...tengo.Object) (tengo.Object, error) {
		origin, dir, err := rayArgs(args)
		if err != nil {
			return nil, err
		}
		mask, err := rt.mask(args, 2)
		if err != nil {
			return errorObject(err), nil
		}
		hit, ok := w.RaycastClosest(origin, dir, mask)
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return hitObject(hit), nil
	})

	// raycast_all(origin, direction[, filter[, limit]]) stops after limit hits.
	values["raycast_all"] = fn("raycast_all", func(args ...tengo.Object) (tengo.Object, error) {
		origin, dir, err := rayArgs(args)
		if err != nil {
			return nil, err
		}
		mask, err := rt.mask(args, 2)
		if err != nil {
			return errorObject(err), nil
		}
		limit := limitArg(args, 3)
		var hits []tengo.Object
		w.Raycast(origin, dir, mask, func(hit physics.RaycastHit) bool {
			hits = append(hits, hitObject(hit))
			return len(hits) >= limit
		})
		return &tengo.Array{Value: hits}, nil
	})

	// query_sphere(center, radius[, filter[, limit]]) returns collider names.
	values["query_sphere"] = fn("query_sphere", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		center, ok := objectAsVector(args[0])
		radius, ok2 := objectAsFloat(args[1])
		if !ok || !ok2 {
			return nil, tengo.ErrInvalidArgumentType{Name: "center", Expected: "array, float", Found: args[0].TypeName()}
		}
		return rt.query(args, func(mask physics.TagMask, f physics.QueryFunc) {
			w.QuerySphere(center, radius, mask, f)
		})
	})

	// query_box(center, half_extents[, filter[, limit]]) returns collider names.
	values["query_box"] = fn("query_box", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		center, ok := objectAsVector(args[0])
		half, ok2 := objectAsVector(args[1])
		if !ok || !ok2 {
			return nil, tengo.ErrInvalidArgumentType{Name: "center", Expected: "array", Found: args[0].TypeName()}
		}
		return rt.query(args, func(mask physics.TagMask, f physics.QueryFunc) {
			w.QueryBox(center, half, mask, f)
		})
	})

	values["contacts"] = fn("contacts", func(args ...tengo.Object) (tengo.Object, error) {
		return contactArray(w.Contacts()), nil
	})

	values["entered"] = fn("entered", func(args ...tengo.Object) (tengo.Object, error) {
		return contactArray(rt.entered), nil
	})

	values["exited"] = fn("exited", func(args ...tengo.Object) (tengo.Object, error) {
		return contactArray(rt.exited), nil
	})

	values["collision"] = fn("collision", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		a, b := objectAsString(args[0]), objectAsString(args[1])
		if args[2].IsFalsy() {
			w.DisableCollisionBetween(a, b)
		} else {
			w.EnableCollisionBetween(a, b)
		}
		return tengo.TrueValue, nil
	})

	values["joint_value"] = fn("joint_value", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		switch j := rt.joint(args[0]).(type) {
		case *physics.HingeJoint:
			return &tengo.Float{Value: float64(j.Angle())}, nil
		case *physics.SliderJoint:
			return &tengo.Float{Value: float64(j.Position())}, nil
		case *physics.DistanceJoint:
			return &tengo.Float{Value: float64(j.CurrentDistance())}, nil
		}
		return tengo.UndefinedValue, nil
	})

	// set_motor(joint, mode, target) drives a hinge or slider.
	values["set_motor"] = fn("set_motor", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 3 {
			return nil, tengo.ErrWrongNumArguments
		}
		m, ok := rt.joint(args[0]).(interface {
			SetMotorTarget(physics.MotorMode, float32) error
		})
		if !ok {
			return tengo.FalseValue, nil
		}
		mode, ok := physics.ParseMotorMode(objectAsString(args[1]))
		if !ok {
			return errorObject(fmt.Errorf("unknown motor mode %q", objectAsString(args[1]))), nil
		}
		target, _ := objectAsFloat(args[2])
		if err := m.SetMotorTarget(mode, target); err != nil {
			return errorObject(err), nil
		}
		return tengo.TrueValue, nil
	})

	values["set_joint_enabled"] = fn("set_joint_enabled", func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		j := rt.joint(args[0])
		if j == nil {
			return tengo.FalseValue, nil
		}
		j.SetEnabled(!args[1].IsFalsy())
		return tengo.TrueValue, nil
	})

	return &tengo.ImmutableMap{Value: values}
}

func rayArgs(args []tengo.Object) (origin, dir rl.Vector3, err error) {
	if len(args) < 2 {
		return origin, dir, tengo.ErrWrongNumArguments
	}
	origin, ok := objectAsVector(args[0])
	if !ok {
		return origin, dir, tengo.ErrInvalidArgumentType{Name: "origin", Expected: "array", Found: args[0].TypeName()}
	}
	dir, ok = objectAsVector(args[1])
	if !ok {
		return origin, dir, tengo.ErrInvalidArgumentType{Name: "direction", Expected: "array", Found: args[1].TypeName()}
	}
	return origin, dir, nil
}

// query runs an overlap query and collects up to the limit argument's names.
func (rt *Runtime) query(args []tengo.Object, run func(physics.TagMask, physics.QueryFunc)) (tengo.Object, error) {
	mask, err := rt.mask(args, 2)
	if err != nil {
		return errorObject(err), nil
	}
	limit := limitArg(args, 3)
	var names []tengo.Object
	run(mask, func(c *physics.Collider, child uint32) bool {
		names = append(names, &tengo.String{Value: colliderName(c)})
		return len(names) >= limit
	})
	return &tengo.Array{Value: names}, nil
}

func contactArray(contacts []physics.Contact) tengo.Object {
	out := make([]tengo.Object, len(contacts))
	for i, ct := range contacts {
		out[i] = contactObject(ct)
	}
	return &tengo.Array{Value: out}
}
