package script

import (
	"strings"

	"physworld/internal/physics"

	"github.com/d5/tengo/v2"
	rl "github.com/gen2brain/raylib-go/raylib"
)

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.ImmutableArray:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}

func objectAsFloat(obj tengo.Object) (float32, bool) {
	if obj == nil {
		return 0, false
	}
	f, ok := tengo.ToFloat64(obj)
	return float32(f), ok
}

// objectAsVector reads an [x, y, z] array. Missing components are zero.
func objectAsVector(obj tengo.Object) (rl.Vector3, bool) {
	var items []tengo.Object
	switch v := obj.(type) {
	case *tengo.Array:
		items = v.Value
	case *tengo.ImmutableArray:
		items = v.Value
	default:
		return rl.Vector3{}, false
	}
	var out [3]float32
	for i := 0; i < len(items) && i < 3; i++ {
		f, ok := objectAsFloat(items[i])
		if !ok {
			return rl.Vector3{}, false
		}
		out[i] = f
	}
	return rl.Vector3{X: out[0], Y: out[1], Z: out[2]}, true
}

func vectorObject(v rl.Vector3) tengo.Object {
	return &tengo.Array{Value: []tengo.Object{
		&tengo.Float{Value: float64(v.X)},
		&tengo.Float{Value: float64(v.Y)},
		&tengo.Float{Value: float64(v.Z)},
	}}
}

func boolObject(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func errorObject(err error) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: err.Error()}}
}

// colliderName is the scene name of c, or its debug string when unnamed.
func colliderName(c *physics.Collider) string {
	if c == nil {
		return ""
	}
	if name, ok := c.UserData.(string); ok && name != "" {
		return name
	}
	return c.String()
}

func contactObject(ct physics.Contact) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"a":      &tengo.String{Value: colliderName(ct.A)},
		"b":      &tengo.String{Value: colliderName(ct.B)},
		"normal": vectorObject(ct.Normal),
		"depth":  &tengo.Float{Value: float64(ct.Depth)},
		"points": &tengo.Int{Value: int64(len(ct.Points))},
	}}
}

func hitObject(hit physics.RaycastHit) tengo.Object {
	child := int64(-1)
	if hit.Child != physics.NoChild {
		child = int64(hit.Child)
	}
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"collider": &tengo.String{Value: colliderName(hit.Collider)},
		"position": vectorObject(hit.Position),
		"normal":   vectorObject(hit.Normal),
		"fraction": &tengo.Float{Value: float64(hit.Fraction)},
		"child":    &tengo.Int{Value: child},
	}}
}
