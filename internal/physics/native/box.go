package native

import (
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// orientedBox is a box primitive in world space.
type orientedBox struct {
	center rl.Vector3
	half   [3]float32
	axes   [3]rl.Vector3
}

var worldAxes = [3]rl.Vector3{{X: 1}, {Y: 1}, {Z: 1}}

// placeBox puts a box with the given shape-space center and half extents at pose.
func placeBox(pose physics.Transform, localCenter, half rl.Vector3) orientedBox {
	b := orientedBox{
		center: pose.Apply(localCenter),
		half:   [3]float32{half.X, half.Y, half.Z},
	}
	for i, a := range worldAxes {
		b.axes[i] = rl.Vector3RotateByQuaternion(a, pose.Orientation)
	}
	return b
}

// boundsBox is the axis-aligned box covering bounds.
func boundsBox(bounds rl.BoundingBox) orientedBox {
	size := rl.Vector3Subtract(bounds.Max, bounds.Min)
	return orientedBox{
		center: rl.Vector3Scale(rl.Vector3Add(bounds.Min, bounds.Max), 0.5),
		half:   [3]float32{size.X / 2, size.Y / 2, size.Z / 2},
		axes:   worldAxes,
	}
}

// at returns the point with the given coordinates in the box frame.
func (b orientedBox) at(x, y, z float32) rl.Vector3 {
	p := b.center
	for i, s := range [3]float32{x, y, z} {
		p = rl.Vector3Add(p, rl.Vector3Scale(b.axes[i], s))
	}
	return p
}

// local returns p in the box frame.
func (b orientedBox) local(p rl.Vector3) [3]float32 {
	d := rl.Vector3Subtract(p, b.center)
	return [3]float32{
		rl.Vector3DotProduct(d, b.axes[0]),
		rl.Vector3DotProduct(d, b.axes[1]),
		rl.Vector3DotProduct(d, b.axes[2]),
	}
}

// corners lists the vertices; bit k of the index selects the + side on axis k.
func (b orientedBox) corners() [8]rl.Vector3 {
	var out [8]rl.Vector3
	for i := range out {
		var c [3]float32
		for k := range c {
			c[k] = -b.half[k]
			if i&(1<<k) != 0 {
				c[k] = b.half[k]
			}
		}
		out[i] = b.at(c[0], c[1], c[2])
	}
	return out
}

// inside reports whether p is within margin of the box.
func (b orientedBox) inside(p rl.Vector3, margin float32) bool {
	for k, v := range b.local(p) {
		if absf(v) > b.half[k]+margin {
			return false
		}
	}
	return true
}

// closest clamps p onto the box.
func (b orientedBox) closest(p rl.Vector3) rl.Vector3 {
	c := b.local(p)
	for k := range c {
		c[k] = clampf(c[k], -b.half[k], b.half[k])
	}
	return b.at(c[0], c[1], c[2])
}

// support is the vertex furthest along dir.
func (b orientedBox) support(dir rl.Vector3) rl.Vector3 {
	var c [3]float32
	for k, a := range b.axes {
		c[k] = b.half[k]
		if rl.Vector3DotProduct(a, dir) < 0 {
			c[k] = -c[k]
		}
	}
	return b.at(c[0], c[1], c[2])
}

// extentAlong is the half width of the box measured along a unit axis.
func (b orientedBox) extentAlong(axis rl.Vector3) float32 {
	var r float32
	for k, a := range b.axes {
		r += b.half[k] * absf(rl.Vector3DotProduct(a, axis))
	}
	return r
}

// boxPenetration finds the axis of least overlap among the face normals of
// both boxes and their edge cross products. The normal points from a to b.
// ok is false when some axis separates them.
func boxPenetration(a, b orientedBox) (normal rl.Vector3, depth float32, ok bool) {
	var candidates [15]rl.Vector3
	n := copy(candidates[:], a.axes[:])
	n += copy(candidates[n:], b.axes[:])
	for _, ea := range a.axes {
		for _, eb := range b.axes {
			candidates[n] = rl.Vector3CrossProduct(ea, eb)
			n++
		}
	}

	between := rl.Vector3Subtract(b.center, a.center)
	depth = float32(math.MaxFloat32)
	for _, axis := range candidates {
		l := rl.Vector3Length(axis)
		// Parallel edges give no axis
		if l < 1e-4 {
			continue
		}
		axis = rl.Vector3Scale(axis, 1/l)
		gap := rl.Vector3DotProduct(between, axis)
		overlap := a.extentAlong(axis) + b.extentAlong(axis) - absf(gap)
		if overlap < 0 {
			return rl.Vector3{}, 0, false
		}
		if overlap < depth {
			depth, normal = overlap, axis
			if gap < 0 {
				normal = rl.Vector3Negate(axis)
			}
		}
	}
	return normal, depth, true
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func sqrtf(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
