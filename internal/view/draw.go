// Package view draws physics worlds with raylib: wireframe colliders,
// contacts and joints, a fly camera, a raygui control panel and impact
// sounds.
package view

import (
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const ringSegments = 16

// palette colors colliders by tag. Untagged colliders use the first entry.
var palette = []rl.Color{
	rl.LightGray, rl.SkyBlue, rl.Lime, rl.Orange, rl.Pink,
	rl.Purple, rl.Gold, rl.Beige, rl.Magenta, rl.Green,
}

var (
	colorSelected  = rl.Yellow
	colorDisabled  = rl.NewColor(80, 80, 80, 255)
	colorContact   = rl.Red
	colorJoint     = rl.NewColor(167, 139, 250, 255)
	colorJointOff  = rl.NewColor(90, 80, 120, 255)
	colorBounds    = rl.NewColor(255, 255, 255, 40)
	sleepingFactor = float32(0.5)
)

// Options selects what DrawWorld shows.
type Options struct {
	Contacts bool
	Joints   bool
	Bounds   bool
	Selected *physics.Collider
}

// Stats counts what the last DrawWorld call drew.
type Stats struct {
	Drawn, Culled int
}

// TagColor returns the palette color for the tag at index in the world's tag
// list; index -1 is untagged.
func TagColor(index int) rl.Color {
	return palette[(index+1)%len(palette)]
}

func tagIndex(w *physics.World, tag string) int {
	if tag == "" {
		return -1
	}
	for i, t := range w.Tags() {
		if t == tag {
			return i
		}
	}
	return -1
}

func colliderColor(w *physics.World, c *physics.Collider, selected *physics.Collider) rl.Color {
	switch {
	case c == selected:
		return colorSelected
	case !c.Enabled():
		return colorDisabled
	}
	col := TagColor(tagIndex(w, c.Tag()))
	if !c.Kinematic() && !c.Awake() {
		col = rl.ColorBrightness(col, -sleepingFactor)
	}
	return col
}

// DrawWorld draws every collider inside the frustum. Call it between
// rl.BeginMode3D and rl.EndMode3D.
func DrawWorld(w *physics.World, f *Frustum, opts Options) Stats {
	var stats Stats
	for c := range w.Colliders() {
		box := c.AABB()
		if f != nil && !f.ContainsBox(box) {
			stats.Culled++
			continue
		}
		stats.Drawn++
		col := colliderColor(w, c, opts.Selected)
		pose := c.Pose().Mul(c.ShapeOffset())
		if shape := c.Shape(); shape != nil {
			drawShape(shape, pose, col)
		} else {
			drawPoint(pose.Position, .1, col)
		}
		if opts.Bounds {
			rl.DrawBoundingBox(box, colorBounds)
		}
	}
	if opts.Contacts {
		drawContacts(w.Contacts())
	}
	if opts.Joints {
		for j := range w.Joints() {
			drawJoint(j)
		}
	}
	return stats
}

func drawShape(shape physics.Shape, pose physics.Transform, col rl.Color) {
	switch s := shape.(type) {
	case *physics.SphereShape:
		drawSphere(pose, s.Radius(), col)
	case *physics.BoxShape:
		drawBox(pose, s.HalfExtents(), col)
	case *physics.CapsuleShape:
		drawCapsule(pose, s.Radius(), s.Length()/2, col)
	case *physics.CylinderShape:
		drawCylinder(pose, s.Radius(), s.Length()/2, col)
	case *physics.ConvexShape:
		points := s.Points()
		for _, e := range ConvexEdges(points, s.Planes()) {
			rl.DrawLine3D(pose.Apply(points[e[0]]), pose.Apply(points[e[1]]), col)
		}
	case *physics.MeshShape:
		drawTriangles(s.Triangles(), pose, col)
	case *physics.TerrainShape:
		drawTriangles(s.Triangles(), pose, col)
	case physics.CompoundShape:
		for i := 0; i < s.ChildCount(); i++ {
			offset, err := s.ChildOffset(i)
			if err != nil {
				continue
			}
			drawShape(s.Child(i), pose.Mul(offset), col)
		}
	}
}

func drawPoint(p rl.Vector3, size float32, col rl.Color) {
	rl.DrawLine3D(rl.Vector3{X: p.X - size, Y: p.Y, Z: p.Z}, rl.Vector3{X: p.X + size, Y: p.Y, Z: p.Z}, col)
	rl.DrawLine3D(rl.Vector3{X: p.X, Y: p.Y - size, Z: p.Z}, rl.Vector3{X: p.X, Y: p.Y + size, Z: p.Z}, col)
	rl.DrawLine3D(rl.Vector3{X: p.X, Y: p.Y, Z: p.Z - size}, rl.Vector3{X: p.X, Y: p.Y, Z: p.Z + size}, col)
}

// ring draws a circle of radius r around center in the plane spanned by u and v.
func ring(pose physics.Transform, center, u, v rl.Vector3, r float32, col rl.Color) {
	prev := rl.Vector3Add(center, rl.Vector3Scale(u, r))
	for i := 1; i <= ringSegments; i++ {
		a := float64(i) * 2 * math.Pi / ringSegments
		s, c := math.Sincos(a)
		p := rl.Vector3Add(center, rl.Vector3Add(rl.Vector3Scale(u, r*float32(c)), rl.Vector3Scale(v, r*float32(s))))
		rl.DrawLine3D(pose.Apply(prev), pose.Apply(p), col)
		prev = p
	}
}

var (
	axisX = rl.Vector3{X: 1}
	axisY = rl.Vector3{Y: 1}
	axisZ = rl.Vector3{Z: 1}
)

func drawSphere(pose physics.Transform, r float32, col rl.Color) {
	ring(pose, rl.Vector3{}, axisX, axisY, r, col)
	ring(pose, rl.Vector3{}, axisY, axisZ, r, col)
	ring(pose, rl.Vector3{}, axisX, axisZ, r, col)
}

func drawBox(pose physics.Transform, h rl.Vector3, col rl.Color) {
	var corners [8]rl.Vector3
	for i := range corners {
		p := h
		if i&1 != 0 {
			p.X = -p.X
		}
		if i&2 != 0 {
			p.Y = -p.Y
		}
		if i&4 != 0 {
			p.Z = -p.Z
		}
		corners[i] = pose.Apply(p)
	}
	for i := range corners {
		for _, bit := range []int{1, 2, 4} {
			if j := i | bit; j != i {
				rl.DrawLine3D(corners[i], corners[j], col)
			}
		}
	}
}

// drawCapsule and drawCylinder draw shapes whose axis is local Y.
func drawCapsule(pose physics.Transform, r, half float32, col rl.Color) {
	top, bottom := rl.Vector3{Y: half}, rl.Vector3{Y: -half}
	ring(pose, top, axisX, axisZ, r, col)
	ring(pose, bottom, axisX, axisZ, r, col)
	for _, side := range []rl.Vector3{axisX, axisZ} {
		for _, s := range []float32{r, -r} {
			off := rl.Vector3Scale(side, s)
			rl.DrawLine3D(pose.Apply(rl.Vector3Add(top, off)), pose.Apply(rl.Vector3Add(bottom, off)), col)
		}
		drawArc(pose, top, side, axisY, r, col)
		drawArc(pose, bottom, side, rl.Vector3Negate(axisY), r, col)
	}
}

// drawArc draws the half circle from -u through v to +u.
func drawArc(pose physics.Transform, center, u, v rl.Vector3, r float32, col rl.Color) {
	prev := rl.Vector3Add(center, rl.Vector3Scale(u, -r))
	for i := 1; i <= ringSegments/2; i++ {
		a := math.Pi - float64(i)*math.Pi/(ringSegments/2)
		s, c := math.Sincos(a)
		p := rl.Vector3Add(center, rl.Vector3Add(rl.Vector3Scale(u, r*float32(c)), rl.Vector3Scale(v, r*float32(s))))
		rl.DrawLine3D(pose.Apply(prev), pose.Apply(p), col)
		prev = p
	}
}

func drawCylinder(pose physics.Transform, r, half float32, col rl.Color) {
	top, bottom := rl.Vector3{Y: half}, rl.Vector3{Y: -half}
	ring(pose, top, axisX, axisZ, r, col)
	ring(pose, bottom, axisX, axisZ, r, col)
	for _, side := range []rl.Vector3{axisX, axisZ} {
		for _, s := range []float32{r, -r} {
			off := rl.Vector3Scale(side, s)
			rl.DrawLine3D(pose.Apply(rl.Vector3Add(top, off)), pose.Apply(rl.Vector3Add(bottom, off)), col)
		}
	}
}

func drawTriangles(tris []physics.Triangle, pose physics.Transform, col rl.Color) {
	for i := range tris {
		t := &tris[i]
		a, b, c := pose.Apply(t.V0), pose.Apply(t.V1), pose.Apply(t.V2)
		rl.DrawLine3D(a, b, col)
		rl.DrawLine3D(b, c, col)
		rl.DrawLine3D(c, a, col)
	}
}

// ConvexEdges returns the hull edges: point pairs that share two face planes.
func ConvexEdges(points []rl.Vector3, planes []physics.Plane) [][2]int {
	const eps = 1e-3
	on := make([][]bool, len(points))
	for i, p := range points {
		on[i] = make([]bool, len(planes))
		for k, pl := range planes {
			on[i][k] = float32(math.Abs(float64(rl.Vector3DotProduct(pl.Normal, p)-pl.D))) < eps
		}
	}
	var edges [][2]int
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			shared := 0
			for k := range planes {
				if on[i][k] && on[j][k] {
					shared++
				}
			}
			if shared >= 2 {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return edges
}

func drawContacts(contacts []physics.Contact) {
	for _, ct := range contacts {
		for _, p := range ct.Points {
			rl.DrawSphere(p, .05, colorContact)
			rl.DrawLine3D(p, rl.Vector3Add(p, rl.Vector3Scale(ct.Normal, .5)), colorContact)
		}
	}
}

func drawJoint(j physics.Joint) {
	a, b := j.Anchors()
	col := colorJoint
	if !j.Enabled() {
		col = colorJointOff
	}
	ca, cb := j.Colliders()
	rl.DrawLine3D(ca.Position(), a, col)
	rl.DrawLine3D(cb.Position(), b, col)
	rl.DrawLine3D(a, b, col)
	drawPoint(a, .15, col)
}
