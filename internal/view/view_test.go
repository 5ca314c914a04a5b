package view

import (
	"testing"

	"physworld/internal/physics"
	"physworld/internal/physics/native"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func testCamera() rl.Camera3D {
	return rl.Camera3D{
		Position:   rl.Vector3{Z: 10},
		Target:     rl.Vector3{},
		Up:         rl.Vector3{Y: 1},
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	f := ExtractFrustum(testCamera(), 16.0/9.0)
	if !f.ContainsPoint(rl.Vector3{}) {
		t.Error("Target should be inside the frustum")
	}
	if f.ContainsPoint(rl.Vector3{Z: 20}) {
		t.Error("Point behind the camera should be outside")
	}
	if f.ContainsPoint(rl.Vector3{X: 100}) {
		t.Error("Point far to the side should be outside")
	}
}

func TestFrustumContainsBox(t *testing.T) {
	f := ExtractFrustum(testCamera(), 1)
	inside := rl.BoundingBox{Min: rl.Vector3{X: -1, Y: -1, Z: -1}, Max: rl.Vector3{X: 1, Y: 1, Z: 1}}
	if !f.ContainsBox(inside) {
		t.Error("Box at the target should be visible")
	}
	// Straddles the left plane
	wide := rl.BoundingBox{Min: rl.Vector3{X: -100, Y: -1, Z: -1}, Max: rl.Vector3{X: 0, Y: 1, Z: 1}}
	if !f.ContainsBox(wide) {
		t.Error("Box crossing the frustum should be visible")
	}
	behind := rl.BoundingBox{Min: rl.Vector3{X: -1, Y: -1, Z: 20}, Max: rl.Vector3{X: 1, Y: 1, Z: 22}}
	if f.ContainsBox(behind) {
		t.Error("Box behind the camera should be culled")
	}
	if !f.ContainsSphere(rl.Vector3{}, 1) || f.ContainsSphere(rl.Vector3{Z: 30}, 1) {
		t.Error("ContainsSphere disagrees with the camera")
	}
}

func TestConvexEdgesOfCube(t *testing.T) {
	var points []rl.Vector3
	for i := 0; i < 8; i++ {
		p := rl.Vector3{X: 1, Y: 1, Z: 1}
		if i&1 != 0 {
			p.X = -1
		}
		if i&2 != 0 {
			p.Y = -1
		}
		if i&4 != 0 {
			p.Z = -1
		}
		points = append(points, p)
	}
	shape, err := physics.NewConvexShape(points)
	if err != nil {
		t.Fatalf("NewConvexShape failed: %v", err)
	}
	defer shape.Release()
	edges := ConvexEdges(shape.Points(), shape.Planes())
	if len(edges) != 12 {
		t.Errorf("Expected 12 cube edges, got %d", len(edges))
	}
}

func TestTagColor(t *testing.T) {
	if TagColor(-1) != palette[0] {
		t.Error("Untagged colliders should use the first palette color")
	}
	if TagColor(0) == TagColor(-1) {
		t.Error("First tag should differ from untagged")
	}
	if TagColor(len(palette)-1) != palette[0] {
		t.Error("Palette should wrap around")
	}
}

func TestSpatialize(t *testing.T) {
	l := NewListener(rl.Vector3{}, rl.Vector3{Z: -1}, rl.Vector3{Y: 1})

	v, pan := l.Spatialize(rl.Vector3{Z: -5}, 1, 10)
	if v < 0.49 || v > 0.51 {
		t.Errorf("Expected half volume at half distance, got %f", v)
	}
	if pan != 0.5 {
		t.Errorf("Expected centered pan, got %f", pan)
	}

	if _, pan := l.Spatialize(rl.Vector3{X: 5}, 1, 10); pan != 1 {
		t.Errorf("Expected pan 1 for a sound on the right, got %f", pan)
	}
	if v, _ := l.Spatialize(rl.Vector3{X: 20}, 1, 10); v != 0 {
		t.Errorf("Expected silence beyond max distance, got %f", v)
	}
	front, _ := l.Spatialize(rl.Vector3{Z: -5}, 1, 10)
	back, _ := l.Spatialize(rl.Vector3{Z: 5}, 1, 10)
	if back >= front {
		t.Errorf("Sound behind should be quieter: front %f, back %f", front, back)
	}
}

func TestImpactLoudness(t *testing.T) {
	w, err := physics.NewWorld(native.New(native.Options{}), physics.DefaultWorldConfig())
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	defer w.Destroy()
	a, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1.5}, 1)

	im := NewImpacts(w, "")
	if got := im.Loudness(physics.Contact{A: a, B: b, Depth: 1}); got != 1 {
		t.Errorf("Expected deep contact at full volume, got %f", got)
	}
	if got := im.Loudness(physics.Contact{A: a, B: b, Depth: 0}); got != 0.1 {
		t.Errorf("Expected grazing contact at minimum volume, got %f", got)
	}
	a.SetSensor(true)
	if got := im.Loudness(physics.Contact{A: a, B: b, Depth: 1}); got != 0 {
		t.Errorf("Expected sensors to be silent, got %f", got)
	}

	w.Step(1.0 / 60)
	if len(im.pending) == 0 {
		t.Error("Overlapping spheres should queue an impact")
	}
	im.Update()
	if len(im.pending) != 0 {
		t.Error("Update should clear queued impacts")
	}
}

func TestImpactsSkipDestroyedColliders(t *testing.T) {
	w, err := physics.NewWorld(native.New(native.Options{}), physics.DefaultWorldConfig())
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	defer w.Destroy()
	a, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1.5}, 1)
	c, _ := w.NewSphereCollider(rl.Vector3{X: 20}, 1)
	d, _ := w.NewSphereCollider(rl.Vector3{X: 21.5}, 1)

	im := NewImpacts(w, "")
	im.SetListener(NewListener(rl.Vector3{Z: 5}, rl.Vector3{Z: -1}, rl.Vector3{Y: 1}))
	w.Step(1.0 / 60)
	if len(im.pending) != 2 {
		t.Fatalf("Expected 2 queued impacts, got %d", len(im.pending))
	}

	a.Destroy()
	best, _, _, ok := im.loudest()
	if !ok {
		t.Fatal("The remaining live contact should still be audible")
	}
	if best.Other(c) != d {
		t.Errorf("Expected the c-d contact, got %v-%v", best.A, best.B)
	}

	c.Destroy()
	if _, _, _, ok := im.loudest(); ok {
		t.Error("Contacts with destroyed colliders should be skipped")
	}
	im.Update()
	if len(im.pending) != 0 {
		t.Error("Update should clear queued impacts")
	}
}
