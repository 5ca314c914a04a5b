package physics

import (
	"errors"
	"math"
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func TestShapeDimensionsMustBePositive(t *testing.T) {
	if _, err := NewSphereShape(0); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for zero radius, got %v", err)
	}
	if _, err := NewBoxShape(rl.Vector3{X: 1, Y: -1, Z: 1}); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for negative size, got %v", err)
	}
	if _, err := NewCapsuleShape(1, float32(math.NaN())); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for NaN length, got %v", err)
	}
}

func TestShapeRefCount(t *testing.T) {
	s, _ := NewSphereShape(1)
	if s.RefCount() != 1 {
		t.Errorf("Expected refcount 1, got %d", s.RefCount())
	}
	s.Retain()
	s.Release()
	if s.IsDestroyed() {
		t.Error("Shape should survive while referenced")
	}
	s.Release()
	if !s.IsDestroyed() {
		t.Error("Shape should be destroyed after the last release")
	}
	s.Release()
	if s.RefCount() != 0 {
		t.Errorf("Extra release should not change the count, got %d", s.RefCount())
	}
}

func TestBoxBounds(t *testing.T) {
	b, _ := NewBoxShape(rl.Vector3{X: 2, Y: 4, Z: 6})
	box := b.AABB()
	if box.Min != (rl.Vector3{X: -1, Y: -2, Z: -3}) || box.Max != (rl.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Unexpected local bounds %v", box)
	}

	pose := Transform{Position: rl.Vector3{X: 10}, Orientation: rl.QuaternionFromAxisAngle(rl.Vector3{Z: 1}, math.Pi/2)}
	box = b.TransformedAABB(pose)
	// Rotating 90 degrees about Z swaps the X and Y extents
	if math.Abs(float64(box.Max.X-12)) > 1e-4 || math.Abs(float64(box.Max.Y-1)) > 1e-4 {
		t.Errorf("Unexpected rotated bounds %v", box)
	}
}

func TestCapsuleSegment(t *testing.T) {
	c, _ := NewCapsuleShape(.5, 2)
	a, b := c.Segment()
	if a.Y != -1 || b.Y != 1 {
		t.Errorf("Expected segment from y=-1 to y=1, got %v %v", a, b)
	}
	if c.AABB().Max.Y != 1.5 {
		t.Errorf("Expected top at 1.5, got %f", c.AABB().Max.Y)
	}
}

func TestConvexShape(t *testing.T) {
	points := []rl.Vector3{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
		{}, // interior point
	}
	c, err := NewConvexShape(points)
	if err != nil {
		t.Fatalf("NewConvexShape failed: %v", err)
	}
	if n := len(c.Planes()); n != 6 {
		t.Errorf("Expected 6 face planes, got %d", n)
	}
	if s := c.Support(rl.Vector3{X: 1, Y: 1, Z: 1}); s != (rl.Vector3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("Expected support (1,1,1), got %v", s)
	}
	flat := []rl.Vector3{{}, {X: 1}, {Z: 1}, {X: 1, Z: 1}}
	if _, err := NewConvexShape(flat); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for a flat hull, got %v", err)
	}
}

func TestMeshShapeValidation(t *testing.T) {
	vertices := []rl.Vector3{{}, {X: 1}, {Z: 1}}
	if _, err := NewMeshShape(vertices, []uint32{0, 1}); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("Expected ErrInvalidMesh for a partial triangle, got %v", err)
	}
	if _, err := NewMeshShape(vertices, []uint32{0, 1, 3}); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("Expected ErrInvalidMesh for an out of range index, got %v", err)
	}
	m, err := NewMeshShape(vertices, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("NewMeshShape failed: %v", err)
	}
	if len(m.Triangles()) != 1 {
		t.Errorf("Expected 1 triangle, got %d", len(m.Triangles()))
	}
	if m.MassData(DefaultDensity).Mass != 0 {
		t.Error("Mesh shapes should be massless")
	}
}

func TestTerrainShape(t *testing.T) {
	heights := []float32{
		0, 0, 0,
		0, 2, 0,
		0, 0, 0,
	}
	ts, err := NewTerrainShape(heights, 3, 6, 1)
	if err != nil {
		t.Fatalf("NewTerrainShape failed: %v", err)
	}
	if ts.Height(1, 1) != 2 {
		t.Errorf("Expected center height 2, got %f", ts.Height(1, 1))
	}
	if n := len(ts.Triangles()); n != 8 {
		t.Errorf("Expected 8 triangles, got %d", n)
	}
	if _, err := NewTerrainShape(heights[:8], 3, 6, 1); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("Expected ErrInvalidMesh for short height data, got %v", err)
	}
}

func TestTrianglesInStopsEarly(t *testing.T) {
	vertices := []rl.Vector3{{}, {X: 1}, {Z: 1}, {X: 1, Z: 1}}
	m, _ := NewMeshShape(vertices, []uint32{0, 1, 2, 1, 3, 2})
	visits := 0
	m.TrianglesIn(m.AABB(), func(int, *Triangle) bool {
		visits++
		return true
	})
	if visits != 1 {
		t.Errorf("Expected 1 visit, got %d", visits)
	}
}

func compoundChildren(t *testing.T, n int) ([]CompoundChild, []*SphereShape) {
	t.Helper()
	var children []CompoundChild
	var spheres []*SphereShape
	for i := 0; i < n; i++ {
		s, _ := NewSphereShape(.5)
		spheres = append(spheres, s)
		children = append(children, CompoundChild{Shape: s, Offset: At(rl.Vector3{X: float32(i)})})
	}
	return children, spheres
}

func TestFrozenCompoundNeedsTwoChildren(t *testing.T) {
	children, _ := compoundChildren(t, 1)
	if _, err := NewFrozenCompoundShape(children); !errors.Is(err, ErrCompoundTooSmall) {
		t.Errorf("Expected ErrCompoundTooSmall, got %v", err)
	}
	if _, err := NewFrozenCompoundShape(nil); !errors.Is(err, ErrCompoundTooSmall) {
		t.Errorf("Expected ErrCompoundTooSmall for no children, got %v", err)
	}
}

func TestFrozenCompoundRejectsEdits(t *testing.T) {
	children, _ := compoundChildren(t, 2)
	c, err := NewFrozenCompoundShape(children)
	if err != nil {
		t.Fatalf("NewFrozenCompoundShape failed: %v", err)
	}
	extra, _ := NewSphereShape(1)
	if err := AddChild(c, extra, Identity()); !errors.Is(err, ErrFrozenCompound) {
		t.Errorf("Expected ErrFrozenCompound, got %v", err)
	}
	if err := RemoveChild(c, 0); !errors.Is(err, ErrFrozenCompound) {
		t.Errorf("Expected ErrFrozenCompound, got %v", err)
	}
	if c.ChildCount() != 2 {
		t.Errorf("Frozen compound should keep 2 children, got %d", c.ChildCount())
	}
	if extra.RefCount() != 1 {
		t.Errorf("Rejected child should not be retained, got refcount %d", extra.RefCount())
	}
}

func TestCompoundRefCounting(t *testing.T) {
	children, spheres := compoundChildren(t, 3)
	c, err := NewMutableCompoundShape(children)
	if err != nil {
		t.Fatalf("NewMutableCompoundShape failed: %v", err)
	}
	for i, s := range spheres {
		if s.RefCount() != 2 {
			t.Errorf("Child %d: expected refcount 2, got %d", i, s.RefCount())
		}
	}

	if err := c.RemoveChild(1); err != nil {
		t.Fatalf("RemoveChild failed: %v", err)
	}
	if spheres[1].RefCount() != 1 {
		t.Errorf("Removed child should drop to refcount 1, got %d", spheres[1].RefCount())
	}
	if c.ChildCount() != 2 || c.Child(1) != spheres[2] {
		t.Error("Remaining children should shift down")
	}

	c.Release()
	if !c.IsDestroyed() {
		t.Error("Compound should be destroyed")
	}
	if spheres[0].RefCount() != 1 || spheres[2].RefCount() != 1 {
		t.Error("Destroying the compound should release its children")
	}
}

func TestMutableCompoundEdits(t *testing.T) {
	c, err := NewMutableCompoundShape(nil)
	if err != nil {
		t.Fatalf("NewMutableCompoundShape failed: %v", err)
	}
	box, _ := NewBoxShape(rl.Vector3{X: 1, Y: 1, Z: 1})
	rev := c.Revision()
	if err := c.AddChild(box, At(rl.Vector3{Y: 3})); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if c.Revision() == rev {
		t.Error("AddChild should bump the revision")
	}
	if c.AABB().Max.Y != 3.5 {
		t.Errorf("Expected top at 3.5, got %f", c.AABB().Max.Y)
	}

	offset, err := c.ChildOffset(0)
	if err != nil || offset.Orientation != rl.QuaternionIdentity() {
		t.Error("A zero orientation offset should become identity")
	}
	if _, err := c.ChildOffset(5); !errors.Is(err, ErrChildIndex) {
		t.Errorf("Expected ErrChildIndex, got %v", err)
	}

	nested, _ := NewMutableCompoundShape(nil)
	if err := c.AddChild(nested, Identity()); !errors.Is(err, ErrNestedCompound) {
		t.Errorf("Expected ErrNestedCompound, got %v", err)
	}

	sphere, _ := NewSphereShape(1)
	if err := c.ReplaceChild(0, sphere, Identity()); err != nil {
		t.Fatalf("ReplaceChild failed: %v", err)
	}
	if box.RefCount() != 1 || sphere.RefCount() != 2 {
		t.Errorf("Unexpected refcounts after replace: box %d, sphere %d", box.RefCount(), sphere.RefCount())
	}
}

func TestCompoundMassData(t *testing.T) {
	children, spheres := compoundChildren(t, 2)
	c, _ := NewFrozenCompoundShape(children)
	m := c.MassData(DefaultDensity)
	single := spheres[0].MassData(DefaultDensity)
	if math.Abs(float64(m.Mass-2*single.Mass)) > 1e-2 {
		t.Errorf("Expected mass %f, got %f", 2*single.Mass, m.Mass)
	}
	if math.Abs(float64(m.CenterOfMass.X-.5)) > 1e-4 {
		t.Errorf("Expected center of mass at x=0.5, got %f", m.CenterOfMass.X)
	}
}

func TestColliderKeepsCompoundAlive(t *testing.T) {
	w, _ := newFakeWorld(t, WorldConfig{})
	children, _ := compoundChildren(t, 2)
	c, _ := NewFrozenCompoundShape(children)
	col, err := w.NewCollider(c, rl.Vector3{})
	if err != nil {
		t.Fatalf("NewCollider failed: %v", err)
	}
	c.Release()
	if c.IsDestroyed() {
		t.Error("Compound should live while the collider holds it")
	}
	col.Destroy()
	if !c.IsDestroyed() {
		t.Error("Compound should be destroyed with its last holder")
	}
}
