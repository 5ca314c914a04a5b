package planar

import (
	"errors"
	"math"
	"testing"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/jakecoffman/cp"
)

func newTestWorld(t *testing.T, tags ...string) *physics.World {
	t.Helper()
	cfg := physics.DefaultWorldConfig()
	cfg.Gravity = rl.Vector3{}
	cfg.Tags = tags
	w, err := physics.NewWorld(New(Options{}), cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w
}

func near(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestBackendName(t *testing.T) {
	if name := New(Options{}).Name(); name != "planar" {
		t.Errorf("Expected name 'planar', got '%s'", name)
	}
}

func TestRaycastBox(t *testing.T) {
	w := newTestWorld(t)
	box, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 2, Y: 2, Z: 2})

	hit, ok := w.RaycastClosest(rl.Vector3{Y: 5}, rl.Vector3{Y: -10}, physics.AllTags)
	if !ok {
		t.Fatal("Ray through the box should hit")
	}
	if hit.Collider != box {
		t.Error("Hit should report the box collider")
	}
	if !near(hit.Fraction, 0.4, 1e-3) {
		t.Errorf("Expected fraction 0.4, got %f", hit.Fraction)
	}
	if !near(hit.Normal.Y, 1, 1e-3) {
		t.Errorf("Expected normal (0,1,0), got %v", hit.Normal)
	}
	if _, ok := w.RaycastAny(rl.Vector3{Y: 5}, rl.Vector3{Y: 2}, physics.AllTags); ok {
		t.Error("Ray ending before the box should not hit")
	}
}

func TestQuerySphere(t *testing.T) {
	w := newTestWorld(t)
	c, _ := w.NewSphereCollider(rl.Vector3{X: 3}, 1)
	w.NewSphereCollider(rl.Vector3{X: -5}, 1)

	var found []*physics.Collider
	w.QuerySphere(rl.Vector3{X: 1.5}, 1, physics.AllTags, func(hit *physics.Collider, child uint32) bool {
		found = append(found, hit)
		return false
	})
	if len(found) != 1 || found[0] != c {
		t.Errorf("Expected only the near sphere, got %d colliders", len(found))
	}
}

func TestCircleRestsOnGround(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	ground, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 10, Y: 1, Z: 10})
	ground.SetKinematic(true)
	ball, _ := w.NewSphereCollider(rl.Vector3{Y: 3}, .5)

	for i := 0; i < 180; i++ {
		if err := w.Step(1.0 / 60); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	// Ground top is y = 0.5; cp lets shapes sink by its collision slop
	if y := ball.Position().Y; y < .85 || y > 1.1 {
		t.Errorf("Expected ball resting near y=1, got %f", y)
	}
	if len(w.Contacts()) == 0 {
		t.Error("Resting ball should report a contact")
	}
}

func TestDisabledTagPairHasNoContact(t *testing.T) {
	w := newTestWorld(t, "a", "b")
	x, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	y, _ := w.NewSphereCollider(rl.Vector3{X: 1}, 1)
	x.SetTag("a")
	y.SetTag("b")
	w.DisableCollisionBetween("a", "b")

	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 0 {
		t.Errorf("Expected 0 contacts, got %d", n)
	}
	if x.Position().X != 0 {
		t.Error("Filtered pair should not push apart")
	}

	w.EnableCollisionBetween("a", "b")
	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 1 {
		t.Errorf("Expected 1 contact after re-enabling, got %d", n)
	}
}

func TestSensorHasNoResponse(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1}, 1)
	if err := a.SetSensor(true); err != nil {
		t.Fatalf("SetSensor failed: %v", err)
	}
	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 1 {
		t.Errorf("Expected sensor contact, got %d contacts", n)
	}
	if a.Position().X != 0 || b.Position().X != 1 {
		t.Error("Sensor contact should not move either collider")
	}
}

func TestPoseKeepsZ(t *testing.T) {
	w := newTestWorld(t)
	c, _ := w.NewSphereCollider(rl.Vector3{Y: 1, Z: 7}, .5)
	c.SetPosition(rl.Vector3{X: 2, Y: 1, Z: 7})
	if p := c.Position(); p.Z != 7 || p.X != 2 {
		t.Errorf("Expected position (2,1,7), got %v", p)
	}
}

func TestTerrainHasNoGeometry(t *testing.T) {
	w := newTestWorld(t)
	heights := make([]float32, 9)
	if _, err := w.NewTerrainCollider(heights, 3, 6, 1); err != nil {
		t.Fatalf("Terrain collider should still be created, got %v", err)
	}
	if _, ok := w.RaycastAny(rl.Vector3{X: 3, Y: 5, Z: 3}, rl.Vector3{Y: -10}, physics.AllTags); ok {
		t.Error("Terrain should not be hit in the planar backend")
	}
}

func TestHingeAxisMustBeZ(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, .5)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1}, .5)
	if _, err := physics.NewHingeJoint(a, b, rl.Vector3{X: .5}, rl.Vector3{Y: 1}); !errors.Is(err, physics.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for a Y axis, got %v", err)
	}
	if _, err := physics.NewHingeJoint(a, b, rl.Vector3{X: .5}, rl.Vector3{Z: 1}); err != nil {
		t.Errorf("Z axis hinge failed: %v", err)
	}
}

func TestHingeLimits(t *testing.T) {
	w := newTestWorld(t)
	base, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 1, Y: 1, Z: 1})
	base.SetKinematic(true)
	door, _ := w.NewBoxCollider(rl.Vector3{X: 1.2}, rl.Vector3{X: 1, Y: .1, Z: 1})

	h, err := physics.NewHingeJoint(base, door, rl.Vector3{X: .6}, rl.Vector3{Z: 1})
	if err != nil {
		t.Fatalf("NewHingeJoint failed: %v", err)
	}
	if err := h.SetLimits(-.2, .2); err != nil {
		t.Fatalf("SetLimits failed: %v", err)
	}
	door.SetAngularVelocity(rl.Vector3{Z: 5})
	for i := 0; i < 30; i++ {
		w.Step(1.0 / 60)
	}
	if a := h.Angle(); a > .3 || a < -.3 {
		t.Errorf("Expected angle within limits, got %f", a)
	}
}

func TestDistanceJointHoldsLength(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	anchor, _ := w.NewSphereCollider(rl.Vector3{}, .1)
	anchor.SetKinematic(true)
	bob, _ := w.NewSphereCollider(rl.Vector3{X: 2}, .1)

	if _, err := physics.NewDistanceJoint(anchor, bob, anchor.Position(), bob.Position()); err != nil {
		t.Fatalf("NewDistanceJoint failed: %v", err)
	}
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60)
	}
	if d := rl.Vector3Length(bob.Position()); !near(d, 2, .1) {
		t.Errorf("Expected bob to stay 2 from the anchor, got %f", d)
	}
	if bob.Position().Y >= 0 {
		t.Error("Bob should swing down")
	}
}

func TestSliderKeepsToAxis(t *testing.T) {
	w := newTestWorld(t)
	rail, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 1, Y: 1, Z: 1})
	rail.SetKinematic(true)
	cart, _ := w.NewBoxCollider(rl.Vector3{Y: 3}, rl.Vector3{X: 1, Y: 1, Z: 1})

	s, err := physics.NewSliderJoint(rail, cart, rl.Vector3{X: 1})
	if err != nil {
		t.Fatalf("NewSliderJoint failed: %v", err)
	}
	cart.SetLinearVelocity(rl.Vector3{X: 1, Y: 1})
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60)
	}
	if p := s.Position(); p < .5 || p > 1.2 {
		t.Errorf("Expected slider to travel along X, got %f", p)
	}
	if y := cart.Position().Y; !near(y, 3, .05) {
		t.Errorf("Cart should stay on the rail axis, got y=%f", y)
	}
}

func TestDisableColliderDetachesJoint(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, .5)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 2}, .5)
	if _, err := physics.NewDistanceJoint(a, b, a.Position(), b.Position()); err != nil {
		t.Fatalf("NewDistanceJoint failed: %v", err)
	}
	p := w.Backend().(*Backend)
	for c := range p.constraints {
		if !c.attached {
			t.Error("New joint should be in the space")
		}
	}
	b.SetEnabled(false)
	for c := range p.constraints {
		if c.attached {
			t.Error("Joint should leave the space with its collider")
		}
	}
	b.SetEnabled(true)
	for c := range p.constraints {
		if !c.attached {
			t.Error("Joint should return with its collider")
		}
	}
}

func TestConvexHull(t *testing.T) {
	var pts []cp.Vector
	for _, c := range boxCorners(rl.BoundingBox{Min: rl.Vector3{X: -1, Y: -1, Z: -1}, Max: rl.Vector3{X: 1, Y: 1, Z: 1}}) {
		pts = append(pts, vec(c))
	}
	pts = append(pts, cp.Vector{X: .2, Y: .3})
	hull := convexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("Expected 4 hull points, got %d", len(hull))
	}
	// Counter-clockwise winding has positive area
	var area float64
	for i := range hull {
		j := (i + 1) % len(hull)
		area += hull[i].Cross(hull[j])
	}
	if area <= 0 {
		t.Errorf("Expected counter-clockwise hull, got area %f", area/2)
	}
}

func TestCompoundEditRebuildsShapes(t *testing.T) {
	w := newTestWorld(t)
	ball, _ := physics.NewSphereShape(.5)
	defer ball.Release()
	compound, err := physics.NewMutableCompoundShape([]physics.CompoundChild{{Shape: ball}})
	if err != nil {
		t.Fatalf("NewMutableCompoundShape failed: %v", err)
	}
	c, _ := w.NewCollider(compound, rl.Vector3{})
	compound.Release()

	if err := compound.AddChild(ball, physics.At(rl.Vector3{X: 3})); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	hit, ok := w.RaycastClosest(rl.Vector3{X: 3, Y: 5}, rl.Vector3{Y: -10}, physics.AllTags)
	if !ok || hit.Collider != c {
		t.Fatal("Ray should hit the child added after the collider was created")
	}
	if hit.Child != 1 {
		t.Errorf("Expected child 1, got %d", hit.Child)
	}
}

func TestSubstepsKeepOneManifold(t *testing.T) {
	w := newTestWorld(t)
	w.SetStepCount(4)
	w.NewSphereCollider(rl.Vector3{}, 1)
	w.NewSphereCollider(rl.Vector3{X: 1}, 1)

	w.Step(1.0 / 60)
	contacts := w.Contacts()
	if len(contacts) != 1 {
		t.Fatalf("Expected 1 contact, got %d", len(contacts))
	}
	if n := len(contacts[0].Points); n != 1 {
		t.Errorf("Circle pair should report 1 point across sub-steps, got %d", n)
	}
}

func TestSleepingPairStaysInContact(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	ground, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 10, Y: 1, Z: 10})
	ground.SetKinematic(true)
	ball, _ := w.NewSphereCollider(rl.Vector3{Y: 1}, .5)

	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60)
	}
	if len(w.Contacts()) != 1 {
		t.Fatalf("Expected the ball to rest on the ground, got %d contacts", len(w.Contacts()))
	}

	exits := 0
	w.OnContactExit.AddListener(func(physics.Contact) { exits++ })
	ball.SetAwake(false)
	for i := 0; i < 30; i++ {
		w.Step(1.0 / 60)
	}
	if exits != 0 {
		t.Errorf("Sleeping pair should not report an exit, got %d", exits)
	}
	if n := len(w.Contacts()); n != 1 {
		t.Errorf("Expected the sleeping pair to stay in contact, got %d contacts", n)
	}

	ball.SetPosition(rl.Vector3{Y: 5})
	w.Step(1.0 / 60)
	if exits != 1 {
		t.Errorf("Expected 1 exit after lifting the ball, got %d", exits)
	}
}

func TestRestingContactsCarryOver(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	ground, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 10, Y: 1, Z: 10})
	ground.SetKinematic(true)
	w.NewSphereCollider(rl.Vector3{Y: 1}, .5)
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60)
	}

	p := w.Backend().(*Backend)
	var ball *body
	for b := range p.bodies {
		if b.dynamic() {
			ball = b
		}
	}
	if len(p.contacts) != 1 {
		t.Fatalf("Expected 1 backend contact, got %d", len(p.contacts))
	}

	ball.cpBody.Sleep()
	p.carryRestingContacts()
	if len(p.contacts) != 1 {
		t.Fatalf("Sleeping ball should keep its ground contact, got %d", len(p.contacts))
	}
	if _, ok := p.seen[[2]*body{p.contacts[0].A.(*body), p.contacts[0].B.(*body)}]; !ok {
		t.Error("Carried contact should be indexed for the next step")
	}

	ball.wake()
	p.carryRestingContacts()
	if len(p.contacts) != 0 {
		t.Errorf("Awake ball should not carry contacts, got %d", len(p.contacts))
	}
}
