package native

import (
	"math"
	"testing"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
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

func nearVec(a, b rl.Vector3, eps float32) bool {
	return near(a.X, b.X, eps) && near(a.Y, b.Y, eps) && near(a.Z, b.Z, eps)
}

func TestBackendName(t *testing.T) {
	if name := New(Options{}).Name(); name != "native" {
		t.Errorf("Expected name 'native', got '%s'", name)
	}
	if name := New(Options{UseGPU: true}).Name(); name != "native+gpu" {
		t.Errorf("Expected name 'native+gpu', got '%s'", name)
	}
}

func TestRaycastBox(t *testing.T) {
	w := newTestWorld(t)
	box, err := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 2, Y: 2, Z: 2})
	if err != nil {
		t.Fatalf("NewBoxCollider failed: %v", err)
	}

	hit, ok := w.RaycastClosest(rl.Vector3{Z: 5}, rl.Vector3{Z: -10}, physics.AllTags)
	if !ok {
		t.Fatal("Ray through the box should hit")
	}
	if hit.Collider != box {
		t.Error("Hit should report the box collider")
	}
	if !nearVec(hit.Position, rl.Vector3{Z: 1}, 1e-4) {
		t.Errorf("Expected hit at (0,0,1), got %v", hit.Position)
	}
	if !nearVec(hit.Normal, rl.Vector3{Z: 1}, 1e-4) {
		t.Errorf("Expected normal (0,0,1), got %v", hit.Normal)
	}
	if !near(hit.Fraction, 0.4, 1e-4) {
		t.Errorf("Expected fraction 0.4, got %f", hit.Fraction)
	}

	if _, ok := w.RaycastAny(rl.Vector3{Z: 5}, rl.Vector3{Z: 2}, physics.AllTags); ok {
		t.Error("Ray ending before the box should not hit")
	}
}

func TestRaycastStaticBoxReportsOnce(t *testing.T) {
	w := newTestWorld(t)
	box, err := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 2, Y: 2, Z: 2})
	if err != nil {
		t.Fatalf("NewBoxCollider failed: %v", err)
	}
	box.SetKinematic(true)

	var hits []physics.RaycastHit
	w.Raycast(rl.Vector3{Z: 5}, rl.Vector3{Z: -10}, physics.AllTags, func(hit physics.RaycastHit) bool {
		hits = append(hits, hit)
		return false
	})
	if len(hits) != 1 {
		t.Fatalf("Expected exactly 1 hit on the static box, got %d", len(hits))
	}
	if hits[0].Collider != box {
		t.Error("Hit should report the box collider")
	}
	if !nearVec(hits[0].Position, rl.Vector3{Z: 1}, 1e-4) {
		t.Errorf("Expected hit at (0,0,1), got %v", hits[0].Position)
	}
	if !nearVec(hits[0].Normal, rl.Vector3{Z: 1}, 1e-4) {
		t.Errorf("Expected normal (0,0,1), got %v", hits[0].Normal)
	}
}

func TestRaycastSphereFromInside(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.NewSphereCollider(rl.Vector3{}, 1); err != nil {
		t.Fatalf("NewSphereCollider failed: %v", err)
	}
	hit, ok := w.RaycastClosest(rl.Vector3{}, rl.Vector3{X: 3}, physics.AllTags)
	if !ok {
		t.Fatal("Ray starting inside the sphere should hit")
	}
	if hit.Fraction != 0 {
		t.Errorf("Expected fraction 0, got %f", hit.Fraction)
	}
	if !nearVec(hit.Normal, rl.Vector3{X: -1}, 1e-4) {
		t.Errorf("Expected normal (-1,0,0), got %v", hit.Normal)
	}
}

func TestRaycastMeshIsTwoSided(t *testing.T) {
	w := newTestWorld(t)
	vertices := []rl.Vector3{{X: -1, Z: -1}, {X: 1, Z: -1}, {X: 0, Z: 1}}
	if _, err := w.NewMeshCollider(vertices, []uint32{0, 1, 2}); err != nil {
		t.Fatalf("NewMeshCollider failed: %v", err)
	}
	for _, dir := range []float32{-1, 1} {
		origin := rl.Vector3{Y: -dir * 2}
		hit, ok := w.RaycastClosest(origin, rl.Vector3{Y: dir * 4}, physics.AllTags)
		if !ok {
			t.Fatalf("Ray with direction %v should hit the triangle", dir)
		}
		if !near(hit.Fraction, 0.5, 1e-4) {
			t.Errorf("Expected fraction 0.5, got %f", hit.Fraction)
		}
		if hit.Normal.Y*dir >= 0 {
			t.Errorf("Normal %v should face the ray", hit.Normal)
		}
	}
}

func TestRaycastStopsEarly(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 3; i++ {
		if _, err := w.NewSphereCollider(rl.Vector3{X: float32(i) * 3}, 1); err != nil {
			t.Fatalf("NewSphereCollider failed: %v", err)
		}
	}
	calls := 0
	w.Raycast(rl.Vector3{X: -5}, rl.Vector3{X: 20}, physics.AllTags, func(physics.RaycastHit) bool {
		calls++
		return true
	})
	if calls != 1 {
		t.Errorf("Expected 1 callback, got %d", calls)
	}
}

func TestQuerySphere(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	if _, err := w.NewSphereCollider(rl.Vector3{X: 10}, 1); err != nil {
		t.Fatalf("NewSphereCollider failed: %v", err)
	}

	var found []*physics.Collider
	w.QuerySphere(rl.Vector3{X: 1.5}, 1, physics.AllTags, func(c *physics.Collider, _ uint32) bool {
		found = append(found, c)
		return false
	})
	if len(found) != 1 || found[0] != a {
		t.Errorf("Expected only the first sphere, got %d colliders", len(found))
	}

	if w.QuerySphere(rl.Vector3{X: 5}, 1, physics.AllTags, nil) {
		t.Error("Query between the spheres should find nothing")
	}
}

func TestQueryBoxAgainstCapsule(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.NewCapsuleCollider(rl.Vector3{}, 0.5, 2); err != nil {
		t.Fatalf("NewCapsuleCollider failed: %v", err)
	}
	// The capsule tip reaches y = 1.5
	if !w.QueryBox(rl.Vector3{Y: 1.9}, rl.Vector3{X: .5, Y: .5, Z: .5}, physics.AllTags, nil) {
		t.Error("Box over the capsule tip should overlap")
	}
	if w.QueryBox(rl.Vector3{Y: 2.1}, rl.Vector3{X: .5, Y: .5, Z: .5}, physics.AllTags, nil) {
		t.Error("Box above the capsule should not overlap")
	}
}

func TestQueryTagMask(t *testing.T) {
	w := newTestWorld(t, "player", "enemy")
	p, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	e, _ := w.NewSphereCollider(rl.Vector3{X: .5}, 1)
	u, _ := w.NewSphereCollider(rl.Vector3{X: -.5}, 1)
	if err := p.SetTag("player"); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}
	if err := e.SetTag("enemy"); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}

	mask, err := w.TagMask("~enemy")
	if err != nil {
		t.Fatalf("TagMask failed: %v", err)
	}
	seen := map[*physics.Collider]bool{}
	w.QuerySphere(rl.Vector3{}, .5, mask, func(c *physics.Collider, _ uint32) bool {
		seen[c] = true
		return false
	})
	if !seen[p] || !seen[u] {
		t.Error("Player and untagged colliders should pass '~enemy'")
	}
	if seen[e] {
		t.Error("Enemy collider should be excluded by '~enemy'")
	}
}

func TestOverlappingSpheresMakeContact(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1.5}, 1)

	entered := 0
	w.OnContactEnter.AddListener(func(physics.Contact) { entered++ })
	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	contacts := w.Contacts()
	if len(contacts) != 1 {
		t.Fatalf("Expected 1 contact, got %d", len(contacts))
	}
	if contacts[0].Other(a) != b {
		t.Error("Contact should connect the two spheres")
	}
	if entered != 1 {
		t.Errorf("Expected 1 enter event, got %d", entered)
	}
	if a.Position().X >= 0 || b.Position().X <= 1.5 {
		t.Error("Overlapping spheres should be pushed apart")
	}
}

func TestDisabledTagPairHasNoContact(t *testing.T) {
	w := newTestWorld(t, "a", "b")
	x, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	y, _ := w.NewSphereCollider(rl.Vector3{X: 1}, 1)
	x.SetTag("a")
	y.SetTag("b")
	w.DisableCollisionBetween("a", "b")

	if w.IsCollisionEnabledBetween("a", "b") {
		t.Error("Collision between 'a' and 'b' should be disabled")
	}
	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 0 {
		t.Errorf("Expected 0 contacts, got %d", n)
	}

	w.EnableCollisionBetween("a", "b")
	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 1 {
		t.Errorf("Expected 1 contact after re-enabling, got %d", n)
	}
}

func TestPlayerEnemyPolicy(t *testing.T) {
	w := newTestWorld(t, "player", "enemy")
	p, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	e, _ := w.NewSphereCollider(rl.Vector3{X: .5}, 1)
	p.SetTag("player")
	e.SetTag("enemy")

	entered := 0
	w.OnContactEnter.AddListener(func(ct physics.Contact) {
		if ct.Other(p) == e {
			entered++
		}
	})
	w.Step(1.0 / 60)
	if entered != 1 {
		t.Fatalf("Expected 1 player/enemy contact while enabled, got %d", entered)
	}

	enemies, err := w.TagMask("enemy")
	if err != nil {
		t.Fatalf("TagMask failed: %v", err)
	}
	area, _ := physics.NewSphereShape(1)
	defer area.Release()
	var found *physics.Collider
	if !w.QueryShape(area, p.Position(), rl.QuaternionIdentity(), enemies, func(c *physics.Collider, _ uint32) bool {
		found = c
		return true
	}) {
		t.Fatal("Query around the player should find the enemy")
	}
	if found != e {
		t.Errorf("Expected the enemy collider, got %v", found)
	}

	w.DisableCollisionBetween("player", "enemy")
	for _, c := range []*physics.Collider{p, e} {
		c.SetLinearVelocity(rl.Vector3{})
	}
	p.SetPosition(rl.Vector3{})
	e.SetPosition(rl.Vector3{X: .5})
	entered = 0
	w.Step(1.0 / 60)
	if entered != 0 {
		t.Errorf("Expected no contact events after disabling the pair, got %d", entered)
	}
	if n := len(w.Contacts()); n != 0 {
		t.Errorf("Expected 0 contacts after disabling the pair, got %d", n)
	}
	if !w.QueryShape(area, p.Position(), rl.QuaternionIdentity(), enemies, nil) {
		t.Error("Queries should still see the enemy after disabling contacts")
	}
}

func TestKinematicPairHasNoContact(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 1, Y: 1, Z: 1})
	b, _ := w.NewBoxCollider(rl.Vector3{X: .5}, rl.Vector3{X: 1, Y: 1, Z: 1})
	a.SetKinematic(true)
	b.SetKinematic(true)

	w.Step(1.0 / 60)
	if n := len(w.Contacts()); n != 0 {
		t.Errorf("Expected 0 contacts between kinematic boxes, got %d", n)
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

func TestSphereRestsOnGround(t *testing.T) {
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
	// Ground top is y = 0.5, so the ball should rest around y = 1
	if y := ball.Position().Y; y < .85 || y > 1.1 {
		t.Errorf("Expected ball resting near y=1, got %f", y)
	}
	if ground.Position().Y != 0 {
		t.Error("Kinematic ground should not move")
	}
}

func TestSleepingBodyDoesNotFall(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	ball, _ := w.NewSphereCollider(rl.Vector3{Y: 5}, .5)
	ball.SetAwake(false)
	w.Step(1.0 / 60)
	if ball.Position().Y != 5 {
		t.Errorf("Sleeping ball should stay at y=5, got %f", ball.Position().Y)
	}

	ball.ApplyLinearImpulse(rl.Vector3{Y: -1})
	if !ball.Awake() {
		t.Error("Impulse should wake the ball")
	}
}

func TestDisabledColliderIsIgnored(t *testing.T) {
	w := newTestWorld(t)
	c, _ := w.NewSphereCollider(rl.Vector3{}, 1)
	c.SetEnabled(false)
	if _, ok := w.RaycastAny(rl.Vector3{X: -5}, rl.Vector3{X: 10}, physics.AllTags); ok {
		t.Error("Disabled collider should not be hit")
	}
}

func TestDistanceJointHoldsLength(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(rl.Vector3{Y: -9.81})
	anchor, _ := w.NewSphereCollider(rl.Vector3{}, .1)
	anchor.SetKinematic(true)
	bob, _ := w.NewSphereCollider(rl.Vector3{X: 2}, .1)

	j, err := physics.NewDistanceJoint(anchor, bob, anchor.Position(), bob.Position())
	if err != nil {
		t.Fatalf("NewDistanceJoint failed: %v", err)
	}
	if !near(j.Distance(), 2, 1e-4) {
		t.Errorf("Expected distance 2, got %f", j.Distance())
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

func TestJointAnchorsFollowCollider(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, .5)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 3}, .5)
	j, err := physics.NewDistanceJoint(a, b, a.Position(), b.Position())
	if err != nil {
		t.Fatalf("NewDistanceJoint failed: %v", err)
	}

	b.SetPosition(rl.Vector3{X: 3, Y: 4})
	_, anchorB := j.Anchors()
	if !nearVec(anchorB, rl.Vector3{X: 3, Y: 4}, 1e-4) {
		t.Errorf("Expected anchor at (3,4,0), got %v", anchorB)
	}

	a.SetPosition(rl.Vector3{X: -2, Z: 1})
	anchorA, anchorB := j.Anchors()
	if !nearVec(anchorA, rl.Vector3{X: -2, Z: 1}, 1e-4) {
		t.Errorf("Expected anchor A at (-2,0,1), got %v", anchorA)
	}
	if !nearVec(anchorB, rl.Vector3{X: 3, Y: 4}, 1e-4) {
		t.Errorf("Moving A should leave anchor B at (3,4,0), got %v", anchorB)
	}
}

func TestJointAnchorKeepsLocalOffset(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, .5)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 3}, .5)
	j, err := physics.NewDistanceJoint(a, b, rl.Vector3{X: .5}, b.Position())
	if err != nil {
		t.Fatalf("NewDistanceJoint failed: %v", err)
	}

	a.SetPosition(rl.Vector3{Y: 2})
	anchorA, _ := j.Anchors()
	if !nearVec(anchorA, rl.Vector3{X: .5, Y: 2}, 1e-4) {
		t.Errorf("Expected anchor A at (0.5,2,0), got %v", anchorA)
	}

	a.SetOrientation(rl.QuaternionFromAxisAngle(rl.Vector3{Y: 1}, math.Pi/2))
	anchorA, _ = j.Anchors()
	if !nearVec(anchorA, rl.Vector3{Y: 2, Z: -.5}, 1e-4) {
		t.Errorf("Expected rotated anchor A at (0,2,-0.5), got %v", anchorA)
	}
}

func TestHingeLimits(t *testing.T) {
	w := newTestWorld(t)
	base, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 1, Y: 1, Z: 1})
	base.SetKinematic(true)
	door, _ := w.NewBoxCollider(rl.Vector3{X: 1}, rl.Vector3{X: 1, Y: 1, Z: .1})

	h, err := physics.NewHingeJoint(base, door, rl.Vector3{X: .5}, rl.Vector3{Y: 1})
	if err != nil {
		t.Fatalf("NewHingeJoint failed: %v", err)
	}
	min, max := h.Limits()
	if !near(min, -math.Pi, 1e-5) || !near(max, math.Pi, 1e-5) {
		t.Errorf("Expected natural limits [-pi, pi], got [%f, %f]", min, max)
	}
	if err := h.SetLimits(-.2, .2); err != nil {
		t.Fatalf("SetLimits failed: %v", err)
	}

	door.SetAngularVelocity(rl.Vector3{Y: 5})
	for i := 0; i < 30; i++ {
		w.Step(1.0 / 60)
	}
	if a := h.Angle(); a > .3 || a < -.3 {
		t.Errorf("Expected angle within limits, got %f", a)
	}
}

func TestSliderMotor(t *testing.T) {
	w := newTestWorld(t)
	rail, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 1, Y: 1, Z: 1})
	rail.SetKinematic(true)
	cart, _ := w.NewBoxCollider(rl.Vector3{Y: 3}, rl.Vector3{X: 1, Y: 1, Z: 1})

	s, err := physics.NewSliderJoint(rail, cart, rl.Vector3{X: 1})
	if err != nil {
		t.Fatalf("NewSliderJoint failed: %v", err)
	}
	if err := s.SetMotorTarget(physics.MotorVelocity, 1); err != nil {
		t.Fatalf("SetMotorTarget failed: %v", err)
	}
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60)
	}
	if p := s.Position(); p < .8 || p > 1.2 {
		t.Errorf("Expected slider near 1 after one second, got %f", p)
	}
	if y := cart.Position().Y; !near(y, 3, .05) {
		t.Errorf("Cart should stay on the rail axis, got y=%f", y)
	}
}

func TestUnsupportedSetterIsWarning(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.NewSphereCollider(rl.Vector3{}, .5)
	b, _ := w.NewSphereCollider(rl.Vector3{X: 1}, .5)
	j, _ := physics.NewBallJoint(a, b, rl.Vector3{X: .5})
	if err := j.SetSpring(physics.Spring{Frequency: 2}); err != nil {
		t.Errorf("Unsupported setter should only warn, got %v", err)
	}
	if err := j.SetAnchor(rl.Vector3{X: .25}); err != nil {
		t.Errorf("SetAnchor failed: %v", err)
	}
}

func TestCompoundEditUpdatesMass(t *testing.T) {
	w := newTestWorld(t)
	ball, _ := physics.NewSphereShape(.5)
	defer ball.Release()
	compound, err := physics.NewMutableCompoundShape([]physics.CompoundChild{{Shape: ball}})
	if err != nil {
		t.Fatalf("NewMutableCompoundShape failed: %v", err)
	}
	c, _ := w.NewCollider(compound, rl.Vector3{})
	compound.Release()
	single := c.Mass()

	if err := compound.AddChild(ball, physics.At(rl.Vector3{X: 3})); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if err := w.Step(1.0 / 60); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !near(c.Mass(), 2*single, single*1e-3) {
		t.Errorf("Expected mass %f after adding a child, got %f", 2*single, c.Mass())
	}
	if !near(c.CenterOfMass().X, 1.5, 1e-3) {
		t.Errorf("Expected center of mass x=1.5, got %f", c.CenterOfMass().X)
	}
}

func TestDestroyBodyKeepsIndices(t *testing.T) {
	w := newTestWorld(t)
	var colliders []*physics.Collider
	for i := 0; i < 4; i++ {
		c, _ := w.NewSphereCollider(rl.Vector3{X: float32(i) * 3}, 1)
		colliders = append(colliders, c)
	}
	colliders[1].Destroy()

	p := w.Backend().(*Backend)
	if p.BodyCount() != 3 {
		t.Errorf("Expected 3 bodies, got %d", p.BodyCount())
	}
	for i, b := range p.bodies {
		if b.index != i {
			t.Errorf("Body at %d has index %d", i, b.index)
		}
	}
	hit, ok := w.RaycastClosest(rl.Vector3{X: 9, Y: 5}, rl.Vector3{Y: -10}, physics.AllTags)
	if !ok || hit.Collider != colliders[3] {
		t.Error("Ray should still find the last sphere")
	}
}

func TestGridPairsLargeBody(t *testing.T) {
	w := newTestWorld(t)
	ground, _ := w.NewBoxCollider(rl.Vector3{}, rl.Vector3{X: 200, Y: 1, Z: 200})
	ground.SetKinematic(true)
	w.NewSphereCollider(rl.Vector3{X: 80, Y: .9}, .5)

	p := w.Backend().(*Backend)
	p.refreshPrimitives()
	pairs := 0
	p.gridPairs(func(i, j int) { pairs++ })
	if pairs != 1 {
		t.Errorf("Expected 1 candidate pair, got %d", pairs)
	}
}
