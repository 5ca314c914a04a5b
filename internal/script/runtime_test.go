package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"physworld/internal/physics/native"
	"physworld/internal/scene"
)

const testScene = `
tags: [ground, crate]
colliders:
  - name: floor
    geometry: {type: box, size: [20, 1, 20]}
    kinematic: true
    tag: ground
  - name: low
    geometry: {type: box, size: [1, 1, 1]}
    position: [0, 3, 0]
    tag: crate
  - name: high
    geometry: {type: box, size: [1, 1, 1]}
    position: [0, 6, 0]
    tag: crate
  - name: side
    geometry: {type: sphere, radius: 0.5}
    position: [8, 0.5, 0]
    kinematic: true
`

func newRuntime(t *testing.T, src string) *Runtime {
	t.Helper()
	def, err := scene.Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	built, err := scene.Build(def, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(built.World.Destroy)
	rt, err := Compile([]byte(src), built)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return rt
}

func TestMissingUpdate(t *testing.T) {
	_, err := Compile([]byte(`setup := func(world, state) {}`), &scene.Built{})
	if !errors.Is(err, ErrNoUpdate) {
		t.Errorf("Expected ErrNoUpdate, got %v", err)
	}
}

func TestCompileError(t *testing.T) {
	def, _ := scene.Parse([]byte(testScene))
	built, err := scene.Build(def, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.World.Destroy()
	if _, err := Compile([]byte("update := func(world, state, dt) { x := }"), built); err == nil {
		t.Error("Expected a compile error")
	}
}

func TestSetupRunsOnce(t *testing.T) {
	rt := newRuntime(t, `
setup := func(world, state) {
	state.setups = 1
	state.updates = 0
}

update := func(world, state, dt) {
	state.updates += 1
}
`)
	for i := 0; i < 3; i++ {
		if err := rt.Tick(1.0 / 60); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	state := rt.State()
	if state["setups"] != 1 {
		t.Errorf("Expected setup once, got %v", state["setups"])
	}
	if state["updates"] != 3 {
		t.Errorf("Expected 3 updates, got %v", state["updates"])
	}
	if e := rt.Elapsed(); e < 0.049 || e > 0.051 {
		t.Errorf("Expected elapsed 0.05, got %f", e)
	}
}

func TestTopLevelRunsOnce(t *testing.T) {
	rt := newRuntime(t, `
ticks := 0
limit := 2

update := func(world, state, dt) {
	ticks += 1
	state.ticks = ticks
	state.capped = ticks >= limit
}
`)
	for i := 0; i < 3; i++ {
		if err := rt.Tick(1.0 / 60); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	state := rt.State()
	if state["ticks"] != 3 {
		t.Errorf("Expected top-level counter to reach 3, got %v", state["ticks"])
	}
	if state["capped"] != true {
		t.Errorf("Expected capped after 3 ticks, got %v", state["capped"])
	}
}

func TestTopLevelErrorFailsCompile(t *testing.T) {
	def, _ := scene.Parse([]byte(testScene))
	built, err := scene.Build(def, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.World.Destroy()
	src := `
zero := 0
broken := 1 / zero
update := func(world, state, dt) {}
`
	if _, err := Compile([]byte(src), built); err == nil {
		t.Error("Expected a runtime error from top-level statements")
	}
}

func TestUpdateWithoutSetup(t *testing.T) {
	rt := newRuntime(t, `
update := func(world, state, dt) {
	state.dt = dt
}
`)
	if err := rt.Tick(0.5); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if dt := rt.State()["dt"]; dt != 0.5 {
		t.Errorf("Expected dt 0.5, got %v", dt)
	}
}

func TestRaycastBindings(t *testing.T) {
	rt := newRuntime(t, `
update := func(world, state, dt) {
	hit := world.raycast([0, 10, 0], [0, -20, 0])
	state.closest = hit.collider
	state.ground = world.raycast([0, 10, 0], [0, -20, 0], "ground").collider
	state.all = len(world.raycast_all([0, 10, 0], [0, -20, 0]))
	state.first = len(world.raycast_all([0, 10, 0], [0, -20, 0], "", 1))
	state.miss = world.raycast([50, 10, 0], [0, -20, 0]) == undefined
}
`)
	if err := rt.Tick(1.0 / 60); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	state := rt.State()
	if state["closest"] != "high" {
		t.Errorf("Expected closest hit 'high', got %v", state["closest"])
	}
	if state["ground"] != "floor" {
		t.Errorf("Expected filtered hit 'floor', got %v", state["ground"])
	}
	if state["all"] != 3 {
		t.Errorf("Expected 3 hits, got %v", state["all"])
	}
	if state["first"] != 1 {
		t.Errorf("Expected the limit to stop after 1 hit, got %v", state["first"])
	}
	if state["miss"] != true {
		t.Error("Ray beside the scene should miss")
	}
}

func TestQueryBindings(t *testing.T) {
	rt := newRuntime(t, `
update := func(world, state, dt) {
	state.near = world.query_sphere([8, 0.5, 0], 1)
	state.crates = len(world.query_box([0, 4.5, 0], [1, 2, 1], "crate"))
	state.one = len(world.query_box([0, 4.5, 0], [1, 2, 1], "crate", 1))
}
`)
	if err := rt.Tick(1.0 / 60); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	state := rt.State()
	near, _ := state["near"].([]any)
	if len(near) != 2 {
		t.Errorf("Expected floor and side near the sphere, got %v", near)
	}
	if state["crates"] != 2 {
		t.Errorf("Expected 2 crates, got %v", state["crates"])
	}
	if state["one"] != 1 {
		t.Errorf("Expected the limit to stop after 1 collider, got %v", state["one"])
	}
}

func TestColliderBindings(t *testing.T) {
	rt := newRuntime(t, `
update := func(world, state, dt) {
	if state.kicked == undefined {
		world.set_gravity([0, 0, 0])
		world.set_velocity("low", [1, 0, 0])
		state.kicked = true
		state.tagged = world.set_tag("side", "nope")
		state.unknown = world.position("ghost") == undefined
	}
	state.x = world.position("low")[0]
}
`)
	for i := 0; i < 2; i++ {
		if err := rt.Tick(0.5); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	state := rt.State()
	if x, _ := state["x"].(float64); x < 0.4 || x > 0.6 {
		t.Errorf("Expected low to move to x=0.5, got %v", state["x"])
	}
	if _, ok := state["tagged"].(string); !ok {
		t.Errorf("Unknown tag should return an error value, got %v", state["tagged"])
	}
	if state["unknown"] != true {
		t.Error("Unknown collider should give undefined")
	}
}

func TestContactEvents(t *testing.T) {
	rt := newRuntime(t, `
setup := func(world, state) {
	state.touched = false
}

update := func(world, state, dt) {
	for ct in world.entered() {
		if ct.a == "floor" || ct.b == "floor" {
			state.touched = true
		}
	}
}
`)
	for i := 0; i < 120; i++ {
		if err := rt.Tick(1.0 / 60); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}
	if rt.State()["touched"] != true {
		t.Error("Falling crate should report entering the floor")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.tengo")
	src := "update := func(world, state, dt) {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	def, _ := scene.Parse([]byte(testScene))
	built, err := scene.Build(def, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.World.Destroy()
	rt, err := Load(path, built)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rt.Path() != path {
		t.Errorf("Expected path %s, got %s", path, rt.Path())
	}
}

func TestPlaygroundAssets(t *testing.T) {
	def, err := scene.Load("../../assets/scenes/playground.yaml")
	if err != nil {
		t.Fatalf("Load scene failed: %v", err)
	}
	built, err := scene.Build(def, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.World.Destroy()
	rt, err := Load("../../assets/scenes/playground.tengo", built)
	if err != nil {
		t.Fatalf("Load script failed: %v", err)
	}
	for i := 0; i < 180; i++ {
		if err := rt.Tick(1.0 / 60); err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
	}
	if kicks := rt.State()["kicks"]; kicks != 1 {
		t.Errorf("Expected one kick in the first 3 seconds, got %v", kicks)
	}
}
