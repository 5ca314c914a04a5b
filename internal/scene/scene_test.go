package scene

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"physworld/internal/physics"
	"physworld/internal/physics/native"
)

const testScene = `
world:
  gravity: [0, -9.81, 0]
  stepCount: 2
tags: [ground, crate]
disabled:
  - [crate, crate]
shapes:
  crate: {type: box, size: [1, 1, 1]}
  pair:
    type: compound
    children:
      - shape: crate
        offset: [-1, 0, 0]
      - geometry: {type: sphere, radius: 0.5}
        offset: [1, 0, 0]
colliders:
  - name: floor
    geometry: {type: box, size: [20, 1, 20]}
    kinematic: true
    tag: ground
  - name: a
    shape: crate
    position: [0, 3, 0]
    tag: crate
    friction: 0.2
  - name: b
    shape: crate
    position: [3, 3, 0]
    tag: crate
    mass: 4
  - name: dumbbell
    shape: pair
    position: [0, 6, 0]
  - position: [5, 5, 5]
joints:
  - name: rope
    type: distance
    a: a
    b: b
    limits: [0, 4]
  - name: door
    type: hinge
    a: floor
    b: dumbbell
    anchor: [0, 6, 0]
    axis: [0, 0, 1]
    limits: [-45, 45]
    motor: {mode: velocity, target: 1, maxForce: 10}
`

func buildTestScene(t *testing.T) *Built {
	t.Helper()
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	built, err := Build(s, native.New(native.Options{}))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(built.World.Destroy)
	return built
}

func TestParseConfig(t *testing.T) {
	s, err := Parse([]byte(testScene))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg := s.Config()
	if cfg.Gravity.Y != -9.81 {
		t.Errorf("Expected gravity -9.81, got %f", cfg.Gravity.Y)
	}
	if cfg.StepCount != 2 {
		t.Errorf("Expected 2 steps, got %d", cfg.StepCount)
	}
	def := physics.DefaultWorldConfig()
	if cfg.MaxColliders != def.MaxColliders {
		t.Errorf("Unset MaxColliders should keep default %d, got %d", def.MaxColliders, cfg.MaxColliders)
	}
	if len(cfg.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", cfg.Tags)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown shape", "colliders:\n  - shape: nope\n", "unknown shape"},
		{"duplicate name", "colliders:\n  - name: a\n  - name: a\n", "duplicate name"},
		{"bad joint type", "colliders:\n  - name: a\n  - name: b\njoints:\n  - {type: weld, a: a, b: b}\n", "unknown type"},
		{"unnamed joint collider", "colliders:\n  - name: a\njoints:\n  - {type: ball, a: a, b: c}\n", "named colliders"},
		{"missing axis", "colliders:\n  - name: a\n  - name: b\njoints:\n  - {type: hinge, a: a, b: b}\n", "needs an axis"},
		{"bad motor", "colliders:\n  - name: a\n  - name: b\njoints:\n  - {type: hinge, a: a, b: b, axis: [0, 1, 0], motor: {mode: servo}}\n", "motor mode"},
		{"bad shape type", "shapes:\n  x: {type: blob}\n", "unknown shape type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNestedCompoundRejected(t *testing.T) {
	src := `
shapes:
  inner:
    type: compound
    children:
      - geometry: {type: sphere, radius: 1}
      - geometry: {type: sphere, radius: 1}
  outer:
    type: compound
    children:
      - shape: inner
      - geometry: {type: sphere, radius: 1}
`
	_, err := Parse([]byte(src))
	if !errors.Is(err, physics.ErrNestedCompound) {
		t.Errorf("Expected ErrNestedCompound, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	built := buildTestScene(t)
	w := built.World

	if n := w.ColliderCount(); n != 5 {
		t.Errorf("Expected 5 colliders, got %d", n)
	}
	if n := w.JointCount(); n != 2 {
		t.Errorf("Expected 2 joints, got %d", n)
	}
	floor := built.Colliders["floor"]
	if floor == nil || !floor.Kinematic() || floor.Tag() != "ground" {
		t.Fatal("Floor should be a kinematic ground collider")
	}
	a := built.Colliders["a"]
	if f := a.Friction(); f != 0.2 {
		t.Errorf("Expected friction 0.2, got %f", f)
	}
	if m := built.Colliders["b"].Mass(); m != 4 {
		t.Errorf("Expected mass 4, got %f", m)
	}
	if a.UserData != "a" {
		t.Errorf("Expected collider UserData 'a', got %v", a.UserData)
	}
	if w.IsCollisionEnabledBetween("crate", "crate") {
		t.Error("crate/crate should be disabled")
	}
	if s := built.Colliders["dumbbell"].Shape(); s.Type() != physics.ShapeCompound {
		t.Errorf("Expected compound shape, got %s", s.Type())
	}
}

func TestBuildJoints(t *testing.T) {
	built := buildTestScene(t)

	rope, ok := built.Joints["rope"].(*physics.DistanceJoint)
	if !ok {
		t.Fatal("rope should be a distance joint")
	}
	if lo, hi := rope.Limits(); lo != 0 || hi != 4 {
		t.Errorf("Expected limits [0, 4], got [%f, %f]", lo, hi)
	}

	door, ok := built.Joints["door"].(*physics.HingeJoint)
	if !ok {
		t.Fatal("door should be a hinge joint")
	}
	lo, hi := door.Limits()
	if !nearf(lo, -0.7854) || !nearf(hi, 0.7854) {
		t.Errorf("Expected limits of 45 degrees in radians, got [%f, %f]", lo, hi)
	}
	if mode, target := door.MotorTarget(); mode != physics.MotorVelocity || target != 1 {
		t.Errorf("Expected velocity motor at 1, got %s %f", mode, target)
	}
	if f := door.MaxMotorForce(); f != 10 {
		t.Errorf("Expected max motor force 10, got %f", f)
	}
}

func TestBuildSharesNamedShapes(t *testing.T) {
	built := buildTestScene(t)
	a := built.Colliders["a"].Shape()
	b := built.Colliders["b"].Shape()
	if a != b {
		t.Fatal("Colliders naming the same shape should share it")
	}
	// a, b and the compound child hold the crate; the builder released its own reference
	if n := a.RefCount(); n != 3 {
		t.Errorf("Expected crate refcount 3, got %d", n)
	}
}

func TestBuildStep(t *testing.T) {
	built := buildTestScene(t)
	start := built.Colliders["b"].Position().Y
	for i := 0; i < 30; i++ {
		if err := built.World.Step(1.0 / 60); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	if y := built.Colliders["b"].Position().Y; y >= start {
		t.Errorf("Crate should fall, y went from %f to %f", start, y)
	}
}

func TestBuildFailureDestroysWorld(t *testing.T) {
	s, err := Parse([]byte("colliders:\n  - geometry: {type: sphere, radius: -1}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := Build(s, native.New(native.Options{})); err == nil {
		t.Error("Negative radius should fail to build")
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	prev := buildTestScene(t)
	bad := &Scene{Colliders: []ColliderDef{{Geometry: &ShapeDef{Type: "sphere", Radius: -1}}}}
	got, err := Reload(prev, bad, Backends("native", 0), nil)
	if err == nil {
		t.Fatal("Expected reload error")
	}
	if got != prev || prev.World.IsDestroyed() {
		t.Error("Failed reload should keep the previous world alive")
	}

	good, _ := Parse([]byte(testScene))
	prepareErr := errors.New("script failed")
	var prepared *Built
	got, err = Reload(prev, good, Backends("native", 0), func(b *Built) error {
		prepared = b
		return prepareErr
	})
	if !errors.Is(err, prepareErr) {
		t.Fatalf("Expected the prepare error, got %v", err)
	}
	if got != prev || prev.World.IsDestroyed() {
		t.Error("Failed prepare should keep the previous world alive")
	}
	if prepared == nil || !prepared.World.IsDestroyed() {
		t.Error("World rejected by prepare should be destroyed")
	}
}

func TestReloadSwapsWorlds(t *testing.T) {
	prev := buildTestScene(t)
	s, _ := Parse([]byte(testScene))
	next, err := Reload(prev, s, Backends("native", 0), nil)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	defer next.World.Destroy()
	if !prev.World.IsDestroyed() {
		t.Error("Previous world should be destroyed after a successful reload")
	}
	if next.World.Backend() == prev.World.Backend() {
		t.Error("Reload should build on a fresh backend")
	}
	if err := next.World.Step(1.0 / 60); err != nil {
		t.Errorf("Reloaded world should step: %v", err)
	}

	if _, err := Reload(next, s, Backends("bullet", 0), nil); err == nil {
		t.Error("Unknown backend should fail the reload")
	}
}

func TestLoadAndMarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(testScene), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse of marshaled scene failed: %v", err)
	}
	if len(again.Colliders) != len(s.Colliders) || len(again.Joints) != len(s.Joints) {
		t.Error("Marshaled scene lost entries")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Loading a missing file should fail")
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	path := filepath.Join(dir, "level.yaml")
	os.WriteFile(path, []byte(testScene), 0o644)

	select {
	case got := <-w.Events:
		if got != path {
			t.Errorf("Expected event for %s, got %s", path, got)
		}
	case err := <-w.Errors:
		t.Fatalf("Watcher error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for watcher event")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	for range w.Events {
	}
}

func TestWatcherReportsLastWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.yaml")
	if err := os.WriteFile(path, []byte(testScene), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	// Truncate, then write the content shortly after, the way editors save
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(debounce / 5)
	if err := os.WriteFile(path, []byte(testScene), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events:
		if got != path {
			t.Fatalf("Expected event for %s, got %s", path, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for watcher event")
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load after the event failed: %v", err)
	}
	if len(s.Colliders) == 0 {
		t.Error("Event should arrive after the final write, not the truncation")
	}

	select {
	case got := <-w.Events:
		t.Errorf("Expected one event for the save, got a second for %s", got)
	case <-time.After(3 * debounce):
	}
}

func TestEmptySceneRejected(t *testing.T) {
	for _, data := range []string{"", "  \n\t\n"} {
		if _, err := Parse([]byte(data)); !errors.Is(err, ErrEmptyScene) {
			t.Errorf("Parse(%q): expected ErrEmptyScene, got %v", data, err)
		}
	}
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrEmptyScene) {
		t.Errorf("Load of an empty file: expected ErrEmptyScene, got %v", err)
	}
}

func TestFileKinds(t *testing.T) {
	if !IsSceneFile("a/B.YML") || IsSceneFile("a.json") {
		t.Error("IsSceneFile misclassified")
	}
	if !IsScriptFile("x.tengo") || IsScriptFile("x.lua") {
		t.Error("IsScriptFile misclassified")
	}
}

func nearf(a, b float32) bool {
	d := a - b
	return d < 1e-3 && d > -1e-3
}

func TestNewBackend(t *testing.T) {
	for name, want := range map[string]string{"native": "native", "gpu": "native+gpu", "planar": "planar"} {
		b, err := NewBackend(name, 0)
		if err != nil {
			t.Fatalf("NewBackend(%q) failed: %v", name, err)
		}
		if b.Name() != want {
			t.Errorf("Expected backend %s, got %s", want, b.Name())
		}
	}
	if _, err := NewBackend("bullet", 0); err == nil {
		t.Error("Unknown backend should fail")
	}
}

func TestBuildPlanar(t *testing.T) {
	src := `
colliders:
  - name: floor
    geometry: {type: box, size: [20, 1, 20]}
    kinematic: true
  - name: ball
    geometry: {type: sphere, radius: 0.5}
    position: [0, 3, 0]
`
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, _ := NewBackend("planar", 0)
	built, err := Build(s, b)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.World.Destroy()
	for i := 0; i < 120; i++ {
		built.World.Step(1.0 / 60)
	}
	if y := built.Colliders["ball"].Position().Y; y < 0.8 || y > 1.2 {
		t.Errorf("Expected ball resting on the floor, got y=%f", y)
	}
}
