// Package script drives a physics scene from a tengo script.
//
// A script defines update(world, state, dt) and optionally setup(world, state).
// world exposes the scene's colliders and joints by name together with ray and
// overlap queries; state is a map that survives between calls. Top-level
// statements run once when the script is compiled, so locals they declare
// persist between calls as well:
//
//	setup := func(world, state) {
//		state.kicks = 0
//	}
//
//	update := func(world, state, dt) {
//		hit := world.raycast([0, 10, 0], [0, -20, 0], "crate")
//		if hit != undefined && state.kicks < 3 {
//			world.apply_impulse(hit.collider, [0, 5, 0])
//			state.kicks += 1
//		}
//	}
package script

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"physworld/internal/physics"
	"physworld/internal/scene"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// ErrNoUpdate is returned for scripts without an update function.
var ErrNoUpdate = errors.New("script: update function not defined")

var (
	setupDecl  = regexp.MustCompile(`(?m)^\s*setup\s*:=`)
	updateDecl = regexp.MustCompile(`(?m)^\s*update\s*:=`)
)

// The script body runs once, in the load phase, wrapped in a function; its
// setup and update closures are kept in __hooks for the later phases.
const (
	loadHeader = `
if __phase == "load" {
	__hooks = func() {
`
	updateDispatch = `
if __phase == "update" {
	__hooks.update(__world, __state, __dt)
}
`
	setupDispatch = `
if __phase == "setup" {
	__hooks.setup(__world, __state)
}
`
)

func loadFooter(hasSetup bool) string {
	hooks := "update: update"
	if hasSetup {
		hooks += ", setup: setup"
	}
	return "\n\t\treturn {" + hooks + "}\n\t}()\n}\n"
}

// Runtime runs one compiled script against a built scene.
type Runtime struct {
	path     string
	compiled *tengo.Compiled
	state    *tengo.Map
	scene    *scene.Built
	engine   *tengo.ImmutableMap
	hasSetup bool
	ready    bool

	elapsed float64
	entered []physics.Contact
	exited  []physics.Contact
}

// Load compiles the script at path.
func Load(path string, built *scene.Built) (*Runtime, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: load %s: %w", path, err)
	}
	rt, err := Compile(src, built)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	rt.path = path
	return rt, nil
}

// Compile builds a runtime from source. The runtime listens to the world's
// contact events until the world is destroyed.
func Compile(src []byte, built *scene.Built) (*Runtime, error) {
	if !updateDecl.Match(src) {
		return nil, ErrNoUpdate
	}
	rt := &Runtime{
		state:    &tengo.Map{Value: map[string]tengo.Object{}},
		scene:    built,
		hasSetup: setupDecl.Match(src),
	}

	full := loadHeader + string(src) + loadFooter(rt.hasSetup) + updateDispatch
	if rt.hasSetup {
		full += setupDispatch
	}
	s := tengo.NewScript([]byte(full))
	for name, value := range map[string]any{
		"__phase": "",
		"__world": map[string]any{},
		"__state": map[string]any{},
		"__hooks": map[string]any{},
		"__dt":    0.0,
	} {
		if err := s.Add(name, value); err != nil {
			return nil, fmt.Errorf("define %s: %w", name, err)
		}
	}
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	rt.compiled = compiled
	rt.engine = rt.buildEngine()
	if err := rt.run("load", 0); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	w := built.World
	w.OnContactEnter.AddListener(func(ct physics.Contact) { rt.entered = append(rt.entered, ct) })
	w.OnContactExit.AddListener(func(ct physics.Contact) { rt.exited = append(rt.exited, ct) })
	return rt, nil
}

// Path is the file the runtime was loaded from, empty for Compile.
func (rt *Runtime) Path() string { return rt.path }

// Elapsed is the simulated time in seconds.
func (rt *Runtime) Elapsed() float64 { return rt.elapsed }

// State returns a copy of the script's state map.
func (rt *Runtime) State() map[string]any {
	return objectToAny(rt.state).(map[string]any)
}

// Tick runs setup on the first call, then update, then steps the world by dt.
// Contact events of the step are visible to the next update.
func (rt *Runtime) Tick(dt float32) error {
	if !rt.ready {
		rt.ready = true
		if rt.hasSetup {
			if err := rt.run("setup", 0); err != nil {
				return fmt.Errorf("script: setup: %w", err)
			}
		}
	}
	if err := rt.run("update", dt); err != nil {
		return fmt.Errorf("script: update: %w", err)
	}
	rt.entered = rt.entered[:0]
	rt.exited = rt.exited[:0]
	if err := rt.scene.World.Step(dt); err != nil {
		return err
	}
	rt.elapsed += float64(dt)
	return nil
}

func (rt *Runtime) run(phase string, dt float32) error {
	if err := rt.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := rt.compiled.Set("__world", rt.engine); err != nil {
		return err
	}
	if err := rt.compiled.Set("__state", rt.state); err != nil {
		return err
	}
	if err := rt.compiled.Set("__dt", float64(dt)); err != nil {
		return err
	}
	return rt.compiled.Run()
}
