// physview opens a scene file in a window, runs it and reloads it when the
// scene or its script changes on disk.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"physworld/internal/scene"
	"physworld/internal/script"
	"physworld/internal/view"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	fixedStep  = 1.0 / 60
	maxCatchUp = 4 // steps per frame
	pickReach  = 500
	pushForce  = 8
)

type app struct {
	scenePath  string
	scriptPath string
	backends   scene.BackendFactory

	built   *scene.Built
	runtime *script.Runtime
	impacts *view.Impacts
	status  string
}

func main() {
	var (
		scenePath  = flag.String("scene", "", "scene YAML file")
		scriptPath = flag.String("script", "", "tengo script driving the scene")
		backend    = flag.String("backend", "native", fmt.Sprintf("physics backend %v", scene.BackendNames))
		iterations = flag.Int("iterations", 0, "solver iterations (0 keeps the backend default)")
		fontPath   = flag.String("font", "", "TTF font for the panel")
		soundPath  = flag.String("impact-sound", "", "sound played when colliders hit")
		width      = flag.Int("width", 1280, "window width")
		height     = flag.Int("height", 720, "window height")
	)
	flag.Parse()
	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "usage: physview -scene file.yaml [-script file.tengo] [-backend native|gpu|planar]")
		os.Exit(2)
	}

	a := &app{scenePath: *scenePath, scriptPath: *scriptPath, backends: scene.Backends(*backend, *iterations)}
	if err := a.loadScene(); err != nil {
		log.Fatal(err)
	}

	dirs := []string{filepath.Dir(a.scenePath)}
	if a.scriptPath != "" && filepath.Dir(a.scriptPath) != dirs[0] {
		dirs = append(dirs, filepath.Dir(a.scriptPath))
	}
	watcher, err := scene.NewWatcher(dirs...)
	if err != nil {
		log.Printf("View: hot reload disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(int32(*width), int32(*height), "physview - "+filepath.Base(a.scenePath))
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)
	rl.InitAudioDevice()
	defer rl.CloseAudioDevice()

	view.InitStyle(*fontPath)
	defer view.UnloadStyle()

	a.impacts = view.NewImpacts(a.built.World, *soundPath)
	defer a.impacts.Unload()

	cam := view.NewFlyCamera(rl.Vector3{X: 15, Y: 12, Z: 15})
	cam.LookAt(rl.Vector3{})
	panel := view.NewPanel()
	var accumulator float32

	for !rl.WindowShouldClose() {
		if watcher != nil {
			a.pollWatcher(watcher, panel)
		}
		if panel.Reload || rl.IsKeyPressed(rl.KeyR) {
			a.reload(panel)
		}

		frame := rl.GetFrameTime()
		cam.Update(frame)
		camera := cam.Camera3D()
		forward, _ := cam.Directions()
		a.impacts.SetListener(view.NewListener(cam.Position, forward, camera.Up))

		a.handleMouse(camera, panel)

		if rl.IsKeyPressed(rl.KeySpace) {
			panel.Paused = !panel.Paused
		}
		steps := 0
		if !panel.Paused {
			accumulator += frame * panel.TimeScale
			for accumulator >= fixedStep && steps < maxCatchUp {
				accumulator -= fixedStep
				steps++
			}
			if steps == maxCatchUp {
				accumulator = 0
			}
		} else if panel.StepOnce || rl.IsKeyPressed(rl.KeyPeriod) {
			steps = 1
		}
		for i := 0; i < steps; i++ {
			if err := a.step(fixedStep); err != nil {
				a.status = err.Error()
				panel.Paused = true
				break
			}
		}
		a.impacts.Update()

		rl.BeginDrawing()
		rl.ClearBackground(rl.NewColor(24, 24, 32, 255))
		rl.BeginMode3D(camera)
		rl.DrawGrid(40, 1)
		aspect := float32(rl.GetScreenWidth()) / float32(rl.GetScreenHeight())
		frustum := view.ExtractFrustum(camera, aspect)
		stats := view.DrawWorld(a.built.World, &frustum, panel.Draw)
		rl.EndMode3D()

		info := view.Info{
			Backend: a.built.World.Backend().Name(),
			Scene:   filepath.Base(a.scenePath),
			Stats:   stats,
			FPS:     rl.GetFPS(),
			Status:  a.status,
		}
		if a.runtime != nil {
			info.Script = fmt.Sprintf("%s  t=%.1fs", filepath.Base(a.scriptPath), a.runtime.Elapsed())
		}
		panel.Update(a.built.World, info)
		rl.EndDrawing()
	}
	a.built.World.Destroy()
}

func (a *app) step(dt float32) error {
	if a.runtime != nil {
		return a.runtime.Tick(dt)
	}
	return a.built.World.Step(dt)
}

// loadScene builds the scene and its script, keeping the current world when
// either fails.
func (a *app) loadScene() error {
	def, err := scene.Load(a.scenePath)
	if err != nil {
		return err
	}
	var rt *script.Runtime
	next, err := scene.Reload(a.built, def, a.backends, func(b *scene.Built) error {
		if a.scriptPath == "" {
			return nil
		}
		var err error
		rt, err = script.Load(a.scriptPath, b)
		return err
	})
	if err != nil {
		return err
	}
	a.built, a.runtime = next, rt
	if a.impacts != nil {
		a.impacts.Attach(next.World)
	}
	log.Printf("View: loaded %s on %s (%d colliders, %d joints)",
		a.scenePath, next.World.Backend().Name(), next.World.ColliderCount(), next.World.JointCount())
	return nil
}

func (a *app) reload(panel *view.Panel) {
	panel.Draw.Selected = nil
	if err := a.loadScene(); err != nil {
		a.status = err.Error()
		log.Printf("View: reload failed: %v", err)
		return
	}
	a.status = "reloaded"
}

func (a *app) pollWatcher(w *scene.Watcher, panel *view.Panel) {
	for {
		select {
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			if sameFile(path, a.scenePath) || (a.scriptPath != "" && sameFile(path, a.scriptPath)) {
				a.reload(panel)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("View: watcher: %v", err)
		default:
			return
		}
	}
}

func sameFile(a, b string) bool {
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && ca == cb
}

// handleMouse selects the collider under the cursor on click. Shift-click
// pushes it away from the camera.
func (a *app) handleMouse(camera rl.Camera3D, panel *view.Panel) {
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}
	c, at, ok := view.Pick(a.built.World, camera, pickReach)
	if !ok {
		if !view.OverPanel() {
			panel.Draw.Selected = nil
		}
		return
	}
	panel.Draw.Selected = c
	if rl.IsKeyDown(rl.KeyLeftShift) && !c.Kinematic() {
		dir := rl.Vector3Normalize(rl.Vector3Subtract(at, camera.Position))
		c.SetAwake(true)
		c.ApplyLinearImpulseAtPosition(rl.Vector3Scale(dir, pushForce*max(c.Mass(), 1)), at)
	}
}
