// physscript runs a scene without a window, optionally driven by a tengo
// script, and prints where every named collider ended up.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"physworld/internal/physics"
	"physworld/internal/scene"
	"physworld/internal/script"

	"gopkg.in/yaml.v3"
)

type result struct {
	Backend   string                `yaml:"backend"`
	Steps     int                   `yaml:"steps"`
	Time      float32               `yaml:"time"`
	Colliders map[string]bodyResult `yaml:"colliders"`
	State     map[string]any        `yaml:"state,omitempty"`
}

type bodyResult struct {
	Position [3]float32 `yaml:"position,flow"`
	Velocity [3]float32 `yaml:"velocity,flow"`
	Awake    bool       `yaml:"awake"`
}

func main() {
	var (
		scenePath  = flag.String("scene", "", "scene YAML file")
		scriptPath = flag.String("script", "", "tengo script driving the scene")
		backend    = flag.String("backend", "native", fmt.Sprintf("physics backend %v", scene.BackendNames))
		iterations = flag.Int("iterations", 0, "solver iterations (0 keeps the backend default)")
		steps      = flag.Int("steps", 300, "number of steps")
		dt         = flag.Float64("dt", 1.0/60, "step length in seconds")
		verbose    = flag.Bool("v", false, "log contacts as they start")
	)
	flag.Parse()
	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "usage: physscript -scene file.yaml [-script file.tengo] [-steps n]")
		os.Exit(2)
	}

	def, err := scene.Load(*scenePath)
	if err != nil {
		log.Fatal(err)
	}
	b, err := scene.NewBackend(*backend, *iterations)
	if err != nil {
		log.Fatal(err)
	}
	built, err := scene.Build(def, b)
	if err != nil {
		log.Fatal(err)
	}
	defer built.World.Destroy()

	if *verbose {
		built.World.OnContactEnter.AddListener(func(ct physics.Contact) {
			log.Printf("Contact: %s hit %s depth %.3f", ct.A, ct.B, ct.Depth)
		})
	}

	var rt *script.Runtime
	if *scriptPath != "" {
		if rt, err = script.Load(*scriptPath, built); err != nil {
			log.Fatal(err)
		}
	}

	for i := 0; i < *steps; i++ {
		if rt != nil {
			err = rt.Tick(float32(*dt))
		} else {
			err = built.World.Step(float32(*dt))
		}
		if err != nil {
			log.Fatalf("step %d: %v", i, err)
		}
	}

	out := result{
		Backend:   built.World.Backend().Name(),
		Steps:     *steps,
		Time:      float32(*steps) * float32(*dt),
		Colliders: make(map[string]bodyResult, len(built.Colliders)),
	}
	for name, c := range built.Colliders {
		p, v := c.Position(), c.LinearVelocity()
		out.Colliders[name] = bodyResult{
			Position: [3]float32{p.X, p.Y, p.Z},
			Velocity: [3]float32{v.X, v.Y, v.Z},
			Awake:    c.Awake(),
		}
	}
	if rt != nil {
		out.State = rt.State()
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
	enc.Close()
}
