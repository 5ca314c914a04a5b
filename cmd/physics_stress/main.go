// Stress test comparing CPU vs GPU broad-phase pair finding and the step
// time of each physics backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"physworld/internal/compute"
	"physworld/internal/physics"
	"physworld/internal/scene"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Proxies use two layers; layer 1 never collides with itself.
const layers = 2

func shouldCollide(a, b uint32) bool { return a == 0 || b == 0 }

func main() {
	var (
		counts   = flag.String("counts", "100,500,1000,2000,5000,10000", "comma separated object counts")
		backends = flag.String("backends", strings.Join(scene.BackendNames, ","), "backends to step")
		steps    = flag.Int("steps", 120, "world steps per backend")
		skipGPU  = flag.Bool("no-gpu", false, "skip the GPU broad-phase comparison")
	)
	flag.Parse()

	var sizes []int
	for _, s := range strings.Split(*counts, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			log.Fatalf("bad count %q", s)
		}
		sizes = append(sizes, n)
	}

	if !*skipGPU {
		info, err := compute.Initialize()
		if err != nil {
			log.Printf("Stress: GPU unavailable: %v", err)
		} else {
			fmt.Printf("GPU: %s | %s | %s\n\n", info.Backend, info.Vendor, info.Name)
			for _, n := range sizes {
				testBroadPhase(n)
			}
			fmt.Println()
		}
	}

	for _, name := range strings.Split(*backends, ",") {
		for _, n := range sizes {
			testWorld(strings.TrimSpace(name), n, *steps)
		}
	}
}

func spawnSize(count int) float32 {
	// Size scales with count to keep density reasonable
	return 50 + float32(count)/100
}

func randomProxies(count int) []compute.Proxy {
	rng := rand.New(rand.NewSource(42))
	size := spawnSize(count)
	proxies := make([]compute.Proxy, count)
	for i := range proxies {
		proxies[i] = compute.Proxy{
			X:      rng.Float32()*size - size/2,
			Y:      rng.Float32()*size - size/2,
			Z:      rng.Float32()*size - size/2,
			Radius: 0.5 + rng.Float32()*0.5,
			Layer:  uint32(i % layers),
		}
	}
	return proxies
}

// cpuPairs is the naive O(n^2) reference.
func cpuPairs(proxies []compute.Proxy) int {
	count := 0
	for i := range proxies {
		for j := i + 1; j < len(proxies); j++ {
			a, b := &proxies[i], &proxies[j]
			if !shouldCollide(a.Layer, b.Layer) {
				continue
			}
			dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
			r := a.Radius + b.Radius
			if dx*dx+dy*dy+dz*dz < r*r {
				count++
			}
		}
	}
	return count
}

func testBroadPhase(count int) {
	proxies := randomProxies(count)

	bp, err := compute.NewBroadPhase(uint32(count), uint32(count*20))
	if err != nil || bp == nil {
		fmt.Printf("%5d objects: GPU ERROR: %v\n", count, err)
		return
	}
	defer bp.Release()
	if err := bp.SetLayerFilter(layers, shouldCollide); err != nil {
		fmt.Printf("%5d objects: GPU ERROR: %v\n", count, err)
		return
	}

	// Warm up
	if _, err := bp.DetectPairs(proxies); err != nil {
		fmt.Printf("%5d objects: GPU ERROR: %v\n", count, err)
		return
	}

	const iterations = 10
	gpuStart := time.Now()
	var gpuPairs []compute.CollisionPair
	for i := 0; i < iterations; i++ {
		gpuPairs, _ = bp.DetectPairs(proxies)
	}
	gpuTime := time.Since(gpuStart) / iterations

	cpuStart := time.Now()
	var cpuCount int
	for i := 0; i < iterations; i++ {
		cpuCount = cpuPairs(proxies)
	}
	cpuTime := time.Since(cpuStart) / iterations

	speedup := float64(cpuTime) / float64(max(gpuTime, 1))
	fmt.Printf("%5d objects: GPU %8v (%4d pairs) | CPU %10v (%4d pairs) | %.1fx speedup\n",
		count, gpuTime.Round(time.Microsecond), len(gpuPairs),
		cpuTime.Round(time.Microsecond), cpuCount, speedup)
}

// testWorld drops count spheres and boxes onto a floor and times Step.
func testWorld(backendName string, count, steps int) {
	backend, err := scene.NewBackend(backendName, 0)
	if err != nil {
		fmt.Printf("%-8s %5d bodies: %v\n", backendName, count, err)
		return
	}
	cfg := physics.DefaultWorldConfig()
	cfg.Tags = []string{"floor", "debris"}
	w, err := physics.NewWorld(backend, cfg)
	if err != nil {
		fmt.Printf("%-8s %5d bodies: %v\n", backendName, count, err)
		return
	}
	defer w.Destroy()

	if err := populate(w, count); err != nil {
		fmt.Printf("%-8s %5d bodies: %v\n", backendName, count, err)
		return
	}

	start := time.Now()
	var slowest time.Duration
	for i := 0; i < steps; i++ {
		t := time.Now()
		if err := w.Step(1.0 / 60); err != nil {
			fmt.Printf("%-8s %5d bodies: step %d: %v\n", backend.Name(), count, i, err)
			return
		}
		slowest = max(slowest, time.Since(t))
	}
	avg := time.Since(start) / time.Duration(max(steps, 1))

	awake := 0
	for c := range w.Colliders() {
		if !c.Kinematic() && c.Awake() {
			awake++
		}
	}
	fmt.Printf("%-10s %5d bodies: avg %8v | worst %8v | %5d contacts | %5d awake\n",
		backend.Name(), count, avg.Round(time.Microsecond), slowest.Round(time.Microsecond),
		len(w.Contacts()), awake)
}

func populate(w *physics.World, count int) error {
	size := spawnSize(count)
	floorShape, err := physics.NewBoxShape(rl.Vector3{X: size * 2, Y: 1, Z: size * 2})
	if err != nil {
		return err
	}
	defer floorShape.Release()
	sphere, err := physics.NewSphereShape(0.5)
	if err != nil {
		return err
	}
	defer sphere.Release()
	box, err := physics.NewBoxShape(rl.Vector3{X: 1, Y: 1, Z: 1})
	if err != nil {
		return err
	}
	defer box.Release()

	floor, err := w.NewCollider(floorShape, rl.Vector3{Y: -0.5})
	if err != nil {
		return err
	}
	floor.SetKinematic(true)
	if err := floor.SetTag("floor"); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < count; i++ {
		var shape physics.Shape = sphere
		if i%2 == 1 {
			shape = box
		}
		pos := rl.Vector3{
			X: rng.Float32()*size - size/2,
			Y: 1 + rng.Float32()*size/2,
			Z: rng.Float32()*size - size/2,
		}
		c, err := w.NewCollider(shape, pos)
		if err != nil {
			return err
		}
		if err := c.SetTag("debris"); err != nil {
			return err
		}
	}
	return nil
}
