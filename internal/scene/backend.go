package scene

import (
	"fmt"

	"physworld/internal/physics"
	"physworld/internal/physics/native"
	"physworld/internal/physics/planar"
)

// BackendNames lists the names NewBackend accepts.
var BackendNames = []string{"native", "gpu", "planar"}

// NewBackend creates an uninitialized backend by name. iterations <= 0 keeps
// the backend's default solver iterations.
func NewBackend(name string, iterations int) (physics.Backend, error) {
	switch name {
	case "native", "":
		return native.New(native.Options{Iterations: iterations}), nil
	case "gpu":
		return native.New(native.Options{Iterations: iterations, UseGPU: true}), nil
	case "planar":
		return planar.New(planar.Options{Iterations: iterations}), nil
	}
	return nil, fmt.Errorf("scene: unknown backend %q (want one of %v)", name, BackendNames)
}

// BackendFactory returns a new, uninitialized backend. A backend serves one
// world, so every Reload asks for a fresh one.
type BackendFactory func() (physics.Backend, error)

// Backends returns a factory calling NewBackend with name and iterations.
func Backends(name string, iterations int) BackendFactory {
	return func() (physics.Backend, error) {
		return NewBackend(name, iterations)
	}
}
