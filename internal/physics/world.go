package physics

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"sync"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// WorldConfig configures a World. Start from DefaultWorldConfig.
type WorldConfig struct {
	MaxColliders     int
	MaxColliderPairs int
	MaxContacts      int
	AllowSleep       bool
	Gravity          rl.Vector3
	// StepCount is the number of backend sub-steps per Step.
	StepCount      int
	LinearDamping  float32
	AngularDamping float32
	Tags           []string
}

// DefaultWorldConfig returns the settings used when nothing else is specified.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		MaxColliders:     16384,
		MaxColliderPairs: 65536,
		MaxContacts:      16384,
		AllowSleep:       true,
		Gravity:          rl.Vector3{Y: -9.81},
		StepCount:        1,
		LinearDamping:    .05,
		AngularDamping:   .05,
	}
}

// World owns the colliders and joints of one simulation, the tag table and
// the collision policy between tags. A World and everything in it must be
// used from one goroutine at a time.
type World struct {
	backend Backend
	config  WorldConfig
	tags    []string
	layers  *layerTable

	colliders     *Collider // intrusive list head
	colliderCount int
	joints        *joint // intrusive list head
	jointCount    int
	nextID        uint64

	stepCount      int
	linearDamping  float32
	angularDamping float32
	allowSleep     bool

	stepping   bool
	queryDepth int
	destroyed  bool
	warned     map[string]bool

	// Contact tracking for enter/exit events
	contacts          []Contact
	activeContacts    map[contactKey]Contact
	OnContactEnter    EventWithArg[Contact]
	OnContact         EventWithArg[Contact]
	OnContactExit     EventWithArg[Contact]
	pendingEnter      []Contact
	pendingExit       []Contact
	currentContactSet map[contactKey]Contact
}

// Backends owned by a live World. A backend serves one world at a time.
var (
	claimedMu sync.Mutex
	claimed   = make(map[Backend]bool)
)

func claimBackend(b Backend) bool {
	claimedMu.Lock()
	defer claimedMu.Unlock()
	if claimed[b] {
		return false
	}
	claimed[b] = true
	return true
}

func releaseBackend(b Backend) {
	claimedMu.Lock()
	delete(claimed, b)
	claimedMu.Unlock()
}

// NewWorld creates a World driven by backend. The backend is initialized here
// and closed by Destroy. A backend still owned by a live world is rejected
// with ErrBackendInUse.
func NewWorld(backend Backend, cfg WorldConfig) (*World, error) {
	if backend == nil {
		return nil, errors.New("physics: nil backend")
	}
	if err := validateTags(cfg.Tags); err != nil {
		return nil, err
	}
	if !claimBackend(backend) {
		return nil, fmt.Errorf("%w: %s", ErrBackendInUse, backend.Name())
	}
	defaults := DefaultWorldConfig()
	if cfg.MaxColliders <= 0 {
		cfg.MaxColliders = defaults.MaxColliders
	}
	if cfg.MaxColliderPairs <= 0 {
		cfg.MaxColliderPairs = defaults.MaxColliderPairs
	}
	if cfg.MaxContacts <= 0 {
		cfg.MaxContacts = defaults.MaxContacts
	}
	if cfg.StepCount <= 0 {
		cfg.StepCount = defaults.StepCount
	}

	w := &World{
		backend:           backend,
		config:            cfg,
		tags:              append([]string(nil), cfg.Tags...),
		layers:            newLayerTable(),
		stepCount:         cfg.StepCount,
		linearDamping:     cfg.LinearDamping,
		angularDamping:    cfg.AngularDamping,
		allowSleep:        cfg.AllowSleep,
		warned:            make(map[string]bool),
		activeContacts:    make(map[contactKey]Contact),
		currentContactSet: make(map[contactKey]Contact),
	}

	err := backend.Init(BackendConfig{
		MaxBodies:    cfg.MaxColliders,
		MaxBodyPairs: cfg.MaxColliderPairs,
		MaxContacts:  cfg.MaxContacts,
		Gravity:      cfg.Gravity,
		Filter:       w.layers,
	})
	if err != nil {
		releaseBackend(backend)
		return nil, fmt.Errorf("physics: init %s backend: %w", backend.Name(), err)
	}

	log.Printf("Physics: world ready (%s backend, %d tags, max %d colliders)", backend.Name(), len(w.tags), cfg.MaxColliders)
	return w, nil
}

// Destroy destroys every collider (and with them every joint), then closes the backend.
func (w *World) Destroy() {
	if w.destroyed {
		return
	}
	for w.colliders != nil {
		w.colliders.Destroy()
	}
	if err := w.backend.Close(); err != nil {
		log.Printf("Physics: closing %s backend: %v", w.backend.Name(), err)
	}
	releaseBackend(w.backend)
	w.contacts = nil
	w.activeContacts = nil
	w.destroyed = true
}

// IsDestroyed reports whether Destroy has been called.
func (w *World) IsDestroyed() bool {
	return w.destroyed
}

// Backend returns the backend driving the world.
func (w *World) Backend() Backend {
	return w.backend
}

// Step advances the simulation by dt and dispatches contact events.
// It fails with ErrWorldBusy when called from a query or contact callback.
func (w *World) Step(dt float32) error {
	if w.destroyed {
		return ErrWorldDestroyed
	}
	if w.stepping || w.queryDepth > 0 {
		return ErrWorldBusy
	}

	w.stepping = true
	defer func() { w.stepping = false }()

	if err := w.backend.Step(dt, w.stepCount); err != nil {
		return fmt.Errorf("physics: step: %w", err)
	}
	w.collectContacts()
	w.dispatchContacts()
	return nil
}

// StepCount returns the number of sub-steps per Step.
func (w *World) StepCount() int { return w.stepCount }

// SetStepCount sets the number of sub-steps per Step. Values below 1 are raised to 1.
func (w *World) SetStepCount(n int) {
	if n < 1 {
		n = 1
	}
	w.stepCount = n
}

func (w *World) Gravity() rl.Vector3 {
	if w.destroyed {
		return rl.Vector3{}
	}
	return w.backend.Gravity()
}

// SetGravity fails with ErrWorldDestroyed once the backend is closed.
func (w *World) SetGravity(g rl.Vector3) error {
	if w.destroyed {
		return ErrWorldDestroyed
	}
	w.backend.SetGravity(g)
	return nil
}

// LinearDamping is the default linear damping given to new colliders.
func (w *World) LinearDamping() float32 { return w.linearDamping }

func (w *World) SetLinearDamping(d float32) { w.linearDamping = d }

// AngularDamping is the default angular damping given to new colliders.
func (w *World) AngularDamping() float32 { return w.angularDamping }

func (w *World) SetAngularDamping(d float32) { w.angularDamping = d }

// SleepingAllowed is the default sleep setting of new colliders.
func (w *World) SleepingAllowed() bool { return w.allowSleep }

func (w *World) SetSleepingAllowed(allowed bool) { w.allowSleep = allowed }

// ColliderCount returns the number of live colliders.
func (w *World) ColliderCount() int { return w.colliderCount }

// JointCount returns the number of live joints.
func (w *World) JointCount() int { return w.jointCount }

// Colliders iterates the live colliders. The order is unspecified. The
// current collider may be destroyed during iteration; other mutations are not allowed.
func (w *World) Colliders() iter.Seq[*Collider] {
	return func(yield func(*Collider) bool) {
		for c := w.colliders; c != nil; {
			next := c.next
			if !yield(c) {
				return
			}
			c = next
		}
	}
}

// Joints iterates the live joints in unspecified order.
func (w *World) Joints() iter.Seq[Joint] {
	return func(yield func(Joint) bool) {
		for j := w.joints; j != nil; {
			next := j.nodes[roleWorld].next
			if !yield(j.self) {
				return
			}
			j = next
		}
	}
}

// Tags returns the tag names declared at creation.
func (w *World) Tags() []string {
	return append([]string(nil), w.tags...)
}

// findTag resolves a tag name to its index, or Untagged.
func (w *World) findTag(name string) uint32 {
	for i, tag := range w.tags {
		if tag == name {
			return uint32(i)
		}
	}
	return Untagged
}

func (w *World) tagName(tag uint32) string {
	if tag == Untagged || int(tag) >= len(w.tags) {
		return ""
	}
	return w.tags[tag]
}

// EnableCollisionBetween lets colliders tagged a and b collide again.
// Unknown tags are treated as untagged and ignored.
func (w *World) EnableCollisionBetween(a, b string) {
	w.layers.setTagPair(w.findTag(a), w.findTag(b), true)
}

// DisableCollisionBetween stops colliders tagged a and b from colliding.
// Unknown tags are treated as untagged and ignored.
func (w *World) DisableCollisionBetween(a, b string) {
	w.layers.setTagPair(w.findTag(a), w.findTag(b), false)
}

// IsCollisionEnabledBetween reports the policy between two tags. It is
// always true when either tag is unknown.
func (w *World) IsCollisionEnabledBetween(a, b string) bool {
	return w.layers.tagPairEnabled(w.findTag(a), w.findTag(b))
}

// LayerFilter exposes the collision policy as the backend sees it.
func (w *World) LayerFilter() LayerFilter {
	return w.layers
}

// TagMask parses a query filter: space separated tag names to include,
// "~name" to exclude. Only exclusions means "everything except". An empty
// filter matches all colliders.
func (w *World) TagMask(filter string) (TagMask, error) {
	fields := strings.Fields(filter)
	if len(fields) == 0 {
		return AllTags, nil
	}
	var include, exclude TagMask
	for _, f := range fields {
		negate := strings.HasPrefix(f, "~")
		name := strings.TrimPrefix(f, "~")
		tag := w.findTag(name)
		if tag == Untagged {
			return 0, fmt.Errorf("%w: %q", ErrUnknownTag, name)
		}
		if negate {
			exclude |= TagMask(1) << tag
		} else {
			include |= TagMask(1) << tag
		}
	}
	if include == 0 {
		include = AllTags
	}
	return (include &^ exclude) | untaggedBit, nil
}

// capability converts a backend ErrUnsupported into a one-time warning.
// Other errors are returned unchanged.
func (w *World) capability(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnsupported) {
		if !w.warned[op] {
			w.warned[op] = true
			log.Printf("Physics: %s backend does not support %s", w.backend.Name(), op)
		}
		return nil
	}
	return err
}

// warn logs a capability gap detected by the core itself.
func (w *World) warn(op string) {
	_ = w.capability(op, ErrUnsupported)
}

func (w *World) colliderOf(b Body) *Collider {
	if b == nil {
		return nil
	}
	c, _ := b.UserData().(*Collider)
	if c == nil || c.destroyed {
		return nil
	}
	return c
}
