// Package planar is a Backend for worlds that live in the XY plane. It runs
// on Chipmunk2D (github.com/jakecoffman/cp): Z components are ignored,
// rotation is about Z and shapes are flattened to circles, segments and
// polygons.
package planar

import (
	"fmt"
	"log"
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/jakecoffman/cp"
)

// collisionType tags every shape so a single handler sees all pairs.
const collisionType cp.CollisionType = 1

const (
	defaultIterations  = 10
	defaultMaxBodies   = 16384
	sleepTimeThreshold = 0.5
)

// Options tunes a Backend.
type Options struct {
	// Iterations is the number of solver iterations per step.
	Iterations int
}

// Backend implements physics.Backend on a cp.Space.
type Backend struct {
	opts    Options
	cfg     physics.BackendConfig
	gravity rl.Vector3
	space   *cp.Space

	bodies      map[*body]struct{}
	constraints map[*constraint]struct{}

	contacts []physics.ContactPoint
	seen     map[[2]*body]pairSlot
	substep  int
	lastDt   float64
}

// pairSlot is where a pair's contact lives in contacts and the sub-step
// that last wrote it.
type pairSlot struct {
	index   int
	substep int
}

// New creates an uninitialized backend. Pass it to physics.NewWorld.
func New(opts Options) *Backend {
	if opts.Iterations <= 0 {
		opts.Iterations = defaultIterations
	}
	return &Backend{opts: opts}
}

func (p *Backend) Name() string { return "planar" }

// Init builds the space and installs the collision handler that applies the layer table.
func (p *Backend) Init(cfg physics.BackendConfig) error {
	if cfg.MaxBodies <= 0 {
		cfg.MaxBodies = defaultMaxBodies
	}
	p.cfg = cfg
	p.bodies = make(map[*body]struct{})
	p.constraints = make(map[*constraint]struct{})
	p.seen = make(map[[2]*body]pairSlot)

	p.space = cp.NewSpace()
	p.space.Iterations = uint(p.opts.Iterations)
	p.space.SetSleepTimeThreshold(sleepTimeThreshold)
	p.SetGravity(cfg.Gravity)

	handler := p.space.NewCollisionHandler(collisionType, collisionType)
	handler.UserData = p
	handler.PreSolveFunc = preSolve
	return nil
}

func (p *Backend) shouldCollideLayers(a, b uint32) bool {
	if p.cfg.Filter == nil {
		return true
	}
	return p.cfg.Filter.ShouldCollide(a, b)
}

// preSolve drops pairs the layer table rejects and records the rest as contacts.
func preSolve(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
	p := userData.(*Backend)
	sa, sb := arb.Shapes()
	a, okA := sa.Body().UserData.(*body)
	b, okB := sb.Body().UserData.(*body)
	if !okA || !okB || a == b {
		return false
	}
	if !a.enabled || !b.enabled || !p.shouldCollideLayers(a.layer, b.layer) {
		return false
	}
	p.record(a, b, arb)
	return true
}

func (p *Backend) record(a, b *body, arb *cp.Arbiter) {
	set := arb.ContactPointSet()
	normal := set.Normal
	key := [2]*body{a, b}
	if _, ok := p.seen[[2]*body{b, a}]; ok {
		key = [2]*body{b, a}
		a, b = b, a
		normal = normal.Neg()
	}
	slot, ok := p.seen[key]
	if !ok {
		slot.index = len(p.contacts)
		p.contacts = append(p.contacts, physics.ContactPoint{A: a, B: b})
	}
	c := &p.contacts[slot.index]
	// Only the latest sub-step's manifold is kept
	if !ok || slot.substep != p.substep {
		c.Points = c.Points[:0]
		c.Depth = 0
		c.Normal = rl.Vector3{X: float32(normal.X), Y: float32(normal.Y)}
	}
	slot.substep = p.substep
	p.seen[key] = slot
	z := (a.z + b.z) / 2
	for k := 0; k < set.Count; k++ {
		pt := set.Points[k]
		c.Points = append(c.Points, rl.Vector3{X: float32(pt.PointA.X), Y: float32(pt.PointA.Y), Z: z})
		if depth := float32(-pt.Distance); depth > c.Depth {
			c.Depth = depth
		}
	}
}

func (p *Backend) Close() error {
	p.space = nil
	p.bodies = nil
	p.constraints = nil
	p.contacts = nil
	return nil
}

func (p *Backend) CreateBody(def physics.BodyDef) (physics.Body, error) {
	if def.Shape == nil {
		return nil, fmt.Errorf("planar: body needs a shape")
	}
	if len(p.bodies) >= p.cfg.MaxBodies {
		return nil, fmt.Errorf("%w: backend holds %d bodies", physics.ErrTooManyColliders, len(p.bodies))
	}
	b := newBody(p, def)
	p.bodies[b] = struct{}{}
	return b, nil
}

func (p *Backend) DestroyBody(pb physics.Body) {
	b, ok := pb.(*body)
	if !ok || b.backend != p {
		return
	}
	if _, ok := p.bodies[b]; !ok {
		return
	}
	for c := range p.constraints {
		if c.a == b || c.b == b {
			p.removeConstraint(c)
		}
	}
	b.detach()
	delete(p.bodies, b)
	kept := p.contacts[:0]
	for _, c := range p.contacts {
		if c.A != b && c.B != b {
			kept = append(kept, c)
		}
	}
	p.contacts = kept
}

func (p *Backend) BodyCount() int { return len(p.bodies) }

func (p *Backend) Gravity() rl.Vector3 { return p.gravity }

func (p *Backend) SetGravity(g rl.Vector3) {
	p.gravity = g
	p.space.SetGravity(cp.Vector{X: float64(g.X), Y: float64(g.Y)})
	for b := range p.bodies {
		b.wake()
	}
}

func (p *Backend) CreateConstraint(def physics.ConstraintDef) (physics.Constraint, error) {
	c, err := newConstraint(p, def)
	if err != nil {
		return nil, err
	}
	p.constraints[c] = struct{}{}
	c.attach()
	c.a.wake()
	c.b.wake()
	return c, nil
}

func (p *Backend) DestroyConstraint(pc physics.Constraint) {
	c, ok := pc.(*constraint)
	if !ok || c.backend != p {
		return
	}
	if _, ok := p.constraints[c]; !ok {
		return
	}
	p.removeConstraint(c)
	c.a.wake()
	c.b.wake()
}

func (p *Backend) removeConstraint(c *constraint) {
	c.detach()
	delete(p.constraints, c)
}

func (p *Backend) Contacts() []physics.ContactPoint { return p.contacts }

// Step advances the space by dt in steps sub-steps.
func (p *Backend) Step(dt float32, steps int) error {
	if dt <= 0 {
		return nil
	}
	if steps < 1 {
		steps = 1
	}
	for b := range p.bodies {
		// A mutable compound was edited since its cp shapes were built
		if physics.ShapeRevision(b.shape) != b.revision {
			b.SetShape(b.shape, b.offset, true)
		}
	}
	p.carryRestingContacts()
	h := float64(dt) / float64(steps)
	p.lastDt = h
	for i := 0; i < steps; i++ {
		p.substep = i
		for b := range p.bodies {
			if !b.allowSleep && b.inSpace() {
				b.cpBody.Activate()
			}
		}
		p.space.Step(h)
	}
	for b := range p.bodies {
		b.clearForces()
	}
	return nil
}

// carryRestingContacts starts the step's contact list with the pairs whose
// bodies are all asleep or immovable. cp skips the pre-solve callback for
// sleeping arbiters, so those pairs would otherwise drop out and report an
// exit while still touching.
func (p *Backend) carryRestingContacts() {
	prev := p.contacts
	p.contacts = nil
	clear(p.seen)
	for _, c := range prev {
		a, b := c.A.(*body), c.B.(*body)
		if !a.resting() || !b.resting() || !a.enabled || !b.enabled {
			continue
		}
		if !p.shouldCollideLayers(a.layer, b.layer) {
			continue
		}
		p.seen[[2]*body{a, b}] = pairSlot{index: len(p.contacts), substep: -1}
		p.contacts = append(p.contacts, c)
	}
}

// CastRay runs a segment query and keeps the nearest hit per body.
func (p *Backend) CastRay(origin, direction rl.Vector3) []physics.RayHit {
	start := vec(origin)
	end := vec(rl.Vector3Add(origin, direction))
	nearest := make(map[*body]int)
	var hits []physics.RayHit
	p.space.SegmentQuery(start, end, 0, cp.SHAPE_FILTER_ALL, func(shape *cp.Shape, point, normal cp.Vector, alpha float64, data interface{}) {
		b, ok := shape.Body().UserData.(*body)
		if !ok || !b.enabled {
			return
		}
		hit := physics.RayHit{
			Body:     b,
			Fraction: float32(alpha),
			Normal:   rl.Vector3{X: float32(normal.X), Y: float32(normal.Y)},
			Child:    childOf(shape),
		}
		if i, ok := nearest[b]; ok {
			if hit.Fraction < hits[i].Fraction {
				hits[i] = hit
			}
			return
		}
		nearest[b] = len(hits)
		hits = append(hits, hit)
	}, nil)
	return hits
}

// Overlap flattens the query shape onto a detached body and runs a shape query.
func (p *Backend) Overlap(shape physics.Shape, pose physics.Transform) []physics.OverlapHit {
	query := cp.NewKinematicBody()
	query.SetPosition(vec(pose.Position))
	query.SetAngle(twist(pose.Orientation))
	local := physics.Transform{Orientation: rl.QuaternionIdentity()}
	pieces, err := flatten(query, shape, local, physics.NoChild)
	if err != nil {
		log.Printf("Physics: planar overlap skipped: %v", err)
		return nil
	}
	found := make(map[*body]bool)
	var hits []physics.OverlapHit
	for _, piece := range pieces {
		p.space.ShapeQuery(piece, func(s *cp.Shape, points *cp.ContactPointSet) {
			b, ok := s.Body().UserData.(*body)
			if !ok || !b.enabled || found[b] {
				return
			}
			found[b] = true
			hits = append(hits, physics.OverlapHit{Body: b, Child: childOf(s)})
		})
	}
	return hits
}

// vec drops the Z component.
func vec(v rl.Vector3) cp.Vector {
	return cp.Vector{X: float64(v.X), Y: float64(v.Y)}
}

// twist is the rotation of q about Z.
func twist(q rl.Quaternion) float64 {
	if q == (rl.Quaternion{}) {
		return 0
	}
	return 2 * math.Atan2(float64(q.Z), float64(q.W))
}

// aboutZ is the quaternion rotating by angle about Z.
func aboutZ(angle float64) rl.Quaternion {
	s, c := math.Sincos(angle / 2)
	return rl.Quaternion{Z: float32(s), W: float32(c)}
}
