// Package native is the built-in 3D rigid-body backend: semi-implicit Euler
// integration, a spatial-hash broad phase (optionally on the GPU), a narrow
// phase over sphere, capsule, box and triangle primitives, and a sequential
// impulse solver for contacts and joints.
package native

import (
	"fmt"
	"log"
	"time"

	"physworld/internal/compute"
	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Spatial grid cell size - bodies sharing a cell are paired for the narrow phase
const CellSize = 5.0

// maxCellsPerBody sends bodies that cover more cells to the large list,
// which is paired against everything.
const maxCellsPerBody = 64

// GPUBroadPhaseThreshold is the minimum body count before GPU broad-phase kicks in.
// Below this, CPU spatial hashing is faster due to GPU overhead.
const GPUBroadPhaseThreshold = 750

// MaxPhysicsObjects is the maximum bodies the GPU broad-phase can handle.
const MaxPhysicsObjects = 50000

// Contact solver tuning
const (
	contactBeta       = 0.2
	contactSlop       = 0.01
	bounceThreshold   = 1.0 // closing speed below which restitution is ignored
	defaultIterations = 8
	defaultMaxBodies  = 16384
)

// Options tunes a Backend.
type Options struct {
	// UseGPU enables the compute-shader broad phase when a GPU is available.
	UseGPU bool
	// Iterations is the number of velocity iterations per sub-step.
	Iterations int
}

// Cell key for spatial hashing
type cellKey struct {
	X, Y, Z int
}

func posToCell(pos rl.Vector3) cellKey {
	return cellKey{
		X: floorDiv(pos.X),
		Y: floorDiv(pos.Y),
		Z: floorDiv(pos.Z),
	}
}

func floorDiv(v float32) int {
	c := int(v / CellSize)
	if v < 0 && float32(c)*CellSize != v {
		c--
	}
	return c
}

// bodyPair holds two indices into Backend.bodies, smaller first.
type bodyPair struct {
	a, b int
}

func makePair(a, b int) bodyPair {
	if a > b {
		return bodyPair{a: b, b: a}
	}
	return bodyPair{a: a, b: b}
}

// Backend implements physics.Backend.
type Backend struct {
	opts    Options
	cfg     physics.BackendConfig
	gravity rl.Vector3

	bodies      []*body
	constraints []*constraint
	prims       [][]primitive // per body, rebuilt every sub-step

	grid  map[cellKey][]int
	large []int

	manifolds []manifold
	contacts  []physics.ContactPoint

	// GPU broad-phase (nil if compute unavailable or not requested)
	gpuBroadPhase   *compute.BroadPhase
	useGPU          bool      // switches on when body count exceeds threshold
	lastLoggedCount int       // prevents duplicate logs at same body count
	lastLogTime     time.Time // rate-limit collision pair logs
}

// New creates an uninitialized backend. Pass it to physics.NewWorld.
func New(opts Options) *Backend {
	if opts.Iterations <= 0 {
		opts.Iterations = defaultIterations
	}
	return &Backend{
		opts: opts,
		grid: make(map[cellKey][]int),
	}
}

func (p *Backend) Name() string {
	if p.opts.UseGPU {
		return "native+gpu"
	}
	return "native"
}

// Init stores the world settings and, when requested, sets up the GPU broad phase.
func (p *Backend) Init(cfg physics.BackendConfig) error {
	if cfg.MaxBodies <= 0 {
		cfg.MaxBodies = defaultMaxBodies
	}
	p.cfg = cfg
	p.gravity = cfg.Gravity
	p.bodies = make([]*body, 0, min(cfg.MaxBodies, 1024))
	if p.opts.UseGPU {
		p.initGPU()
	}
	return nil
}

// initGPU initializes GPU broad-phase. Bodies fall back to the CPU grid
// when no adapter is found.
func (p *Backend) initGPU() {
	if p.gpuBroadPhase != nil {
		return // Already initialized
	}
	if _, err := compute.Initialize(); err != nil {
		log.Printf("Physics: GPU unavailable, using CPU broad-phase: %v", err)
		return
	}
	maxObjects := uint32(min(p.cfg.MaxBodies, MaxPhysicsObjects))
	maxPairs := uint32(p.cfg.MaxBodyPairs)
	if maxPairs == 0 {
		maxPairs = maxObjects * 20
	}
	bp, err := compute.NewBroadPhase(maxObjects, maxPairs)
	if err != nil {
		log.Printf("Physics: GPU broad-phase failed: %v", err)
		return
	}
	if bp == nil {
		return
	}
	if err := bp.SetLayerFilter(physics.NumLayers, p.shouldCollideLayers); err != nil {
		log.Printf("Physics: GPU layer table upload failed: %v", err)
		bp.Release()
		return
	}
	p.gpuBroadPhase = bp
	log.Printf("Physics: GPU broad-phase ready (threshold: %d bodies)", GPUBroadPhaseThreshold)
}

func (p *Backend) shouldCollideLayers(a, b uint32) bool {
	if p.cfg.Filter == nil {
		return true
	}
	return p.cfg.Filter.ShouldCollide(a, b)
}

// Close frees GPU resources
func (p *Backend) Close() error {
	if p.gpuBroadPhase != nil {
		p.gpuBroadPhase.Release()
		p.gpuBroadPhase = nil
	}
	p.bodies = nil
	p.constraints = nil
	p.manifolds = nil
	p.contacts = nil
	return nil
}

// UsingGPU returns true if GPU broad-phase is currently active
func (p *Backend) UsingGPU() bool {
	return p.useGPU
}

func (p *Backend) CreateBody(def physics.BodyDef) (physics.Body, error) {
	if def.Shape == nil {
		return nil, fmt.Errorf("native: body needs a shape")
	}
	if len(p.bodies) >= p.cfg.MaxBodies {
		return nil, fmt.Errorf("%w: backend holds %d bodies", physics.ErrTooManyColliders, len(p.bodies))
	}
	b := newBody(p, def)
	b.index = len(p.bodies)
	p.bodies = append(p.bodies, b)
	return b, nil
}

func (p *Backend) DestroyBody(pb physics.Body) {
	b, ok := pb.(*body)
	if !ok || b.backend != p || b.index < 0 {
		return
	}
	for i := len(p.constraints) - 1; i >= 0; i-- {
		if c := p.constraints[i]; c.a == b || c.b == b {
			p.removeConstraint(c)
		}
	}
	last := len(p.bodies) - 1
	p.bodies[b.index] = p.bodies[last]
	p.bodies[b.index].index = b.index
	p.bodies[last] = nil
	p.bodies = p.bodies[:last]
	b.index = -1
	p.contacts = nil
	p.manifolds = nil
}

func (p *Backend) BodyCount() int { return len(p.bodies) }

func (p *Backend) Gravity() rl.Vector3 { return p.gravity }

func (p *Backend) SetGravity(g rl.Vector3) {
	p.gravity = g
	for _, b := range p.bodies {
		b.wake()
	}
}

func (p *Backend) CreateConstraint(def physics.ConstraintDef) (physics.Constraint, error) {
	c, err := newConstraint(p, def)
	if err != nil {
		return nil, err
	}
	c.index = len(p.constraints)
	p.constraints = append(p.constraints, c)
	c.a.wake()
	c.b.wake()
	return c, nil
}

func (p *Backend) DestroyConstraint(pc physics.Constraint) {
	c, ok := pc.(*constraint)
	if !ok || c.backend != p || c.index < 0 {
		return
	}
	p.removeConstraint(c)
	c.a.wake()
	c.b.wake()
}

func (p *Backend) removeConstraint(c *constraint) {
	last := len(p.constraints) - 1
	p.constraints[c.index] = p.constraints[last]
	p.constraints[c.index].index = c.index
	p.constraints[last] = nil
	p.constraints = p.constraints[:last]
	c.index = -1
}

// Contacts lists the touching pairs of the last sub-step.
func (p *Backend) Contacts() []physics.ContactPoint { return p.contacts }

// Step advances the simulation by dt in steps sub-steps.
func (p *Backend) Step(dt float32, steps int) error {
	if dt <= 0 {
		return nil
	}
	if steps < 1 {
		steps = 1
	}
	for _, b := range p.bodies {
		// A mutable compound was edited since the body last saw it
		if physics.ShapeRevision(b.shape) != b.revision {
			b.SetShape(b.shape, b.offset, true)
		}
	}
	h := dt / float32(steps)
	for i := 0; i < steps; i++ {
		p.substep(h)
	}
	p.buildContacts()
	for _, b := range p.bodies {
		b.force = rl.Vector3{}
		b.torque = rl.Vector3{}
	}
	return nil
}

func (p *Backend) substep(h float32) {
	// 1. Apply forces and gravity, integrate velocity
	for _, b := range p.bodies {
		if !b.enabled || !b.awake || !b.dynamic() {
			continue
		}
		accel := rl.Vector3Scale(p.gravity, b.gravityScale)
		accel = rl.Vector3Add(accel, rl.Vector3Scale(b.force, b.invMass))
		b.linVel = rl.Vector3Add(b.linVel, rl.Vector3Scale(accel, h))
		b.angVel = rl.Vector3Add(b.angVel, rl.Vector3Scale(b.applyInvInertia(b.torque), h))

		// Damping is time-based so it's framerate independent
		b.linVel = rl.Vector3Scale(b.linVel, dampingFactor(b.linDamp, h))
		b.angVel = rl.Vector3Scale(b.angVel, dampingFactor(b.angDamp, h))
	}

	// 2. Broad and narrow phase
	p.refreshPrimitives()
	p.manifolds = p.manifolds[:0]
	p.broadPhase(func(i, j int) {
		p.narrowPhase(p.bodies[i], p.bodies[j], i, j)
	})

	// 3. Velocity iterations over joints and contacts
	rows := make([]jointRows, len(p.constraints))
	for i, c := range p.constraints {
		if c.enabled && (c.a.dynamic() || c.b.dynamic()) && c.a.enabled && c.b.enabled {
			rows[i] = c.prepare(h)
		}
	}
	solve := p.prepareContacts(h)
	for it := 0; it < p.opts.Iterations; it++ {
		for i, c := range p.constraints {
			c.solve(&rows[i])
		}
		for _, m := range solve {
			solveContact(m)
		}
	}
	for i, c := range p.constraints {
		c.finish(&rows[i], h)
	}

	// 4. Integrate position and put slow bodies to sleep
	for _, b := range p.bodies {
		if !b.enabled || (!b.awake && !b.kinematic) {
			continue
		}
		integrate(b, h)
		b.trySleep(h)
	}
}

func dampingFactor(damping, h float32) float32 {
	f := 1 - damping*h
	if f < 0 {
		return 0
	}
	return f
}

// integrate moves a body by its velocity over h.
func integrate(b *body, h float32) {
	if rl.Vector3Length(b.linVel) == 0 && rl.Vector3Length(b.angVel) == 0 {
		return
	}
	com := b.centerOfMass()
	newCom := rl.Vector3Add(com, rl.Vector3Scale(b.linVel, h))

	w := b.angVel
	q := b.pose.Orientation
	spin := rl.QuaternionMultiply(rl.Quaternion{X: w.X, Y: w.Y, Z: w.Z}, q)
	q = rl.Quaternion{
		X: q.X + 0.5*h*spin.X,
		Y: q.Y + 0.5*h*spin.Y,
		Z: q.Z + 0.5*h*spin.Z,
		W: q.W + 0.5*h*spin.W,
	}
	q = rl.QuaternionNormalize(q)
	b.pose.Orientation = q
	// Rotate about the center of mass
	b.pose.Position = rl.Vector3Subtract(newCom, rl.Vector3RotateByQuaternion(b.mass.CenterOfMass, q))
}

func (p *Backend) refreshPrimitives() {
	if cap(p.prims) < len(p.bodies) {
		p.prims = make([][]primitive, len(p.bodies))
	}
	p.prims = p.prims[:len(p.bodies)]
	for i, b := range p.bodies {
		b.refreshBounds()
		p.prims[i] = appendPrimitives(p.prims[i][:0], b.shape, b.shapePose(), physics.NoChild)
	}
}

// pairable applies the collision policy to two bodies.
func (p *Backend) pairable(a, b *body) bool {
	if !a.enabled || !b.enabled {
		return false
	}
	if !a.dynamic() && !b.dynamic() {
		return false
	}
	return p.shouldCollideLayers(a.layer, b.layer)
}

// broadPhase visits every candidate pair once.
func (p *Backend) broadPhase(fn func(i, j int)) {
	// Use GPU when body count is high enough to benefit
	wasUsingGPU := p.useGPU
	p.useGPU = p.gpuBroadPhase != nil && len(p.bodies) >= GPUBroadPhaseThreshold

	// Log when GPU kicks in or out, and periodically show body count
	if p.useGPU && !wasUsingGPU {
		log.Printf("Physics: GPU broad-phase ON (%d bodies)", len(p.bodies))
	} else if !p.useGPU && wasUsingGPU {
		log.Printf("Physics: GPU broad-phase OFF (%d bodies)", len(p.bodies))
	} else if len(p.bodies)%1000 == 0 && len(p.bodies) > 0 && len(p.bodies) != p.lastLoggedCount {
		p.lastLoggedCount = len(p.bodies)
		mode := "CPU"
		if p.useGPU {
			mode = "GPU"
		}
		log.Printf("Physics: %d bodies (%s)", len(p.bodies), mode)
	}

	if p.useGPU {
		if p.gpuPairs(fn) {
			return
		}
	}
	p.gridPairs(fn)
}

// gpuPairs runs the compute-shader broad phase. It reports false when the
// GPU failed and the CPU grid should be used instead.
func (p *Backend) gpuPairs(fn func(i, j int)) bool {
	proxies := make([]compute.Proxy, len(p.bodies))
	for i, b := range p.bodies {
		center := rl.Vector3Scale(rl.Vector3Add(b.bounds.Min, b.bounds.Max), 0.5)
		radius := rl.Vector3Length(rl.Vector3Subtract(b.bounds.Max, b.bounds.Min)) * 0.5
		layer := b.layer
		if !b.enabled {
			layer = compute.NoLayer
		}
		proxies[i] = compute.Proxy{X: center.X, Y: center.Y, Z: center.Z, Radius: radius + contactMargin, Layer: layer}
	}
	// The tag policy may have changed since the last step
	if err := p.gpuBroadPhase.SetLayerFilter(physics.NumLayers, p.shouldCollideLayers); err != nil {
		log.Printf("Physics: GPU layer table upload failed: %v", err)
		return false
	}
	pairs, err := p.gpuBroadPhase.DetectPairs(proxies)
	if err != nil {
		log.Printf("Physics: GPU broad-phase error: %v", err)
		return false
	}
	// Log collision pairs once per second
	if len(pairs) > 0 && time.Since(p.lastLogTime) >= time.Second {
		p.lastLogTime = time.Now()
		log.Printf("Physics: GPU detected %d candidate pairs (%d bodies)", len(pairs), len(p.bodies))
	}
	for _, pair := range pairs {
		i, j := int(pair.A), int(pair.B)
		if i >= len(p.bodies) || j >= len(p.bodies) {
			continue
		}
		if p.pairable(p.bodies[i], p.bodies[j]) && overlaps(expand(p.bodies[i].bounds, contactMargin), p.bodies[j].bounds) {
			fn(i, j)
		}
	}
	return true
}

// gridPairs is the CPU broad phase: spatial hashing of body bounds.
func (p *Backend) gridPairs(fn func(i, j int)) {
	// Clear grid
	for k := range p.grid {
		delete(p.grid, k)
	}
	p.large = p.large[:0]

	for i, b := range p.bodies {
		if !b.enabled {
			continue
		}
		lo, hi := posToCell(b.bounds.Min), posToCell(b.bounds.Max)
		cells := (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * (hi.Z - lo.Z + 1)
		if cells > maxCellsPerBody {
			p.large = append(p.large, i)
			continue
		}
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					key := cellKey{x, y, z}
					p.grid[key] = append(p.grid[key], i)
				}
			}
		}
	}

	// Track checked pairs to avoid duplicate checks
	checked := make(map[bodyPair]bool)
	try := func(i, j int) {
		if i == j {
			return
		}
		key := makePair(i, j)
		if checked[key] {
			return
		}
		checked[key] = true
		a, b := p.bodies[key.a], p.bodies[key.b]
		if !p.pairable(a, b) || !overlaps(expand(a.bounds, contactMargin), b.bounds) {
			return
		}
		fn(key.a, key.b)
	}
	for _, members := range p.grid {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				try(members[x], members[y])
			}
		}
	}
	for _, i := range p.large {
		for j, b := range p.bodies {
			if b.enabled {
				try(i, j)
			}
		}
	}
}

// narrowPhase collides the primitives of two bodies and wakes sleeping
// bodies hit by moving ones.
func (p *Backend) narrowPhase(a, b *body, i, j int) {
	before := len(p.manifolds)
	for x := range p.prims[i] {
		for y := range p.prims[j] {
			p.manifolds = collide(a, b, &p.prims[i][x], &p.prims[j][y], p.manifolds)
		}
	}
	if len(p.manifolds) == before || a.sensor || b.sensor {
		return
	}
	// Wake sleeping rigidbodies only if the other side is moving
	if a.moving() && !b.awake && b.dynamic() {
		b.wake()
	} else if b.moving() && !a.awake && a.dynamic() {
		a.wake()
	}
}

// prepareContacts computes solver masses and biases and returns the manifolds
// that need a response.
func (p *Backend) prepareContacts(h float32) []*manifold {
	var out []*manifold
	for k := range p.manifolds {
		m := &p.manifolds[k]
		if m.a.sensor || m.b.sensor {
			continue
		}
		if !(m.a.awake && m.a.dynamic()) && !(m.b.awake && m.b.dynamic()) {
			continue
		}
		m.friction = sqrtf(m.a.friction * m.b.friction)
		m.bounce = max(m.a.restitution, m.b.restitution)
		m.tangents[0] = perpendicular(m.normal)
		m.tangents[1] = rl.Vector3CrossProduct(m.normal, m.tangents[0])
		for pi := range m.points {
			pt := &m.points[pi]
			pt.normalMass = inverse(pairMass(m.a, m.b, pt.position, m.normal))
			for t := range m.tangents {
				pt.tangentMass[t] = inverse(pairMass(m.a, m.b, pt.position, m.tangents[t]))
			}
			if pt.depth > 0 {
				pt.velocityBias = contactBeta / h * max(pt.depth-contactSlop, 0)
			} else {
				// Speculative: allow closing the gap this sub-step
				pt.velocityBias = pt.depth / h
			}
			vn := rl.Vector3DotProduct(m.normal, relativeVelocity(m.a, m.b, pt.position))
			if vn < -bounceThreshold && m.bounce > 0 {
				pt.restitutionBias = -m.bounce * vn
			}
		}
		out = append(out, m)
	}
	return out
}

// pairMass is the inverse effective mass of the pair along n at point.
func pairMass(a, b *body, point, n rl.Vector3) float32 {
	ra := rl.Vector3Subtract(point, a.centerOfMass())
	rb := rl.Vector3Subtract(point, b.centerOfMass())
	k := a.effectiveInvMass() + b.effectiveInvMass()
	k += rl.Vector3DotProduct(n, rl.Vector3CrossProduct(a.applyInvInertia(rl.Vector3CrossProduct(ra, n)), ra))
	k += rl.Vector3DotProduct(n, rl.Vector3CrossProduct(b.applyInvInertia(rl.Vector3CrossProduct(rb, n)), rb))
	return k
}

func relativeVelocity(a, b *body, point rl.Vector3) rl.Vector3 {
	return rl.Vector3Subtract(b.velocityAt(point), a.velocityAt(point))
}

// solveContact runs one impulse iteration over a manifold.
func solveContact(m *manifold) {
	for i := range m.points {
		pt := &m.points[i]

		// Friction first, clamped by the current normal impulse
		limit := m.friction * pt.normalImpulse
		for t, tangent := range m.tangents {
			vt := rl.Vector3DotProduct(tangent, relativeVelocity(m.a, m.b, pt.position))
			lambda := -vt * pt.tangentMass[t]
			old := pt.tangentImpulse[t]
			pt.tangentImpulse[t] = clampf(old+lambda, -limit, limit)
			lambda = pt.tangentImpulse[t] - old
			applyPair(m.a, m.b, rl.Vector3Scale(tangent, lambda), pt.position)
		}

		vn := rl.Vector3DotProduct(m.normal, relativeVelocity(m.a, m.b, pt.position))
		bias := max(pt.velocityBias, pt.restitutionBias)
		lambda := -(vn - bias) * pt.normalMass
		old := pt.normalImpulse
		pt.normalImpulse = max(old+lambda, 0)
		lambda = pt.normalImpulse - old
		applyPair(m.a, m.b, rl.Vector3Scale(m.normal, lambda), pt.position)
	}
}

// applyPair pushes b along impulse and a the opposite way.
func applyPair(a, b *body, impulse, point rl.Vector3) {
	a.applyImpulseAt(rl.Vector3Negate(impulse), point)
	b.applyImpulseAt(impulse, point)
}

// buildContacts merges the manifolds of the last sub-step into one contact
// per body pair.
func (p *Backend) buildContacts() {
	p.contacts = p.contacts[:0]
	index := make(map[[2]*body]int)
	for _, m := range p.manifolds {
		if m.depth() <= 0 {
			continue
		}
		a, b, n := m.a, m.b, m.normal
		if a.index > b.index {
			a, b, n = b, a, rl.Vector3Negate(n)
		}
		key := [2]*body{a, b}
		k, ok := index[key]
		if !ok {
			index[key] = len(p.contacts)
			p.contacts = append(p.contacts, physics.ContactPoint{A: a, B: b, Normal: n})
			k = len(p.contacts) - 1
		}
		c := &p.contacts[k]
		for _, pt := range m.points {
			c.Points = append(c.Points, pt.position)
		}
		if d := m.depth(); d > c.Depth {
			c.Depth = d
			c.Normal = n
		}
	}
}

// CastRay returns the nearest hit on every enabled body crossed by the segment.
func (p *Backend) CastRay(origin, direction rl.Vector3) []physics.RayHit {
	var hits []physics.RayHit
	ray := segmentBounds(origin, rl.Vector3Add(origin, direction))
	for _, b := range p.bodies {
		if !b.enabled || !overlaps(ray, b.bounds) {
			continue
		}
		best := physics.RayHit{Fraction: 2}
		for _, prim := range primitives(b.shape, b.shapePose()) {
			if hit, ok := castPrimitive(&prim, origin, direction); ok && hit.t < best.Fraction {
				best = physics.RayHit{Body: b, Fraction: hit.t, Normal: hit.normal, Child: prim.child}
			}
		}
		if best.Body != nil {
			hits = append(hits, best)
		}
	}
	return hits
}

// Overlap returns every enabled body touching shape placed at pose.
func (p *Backend) Overlap(shape physics.Shape, pose physics.Transform) []physics.OverlapHit {
	query := primitives(shape, pose)
	if len(query) == 0 {
		return nil
	}
	bounds := shape.TransformedAABB(pose)
	var hits []physics.OverlapHit
	for _, b := range p.bodies {
		if !b.enabled || !overlaps(bounds, b.bounds) {
			continue
		}
		if child, ok := overlapBody(b, query); ok {
			hits = append(hits, physics.OverlapHit{Body: b, Child: child})
		}
	}
	return hits
}

func overlapBody(b *body, query []primitive) (uint32, bool) {
	for _, prim := range primitives(b.shape, b.shapePose()) {
		for q := range query {
			if primitivesOverlap(&prim, &query[q]) {
				return prim.child, true
			}
		}
	}
	return 0, false
}

var _ physics.Backend = (*Backend)(nil)
