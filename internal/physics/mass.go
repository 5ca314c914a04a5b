package physics

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// DefaultDensity is the density used for colliders' automatic mass.
const DefaultDensity = 1000

// MassData is the mass, center of mass and principal inertia of a body or shape.
// Inertia is the diagonal of the inertia tensor about the center of mass, in
// the frame rotated by InertiaRotation.
type MassData struct {
	Mass            float32
	CenterOfMass    rl.Vector3
	Inertia         rl.Vector3
	InertiaRotation rl.Quaternion
}

func massData(mass float32, inertia rl.Vector3) MassData {
	return MassData{Mass: mass, Inertia: inertia, InertiaRotation: rl.QuaternionIdentity()}
}

func (s *SphereShape) MassData(density float32) MassData {
	r := s.radius
	m := density * 4.0 / 3.0 * math.Pi * r * r * r
	i := 0.4 * m * r * r
	return massData(m, rl.Vector3{X: i, Y: i, Z: i})
}

func (b *BoxShape) MassData(density float32) MassData {
	h := b.halfExtents
	m := density * 8 * h.X * h.Y * h.Z
	return massData(m, rl.Vector3{
		X: m * (h.Y*h.Y + h.Z*h.Z) / 3,
		Y: m * (h.X*h.X + h.Z*h.Z) / 3,
		Z: m * (h.X*h.X + h.Y*h.Y) / 3,
	})
}

func (c *CylinderShape) MassData(density float32) MassData {
	r, l := c.radius, c.length
	m := density * math.Pi * r * r * l
	side := m * (3*r*r + l*l) / 12
	return massData(m, rl.Vector3{X: side, Y: 0.5 * m * r * r, Z: side})
}

func (c *CapsuleShape) MassData(density float32) MassData {
	r, l := c.radius, c.length
	cyl := density * math.Pi * r * r * l
	caps := density * 4.0 / 3.0 * math.Pi * r * r * r
	m := cyl + caps

	axial := 0.5*cyl*r*r + 0.4*caps*r*r
	// Hemispheres sit at the ends of the cylinder; shift their inertia out with the parallel axis theorem
	side := cyl*(3*r*r+l*l)/12 + caps*(0.4*r*r+l*l/4+3*l*r/8)
	return massData(m, rl.Vector3{X: side, Y: axial, Z: side})
}

// MassData approximates the hull by its point cloud's bounding box.
func (c *ConvexShape) MassData(density float32) MassData {
	size := rl.Vector3Subtract(c.bounds.Max, c.bounds.Min)
	h := rl.Vector3Scale(size, 0.5)
	m := density * size.X * size.Y * size.Z
	md := massData(m, rl.Vector3{
		X: m * (h.Y*h.Y + h.Z*h.Z) / 3,
		Y: m * (h.X*h.X + h.Z*h.Z) / 3,
		Z: m * (h.X*h.X + h.Y*h.Y) / 3,
	})
	md.CenterOfMass = rl.Vector3Scale(rl.Vector3Add(c.bounds.Min, c.bounds.Max), 0.5)
	return md
}

// MassData of static geometry is zero; mesh and terrain colliders are kinematic.
func (m *MeshShape) MassData(float32) MassData { return massData(0, rl.Vector3{}) }

func (t *TerrainShape) MassData(float32) MassData { return massData(0, rl.Vector3{}) }

// MassData sums the children, moving each child's inertia to the compound's
// center of mass.
func (c *compound) MassData(density float32) MassData {
	var total MassData
	total.InertiaRotation = rl.QuaternionIdentity()
	var weighted rl.Vector3
	parts := make([]MassData, len(c.children))
	for i, child := range c.children {
		md := child.Shape.MassData(density)
		md.CenterOfMass = child.Offset.Apply(md.CenterOfMass)
		parts[i] = md
		total.Mass += md.Mass
		weighted = rl.Vector3Add(weighted, rl.Vector3Scale(md.CenterOfMass, md.Mass))
	}
	if total.Mass <= 0 {
		return total
	}
	total.CenterOfMass = rl.Vector3Scale(weighted, 1/total.Mass)
	for _, md := range parts {
		d := rl.Vector3Subtract(md.CenterOfMass, total.CenterOfMass)
		total.Inertia.X += md.Inertia.X + md.Mass*(d.Y*d.Y+d.Z*d.Z)
		total.Inertia.Y += md.Inertia.Y + md.Mass*(d.X*d.X+d.Z*d.Z)
		total.Inertia.Z += md.Inertia.Z + md.Mass*(d.X*d.X+d.Y*d.Y)
	}
	return total
}
