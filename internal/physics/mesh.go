package physics

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Triangle is one face of a mesh or terrain with its precomputed normal.
type Triangle struct {
	V0, V1, V2 rl.Vector3
	Normal     rl.Vector3
}

func newTriangle(a, b, c rl.Vector3) Triangle {
	n := rl.Vector3CrossProduct(rl.Vector3Subtract(b, a), rl.Vector3Subtract(c, a))
	if l := rl.Vector3Length(n); l > 0 {
		n = rl.Vector3Scale(n, 1/l)
	}
	return Triangle{V0: a, V1: b, V2: c, Normal: n}
}

// bvhNode is a node in the bounding volume hierarchy over a triangle soup.
type bvhNode struct {
	bounds      rl.BoundingBox
	left, right *bvhNode
	triangles   []int // leaf only
}

// triangleSoup holds static triangles and a BVH for region queries.
type triangleSoup struct {
	triangles []Triangle
	root      *bvhNode
}

func (s *triangleSoup) build() {
	if len(s.triangles) == 0 {
		return
	}
	indices := make([]int, len(s.triangles))
	for i := range indices {
		indices[i] = i
	}
	s.root = s.buildNode(indices, 0)
}

func (s *triangleSoup) buildNode(indices []int, depth int) *bvhNode {
	node := &bvhNode{bounds: s.boundsOf(indices)}

	// Few triangles or max depth: make a leaf
	if len(indices) <= 4 || depth > 20 {
		node.triangles = indices
		return node
	}

	// Split on the longest axis
	size := rl.Vector3Subtract(node.bounds.Max, node.bounds.Min)
	axis := 0
	if size.Y > size.X {
		axis = 1
	}
	if size.Z > axisValue(size, axis) {
		axis = 2
	}

	mid := s.partition(indices, axis)
	if mid == 0 || mid == len(indices) {
		node.triangles = indices
		return node
	}

	node.left = s.buildNode(indices[:mid], depth+1)
	node.right = s.buildNode(indices[mid:], depth+1)
	return node
}

func (s *triangleSoup) boundsOf(indices []int) rl.BoundingBox {
	b := rl.BoundingBox{
		Min: rl.Vector3{X: math.MaxFloat32, Y: math.MaxFloat32, Z: math.MaxFloat32},
		Max: rl.Vector3{X: -math.MaxFloat32, Y: -math.MaxFloat32, Z: -math.MaxFloat32},
	}
	for _, idx := range indices {
		tri := &s.triangles[idx]
		b.Min = rl.Vector3Min(b.Min, rl.Vector3Min(tri.V0, rl.Vector3Min(tri.V1, tri.V2)))
		b.Max = rl.Vector3Max(b.Max, rl.Vector3Max(tri.V0, rl.Vector3Max(tri.V1, tri.V2)))
	}
	return b
}

// partition splits indices around the mean centroid on axis.
func (s *triangleSoup) partition(indices []int, axis int) int {
	center := float32(0)
	for _, idx := range indices {
		center += axisValue(centroid(&s.triangles[idx]), axis)
	}
	center /= float32(len(indices))

	left, right := 0, len(indices)-1
	for left <= right {
		if axisValue(centroid(&s.triangles[indices[left]]), axis) < center {
			left++
		} else {
			indices[left], indices[right] = indices[right], indices[left]
			right--
		}
	}
	return left
}

func centroid(t *Triangle) rl.Vector3 {
	return rl.Vector3Scale(rl.Vector3Add(rl.Vector3Add(t.V0, t.V1), t.V2), 1.0/3.0)
}

func axisValue(v rl.Vector3, axis int) float32 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Triangles returns every triangle.
func (s *triangleSoup) Triangles() []Triangle { return s.triangles }

// TrianglesIn calls fn with the index of each triangle whose node bounds
// overlap box. Returning true from fn stops the walk.
func (s *triangleSoup) TrianglesIn(box rl.BoundingBox, fn func(i int, tri *Triangle) bool) {
	s.walk(s.root, box, fn)
}

func (s *triangleSoup) walk(node *bvhNode, box rl.BoundingBox, fn func(int, *Triangle) bool) bool {
	if node == nil || !rl.CheckCollisionBoxes(node.bounds, box) {
		return false
	}
	if node.triangles != nil {
		for _, idx := range node.triangles {
			if fn(idx, &s.triangles[idx]) {
				return true
			}
		}
		return false
	}
	return s.walk(node.left, box, fn) || s.walk(node.right, box, fn)
}

func (s *triangleSoup) localBounds() rl.BoundingBox {
	if s.root == nil {
		return rl.BoundingBox{}
	}
	return s.root.bounds
}

// MeshShape is a static triangle soup. Colliders using it are kinematic.
type MeshShape struct {
	shapeBase
	triangleSoup
	vertices []rl.Vector3
	indices  []uint32
}

// NewMeshShape builds a mesh from vertices and triangle indices.
func NewMeshShape(vertices []rl.Vector3, indices []uint32) (*MeshShape, error) {
	if len(indices) == 0 || len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: index count %d is not a positive multiple of 3", ErrInvalidMesh, len(indices))
	}
	m := &MeshShape{
		vertices: append([]rl.Vector3(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	m.triangles = make([]Triangle, 0, len(indices)/3)
	for i := 0; i < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			return nil, fmt.Errorf("%w: index out of range at triangle %d", ErrInvalidMesh, i/3)
		}
		m.triangles = append(m.triangles, newTriangle(vertices[a], vertices[b], vertices[c]))
	}
	m.build()
	m.init(nil)
	return m, nil
}

func (m *MeshShape) Type() ShapeType { return ShapeMesh }

// Vertices returns the mesh vertex positions.
func (m *MeshShape) Vertices() []rl.Vector3 { return m.vertices }

// Indices returns the triangle index list.
func (m *MeshShape) Indices() []uint32 { return m.indices }

func (m *MeshShape) AABB() rl.BoundingBox { return m.localBounds() }

func (m *MeshShape) TransformedAABB(pose Transform) rl.BoundingBox {
	return boundsOf(m.vertices, pose)
}

// TerrainShape is an n×n heightfield centered on the origin in XZ.
type TerrainShape struct {
	shapeBase
	triangleSoup
	heights []float32
	n       int
	scaleXZ float32
	scaleY  float32
}

// NewTerrainShape builds a heightfield from n*n height samples (row major, Z rows).
// Sample (x, z) sits at (-scaleXZ/2 + x*scaleXZ/n, h*scaleY, -scaleXZ/2 + z*scaleXZ/n).
func NewTerrainShape(heights []float32, n int, scaleXZ, scaleY float32) (*TerrainShape, error) {
	if n < 2 || len(heights) != n*n {
		return nil, fmt.Errorf("%w: terrain needs %d×%d samples, got %d", ErrInvalidMesh, n, n, len(heights))
	}
	if !positive(scaleXZ, scaleY) {
		return nil, fmt.Errorf("%w: terrain scale %v/%v", ErrInvalidDimension, scaleXZ, scaleY)
	}
	t := &TerrainShape{
		heights: append([]float32(nil), heights...),
		n:       n,
		scaleXZ: scaleXZ,
		scaleY:  scaleY,
	}
	step := scaleXZ / float32(n)
	offset := -0.5 * scaleXZ
	vertex := func(x, z int) rl.Vector3 {
		return rl.Vector3{
			X: offset + float32(x)*step,
			Y: heights[z*n+x] * scaleY,
			Z: offset + float32(z)*step,
		}
	}
	t.triangles = make([]Triangle, 0, (n-1)*(n-1)*2)
	for z := 0; z < n-1; z++ {
		for x := 0; x < n-1; x++ {
			a, b := vertex(x, z), vertex(x+1, z)
			c, d := vertex(x, z+1), vertex(x+1, z+1)
			// Wind both triangles so normals face +Y
			t.triangles = append(t.triangles, newTriangle(a, c, b), newTriangle(b, c, d))
		}
	}
	t.build()
	t.init(nil)
	return t, nil
}

func (t *TerrainShape) Type() ShapeType { return ShapeTerrain }

// Samples returns the sample count per side.
func (t *TerrainShape) Samples() int { return t.n }

// Scale returns the horizontal and vertical scale.
func (t *TerrainShape) Scale() (xz, y float32) { return t.scaleXZ, t.scaleY }

// Height returns the raw height sample at (x, z).
func (t *TerrainShape) Height(x, z int) float32 { return t.heights[z*t.n+x] }

func (t *TerrainShape) AABB() rl.BoundingBox { return t.localBounds() }

func (t *TerrainShape) TransformedAABB(pose Transform) rl.BoundingBox {
	return transformBounds(t.localBounds(), pose)
}
