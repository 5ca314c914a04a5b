package physics

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// CompoundChild is one child shape of a compound with its local offset.
type CompoundChild struct {
	Shape  Shape
	Offset Transform
}

// CompoundShape groups child shapes. Children can not be compounds.
// *FrozenCompoundShape has a fixed child list; *MutableCompoundShape can be edited.
type CompoundShape interface {
	Shape
	ChildCount() int
	// Child returns the child at index, or nil when out of range.
	Child(index int) Shape
	ChildOffset(index int) (Transform, error)
	Frozen() bool
}

type compound struct {
	shapeBase
	children []CompoundChild
	revision uint64
}

func (c *compound) Type() ShapeType { return ShapeCompound }

func (c *compound) ChildCount() int { return len(c.children) }

func (c *compound) Child(index int) Shape {
	if index < 0 || index >= len(c.children) {
		return nil
	}
	return c.children[index].Shape
}

func (c *compound) ChildOffset(index int) (Transform, error) {
	if index < 0 || index >= len(c.children) {
		return Transform{}, fmt.Errorf("%w: %d", ErrChildIndex, index)
	}
	return c.children[index].Offset, nil
}

// Children returns a copy of the child list.
func (c *compound) Children() []CompoundChild {
	return append([]CompoundChild(nil), c.children...)
}

// Revision changes every time the child list or an offset changes.
func (c *compound) Revision() uint64 { return c.revision }

func (c *compound) AABB() rl.BoundingBox {
	return c.TransformedAABB(Identity())
}

func (c *compound) TransformedAABB(pose Transform) rl.BoundingBox {
	if len(c.children) == 0 {
		return rl.BoundingBox{Min: pose.Position, Max: pose.Position}
	}
	box := c.children[0].Shape.TransformedAABB(pose.Mul(c.children[0].Offset))
	for _, child := range c.children[1:] {
		box = UnionBounds(box, child.Shape.TransformedAABB(pose.Mul(child.Offset)))
	}
	return box
}

// ShapeRevision returns the revision of a mutable compound and 0 for every
// other shape. Backends compare it with the value they built from to notice
// child edits.
func ShapeRevision(s Shape) uint64 {
	if m, ok := s.(*MutableCompoundShape); ok {
		return m.Revision()
	}
	return 0
}

func (c *compound) releaseChildren() {
	for _, child := range c.children {
		child.Shape.Release()
	}
	c.children = nil
}

func checkChild(shape Shape) error {
	if shape == nil {
		return fmt.Errorf("%w: nil child", ErrInvalidDimension)
	}
	if shape.Type() == ShapeCompound {
		return ErrNestedCompound
	}
	return nil
}

// fixOffset treats a zero quaternion as the identity rotation.
func fixOffset(t Transform) Transform {
	if t.Orientation == (rl.Quaternion{}) {
		t.Orientation = rl.QuaternionIdentity()
	}
	return t
}

func (c *compound) setChildren(children []CompoundChild) error {
	for _, child := range children {
		if err := checkChild(child.Shape); err != nil {
			return err
		}
	}
	c.children = make([]CompoundChild, len(children))
	for i, child := range children {
		child.Shape.Retain()
		c.children[i] = CompoundChild{Shape: child.Shape, Offset: fixOffset(child.Offset)}
	}
	return nil
}

// FrozenCompoundShape is a compound whose children are fixed at construction.
type FrozenCompoundShape struct {
	compound
}

// NewFrozenCompoundShape builds an immutable compound from at least two children.
// Each child is retained.
func NewFrozenCompoundShape(children []CompoundChild) (*FrozenCompoundShape, error) {
	if len(children) < 2 {
		return nil, ErrCompoundTooSmall
	}
	s := &FrozenCompoundShape{}
	if err := s.setChildren(children); err != nil {
		return nil, err
	}
	s.init(s.releaseChildren)
	return s, nil
}

func (s *FrozenCompoundShape) Frozen() bool { return true }

// MutableCompoundShape is a compound whose children can change at runtime.
type MutableCompoundShape struct {
	compound
}

// NewMutableCompoundShape builds an editable compound. Each child is retained.
func NewMutableCompoundShape(children []CompoundChild) (*MutableCompoundShape, error) {
	s := &MutableCompoundShape{}
	if err := s.setChildren(children); err != nil {
		return nil, err
	}
	s.init(s.releaseChildren)
	return s, nil
}

func (s *MutableCompoundShape) Frozen() bool { return false }

// AddChild appends a child and retains it.
func (s *MutableCompoundShape) AddChild(shape Shape, offset Transform) error {
	if err := checkChild(shape); err != nil {
		return err
	}
	shape.Retain()
	s.children = append(s.children, CompoundChild{Shape: shape, Offset: fixOffset(offset)})
	s.revision++
	return nil
}

// ReplaceChild swaps the child at index, releasing the old one.
func (s *MutableCompoundShape) ReplaceChild(index int, shape Shape, offset Transform) error {
	if err := checkChild(shape); err != nil {
		return err
	}
	if index < 0 || index >= len(s.children) {
		return fmt.Errorf("%w: %d", ErrChildIndex, index)
	}
	shape.Retain()
	old := s.children[index].Shape
	s.children[index] = CompoundChild{Shape: shape, Offset: fixOffset(offset)}
	old.Release()
	s.revision++
	return nil
}

// RemoveChild drops the child at index and releases it.
func (s *MutableCompoundShape) RemoveChild(index int) error {
	if index < 0 || index >= len(s.children) {
		return fmt.Errorf("%w: %d", ErrChildIndex, index)
	}
	old := s.children[index].Shape
	s.children = append(s.children[:index], s.children[index+1:]...)
	old.Release()
	s.revision++
	return nil
}

// SetChildOffset moves the child at index.
func (s *MutableCompoundShape) SetChildOffset(index int, offset Transform) error {
	if index < 0 || index >= len(s.children) {
		return fmt.Errorf("%w: %d", ErrChildIndex, index)
	}
	s.children[index].Offset = fixOffset(offset)
	s.revision++
	return nil
}

func mutable(c CompoundShape) (*MutableCompoundShape, error) {
	m, ok := c.(*MutableCompoundShape)
	if !ok {
		return nil, ErrFrozenCompound
	}
	return m, nil
}

// AddChild adds a child to c, failing with ErrFrozenCompound when c is frozen.
func AddChild(c CompoundShape, shape Shape, offset Transform) error {
	m, err := mutable(c)
	if err != nil {
		return err
	}
	return m.AddChild(shape, offset)
}

// ReplaceChild replaces a child of c, failing with ErrFrozenCompound when c is frozen.
func ReplaceChild(c CompoundShape, index int, shape Shape, offset Transform) error {
	m, err := mutable(c)
	if err != nil {
		return err
	}
	return m.ReplaceChild(index, shape, offset)
}

// RemoveChild removes a child of c, failing with ErrFrozenCompound when c is frozen.
func RemoveChild(c CompoundShape, index int) error {
	m, err := mutable(c)
	if err != nil {
		return err
	}
	return m.RemoveChild(index)
}

// SetChildOffset moves a child of c, failing with ErrFrozenCompound when c is frozen.
func SetChildOffset(c CompoundShape, index int, offset Transform) error {
	m, err := mutable(c)
	if err != nil {
		return err
	}
	return m.SetChildOffset(index, offset)
}
