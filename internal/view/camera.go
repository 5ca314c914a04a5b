package view

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// FlyCamera is a free camera. Hold the right mouse button to look around.
type FlyCamera struct {
	Position  rl.Vector3
	Yaw       float32
	Pitch     float32
	MoveSpeed float32
	LookSpeed float32
	Fovy      float32
}

func NewFlyCamera(pos rl.Vector3) *FlyCamera {
	return &FlyCamera{
		Position:  pos,
		Yaw:       -135.0,
		Pitch:     -30.0,
		MoveSpeed: 12.0, // Units per second
		LookSpeed: 0.1,
		Fovy:      45,
	}
}

// LookAt points the camera at target.
func (c *FlyCamera) LookAt(target rl.Vector3) {
	d := rl.Vector3Subtract(target, c.Position)
	if rl.Vector3Length(d) < 1e-4 {
		return
	}
	d = rl.Vector3Normalize(d)
	c.Yaw = float32(math.Atan2(float64(d.Z), float64(d.X))) * rl.Rad2deg
	c.Pitch = float32(math.Asin(float64(d.Y))) * rl.Rad2deg
	c.clampPitch()
}

func (c *FlyCamera) clampPitch() {
	if c.Pitch > 89 {
		c.Pitch = 89
	}
	if c.Pitch < -89 {
		c.Pitch = -89
	}
}

func (c *FlyCamera) Update(deltaTime float32) {
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		mouseDelta := rl.GetMouseDelta()
		c.Yaw += mouseDelta.X * c.LookSpeed
		c.Pitch -= mouseDelta.Y * c.LookSpeed
		c.clampPitch()
	}

	forward, right := c.Directions()

	var moveDir rl.Vector3
	if rl.IsKeyDown(rl.KeyW) {
		moveDir = rl.Vector3Add(moveDir, forward)
	}
	if rl.IsKeyDown(rl.KeyS) {
		moveDir = rl.Vector3Subtract(moveDir, forward)
	}
	if rl.IsKeyDown(rl.KeyA) {
		moveDir = rl.Vector3Add(moveDir, right)
	}
	if rl.IsKeyDown(rl.KeyD) {
		moveDir = rl.Vector3Subtract(moveDir, right)
	}
	if rl.IsKeyDown(rl.KeyE) {
		moveDir.Y++
	}
	if rl.IsKeyDown(rl.KeyQ) {
		moveDir.Y--
	}

	// Normalize diagonal movement so you don't go faster diagonally
	if rl.Vector3Length(moveDir) > 0 {
		moveDir = rl.Vector3Normalize(moveDir)
	}
	speed := c.MoveSpeed
	if rl.IsKeyDown(rl.KeyLeftShift) {
		speed *= 3
	}
	c.Position = rl.Vector3Add(c.Position, rl.Vector3Scale(moveDir, speed*deltaTime))
}

// Directions returns the view direction and the horizontal strafe vector A moves along.
func (c *FlyCamera) Directions() (forward, right rl.Vector3) {
	yawRad := float64(c.Yaw) * math.Pi / 180
	pitchRad := float64(c.Pitch) * math.Pi / 180
	forward = rl.Vector3{
		X: float32(math.Cos(yawRad) * math.Cos(pitchRad)),
		Y: float32(math.Sin(pitchRad)),
		Z: float32(math.Sin(yawRad) * math.Cos(pitchRad)),
	}
	right = rl.Vector3{
		X: float32(math.Sin(yawRad)),
		Y: 0,
		Z: float32(-math.Cos(yawRad)),
	}
	return
}

func (c *FlyCamera) Camera3D() rl.Camera3D {
	forward, _ := c.Directions()
	return rl.Camera3D{
		Position:   c.Position,
		Target:     rl.Vector3Add(c.Position, forward),
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       c.Fovy,
		Projection: rl.CameraPerspective,
	}
}
