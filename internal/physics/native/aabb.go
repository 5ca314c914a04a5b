package native

import rl "github.com/gen2brain/raylib-go/raylib"

// overlaps reports whether two bounds intersect, touching included.
func overlaps(a, b rl.BoundingBox) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// expand grows bounds by margin on every side.
func expand(b rl.BoundingBox, margin float32) rl.BoundingBox {
	m := rl.Vector3{X: margin, Y: margin, Z: margin}
	return rl.BoundingBox{Min: rl.Vector3Subtract(b.Min, m), Max: rl.Vector3Add(b.Max, m)}
}

// segmentBounds returns the bounds of the segment from a to b.
func segmentBounds(a, b rl.Vector3) rl.BoundingBox {
	return rl.BoundingBox{Min: rl.Vector3Min(a, b), Max: rl.Vector3Max(a, b)}
}
