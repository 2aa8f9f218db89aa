// Package geom holds the small vector and grid math shared by the
// navigation packages.
package geom

import "math"

// Vec2 is a point or direction on the world's ground plane.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Z: v.Z * s} }

func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Z) }

// Normalize returns the unit vector pointing the same way, or the zero
// vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	length := math.Hypot(v.X, v.Z)
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Z: v.Z / length}
}

func (v Vec2) Dist(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Z-o.Z) }

// CellKey identifies one cell of a uniform grid.
type CellKey struct {
	Col int
	Row int
}

// CellOf quantizes a world position into a cell key.
func CellOf(x, z, invCellSize float64) CellKey {
	return CellKey{
		Col: int(math.Floor(x * invCellSize)),
		Row: int(math.Floor(z * invCellSize)),
	}
}

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
