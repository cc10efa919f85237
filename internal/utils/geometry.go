package utils

import "math"

// RelativeDifference returns |a-b| relative to the mean of a and b.
// Two zero values are considered identical.
func RelativeDifference(a, b float64) float64 {
	mean := (a + b) / 2
	if mean == 0 {
		return 0
	}
	return math.Abs(a-b) / math.Abs(mean)
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// AngleBetween returns the angle in degrees at vertex, measured from the
// ray vertex->from to the ray vertex->to, in image coordinates (y down).
// The result is normalised to [0, 360).
func AngleBetween(from, vertex, to Point) float64 {
	angle := math.Atan2(to.Y-vertex.Y, to.X-vertex.X) - math.Atan2(from.Y-vertex.Y, from.X-vertex.X)
	return NormalizeDegrees(angle * 180 / math.Pi)
}

// NormalizeDegrees maps any angle onto [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// RotatePoint rotates p around center by deg degrees. Positive angles turn
// counter-clockwise as seen on screen, matching imaging.Rotate.
func RotatePoint(p, center Point, deg float64) Point {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	dx, dy := p.X-center.X, p.Y-center.Y
	return Point{
		X: dx*cos + dy*sin + center.X,
		Y: -dx*sin + dy*cos + center.Y,
	}
}
