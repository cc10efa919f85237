package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

func TestRelativeDifference_Symmetric(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("relative difference is symmetric", prop.ForAll(
		func(a, b float64) bool {
			return math.Abs(RelativeDifference(a, b)-RelativeDifference(b, a)) < 1e-12
		},
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
	))

	properties.Property("relative difference to itself is zero", prop.ForAll(
		func(a float64) bool {
			return RelativeDifference(a, a) == 0
		},
		gen.Float64Range(0.001, 1e6),
	))

	properties.Property("relative difference is bounded by two for positive values", prop.ForAll(
		func(a, b float64) bool {
			d := RelativeDifference(a, b)
			return d >= 0 && d <= 2
		},
		gen.Float64Range(0.001, 1e6),
		gen.Float64Range(0.001, 1e6),
	))

	properties.TestingRun(t)
}

func TestRotatePoint_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rotating by theta then -theta returns the point", prop.ForAll(
		func(p, c Point, deg float64) bool {
			back := RotatePoint(RotatePoint(p, c, deg), c, -deg)
			return math.Abs(back.X-p.X) < 1e-6 && math.Abs(back.Y-p.Y) < 1e-6
		},
		genPoint(),
		genPoint(),
		gen.Float64Range(-360, 360),
	))

	properties.Property("rounded round trip stays within one pixel", prop.ForAll(
		func(p, c Point, deg float64) bool {
			p = Point{X: math.Round(p.X), Y: math.Round(p.Y)}
			r := RotatePoint(p, c, deg)
			r = Point{X: math.Round(r.X), Y: math.Round(r.Y)}
			back := RotatePoint(r, c, -deg)
			return math.Abs(math.Round(back.X)-p.X) <= 1 && math.Abs(math.Round(back.Y)-p.Y) <= 1
		},
		genPoint(),
		genPoint(),
		gen.Float64Range(-180, 180),
	))

	properties.Property("rotation preserves distance to the centre", prop.ForAll(
		func(p, c Point, deg float64) bool {
			return math.Abs(Distance(p, c)-Distance(RotatePoint(p, c, deg), c)) < 1e-6
		},
		genPoint(),
		genPoint(),
		gen.Float64Range(-360, 360),
	))

	properties.TestingRun(t)
}

func TestRotatePoint_CounterClockwiseOnScreen(t *testing.T) {
	// A point to the right of the centre moves up (smaller y) when rotated by +90.
	r := RotatePoint(Point{X: 10, Y: 0}, Point{}, 90)
	assert.InDelta(t, 0, r.X, 1e-9)
	assert.InDelta(t, -10, r.Y, 1e-9)
}

func TestAngleBetween(t *testing.T) {
	ul := Point{X: 10, Y: 10}
	ur := Point{X: 50, Y: 10}
	ll := Point{X: 10, Y: 50}

	assert.InDelta(t, 90, AngleBetween(ur, ul, ll), 1e-9)
	assert.InDelta(t, 270, AngleBetween(ll, ul, ur), 1e-9)
	assert.InDelta(t, 180, AngleBetween(ur, ul, Point{X: 0, Y: 10}), 1e-9)

	// UR lower than UL: the symbol is turned clockwise on screen.
	tilted := Point{X: 50, Y: 20}
	a := AngleBetween(tilted, ul, Point{X: 0, Y: 10})
	assert.InDelta(t, 180-math.Atan2(10, 40)*180/math.Pi, a, 1e-9)
}

func TestNormalizeDegrees(t *testing.T) {
	assert.InDelta(t, 0, NormalizeDegrees(360), 1e-9)
	assert.InDelta(t, 270, NormalizeDegrees(-90), 1e-9)
	assert.InDelta(t, 10, NormalizeDegrees(730), 1e-9)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5, Distance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}), 1e-9)
}
