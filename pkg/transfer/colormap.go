// Package transfer maps scalar values to colors and opacities.
package transfer

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/vec"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// DefaultResolution is the number of entries of a default table
const DefaultResolution = 256

// ColorPoint is a control point of a color map at a normalized position in [0,1]
type ColorPoint struct {
	Position float64  `yaml:"position"`
	Color    [3]uint8 `yaml:"color"`
}

// ColorMap is a lookup table of RGB colors
type ColorMap struct {
	table []core.Vec3
}

// NewRainbowColorMap creates a blue-to-red hue ramp with the given number of entries
func NewRainbowColorMap(resolution int) *ColorMap {
	if resolution < 1 {
		resolution = 1
	}
	table := make([]core.Vec3, resolution)
	for i, t := range vec.Linspace(0, 1, resolution) {
		// hue runs from 240 degrees (blue) down to 0 (red)
		table[i] = hsvToRGB((1-t)*2.0/3.0, 1, 1)
	}
	return &ColorMap{table: table}
}

// NewColorMap interpolates control points into a table. Points must be sorted
// by position.
func NewColorMap(resolution int, points []ColorPoint) (*ColorMap, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("color map resolution %d: %w", resolution, core.ErrConfiguration)
	}
	if len(points) == 0 {
		return NewRainbowColorMap(resolution), nil
	}
	for i := 1; i < len(points); i++ {
		if points[i].Position < points[i-1].Position {
			return nil, fmt.Errorf("color map points out of order at %d: %w", i, core.ErrConfiguration)
		}
	}

	toVec := func(c [3]uint8) core.Vec3 {
		return core.NewVec3(float64(c[0])/255, float64(c[1])/255, float64(c[2])/255)
	}
	table := make([]core.Vec3, resolution)
	for i, t := range vec.Linspace(0, 1, resolution) {
		table[i] = interpolate(len(points), t,
			func(j int) float64 { return points[j].Position },
			func(j int) core.Vec3 { return toVec(points[j].Color) },
		)
	}
	return &ColorMap{table: table}, nil
}

// Resolution returns the number of table entries
func (c *ColorMap) Resolution() int { return len(c.table) }

// At returns entry i
func (c *ColorMap) At(i int) core.Vec3 { return c.table[i] }

// Lookup returns the color at normalized position t in [0,1]
func (c *ColorMap) Lookup(t float64) core.Vec3 { return c.table[index(t, len(c.table))] }

// RGB returns entry i as 8-bit components
func (c *ColorMap) RGB(i int) [3]uint8 {
	v := c.table[i]
	return [3]uint8{to8(v.X), to8(v.Y), to8(v.Z)}
}

func index(t float64, n int) int {
	if math.IsNaN(t) {
		return 0
	}
	i := int(math.Round(t * float64(n-1)))
	return max(0, min(n-1, i))
}

func to8(x float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, x)) * 255))
}

// interpolate evaluates a piecewise-linear curve through n control points
func interpolate[T interface{ Lerp(T, float64) T }](n int, t float64, pos func(int) float64, val func(int) T) T {
	if t <= pos(0) {
		return val(0)
	}
	for j := 1; j < n; j++ {
		if t <= pos(j) {
			span := pos(j) - pos(j-1)
			if span <= 0 {
				return val(j)
			}
			return val(j-1).Lerp(val(j), (t-pos(j-1))/span)
		}
	}
	return val(n - 1)
}

func hsvToRGB(h, s, v float64) core.Vec3 {
	h6 := math.Mod(h*6, 6)
	i := math.Floor(h6)
	f := h6 - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	u := v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		return core.NewVec3(v, u, p)
	case 1:
		return core.NewVec3(q, v, p)
	case 2:
		return core.NewVec3(p, v, u)
	case 3:
		return core.NewVec3(p, q, v)
	case 4:
		return core.NewVec3(u, p, v)
	default:
		return core.NewVec3(v, p, q)
	}
}
