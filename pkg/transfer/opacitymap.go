package transfer

import (
	"fmt"

	"github.com/aclements/go-moremath/vec"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// OpacityPoint is a control point of an opacity map at a normalized position in [0,1]
type OpacityPoint struct {
	Position float64 `yaml:"position"`
	Opacity  float64 `yaml:"opacity"`
}

// OpacityMap is a lookup table of opacities in [0,1]
type OpacityMap struct {
	table []float64
}

type scalar float64

func (a scalar) Lerp(b scalar, t float64) scalar { return a + (b-a)*scalar(t) }

// NewLinearOpacityMap creates a ramp from fully transparent to opaque
func NewLinearOpacityMap(resolution int) *OpacityMap {
	if resolution < 1 {
		resolution = 1
	}
	return &OpacityMap{table: vec.Linspace(0, 1, resolution)}
}

// NewOpacityMap interpolates control points into a table. Points must be
// sorted by position.
func NewOpacityMap(resolution int, points []OpacityPoint) (*OpacityMap, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("opacity map resolution %d: %w", resolution, core.ErrConfiguration)
	}
	if len(points) == 0 {
		return NewLinearOpacityMap(resolution), nil
	}
	for i, p := range points {
		if p.Opacity < 0 || p.Opacity > 1 {
			return nil, fmt.Errorf("opacity %g at point %d outside [0,1]: %w", p.Opacity, i, core.ErrConfiguration)
		}
		if i > 0 && p.Position < points[i-1].Position {
			return nil, fmt.Errorf("opacity map points out of order at %d: %w", i, core.ErrConfiguration)
		}
	}

	table := make([]float64, resolution)
	for i, t := range vec.Linspace(0, 1, resolution) {
		table[i] = float64(interpolate(len(points), t,
			func(j int) float64 { return points[j].Position },
			func(j int) scalar { return scalar(points[j].Opacity) },
		))
	}
	return &OpacityMap{table: table}, nil
}

// Resolution returns the number of table entries
func (o *OpacityMap) Resolution() int { return len(o.table) }

// At returns entry i
func (o *OpacityMap) At(i int) float64 { return o.table[i] }

// Lookup returns the opacity at normalized position t in [0,1]
func (o *OpacityMap) Lookup(t float64) float64 { return o.table[index(t, len(o.table))] }
