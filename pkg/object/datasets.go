package object

import (
	"math"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// CreateValueTable builds a two-column table of nrows points split evenly
// over the four quadrants, each coordinate drawn uniformly from [2, 6) in
// magnitude. Rows are ordered (-x,+y), (-x,-y), (+x,-y), (+x,+y).
func CreateValueTable(nrows int, seed uint64) *TableObject {
	rng := core.NewRand(seed, seed)
	const lo, hi = 2.0, 6.0
	quarter := nrows / 4

	xs := make([]float64, nrows)
	ys := make([]float64, nrows)
	for i := 0; i < nrows; i++ {
		x := rng.Float64()*(hi-lo) + lo
		y := rng.Float64()*(hi-lo) + lo
		switch {
		case i < quarter:
			x = -x
		case i < 2*quarter:
			x, y = -x, -y
		case i < 3*quarter:
			y = -y
		}
		xs[i], ys[i] = x, y
	}

	t := NewTableObject()
	t.SetName("quadrants")
	// Column lengths match by construction.
	_ = t.AddColumn("x", xs)
	_ = t.AddColumn("y", ys)
	return t
}

// NewHydrogenVolume samples the probability density of a 3d_z2 hydrogen
// orbital on a cubic grid, scaled into uint8
func NewHydrogenVolume(dim int) *StructuredVolume {
	if dim < 2 {
		dim = 2
	}
	values := make(Values[uint8], dim*dim*dim)
	// The grid spans [-20, 20] Bohr radii along each axis.
	scale := 40.0 / float64(dim-1)
	center := float64(dim-1) / 2

	density := make([]float64, len(values))
	peak := 0.0
	for k := 0; k < dim; k++ {
		for j := 0; j < dim; j++ {
			for i := 0; i < dim; i++ {
				x := (float64(i) - center) * scale
				y := (float64(j) - center) * scale
				z := (float64(k) - center) * scale
				r2 := x*x + y*y + z*z
				r := math.Sqrt(r2)
				psi := (3*z*z - r2) * math.Exp(-r/3)
				d := psi * psi
				density[i+dim*(j+dim*k)] = d
				peak = math.Max(peak, d)
			}
		}
	}
	for n, d := range density {
		if peak > 0 {
			values[n] = uint8(math.Round(255 * math.Sqrt(d/peak)))
		}
	}

	// Values always match the resolution.
	v, _ := NewStructuredVolume([3]int{dim, dim, dim}, values)
	v.SetName("hydrogen")
	return v
}
