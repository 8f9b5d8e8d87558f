package object

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Number is the set of scalar element types a structured volume can hold
type Number interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~float32 | ~float64
}

// ValueArray is the type-erased view of volume samples
type ValueArray interface {
	Len() int
	At(i int) float64
	TypeName() string
}

// Values is a typed sample array
type Values[T Number] []T

func (v Values[T]) Len() int { return len(v) }

func (v Values[T]) At(i int) float64 { return float64(v[i]) }

func (v Values[T]) TypeName() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// StructuredVolume is a scalar field sampled on a uniform grid whose nodes
// sit at integer object coordinates
type StructuredVolume struct {
	Base
	resolution [3]int
	values     ValueArray
	minValue   float64
	maxValue   float64
}

// NewStructuredVolume validates the sample count against the resolution and
// computes the value range
func NewStructuredVolume(resolution [3]int, values ValueArray) (*StructuredVolume, error) {
	n := resolution[0] * resolution[1] * resolution[2]
	if resolution[0] <= 0 || resolution[1] <= 0 || resolution[2] <= 0 {
		return nil, fmt.Errorf("invalid volume resolution %v: %w", resolution, core.ErrInputMismatch)
	}
	if values == nil || values.Len() != n {
		got := 0
		if values != nil {
			got = values.Len()
		}
		return nil, fmt.Errorf("volume has %d values, resolution %v needs %d: %w", got, resolution, n, core.ErrInputMismatch)
	}

	v := &StructuredVolume{resolution: resolution, values: values}
	v.minValue, v.maxValue = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		x := values.At(i)
		v.minValue = math.Min(v.minValue, x)
		v.maxValue = math.Max(v.maxValue, x)
	}
	v.SetMinMaxCoords(core.NewAABB(
		core.NewVec3(0, 0, 0),
		core.NewVec3(float64(resolution[0]-1), float64(resolution[1]-1), float64(resolution[2]-1)),
	))
	v.Touch()
	return v, nil
}

func (v *StructuredVolume) Kind() Kind { return VolumeKind }

func (v *StructuredVolume) Resolution() [3]int { return v.resolution }
func (v *StructuredVolume) Values() ValueArray { return v.values }
func (v *StructuredVolume) MinValue() float64  { return v.minValue }
func (v *StructuredVolume) MaxValue() float64  { return v.maxValue }

// SetMinMaxValues overrides the value range used by transfer functions
func (v *StructuredVolume) SetMinMaxValues(minValue, maxValue float64) {
	v.minValue, v.maxValue = minValue, maxValue
}

// NumNodes returns the number of grid nodes
func (v *StructuredVolume) NumNodes() int {
	return v.resolution[0] * v.resolution[1] * v.resolution[2]
}

// NumCells returns the number of grid cells
func (v *StructuredVolume) NumCells() int {
	return max(v.resolution[0]-1, 0) * max(v.resolution[1]-1, 0) * max(v.resolution[2]-1, 0)
}

// NumPrimitives returns the number of cells
func (v *StructuredVolume) NumPrimitives() int { return v.NumCells() }

// Index returns the linear index of node (i, j, k)
func (v *StructuredVolume) Index(i, j, k int) int {
	return i + v.resolution[0]*(j+v.resolution[1]*k)
}

// Value returns the sample at node (i, j, k)
func (v *StructuredVolume) Value(i, j, k int) float64 {
	return v.values.At(v.Index(i, j, k))
}

// Gradient returns the central-difference gradient at node (i, j, k),
// falling back to one-sided differences on the boundary
func (v *StructuredVolume) Gradient(i, j, k int) core.Vec3 {
	diff := func(axis, c int, at func(int) float64) float64 {
		n := v.resolution[axis]
		switch {
		case n < 2:
			return 0
		case c == 0:
			return at(1) - at(0)
		case c == n-1:
			return at(c) - at(c-1)
		default:
			return (at(c+1) - at(c-1)) * 0.5
		}
	}
	return core.NewVec3(
		diff(0, i, func(x int) float64 { return v.Value(x, j, k) }),
		diff(1, j, func(y int) float64 { return v.Value(i, y, k) }),
		diff(2, k, func(z int) float64 { return v.Value(i, j, z) }),
	)
}

// Sample trilinearly interpolates the field at an object-space point. Points
// outside the grid are clamped to the boundary.
func (v *StructuredVolume) Sample(p core.Vec3) float64 {
	var base [3]int
	var frac [3]float64
	for axis := 0; axis < 3; axis++ {
		n := v.resolution[axis]
		c := math.Max(0, math.Min(float64(n-1), p.Component(axis)))
		b := int(math.Floor(c))
		if b >= n-1 {
			b = max(n-2, 0)
		}
		base[axis] = b
		frac[axis] = c - float64(b)
	}

	at := func(di, dj, dk int) float64 {
		i := min(base[0]+di, v.resolution[0]-1)
		j := min(base[1]+dj, v.resolution[1]-1)
		k := min(base[2]+dk, v.resolution[2]-1)
		return v.Value(i, j, k)
	}
	fx, fy, fz := frac[0], frac[1], frac[2]
	c00 := at(0, 0, 0)*(1-fx) + at(1, 0, 0)*fx
	c10 := at(0, 1, 0)*(1-fx) + at(1, 1, 0)*fx
	c01 := at(0, 0, 1)*(1-fx) + at(1, 0, 1)*fx
	c11 := at(0, 1, 1)*(1-fx) + at(1, 1, 1)*fx
	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

func (v *StructuredVolume) Print(w io.Writer, indent int) {
	v.printHeader(w, indent, "StructuredVolumeObject", VolumeKind)
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sGrid type: uniform\n", pad)
	fmt.Fprintf(w, "%sResolution: %d %d %d\n", pad, v.resolution[0], v.resolution[1], v.resolution[2])
	fmt.Fprintf(w, "%sNumber of nodes: %d\n", pad, v.NumNodes())
	fmt.Fprintf(w, "%sValue type: %s\n", pad, v.values.TypeName())
	fmt.Fprintf(w, "%sMin value: %g\n", pad, v.minValue)
	fmt.Fprintf(w, "%sMax value: %g\n", pad, v.maxValue)
}
