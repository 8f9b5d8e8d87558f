// Package object defines the drawable data handed from importers and mappers
// to rendering engines: points, lines, polygons, structured volumes and tables.
package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Kind identifies the concrete type of an Object
type Kind int

const (
	PointKind Kind = iota
	LineKind
	PolygonKind
	VolumeKind
	TableKind
)

func (k Kind) String() string {
	switch k {
	case PointKind:
		return "point"
	case LineKind:
		return "line"
	case PolygonKind:
		return "polygon"
	case VolumeKind:
		return "structured volume"
	case TableKind:
		return "table"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Object is the boundary every engine and mapper consumes. Objects are
// referenced, never owned, by engines; identity is pointer identity.
type Object interface {
	Kind() Kind
	Name() string
	NumPrimitives() int
	// Version increases whenever vertex or attribute data is replaced
	Version() uint64
	MinMaxCoords() core.AABB
	Print(w io.Writer, indent int)
}

// Base carries the bookkeeping shared by all objects
type Base struct {
	name    string
	version uint64
	bounds  core.AABB
}

// Name returns the object name
func (b *Base) Name() string { return b.name }

// SetName sets the object name
func (b *Base) SetName(name string) { b.name = name }

// Version returns the modification counter
func (b *Base) Version() uint64 { return b.version }

// Touch marks the object data as modified
func (b *Base) Touch() { b.version++ }

// MinMaxCoords returns the object-space bounding box
func (b *Base) MinMaxCoords() core.AABB { return b.bounds }

// SetMinMaxCoords overrides the object-space bounding box
func (b *Base) SetMinMaxCoords(box core.AABB) { b.bounds = box }

func (b *Base) printHeader(w io.Writer, indent int, class string, k Kind) {
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sClass name: %s\n", pad, class)
	if b.name != "" {
		fmt.Fprintf(w, "%sName: %s\n", pad, b.name)
	}
	fmt.Fprintf(w, "%sObject type: %s\n", pad, k)
	fmt.Fprintf(w, "%sMin object coord: %s\n", pad, formatVec(b.bounds.Min))
	fmt.Fprintf(w, "%sMax object coord: %s\n", pad, formatVec(b.bounds.Max))
}

func formatVec(v core.Vec3) string {
	return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z)
}

// colorAt reads an RGB triplet from a packed array holding either one color
// per element or a single shared color
func colorAt(colors []uint8, i int) core.Vec3 {
	switch {
	case len(colors) >= 3*(i+1):
		colors = colors[3*i : 3*i+3]
	case len(colors) == 3:
	default:
		return core.NewVec3(1, 1, 1)
	}
	return core.NewVec3(float64(colors[0])/255, float64(colors[1])/255, float64(colors[2])/255)
}

func coordAt(coords []float32, i int) core.Vec3 {
	return core.NewVec3(float64(coords[3*i]), float64(coords[3*i+1]), float64(coords[3*i+2]))
}

func normalAt(normals []float32, i int) (core.Vec3, bool) {
	if len(normals) < 3*(i+1) {
		return core.Vec3{}, false
	}
	return coordAt(normals, i), true
}
