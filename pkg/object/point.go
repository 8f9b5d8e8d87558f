package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// PointObject is a set of particles with optional per-vertex colors, normals
// and sizes. A single color or size applies to every vertex.
type PointObject struct {
	Base
	coords  []float32
	colors  []uint8
	normals []float32
	sizes   []float32
}

// NewPointObject creates a point object from packed xyz coordinates
func NewPointObject(coords []float32) *PointObject {
	p := &PointObject{colors: []uint8{255, 255, 255}, sizes: []float32{1}}
	p.SetCoords(coords)
	return p
}

func (p *PointObject) Kind() Kind { return PointKind }

// NumVertices returns the number of particles
func (p *PointObject) NumVertices() int { return len(p.coords) / 3 }

func (p *PointObject) NumPrimitives() int { return p.NumVertices() }

func (p *PointObject) Coords() []float32  { return p.coords }
func (p *PointObject) Colors() []uint8    { return p.colors }
func (p *PointObject) Normals() []float32 { return p.normals }
func (p *PointObject) Sizes() []float32   { return p.sizes }

// SetCoords replaces the coordinates and recomputes the bounding box
func (p *PointObject) SetCoords(coords []float32) {
	p.coords = coords
	p.SetMinMaxCoords(core.NewAABBFromCoords(coords))
	p.Touch()
}

// SetColors sets per-vertex RGB colors
func (p *PointObject) SetColors(colors []uint8) {
	p.colors = colors
	p.Touch()
}

// SetColor sets one color for every vertex
func (p *PointObject) SetColor(r, g, b uint8) {
	p.SetColors([]uint8{r, g, b})
}

// SetNormals sets per-vertex normals
func (p *PointObject) SetNormals(normals []float32) {
	p.normals = normals
	p.Touch()
}

// SetSizes sets per-vertex sizes in pixels
func (p *PointObject) SetSizes(sizes []float32) {
	p.sizes = sizes
	p.Touch()
}

// SetSize sets one size for every vertex
func (p *PointObject) SetSize(size float32) {
	p.SetSizes([]float32{size})
}

// Coord returns vertex i
func (p *PointObject) Coord(i int) core.Vec3 { return coordAt(p.coords, i) }

// Color returns the color of vertex i in [0,1]
func (p *PointObject) Color(i int) core.Vec3 { return colorAt(p.colors, i) }

// Normal returns the normal of vertex i, if normals are present
func (p *PointObject) Normal(i int) (core.Vec3, bool) { return normalAt(p.normals, i) }

// Size returns the size of vertex i
func (p *PointObject) Size(i int) float32 {
	switch {
	case len(p.sizes) > i:
		return p.sizes[i]
	case len(p.sizes) == 1:
		return p.sizes[0]
	default:
		return 1
	}
}

func (p *PointObject) Print(w io.Writer, indent int) {
	p.printHeader(w, indent, "PointObject", PointKind)
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sNumber of vertices: %d\n", pad, p.NumVertices())
	fmt.Fprintf(w, "%sNumber of colors: %d\n", pad, len(p.colors)/3)
	fmt.Fprintf(w, "%sNumber of normals: %d\n", pad, len(p.normals)/3)
	fmt.Fprintf(w, "%sNumber of sizes: %d\n", pad, len(p.sizes))
}
