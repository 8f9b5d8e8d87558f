package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// NormalType selects where polygon normals are stored
type NormalType int

const (
	// VertexNormal stores one smoothed normal per vertex
	VertexNormal NormalType = iota
	// PolygonNormal stores one flat normal per triangle
	PolygonNormal
)

func (t NormalType) String() string {
	if t == PolygonNormal {
		return "polygon"
	}
	return "vertex"
}

// PolygonObject is a triangle mesh. When connections are empty, every three
// consecutive vertices form a triangle.
type PolygonObject struct {
	Base
	coords      []float32
	colors      []uint8
	normals     []float32
	connections []uint32
	normalType  NormalType
	opacity     uint8
}

// NewPolygonObject creates a triangle mesh
func NewPolygonObject(coords []float32, connections []uint32) *PolygonObject {
	p := &PolygonObject{
		connections: connections,
		colors:      []uint8{255, 255, 255},
		opacity:     255,
	}
	p.SetCoords(coords)
	return p
}

func (p *PolygonObject) Kind() Kind { return PolygonKind }

func (p *PolygonObject) Coords() []float32      { return p.coords }
func (p *PolygonObject) Colors() []uint8        { return p.colors }
func (p *PolygonObject) Normals() []float32     { return p.normals }
func (p *PolygonObject) Connections() []uint32  { return p.connections }
func (p *PolygonObject) NormalType() NormalType { return p.normalType }
func (p *PolygonObject) Opacity() uint8         { return p.opacity }

// NumVertices returns the number of vertices
func (p *PolygonObject) NumVertices() int { return len(p.coords) / 3 }

// NumPrimitives returns the number of triangles
func (p *PolygonObject) NumPrimitives() int {
	if len(p.connections) > 0 {
		return len(p.connections) / 3
	}
	return p.NumVertices() / 3
}

// Triangle returns the vertex indices of triangle i
func (p *PolygonObject) Triangle(i int) (int, int, int) {
	if len(p.connections) > 0 {
		return int(p.connections[3*i]), int(p.connections[3*i+1]), int(p.connections[3*i+2])
	}
	return 3 * i, 3*i + 1, 3*i + 2
}

// SetCoords replaces the coordinates and recomputes the bounding box
func (p *PolygonObject) SetCoords(coords []float32) {
	p.coords = coords
	p.SetMinMaxCoords(core.NewAABBFromCoords(coords))
	p.Touch()
}

// SetConnections replaces the triangle index list
func (p *PolygonObject) SetConnections(connections []uint32) {
	p.connections = connections
	p.Touch()
}

// SetColors sets per-vertex RGB colors
func (p *PolygonObject) SetColors(colors []uint8) {
	p.colors = colors
	p.Touch()
}

// SetColor sets one color for the whole mesh
func (p *PolygonObject) SetColor(r, g, b uint8) { p.SetColors([]uint8{r, g, b}) }

// SetNormals sets normals stored as described by normalType
func (p *PolygonObject) SetNormals(normals []float32, normalType NormalType) {
	p.normals = normals
	p.normalType = normalType
	p.Touch()
}

// SetOpacity sets the mesh opacity
func (p *PolygonObject) SetOpacity(opacity uint8) { p.opacity = opacity }

// Coord returns vertex i
func (p *PolygonObject) Coord(i int) core.Vec3 { return coordAt(p.coords, i) }

// Color returns the color of vertex i in [0,1]
func (p *PolygonObject) Color(i int) core.Vec3 { return colorAt(p.colors, i) }

// Normal returns the normal used for vertex v of triangle tri
func (p *PolygonObject) Normal(tri, v int) (core.Vec3, bool) {
	if p.normalType == PolygonNormal {
		return normalAt(p.normals, tri)
	}
	return normalAt(p.normals, v)
}

func (p *PolygonObject) Print(w io.Writer, indent int) {
	p.printHeader(w, indent, "PolygonObject", PolygonKind)
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sNumber of vertices: %d\n", pad, p.NumVertices())
	fmt.Fprintf(w, "%sNumber of triangles: %d\n", pad, p.NumPrimitives())
	fmt.Fprintf(w, "%sNormal type: %s\n", pad, p.normalType)
	fmt.Fprintf(w, "%sOpacity: %d\n", pad, p.opacity)
}
