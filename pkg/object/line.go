package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// LineType describes how connections are interpreted
type LineType int

const (
	// Strip connects every vertex in order
	Strip LineType = iota
	// Uniline connects the vertices listed in connections, in order
	Uniline
	// Polyline lists (first, last) vertex index pairs, one pair per polyline
	Polyline
	// Segment lists independent (a, b) vertex pairs
	Segment
)

func (t LineType) String() string {
	switch t {
	case Strip:
		return "strip"
	case Uniline:
		return "uniline"
	case Polyline:
		return "polyline"
	case Segment:
		return "segment"
	default:
		return "unknown"
	}
}

// LineObject is a set of lines drawn with a common width
type LineObject struct {
	Base
	lineType    LineType
	coords      []float32
	colors      []uint8
	connections []uint32
	size        float32
	opacity     uint8
}

// NewLineObject creates a line object
func NewLineObject(lineType LineType, coords []float32, connections []uint32) *LineObject {
	l := &LineObject{
		lineType:    lineType,
		connections: connections,
		colors:      []uint8{255, 255, 255},
		size:        1,
		opacity:     255,
	}
	l.SetCoords(coords)
	return l
}

func (l *LineObject) Kind() Kind { return LineKind }

func (l *LineObject) LineType() LineType    { return l.lineType }
func (l *LineObject) Coords() []float32     { return l.coords }
func (l *LineObject) Colors() []uint8       { return l.colors }
func (l *LineObject) Connections() []uint32 { return l.connections }
func (l *LineObject) Size() float32         { return l.size }
func (l *LineObject) Opacity() uint8        { return l.opacity }

// NumVertices returns the number of vertices
func (l *LineObject) NumVertices() int { return len(l.coords) / 3 }

// NumPrimitives returns the number of drawable segments
func (l *LineObject) NumPrimitives() int {
	nverts := l.NumVertices()
	switch l.lineType {
	case Strip:
		return max(nverts-1, 0)
	case Uniline:
		return max(len(l.connections)-1, 0)
	case Polyline:
		n := 0
		for i := 0; i+1 < len(l.connections); i += 2 {
			if l.connections[i+1] > l.connections[i] {
				n += int(l.connections[i+1] - l.connections[i])
			}
		}
		return n
	case Segment:
		if len(l.connections) > 0 {
			return len(l.connections) / 2
		}
		return nverts / 2
	}
	return 0
}

// SetCoords replaces the coordinates and recomputes the bounding box
func (l *LineObject) SetCoords(coords []float32) {
	l.coords = coords
	l.SetMinMaxCoords(core.NewAABBFromCoords(coords))
	l.Touch()
}

// SetColors sets per-vertex RGB colors
func (l *LineObject) SetColors(colors []uint8) {
	l.colors = colors
	l.Touch()
}

// SetColor sets one color for every vertex
func (l *LineObject) SetColor(r, g, b uint8) { l.SetColors([]uint8{r, g, b}) }

// SetSize sets the line width in pixels
func (l *LineObject) SetSize(size float32) { l.size = size }

// SetOpacity sets the line opacity
func (l *LineObject) SetOpacity(opacity uint8) { l.opacity = opacity }

// Coord returns vertex i
func (l *LineObject) Coord(i int) core.Vec3 { return coordAt(l.coords, i) }

// Color returns the color of vertex i in [0,1]
func (l *LineObject) Color(i int) core.Vec3 { return colorAt(l.colors, i) }

func (l *LineObject) Print(w io.Writer, indent int) {
	l.printHeader(w, indent, "LineObject", LineKind)
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sLine type: %s\n", pad, l.lineType)
	fmt.Fprintf(w, "%sNumber of vertices: %d\n", pad, l.NumVertices())
	fmt.Fprintf(w, "%sNumber of connections: %d\n", pad, len(l.connections))
	fmt.Fprintf(w, "%sSize: %g\n", pad, l.size)
}
