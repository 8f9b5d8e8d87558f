package engine

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// LineEngine draws line objects as stochastic lines. Every line type is
// expanded into polylines described by first/count arrays.
type LineEngine struct {
	Base
	buffer      *gpu.BufferObject
	numSegments int
	opacity     float32
	width       float32
}

// NewLineEngine creates a line engine
func NewLineEngine(config Config) *LineEngine {
	return &LineEngine{Base: NewBase(config)}
}

func (e *LineEngine) Name() string { return "LineEngine" }

// Accepts reports whether k is a line object
func (e *LineEngine) Accepts(k object.Kind) bool { return k == object.LineKind }

// Buffer returns the line buffer, nil when nothing is allocated
func (e *LineEngine) Buffer() *gpu.BufferObject { return e.buffer }

func (e *LineEngine) line(obj object.Object) (*object.LineObject, error) {
	l, ok := obj.(*object.LineObject)
	if !ok {
		return nil, wrongKind(e.Name(), obj)
	}
	return l, nil
}

// polylines returns the vertex index sequence of every polyline
func polylines(l *object.LineObject) [][]int {
	seq := func(first, last int) []int {
		s := make([]int, 0, last-first+1)
		for i := first; i <= last; i++ {
			s = append(s, i)
		}
		return s
	}

	conn := l.Connections()
	var lines [][]int
	switch l.LineType() {
	case object.Strip:
		if n := l.NumVertices(); n > 1 {
			lines = append(lines, seq(0, n-1))
		}
	case object.Uniline:
		if len(conn) > 1 {
			s := make([]int, len(conn))
			for i, c := range conn {
				s[i] = int(c)
			}
			lines = append(lines, s)
		}
	case object.Polyline:
		for i := 0; i+1 < len(conn); i += 2 {
			if conn[i+1] > conn[i] {
				lines = append(lines, seq(int(conn[i]), int(conn[i+1])))
			}
		}
	case object.Segment:
		if len(conn) > 0 {
			for i := 0; i+1 < len(conn); i += 2 {
				lines = append(lines, []int{int(conn[i]), int(conn[i+1])})
			}
		} else {
			for i := 0; i+1 < l.NumVertices(); i += 2 {
				lines = append(lines, []int{i, i + 1})
			}
		}
	}
	return lines
}

func (e *LineEngine) Create(obj object.Object, cam *camera.Camera, light camera.Light) error {
	l, err := e.line(obj)
	if err != nil {
		return err
	}
	e.Release()
	if err := e.createBase(obj, cam); err != nil {
		e.Release()
		return err
	}
	if err := e.upload(l, true); err != nil {
		e.Release()
		return err
	}
	e.SetState(Created)
	return nil
}

func (e *LineEngine) Update(obj object.Object, cam *camera.Camera, light camera.Light) error {
	l, err := e.line(obj)
	if err != nil {
		return err
	}
	if e.State() == Released {
		return fmt.Errorf("%s: update before create: %w", e.Name(), core.ErrConfiguration)
	}
	if obj.NumPrimitives() != e.numSegments || obj != e.Object() {
		if err := e.Create(obj, cam, light); err != nil {
			return err
		}
	} else if obj.Version() != e.ObjectVersion() {
		if err := e.upload(l, false); err != nil {
			return err
		}
		e.AttachObject(obj)
	}
	e.opacity = float32(l.Opacity()) / 255
	e.width = l.Size()
	e.SetState(Ready)
	return nil
}

func (e *LineEngine) upload(l *object.LineObject, allocate bool) error {
	e.numSegments = l.NumPrimitives()
	e.opacity = float32(l.Opacity()) / 255
	e.width = l.Size()
	if e.numSegments == 0 {
		return nil
	}

	lines := polylines(l)
	total := 0
	for _, s := range lines {
		total += len(s)
	}
	if allocate || e.buffer.NumVertices() != total {
		e.buffer.Release()
		buffer, err := e.Context().CreateBufferObject(total)
		if err != nil {
			return err
		}
		e.buffer = buffer
	}

	positions := make([]float32, 0, 3*total)
	colors := make([]float32, 0, 3*total)
	first := make([]int32, len(lines))
	count := make([]int32, len(lines))
	next := 0
	for i, s := range lines {
		first[i], count[i] = int32(next), int32(len(s))
		next += len(s)
		for _, v := range s {
			p, c := l.Coord(v), l.Color(v)
			positions = append(positions, float32(p.X), float32(p.Y), float32(p.Z))
			colors = append(colors, float32(c.X), float32(c.Y), float32(c.Z))
		}
	}

	if err := e.buffer.SetAttribute("position", 3, positions); err != nil {
		return err
	}
	if err := e.buffer.SetAttribute("color", 3, colors); err != nil {
		return err
	}
	if err := e.buffer.SetMultiDraw(first, count); err != nil {
		return err
	}
	e.buffer.Upload()
	return nil
}

func (e *LineEngine) Setup(obj object.Object, cam *camera.Camera, light camera.Light) error {
	return e.setupBase()
}

func (e *LineEngine) Draw(obj object.Object, cam *camera.Camera, light camera.Light) error {
	fb, err := e.target()
	if err != nil {
		return err
	}
	if e.numSegments == 0 {
		return nil
	}

	offset := e.repetitionOffset(e.RepetitionCount())
	width := max(1, int(math.Round(float64(e.width)*cam.DevicePixelRatio())))
	positions := e.buffer.Attribute("position")
	colors := e.buffer.Attribute("color")

	fragment := func(x, y int, depth float32, color f32.Vec3) {
		if e.opacity < 1 && e.random(x, y, offset) >= e.opacity {
			return
		}
		fb.Plot(x, y, depth, color)
	}

	first, count := e.buffer.First(), e.buffer.Count()
	for i := range first {
		for v := int(first[i]); v+1 < int(first[i]+count[i]); v++ {
			a, okA := project(cam, toVec3(positions.Vertex(v)), toF32(colors.Vertex(v)))
			b, okB := project(cam, toVec3(positions.Vertex(v+1)), toF32(colors.Vertex(v+1)))
			if okA && okB {
				rasterLine(fb, a, b, width, fragment)
			}
		}
	}
	return nil
}

func (e *LineEngine) Release() {
	e.buffer.Release()
	e.buffer = nil
	e.numSegments = 0
	e.ReleaseResources()
}

func toF32(v []float32) f32.Vec3 { return f32.Vec3{v[0], v[1], v[2]} }
