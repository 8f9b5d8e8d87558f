package engine

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// PolygonEngine draws triangle meshes as stochastic polygons: a fragment
// survives when the random texture value at its pixel is below the opacity,
// so averaging repetitions converges to alpha blending without sorting.
type PolygonEngine struct {
	Base
	buffer       *gpu.BufferObject
	numTriangles int
	opacity      float32
}

// NewPolygonEngine creates a polygon engine
func NewPolygonEngine(config Config) *PolygonEngine {
	return &PolygonEngine{Base: NewBase(config)}
}

func (e *PolygonEngine) Name() string { return "PolygonEngine" }

// Accepts reports whether k is a polygon object
func (e *PolygonEngine) Accepts(k object.Kind) bool { return k == object.PolygonKind }

// Buffer returns the triangle buffer, nil when nothing is allocated
func (e *PolygonEngine) Buffer() *gpu.BufferObject { return e.buffer }

func (e *PolygonEngine) polygon(obj object.Object) (*object.PolygonObject, error) {
	p, ok := obj.(*object.PolygonObject)
	if !ok {
		return nil, wrongKind(e.Name(), obj)
	}
	return p, nil
}

func (e *PolygonEngine) Create(obj object.Object, cam *camera.Camera, light camera.Light) error {
	p, err := e.polygon(obj)
	if err != nil {
		return err
	}
	e.Release()
	if err := e.createBase(obj, cam); err != nil {
		e.Release()
		return err
	}
	if err := e.upload(p, true); err != nil {
		e.Release()
		return err
	}
	e.SetState(Created)
	return nil
}

func (e *PolygonEngine) Update(obj object.Object, cam *camera.Camera, light camera.Light) error {
	p, err := e.polygon(obj)
	if err != nil {
		return err
	}
	if e.State() == Released {
		return fmt.Errorf("%s: update before create: %w", e.Name(), core.ErrConfiguration)
	}
	if obj.NumPrimitives() != e.numTriangles || obj != e.Object() {
		if err := e.Create(obj, cam, light); err != nil {
			return err
		}
	} else if obj.Version() != e.ObjectVersion() {
		if err := e.upload(p, false); err != nil {
			return err
		}
		e.AttachObject(obj)
	}
	e.opacity = float32(p.Opacity()) / 255
	e.SetState(Ready)
	return nil
}

// upload expands indexed triangles into three vertices each
func (e *PolygonEngine) upload(p *object.PolygonObject, allocate bool) error {
	n := p.NumPrimitives()
	e.numTriangles = n
	e.opacity = float32(p.Opacity()) / 255
	if n == 0 {
		return nil
	}
	if allocate {
		buffer, err := e.Context().CreateBufferObject(3 * n)
		if err != nil {
			return err
		}
		e.buffer = buffer
	}

	positions := make([]float32, 9*n)
	colors := make([]float32, 9*n)
	normals := make([]float32, 9*n)
	put := func(dst []float32, i int, v core.Vec3) {
		dst[3*i], dst[3*i+1], dst[3*i+2] = float32(v.X), float32(v.Y), float32(v.Z)
	}

	for t := 0; t < n; t++ {
		a, b, c := p.Triangle(t)
		pa, pb, pc := p.Coord(a), p.Coord(b), p.Coord(c)
		face := pb.Subtract(pa).Cross(pc.Subtract(pa)).Normalize()
		for k, v := range []int{a, b, c} {
			i := 3*t + k
			put(positions, i, p.Coord(v))
			put(colors, i, p.Color(v))
			normal, ok := p.Normal(t, v)
			if !ok {
				normal = face
			}
			put(normals, i, normal)
		}
	}

	if err := e.buffer.SetAttribute("position", 3, positions); err != nil {
		return err
	}
	if err := e.buffer.SetAttribute("color", 3, colors); err != nil {
		return err
	}
	if err := e.buffer.SetAttribute("normal", 3, normals); err != nil {
		return err
	}
	e.buffer.Upload()
	return nil
}

func (e *PolygonEngine) Setup(obj object.Object, cam *camera.Camera, light camera.Light) error {
	return e.setupBase()
}

func (e *PolygonEngine) Draw(obj object.Object, cam *camera.Camera, light camera.Light) error {
	fb, err := e.target()
	if err != nil {
		return err
	}
	if e.numTriangles == 0 {
		return nil
	}

	offset := e.repetitionOffset(e.RepetitionCount())
	positions := e.buffer.Attribute("position")
	colors := e.buffer.Attribute("color")
	normals := e.buffer.Attribute("normal")
	model := cam.Model()

	fragment := func(x, y int, depth float32, color f32.Vec3) {
		if e.opacity < 1 && e.random(x, y, offset) >= e.opacity {
			return
		}
		fb.Plot(x, y, depth, color)
	}

	var corners [3]screenVertex
	for t := 0; t < e.numTriangles; t++ {
		visible := true
		for k := 0; k < 3; k++ {
			i := 3*t + k
			p := toVec3(positions.Vertex(i))
			color := e.shade(toVec3(colors.Vertex(i)), toVec3(normals.Vertex(i)), true, model.Apply(p), cam, light)
			v, ok := project(cam, p, color)
			if !ok {
				visible = false
				break
			}
			corners[k] = v
		}
		if visible {
			rasterTriangle(fb, corners[0], corners[1], corners[2], fragment)
		}
	}
	return nil
}

func (e *PolygonEngine) Release() {
	e.buffer.Release()
	e.buffer = nil
	e.numTriangles = 0
	e.ReleaseResources()
}

func toVec3(v []float32) core.Vec3 {
	return core.NewVec3(float64(v[0]), float64(v[1]), float64(v[2]))
}
