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

// particleSource is the view of point and table objects used to build
// particles
type particleSource interface {
	object.Object
	Coord(i int) core.Vec3
	Color(i int) core.Vec3
}

// ParticleEngine draws point objects by particle-based rendering. Particles
// are split into RepetitionLevel subsets and repetition r draws subset r,
// so the averaged image shows every particle at 1/level opacity.
type ParticleEngine struct {
	Base
	shuffle      bool
	zooming      bool
	buffer       *gpu.BufferObject
	numParticles int
	hasNormals   bool
	initialDepth float64
}

// NewParticleEngine creates a particle engine
func NewParticleEngine(config Config) *ParticleEngine {
	return &ParticleEngine{Base: NewBase(config)}
}

func (e *ParticleEngine) Name() string { return "ParticleEngine" }

// Accepts reports whether k is a point or table object
func (e *ParticleEngine) Accepts(k object.Kind) bool {
	return k == object.PointKind || k == object.TableKind
}

// EnableShuffle randomly permutes particles before splitting them into
// repetition subsets
func (e *ParticleEngine) EnableShuffle()  { e.shuffle = true }
func (e *ParticleEngine) DisableShuffle() { e.shuffle = false }

// EnableZooming scales particle sizes by the ratio of the initial object
// depth to the current one
func (e *ParticleEngine) EnableZooming()  { e.zooming = true }
func (e *ParticleEngine) DisableZooming() { e.zooming = false }

// Buffer returns the particle buffer, nil when nothing is allocated
func (e *ParticleEngine) Buffer() *gpu.BufferObject { return e.buffer }

func (e *ParticleEngine) source(obj object.Object) (particleSource, error) {
	if obj == nil || !e.Accepts(obj.Kind()) {
		return nil, wrongKind(e.Name(), obj)
	}
	src, ok := obj.(particleSource)
	if !ok {
		return nil, wrongKind(e.Name(), obj)
	}
	return src, nil
}

func (e *ParticleEngine) Create(obj object.Object, cam *camera.Camera, light camera.Light) error {
	src, err := e.source(obj)
	if err != nil {
		return err
	}
	e.Release()
	if err := e.createBase(obj, cam); err != nil {
		e.Release()
		return err
	}
	if err := e.upload(src, cam, true); err != nil {
		e.Release()
		return err
	}
	e.SetState(Created)
	return nil
}

func (e *ParticleEngine) Update(obj object.Object, cam *camera.Camera, light camera.Light) error {
	src, err := e.source(obj)
	if err != nil {
		return err
	}
	if e.State() == Released {
		return fmt.Errorf("%s: update before create: %w", e.Name(), core.ErrConfiguration)
	}
	if obj.NumPrimitives() != e.numParticles || obj != e.Object() {
		if err := e.Create(obj, cam, light); err != nil {
			return err
		}
	} else if obj.Version() != e.ObjectVersion() {
		if err := e.upload(src, cam, false); err != nil {
			return err
		}
		e.AttachObject(obj)
	}
	e.SetState(Ready)
	return nil
}

// upload fills the particle buffer, allocating it when allocate is set
func (e *ParticleEngine) upload(src particleSource, cam *camera.Camera, allocate bool) error {
	n := src.NumPrimitives()
	e.numParticles = n
	e.initialDepth = cam.EyeDepth(cam.Model().Apply(src.MinMaxCoords().Center()))
	if n == 0 {
		return nil
	}
	if allocate {
		buffer, err := e.Context().CreateBufferObject(n)
		if err != nil {
			return err
		}
		e.buffer = buffer
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if e.shuffle {
		order = core.Shuffle(n, core.NewRandomSampler(e.seed))
	}

	normalSource, hasNormals := src.(interface{ Normal(int) (core.Vec3, bool) })
	sizeSource, hasSizes := src.(interface{ Size(int) float32 })

	positions := make([]float32, 3*n)
	colors := make([]float32, 3*n)
	normals := make([]float32, 3*n)
	sizes := make([]float32, n)
	indices := make([]float32, 2*n)
	random := e.RandomIndices(n)
	e.hasNormals = false

	for j, i := range order {
		p, c := src.Coord(i), src.Color(i)
		copy(positions[3*j:], []float32{float32(p.X), float32(p.Y), float32(p.Z)})
		copy(colors[3*j:], []float32{float32(c.X), float32(c.Y), float32(c.Z)})
		if hasNormals {
			if nv, ok := normalSource.Normal(i); ok {
				copy(normals[3*j:], []float32{float32(nv.X), float32(nv.Y), float32(nv.Z)})
				e.hasNormals = true
			}
		}
		sizes[j] = 1
		if hasSizes {
			sizes[j] = sizeSource.Size(i)
		}
		indices[2*j] = float32(random[j].X)
		indices[2*j+1] = float32(random[j].Y)
	}

	for _, a := range []struct {
		name       string
		components int
		data       []float32
	}{
		{"position", 3, positions},
		{"color", 3, colors},
		{"normal", 3, normals},
		{"size", 1, sizes},
		{"random_index", 2, indices},
	} {
		if err := e.buffer.SetAttribute(a.name, a.components, a.data); err != nil {
			return err
		}
	}
	e.buffer.Upload()
	return nil
}

func (e *ParticleEngine) Setup(obj object.Object, cam *camera.Camera, light camera.Light) error {
	return e.setupBase()
}

func (e *ParticleEngine) Draw(obj object.Object, cam *camera.Camera, light camera.Light) error {
	fb, err := e.target()
	if err != nil {
		return err
	}
	if e.numParticles == 0 {
		return nil
	}

	level := e.RepetitionLevel()
	rep := e.RepetitionCount() % level
	offset := e.repetitionOffset(rep)

	scale := cam.DevicePixelRatio()
	if e.zooming {
		current := cam.EyeDepth(cam.Model().Apply(obj.MinMaxCoords().Center()))
		if current > 0 && e.initialDepth > 0 {
			scale *= e.initialDepth / current
		}
	}

	positions := e.buffer.Attribute("position")
	colors := e.buffer.Attribute("color")
	normals := e.buffer.Attribute("normal")
	sizes := e.buffer.Attribute("size").Data()
	indices := e.buffer.Attribute("random_index")
	model := cam.Model()

	for j := rep; j < e.numParticles; j += level {
		pv := positions.Vertex(j)
		p := core.NewVec3(float64(pv[0]), float64(pv[1]), float64(pv[2]))

		size := float64(sizes[j]) * scale
		if size < 1 {
			// sub-pixel particles survive with probability size^2
			ri := indices.Vertex(j)
			r := e.randomTexture.Fetch(int(ri[0])+int(offset.X), int(ri[1])+int(offset.Y), 0)
			if float64(r) >= size*size {
				continue
			}
			size = 1
		}

		cv := colors.Vertex(j)
		nv := normals.Vertex(j)
		normal := core.NewVec3(float64(nv[0]), float64(nv[1]), float64(nv[2]))
		color := e.shade(core.NewVec3(float64(cv[0]), float64(cv[1]), float64(cv[2])),
			normal, e.hasNormals && normal.LengthSquared() > 0, model.Apply(p), cam, light)

		v, ok := project(cam, p, color)
		if !ok {
			continue
		}
		rasterPoint(fb, v, int(math.Round(size)), func(x, y int, depth float32, c f32.Vec3) {
			fb.Plot(x, y, depth, c)
		})
	}
	return nil
}

func (e *ParticleEngine) Release() {
	e.buffer.Release()
	e.buffer = nil
	e.numParticles = 0
	e.ReleaseResources()
}
