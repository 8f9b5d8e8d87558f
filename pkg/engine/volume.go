package engine

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// opaqueThreshold ends a ray once accumulated opacity reaches it
const opaqueThreshold = 0.99

// VolumeEngine draws structured volumes by stochastic ray casting. Each
// repetition jitters the ray start by a random fraction of the sampling step;
// rays stop at the depth captured from the framebuffer during Setup so
// geometry drawn earlier in the repetition occludes the volume.
type VolumeEngine struct {
	Base
	transferFunction *transfer.TransferFunction
	adjusted         *transfer.TransferFunction
	samplingStep     float64

	volumeTexture   *gpu.Texture3D
	transferTexture *gpu.Texture2D
	resolution      [3]int
	numCells        int
}

// NewVolumeEngine creates a volume engine with the default transfer
// function and a sampling step of half a voxel
func NewVolumeEngine(config Config) *VolumeEngine {
	return &VolumeEngine{
		Base:             NewBase(config),
		transferFunction: transfer.Default(),
		samplingStep:     0.5,
	}
}

func (e *VolumeEngine) Name() string { return "VolumeEngine" }

// Accepts reports whether k is a structured volume
func (e *VolumeEngine) Accepts(k object.Kind) bool { return k == object.VolumeKind }

// SetTransferFunction sets the transfer function used by the next Create
func (e *VolumeEngine) SetTransferFunction(tf *transfer.TransferFunction) { e.transferFunction = tf }

// TransferFunction returns the transfer function
func (e *VolumeEngine) TransferFunction() *transfer.TransferFunction { return e.transferFunction }

// SetSamplingStep sets the ray step in voxels
func (e *VolumeEngine) SetSamplingStep(step float64) error {
	if step <= 0 {
		return fmt.Errorf("sampling step %g: %w", step, core.ErrConfiguration)
	}
	e.samplingStep = step
	return nil
}

// SamplingStep returns the ray step in voxels
func (e *VolumeEngine) SamplingStep() float64 { return e.samplingStep }

// VolumeTexture returns the uploaded scalar field, nil when nothing is allocated
func (e *VolumeEngine) VolumeTexture() *gpu.Texture3D { return e.volumeTexture }

func (e *VolumeEngine) volume(obj object.Object) (*object.StructuredVolume, error) {
	v, ok := obj.(*object.StructuredVolume)
	if !ok {
		return nil, wrongKind(e.Name(), obj)
	}
	return v, nil
}

func (e *VolumeEngine) Create(obj object.Object, cam *camera.Camera, light camera.Light) error {
	v, err := e.volume(obj)
	if err != nil {
		return err
	}
	if e.transferFunction == nil {
		return fmt.Errorf("%s: no transfer function: %w", e.Name(), core.ErrConfiguration)
	}
	e.Release()
	if err := e.createBase(obj, cam); err != nil {
		e.Release()
		return err
	}
	if err := e.allocate(v, cam); err != nil {
		e.Release()
		return err
	}
	e.SetState(Created)
	return nil
}

// allocate uploads the field and transfer function and sizes the depth
// texture to the framebuffer
func (e *VolumeEngine) allocate(v *object.StructuredVolume, cam *camera.Camera) error {
	e.numCells = v.NumCells()
	e.resolution = v.Resolution()
	if e.numCells == 0 {
		return nil
	}

	w, h := cam.FramebufferSize()
	if err := e.CreateDepthTexture(w, h); err != nil {
		return err
	}

	res := e.resolution
	tex, err := e.Context().CreateTexture3D(res[0], res[1], res[2], 1)
	if err != nil {
		return err
	}
	e.volumeTexture = tex
	if err := e.loadValues(v); err != nil {
		return err
	}

	e.adjusted = e.transferFunction.AdjustRange(v.MinValue(), v.MaxValue())
	n := e.adjusted.Resolution()
	tf, err := e.Context().CreateTexture2D(n, 1, 4)
	if err != nil {
		return err
	}
	e.transferTexture = tf
	for i := 0; i < n; i++ {
		c := e.adjusted.ColorMap().At(i)
		tf.Set(i, 0, 0, float32(c.X))
		tf.Set(i, 0, 1, float32(c.Y))
		tf.Set(i, 0, 2, float32(c.Z))
		tf.Set(i, 0, 3, float32(e.adjusted.OpacityMap().At(i)))
	}
	return nil
}

func (e *VolumeEngine) loadValues(v *object.StructuredVolume) error {
	values := v.Values()
	data := make([]float32, values.Len())
	for i := range data {
		data[i] = float32(values.At(i))
	}
	return e.volumeTexture.Load(data)
}

func (e *VolumeEngine) Update(obj object.Object, cam *camera.Camera, light camera.Light) error {
	v, err := e.volume(obj)
	if err != nil {
		return err
	}
	if e.State() == Released {
		return fmt.Errorf("%s: update before create: %w", e.Name(), core.ErrConfiguration)
	}
	if v.Resolution() != e.resolution || obj != e.Object() {
		if err := e.Create(obj, cam, light); err != nil {
			return err
		}
	} else if obj.Version() != e.ObjectVersion() {
		if e.volumeTexture != nil {
			if err := e.loadValues(v); err != nil {
				return err
			}
		}
		e.AttachObject(obj)
	}
	e.SetState(Ready)
	return nil
}

// Setup binds the textures and captures the framebuffer depth
func (e *VolumeEngine) Setup(obj object.Object, cam *camera.Camera, light camera.Light) error {
	if err := e.setupBase(); err != nil {
		return err
	}
	if e.numCells == 0 {
		return nil
	}
	if err := e.ctx.BindTexture3D(VolumeTextureUnit, e.volumeTexture); err != nil {
		return err
	}
	if err := e.ctx.BindTexture(TransferTextureUnit, e.transferTexture); err != nil {
		return err
	}
	if fb := e.ctx.Framebuffer(); fb.IsValid() {
		return fb.CopyDepth(e.depthTexture)
	}
	return nil
}

// sample trilinearly interpolates the uploaded field at an object-space point
func (e *VolumeEngine) sample(p core.Vec3) float64 {
	res := e.resolution
	var base [3]int
	var frac [3]float64
	for axis := 0; axis < 3; axis++ {
		c := math.Max(0, math.Min(float64(res[axis]-1), p.Component(axis)))
		b := min(int(c), max(res[axis]-2, 0))
		base[axis] = b
		frac[axis] = c - float64(b)
	}
	at := func(di, dj, dk int) float64 {
		i := min(base[0]+di, res[0]-1)
		j := min(base[1]+dj, res[1]-1)
		k := min(base[2]+dk, res[2]-1)
		return float64(e.volumeTexture.At(i, j, k, 0))
	}
	fx, fy, fz := frac[0], frac[1], frac[2]
	c0 := (at(0, 0, 0)*(1-fx)+at(1, 0, 0)*fx)*(1-fy) + (at(0, 1, 0)*(1-fx)+at(1, 1, 0)*fx)*fy
	c1 := (at(0, 0, 1)*(1-fx)+at(1, 0, 1)*fx)*(1-fy) + (at(0, 1, 1)*(1-fx)+at(1, 1, 1)*fx)*fy
	return c0*(1-fz) + c1*fz
}

func (e *VolumeEngine) gradient(p core.Vec3) core.Vec3 {
	dx := core.NewVec3(1, 0, 0)
	dy := core.NewVec3(0, 1, 0)
	dz := core.NewVec3(0, 0, 1)
	return core.NewVec3(
		e.sample(p.Add(dx))-e.sample(p.Subtract(dx)),
		e.sample(p.Add(dy))-e.sample(p.Subtract(dy)),
		e.sample(p.Add(dz))-e.sample(p.Subtract(dz)),
	).Multiply(0.5)
}

// classify looks a value up in the transfer texture
func (e *VolumeEngine) classify(value float64) (core.Vec3, float64) {
	n := e.transferTexture.Width()
	t := e.adjusted.Normalize(value)
	i := max(0, min(n-1, int(math.Round(t*float64(n-1)))))
	c := core.NewVec3(
		float64(e.transferTexture.At(i, 0, 0)),
		float64(e.transferTexture.At(i, 0, 1)),
		float64(e.transferTexture.At(i, 0, 2)),
	)
	return c, float64(e.transferTexture.At(i, 0, 3))
}

func (e *VolumeEngine) Draw(obj object.Object, cam *camera.Camera, light camera.Light) error {
	fb, err := e.target()
	if err != nil {
		return err
	}
	if e.numCells == 0 {
		return nil
	}
	if e.depthTexture.Width() != fb.Width() || e.depthTexture.Height() != fb.Height() {
		return fmt.Errorf("%s: depth texture %dx%d for %dx%d framebuffer: %w", e.Name(),
			e.depthTexture.Width(), e.depthTexture.Height(), fb.Width(), fb.Height(), core.ErrInputMismatch)
	}

	offset := e.repetitionOffset(e.RepetitionCount())
	model := cam.Model()
	forward := cam.Forward()
	res := e.resolution
	box := core.NewAABB(core.Vec3{}, core.NewVec3(float64(res[0]-1), float64(res[1]-1), float64(res[2]-1)))
	step := e.samplingStep
	m, hasModel := e.ShadingModel()
	shaded := e.IsShadingEnabled() && hasModel

	for y := 0; y < fb.Height(); y++ {
		for x := 0; x < fb.Width(); x++ {
			s := (float64(x) + 0.5) / float64(fb.Width())
			t := (float64(y) + 0.5) / float64(fb.Height())
			world := cam.GetRay(s, t)

			// object-space ray with unit direction; distances scale by 1/Scale
			ray := core.NewRay(model.Inverse(world.Origin), world.Direction)
			t0, t1, hit := box.Intersect(ray, 0, math.Inf(1))
			if !hit {
				continue
			}
			if cos := world.Direction.Dot(forward); cos > 0 {
				limit := cam.LinearDepth(float64(e.depthTexture.At(x, y, 0))) / cos / model.Scale
				t1 = math.Min(t1, limit)
			}

			var color core.Vec3
			alpha := 0.0
			jitter := float64(e.random(x, y, offset)) * step
			for d := t0 + jitter; d <= t1 && alpha < opaqueThreshold; d += step {
				p := ray.At(d)
				c, a := e.classify(e.sample(p))
				if a <= 0 {
					continue
				}
				// opacity correction for the step length
				a = 1 - math.Pow(1-a, step)
				if shaded {
					g := e.gradient(p)
					if g.LengthSquared() > 0 {
						wp := model.Apply(p)
						sc := m.Shade(camera.ToF32(c), camera.ToF32(light.Direction(wp)),
							camera.ToF32(g.Negate().Normalize()),
							camera.ToF32(cam.Position().Subtract(wp).Normalize()))
						c = core.NewVec3(float64(sc[0]), float64(sc[1]), float64(sc[2]))
					}
				}
				color = color.Add(c.Multiply((1 - alpha) * a))
				alpha += (1 - alpha) * a
			}
			if alpha > 0 {
				fb.Composite(x, y, f32.Vec3{float32(color.X), float32(color.Y), float32(color.Z)}, float32(alpha))
			}
		}
	}
	return nil
}

func (e *VolumeEngine) Release() {
	e.volumeTexture.Release()
	e.volumeTexture = nil
	e.transferTexture.Release()
	e.transferTexture = nil
	e.adjusted = nil
	e.numCells = 0
	e.resolution = [3]int{}
	e.ReleaseResources()
}
