package engine

import (
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/shading"
)

// MaxRandomTextureSize bounds the side of the random-number texture
const MaxRandomTextureSize = 65536

// RandomIndex addresses one texel of the random-number texture
type RandomIndex struct {
	X, Y uint16
}

// Linear returns the texel index Y*size+X
func (r RandomIndex) Linear(size int) int { return int(r.Y)*size + int(r.X) }

// Base carries the state shared by all engines: context binding, attached
// object, repetition counters, shading model and the random and depth
// textures. Engine variants embed it.
type Base struct {
	ctx   *gpu.Context
	state State

	object        object.Object
	objectVersion uint64

	repetitionLevel int
	repetitionCount int

	shading        shading.Slot
	shadingEnabled bool

	seed              uint64
	randomTextureSize int
	randomTexture     *gpu.Texture2D
	depthTexture      *gpu.Texture2D

	modelView  f32.Mat4
	projection f32.Mat4
	viewport   [4]int
}

// NewBase creates the shared engine state from config
func NewBase(config Config) Base {
	b := Base{
		repetitionLevel:   max(config.RepetitionLevel, 1),
		randomTextureSize: config.RandomTextureSize,
		seed:              config.Seed,
		shadingEnabled:    config.EnableShading,
		shading:           shading.NewSlot(config.Shading),
	}
	if b.randomTextureSize == 0 {
		b.randomTextureSize = DefaultConfig().RandomTextureSize
	}
	return b
}

// Bind attaches the graphics context used by Create
func (b *Base) Bind(ctx *gpu.Context) { b.ctx = ctx }

// Context returns the bound graphics context
func (b *Base) Context() *gpu.Context { return b.ctx }

// State returns the lifecycle state
func (b *Base) State() State { return b.state }

// SetState moves the engine to state s
func (b *Base) SetState(s State) { b.state = s }

// Object returns the attached object, or nil
func (b *Base) Object() object.Object { return b.object }

// ObjectVersion returns the object version last uploaded
func (b *Base) ObjectVersion() uint64 { return b.objectVersion }

// AttachObject records obj and its current version
func (b *Base) AttachObject(obj object.Object) {
	b.object = obj
	b.objectVersion = obj.Version()
}

// DetachObject forgets the attached object
func (b *Base) DetachObject() {
	b.object = nil
	b.objectVersion = 0
}

// RepetitionLevel returns the number of repetitions per converged image
func (b *Base) RepetitionLevel() int { return b.repetitionLevel }

// SetRepetitionLevel sets the repetition level, at least 1. The count is
// clamped so it never exceeds the level.
func (b *Base) SetRepetitionLevel(level int) {
	b.repetitionLevel = max(level, 1)
	b.repetitionCount = min(b.repetitionCount, b.repetitionLevel)
}

// RepetitionCount returns the number of repetitions drawn so far
func (b *Base) RepetitionCount() int { return b.repetitionCount }

// ResetRepetitions restarts accumulation
func (b *Base) ResetRepetitions() { b.repetitionCount = 0 }

// CountRepetitions records one drawn repetition
func (b *Base) CountRepetitions() {
	if b.repetitionCount < b.repetitionLevel {
		b.repetitionCount++
	}
}

// IsConverged reports whether every repetition has been drawn
func (b *Base) IsConverged() bool { return b.repetitionCount >= b.repetitionLevel }

// SetShadingModel replaces the shading model
func (b *Base) SetShadingModel(m shading.Model) { b.shading.Set(m) }

// ClearShadingModel removes the shading model
func (b *Base) ClearShadingModel() { b.shading.Clear() }

// ShadingModel returns the shading model and whether one is set
func (b *Base) ShadingModel() (shading.Model, bool) { return b.shading.Get() }

// EnableShading turns shading on
func (b *Base) EnableShading() { b.shadingEnabled = true }

// DisableShading turns shading off
func (b *Base) DisableShading() { b.shadingEnabled = false }

// IsShadingEnabled reports whether shading is applied
func (b *Base) IsShadingEnabled() bool { return b.shadingEnabled }

// SetRandomTextureSize sets the side of the random-number texture used by
// the next CreateRandomTexture
func (b *Base) SetRandomTextureSize(size int) error {
	if size < 1 || size > MaxRandomTextureSize {
		return fmt.Errorf("random texture size %d outside [1, %d]: %w", size, MaxRandomTextureSize, core.ErrConfiguration)
	}
	b.randomTextureSize = size
	return nil
}

// RandomTextureSize returns the side of the random-number texture
func (b *Base) RandomTextureSize() int { return b.randomTextureSize }

// RandomTexture returns the random-number texture, nil before creation
func (b *Base) RandomTexture() *gpu.Texture2D { return b.randomTexture }

// DepthTexture returns the depth texture, nil unless created
func (b *Base) DepthTexture() *gpu.Texture2D { return b.depthTexture }

// CreateRandomTexture fills an N x N texture with independent uniform values
// in [0,1). Recreating it with the same seed yields the same values.
func (b *Base) CreateRandomTexture() error {
	if b.ctx == nil {
		return fmt.Errorf("random texture without a context: %w", core.ErrConfiguration)
	}
	n := b.randomTextureSize
	if n < 1 || n > MaxRandomTextureSize {
		return fmt.Errorf("random texture size %d outside [1, %d]: %w", n, MaxRandomTextureSize, core.ErrConfiguration)
	}
	tex, err := b.ctx.CreateTexture2D(n, n, 1)
	if err != nil {
		return err
	}

	rng := core.NewRand(b.seed, 0)
	data := make([]float32, n*n)
	for i := range data {
		data[i] = rng.Float32()
	}
	if err := tex.Load(data); err != nil {
		tex.Release()
		return err
	}

	b.randomTexture.Release()
	b.randomTexture = tex
	return nil
}

// RandomIndices returns n texel coordinates, each uniform over the N^2
// texels of the random texture. Repeats are permitted.
func (b *Base) RandomIndices(n int) []RandomIndex {
	return randomIndices(core.NewRand(b.seed, 1), n, b.randomTextureSize)
}

func randomIndices(rng interface{ IntN(int) int }, n, size int) []RandomIndex {
	out := make([]RandomIndex, n)
	for i := range out {
		linear := rng.IntN(size * size)
		out[i] = RandomIndex{X: uint16(linear % size), Y: uint16(linear / size)}
	}
	return out
}

// repetitionOffset returns the texel offset decorrelating repetition r
func (b *Base) repetitionOffset(r int) RandomIndex {
	return randomIndices(core.NewRand(b.seed, uint64(r)+2), 1, b.randomTextureSize)[0]
}

// random reads the random texture at a pixel shifted by offset
func (b *Base) random(x, y int, offset RandomIndex) float32 {
	return b.randomTexture.Fetch(x+int(offset.X), y+int(offset.Y), 0)
}

// CreateDepthTexture allocates a single-channel depth texture
func (b *Base) CreateDepthTexture(width, height int) error {
	if b.ctx == nil {
		return fmt.Errorf("depth texture without a context: %w", core.ErrConfiguration)
	}
	tex, err := b.ctx.CreateTexture2D(width, height, 1)
	if err != nil {
		return err
	}
	b.depthTexture.Release()
	b.depthTexture = tex
	return nil
}

// RecordMatrices keeps the camera matrices in effect at creation
func (b *Base) RecordMatrices(cam *camera.Camera) {
	b.modelView = cam.ModelView()
	b.projection = cam.Projection()
	b.viewport = cam.Viewport()
}

// InitialModelView returns the model-view matrix recorded at creation
func (b *Base) InitialModelView() f32.Mat4 { return b.modelView }

// InitialProjection returns the projection matrix recorded at creation
func (b *Base) InitialProjection() f32.Mat4 { return b.projection }

// InitialViewport returns the viewport recorded at creation
func (b *Base) InitialViewport() [4]int { return b.viewport }

// createBase validates the context and builds the random texture. On error
// nothing stays allocated.
func (b *Base) createBase(obj object.Object, cam *camera.Camera) error {
	if b.ctx == nil {
		return fmt.Errorf("create without a context: %w", core.ErrConfiguration)
	}
	if err := b.CreateRandomTexture(); err != nil {
		return err
	}
	b.RecordMatrices(cam)
	b.AttachObject(obj)
	b.repetitionCount = 0
	return nil
}

// ReleaseResources frees the textures and returns to Released. It is safe
// to call repeatedly.
func (b *Base) ReleaseResources() {
	b.randomTexture.Release()
	b.randomTexture = nil
	b.depthTexture.Release()
	b.depthTexture = nil
	b.DetachObject()
	b.state = Released
}

// setupBase checks the configuration and binds the shared textures
func (b *Base) setupBase() error {
	if b.state == Released {
		return fmt.Errorf("setup before create: %w", core.ErrConfiguration)
	}
	if b.shadingEnabled && !b.shading.IsSet() {
		return fmt.Errorf("shading enabled without a shading model: %w", core.ErrConfiguration)
	}
	if err := b.ctx.BindTexture(RandomTextureUnit, b.randomTexture); err != nil {
		return err
	}
	if b.depthTexture != nil {
		return b.ctx.BindTexture(DepthTextureUnit, b.depthTexture)
	}
	return nil
}

// target returns the bound framebuffer
func (b *Base) target() (*gpu.Framebuffer, error) {
	if b.state == Released {
		return nil, fmt.Errorf("draw before create: %w", core.ErrConfiguration)
	}
	fb := b.ctx.Framebuffer()
	if !fb.IsValid() {
		return nil, fmt.Errorf("draw without a framebuffer: %w", core.ErrConfiguration)
	}
	return fb, nil
}

// shade applies the shading model to a surface point given in world space
func (b *Base) shade(color core.Vec3, normal core.Vec3, hasNormal bool, p core.Vec3, cam *camera.Camera, light camera.Light) f32.Vec3 {
	c := camera.ToF32(color)
	m, ok := b.shading.Get()
	if !b.shadingEnabled || !ok || !hasNormal {
		return c
	}
	L := camera.ToF32(light.Direction(p))
	N := camera.ToF32(normal.Normalize())
	V := camera.ToF32(cam.Position().Subtract(p).Normalize())
	return m.Shade(c, L, N, V)
}

// wrongKind reports an object the engine cannot draw
func wrongKind(engine string, obj object.Object) error {
	if obj == nil {
		return fmt.Errorf("%s: no object: %w", engine, core.ErrInputMismatch)
	}
	return fmt.Errorf("%s cannot draw a %s object: %w", engine, obj.Kind(), core.ErrInputMismatch)
}
