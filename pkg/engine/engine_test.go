package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// scene bundles a context with a bound framebuffer and a camera fitted to obj
type scene struct {
	ctx   *gpu.Context
	fb    *gpu.Framebuffer
	cam   *camera.Camera
	light camera.Light
}

func newScene(t *testing.T, obj object.Object, width, height int) *scene {
	t.Helper()
	config := camera.DefaultConfig()
	config.Width, config.Height = width, height
	cam := camera.New(config).WithModel(core.NormalizeXform(obj.MinMaxCoords()))

	ctx := gpu.NewContext()
	fb, err := ctx.CreateFramebuffer(cam.FramebufferSize())
	require.NoError(t, err)
	ctx.BindFramebuffer(fb)
	return &scene{ctx: ctx, fb: fb, cam: cam, light: camera.DefaultLight(cam)}
}

// drawn counts pixels that differ from the black background
func drawn(fb *gpu.Framebuffer) int {
	n := 0
	for y := 0; y < fb.Height(); y++ {
		for x := 0; x < fb.Width(); x++ {
			if fb.Color(x, y) != (f32.Vec3{}) {
				n++
			}
		}
	}
	return n
}

func smallConfig() Config {
	config := DefaultConfig()
	config.RandomTextureSize = 64
	return config
}

func triangle() *object.PolygonObject {
	return object.NewPolygonObject([]float32{-1, -1, 0, 1, -1, 0, 0, 1, 0}, nil)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 512, config.RandomTextureSize)
	assert.Equal(t, 1, config.RepetitionLevel)
	assert.True(t, config.EnableShading)

	e := NewPolygonEngine(config)
	assert.Equal(t, 512, e.RandomTextureSize())
	assert.Equal(t, Released, e.State())
}

func TestRepetitionCounting(t *testing.T) {
	e := NewParticleEngine(DefaultConfig())
	e.SetRepetitionLevel(3)

	for i := 1; i <= 5; i++ {
		e.CountRepetitions()
		assert.LessOrEqual(t, e.RepetitionCount(), e.RepetitionLevel())
	}
	assert.Equal(t, 3, e.RepetitionCount())
	assert.True(t, e.IsConverged())

	e.ResetRepetitions()
	assert.Equal(t, 0, e.RepetitionCount())
	e.CountRepetitions()
	assert.Equal(t, 1, e.RepetitionCount(), "count is a strict +1")

	e.CountRepetitions()
	e.SetRepetitionLevel(1)
	assert.Equal(t, 1, e.RepetitionCount(), "lowering the level clamps the count")
	e.SetRepetitionLevel(0)
	assert.Equal(t, 1, e.RepetitionLevel())
}

func TestReleaseIsIdempotent(t *testing.T) {
	obj := triangle()
	s := newScene(t, obj, 32, 32)

	fresh := NewPolygonEngine(smallConfig())
	fresh.Release()
	fresh.Release()
	assert.Equal(t, Released, fresh.State())

	e := NewPolygonEngine(smallConfig())
	e.Bind(s.ctx)
	require.NoError(t, e.Create(obj, s.cam, s.light))
	assert.Equal(t, Created, e.State())
	assert.True(t, e.Buffer().IsValid())
	assert.True(t, e.RandomTexture().IsValid())

	e.Release()
	e.Release()
	assert.Equal(t, Released, e.State())
	assert.Nil(t, e.Buffer())
	assert.Nil(t, e.RandomTexture())
	assert.Nil(t, e.Object())
	assert.Equal(t, 1, s.ctx.Stats().Live, "only the framebuffer is left")
}

func TestCreateRejectsWrongKind(t *testing.T) {
	obj := object.NewPointObject([]float32{0, 0, 0})
	s := newScene(t, obj, 16, 16)

	engines := []Engine{
		NewPolygonEngine(smallConfig()),
		NewLineEngine(smallConfig()),
		NewVolumeEngine(smallConfig()),
	}
	for _, e := range engines {
		t.Run(e.Name(), func(t *testing.T) {
			e.Bind(s.ctx)
			err := e.Create(obj, s.cam, s.light)
			assert.True(t, errors.Is(err, core.ErrInputMismatch))
			assert.Equal(t, Released, e.State())
		})
	}

	p := NewParticleEngine(smallConfig())
	p.Bind(s.ctx)
	err := p.Create(nil, s.cam, s.light)
	assert.True(t, errors.Is(err, core.ErrInputMismatch))
	assert.Equal(t, 1, s.ctx.Stats().Live)
}

func TestCreateWithoutContext(t *testing.T) {
	obj := triangle()
	cam := camera.New(camera.DefaultConfig())
	e := NewPolygonEngine(smallConfig())
	err := e.Create(obj, cam, camera.DefaultLight(cam))
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Equal(t, Released, e.State())
}

func TestZeroPrimitives(t *testing.T) {
	obj := object.NewPointObject(nil)
	s := newScene(t, obj, 16, 16)

	e := NewParticleEngine(smallConfig())
	e.Bind(s.ctx)
	require.NoError(t, e.Create(obj, s.cam, s.light))
	assert.Equal(t, Created, e.State())
	assert.Nil(t, e.Buffer())
	assert.Equal(t, 0, s.ctx.LiveCount(gpu.BufferResource))

	require.NoError(t, e.Setup(obj, s.cam, s.light))
	require.NoError(t, e.Draw(obj, s.cam, s.light))
	assert.Equal(t, 0, drawn(s.fb))
}

func TestAllocationFailureReleasesPartialResources(t *testing.T) {
	values := make(object.Values[uint8], 27)
	obj, err := object.NewStructuredVolume([3]int{3, 3, 3}, values)
	require.NoError(t, err)
	s := newScene(t, obj, 16, 16)

	// random and depth textures succeed, the volume texture fails
	e := NewVolumeEngine(smallConfig())
	e.Bind(s.ctx)
	s.ctx.FailAllocationsAfter(2, 1)

	err = e.Create(obj, s.cam, s.light)
	assert.True(t, errors.Is(err, core.ErrResourceAllocation))
	assert.Equal(t, Released, e.State())
	assert.Nil(t, e.RandomTexture())
	assert.Nil(t, e.DepthTexture())
	assert.Equal(t, 1, s.ctx.Stats().Live)

	require.NoError(t, e.Create(obj, s.cam, s.light))
	assert.Equal(t, Created, e.State())
}

func TestRandomTexture(t *testing.T) {
	ctx := gpu.NewContext()
	e := NewPolygonEngine(smallConfig())
	e.Bind(ctx)

	assert.True(t, errors.Is(e.SetRandomTextureSize(0), core.ErrConfiguration))
	assert.True(t, errors.Is(e.SetRandomTextureSize(MaxRandomTextureSize+1), core.ErrConfiguration))
	require.NoError(t, e.SetRandomTextureSize(16))

	require.NoError(t, e.CreateRandomTexture())
	tex := e.RandomTexture()
	require.Equal(t, 16, tex.Width())
	first := make([]float32, 0, 256)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := tex.At(x, y, 0)
			assert.GreaterOrEqual(t, v, float32(0))
			assert.Less(t, v, float32(1))
			first = append(first, v)
		}
	}

	require.NoError(t, e.CreateRandomTexture())
	assert.Equal(t, first[17], e.RandomTexture().At(1, 1, 0), "same seed, same texture")
	assert.Equal(t, 1, ctx.Stats().Live, "recreating frees the old texture")

	indices := e.RandomIndices(5000)
	require.Len(t, indices, 5000)
	seen := make(map[int]bool)
	for _, ri := range indices {
		linear := ri.Linear(16)
		assert.GreaterOrEqual(t, linear, 0)
		assert.Less(t, linear, 256)
		seen[linear] = true
	}
	assert.Greater(t, len(seen), 200, "indices cover most texels")
	assert.Equal(t, indices, e.RandomIndices(5000))
}

func TestSetupRequiresShadingModel(t *testing.T) {
	obj := triangle()
	s := newScene(t, obj, 16, 16)
	e := NewPolygonEngine(smallConfig())
	e.Bind(s.ctx)

	assert.True(t, errors.Is(e.Setup(obj, s.cam, s.light), core.ErrConfiguration), "setup before create")

	require.NoError(t, e.Create(obj, s.cam, s.light))
	e.ClearShadingModel()
	err := e.Setup(obj, s.cam, s.light)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
	assert.Equal(t, Created, e.State())

	e.DisableShading()
	require.NoError(t, e.Setup(obj, s.cam, s.light))
	require.NoError(t, e.Setup(obj, s.cam, s.light))
	assert.Same(t, e.RandomTexture(), s.ctx.BoundTexture(RandomTextureUnit))
}

func TestUpdateReuploadsWithoutReallocating(t *testing.T) {
	obj := object.NewPointObject([]float32{0, 0, 0, 1, 1, 1})
	s := newScene(t, obj, 16, 16)
	e := NewParticleEngine(smallConfig())
	e.Bind(s.ctx)
	require.NoError(t, e.Create(obj, s.cam, s.light))
	handle := e.Buffer().Handle()

	require.NoError(t, e.Update(obj, s.cam, s.light))
	assert.Equal(t, Ready, e.State())
	assert.Equal(t, 1, e.Buffer().Uploads(), "unchanged object is not re-uploaded")

	obj.SetColor(255, 0, 0)
	require.NoError(t, e.Update(obj, s.cam, s.light))
	assert.Equal(t, handle, e.Buffer().Handle())
	assert.Equal(t, 2, e.Buffer().Uploads())
	assert.Equal(t, obj.Version(), e.ObjectVersion())

	obj.SetCoords([]float32{0, 0, 0, 1, 1, 1, 2, 2, 2})
	require.NoError(t, e.Update(obj, s.cam, s.light))
	assert.NotEqual(t, handle, e.Buffer().Handle(), "primitive count change reallocates")
	assert.Equal(t, 3, e.Buffer().NumVertices())
	assert.Equal(t, Ready, e.State())
	assert.Equal(t, 1, s.ctx.LiveCount(gpu.BufferResource))
}

func TestDrawWithoutFramebuffer(t *testing.T) {
	obj := triangle()
	s := newScene(t, obj, 16, 16)
	e := NewPolygonEngine(smallConfig())
	e.Bind(s.ctx)
	require.NoError(t, e.Create(obj, s.cam, s.light))

	s.ctx.BindFramebuffer(nil)
	assert.True(t, errors.Is(e.Draw(obj, s.cam, s.light), core.ErrConfiguration))
}
