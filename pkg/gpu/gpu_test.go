package gpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

func TestTextureLifecycle(t *testing.T) {
	ctx := NewContext()
	tex, err := ctx.CreateTexture2D(4, 2, 1)
	require.NoError(t, err)
	assert.True(t, tex.IsValid())
	assert.Equal(t, Stats{Created: 1, Live: 1}, ctx.Stats())

	require.NoError(t, ctx.BindTexture(0, tex))
	assert.Same(t, tex, ctx.BoundTexture(0))

	tex.Release()
	tex.Release()
	assert.Equal(t, Handle(0), tex.Handle())
	assert.Nil(t, ctx.BoundTexture(0), "release unbinds")
	assert.Equal(t, Stats{Created: 1, Released: 1}, ctx.Stats())

	err = ctx.BindTexture(1, tex)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestTextureValidation(t *testing.T) {
	ctx := NewContext()
	tests := []struct {
		name                    string
		width, height, channels int
	}{
		{"zero width", 0, 4, 1},
		{"too tall", 4, MaxTextureSize + 1, 1},
		{"no channels", 4, 4, 0},
		{"five channels", 4, 4, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctx.CreateTexture2D(tt.width, tt.height, tt.channels)
			assert.True(t, errors.Is(err, core.ErrConfiguration))
		})
	}
	assert.Equal(t, 0, ctx.Stats().Created)
}

func TestTextureFetchWraps(t *testing.T) {
	ctx := NewContext()
	tex, err := ctx.CreateTexture2D(2, 2, 1)
	require.NoError(t, err)
	require.NoError(t, tex.Load([]float32{0, 1, 2, 3}))

	assert.Equal(t, float32(3), tex.Fetch(3, 1, 0))
	assert.Equal(t, float32(1), tex.Fetch(-1, 0, 0))
	assert.Equal(t, float32(2), tex.Fetch(0, -1, 0))

	err = tex.Load([]float32{1})
	assert.True(t, errors.Is(err, core.ErrInputMismatch))
}

func TestAllocationFailure(t *testing.T) {
	ctx := NewContext()
	ctx.FailAllocations(1)

	_, err := ctx.CreateBufferObject(10)
	assert.True(t, errors.Is(err, core.ErrResourceAllocation))

	b, err := ctx.CreateBufferObject(10)
	require.NoError(t, err)
	assert.True(t, b.IsValid())
	assert.Equal(t, 1, ctx.Stats().Live)
}

func TestBufferUploadTracksDirtiness(t *testing.T) {
	ctx := NewContext()
	b, err := ctx.CreateBufferObject(2)
	require.NoError(t, err)

	err = b.SetAttribute("position", 3, []float32{1, 2, 3})
	assert.True(t, errors.Is(err, core.ErrInputMismatch))

	require.NoError(t, b.SetAttribute("position", 3, []float32{1, 2, 3, 4, 5, 6}))
	assert.True(t, b.IsDirty())
	assert.Nil(t, b.Attribute("position").Data(), "nothing uploaded yet")

	b.Upload()
	b.Upload()
	assert.False(t, b.IsDirty())
	assert.Equal(t, 1, b.Uploads())
	assert.Equal(t, []float32{4, 5, 6}, b.Attribute("position").Vertex(1))
}

func TestBufferMultiDraw(t *testing.T) {
	ctx := NewContext()
	b, err := ctx.CreateBufferObject(6)
	require.NoError(t, err)

	require.NoError(t, b.SetMultiDraw([]int32{0, 3}, []int32{3, 3}))
	assert.Equal(t, []int32{0, 3}, b.First())
	assert.Equal(t, []int32{3, 3}, b.Count())

	err = b.SetMultiDraw([]int32{4}, []int32{3})
	assert.True(t, errors.Is(err, core.ErrInputMismatch))
	err = b.SetMultiDraw([]int32{0}, nil)
	assert.True(t, errors.Is(err, core.ErrInputMismatch))

	b.Release()
	b.Release()
	assert.False(t, b.IsValid())
	assert.Nil(t, b.First())
	assert.Equal(t, Stats{Created: 1, Released: 1}, ctx.Stats())
}

func TestFramebufferDepthTest(t *testing.T) {
	ctx := NewContext()
	fb, err := ctx.CreateFramebuffer(4, 3)
	require.NoError(t, err)
	ctx.BindFramebuffer(fb)

	red := f32.Vec3{1, 0, 0}
	blue := f32.Vec3{0, 0, 1}
	assert.True(t, fb.Plot(1, 2, 0.5, red))
	assert.False(t, fb.Plot(1, 2, 0.7, blue), "farther fragment is rejected")
	assert.True(t, fb.Plot(1, 2, 0.2, blue))
	assert.False(t, fb.Plot(4, 0, 0, red), "outside")
	assert.Equal(t, blue, fb.Color(1, 2))
	assert.Equal(t, float32(0.2), fb.Depth(1, 2))

	// row 2 is the top row once flipped
	img := fb.Image()
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).B)

	fb.Composite(0, 0, f32.Vec3{0.25, 0, 0}, 0.5)
	assert.Equal(t, float32(0.25), fb.Color(0, 0)[0])

	depth, err := ctx.CreateTexture2D(4, 3, 1)
	require.NoError(t, err)
	require.NoError(t, fb.CopyDepth(depth))
	assert.Equal(t, float32(0.2), depth.At(1, 2, 0))

	small, err := ctx.CreateTexture2D(2, 2, 1)
	require.NoError(t, err)
	assert.True(t, errors.Is(fb.CopyDepth(small), core.ErrInputMismatch))

	fb.Release()
	assert.Nil(t, ctx.Framebuffer())
	fb.Release()
	assert.Equal(t, 2, ctx.Stats().Live)
	assert.Equal(t, 2, ctx.LiveCount(TextureResource))
}

func TestTexture3D(t *testing.T) {
	ctx := NewContext()
	tex, err := ctx.CreateTexture3D(2, 3, 70000/3, 1)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Nil(t, tex)

	tex, err = ctx.CreateTexture3D(4, 300, 300, 1)
	require.NoError(t, err)
	tex.Set(3, 299, 299, 0, 5)
	assert.Equal(t, float32(5), tex.At(3, 299, 299, 0))
	assert.Equal(t, float32(0), tex.At(3, 299, 298, 0))
	assert.ErrorIs(t, tex.Load(make([]float32, 3)), core.ErrInputMismatch)

	require.NoError(t, ctx.BindTexture3D(2, tex))
	assert.Same(t, tex, ctx.BoundTexture(2))
	tex.Release()
	tex.Release()
	assert.Nil(t, ctx.BoundTexture(2), "release unbinds")
	assert.Equal(t, Stats{Created: 1, Released: 1}, ctx.Stats())
	assert.ErrorIs(t, ctx.BindTexture3D(2, tex), core.ErrConfiguration)
}
