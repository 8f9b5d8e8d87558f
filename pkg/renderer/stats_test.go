package renderer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/gpu"
)

func TestAccumulatorRunningAverage(t *testing.T) {
	ctx := gpu.NewContext()
	fb, err := ctx.CreateFramebuffer(4, 2)
	require.NoError(t, err)
	accum := NewAccumulator(4, 2)
	all := image.Rect(0, 0, 4, 2)

	values := []float32{1, 0, 0.5, 0.5}
	for _, v := range values {
		fb.Clear(f32.Vec3{v, v, v})
		accum.AddBounds(fb, all, accum.Begin())
	}

	assert.Equal(t, 4, accum.Samples())
	assert.InDelta(t, 0.5, accum.Color(3, 1)[0], 1e-6)

	accum.Reset()
	assert.Equal(t, 0, accum.Samples())
	assert.Equal(t, f32.Vec3{}, accum.Color(0, 0))
}

func TestAccumulatorTilesAreIndependent(t *testing.T) {
	ctx := gpu.NewContext()
	fb, err := ctx.CreateFramebuffer(4, 4)
	require.NoError(t, err)
	fb.Clear(f32.Vec3{1, 1, 1})

	accum := NewAccumulator(4, 4)
	accum.AddBounds(fb, image.Rect(0, 0, 2, 4), accum.Begin())

	assert.Equal(t, f32.Vec3{1, 1, 1}, accum.Color(1, 3))
	assert.Equal(t, f32.Vec3{}, accum.Color(2, 0))
}

func TestAccumulatorImageIsFlipped(t *testing.T) {
	ctx := gpu.NewContext()
	fb, err := ctx.CreateFramebuffer(2, 2)
	require.NoError(t, err)
	fb.Plot(0, 0, 0, f32.Vec3{1, 0, 0})

	accum := NewAccumulator(2, 2)
	accum.AddBounds(fb, image.Rect(0, 0, 2, 2), accum.Begin())

	img := accum.Image()
	assert.Equal(t, uint8(255), img.RGBAAt(0, 1).R, "framebuffer row 0 is the bottom image row")
	assert.Equal(t, uint8(0), img.RGBAAt(0, 0).R)
}
