package renderer

import (
	"image"
	"slices"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/gpu"
)

// RenderStats describes the accumulation state after a frame
type RenderStats struct {
	Repetitions     int // Repetitions averaged into the current image
	RepetitionLevel int // Repetitions per converged image
	Engines         int // Registered engines
	ActiveEngines   int // Engines drawing repetitions
	SkippedEngines  int // Engines excluded by a configuration error
	DisabledEngines int // Engines disabled after an allocation failure
	Width, Height   int // Framebuffer size
}

// Accumulator keeps the running average of the framebuffer over
// repetitions. Each repetition gets weight 1/n, so after R repetitions every
// one contributed 1/R.
type Accumulator struct {
	width, height int
	color         []float32
	samples       int
}

// NewAccumulator creates an empty accumulation buffer
func NewAccumulator(width, height int) *Accumulator {
	return &Accumulator{width: width, height: height, color: make([]float32, 3*width*height)}
}

// Reset discards everything accumulated
func (a *Accumulator) Reset() {
	clear(a.color)
	a.samples = 0
}

// Clone returns a copy of the accumulated average
func (a *Accumulator) Clone() *Accumulator {
	return &Accumulator{width: a.width, height: a.height, color: slices.Clone(a.color), samples: a.samples}
}

// CopyFrom replaces the average with other's, which must have the same size
func (a *Accumulator) CopyFrom(other *Accumulator) {
	copy(a.color, other.color)
	a.samples = other.samples
}

// Samples returns the number of repetitions accumulated
func (a *Accumulator) Samples() int { return a.samples }

// Begin starts a new repetition and returns its 1-based sample number
func (a *Accumulator) Begin() int {
	a.samples++
	return a.samples
}

// AddBounds blends the framebuffer pixels inside bounds into the average as
// sample n. Tiles with disjoint bounds may be added concurrently.
func (a *Accumulator) AddBounds(fb *gpu.Framebuffer, bounds image.Rectangle, n int) {
	pixels := fb.Pixels()
	weight := 1 / float32(n)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := 3 * (y*a.width + x)
			for ch := 0; ch < 3; ch++ {
				a.color[i+ch] += (pixels[i+ch] - a.color[i+ch]) * weight
			}
		}
	}
}

// Color returns the averaged color of a pixel
func (a *Accumulator) Color(x, y int) f32.Vec3 {
	i := 3 * (y*a.width + x)
	return f32.Vec3{a.color[i], a.color[i+1], a.color[i+2]}
}

// Image converts the average to an image with row 0 at the top
func (a *Accumulator) Image() *image.RGBA {
	return gpu.PixelsToImage(a.color, a.width, a.height)
}
