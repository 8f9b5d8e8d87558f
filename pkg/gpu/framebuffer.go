package gpu

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Framebuffer is an RGB color buffer with a depth buffer. Row 0 is the
// bottom of the image; depth 1 is the far plane.
type Framebuffer struct {
	ctx    *Context
	handle Handle
	width  int
	height int
	color  []float32
	depth  []float32
}

// CreateFramebuffer allocates a cleared framebuffer
func (c *Context) CreateFramebuffer(width, height int) (*Framebuffer, error) {
	if width < 1 || height < 1 || width > MaxTextureSize || height > MaxTextureSize {
		return nil, fmt.Errorf("framebuffer size %dx%d: %w", width, height, core.ErrConfiguration)
	}
	h, err := c.allocate(FramebufferResource, width*height*16)
	if err != nil {
		return nil, err
	}
	fb := &Framebuffer{
		ctx:    c,
		handle: h,
		width:  width,
		height: height,
		color:  make([]float32, 3*width*height),
		depth:  make([]float32, width*height),
	}
	fb.Clear(f32.Vec3{})
	return fb, nil
}

func (fb *Framebuffer) Width() int  { return fb.width }
func (fb *Framebuffer) Height() int { return fb.height }

// Handle returns the framebuffer handle, zero once released
func (fb *Framebuffer) Handle() Handle {
	if fb == nil {
		return 0
	}
	return fb.handle
}

// IsValid reports whether the framebuffer holds a live handle
func (fb *Framebuffer) IsValid() bool { return fb != nil && fb.handle != 0 }

// Clear fills the color buffer with background and resets depth to 1
func (fb *Framebuffer) Clear(background f32.Vec3) {
	for i := 0; i < fb.width*fb.height; i++ {
		fb.color[3*i] = background[0]
		fb.color[3*i+1] = background[1]
		fb.color[3*i+2] = background[2]
		fb.depth[i] = 1
	}
}

// Contains reports whether (x, y) is a pixel of the framebuffer
func (fb *Framebuffer) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < fb.width && y < fb.height
}

// Plot writes a fragment if it passes the depth test and reports whether it
// was written
func (fb *Framebuffer) Plot(x, y int, depth float32, c f32.Vec3) bool {
	if !fb.Contains(x, y) {
		return false
	}
	i := y*fb.width + x
	if !(depth < fb.depth[i]) {
		return false
	}
	fb.depth[i] = depth
	fb.color[3*i] = c[0]
	fb.color[3*i+1] = c[1]
	fb.color[3*i+2] = c[2]
	return true
}

// Composite blends a premultiplied front-to-back result over the pixel
func (fb *Framebuffer) Composite(x, y int, c f32.Vec3, alpha float32) {
	i := y*fb.width + x
	for ch := 0; ch < 3; ch++ {
		fb.color[3*i+ch] = c[ch] + (1-alpha)*fb.color[3*i+ch]
	}
}

// Depth returns the depth of pixel (x, y)
func (fb *Framebuffer) Depth(x, y int) float32 { return fb.depth[y*fb.width+x] }

// Color returns the color of pixel (x, y)
func (fb *Framebuffer) Color(x, y int) f32.Vec3 {
	i := 3 * (y*fb.width + x)
	return f32.Vec3{fb.color[i], fb.color[i+1], fb.color[i+2]}
}

// Pixels returns the packed RGB color buffer
func (fb *Framebuffer) Pixels() []float32 { return fb.color }

// CopyDepth copies the depth buffer into a single-channel texture of the
// same size
func (fb *Framebuffer) CopyDepth(t *Texture2D) error {
	if !t.IsValid() || t.width != fb.width || t.height != fb.height || t.channels != 1 {
		return fmt.Errorf("depth copy into %dx%dx%d texture from %dx%d framebuffer: %w",
			t.width, t.height, t.channels, fb.width, fb.height, core.ErrInputMismatch)
	}
	copy(t.data, fb.depth)
	return nil
}

// Image converts the color buffer to an image with row 0 at the top
func (fb *Framebuffer) Image() *image.RGBA {
	return PixelsToImage(fb.color, fb.width, fb.height)
}

// PixelsToImage converts packed bottom-up RGB values in [0,1] to an image
func PixelsToImage(pixels []float32, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := height - 1 - y
		for x := 0; x < width; x++ {
			i := 3 * (row*width + x)
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(pixels[i]),
				G: toByte(pixels[i+1]),
				B: toByte(pixels[i+2]),
				A: 255,
			})
		}
	}
	return img
}

func toByte(v float32) uint8 {
	return uint8(math.Round(float64(max(0, min(1, v))) * 255))
}

// Release frees the framebuffer. Releasing twice is a no-op.
func (fb *Framebuffer) Release() {
	if fb == nil || fb.handle == 0 {
		return
	}
	if fb.ctx.framebuffer == fb {
		fb.ctx.framebuffer = nil
	}
	fb.ctx.free(fb.handle)
	fb.handle = 0
	fb.color, fb.depth = nil, nil
}
