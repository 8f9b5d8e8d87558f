package gpu

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

const (
	// MaxTextureSize bounds each dimension of a 2D texture
	MaxTextureSize = 65536
	// MaxTexture3DSize bounds each dimension of a 3D texture
	MaxTexture3DSize = 4096
)

// Texture2D is a float32 texture with 1 to 4 channels per texel
type Texture2D struct {
	ctx      *Context
	handle   Handle
	width    int
	height   int
	channels int
	data     []float32
}

// CreateTexture2D allocates a zero-filled texture
func (c *Context) CreateTexture2D(width, height, channels int) (*Texture2D, error) {
	if width < 1 || height < 1 || width > MaxTextureSize || height > MaxTextureSize {
		return nil, fmt.Errorf("texture size %dx%d: %w", width, height, core.ErrConfiguration)
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("texture with %d channels: %w", channels, core.ErrConfiguration)
	}
	n := width * height * channels
	h, err := c.allocate(TextureResource, 4*n)
	if err != nil {
		return nil, err
	}
	return &Texture2D{
		ctx:      c,
		handle:   h,
		width:    width,
		height:   height,
		channels: channels,
		data:     make([]float32, n),
	}, nil
}

// Handle returns the texture handle, zero once released
func (t *Texture2D) Handle() Handle {
	if t == nil {
		return 0
	}
	return t.handle
}

// IsValid reports whether the texture holds a live handle
func (t *Texture2D) IsValid() bool { return t != nil && t.handle != 0 }

func (t *Texture2D) Width() int    { return t.width }
func (t *Texture2D) Height() int   { return t.height }
func (t *Texture2D) Channels() int { return t.channels }

// Load replaces the texel data
func (t *Texture2D) Load(data []float32) error {
	if len(data) != len(t.data) {
		return fmt.Errorf("texture load of %d values into %d: %w", len(data), len(t.data), core.ErrInputMismatch)
	}
	copy(t.data, data)
	return nil
}

// Set writes channel ch of texel (x, y)
func (t *Texture2D) Set(x, y, ch int, v float32) {
	t.data[(y*t.width+x)*t.channels+ch] = v
}

// At reads channel ch of texel (x, y)
func (t *Texture2D) At(x, y, ch int) float32 {
	return t.data[(y*t.width+x)*t.channels+ch]
}

// Fetch reads channel ch with repeat wrapping on both axes
func (t *Texture2D) Fetch(x, y, ch int) float32 {
	x %= t.width
	if x < 0 {
		x += t.width
	}
	y %= t.height
	if y < 0 {
		y += t.height
	}
	return t.At(x, y, ch)
}

// Release frees the texture. Releasing twice is a no-op.
func (t *Texture2D) Release() {
	if t == nil || t.handle == 0 {
		return
	}
	t.ctx.unbind(t)
	t.ctx.free(t.handle)
	t.handle = 0
	t.data = nil
}

// Texture3D is a float32 texture with 1 to 4 channels per texel, addressed
// by (x, y, z)
type Texture3D struct {
	ctx                  *Context
	handle               Handle
	width, height, depth int
	channels             int
	data                 []float32
}

// CreateTexture3D allocates a zero-filled 3D texture
func (c *Context) CreateTexture3D(width, height, depth, channels int) (*Texture3D, error) {
	for _, n := range [3]int{width, height, depth} {
		if n < 1 || n > MaxTexture3DSize {
			return nil, fmt.Errorf("texture size %dx%dx%d: %w", width, height, depth, core.ErrConfiguration)
		}
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("texture with %d channels: %w", channels, core.ErrConfiguration)
	}
	n := width * height * depth * channels
	h, err := c.allocate(TextureResource, 4*n)
	if err != nil {
		return nil, err
	}
	return &Texture3D{
		ctx:      c,
		handle:   h,
		width:    width,
		height:   height,
		depth:    depth,
		channels: channels,
		data:     make([]float32, n),
	}, nil
}

// Handle returns the texture handle, zero once released
func (t *Texture3D) Handle() Handle {
	if t == nil {
		return 0
	}
	return t.handle
}

// IsValid reports whether the texture holds a live handle
func (t *Texture3D) IsValid() bool { return t != nil && t.handle != 0 }

func (t *Texture3D) Width() int    { return t.width }
func (t *Texture3D) Height() int   { return t.height }
func (t *Texture3D) Depth() int    { return t.depth }
func (t *Texture3D) Channels() int { return t.channels }

// Load replaces the texel data, x varying fastest and z slowest
func (t *Texture3D) Load(data []float32) error {
	if len(data) != len(t.data) {
		return fmt.Errorf("texture load of %d values into %d: %w", len(data), len(t.data), core.ErrInputMismatch)
	}
	copy(t.data, data)
	return nil
}

func (t *Texture3D) index(x, y, z, ch int) int {
	return ((z*t.height+y)*t.width+x)*t.channels + ch
}

// Set writes channel ch of texel (x, y, z)
func (t *Texture3D) Set(x, y, z, ch int, v float32) { t.data[t.index(x, y, z, ch)] = v }

// At reads channel ch of texel (x, y, z)
func (t *Texture3D) At(x, y, z, ch int) float32 { return t.data[t.index(x, y, z, ch)] }

// Release frees the texture. Releasing twice is a no-op.
func (t *Texture3D) Release() {
	if t == nil || t.handle == 0 {
		return
	}
	t.ctx.unbind(t)
	t.ctx.free(t.handle)
	t.handle = 0
	t.data = nil
}
