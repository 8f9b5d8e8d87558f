package gpu

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Attribute is one named vertex attribute array
type Attribute struct {
	Components int
	host       []float32
	device     []float32
}

// BufferObject holds per-vertex attribute arrays plus optional first/count
// arrays describing independent primitives for multi-draw. Host-side writes
// mark the buffer dirty until Upload copies them to device storage.
type BufferObject struct {
	ctx         *Context
	handle      Handle
	numVertices int
	attributes  map[string]*Attribute
	order       []string
	first       []int32
	count       []int32
	dirty       bool
	uploads     int
}

// CreateBufferObject allocates a buffer for numVertices vertices
func (c *Context) CreateBufferObject(numVertices int) (*BufferObject, error) {
	if numVertices < 0 {
		return nil, fmt.Errorf("buffer with %d vertices: %w", numVertices, core.ErrConfiguration)
	}
	h, err := c.allocate(BufferResource, numVertices)
	if err != nil {
		return nil, err
	}
	return &BufferObject{
		ctx:         c,
		handle:      h,
		numVertices: numVertices,
		attributes:  make(map[string]*Attribute),
	}, nil
}

// Handle returns the buffer handle, zero once released
func (b *BufferObject) Handle() Handle {
	if b == nil {
		return 0
	}
	return b.handle
}

// IsValid reports whether the buffer holds a live handle
func (b *BufferObject) IsValid() bool { return b != nil && b.handle != 0 }

// NumVertices returns the vertex capacity
func (b *BufferObject) NumVertices() int { return b.numVertices }

// SetAttribute stages data for the named attribute. data must hold
// components values per vertex.
func (b *BufferObject) SetAttribute(name string, components int, data []float32) error {
	if components < 1 || components > 4 {
		return fmt.Errorf("attribute %q with %d components: %w", name, components, core.ErrConfiguration)
	}
	if len(data) != components*b.numVertices {
		return fmt.Errorf("attribute %q has %d values, want %d: %w",
			name, len(data), components*b.numVertices, core.ErrInputMismatch)
	}
	a, ok := b.attributes[name]
	if !ok {
		a = &Attribute{}
		b.attributes[name] = a
		b.order = append(b.order, name)
	}
	a.Components = components
	a.host = data
	b.dirty = true
	return nil
}

// SetMultiDraw stages first/count arrays; every range must lie within the
// vertex capacity
func (b *BufferObject) SetMultiDraw(first, count []int32) error {
	if len(first) != len(count) {
		return fmt.Errorf("%d firsts and %d counts: %w", len(first), len(count), core.ErrInputMismatch)
	}
	for i := range first {
		if first[i] < 0 || count[i] < 0 || int(first[i])+int(count[i]) > b.numVertices {
			return fmt.Errorf("draw range %d [%d, +%d) exceeds %d vertices: %w",
				i, first[i], count[i], b.numVertices, core.ErrInputMismatch)
		}
	}
	b.first, b.count = first, count
	b.dirty = true
	return nil
}

// IsDirty reports whether staged data awaits Upload
func (b *BufferObject) IsDirty() bool { return b.dirty }

// Uploads returns how many uploads have been performed
func (b *BufferObject) Uploads() int { return b.uploads }

// Upload copies staged attribute data to device storage. Clean buffers are
// left untouched.
func (b *BufferObject) Upload() {
	if !b.IsValid() || !b.dirty {
		return
	}
	for _, name := range b.order {
		a := b.attributes[name]
		if len(a.device) != len(a.host) {
			a.device = make([]float32, len(a.host))
		}
		copy(a.device, a.host)
	}
	b.dirty = false
	b.uploads++
}

// Attribute returns the uploaded data of the named attribute, or nil
func (b *BufferObject) Attribute(name string) *Attribute {
	return b.attributes[name]
}

// Data returns the device-side values
func (a *Attribute) Data() []float32 {
	if a == nil {
		return nil
	}
	return a.device
}

// Vertex returns the components of vertex i
func (a *Attribute) Vertex(i int) []float32 {
	return a.device[i*a.Components : (i+1)*a.Components]
}

// First returns the multi-draw start indices
func (b *BufferObject) First() []int32 { return b.first }

// Count returns the multi-draw vertex counts
func (b *BufferObject) Count() []int32 { return b.count }

// Release frees the buffer. Releasing twice is a no-op.
func (b *BufferObject) Release() {
	if b == nil || b.handle == 0 {
		return
	}
	b.ctx.free(b.handle)
	b.handle = 0
	b.attributes = make(map[string]*Attribute)
	b.order = nil
	b.first, b.count = nil, nil
	b.dirty = false
}
