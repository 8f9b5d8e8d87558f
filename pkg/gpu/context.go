// Package gpu is a software graphics context: it hands out resource
// handles, keeps texture unit and framebuffer bindings, and tracks live
// resources so that leaks and churn are observable.
package gpu

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Handle identifies a live resource. The zero handle is never allocated.
type Handle uint32

// ResourceKind names the kind of resource behind a handle
type ResourceKind int

const (
	BufferResource ResourceKind = iota
	TextureResource
	FramebufferResource
)

func (k ResourceKind) String() string {
	switch k {
	case BufferResource:
		return "buffer"
	case TextureResource:
		return "texture"
	case FramebufferResource:
		return "framebuffer"
	default:
		return fmt.Sprintf("resource(%d)", int(k))
	}
}

// Stats counts resource allocations over the context lifetime
type Stats struct {
	Created  int
	Released int
	Live     int
}

// MaxTextureUnits is the number of texture binding points
const MaxTextureUnits = 8

// Context owns all resources. It is not safe for concurrent use: every call
// must come from the goroutine that currently owns the context.
type Context struct {
	next        Handle
	live        map[Handle]ResourceKind
	created     int
	released    int
	failSkip    int
	failNext    int
	framebuffer *Framebuffer
	units       [MaxTextureUnits]Texture
}

// NewContext creates an empty context
func NewContext() *Context {
	return &Context{live: make(map[Handle]ResourceKind)}
}

// FailAllocations makes the next n allocations fail with
// core.ErrResourceAllocation
func (c *Context) FailAllocations(n int) { c.FailAllocationsAfter(0, n) }

// FailAllocationsAfter lets skip allocations succeed, then fails the next n
func (c *Context) FailAllocationsAfter(skip, n int) {
	c.failSkip, c.failNext = skip, n
}

func (c *Context) allocate(kind ResourceKind, bytes int) (Handle, error) {
	if c.failSkip > 0 {
		c.failSkip--
	} else if c.failNext > 0 {
		c.failNext--
		return 0, fmt.Errorf("allocating %s of %d bytes: %w", kind, bytes, core.ErrResourceAllocation)
	}
	c.next++
	c.live[c.next] = kind
	c.created++
	return c.next, nil
}

func (c *Context) free(h Handle) {
	if _, ok := c.live[h]; !ok {
		return
	}
	delete(c.live, h)
	c.released++
}

// IsLive reports whether h names an allocated resource
func (c *Context) IsLive(h Handle) bool {
	_, ok := c.live[h]
	return ok
}

// Stats returns allocation counters
func (c *Context) Stats() Stats {
	return Stats{Created: c.created, Released: c.released, Live: len(c.live)}
}

// LiveCount returns the number of live resources of one kind
func (c *Context) LiveCount(kind ResourceKind) int {
	n := 0
	for _, k := range c.live {
		if k == kind {
			n++
		}
	}
	return n
}

// BindFramebuffer makes fb the draw target; nil unbinds
func (c *Context) BindFramebuffer(fb *Framebuffer) { c.framebuffer = fb }

// Framebuffer returns the bound draw target
func (c *Context) Framebuffer() *Framebuffer { return c.framebuffer }

// Texture is a texture of any dimension that can be bound to a unit
type Texture interface {
	Handle() Handle
	IsValid() bool
}

// BindTexture binds t to a texture unit; nil clears the unit
func (c *Context) BindTexture(unit int, t *Texture2D) error {
	if t == nil {
		return c.bind(unit, nil)
	}
	return c.bind(unit, t)
}

// BindTexture3D binds t to a texture unit; nil clears the unit
func (c *Context) BindTexture3D(unit int, t *Texture3D) error {
	if t == nil {
		return c.bind(unit, nil)
	}
	return c.bind(unit, t)
}

func (c *Context) bind(unit int, t Texture) error {
	if unit < 0 || unit >= MaxTextureUnits {
		return fmt.Errorf("texture unit %d out of range: %w", unit, core.ErrConfiguration)
	}
	if t != nil && !t.IsValid() {
		return fmt.Errorf("binding released texture to unit %d: %w", unit, core.ErrConfiguration)
	}
	c.units[unit] = t
	return nil
}

// UnbindTexture clears a texture unit
func (c *Context) UnbindTexture(unit int) {
	if unit >= 0 && unit < MaxTextureUnits {
		c.units[unit] = nil
	}
}

// BoundTexture returns the texture bound to a unit, or nil
func (c *Context) BoundTexture(unit int) Texture {
	if unit < 0 || unit >= MaxTextureUnits {
		return nil
	}
	return c.units[unit]
}

// unbind drops every binding that refers to a released texture
func (c *Context) unbind(t Texture) {
	for i, b := range c.units {
		if b == t {
			c.units[i] = nil
		}
	}
}
