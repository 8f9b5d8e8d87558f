// Package camera provides the read-only view state handed to rendering
// engines: camera matrices, viewport, device pixel ratio and the light.
package camera

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Config describes a perspective camera looking at a normalized scene
type Config struct {
	Center           core.Vec3 // Camera position
	LookAt           core.Vec3 // Point the camera is looking at
	Up               core.Vec3 // Up direction
	Width            int       // Window width in logical pixels
	Height           int       // Window height in logical pixels
	VFov             float64   // Vertical field of view in degrees
	Near             float64   // Near clipping distance
	Far              float64   // Far clipping distance
	DevicePixelRatio float64   // Framebuffer pixels per logical pixel
}

// DefaultConfig returns a camera on the +z axis looking at the origin
func DefaultConfig() Config {
	return Config{
		Center:           core.NewVec3(0, 0, 6),
		LookAt:           core.NewVec3(0, 0, 0),
		Up:               core.NewVec3(0, 1, 0),
		Width:            512,
		Height:           512,
		VFov:             30,
		Near:             0.1,
		Far:              100,
		DevicePixelRatio: 1,
	}
}

// Camera generates rays and projects points for one view. A Camera is
// immutable; derive modified cameras with WithSize and WithModel.
type Camera struct {
	config Config
	model  core.Xform

	u, v, w         core.Vec3 // camera basis, w points backwards
	lowerLeftCorner core.Vec3
	horizontal      core.Vec3
	vertical        core.Vec3

	view       f32.Mat4
	projection f32.Mat4
}

// New creates a camera from config
func New(config Config) *Camera {
	if config.DevicePixelRatio <= 0 {
		config.DevicePixelRatio = 1
	}
	if config.Width < 1 {
		config.Width = 1
	}
	if config.Height < 1 {
		config.Height = 1
	}
	c := &Camera{config: config, model: core.IdentityXform()}

	aspectRatio := float64(config.Width) / float64(config.Height)
	theta := config.VFov * math.Pi / 180
	viewportHeight := 2 * math.Tan(theta/2)
	viewportWidth := aspectRatio * viewportHeight

	c.w = config.Center.Subtract(config.LookAt).Normalize()
	c.u = config.Up.Cross(c.w).Normalize()
	c.v = c.w.Cross(c.u)

	c.horizontal = c.u.Multiply(viewportWidth)
	c.vertical = c.v.Multiply(viewportHeight)
	c.lowerLeftCorner = config.Center.
		Subtract(c.horizontal.Multiply(0.5)).
		Subtract(c.vertical.Multiply(0.5)).
		Subtract(c.w)

	c.view = lookAt(config.Center, c.u, c.v, c.w)
	c.projection = perspective(theta, aspectRatio, config.Near, config.Far)
	return c
}

// Config returns the configuration the camera was built from
func (c *Camera) Config() Config { return c.config }

// WithSize returns a copy of the camera for a different window size
func (c *Camera) WithSize(width, height int) *Camera {
	config := c.config
	config.Width, config.Height = width, height
	out := New(config)
	out.model = c.model
	return out
}

// WithModel returns a copy of the camera whose model transform maps object
// coordinates into world space
func (c *Camera) WithModel(model core.Xform) *Camera {
	out := *c
	out.model = model
	return &out
}

// Model returns the object-to-world transform
func (c *Camera) Model() core.Xform { return c.model }

// Equal reports whether two cameras produce identical views
func (c *Camera) Equal(other *Camera) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.config == other.config && c.model == other.model
}

// WindowSize returns the window size in logical pixels
func (c *Camera) WindowSize() (int, int) { return c.config.Width, c.config.Height }

// DevicePixelRatio returns framebuffer pixels per logical pixel
func (c *Camera) DevicePixelRatio() float64 { return c.config.DevicePixelRatio }

// FramebufferSize returns the window size scaled by the device pixel ratio
func (c *Camera) FramebufferSize() (int, int) {
	dpr := c.config.DevicePixelRatio
	return max(1, int(math.Round(float64(c.config.Width)*dpr))),
		max(1, int(math.Round(float64(c.config.Height)*dpr)))
}

// Viewport returns x, y, width, height of the framebuffer viewport
func (c *Camera) Viewport() [4]int {
	w, h := c.FramebufferSize()
	return [4]int{0, 0, w, h}
}

// Position returns the camera position in world space
func (c *Camera) Position() core.Vec3 { return c.config.Center }

// Forward returns the unit viewing direction
func (c *Camera) Forward() core.Vec3 { return c.w.Negate() }

// GetRay generates a world-space ray for screen coordinates (s, t) where
// 0 <= s,t <= 1 and t = 0 is the bottom of the image
func (c *Camera) GetRay(s, t float64) core.Ray {
	direction := c.lowerLeftCorner.
		Add(c.horizontal.Multiply(s)).
		Add(c.vertical.Multiply(t)).
		Subtract(c.config.Center)
	return core.NewRay(c.config.Center, direction.Normalize())
}

// ObjectRay is GetRay expressed in object space
func (c *Camera) ObjectRay(s, t float64) core.Ray {
	return c.model.InverseRay(c.GetRay(s, t))
}

// View returns the world-to-camera matrix
func (c *Camera) View() f32.Mat4 { return c.view }

// ModelView returns the object-to-camera matrix
func (c *Camera) ModelView() f32.Mat4 { return mul(c.view, modelMatrix(c.model)) }

// Projection returns the camera-to-clip matrix
func (c *Camera) Projection() f32.Mat4 { return c.projection }

// Project maps a world-space point to framebuffer coordinates with y up and
// depth in [0,1]. ok is false for points outside the near/far range.
func (c *Camera) Project(p core.Vec3) (x, y, depth float64, ok bool) {
	eye := transform(c.view, p)
	clip := transform4(c.projection, eye)
	if clip[3] <= 0 {
		return 0, 0, 0, false
	}
	nx, ny, nz := float64(clip[0]/clip[3]), float64(clip[1]/clip[3]), float64(clip[2]/clip[3])
	if nz < -1 || nz > 1 {
		return 0, 0, 0, false
	}
	w, h := c.FramebufferSize()
	return (nx + 1) / 2 * float64(w), (ny + 1) / 2 * float64(h), (nz + 1) / 2, true
}

// ProjectObject maps an object-space point to framebuffer coordinates
func (c *Camera) ProjectObject(p core.Vec3) (x, y, depth float64, ok bool) {
	return c.Project(c.model.Apply(p))
}

// EyeDepth returns the distance of a world-space point in front of the camera
func (c *Camera) EyeDepth(p core.Vec3) float64 {
	return p.Subtract(c.config.Center).Dot(c.Forward())
}

// LinearDepth converts a window depth in [0,1] back to the distance in
// front of the camera
func (c *Camera) LinearDepth(depth float64) float64 {
	n, f := c.config.Near, c.config.Far
	z := 2*depth - 1
	return 2 * f * n / (f + n - z*(f-n))
}

// lookAt builds the row-major world-to-camera matrix for the basis u, v, w
func lookAt(eye, u, v, w core.Vec3) f32.Mat4 {
	return f32.Mat4{
		float32(u.X), float32(u.Y), float32(u.Z), float32(-u.Dot(eye)),
		float32(v.X), float32(v.Y), float32(v.Z), float32(-v.Dot(eye)),
		float32(w.X), float32(w.Y), float32(w.Z), float32(-w.Dot(eye)),
		0, 0, 0, 1,
	}
}

func perspective(fovy, aspect, near, far float64) f32.Mat4 {
	f := 1 / math.Tan(fovy/2)
	return f32.Mat4{
		float32(f / aspect), 0, 0, 0,
		0, float32(f), 0, 0,
		0, 0, float32((far + near) / (near - far)), float32(2 * far * near / (near - far)),
		0, 0, -1, 0,
	}
}

func modelMatrix(x core.Xform) f32.Mat4 {
	s := x.Scale
	return f32.Mat4{
		float32(s), 0, 0, float32(-s * x.Center.X),
		0, float32(s), 0, float32(-s * x.Center.Y),
		0, 0, float32(s), float32(-s * x.Center.Z),
		0, 0, 0, 1,
	}
}

func mul(a, b f32.Mat4) f32.Mat4 {
	var m f32.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[r*4+k] * b[k*4+c]
			}
			m[r*4+c] = sum
		}
	}
	return m
}

func transform(m f32.Mat4, p core.Vec3) f32.Vec4 {
	return transform4(m, f32.Vec4{float32(p.X), float32(p.Y), float32(p.Z), 1})
}

func transform4(m f32.Mat4, p f32.Vec4) f32.Vec4 {
	var out f32.Vec4
	for r := 0; r < 4; r++ {
		out[r] = m[r*4]*p[0] + m[r*4+1]*p[1] + m[r*4+2]*p[2] + m[r*4+3]*p[3]
	}
	return out
}
