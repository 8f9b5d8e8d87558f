package camera

import (
	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// Light is a point light in world space
type Light struct {
	Position core.Vec3
}

// DefaultLight returns a light placed at the camera position
func DefaultLight(c *Camera) Light {
	return Light{Position: c.Position()}
}

// Direction returns the unit vector from p towards the light
func (l Light) Direction(p core.Vec3) core.Vec3 {
	return l.Position.Subtract(p).Normalize()
}

// ToF32 converts a vector for the float32 shading functions
func ToF32(v core.Vec3) f32.Vec3 {
	return f32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
