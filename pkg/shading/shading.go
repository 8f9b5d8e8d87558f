package shading

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"
)

// ShadeNone returns the color unchanged
func ShadeNone(color f32.Vec3) f32.Vec3 { return color }

// ShadeLambert returns color*(Ka + Kd*dd)
func ShadeLambert(p Parameter, twoSided bool, color, L, N f32.Vec3) f32.Vec3 {
	return ShadeLambertOcclusion(p, twoSided, color, L, N, 1)
}

// ShadePhong adds Ks*max(dot(R,V),0)^S with R = reflect(-L,N)
func ShadePhong(p Parameter, twoSided bool, color, L, N, V f32.Vec3) f32.Vec3 {
	return ShadePhongOcclusion(p, twoSided, color, L, N, V, 1)
}

// ShadeBlinnPhong adds Ks*max(dot(H,N),0)^S with H = normalize(L+V)
func ShadeBlinnPhong(p Parameter, twoSided bool, color, L, N, V f32.Vec3) f32.Vec3 {
	return ShadeBlinnPhongOcclusion(p, twoSided, color, L, N, V, 1)
}

// ShadeLambertOcclusion is ShadeLambert with Ka scaled by occlusion
func ShadeLambertOcclusion(p Parameter, twoSided bool, color, L, N f32.Vec3, occlusion float32) f32.Vec3 {
	dd := diffuse(twoSided, N, L)
	return combine(color, p.Ka*occlusion+p.Kd*dd, 0)
}

// ShadePhongOcclusion is ShadePhong with Ka scaled by occlusion
func ShadePhongOcclusion(p Parameter, twoSided bool, color, L, N, V f32.Vec3, occlusion float32) f32.Vec3 {
	R := reflect(scale(L, -1), N)
	dd := diffuse(twoSided, N, L)
	ds := specular(twoSided, dot(R, V), p.S)
	if dd <= 0 {
		ds = 0
	}
	return combine(color, p.Ka*occlusion+p.Kd*dd, p.Ks*ds)
}

// ShadeBlinnPhongOcclusion is ShadeBlinnPhong with Ka scaled by occlusion
func ShadeBlinnPhongOcclusion(p Parameter, twoSided bool, color, L, N, V f32.Vec3, occlusion float32) f32.Vec3 {
	H := normalize(add(L, V))
	dd := diffuse(twoSided, N, L)
	ds := specular(twoSided, dot(H, N), p.S)
	if dd <= 0 {
		ds = 0
	}
	return combine(color, p.Ka*occlusion+p.Kd*dd, p.Ks*ds)
}

// Shade evaluates the model for a surface point. V is ignored by models
// without a specular term.
func (m Model) Shade(color, L, N, V f32.Vec3) f32.Vec3 {
	return m.ShadeOcclusion(color, L, N, V, 1)
}

// ShadeOcclusion evaluates the ambient-occlusion variant of the model
func (m Model) ShadeOcclusion(color, L, N, V f32.Vec3, occlusion float32) f32.Vec3 {
	switch m.Kind {
	case Lambert:
		return ShadeLambertOcclusion(m.Parameter, m.TwoSideLighting, color, L, N, occlusion)
	case Phong:
		return ShadePhongOcclusion(m.Parameter, m.TwoSideLighting, color, L, N, V, occlusion)
	case BlinnPhong:
		return ShadeBlinnPhongOcclusion(m.Parameter, m.TwoSideLighting, color, L, N, V, occlusion)
	default:
		return ShadeNone(color)
	}
}

func diffuse(twoSided bool, N, L f32.Vec3) float32 {
	if twoSided {
		return math32.Min(math32.Abs(dot(N, L)), 1)
	}
	return math32.Max(dot(N, L), 0)
}

func specular(twoSided bool, d, shininess float32) float32 {
	if twoSided {
		return math32.Pow(math32.Min(math32.Abs(d), 1), shininess)
	}
	return math32.Pow(math32.Max(d, 0), shininess)
}

// combine returns color*k + s, the specular term being uncolored
func combine(color f32.Vec3, k, s float32) f32.Vec3 {
	return f32.Vec3{color[0]*k + s, color[1]*k + s, color[2]*k + s}
}

func dot(a, b f32.Vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func add(a, b f32.Vec3) f32.Vec3 { return f32.Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func scale(a f32.Vec3, s float32) f32.Vec3 { return f32.Vec3{a[0] * s, a[1] * s, a[2] * s} }

// reflect mirrors the incident vector I about N
func reflect(I, N f32.Vec3) f32.Vec3 {
	return add(I, scale(N, -2*dot(N, I)))
}

func normalize(a f32.Vec3) f32.Vec3 {
	l := math32.Sqrt(dot(a, a))
	if l == 0 {
		return a
	}
	return scale(a, 1/l)
}
