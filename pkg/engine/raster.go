package engine

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
)

// fragmentFunc receives one covered pixel with interpolated depth and color
type fragmentFunc func(x, y int, depth float32, color f32.Vec3)

// screenVertex is a vertex projected to framebuffer coordinates
type screenVertex struct {
	x, y, depth float64
	color       f32.Vec3
}

// project maps an object-space point to the framebuffer
func project(cam *camera.Camera, p core.Vec3, color f32.Vec3) (screenVertex, bool) {
	x, y, depth, ok := cam.ProjectObject(p)
	return screenVertex{x: x, y: y, depth: depth, color: color}, ok
}

func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// rasterTriangle emits every pixel whose center is covered by the triangle.
// Depth and color are interpolated linearly in screen space.
func rasterTriangle(fb *gpu.Framebuffer, a, b, c screenVertex, fragment fragmentFunc) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	x0 := max(0, int(math.Floor(min(a.x, b.x, c.x))))
	x1 := min(fb.Width()-1, int(math.Ceil(max(a.x, b.x, c.x))))
	y0 := max(0, int(math.Floor(min(a.y, b.y, c.y))))
	y1 := min(fb.Height()-1, int(math.Ceil(max(a.y, b.y, c.y))))

	for y := y0; y <= y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			depth := w0*a.depth + w1*b.depth + w2*c.depth
			var color f32.Vec3
			for ch := 0; ch < 3; ch++ {
				color[ch] = float32(w0)*a.color[ch] + float32(w1)*b.color[ch] + float32(w2)*c.color[ch]
			}
			fragment(x, y, float32(depth), color)
		}
	}
}

// rasterLine walks the segment with a DDA and emits a square brush of the
// given width at each step
func rasterLine(fb *gpu.Framebuffer, a, b screenVertex, width int, fragment fragmentFunc) {
	dx, dy := b.x-a.x, b.y-a.y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	half := (width - 1) / 2
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		cx := int(math.Floor(a.x + t*dx))
		cy := int(math.Floor(a.y + t*dy))
		depth := float32(a.depth + t*(b.depth-a.depth))
		var color f32.Vec3
		for ch := 0; ch < 3; ch++ {
			color[ch] = a.color[ch] + float32(t)*(b.color[ch]-a.color[ch])
		}
		for y := cy - half; y < cy-half+width; y++ {
			for x := cx - half; x < cx-half+width; x++ {
				if fb.Contains(x, y) {
					fragment(x, y, depth, color)
				}
			}
		}
	}
}

// rasterPoint emits a square sprite of side size centered at v
func rasterPoint(fb *gpu.Framebuffer, v screenVertex, size int, fragment fragmentFunc) {
	x0 := int(math.Floor(v.x - float64(size)/2 + 0.5))
	y0 := int(math.Floor(v.y - float64(size)/2 + 0.5))
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			if fb.Contains(x, y) {
				fragment(x, y, float32(v.depth), v.color)
			}
		}
	}
}
