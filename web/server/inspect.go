package server

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/pipeline"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Kind        string                 `json:"kind"`
	Name        string                 `json:"name"`
	Primitives  int                    `json:"primitives"`
	BoundsMin   [3]float64             `json:"boundsMin"`
	BoundsMax   [3]float64             `json:"boundsMax"`
	Engine      string                 `json:"engine"`
	Description string                 `json:"description"` // Pipeline.Print output
	Hit         bool                   `json:"hit"`
	Point       [3]float64             `json:"point"`
	Distance    float64                `json:"distance"`
	Properties  map[string]interface{} `json:"properties"`
}

// InspectResult describes what the ray through a pixel found
type InspectResult struct {
	Hit        bool
	Point      core.Vec3 // object space
	Distance   float64   // along the object-space ray
	Properties map[string]interface{}
}

func vec(v core.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func hexColor(c core.Vec3) string {
	return fmt.Sprintf("#%02x%02x%02x", int(c.X*255), int(c.Y*255), int(c.Z*255))
}

// inspectPixel casts the ray through the pixel center at the framing the
// compositor uses and reports the first primitive it meets
func inspectPixel(obj object.Object, width, height, pixelX, pixelY int) InspectResult {
	camConfig := camera.DefaultConfig()
	camConfig.Width, camConfig.Height = width, height
	cam := camera.New(camConfig).WithModel(core.NormalizeXform(obj.MinMaxCoords()))

	s := (float64(pixelX) + 0.5) / float64(width)
	t := 1 - (float64(pixelY)+0.5)/float64(height)
	ray := cam.ObjectRay(s, t)
	ray.Direction = ray.Direction.Normalize()

	switch o := obj.(type) {
	case *object.PolygonObject:
		return inspectPolygons(o, ray)
	case *object.StructuredVolume:
		return inspectVolume(o, ray)
	case *object.PointObject:
		return inspectParticles(o, o.NumVertices(), o.Coord, o.Color, ray)
	case *object.TableObject:
		result := inspectParticles(o, o.NumRows(), o.Coord, o.Color, ray)
		if result.Hit {
			row := result.Properties["index"].(int)
			values := map[string]float64{}
			for c := 0; c < o.NumColumns(); c++ {
				values[o.Column(c).Label] = o.Column(c).Values[row]
			}
			result.Properties["values"] = values
			if labels := o.Labels(); row < len(labels) {
				result.Properties["label"] = labels[row]
			}
		}
		return result
	default:
		return InspectResult{}
	}
}

// inspectPolygons finds the nearest triangle hit (Moller-Trumbore)
func inspectPolygons(p *object.PolygonObject, ray core.Ray) InspectResult {
	best := InspectResult{Distance: math.Inf(1)}
	bestTriangle := -1
	for tri := 0; tri < p.NumPrimitives(); tri++ {
		i0, i1, i2 := p.Triangle(tri)
		v0, v1, v2 := p.Coord(i0), p.Coord(i1), p.Coord(i2)
		e1, e2 := v1.Subtract(v0), v2.Subtract(v0)
		h := ray.Direction.Cross(e2)
		det := e1.Dot(h)
		if math.Abs(det) < 1e-12 {
			continue
		}
		f := 1 / det
		sv := ray.Origin.Subtract(v0)
		u := f * sv.Dot(h)
		if u < 0 || u > 1 {
			continue
		}
		q := sv.Cross(e1)
		v := f * ray.Direction.Dot(q)
		if v < 0 || u+v > 1 {
			continue
		}
		t := f * e2.Dot(q)
		if t > 1e-9 && t < best.Distance {
			best.Distance = t
			best.Point = ray.At(t)
			bestTriangle = tri
		}
	}
	if bestTriangle < 0 {
		return InspectResult{}
	}

	i0, i1, i2 := p.Triangle(bestTriangle)
	v0, v1, v2 := p.Coord(i0), p.Coord(i1), p.Coord(i2)
	best.Hit = true
	best.Properties = map[string]interface{}{
		"triangle": bestTriangle,
		"normal":   vec(v1.Subtract(v0).Cross(v2.Subtract(v0)).Normalize()),
		"color":    hexColor(p.Color(i0)),
	}
	return best
}

// inspectVolume marches the ray through the grid at half-voxel steps and
// reports the maximum sampled value
func inspectVolume(v *object.StructuredVolume, ray core.Ray) InspectResult {
	tMin, tMax, ok := v.MinMaxCoords().Intersect(ray, 0, math.Inf(1))
	if !ok {
		return InspectResult{}
	}
	result := InspectResult{Hit: true, Distance: tMin}
	maxValue := math.Inf(-1)
	for t := tMin; t <= tMax; t += 0.5 {
		p := ray.At(t)
		if value := v.Sample(p); value > maxValue {
			maxValue = value
			result.Point, result.Distance = p, t
		}
	}
	if math.IsInf(maxValue, -1) {
		maxValue = v.Sample(ray.At(tMin))
		result.Point = ray.At(tMin)
	}
	result.Properties = map[string]interface{}{
		"maxValue":   maxValue,
		"valueRange": [2]float64{v.MinValue(), v.MaxValue()},
		"resolution": v.Resolution(),
	}
	return result
}

// inspectParticles picks the particle closest to the viewer among those
// within a pick radius of the ray
func inspectParticles(obj object.Object, n int, coord func(int) core.Vec3, color func(int) core.Vec3, ray core.Ray) InspectResult {
	radius := obj.MinMaxCoords().MaxExtent() * 0.01
	if radius <= 0 {
		radius = 0.01
	}
	best := -1
	bestT := math.Inf(1)
	for i := 0; i < n; i++ {
		p := coord(i)
		t := p.Subtract(ray.Origin).Dot(ray.Direction)
		if t <= 0 || t >= bestT {
			continue
		}
		if ray.At(t).Subtract(p).Length() <= radius {
			best, bestT = i, t
		}
	}
	if best < 0 {
		return InspectResult{}
	}
	return InspectResult{
		Hit:      true,
		Point:    coord(best),
		Distance: bestT,
		Properties: map[string]interface{}{
			"index": best,
			"color": hexColor(color(best)),
		},
	}
}

// handleInspect builds the requested pipeline and describes its object and
// the primitive under a pixel
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid parameters: " + err.Error()})
		return
	}

	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid x coordinate"})
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid y coordinate"})
		return
	}
	if pixelX < 0 || pixelX >= req.Width || pixelY < 0 || pixelY >= req.Height {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pixel coordinates out of bounds"})
		return
	}

	p, err := pipeline.Build(req.Options, core.NewDiscardLogger())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	obj := p.Object()
	var description bytes.Buffer
	p.Print(&description)

	bounds := obj.MinMaxCoords()
	result := inspectPixel(obj, req.Width, req.Height, pixelX, pixelY)
	writeJSON(w, http.StatusOK, InspectResponse{
		Kind:        obj.Kind().String(),
		Name:        obj.Name(),
		Primitives:  obj.NumPrimitives(),
		BoundsMin:   vec(bounds.Min),
		BoundsMax:   vec(bounds.Max),
		Engine:      p.Engine().Name(),
		Description: description.String(),
		Hit:         result.Hit,
		Point:       vec(result.Point),
		Distance:    result.Distance,
		Properties:  result.Properties,
	})
}
