package mapper

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// cube corners in cell-local coordinates
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cube edges as corner pairs with the lower corner first, numbered 0-1,
// 1-2, 2-3, 3-0 on the bottom face, 4-5, 5-6, 6-7, 7-4 on the top face,
// then the verticals
var edgeCorners = [12][2]int{
	{0, 1}, {1, 2}, {3, 2}, {0, 3},
	{4, 5}, {5, 6}, {7, 6}, {4, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// MarchingCubes extracts an isosurface from a structured volume
type MarchingCubes struct {
	Base
	isolevel    float64
	normalType  object.NormalType
	duplication bool
}

// NewMarchingCubes creates an isosurface mapper. Without duplication,
// vertices on edges shared by neighboring cells are emitted once.
func NewMarchingCubes(isolevel float64, normalType object.NormalType, duplication bool, tf *transfer.TransferFunction) *MarchingCubes {
	m := &MarchingCubes{isolevel: isolevel, normalType: normalType, duplication: duplication}
	m.SetTransferFunction(tf)
	return m
}

func (m *MarchingCubes) Name() string { return "MarchingCubes" }

func (m *MarchingCubes) Isolevel() float64                 { return m.isolevel }
func (m *MarchingCubes) SetIsolevel(isolevel float64)      { m.isolevel = isolevel }
func (m *MarchingCubes) NormalType() object.NormalType     { return m.normalType }
func (m *MarchingCubes) SetNormalType(t object.NormalType) { m.normalType = t }
func (m *MarchingCubes) Duplication() bool                 { return m.duplication }
func (m *MarchingCubes) SetDuplication(duplication bool)   { m.duplication = duplication }

// Exec extracts the isosurface of a structured volume
func (m *MarchingCubes) Exec(obj object.Object) (object.Object, error) {
	m.setSuccess(false)
	volume, err := volumeInput(m.Name(), obj)
	if err != nil {
		return nil, err
	}
	surface, err := m.Extract(volume)
	if err != nil {
		return nil, err
	}
	m.setSuccess(true)
	return surface, nil
}

// Extract dispatches once on the sample type and runs the generic
// extraction. Cells entirely on one side of the isolevel emit nothing, so
// an isolevel outside the samples yields an empty surface whatever value
// range the volume reports.
func (m *MarchingCubes) Extract(volume *object.StructuredVolume) (*object.PolygonObject, error) {
	var coords []float32
	var connections []uint32
	switch values := volume.Values().(type) {
	case object.Values[uint8]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[int8]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[uint16]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[int16]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[uint32]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[int32]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[float32]:
		coords, connections = extractSurface(m, volume, values)
	case object.Values[float64]:
		coords, connections = extractSurface(m, volume, values)
	default:
		return nil, fmt.Errorf("%s: unsupported value type %s: %w", m.Name(), volume.Values().TypeName(), core.ErrInputMismatch)
	}

	surface := object.NewPolygonObject(coords, connections)
	surface.SetName(m.Name())
	c, _ := m.TransferFunction().AdjustRange(volume.MinValue(), volume.MaxValue()).Map(m.isolevel)
	color := rgb(c)
	surface.SetColor(color[0], color[1], color[2])
	surface.SetOpacity(255)
	if len(coords) > 0 {
		if m.normalType == object.PolygonNormal {
			surface.SetNormals(polygonNormals(coords, connections), object.PolygonNormal)
		} else {
			surface.SetNormals(vertexNormals(coords, connections), object.VertexNormal)
		}
	}
	// the surface lives in the volume's coordinate frame
	surface.SetMinMaxCoords(volume.MinMaxCoords())
	return surface, nil
}

// extractSurface walks every cell and emits triangles from the
// configuration tables. Vertices are shared through a map keyed by grid
// edge unless duplication is enabled.
func extractSurface[T object.Number](m *MarchingCubes, volume *object.StructuredVolume, values object.Values[T]) ([]float32, []uint32) {
	res := volume.Resolution()
	iso := m.isolevel
	var coords []float32
	var connections []uint32
	shared := make(map[int]uint32)

	// edgeVertex interpolates along the edge from the lower node a towards
	// the upper node b, so both cells sharing the edge compute the same point
	edgeVertex := func(a, b [3]int) uint32 {
		ia := volume.Index(a[0], a[1], a[2])
		axis := 0
		for d := 0; d < 3; d++ {
			if a[d] != b[d] {
				axis = d
			}
		}
		key := 3*ia + axis
		if !m.duplication {
			if id, ok := shared[key]; ok {
				return id
			}
		}
		f0 := float64(values[ia])
		f1 := float64(values[volume.Index(b[0], b[1], b[2])])
		t := (iso - f0) / (f1 - f0)
		id := uint32(len(coords) / 3)
		for d := 0; d < 3; d++ {
			coords = append(coords, float32(float64(a[d])+t*float64(b[d]-a[d])))
		}
		if !m.duplication {
			shared[key] = id
		}
		return id
	}

	for k := 0; k < res[2]-1; k++ {
		for j := 0; j < res[1]-1; j++ {
			for i := 0; i < res[0]-1; i++ {
				var corners [8][3]int
				index := 0
				for c, o := range cornerOffsets {
					corners[c] = [3]int{i + o[0], j + o[1], k + o[2]}
					// equality is not a crossing
					if float64(values[volume.Index(corners[c][0], corners[c][1], corners[c][2])]) > iso {
						index |= 1 << c
					}
				}
				if edgeTable[index] == 0 {
					continue
				}
				tris := triangleTable[index]
				for t := 0; t < 16 && tris[t] >= 0; t += 3 {
					for v := 0; v < 3; v++ {
						e := edgeCorners[tris[t+v]]
						connections = append(connections, edgeVertex(corners[e[0]], corners[e[1]]))
					}
				}
			}
		}
	}
	return coords, connections
}

func vertexAt(coords []float32, i uint32) core.Vec3 {
	return core.NewVec3(float64(coords[3*i]), float64(coords[3*i+1]), float64(coords[3*i+2]))
}

func faceNormal(coords []float32, a, b, c uint32) core.Vec3 {
	p0, p1, p2 := vertexAt(coords, a), vertexAt(coords, b), vertexAt(coords, c)
	return p1.Subtract(p0).Cross(p2.Subtract(p0))
}

// polygonNormals returns one unit normal per triangle
func polygonNormals(coords []float32, connections []uint32) []float32 {
	normals := make([]float32, 0, len(connections))
	for t := 0; t+2 < len(connections); t += 3 {
		n := faceNormal(coords, connections[t], connections[t+1], connections[t+2]).Normalize()
		normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return normals
}

// vertexNormals averages the area-weighted normals of the triangles
// sharing each vertex
func vertexNormals(coords []float32, connections []uint32) []float32 {
	sums := make([]core.Vec3, len(coords)/3)
	for t := 0; t+2 < len(connections); t += 3 {
		n := faceNormal(coords, connections[t], connections[t+1], connections[t+2])
		for _, v := range connections[t : t+3] {
			sums[v] = sums[v].Add(n)
		}
	}
	normals := make([]float32, 0, len(coords))
	for _, s := range sums {
		n := s.Normalize()
		normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return normals
}
