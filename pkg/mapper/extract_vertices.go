package mapper

import (
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// ExtractVertices turns every node of a structured volume into a point
// colored by the transfer function
type ExtractVertices struct {
	Base
	size float32
}

// NewExtractVertices creates a vertex extractor drawing points of the given
// pixel size
func NewExtractVertices(size float32, tf *transfer.TransferFunction) *ExtractVertices {
	m := &ExtractVertices{size: size}
	m.SetTransferFunction(tf)
	return m
}

func (m *ExtractVertices) Name() string         { return "ExtractVertices" }
func (m *ExtractVertices) Size() float32        { return m.size }
func (m *ExtractVertices) SetSize(size float32) { m.size = size }

func (m *ExtractVertices) Exec(obj object.Object) (object.Object, error) {
	m.setSuccess(false)
	volume, err := volumeInput(m.Name(), obj)
	if err != nil {
		return nil, err
	}

	res := volume.Resolution()
	n := volume.NumNodes()
	coords := make([]float32, 0, 3*n)
	colors := make([]uint8, 0, 3*n)
	normals := make([]float32, 0, 3*n)
	tf := m.TransferFunction().AdjustRange(volume.MinValue(), volume.MaxValue())
	for k := 0; k < res[2]; k++ {
		for j := 0; j < res[1]; j++ {
			for i := 0; i < res[0]; i++ {
				coords = append(coords, float32(i), float32(j), float32(k))
				c, _ := tf.Map(volume.Value(i, j, k))
				b := rgb(c)
				colors = append(colors, b[0], b[1], b[2])
				g := volume.Gradient(i, j, k)
				if g.Length() > 0 {
					g = g.Normalize()
				}
				normals = append(normals, float32(g.X), float32(g.Y), float32(g.Z))
			}
		}
	}

	points := object.NewPointObject(coords)
	points.SetName(m.Name())
	points.SetColors(colors)
	points.SetNormals(normals)
	points.SetSize(m.size)
	points.SetMinMaxCoords(volume.MinMaxCoords())
	m.setSuccess(true)
	return points, nil
}
