package loaders

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// createTestPLY creates a binary square made of two triangles
func createTestPLY(t *testing.T, order binary.ByteOrder, includeNormals bool, includeColors bool) []byte {
	t.Helper()
	var buf bytes.Buffer

	format := "binary_little_endian"
	if order == binary.BigEndian {
		format = "binary_big_endian"
	}
	buf.WriteString("ply\n")
	buf.WriteString("format " + format + " 1.0\n")
	buf.WriteString("comment square\n")
	buf.WriteString("element vertex 4\n")
	buf.WriteString("property float x\n")
	buf.WriteString("property float y\n")
	buf.WriteString("property float z\n")
	if includeNormals {
		buf.WriteString("property float nx\n")
		buf.WriteString("property float ny\n")
		buf.WriteString("property float nz\n")
	}
	if includeColors {
		buf.WriteString("property uchar red\n")
		buf.WriteString("property uchar green\n")
		buf.WriteString("property uchar blue\n")
	}
	buf.WriteString("element face 2\n")
	buf.WriteString("property list uchar int vertex_indices\n")
	buf.WriteString("end_header\n")

	vertices := []struct {
		x, y, z    float32
		nx, ny, nz float32
		r, g, b    uint8
	}{
		{0, 0, 0, 0, 0, 1, 255, 0, 0},
		{1, 0, 0, 0, 0, 1, 0, 255, 0},
		{1, 1, 0, 0, 0, 1, 0, 0, 255},
		{0, 1, 0, 0, 0, 1, 255, 255, 0},
	}
	for _, v := range vertices {
		require.NoError(t, binary.Write(&buf, order, [3]float32{v.x, v.y, v.z}))
		if includeNormals {
			require.NoError(t, binary.Write(&buf, order, [3]float32{v.nx, v.ny, v.nz}))
		}
		if includeColors {
			require.NoError(t, binary.Write(&buf, order, [3]uint8{v.r, v.g, v.b}))
		}
	}
	for _, f := range [][3]int32{{0, 1, 2}, {0, 2, 3}} {
		require.NoError(t, binary.Write(&buf, order, uint8(3)))
		require.NoError(t, binary.Write(&buf, order, f))
	}
	return buf.Bytes()
}

func TestReadPLYBinary(t *testing.T) {
	tests := []struct {
		name    string
		order   binary.ByteOrder
		normals bool
		colors  bool
	}{
		{"little endian", binary.LittleEndian, false, false},
		{"little endian with normals", binary.LittleEndian, true, false},
		{"little endian with colors", binary.LittleEndian, false, true},
		{"big endian with everything", binary.BigEndian, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ReadPLY(bytes.NewReader(createTestPLY(t, tt.order, tt.normals, tt.colors)))
			require.NoError(t, err)

			assert.Equal(t, []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, data.Coords)
			assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data.Faces)
			if tt.normals {
				assert.Equal(t, float32(1), data.Normals[11])
			} else {
				assert.Empty(t, data.Normals)
			}
			if tt.colors {
				assert.Equal(t, []uint8{255, 255, 0}, data.Colors[9:12])
			} else {
				assert.Empty(t, data.Colors)
			}

			polygons, ok := data.Object().(*object.PolygonObject)
			require.True(t, ok)
			assert.Equal(t, 2, polygons.NumPrimitives())
		})
	}
}

const asciiPLY = `ply
format ascii 1.0
element vertex 5
property float x
property float y
property float z
property float confidence
element face 1
property list uchar int vertex_indices
property uchar flags
element edge 1
property int vertex1
property int vertex2
end_header
0 0 0 1
1 0 0 1
1 1 0 1
0.5 1.5 0 1
0 1 0 1
5 0 1 2 3 4 7
0 2
`

func TestReadPLYASCIIPolygonFan(t *testing.T) {
	data, err := ReadPLY(strings.NewReader(asciiPLY))
	require.NoError(t, err)

	assert.Equal(t, 5, data.NumVertices())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4}, data.Faces)
	assert.Equal(t, float32(1.5), data.Coords[10])
}

func TestReadPLYPointCloud(t *testing.T) {
	src := "ply\nformat ascii 1.0\nelement vertex 2\nproperty double x\nproperty double y\nproperty double z\n" +
		"property float red\nproperty float green\nproperty float blue\nend_header\n" +
		"0 0 0 1 0 0\n1 2 3 0 0.5 1\n"
	data, err := ReadPLY(strings.NewReader(src))
	require.NoError(t, err)

	points, ok := data.Object().(*object.PointObject)
	require.True(t, ok)
	assert.Equal(t, 2, points.NumVertices())
	assert.Equal(t, core.NewVec3(1, 2, 3), points.Coord(1))
	assert.Equal(t, []uint8{255, 0, 0, 0, 128, 255}, points.Colors())
}

func TestReadPLYErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not ply", "obj\n"},
		{"missing end_header", "ply\nformat ascii 1.0\n"},
		{"unknown format", "ply\nformat binary_middle_endian 1.0\nend_header\n"},
		{"unknown type", "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n"},
		{"no coordinates", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float q\nend_header\n1\n"},
		{"index out of range", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\n" +
			"element face 1\nproperty list uchar int vertex_indices\nend_header\n0 0 0\n3 0 1 2\n"},
		{"truncated body", "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestWritePLYRoundTrip(t *testing.T) {
	polygons := object.NewPolygonObject([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0}, []uint32{0, 1, 2, 1, 3, 2})
	polygons.SetColors([]uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	polygons.SetNormals([]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1}, object.VertexNormal)

	var buf bytes.Buffer
	require.NoError(t, WritePLY(&buf, polygons))
	data, err := ReadPLY(&buf)
	require.NoError(t, err)

	assert.Equal(t, polygons.Coords(), data.Coords)
	assert.Equal(t, polygons.Connections(), data.Faces)
	assert.Equal(t, polygons.Colors(), data.Colors)
	assert.Equal(t, polygons.Normals(), data.Normals)

	assert.ErrorIs(t, WritePLY(&buf, object.CreateValueTable(4, 1)), core.ErrInputMismatch)
}

func TestLoadPLYFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.ply")
	require.NoError(t, os.WriteFile(path, createTestPLY(t, binary.LittleEndian, true, true), 0644))

	obj, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, object.PolygonKind, obj.Kind())
	assert.Equal(t, "square", obj.Name())

	_, err = LoadPLY(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}
