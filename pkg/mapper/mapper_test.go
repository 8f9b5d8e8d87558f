package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// peakVolume is a 3x3x3 grid of zeros with a single center value
func peakVolume[T object.Number](t *testing.T, center T) *object.StructuredVolume {
	t.Helper()
	values := make(object.Values[T], 27)
	values[13] = center
	v, err := object.NewStructuredVolume([3]int{3, 3, 3}, values)
	require.NoError(t, err)
	return v
}

func TestMarchingCubesPeak(t *testing.T) {
	tests := []struct {
		name        string
		duplication bool
		vertices    int
	}{
		{"shared vertices", false, 6},
		{"duplicated vertices", true, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := NewMarchingCubes(0.5, object.PolygonNormal, tt.duplication, nil)
			out, err := mc.Exec(peakVolume[float32](t, 1))
			require.NoError(t, err)
			assert.True(t, mc.IsSuccess())

			surface := out.(*object.PolygonObject)
			assert.Equal(t, 8, surface.NumPrimitives())
			assert.Equal(t, tt.vertices, surface.NumVertices())
			assert.Equal(t, uint8(255), surface.Opacity())

			center := core.NewVec3(1, 1, 1)
			for i := 0; i < surface.NumVertices(); i++ {
				assert.InDelta(t, 0.5, surface.Coord(i).Subtract(center).Length(), 1e-6)
			}
			// normals face away from the high values
			for tri := 0; tri < surface.NumPrimitives(); tri++ {
				a, _, _ := surface.Triangle(tri)
				n, ok := surface.Normal(tri, 0)
				require.True(t, ok)
				assert.Greater(t, n.Dot(surface.Coord(a).Subtract(center)), 0.0)
			}
		})
	}
}

func TestMarchingCubesVertexNormals(t *testing.T) {
	mc := NewMarchingCubes(0.5, object.VertexNormal, false, nil)
	out, err := mc.Exec(peakVolume[uint8](t, 2))
	require.NoError(t, err)

	surface := out.(*object.PolygonObject)
	require.Equal(t, object.VertexNormal, surface.NormalType())
	assert.Len(t, surface.Normals(), 3*surface.NumVertices())
	for i := 0; i < surface.NumVertices(); i++ {
		n := core.NewVec3(float64(surface.Normals()[3*i]), float64(surface.Normals()[3*i+1]), float64(surface.Normals()[3*i+2]))
		dir := surface.Coord(i).Subtract(core.NewVec3(1, 1, 1)).Normalize()
		assert.InDelta(t, 1, n.Dot(dir), 1e-6, "vertex %d", i)
	}
}

func TestMarchingCubesIsolevelEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		isolevel float64
	}{
		{"equal to the maximum is no crossing", 1},
		{"above the range", 2},
		{"below the range", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := NewMarchingCubes(tt.isolevel, object.PolygonNormal, false, nil)
			out, err := mc.Exec(peakVolume[float64](t, 1))
			require.NoError(t, err)
			assert.Equal(t, 0, out.NumPrimitives())
			assert.True(t, mc.IsSuccess())
		})
	}
}

func TestMarchingCubesIgnoresOverriddenValueRange(t *testing.T) {
	v := peakVolume[float64](t, 1)
	v.SetMinMaxValues(0, 0.25)

	mc := NewMarchingCubes(0.5, object.PolygonNormal, false, nil)
	out, err := mc.Exec(v)
	require.NoError(t, err)
	assert.Equal(t, 8, out.NumPrimitives())

	v.SetMinMaxValues(0, 10)
	out, err = NewMarchingCubes(5, object.PolygonNormal, false, nil).Exec(v)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumPrimitives())
}

func TestMarchingCubesValueTypes(t *testing.T) {
	volumes := map[string]*object.StructuredVolume{
		"uint8":   peakVolume[uint8](t, 10),
		"int8":    peakVolume[int8](t, 10),
		"uint16":  peakVolume[uint16](t, 10),
		"int16":   peakVolume[int16](t, 10),
		"uint32":  peakVolume[uint32](t, 10),
		"int32":   peakVolume[int32](t, 10),
		"float32": peakVolume[float32](t, 10),
		"float64": peakVolume[float64](t, 10),
	}
	for name, v := range volumes {
		t.Run(name, func(t *testing.T) {
			out, err := NewMarchingCubes(5, object.PolygonNormal, false, nil).Exec(v)
			require.NoError(t, err)
			assert.Equal(t, 8, out.NumPrimitives())
		})
	}
}

func TestMarchingCubesInputMismatch(t *testing.T) {
	mc := NewMarchingCubes(0.5, object.PolygonNormal, false, nil)
	for _, in := range []object.Object{nil, object.NewPointObject(nil), object.CreateValueTable(8, 1)} {
		_, err := mc.Exec(in)
		assert.ErrorIs(t, err, core.ErrInputMismatch)
		assert.False(t, mc.IsSuccess())
	}
}

func TestMarchingCubesHydrogen(t *testing.T) {
	out, err := NewMarchingCubes(80, object.VertexNormal, false, nil).Exec(object.NewHydrogenVolume(16))
	require.NoError(t, err)
	assert.Positive(t, out.NumPrimitives())
	assert.Equal(t, "MarchingCubes", out.Name())
}

// quadrantOf returns the quadrant index CreateValueTable uses for row r
func quadrantOf(r, n int) int { return r / (n / 4) }

func assertQuadrantClusters(t *testing.T, labels []int) {
	t.Helper()
	n := len(labels)
	byQuadrant := map[int]int{}
	for r, l := range labels {
		q := quadrantOf(r, n)
		if want, ok := byQuadrant[q]; ok {
			require.Equal(t, want, l, "row %d splits quadrant %d", r, q)
		} else {
			byQuadrant[q] = l
		}
	}
	distinct := map[int]bool{}
	for _, l := range byQuadrant {
		distinct[l] = true
	}
	assert.Len(t, distinct, 4)
}

func clusterConfig(method ClusteringMethod, seeding SeedingMethod) KMeansConfig {
	c := DefaultKMeansConfig()
	c.Method = method
	c.Seeding = seeding
	c.NumberOfClusters = 4
	return c
}

func TestKMeansFindsQuadrants(t *testing.T) {
	table := object.CreateValueTable(1000, 1)

	iterations := map[SeedingMethod]int{}
	for _, seeding := range []SeedingMethod{RandomSeeding, SmartSeeding} {
		t.Run(seeding.String(), func(t *testing.T) {
			km := NewKMeansClustering(clusterConfig(PlainKMeans, seeding))
			out, err := km.Exec(table)
			require.NoError(t, err)
			require.True(t, km.IsSuccess())

			result := km.Result()
			assert.True(t, result.Converged)
			assert.Equal(t, 4, result.NumClusters)
			assert.Len(t, result.Centroids, 4)
			assertQuadrantClusters(t, result.Labels)
			iterations[seeding] = result.Iterations

			clustered := out.(*object.TableObject)
			assert.Equal(t, 3, clustered.NumColumns())
			col := clustered.ColumnIndex(ClusterColumn)
			require.Equal(t, 2, col)
			assert.Equal(t, []int{0, 1}, clustered.CoordColumns())
			assert.Len(t, clustered.Colors(), 3*1000)
			assert.Equal(t, table.Column(0).Values, clustered.Column(0).Values)
			assert.Equal(t, 3.0, clustered.Column(col).MaxValue)
		})
	}
	assert.LessOrEqual(t, iterations[RandomSeeding], 9)
	assert.LessOrEqual(t, iterations[SmartSeeding], iterations[RandomSeeding])
}

func TestFastKMeansMatchesPlain(t *testing.T) {
	table := object.CreateValueTable(400, 3)
	for _, seeding := range []SeedingMethod{RandomSeeding, SmartSeeding} {
		for _, k := range []int{2, 3, 5, 8} {
			plainConfig := clusterConfig(PlainKMeans, seeding)
			plainConfig.NumberOfClusters = k
			fastConfig := plainConfig
			fastConfig.Method = FastKMeans

			plain := NewKMeansClustering(plainConfig)
			fast := NewKMeansClustering(fastConfig)
			_, err := plain.Exec(table)
			require.NoError(t, err)
			_, err = fast.Exec(table)
			require.NoError(t, err)

			assert.Equal(t, plain.Result().Labels, fast.Result().Labels, "%s k=%d", seeding, k)
			assert.Equal(t, plain.Result().Iterations, fast.Result().Iterations, "%s k=%d", seeding, k)
			assert.InDeltaSlice(t, plain.Result().Centroids[0], fast.Result().Centroids[0], 1e-9)
		}
	}
}

func TestAdaptiveKMeansPicksFourClusters(t *testing.T) {
	c := clusterConfig(AdaptiveKMeans, SmartSeeding)
	c.NumberOfClusters = 10
	km := NewKMeansClustering(c)

	_, err := km.Exec(object.CreateValueTable(1000, 1))
	require.NoError(t, err)
	result := km.Result()
	assert.Equal(t, 4, result.NumClusters)
	assert.Greater(t, result.Silhouette, 0.5)
	assertQuadrantClusters(t, result.Labels)
}

func TestKMeansIsDeterministic(t *testing.T) {
	table := object.CreateValueTable(200, 7)
	run := func() []int {
		km := NewKMeansClustering(clusterConfig(FastKMeans, SmartSeeding))
		_, err := km.Exec(table)
		require.NoError(t, err)
		return km.Result().Labels
	}
	assert.Equal(t, run(), run())
}

func TestKMeansErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  object.Object
		config func(*KMeansConfig)
		want   error
	}{
		{"volume input", object.NewHydrogenVolume(4), func(*KMeansConfig) {}, core.ErrInputMismatch},
		{"nil input", nil, func(*KMeansConfig) {}, core.ErrInputMismatch},
		{"zero clusters", object.CreateValueTable(8, 1), func(c *KMeansConfig) { c.NumberOfClusters = 0 }, core.ErrConfiguration},
		{"zero iterations", object.CreateValueTable(8, 1), func(c *KMeansConfig) { c.MaxIterations = 0 }, core.ErrConfiguration},
		{"more clusters than rows", object.CreateValueTable(8, 1), func(c *KMeansConfig) { c.NumberOfClusters = 9 }, core.ErrInputMismatch},
		{"adaptive range empty", object.CreateValueTable(8, 1), func(c *KMeansConfig) {
			c.Method = AdaptiveKMeans
			c.NumberOfClusters = 1
		}, core.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultKMeansConfig()
			tt.config(&c)
			km := NewKMeansClustering(c)
			_, err := km.Exec(tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, km.IsSuccess())
			assert.Nil(t, km.Result())
		})
	}
}

func TestSilhouette(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}, {11}}
	s := silhouette(points, []int{0, 0, 1, 1}, 2)
	assert.InDelta(t, (2*(1-1/10.5)+2*(1-1/9.5))/4, s, 1e-9)

	// singletons score zero
	assert.Equal(t, 0.0, silhouette([][]float64{{0}, {5}}, []int{0, 1}, 2))
}

func TestExtractVertices(t *testing.T) {
	volume := peakVolume[uint8](t, 255)
	m := NewExtractVertices(2, nil)

	out, err := m.Exec(volume)
	require.NoError(t, err)
	require.True(t, m.IsSuccess())

	points := out.(*object.PointObject)
	assert.Equal(t, 27, points.NumVertices())
	assert.Equal(t, float32(2), points.Size(0))
	assert.Equal(t, core.NewVec3(1, 1, 1), points.Coord(13))
	assert.Equal(t, volume.MinMaxCoords(), points.MinMaxCoords())

	// the peak maps to the top of the rainbow, zeros to the bottom
	assert.Greater(t, points.Color(13).X, points.Color(13).Z)
	assert.Greater(t, points.Color(0).Z, points.Color(0).X)

	n, ok := points.Normal(12)
	require.True(t, ok)
	assert.InDelta(t, 1, n.Length(), 1e-6)
}

func TestExtractVerticesInputMismatch(t *testing.T) {
	_, err := NewExtractVertices(1, nil).Exec(object.CreateValueTable(4, 1))
	assert.ErrorIs(t, err, core.ErrInputMismatch)
}
