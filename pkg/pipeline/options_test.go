package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/engine"
	"github.com/df07/go-stochastic-viz/pkg/mapper"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"mapper", func(o *Options) { o.Mapper = "voronoi" }},
		{"normals", func(o *Options) { o.Normals = "smooth" }},
		{"clustering", func(o *Options) { o.Clustering = "spectral" }},
		{"seeding", func(o *Options) { o.Seeding = "kmeans++" }},
		{"shading", func(o *Options) { o.Shading = "toon" }},
		{"clusters", func(o *Options) { o.Clusters = 0 }},
		{"repetitions", func(o *Options) { o.Repetitions = 0 }},
		{"point size", func(o *Options) { o.PointSize = 0 }},
		{"input", func(o *Options) { o.Input = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			assert.ErrorIs(t, o.Validate(), core.ErrConfiguration)
		})
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
		kind   object.Kind
		engine string
	}{
		{"volume", func(o *Options) {}, object.VolumeKind, "VolumeEngine"},
		{"isosurface", func(o *Options) { o.Mapper = MapperIsosurface }, object.PolygonKind, "PolygonEngine"},
		{"vertices", func(o *Options) { o.Mapper = MapperVertices; o.PointSize = 2 }, object.PointKind, "ParticleEngine"},
		{"clusters", func(o *Options) { o.Input = "quadrants"; o.Mapper = MapperKMeans }, object.TableKind, "ParticleEngine"},
		{"table", func(o *Options) { o.Input = "quadrants"; o.Shuffle = true; o.Zooming = true }, object.TableKind, "ParticleEngine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			p, err := Build(o, core.NewDiscardLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Object().Kind())
			assert.Equal(t, tt.engine, p.Engine().Name())
			assert.Equal(t, o.Repetitions, p.Engine().RepetitionLevel())
		})
	}
}

func TestBuildIsolevel(t *testing.T) {
	o := DefaultOptions()
	o.Mapper = MapperIsosurface
	middle, err := Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	require.Len(t, middle.mappers, 1)
	assert.Equal(t, 127.5, middle.mappers[0].(*mapper.MarchingCubes).Isolevel())

	level := 250.0
	o.Isolevel = &level
	high, err := Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	assert.Less(t, high.Object().NumPrimitives(), middle.Object().NumPrimitives())
}

func TestBuildClustering(t *testing.T) {
	o := DefaultOptions()
	o.Input = "quadrants"
	o.Mapper = MapperKMeans
	o.Clustering = "adaptive"
	o.Clusters = 6

	p, err := Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	km := p.mappers[0].(*mapper.KMeansClustering)
	assert.Equal(t, mapper.AdaptiveKMeans, km.Config().Method)
	assert.Equal(t, mapper.SmartSeeding, km.Config().Seeding)
	assert.Equal(t, 4, km.Result().NumClusters)

	o.Clustering = "plain"
	o.Seeding = "random"
	o.Clusters = 3
	p, err = Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	km = p.mappers[0].(*mapper.KMeansClustering)
	assert.Equal(t, mapper.PlainKMeans, km.Config().Method)
	assert.Equal(t, mapper.RandomSeeding, km.Config().Seeding)
	assert.Equal(t, 3, km.Result().NumClusters)
}

func TestBuildTransferFunction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tf.yaml")
	data := "resolution: 16\nrange: [0, 1000]\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	o := DefaultOptions()
	o.TransferFunction = path
	p, err := Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	tf := p.Engine().(*engine.VolumeEngine).TransferFunction()
	lo, hi := tf.Range()
	assert.Equal(t, 16, tf.Resolution())
	assert.Equal(t, [2]float64{0, 1000}, [2]float64{lo, hi})

	o.AdjustRange = true
	p, err = Build(o, core.NewDiscardLogger())
	require.NoError(t, err)
	lo, hi = p.Engine().(*engine.VolumeEngine).TransferFunction().Range()
	volume := p.Object().(*object.StructuredVolume)
	assert.Equal(t, [2]float64{volume.MinValue(), volume.MaxValue()}, [2]float64{lo, hi})

	o.TransferFunction = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(o, core.NewDiscardLogger())
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	o := DefaultOptions()
	o.Mapper = "voronoi"
	_, err := Build(o, core.NewDiscardLogger())
	assert.ErrorIs(t, err, core.ErrConfiguration)

	o = DefaultOptions()
	o.Mapper = MapperKMeans
	_, err = Build(o, core.NewDiscardLogger())
	assert.ErrorIs(t, err, core.ErrInputMismatch)

	o = DefaultOptions()
	o.Input = "teapot"
	_, err = Build(o, core.NewDiscardLogger())
	assert.ErrorIs(t, err, core.ErrInputMismatch)
}
