package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/engine"
	"github.com/df07/go-stochastic-viz/pkg/mapper"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/renderer"
)

func newTestPipeline() *Pipeline {
	return New(core.NewDiscardLogger())
}

func TestClusteringPipeline(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Import("quadrants"))
	assert.Nil(t, p.Object(), "no object before Exec")

	km := mapper.NewKMeansClustering(mapper.DefaultKMeansConfig())
	require.NoError(t, p.Connect(km).Exec())

	table, ok := p.Object().(*object.TableObject)
	require.True(t, ok)
	assert.GreaterOrEqual(t, table.ColumnIndex(mapper.ClusterColumn), 0)
	assert.Equal(t, "ParticleEngine", p.Engine().Name())
}

func TestIsosurfacePipelineRenders(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Import("hydrogen"))
	p.Connect(mapper.NewMarchingCubes(64, object.PolygonNormal, false, nil))
	require.NoError(t, p.Exec())
	require.Equal(t, object.PolygonKind, p.Object().Kind())
	require.Positive(t, p.Object().NumPrimitives())

	config := renderer.DefaultConfig()
	config.NumWorkers = 2
	c := renderer.NewCompositor(config, core.NewDiscardLogger())
	defer c.Release()
	_, err := p.Register(c)
	require.NoError(t, err)

	camConfig := camera.DefaultConfig()
	camConfig.Width, camConfig.Height = 48, 48
	cam := camera.New(camConfig)
	require.NoError(t, c.Frame(cam, camera.DefaultLight(cam)))
	require.True(t, c.IsConverged())

	img := c.Image()
	lit := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i]|img.Pix[i+1]|img.Pix[i+2] != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestVolumePipelineUsesTransferFunction(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Import("hydrogen"))
	require.NoError(t, p.Exec())

	ve, ok := p.Engine().(*engine.VolumeEngine)
	require.True(t, ok)
	assert.NotNil(t, ve.TransferFunction())
	assert.Same(t, p.Input(), p.Object())
}

func TestPipelineErrors(t *testing.T) {
	t.Run("no input", func(t *testing.T) {
		assert.ErrorIs(t, newTestPipeline().Exec(), core.ErrConfiguration)
	})
	t.Run("unknown source", func(t *testing.T) {
		assert.ErrorIs(t, newTestPipeline().Import("nowhere"), core.ErrInputMismatch)
	})
	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, newTestPipeline().Import(filepath.Join(t.TempDir(), "missing.ply")))
	})
	t.Run("mapper input mismatch", func(t *testing.T) {
		p := newTestPipeline()
		require.NoError(t, p.Import("hydrogen"))
		p.Connect(mapper.NewKMeansClustering(mapper.DefaultKMeansConfig()))
		assert.ErrorIs(t, p.Exec(), core.ErrInputMismatch)
		assert.Nil(t, p.Object())
	})
	t.Run("engine rejects output", func(t *testing.T) {
		p := newTestPipeline()
		require.NoError(t, p.Import("quadrants"))
		p.SetEngine(engine.NewPolygonEngine(engine.DefaultConfig()))
		assert.ErrorIs(t, p.Exec(), core.ErrInputMismatch)
	})
	t.Run("register before exec", func(t *testing.T) {
		c := renderer.NewCompositor(renderer.DefaultConfig(), core.NewDiscardLogger())
		defer c.Release()
		_, err := newTestPipeline().Register(c)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestPipelineImportsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y,z\n0,0,0\n1,1,1\n"), 0644))

	p := newTestPipeline()
	require.NoError(t, p.Import(path))
	require.NoError(t, p.Exec())
	assert.Equal(t, object.TableKind, p.Object().Kind())
	assert.Equal(t, "points", p.Object().Name())
}

func TestPrint(t *testing.T) {
	p := newTestPipeline()
	require.NoError(t, p.Import("hydrogen"))
	p.Connect(mapper.NewMarchingCubes(64, object.VertexNormal, false, nil))

	var before bytes.Buffer
	p.Print(&before)
	assert.Contains(t, before.String(), "(not executed)")

	require.NoError(t, p.Exec())
	var buf bytes.Buffer
	p.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "Source: hydrogen")
	assert.Contains(t, out, "Mapper 0: MarchingCubes")
	assert.Contains(t, out, "Engine: PolygonEngine")
	assert.NotContains(t, out, "(not executed)")
}

func TestDefaultEngine(t *testing.T) {
	tests := []struct {
		kind object.Kind
		want string
	}{
		{object.PointKind, "ParticleEngine"},
		{object.TableKind, "ParticleEngine"},
		{object.LineKind, "LineEngine"},
		{object.PolygonKind, "PolygonEngine"},
		{object.VolumeKind, "VolumeEngine"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e, err := DefaultEngine(tt.kind, engine.DefaultConfig(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name())
			assert.True(t, e.Accepts(tt.kind))
		})
	}
	_, err := DefaultEngine(object.Kind(42), engine.DefaultConfig(), nil)
	assert.ErrorIs(t, err, core.ErrInputMismatch)
}

func TestListAllDatasets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bunny-mesh.ply", "iris.csv", "notes.txt", "head_ct.toml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	response, err := ListAllDatasets(dir)
	require.NoError(t, err)
	require.NotEmpty(t, response.Groups)
	assert.Equal(t, "Built-in Datasets", response.Groups[0].Name)

	names := map[string]string{}
	for _, g := range response.Groups {
		for _, d := range g.Datasets {
			names[d.Name] = g.Name
		}
	}
	assert.Equal(t, "Built-in Datasets", names["Hydrogen"])
	assert.Equal(t, "Built-in Datasets", names["Quadrants"])
	assert.Equal(t, "Meshes and Point Clouds", names["Bunny Mesh"])
	assert.Equal(t, "Tables", names["Iris"])
	assert.Equal(t, "Volumes", names["Head Ct"])
	assert.NotContains(t, names, "Notes")

	missing, err := ListFileDatasets(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCreateDataset(t *testing.T) {
	obj, err := CreateDataset("quadrants")
	require.NoError(t, err)
	assert.Equal(t, 1000, obj.NumPrimitives())

	_, err = CreateDataset("teapot")
	assert.ErrorIs(t, err, core.ErrInputMismatch)
}
