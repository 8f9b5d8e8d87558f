package pipeline

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/engine"
	"github.com/df07/go-stochastic-viz/pkg/mapper"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/shading"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// Mapper names accepted in Options
const (
	MapperNone       = "none"
	MapperIsosurface = "isosurface"
	MapperKMeans     = "kmeans"
	MapperVertices   = "vertices"
)

// Options describes a pipeline the way the CLI and the web viewer build it
type Options struct {
	Input  string `toml:"input"`
	Mapper string `toml:"mapper"`

	// Isosurface
	Isolevel    *float64 `toml:"isolevel"` // nil selects the middle of the value range
	Normals     string   `toml:"normals"`  // "polygon" or "vertex"
	Duplication bool     `toml:"duplication"`

	// Clustering
	Clusters    int    `toml:"clusters"`
	MinClusters int    `toml:"min_clusters"`
	Clustering  string `toml:"clustering"` // "plain", "fast" or "adaptive"
	Seeding     string `toml:"seeding"`    // "random" or "smart"

	// Vertices
	PointSize float64 `toml:"point_size"`

	// Transfer function file; AdjustRange replaces its range with the
	// value range of the input volume
	TransferFunction string `toml:"transfer_function"`
	AdjustRange      bool   `toml:"adjust_range"`

	Repetitions int    `toml:"repetitions"`
	Seed        uint64 `toml:"seed"`
	Shading     string `toml:"shading"` // "none", "lambert", "phong" or "blinn-phong"
	Shuffle     bool   `toml:"shuffle"` // particle engine
	Zooming     bool   `toml:"zooming"` // particle engine
}

// DefaultOptions returns sensible default values
func DefaultOptions() Options {
	return Options{
		Input:       "hydrogen",
		Mapper:      MapperNone,
		Normals:     "polygon",
		Clusters:    4,
		MinClusters: 2,
		Clustering:  "fast",
		Seeding:     "smart",
		PointSize:   1,
		Repetitions: 8,
		Seed:        10,
		Shading:     "lambert",
	}
}

// Validate checks option values that do not depend on the input
func (o Options) Validate() error {
	var problems []string
	switch o.Mapper {
	case MapperNone, MapperIsosurface, MapperKMeans, MapperVertices:
	default:
		problems = append(problems, fmt.Sprintf("unknown mapper %q", o.Mapper))
	}
	if o.Normals != "polygon" && o.Normals != "vertex" {
		problems = append(problems, fmt.Sprintf("unknown normal type %q", o.Normals))
	}
	if _, err := o.clusteringMethod(); err != nil {
		problems = append(problems, err.Error())
	}
	if o.Seeding != "random" && o.Seeding != "smart" {
		problems = append(problems, fmt.Sprintf("unknown seeding %q", o.Seeding))
	}
	if _, err := shading.ParseKind(o.Shading); err != nil {
		problems = append(problems, err.Error())
	}
	if o.Clusters < 1 {
		problems = append(problems, fmt.Sprintf("clusters must be positive, got %d", o.Clusters))
	}
	if o.Repetitions < 1 {
		problems = append(problems, fmt.Sprintf("repetitions must be positive, got %d", o.Repetitions))
	}
	if o.PointSize <= 0 {
		problems = append(problems, fmt.Sprintf("point size must be positive, got %g", o.PointSize))
	}
	if o.Input == "" {
		problems = append(problems, "no input")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid options: %v: %w", problems, core.ErrConfiguration)
	}
	return nil
}

func (o Options) clusteringMethod() (mapper.ClusteringMethod, error) {
	switch o.Clustering {
	case "plain":
		return mapper.PlainKMeans, nil
	case "fast":
		return mapper.FastKMeans, nil
	case "adaptive":
		return mapper.AdaptiveKMeans, nil
	default:
		return 0, fmt.Errorf("unknown clustering method %q", o.Clustering)
	}
}

// transferFunction loads the configured transfer function, or the default
// one, adjusting its range to the input when requested
func (o Options) transferFunction(input object.Object) (*transfer.TransferFunction, error) {
	tf := transfer.Default()
	if o.TransferFunction != "" {
		var err error
		if tf, err = transfer.Load(o.TransferFunction); err != nil {
			return nil, err
		}
	}
	if v, ok := input.(*object.StructuredVolume); ok && o.AdjustRange {
		tf.SetRange(v.MinValue(), v.MaxValue())
	}
	return tf, nil
}

// Build imports the input, connects the configured mapper and executes
// the pipeline
func Build(o Options, logger core.Logger) (*Pipeline, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	p := New(logger)
	if err := p.Import(o.Input); err != nil {
		return nil, err
	}
	tf, err := o.transferFunction(p.Input())
	if err != nil {
		return nil, err
	}

	kind, _ := shading.ParseKind(o.Shading)
	config := engine.DefaultConfig()
	config.RepetitionLevel = o.Repetitions
	config.Seed = o.Seed
	config.Shading = shading.NewModel(kind)
	config.EnableShading = kind != shading.None
	p.SetEngineConfig(config)
	p.SetTransferFunction(tf)

	switch o.Mapper {
	case MapperIsosurface:
		normals := object.PolygonNormal
		if o.Normals == "vertex" {
			normals = object.VertexNormal
		}
		p.Connect(mapper.NewMarchingCubes(o.isolevel(p.Input()), normals, o.Duplication, tf))
	case MapperKMeans:
		method, _ := o.clusteringMethod()
		c := mapper.DefaultKMeansConfig()
		c.Method = method
		c.Seeding = mapper.RandomSeeding
		if o.Seeding == "smart" {
			c.Seeding = mapper.SmartSeeding
		}
		c.NumberOfClusters = o.Clusters
		c.MinClusters = o.MinClusters
		c.Seed = o.Seed
		p.Connect(mapper.NewKMeansClustering(c))
	case MapperVertices:
		p.Connect(mapper.NewExtractVertices(float32(o.PointSize), tf))
	}

	if err := p.Exec(); err != nil {
		return nil, err
	}
	if pe, ok := p.Engine().(*engine.ParticleEngine); ok {
		if o.Shuffle {
			pe.EnableShuffle()
		}
		if o.Zooming {
			pe.EnableZooming()
		}
	}
	return p, nil
}

func (o Options) isolevel(input object.Object) float64 {
	if o.Isolevel != nil {
		return *o.Isolevel
	}
	if v, ok := input.(*object.StructuredVolume); ok {
		return (v.MinValue() + v.MaxValue()) / 2
	}
	return 0
}
