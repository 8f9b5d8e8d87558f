package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/pipeline"
	"github.com/df07/go-stochastic-viz/pkg/renderer"
)

// Exit codes
const (
	exitOK       = 0
	exitArgument = 1
	exitPipeline = 2
)

// Config is the viewer configuration. A TOML file given with -config
// provides it; flags set on the command line override the file.
type Config struct {
	Pipeline pipeline.Options `toml:"pipeline"`
	Render   RenderConfig     `toml:"render"`
}

// RenderConfig controls the output image
type RenderConfig struct {
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	DevicePixelRatio float64 `toml:"device_pixel_ratio"`
	Output           string  `toml:"output"`  // PNG path; empty picks output/<input>/render_<timestamp>.png
	Verbose          bool    `toml:"verbose"` // print the pipeline and its objects
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultOptions(),
		Render: RenderConfig{
			Width:            512,
			Height:           512,
			DevicePixelRatio: 1,
		},
	}
}

// loadConfig reads a TOML config file over the defaults
func loadConfig(filename string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", filename, err)
	}
	return config, nil
}

// newFlagSet binds the command line flags to config
func newFlagSet(config *Config, configFile *string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("stochastic-viz", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }

	o := &config.Pipeline
	r := &config.Render
	fs.StringVar(configFile, "config", "", "TOML configuration file")
	fs.StringVar(&o.Mapper, "mapper", o.Mapper, "Mapper: none, isosurface, kmeans or vertices")
	fs.Func("isolevel", "Isosurface level (default: middle of the value range)", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		o.Isolevel = &v
		return nil
	})
	fs.StringVar(&o.Normals, "normals", o.Normals, "Isosurface normals: polygon or vertex")
	fs.BoolVar(&o.Duplication, "duplication", o.Duplication, "Duplicate isosurface vertices per triangle")
	fs.IntVar(&o.Clusters, "clusters", o.Clusters, "Number of clusters (maximum for adaptive clustering)")
	fs.IntVar(&o.MinClusters, "min-clusters", o.MinClusters, "Minimum number of clusters for adaptive clustering")
	fs.StringVar(&o.Clustering, "clustering", o.Clustering, "Clustering method: plain, fast or adaptive")
	fs.StringVar(&o.Seeding, "seeding", o.Seeding, "Centroid seeding: random or smart")
	fs.Float64Var(&o.PointSize, "point-size", o.PointSize, "Point size of extracted vertices")
	fs.Func("t", "Transfer function file (YAML)", func(s string) error {
		o.TransferFunction, o.AdjustRange = s, false
		return nil
	})
	fs.Func("T", "Transfer function file (YAML), range adjusted to the input", func(s string) error {
		o.TransferFunction, o.AdjustRange = s, true
		return nil
	})
	fs.IntVar(&o.Repetitions, "repetitions", o.Repetitions, "Stochastic repetitions per image")
	fs.Uint64Var(&o.Seed, "seed", o.Seed, "Random seed")
	fs.StringVar(&o.Shading, "shading", o.Shading, "Shading: none, lambert, phong or blinn-phong")
	fs.BoolVar(&o.Shuffle, "shuffle", o.Shuffle, "Shuffle particles")
	fs.BoolVar(&o.Zooming, "zooming", o.Zooming, "Scale particle size with distance")

	fs.IntVar(&r.Width, "width", r.Width, "Image width")
	fs.IntVar(&r.Height, "height", r.Height, "Image height")
	fs.Float64Var(&r.DevicePixelRatio, "dpr", r.DevicePixelRatio, "Framebuffer pixels per image pixel")
	fs.StringVar(&r.Output, "o", r.Output, "Output PNG file")
	fs.BoolVar(&r.Verbose, "v", r.Verbose, "Print the pipeline and its objects")
	return fs
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Stochastic Visualization Viewer")
	fmt.Fprintln(w, "Usage: stochastic-viz [options] [input]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input is a .ply, .toml (volume), .csv or image file, or a built-in dataset.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Built-in datasets:")
	if response, err := pipeline.ListAllDatasets(""); err == nil {
		for _, g := range response.Groups {
			for _, d := range g.Datasets {
				fmt.Fprintf(w, "  %-10s %s\n", d.ID, d.Description)
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output will be saved to output/<input>/render_<timestamp>.png unless -o is given")
}

// parseArgs resolves the configuration: defaults, then the -config file,
// then explicitly set flags
func parseArgs(args []string, stderr io.Writer) (Config, error) {
	config := DefaultConfig()
	var configFile string
	fs := newFlagSet(&config, &configFile, stderr)
	if err := fs.Parse(args); err != nil {
		return config, err
	}

	if configFile != "" {
		var err error
		if config, err = loadConfig(configFile); err != nil {
			return config, err
		}
		// a flag set only assigns what was given, so parsing again puts the
		// command line over the file
		fs = newFlagSet(&config, &configFile, stderr)
		if err := fs.Parse(args); err != nil {
			return config, err
		}
	}

	if fs.NArg() > 1 {
		return config, fmt.Errorf("expected one input, got %s", strings.Join(fs.Args(), " "))
	}
	if fs.NArg() == 1 {
		config.Pipeline.Input = fs.Arg(0)
	}
	if config.Render.Width <= 0 || config.Render.Height <= 0 {
		return config, fmt.Errorf("invalid image size %dx%d", config.Render.Width, config.Render.Height)
	}
	return config, config.Pipeline.Validate()
}

// outputPath returns the configured output or a timestamped file under
// output/<input name>
func outputPath(config Config, now time.Time) (string, error) {
	if config.Render.Output != "" {
		return config.Render.Output, nil
	}
	name := filepath.Base(config.Pipeline.Input)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	outputDir := filepath.Join("output", name)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	return filepath.Join(outputDir, fmt.Sprintf("render_%s.png", now.Format("20060102_150405"))), nil
}

// render builds the pipeline, draws every repetition and writes the PNG
func render(config Config, stdout io.Writer, logger core.Logger) error {
	p, err := pipeline.Build(config.Pipeline, logger)
	if err != nil {
		return err
	}
	if config.Render.Verbose {
		p.Print(stdout)
	}

	rendererConfig := renderer.DefaultConfig()
	rendererConfig.RepetitionLevel = config.Pipeline.Repetitions
	compositor := renderer.NewCompositor(rendererConfig, logger)
	defer compositor.Release()
	if _, err := p.Register(compositor); err != nil {
		return err
	}

	camConfig := camera.DefaultConfig()
	camConfig.Width = config.Render.Width
	camConfig.Height = config.Render.Height
	camConfig.DevicePixelRatio = config.Render.DevicePixelRatio
	cam := camera.New(camConfig)

	startTime := time.Now()
	if err := compositor.Frame(cam, camera.DefaultLight(cam)); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	stats := compositor.Stats()
	logger.Printf("Render completed in %v: %d repetitions, %d/%d engines active\n",
		time.Since(startTime), stats.Repetitions, stats.ActiveEngines, stats.Engines)
	if stats.ActiveEngines == 0 || stats.Repetitions == 0 {
		return fmt.Errorf("%d skipped, %d disabled of %d engines: %w",
			stats.SkippedEngines, stats.DisabledEngines, stats.Engines, renderer.ErrNothingDrawn)
	}
	if !compositor.IsConverged() {
		return fmt.Errorf("render stopped after %d of %d repetitions", stats.Repetitions, stats.RepetitionLevel)
	}

	filename, err := outputPath(config, time.Now())
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, compositor.Image()); err != nil {
		return fmt.Errorf("error saving PNG: %w", err)
	}
	logger.Printf("Render saved as %s\n", filename)
	return nil
}

// run is main without the process exit
func run(args []string, stdout, stderr io.Writer) int {
	config, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitArgument
	}

	logger := core.NewSlogLogger(slog.New(slog.NewTextHandler(stdout, nil)))
	if err := render(config, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitPipeline
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
