package transfer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

// TransferFunction maps a scalar value to a color and an opacity. Without an
// explicit range, values are normalized against the range of the data they
// are applied to (see AdjustRange).
type TransferFunction struct {
	colorMap   *ColorMap
	opacityMap *OpacityMap
	minValue   float64
	maxValue   float64
	hasRange   bool
}

// New creates a transfer function with a rainbow color map and a linear
// opacity map of the given resolution
func New(resolution int) *TransferFunction {
	return &TransferFunction{
		colorMap:   NewRainbowColorMap(resolution),
		opacityMap: NewLinearOpacityMap(resolution),
	}
}

// Default returns a transfer function with DefaultResolution entries
func Default() *TransferFunction { return New(DefaultResolution) }

// NewFromMaps combines existing maps; their resolutions must match
func NewFromMaps(colorMap *ColorMap, opacityMap *OpacityMap) (*TransferFunction, error) {
	if colorMap.Resolution() != opacityMap.Resolution() {
		return nil, fmt.Errorf("color map has %d entries, opacity map %d: %w",
			colorMap.Resolution(), opacityMap.Resolution(), core.ErrConfiguration)
	}
	return &TransferFunction{colorMap: colorMap, opacityMap: opacityMap}, nil
}

func (tf *TransferFunction) ColorMap() *ColorMap     { return tf.colorMap }
func (tf *TransferFunction) OpacityMap() *OpacityMap { return tf.opacityMap }
func (tf *TransferFunction) Resolution() int         { return tf.colorMap.Resolution() }

// HasRange reports whether an explicit value range is set
func (tf *TransferFunction) HasRange() bool { return tf.hasRange }

// Range returns the value range mapped onto the table
func (tf *TransferFunction) Range() (float64, float64) { return tf.minValue, tf.maxValue }

// SetRange sets an explicit value range
func (tf *TransferFunction) SetRange(minValue, maxValue float64) {
	tf.minValue, tf.maxValue = minValue, maxValue
	tf.hasRange = true
}

// AdjustRange returns a copy whose range is the given data range when no
// explicit range was set
func (tf *TransferFunction) AdjustRange(minValue, maxValue float64) *TransferFunction {
	out := *tf
	if !tf.hasRange {
		out.SetRange(minValue, maxValue)
	}
	return &out
}

// Normalize maps a value into [0,1] over the current range
func (tf *TransferFunction) Normalize(value float64) float64 {
	span := tf.maxValue - tf.minValue
	if !tf.hasRange || span <= 0 {
		return 0
	}
	return (value - tf.minValue) / span
}

// Map returns the color and opacity for a value
func (tf *TransferFunction) Map(value float64) (core.Vec3, float64) {
	t := tf.Normalize(value)
	return tf.colorMap.Lookup(t), tf.opacityMap.Lookup(t)
}

// Print writes a summary of the transfer function
func (tf *TransferFunction) Print(w io.Writer, indent int) {
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sResolution: %d\n", pad, tf.Resolution())
	if tf.hasRange {
		fmt.Fprintf(w, "%sRange: [%g, %g]\n", pad, tf.minValue, tf.maxValue)
	} else {
		fmt.Fprintf(w, "%sRange: data\n", pad)
	}
}

// fileFormat is the YAML layout of a transfer function file
type fileFormat struct {
	Resolution int            `yaml:"resolution"`
	Range      []float64      `yaml:"range,omitempty"`
	Colors     []ColorPoint   `yaml:"colors,omitempty"`
	Opacities  []OpacityPoint `yaml:"opacities,omitempty"`
}

// Parse reads a transfer function from YAML
func Parse(data []byte) (*TransferFunction, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing transfer function: %w", err)
	}
	if f.Resolution == 0 {
		f.Resolution = DefaultResolution
	}

	colorMap, err := NewColorMap(f.Resolution, f.Colors)
	if err != nil {
		return nil, err
	}
	opacityMap, err := NewOpacityMap(f.Resolution, f.Opacities)
	if err != nil {
		return nil, err
	}
	tf, err := NewFromMaps(colorMap, opacityMap)
	if err != nil {
		return nil, err
	}

	switch len(f.Range) {
	case 0:
	case 2:
		if f.Range[1] < f.Range[0] {
			return nil, fmt.Errorf("transfer function range [%g, %g] is inverted: %w", f.Range[0], f.Range[1], core.ErrConfiguration)
		}
		tf.SetRange(f.Range[0], f.Range[1])
	default:
		return nil, fmt.Errorf("transfer function range needs 2 values, got %d: %w", len(f.Range), core.ErrConfiguration)
	}
	return tf, nil
}

// Load reads a transfer function from a YAML file
func Load(filename string) (*TransferFunction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer function: %w", err)
	}
	return Parse(data)
}
