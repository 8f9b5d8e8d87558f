package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/core"
)

func TestDefaultTransferFunction(t *testing.T) {
	tf := Default()
	assert.Equal(t, 256, tf.Resolution())
	assert.False(t, tf.HasRange())

	// rainbow runs blue to red
	assert.Equal(t, [3]uint8{0, 0, 255}, tf.ColorMap().RGB(0))
	assert.Equal(t, [3]uint8{255, 0, 0}, tf.ColorMap().RGB(255))
	assert.Equal(t, 0.0, tf.OpacityMap().At(0))
	assert.Equal(t, 1.0, tf.OpacityMap().At(255))
}

func TestAdjustRange(t *testing.T) {
	tf := New(11)
	adjusted := tf.AdjustRange(0, 10)
	assert.False(t, tf.HasRange(), "original is untouched")
	require.True(t, adjusted.HasRange())

	_, opacity := adjusted.Map(5)
	assert.InDelta(t, 0.5, opacity, 1e-12)
	_, opacity = adjusted.Map(-3)
	assert.Equal(t, 0.0, opacity, "values below range clamp to the first entry")

	tf.SetRange(0, 100)
	kept := tf.AdjustRange(0, 10)
	lo, hi := kept.Range()
	assert.Equal(t, []float64{0, 100}, []float64{lo, hi}, "explicit range wins")
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
resolution: 3
range: [10, 20]
colors:
  - {position: 0, color: [0, 0, 0]}
  - {position: 1, color: [255, 255, 255]}
opacities:
  - {position: 0, opacity: 1}
  - {position: 1, opacity: 0}
`)
	tf, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 3, tf.Resolution())
	color, opacity := tf.Map(15)
	assert.InDelta(t, 0.5, color.X, 1e-12)
	assert.InDelta(t, 0.5, opacity, 1e-12)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad range", "range: [1]"},
		{"inverted range", "range: [5, 1]"},
		{"opacity out of bounds", "opacities: [{position: 0, opacity: 2}]"},
		{"unordered colors", "colors: [{position: 1, color: [0,0,0]}, {position: 0, color: [0,0,0]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.True(t, errors.Is(err, core.ErrConfiguration), "got %v", err)
		})
	}

	_, err := Parse([]byte("resolution: [nope"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolution: 16\n"), 0o644))

	tf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, tf.Resolution())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
