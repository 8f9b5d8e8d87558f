package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/object"
)

// TestLoadImageVolume creates a test PNG and verifies loading
func TestLoadImageVolume(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.png")

	// Top row white then black, bottom row gray then black
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{A: 255})
	img.Set(0, 1, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	img.Set(1, 1, color.RGBA{A: 255})

	f, err := os.Create(testFile)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	volume, err := LoadImageVolume(testFile)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 1}, volume.Resolution())
	assert.Equal(t, 255.0, volume.Value(0, 1, 0), "top image row is the last volume row")
	assert.Equal(t, 128.0, volume.Value(0, 0, 0))
	assert.Equal(t, 0.0, volume.Value(1, 1, 0))

	obj, err := Load(testFile)
	require.NoError(t, err)
	assert.Equal(t, object.VolumeKind, obj.Kind())
	assert.Equal(t, "test", obj.Name())
}

func TestLoadImageVolumeErrors(t *testing.T) {
	_, err := LoadImageVolume(filepath.Join(t.TempDir(), "nonexistent.png"))
	assert.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0644))
	_, err = LoadImageVolume(bogus)
	assert.Error(t, err)
}
