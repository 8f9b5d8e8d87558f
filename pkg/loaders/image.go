package loaders

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	"github.com/df07/go-stochastic-viz/pkg/object"
)

// LoadImageVolume loads a PNG or JPEG image as a single-slice volume of
// 8-bit luminance. Row 0 of the volume is the bottom image row.
func LoadImageVolume(filename string) (*object.StructuredVolume, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	// Decode image (auto-detects PNG/JPEG from file header)
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageVolume(img), nil
}

// ImageVolume converts an image into a (width, height, 1) volume
func ImageVolume(img image.Image) *object.StructuredVolume {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	values := make(object.Values[uint8], width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray)
			values[(height-1-y)*width+x] = gray.Y
		}
	}

	// Values match the resolution by construction.
	volume, _ := object.NewStructuredVolume([3]int{width, height, 1}, values)
	return volume
}
