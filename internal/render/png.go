// Package render writes design densities as grayscale images so a run can
// be inspected without any plotting tooling.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/waveforge/photonics-core/pkg/utils"
)

// WriteDensityPNG writes a row-major density field as a grayscale PNG,
// white for material and black for background. The image is flipped
// vertically so row zero, the bottom of the simulation domain, ends up at
// the bottom of the picture.
func WriteDensityPNG(path string, w, h int, density []float64) error {
	if w <= 0 || h <= 0 || len(density) != w*h {
		return fmt.Errorf("density shape mismatch: %d values for %dx%d", len(density), w, h)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			v := utils.ClampFloat64(density[j*w+i], 0, 1)
			img.SetGray(i, h-1-j, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode image: %w", err)
	}
	return f.Close()
}
